package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
)

// ChromemEngine keeps the index embedded in the process, persisted as
// files under the identity's location.
type ChromemEngine struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// OpenChromem returns an EngineOpener for the embedded engine. compress
// gzips the files chromem-go writes.
func OpenChromem(compress bool) EngineOpener {
	return func(ctx context.Context, identity Identity) (VectorEngine, error) {
		return NewChromemEngine(identity, compress)
	}
}

// NewChromemEngine opens (or creates) the collection for identity. An
// identity without a location gets a purely in-memory database.
func NewChromemEngine(identity Identity, compress bool) (*ChromemEngine, error) {
	var (
		db  *chromem.DB
		err error
	)

	if identity.Location == "" {
		db = chromem.NewDB()
	} else if db, err = chromem.NewPersistentDB(identity.Location, compress); err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}

	collection, err := db.GetOrCreateCollection(identity.Collection, map[string]string{
		"space": "cosine",
	}, nil)

	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", identity.Collection, err)
	}

	return &ChromemEngine{
		db:         db,
		collection: collection,
	}, nil
}

// Insert stores the record and its embedding.
func (engine *ChromemEngine) Insert(ctx context.Context, record Record, embedding []float32) error {
	if err := engine.collection.AddDocument(ctx, chromem.Document{
		ID:        record.VectorID,
		Metadata:  recordMetadata(record),
		Embedding: embedding,
		Content:   record.Text,
	}); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	return nil
}

// Get looks a record up by vector id. chromem-go reports a missing
// document as its only error, so any error means not found.
func (engine *ChromemEngine) Get(ctx context.Context, vectorID string) (Record, bool, error) {
	if vectorID == "" {
		return Record{}, false, nil
	}

	doc, err := engine.collection.GetByID(ctx, vectorID)
	if err != nil {
		return Record{}, false, nil
	}

	return documentRecord(doc.ID, doc.Content, doc.Metadata), true, nil
}

// Query runs an exhaustive cosine search. chromem-go rejects k larger than
// the collection, so k is capped here.
func (engine *ChromemEngine) Query(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	count := engine.collection.Count()

	if k > count {
		k = count
	}

	if k <= 0 {
		return []Hit{}, nil
	}

	results, err := engine.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	hits := make([]Hit, 0, len(results))

	for _, result := range results {
		hits = append(hits, Hit{
			Record:   documentRecord(result.ID, result.Content, result.Metadata),
			Distance: 1 - float64(result.Similarity),
		})
	}

	return hits, nil
}

// Delete removes the document with vectorID.
func (engine *ChromemEngine) Delete(ctx context.Context, vectorID string) error {
	if err := engine.collection.Delete(ctx, nil, nil, vectorID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

// Count returns the number of documents in the collection.
func (engine *ChromemEngine) Count(ctx context.Context) (int, error) {
	return engine.collection.Count(), nil
}

// Close is a no-op: chromem-go writes every change through to disk.
func (engine *ChromemEngine) Close() error {
	return nil
}

func recordMetadata(record Record) map[string]string {
	return map[string]string{
		metaKey:       strconv.Itoa(record.Key),
		metaCreatedAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
		metaText:      record.Text,
	}
}

func documentRecord(id, content string, metadata map[string]string) Record {
	record := Record{
		VectorID: id,
		Text:     content,
		Key:      FailedKey,
	}

	if record.Text == "" {
		record.Text = metadata[metaText]
	}

	if key, err := strconv.Atoi(metadata[metaKey]); err == nil {
		record.Key = key
	}

	if created, err := time.Parse(time.RFC3339Nano, metadata[metaCreatedAt]); err == nil {
		record.CreatedAt = created
	}

	return record
}
