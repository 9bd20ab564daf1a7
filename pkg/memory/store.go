// Package memory provides the long-term memory store: an index map of
// integer keys over a vector engine, with relevance-scored retrieval.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/closer/pkg/config"
	"github.com/theapemachine/closer/pkg/logger"
)

// FailedKey is returned by Add when nothing was stored.
const FailedKey = -1

// DefaultTimeout bounds each embedding or engine call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrEmptyText is returned when text is blank after trimming.
	ErrEmptyText = errors.New("memory text is empty")
	// ErrNotFound is returned for keys the store does not know.
	ErrNotFound = errors.New("memory not found")
)

// Options configures a Store. The zero value of every field except
// Embedder is usable.
type Options struct {
	// TestMode forces the test or production identity. Nil defers to
	// Signals, or to the process environment when Signals is nil too.
	TestMode *bool
	DataDir  string
	Signals  *Signals

	Embedder Embedder
	// QueryCacheSize enables a cache of that many query embeddings.
	QueryCacheSize int64

	// Engine opens the vector engine, chromem-go when nil.
	Engine  EngineOpener
	Timeout time.Duration
	Logger  *log.Logger
}

// Result is one retrieved memory.
type Result struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
	SavedAt   string  `json:"saved_at"`
}

// Store is the memory store. It is safe for concurrent use.
type Store struct {
	// mu serializes the mutation sequences of Add and Delete.
	mu sync.Mutex

	identity      Identity
	index         *IndexMap
	engine        VectorEngine
	embedder      Embedder
	queryEmbedder Embedder
	cache         *CachedEmbedder
	timeout       time.Duration
	logger        *log.Logger
	now           func() time.Time
}

// New builds a store for the environment opts resolves to. The only fatal
// error is a missing embedder; storage problems degrade to a volatile
// location instead.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("memory store needs an embedder: %w", config.ErrMissingCredentials)
	}

	log := logger.Or(opts.Logger).WithPrefix("memory")

	store := &Store{
		embedder:      opts.Embedder,
		queryEmbedder: opts.Embedder,
		timeout:       opts.Timeout,
		logger:        log,
		now:           time.Now,
	}

	if store.timeout <= 0 {
		store.timeout = DefaultTimeout
	}

	if opts.QueryCacheSize > 0 {
		cache, err := NewCachedEmbedder(opts.Embedder, opts.QueryCacheSize)
		if err != nil {
			log.Warn("query embedding cache disabled", "error", err)
		} else {
			store.cache = cache
			store.queryEmbedder = cache
		}
	}

	opener := opts.Engine
	if opener == nil {
		opener = OpenChromem(false)
	}

	identity := ResolveIdentity(opts, log)

	index, engine, err := store.open(ctx, identity, opener)
	if err != nil {
		log.Warn("storage unavailable, degrading", "location", identity.Location, "error", err)

		identity.release()
		identity = degradedIdentity(identity.IsTest, log)

		if index, engine, err = store.open(ctx, identity, OpenChromem(false)); err != nil {
			identity.release()
			return nil, fmt.Errorf("failed to open degraded storage: %w", err)
		}
	}

	store.identity = identity
	store.index = index
	store.engine = engine

	log.Info(
		"memory store ready",
		"test", identity.IsTest,
		"collection", identity.Collection,
		"location", identity.Location,
		"degraded", identity.Degraded,
		"memories", index.Len(),
	)

	return store, nil
}

// NewProduction builds a store bound to the production identity.
func NewProduction(ctx context.Context, opts Options) (*Store, error) {
	testMode := false
	opts.TestMode = &testMode

	return New(ctx, opts)
}

// NewTest builds a store bound to a fresh, isolated test identity.
func NewTest(ctx context.Context, opts Options) (*Store, error) {
	testMode := true
	opts.TestMode = &testMode

	return New(ctx, opts)
}

func (store *Store) open(ctx context.Context, identity Identity, opener EngineOpener) (*IndexMap, VectorEngine, error) {
	index, err := LoadIndexMap(identity.Location, store.logger)
	if err != nil {
		return nil, nil, err
	}

	openCtx, cancel := store.bound(ctx)
	defer cancel()

	engine, err := opener(openCtx, identity)
	if err != nil {
		return nil, nil, err
	}

	return index, engine, nil
}

func (store *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, store.timeout)
}

// Add stores text and returns its key. On any failure it returns FailedKey
// and leaves the store as it was.
func (store *Store) Add(ctx context.Context, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return FailedKey, ErrEmptyText
	}

	embedCtx, cancel := store.bound(ctx)
	embedding, err := store.embedder.Embed(embedCtx, text)
	cancel()

	if err != nil {
		store.logger.Error("failed to embed memory", "error", err)
		return FailedKey, fmt.Errorf("failed to embed memory: %w", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	next := store.index.Next()

	record := Record{
		Key:       next,
		VectorID:  uuid.NewString(),
		Text:      text,
		CreatedAt: store.now().UTC(),
	}

	insertCtx, cancel := store.bound(ctx)
	defer cancel()

	if err := store.engine.Insert(insertCtx, record, embedding); err != nil {
		store.logger.Error("failed to insert memory", "key", record.Key, "error", err)
		return FailedKey, fmt.Errorf("failed to insert memory: %w", err)
	}

	store.index.Put(record.Key, record.VectorID)

	if err := store.index.Save(); err != nil {
		store.index.rollback(record.Key, next)

		if derr := store.engine.Delete(insertCtx, record.VectorID); derr != nil {
			store.logger.Warn("orphaned engine record", "vector_id", record.VectorID, "error", derr)
		}

		store.logger.Error("failed to persist index map", "key", record.Key, "error", err)
		return FailedKey, fmt.Errorf("failed to persist index map: %w", err)
	}

	store.logger.Debug("memory added", "key", record.Key, "vector_id", record.VectorID)

	return record.Key, nil
}

// Get returns the text stored under key. Unknown keys, records missing from
// the engine and engine errors all read as absent.
func (store *Store) Get(ctx context.Context, key int) (string, bool) {
	vectorID, ok := store.index.Lookup(key)
	if !ok {
		return "", false
	}

	getCtx, cancel := store.bound(ctx)
	defer cancel()

	record, ok, err := store.engine.Get(getCtx, vectorID)
	if err != nil {
		store.logger.Error("failed to get memory", "key", key, "error", err)
		return "", false
	}

	if !ok {
		store.logger.Warn("index map points at a missing record", "key", key, "vector_id", vectorID)
		return "", false
	}

	return record.Text, true
}

// Query returns up to min(k, Count()) memories ordered by decreasing
// relevance. It never returns nil; on failure the slice is empty and the
// error says why.
func (store *Store) Query(ctx context.Context, text string, k int) ([]Result, error) {
	results := []Result{}

	n := store.index.Len()
	if n == 0 || k <= 0 {
		return results, nil
	}

	k = min(k, n)

	embedCtx, cancel := store.bound(ctx)
	embedding, err := store.queryEmbedder.Embed(embedCtx, strings.TrimSpace(text))
	cancel()

	if err != nil {
		store.logger.Error("failed to embed query", "error", err)
		return results, fmt.Errorf("failed to embed query: %w", err)
	}

	queryCtx, cancel := store.bound(ctx)
	defer cancel()

	hits, err := store.engine.Query(queryCtx, embedding, k)
	if err != nil {
		store.logger.Error("failed to query memories", "error", err)
		return results, fmt.Errorf("failed to query memories: %w", err)
	}

	for _, hit := range hits {
		// Orphans left by an interrupted add are not memories.
		if vectorID, ok := store.index.Lookup(hit.Key); !ok || vectorID != hit.VectorID {
			continue
		}

		results = append(results, Result{
			Text:      hit.Text,
			Relevance: Relevance(hit.Distance),
			SavedAt:   hit.CreatedAt.UTC().Format(time.RFC3339),
		})

		if len(results) <= 3 {
			store.logger.Debug(
				"memory hit",
				"rank", len(results),
				"relevance", fmt.Sprintf("%.3f", Relevance(hit.Distance)),
				"distance", fmt.Sprintf("%.3f", hit.Distance),
			)
		}

		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Delete removes the memory under key. Unknown keys are a no-op.
func (store *Store) Delete(ctx context.Context, key int) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	vectorID, ok := store.index.Lookup(key)
	if !ok {
		return nil
	}

	deleteCtx, cancel := store.bound(ctx)
	defer cancel()

	if err := store.engine.Delete(deleteCtx, vectorID); err != nil {
		return fmt.Errorf("failed to delete memory %d: %w", key, err)
	}

	store.index.Remove(key)

	if err := store.index.Save(); err != nil {
		return fmt.Errorf("failed to persist index map: %w", err)
	}

	store.logger.Debug("memory deleted", "key", key)

	return nil
}

// Count returns the number of stored memories.
func (store *Store) Count() int {
	return store.index.Len()
}

// Keys returns the stored keys in ascending order.
func (store *Store) Keys() []int {
	return store.index.Keys()
}

// Identity returns the environment the store is bound to.
func (store *Store) Identity() Identity {
	return store.identity
}

// Close releases the engine, and the temp location of a test identity.
func (store *Store) Close() error {
	var errs []error

	if err := store.engine.Close(); err != nil {
		errs = append(errs, err)
	}

	if store.cache != nil {
		store.cache.Close()
	}

	if err := store.identity.release(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
