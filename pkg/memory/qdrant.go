package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	sdk "github.com/qdrant/go-client/qdrant"
)

// QdrantConfig locates a Qdrant server.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Dimensions int
}

// QdrantEngine implements VectorEngine on a remote Qdrant collection.
type QdrantEngine struct {
	client     *sdk.Client
	collection string
	dimensions int
}

// OpenQdrant returns an EngineOpener for a Qdrant server.
func OpenQdrant(cfg QdrantConfig) EngineOpener {
	return func(ctx context.Context, identity Identity) (VectorEngine, error) {
		return NewQdrantEngine(ctx, cfg, identity)
	}
}

// NewQdrantEngine connects to Qdrant and makes sure the identity's
// collection exists.
func NewQdrantEngine(ctx context.Context, cfg QdrantConfig, identity Identity) (*QdrantEngine, error) {
	client, err := sdk.NewClient(&sdk.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	engine := &QdrantEngine{
		client:     client,
		collection: qdrantCollection(identity),
		dimensions: cfg.Dimensions,
	}

	if engine.dimensions <= 0 {
		engine.dimensions = DefaultDimensions
	}

	if err := engine.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return engine, nil
}

// qdrantCollection names the remote collection. Test identities share one
// server, so each test location gets its own suffixed collection.
func qdrantCollection(identity Identity) string {
	if !identity.IsTest {
		return identity.Collection
	}

	h := fnv.New32a()
	h.Write([]byte(identity.Location))

	return fmt.Sprintf("%s_%08x", identity.Collection, h.Sum32())
}

// Insert upserts the record as a point and waits for it to be indexed.
func (engine *QdrantEngine) Insert(ctx context.Context, record Record, embedding []float32) error {
	_, err := engine.client.Upsert(ctx, &sdk.UpsertPoints{
		CollectionName: engine.collection,
		Wait:           sdk.PtrOf(true),
		Points: []*sdk.PointStruct{
			{
				Id:      sdk.NewID(record.VectorID),
				Vectors: sdk.NewVectors(embedding...),
				Payload: sdk.NewValueMap(map[string]any{
					metaKey:       int64(record.Key),
					metaCreatedAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
					metaText:      record.Text,
				}),
			},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// Get retrieves a single point by vector id.
func (engine *QdrantEngine) Get(ctx context.Context, vectorID string) (Record, bool, error) {
	points, err := engine.client.Get(ctx, &sdk.GetPoints{
		CollectionName: engine.collection,
		Ids:            []*sdk.PointId{sdk.NewID(vectorID)},
		WithPayload:    sdk.NewWithPayload(true),
	})

	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get point: %w", err)
	}

	if len(points) == 0 {
		return Record{}, false, nil
	}

	return payloadRecord(points[0].GetId(), points[0].GetPayload()), true, nil
}

// Query searches the collection with the dense query vector.
func (engine *QdrantEngine) Query(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}

	scored, err := engine.client.Query(ctx, &sdk.QueryPoints{
		CollectionName: engine.collection,
		Query:          sdk.NewQueryDense(embedding),
		Limit:          sdk.PtrOf(uint64(k)),
		WithPayload:    sdk.NewWithPayload(true),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0, len(scored))

	for _, point := range scored {
		hits = append(hits, Hit{
			Record: payloadRecord(point.GetId(), point.GetPayload()),
			// Cosine collections score by similarity.
			Distance: 1 - float64(point.GetScore()),
		})
	}

	return hits, nil
}

// Delete removes the point with vectorID.
func (engine *QdrantEngine) Delete(ctx context.Context, vectorID string) error {
	_, err := engine.client.Delete(ctx, &sdk.DeletePoints{
		CollectionName: engine.collection,
		Wait:           sdk.PtrOf(true),
		Points:         sdk.NewPointsSelector(sdk.NewID(vectorID)),
	})

	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}

// Count returns the exact number of points in the collection.
func (engine *QdrantEngine) Count(ctx context.Context) (int, error) {
	count, err := engine.client.Count(ctx, &sdk.CountPoints{
		CollectionName: engine.collection,
		Exact:          sdk.PtrOf(true),
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}

	return int(count), nil
}

// Close releases the gRPC connection.
func (engine *QdrantEngine) Close() error {
	return engine.client.Close()
}

// ensureCollection creates the collection if it doesn't exist
func (engine *QdrantEngine) ensureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := engine.client.CollectionExists(ctx, engine.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		return nil
	}

	defaultSegmentNumber := uint64(2)
	err = engine.client.CreateCollection(ctx, &sdk.CreateCollection{
		CollectionName: engine.collection,
		VectorsConfig: sdk.NewVectorsConfig(&sdk.VectorParams{
			Size:     uint64(engine.dimensions),
			Distance: sdk.Distance_Cosine,
		}),
		OptimizersConfig: &sdk.OptimizersConfigDiff{
			DefaultSegmentNumber: &defaultSegmentNumber,
		},
	})

	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func payloadRecord(id *sdk.PointId, payload map[string]*sdk.Value) Record {
	record := Record{
		VectorID: id.GetUuid(),
		Key:      FailedKey,
	}

	if value, ok := payload[metaKey]; ok {
		record.Key = int(value.GetIntegerValue())
	}

	if value, ok := payload[metaText]; ok {
		record.Text = value.GetStringValue()
	}

	if value, ok := payload[metaCreatedAt]; ok {
		if created, err := time.Parse(time.RFC3339Nano, value.GetStringValue()); err == nil {
			record.CreatedAt = created
		}
	}

	return record
}
