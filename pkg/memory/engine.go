package memory

import (
	"context"
	"time"
)

// Record is one stored impression as the engine sees it.
type Record struct {
	Key       int
	VectorID  string
	Text      string
	CreatedAt time.Time
}

// Hit is a record returned by a nearest-neighbour query together with its
// cosine distance to the query vector.
type Hit struct {
	Record
	Distance float64
}

// VectorEngine is the nearest-neighbour index a Store delegates to.
type VectorEngine interface {
	// Insert stores the record with its embedding under record.VectorID.
	Insert(ctx context.Context, record Record, embedding []float32) error

	// Get returns the record stored under vectorID. A missing record is
	// reported with ok == false and a nil error.
	Get(ctx context.Context, vectorID string) (record Record, ok bool, err error)

	// Query returns at most k hits ordered by increasing distance.
	Query(ctx context.Context, embedding []float32, k int) ([]Hit, error)

	// Delete removes the record stored under vectorID, if any.
	Delete(ctx context.Context, vectorID string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	Close() error
}

// EngineOpener opens the engine for a resolved identity.
type EngineOpener func(ctx context.Context, identity Identity) (VectorEngine, error)

// Record metadata keys shared by the engines.
const (
	metaKey       = "key"
	metaCreatedAt = "created_at"
	metaText      = "text"
)
