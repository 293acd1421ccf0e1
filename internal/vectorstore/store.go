// Package vectorstore wraps the Qdrant gRPC client behind a typed
// interface: collections with payload indexes, batched upserts,
// filtered queries, scroll, and filtered or id-based deletion.
package vectorstore

import (
	"context"
	"errors"
)

// Common errors.
var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid vectorstore configuration")

	// ErrConnectionFailed indicates the store endpoint could not be reached.
	ErrConnectionFailed = errors.New("vectorstore connection failed")

	// ErrCollectionNotFound indicates the requested collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates a collection name outside the
	// allowed pattern.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Point is one stored chunk: id, embedding, and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a point with its query similarity score.
type ScoredPoint struct {
	Point
	Score float32
}

// QueryRequest describes a similarity search in one collection.
type QueryRequest struct {
	Collection string
	Vector     []float32
	Limit      uint64
	Filter     *Filter
}

// ScrollRequest describes one page of a cursor scan over a collection.
type ScrollRequest struct {
	Collection string
	Filter     *Filter
	Limit      uint32

	// Offset is the page token returned by the previous call; empty
	// for the first page.
	Offset string
}

// Store is the vector-store surface consumed by the knowledge layer.
// *Client implements it against Qdrant; tests substitute fakes.
type Store interface {
	// EnsureCollection creates the collection with the configured
	// vector size and the payload indexes required for scoped
	// filtering, if it does not already exist. Idempotent.
	EnsureCollection(ctx context.Context, name string) error

	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	DeleteCollection(ctx context.Context, name string) error

	// Upsert writes points. With wait set, the call returns only after
	// the write is durable, so progress reporting reflects persisted
	// state.
	Upsert(ctx context.Context, collection string, points []*Point, wait bool) error

	Query(ctx context.Context, req QueryRequest) ([]*ScoredPoint, error)

	// Scroll returns one page of points plus the next page token
	// (empty when the scan is exhausted). Vectors are not returned.
	Scroll(ctx context.Context, req ScrollRequest) ([]*Point, string, error)

	DeleteByFilter(ctx context.Context, collection string, filter *Filter) error
	DeleteByIDs(ctx context.Context, collection string, ids []string) error

	Close() error
}
