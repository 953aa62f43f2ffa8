// Package metadata defines the capability-set interfaces for the relational
// index: chunk rows and the two job tables. Concrete adapters live in
// metadata/postgres (the production store) and metadata/memstore (an
// in-memory double used by tests and the in-process e2e harness).
package metadata

import (
	"context"

	"github.com/gurre/nats3/types"
)

// ChunkStore persists and queries ChunkMetadata rows.
type ChunkStore interface {
	CreateChunk(ctx context.Context, chunk types.CreateChunkMetadata) (types.ChunkMetadata, error)
	GetChunk(ctx context.Context, sequenceNumber int64) (types.ChunkMetadata, error)
	ListChunks(ctx context.Context, query types.ListChunksQuery) ([]types.ChunkMetadata, error)
	SoftDeleteChunk(ctx context.Context, sequenceNumber int64) (types.ChunkMetadata, error)
	HardDeleteChunk(ctx context.Context, sequenceNumber int64) error
}

// StoreJobFilter selects a subset of store_jobs rows for ListStoreJobs.
type StoreJobFilter struct {
	Limit *int64
}

// LoadJobFilter selects a subset of load_jobs rows for ListLoadJobs.
type LoadJobFilter struct {
	Limit *int64
}

// StoreJobStore persists and queries StoreJob rows. List ordering is
// created_at DESC then limit.
type StoreJobStore interface {
	CreateStoreJob(ctx context.Context, job types.StoreJob) (types.StoreJob, error)
	GetStoreJob(ctx context.Context, id string) (types.StoreJob, error)
	ListStoreJobs(ctx context.Context, filter StoreJobFilter) ([]types.StoreJob, error)
	UpdateStoreJobStatus(ctx context.Context, id string, status types.JobStatus) (types.StoreJob, error)
	DeleteStoreJob(ctx context.Context, id string) error
}

// LoadJobStore persists and queries LoadJob rows. List ordering is
// created_at DESC then limit.
type LoadJobStore interface {
	CreateLoadJob(ctx context.Context, job types.LoadJob) (types.LoadJob, error)
	GetLoadJob(ctx context.Context, id string) (types.LoadJob, error)
	ListLoadJobs(ctx context.Context, filter LoadJobFilter) ([]types.LoadJob, error)
	UpdateLoadJobStatus(ctx context.Context, id string, status types.JobStatus) (types.LoadJob, error)
	DeleteLoadJob(ctx context.Context, id string) error
}

// Store is the union of all three capability sets, the shape a single
// Postgres-backed adapter satisfies.
type Store interface {
	ChunkStore
	StoreJobStore
	LoadJobStore
}
