// Package memstore implements metadata.Store with mutex-guarded in-memory
// maps. It is used by unit tests and the in-process e2e harness in place of
// the Postgres adapter, mirroring the production store's semantics
// (uniqueness, soft-delete, deterministic ordering) without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/types"
)

// Store is an in-memory metadata.Store.
type Store struct {
	mu sync.RWMutex

	chunks    map[int64]types.ChunkMetadata
	nextSeq   int64
	storeJobs map[string]types.StoreJob
	loadJobs  map[string]types.LoadJob
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		chunks:    make(map[int64]types.ChunkMetadata),
		storeJobs: make(map[string]types.StoreJob),
		loadJobs:  make(map[string]types.LoadJob),
	}
}

var _ metadata.Store = (*Store)(nil)

// CreateChunk inserts a chunk row, enforcing (bucket, prefix, key) uniqueness
// and start<=end, mirroring the Postgres adapter's validation order.
func (s *Store) CreateChunk(ctx context.Context, c types.CreateChunkMetadata) (types.ChunkMetadata, error) {
	if c.TimestampStart.After(c.TimestampEnd) {
		return types.ChunkMetadata{}, &types.ErrInvalidTimestampRange{
			Start: c.TimestampStart.Unix(),
			End:   c.TimestampEnd.Unix(),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.chunks {
		if row.DeletedAt == nil && row.Bucket == c.Bucket && row.Prefix == c.Prefix && row.Key == c.Key {
			return types.ChunkMetadata{}, &types.ErrDuplicateChunk{Bucket: c.Bucket, Key: c.Key}
		}
	}

	s.nextSeq++
	row := types.ChunkMetadata{
		SequenceNumber: s.nextSeq,
		Bucket:         c.Bucket,
		Prefix:         c.Prefix,
		Key:            c.Key,
		Stream:         c.Stream,
		Consumer:       c.Consumer,
		Subject:        c.Subject,
		TimestampStart: c.TimestampStart,
		TimestampEnd:   c.TimestampEnd,
		MessageCount:   c.MessageCount,
		SizeBytes:      c.SizeBytes,
		Codec:          c.Codec,
		Hash:           c.Hash,
		Version:        c.Version,
		CreatedAt:      time.Now().UTC(),
	}
	s.chunks[row.SequenceNumber] = row
	return row, nil
}

// GetChunk returns a single chunk row by sequence number.
func (s *Store) GetChunk(ctx context.Context, sequenceNumber int64) (types.ChunkMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.chunks[sequenceNumber]
	if !ok {
		return types.ChunkMetadata{}, types.ErrNotFound
	}
	return row, nil
}

// ListChunks returns rows matching query, ordered timestamp_start ASC,
// timestamp_end ASC, sequence_number ASC, exactly as the Postgres adapter does.
func (s *Store) ListChunks(ctx context.Context, q types.ListChunksQuery) ([]types.ChunkMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []types.ChunkMetadata
	for _, row := range s.chunks {
		if row.Stream != q.Stream || row.Subject != q.Subject || row.Bucket != q.Bucket {
			continue
		}
		if q.Prefix != "" && row.Prefix != q.Prefix {
			continue
		}
		if q.Consumer != "" && row.Consumer != q.Consumer {
			continue
		}
		if q.TimestampStart != nil && row.TimestampStart.Before(*q.TimestampStart) {
			continue
		}
		if q.TimestampEnd != nil && row.TimestampEnd.After(*q.TimestampEnd) {
			continue
		}
		if !q.IncludeDeleted && row.DeletedAt != nil {
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].TimestampStart.Equal(rows[j].TimestampStart) {
			return rows[i].TimestampStart.Before(rows[j].TimestampStart)
		}
		if !rows[i].TimestampEnd.Equal(rows[j].TimestampEnd) {
			return rows[i].TimestampEnd.Before(rows[j].TimestampEnd)
		}
		return rows[i].SequenceNumber < rows[j].SequenceNumber
	})

	if q.Limit != nil && int64(len(rows)) > *q.Limit {
		rows = rows[:*q.Limit]
	}

	return rows, nil
}

// SoftDeleteChunk sets deleted_at on a chunk row.
func (s *Store) SoftDeleteChunk(ctx context.Context, sequenceNumber int64) (types.ChunkMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.chunks[sequenceNumber]
	if !ok {
		return types.ChunkMetadata{}, types.ErrNotFound
	}
	now := time.Now().UTC()
	row.DeletedAt = &now
	s.chunks[sequenceNumber] = row
	return row, nil
}

// HardDeleteChunk removes a chunk row entirely.
func (s *Store) HardDeleteChunk(ctx context.Context, sequenceNumber int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[sequenceNumber]; !ok {
		return types.ErrNotFound
	}
	delete(s.chunks, sequenceNumber)
	return nil
}

// CreateStoreJob inserts a store_jobs row.
func (s *Store) CreateStoreJob(ctx context.Context, job types.StoreJob) (types.StoreJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	s.storeJobs[job.ID] = job
	return job, nil
}

// GetStoreJob returns a single store_jobs row by id.
func (s *Store) GetStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.storeJobs[id]
	if !ok {
		return types.StoreJob{}, types.ErrNotFound
	}
	return row, nil
}

// ListStoreJobs returns store_jobs rows ordered created_at DESC.
func (s *Store) ListStoreJobs(ctx context.Context, filter metadata.StoreJobFilter) ([]types.StoreJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]types.StoreJob, 0, len(s.storeJobs))
	for _, row := range s.storeJobs {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if filter.Limit != nil && int64(len(rows)) > *filter.Limit {
		rows = rows[:*filter.Limit]
	}
	return rows, nil
}

// UpdateStoreJobStatus is a last-write-wins status transition.
func (s *Store) UpdateStoreJobStatus(ctx context.Context, id string, status types.JobStatus) (types.StoreJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.storeJobs[id]
	if !ok {
		return types.StoreJob{}, types.ErrNotFound
	}
	row.Status = status
	row.UpdatedAt = time.Now().UTC()
	s.storeJobs[id] = row
	return row, nil
}

// DeleteStoreJob removes a store_jobs row.
func (s *Store) DeleteStoreJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.storeJobs[id]; !ok {
		return types.ErrNotFound
	}
	delete(s.storeJobs, id)
	return nil
}

// CreateLoadJob inserts a load_jobs row.
func (s *Store) CreateLoadJob(ctx context.Context, job types.LoadJob) (types.LoadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	s.loadJobs[job.ID] = job
	return job, nil
}

// GetLoadJob returns a single load_jobs row by id.
func (s *Store) GetLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.loadJobs[id]
	if !ok {
		return types.LoadJob{}, types.ErrNotFound
	}
	return row, nil
}

// ListLoadJobs returns load_jobs rows ordered created_at DESC.
func (s *Store) ListLoadJobs(ctx context.Context, filter metadata.LoadJobFilter) ([]types.LoadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]types.LoadJob, 0, len(s.loadJobs))
	for _, row := range s.loadJobs {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if filter.Limit != nil && int64(len(rows)) > *filter.Limit {
		rows = rows[:*filter.Limit]
	}
	return rows, nil
}

// UpdateLoadJobStatus is a last-write-wins status transition.
func (s *Store) UpdateLoadJobStatus(ctx context.Context, id string, status types.JobStatus) (types.LoadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.loadJobs[id]
	if !ok {
		return types.LoadJob{}, types.ErrNotFound
	}
	row.Status = status
	row.UpdatedAt = time.Now().UTC()
	s.loadJobs[id] = row
	return row, nil
}

// DeleteLoadJob removes a load_jobs row.
func (s *Store) DeleteLoadJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loadJobs[id]; !ok {
		return types.ErrNotFound
	}
	delete(s.loadJobs, id)
	return nil
}
