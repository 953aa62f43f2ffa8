package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/types"
)

// CreateStoreJob inserts a store_jobs row.
func (s *Store) CreateStoreJob(ctx context.Context, job types.StoreJob) (types.StoreJob, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO store_jobs
		 (id, name, status, stream, consumer, subject, bucket, prefix,
		  batch_max_bytes, batch_max_count, codec)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, name, status, stream, consumer, subject, bucket, prefix,
		           batch_max_bytes, batch_max_count, codec, created_at, updated_at`,
		job.ID, job.Name, string(job.Status), job.Stream, nullString(job.Consumer), job.Subject,
		job.Bucket, nullString(job.Prefix), job.Batch.MaxBytes, job.Batch.MaxCount, string(job.Codec),
	)

	created, err := scanStoreJobRow(row)
	if err != nil {
		return types.StoreJob{}, fmt.Errorf("create store job: %w", err)
	}
	return created, nil
}

// GetStoreJob returns a single store_jobs row by id.
func (s *Store) GetStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, stream, consumer, subject, bucket, prefix,
		        batch_max_bytes, batch_max_count, codec, created_at, updated_at
		 FROM store_jobs WHERE id = $1`, id)

	job, err := scanStoreJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StoreJob{}, types.ErrNotFound
	}
	if err != nil {
		return types.StoreJob{}, fmt.Errorf("get store job: %w", err)
	}
	return job, nil
}

// ListStoreJobs returns store_jobs rows ordered created_at DESC.
func (s *Store) ListStoreJobs(ctx context.Context, filter metadata.StoreJobFilter) ([]types.StoreJob, error) {
	sqlStr := `SELECT id, name, status, stream, consumer, subject, bucket, prefix,
	                  batch_max_bytes, batch_max_count, codec, created_at, updated_at
	           FROM store_jobs ORDER BY created_at DESC`
	var params []any
	if filter.Limit != nil {
		sqlStr += " LIMIT $1"
		params = append(params, *filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("list store jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []types.StoreJob
	for rows.Next() {
		job, err := scanStoreJobRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store job row: %w", err)
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// UpdateStoreJobStatus transitions a store_jobs row's status and bumps updated_at.
func (s *Store) UpdateStoreJobStatus(ctx context.Context, id string, status types.JobStatus) (types.StoreJob, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE store_jobs SET status = $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING id, name, status, stream, consumer, subject, bucket, prefix,
		           batch_max_bytes, batch_max_count, codec, created_at, updated_at`,
		string(status), id)

	job, err := scanStoreJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.StoreJob{}, types.ErrNotFound
	}
	if err != nil {
		return types.StoreJob{}, fmt.Errorf("update store job status: %w", err)
	}
	return job, nil
}

// DeleteStoreJob removes a store_jobs row.
func (s *Store) DeleteStoreJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM store_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete store job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete store job: %w", err)
	}
	if affected == 0 {
		return types.ErrNotFound
	}
	return nil
}

// CreateLoadJob inserts a load_jobs row.
func (s *Store) CreateLoadJob(ctx context.Context, job types.LoadJob) (types.LoadJob, error) {
	var pollSeconds sql.NullInt64
	if job.PollInterval > 0 {
		pollSeconds = sql.NullInt64{Int64: int64(job.PollInterval.Seconds()), Valid: true}
	}
	var start, end sql.NullInt64
	if job.Start != nil {
		start = sql.NullInt64{Int64: *job.Start, Valid: true}
	}
	if job.End != nil {
		end = sql.NullInt64{Int64: *job.End, Valid: true}
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO load_jobs
		 (id, status, bucket, prefix, read_stream, read_consumer, read_subject,
		  write_subject, poll_interval_seconds, delete_chunks, start_pos, end_pos)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, status, bucket, prefix, read_stream, read_consumer, read_subject,
		           write_subject, poll_interval_seconds, delete_chunks, start_pos, end_pos,
		           created_at, updated_at`,
		job.ID, string(job.Status), job.Bucket, nullString(job.Prefix), job.ReadStream,
		nullString(job.ReadConsumer), job.ReadSubject, job.WriteSubject, pollSeconds,
		job.DeleteChunks, start, end,
	)

	created, err := scanLoadJobRow(row)
	if err != nil {
		return types.LoadJob{}, fmt.Errorf("create load job: %w", err)
	}
	return created, nil
}

// GetLoadJob returns a single load_jobs row by id.
func (s *Store) GetLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, bucket, prefix, read_stream, read_consumer, read_subject,
		        write_subject, poll_interval_seconds, delete_chunks, start_pos, end_pos,
		        created_at, updated_at
		 FROM load_jobs WHERE id = $1`, id)

	job, err := scanLoadJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LoadJob{}, types.ErrNotFound
	}
	if err != nil {
		return types.LoadJob{}, fmt.Errorf("get load job: %w", err)
	}
	return job, nil
}

// ListLoadJobs returns load_jobs rows ordered created_at DESC.
func (s *Store) ListLoadJobs(ctx context.Context, filter metadata.LoadJobFilter) ([]types.LoadJob, error) {
	sqlStr := `SELECT id, status, bucket, prefix, read_stream, read_consumer, read_subject,
	                  write_subject, poll_interval_seconds, delete_chunks, start_pos, end_pos,
	                  created_at, updated_at
	           FROM load_jobs ORDER BY created_at DESC`
	var params []any
	if filter.Limit != nil {
		sqlStr += " LIMIT $1"
		params = append(params, *filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("list load jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []types.LoadJob
	for rows.Next() {
		job, err := scanLoadJobRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan load job row: %w", err)
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// UpdateLoadJobStatus transitions a load_jobs row's status and bumps updated_at.
func (s *Store) UpdateLoadJobStatus(ctx context.Context, id string, status types.JobStatus) (types.LoadJob, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE load_jobs SET status = $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING id, status, bucket, prefix, read_stream, read_consumer, read_subject,
		           write_subject, poll_interval_seconds, delete_chunks, start_pos, end_pos,
		           created_at, updated_at`,
		string(status), id)

	job, err := scanLoadJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LoadJob{}, types.ErrNotFound
	}
	if err != nil {
		return types.LoadJob{}, fmt.Errorf("update load job status: %w", err)
	}
	return job, nil
}

// DeleteLoadJob removes a load_jobs row.
func (s *Store) DeleteLoadJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM load_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete load job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete load job: %w", err)
	}
	if affected == 0 {
		return types.ErrNotFound
	}
	return nil
}
