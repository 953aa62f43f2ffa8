package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/gurre/nats3/types"
)

// CreateChunk inserts a chunk row. It rejects an inverted timestamp range
// before issuing the query, and maps a unique-constraint violation on
// (bucket, prefix, key) to ErrDuplicateChunk, per §4.2.
func (s *Store) CreateChunk(ctx context.Context, c types.CreateChunkMetadata) (types.ChunkMetadata, error) {
	if c.TimestampStart.After(c.TimestampEnd) {
		return types.ChunkMetadata{}, &types.ErrInvalidTimestampRange{
			Start: c.TimestampStart.Unix(),
			End:   c.TimestampEnd.Unix(),
		}
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO chunks
		 (bucket, prefix, key, stream, consumer, subject, timestamp_start,
		  timestamp_end, message_count, size_bytes, codec, hash, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING sequence_number, bucket, prefix, key, stream, consumer, subject,
		           timestamp_start, timestamp_end, message_count, size_bytes,
		           codec, hash, version, created_at, deleted_at`,
		c.Bucket, nullString(c.Prefix), c.Key, c.Stream, nullString(c.Consumer), c.Subject,
		c.TimestampStart, c.TimestampEnd, c.MessageCount, c.SizeBytes,
		string(c.Codec), c.Hash[:], c.Version,
	)

	chunk, err := scanChunkRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ChunkMetadata{}, &types.ErrDuplicateChunk{Bucket: c.Bucket, Key: c.Key}
		}
		return types.ChunkMetadata{}, fmt.Errorf("create chunk: %w", err)
	}
	return chunk, nil
}

// GetChunk returns a single chunk row by sequence number.
func (s *Store) GetChunk(ctx context.Context, sequenceNumber int64) (types.ChunkMetadata, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sequence_number, bucket, prefix, key, stream, consumer, subject,
		        timestamp_start, timestamp_end, message_count, size_bytes,
		        codec, hash, version, created_at, deleted_at
		 FROM chunks WHERE sequence_number = $1`, sequenceNumber)

	chunk, err := scanChunkRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ChunkMetadata{}, types.ErrNotFound
	}
	if err != nil {
		return types.ChunkMetadata{}, fmt.Errorf("get chunk: %w", err)
	}
	return chunk, nil
}

// ListChunks builds a dynamic WHERE clause over the required
// (stream, subject, bucket) filter plus optional prefix/consumer/time-window/
// limit/include_deleted, ordered timestamp_start ASC, timestamp_end ASC,
// sequence_number ASC — the load path's replay order.
func (s *Store) ListChunks(ctx context.Context, q types.ListChunksQuery) ([]types.ChunkMetadata, error) {
	sqlStr := `SELECT sequence_number, bucket, prefix, key, stream, consumer, subject,
	                  timestamp_start, timestamp_end, message_count, size_bytes,
	                  codec, hash, version, created_at, deleted_at
	           FROM chunks
	           WHERE stream = $1 AND subject = $2 AND bucket = $3`

	params := []any{q.Stream, q.Subject, q.Bucket}
	paramIdx := 4

	if q.Prefix != "" {
		sqlStr += " AND prefix = $" + strconv.Itoa(paramIdx)
		params = append(params, q.Prefix)
		paramIdx++
	}
	if q.Consumer != "" {
		sqlStr += " AND consumer = $" + strconv.Itoa(paramIdx)
		params = append(params, q.Consumer)
		paramIdx++
	}
	if q.TimestampStart != nil {
		sqlStr += " AND timestamp_start >= $" + strconv.Itoa(paramIdx)
		params = append(params, *q.TimestampStart)
		paramIdx++
	}
	if q.TimestampEnd != nil {
		sqlStr += " AND timestamp_end <= $" + strconv.Itoa(paramIdx)
		params = append(params, *q.TimestampEnd)
		paramIdx++
	}
	if !q.IncludeDeleted {
		sqlStr += " AND deleted_at IS NULL"
	}

	sqlStr += " ORDER BY timestamp_start, timestamp_end, sequence_number"

	if q.Limit != nil {
		sqlStr += " LIMIT $" + strconv.Itoa(paramIdx)
		params = append(params, *q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []types.ChunkMetadata
	for rows.Next() {
		chunk, err := scanChunkRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		result = append(result, chunk)
	}
	return result, rows.Err()
}

// SoftDeleteChunk sets deleted_at = now() and returns the updated row.
func (s *Store) SoftDeleteChunk(ctx context.Context, sequenceNumber int64) (types.ChunkMetadata, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE chunks SET deleted_at = NOW()
		 WHERE sequence_number = $1
		 RETURNING sequence_number, bucket, prefix, key, stream, consumer, subject,
		           timestamp_start, timestamp_end, message_count, size_bytes,
		           codec, hash, version, created_at, deleted_at`, sequenceNumber)

	chunk, err := scanChunkRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ChunkMetadata{}, types.ErrNotFound
	}
	if err != nil {
		return types.ChunkMetadata{}, fmt.Errorf("soft delete chunk: %w", err)
	}
	return chunk, nil
}

// HardDeleteChunk removes a chunk row entirely. Reserved for admin use.
func (s *Store) HardDeleteChunk(ctx context.Context, sequenceNumber int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE sequence_number = $1`, sequenceNumber)
	if err != nil {
		return fmt.Errorf("hard delete chunk: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("hard delete chunk: %w", err)
	}
	if affected == 0 {
		return types.ErrNotFound
	}
	return nil
}
