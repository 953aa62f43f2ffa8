package postgres

import (
	"database/sql"
	"time"

	"github.com/gurre/nats3/types"
)

// chunkRow mirrors one row of the chunks table, using sql.Null* for the
// nullable prefix/consumer/deleted_at columns.
type chunkRow struct {
	SequenceNumber int64
	Bucket         string
	Prefix         sql.NullString
	Key            string
	Stream         string
	Consumer       sql.NullString
	Subject        string
	TimestampStart time.Time
	TimestampEnd   time.Time
	MessageCount   int64
	SizeBytes      int64
	Codec          string
	Hash           []byte
	Version        string
	CreatedAt      time.Time
	DeletedAt      sql.NullTime
}

func (r chunkRow) toDomain() types.ChunkMetadata {
	m := types.ChunkMetadata{
		SequenceNumber: r.SequenceNumber,
		Bucket:         r.Bucket,
		Prefix:         r.Prefix.String,
		Key:            r.Key,
		Stream:         r.Stream,
		Consumer:       r.Consumer.String,
		Subject:        r.Subject,
		TimestampStart: r.TimestampStart,
		TimestampEnd:   r.TimestampEnd,
		MessageCount:   r.MessageCount,
		SizeBytes:      r.SizeBytes,
		Codec:          types.Codec(r.Codec),
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
	}
	copy(m.Hash[:], r.Hash)
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		m.DeletedAt = &t
	}
	return m
}

func scanChunkRow(scanner interface{ Scan(...any) error }) (types.ChunkMetadata, error) {
	var r chunkRow
	err := scanner.Scan(
		&r.SequenceNumber, &r.Bucket, &r.Prefix, &r.Key, &r.Stream, &r.Consumer, &r.Subject,
		&r.TimestampStart, &r.TimestampEnd, &r.MessageCount, &r.SizeBytes,
		&r.Codec, &r.Hash, &r.Version, &r.CreatedAt, &r.DeletedAt,
	)
	if err != nil {
		return types.ChunkMetadata{}, err
	}
	return r.toDomain(), nil
}

// storeJobRow mirrors one row of the store_jobs table.
type storeJobRow struct {
	ID            string
	Name          string
	Status        string
	Stream        string
	Consumer      sql.NullString
	Subject       string
	Bucket        string
	Prefix        sql.NullString
	BatchMaxBytes int64
	BatchMaxCount int64
	Codec         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r storeJobRow) toDomain() types.StoreJob {
	return types.StoreJob{
		ID:       r.ID,
		Name:     r.Name,
		Status:   types.JobStatus(r.Status),
		Stream:   r.Stream,
		Consumer: r.Consumer.String,
		Subject:  r.Subject,
		Bucket:   r.Bucket,
		Prefix:   r.Prefix.String,
		Batch: types.Batch{
			MaxBytes: r.BatchMaxBytes,
			MaxCount: r.BatchMaxCount,
		},
		Codec:     types.Codec(r.Codec),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func scanStoreJobRow(scanner interface{ Scan(...any) error }) (types.StoreJob, error) {
	var r storeJobRow
	err := scanner.Scan(
		&r.ID, &r.Name, &r.Status, &r.Stream, &r.Consumer, &r.Subject, &r.Bucket, &r.Prefix,
		&r.BatchMaxBytes, &r.BatchMaxCount, &r.Codec, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return types.StoreJob{}, err
	}
	return r.toDomain(), nil
}

// loadJobRow mirrors one row of the load_jobs table.
type loadJobRow struct {
	ID           string
	Status       string
	Bucket       string
	Prefix       sql.NullString
	ReadStream   string
	ReadConsumer sql.NullString
	ReadSubject  string
	WriteSubject string
	PollInterval sql.NullInt64 // seconds
	DeleteChunks bool
	StartPos     sql.NullInt64
	EndPos       sql.NullInt64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r loadJobRow) toDomain() types.LoadJob {
	job := types.LoadJob{
		ID:           r.ID,
		Status:       types.JobStatus(r.Status),
		Bucket:       r.Bucket,
		Prefix:       r.Prefix.String,
		ReadStream:   r.ReadStream,
		ReadConsumer: r.ReadConsumer.String,
		ReadSubject:  r.ReadSubject,
		WriteSubject: r.WriteSubject,
		DeleteChunks: r.DeleteChunks,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.PollInterval.Valid {
		job.PollInterval = time.Duration(r.PollInterval.Int64) * time.Second
	}
	if r.StartPos.Valid {
		v := r.StartPos.Int64
		job.Start = &v
	}
	if r.EndPos.Valid {
		v := r.EndPos.Int64
		job.End = &v
	}
	return job
}

func scanLoadJobRow(scanner interface{ Scan(...any) error }) (types.LoadJob, error) {
	var r loadJobRow
	err := scanner.Scan(
		&r.ID, &r.Status, &r.Bucket, &r.Prefix, &r.ReadStream, &r.ReadConsumer, &r.ReadSubject,
		&r.WriteSubject, &r.PollInterval, &r.DeleteChunks, &r.StartPos, &r.EndPos, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return types.LoadJob{}, err
	}
	return r.toDomain(), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
