// Package types holds the data model shared across the job runtime: job
// descriptors, chunk metadata, and the wire-level message shape. It has no
// dependency on transport, storage, or stream code.
package types

import "time"

// JobStatus is the status of a StoreJob or LoadJob.
type JobStatus string

const (
	StatusCreated JobStatus = "created"
	StatusRunning JobStatus = "running"
	StatusPaused  JobStatus = "paused"
	StatusSuccess JobStatus = "success"
	StatusFailure JobStatus = "failure"
)

// Terminal reports whether the status is a sticky terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// JobKind distinguishes a store job from a load job, used where both kinds
// share a code path (the registry, the exit channel, metrics labels).
type JobKind string

const (
	JobKindStore JobKind = "store"
	JobKindLoad  JobKind = "load"
)

// Codec identifies the wire format used to serialize a Chunk.
type Codec string

const (
	CodecJSON   Codec = "json"
	CodecBinary Codec = "binary"
)

// Extension returns the file extension used in an object key for this codec.
func (c Codec) Extension() string {
	if c == CodecBinary {
		return "bin"
	}
	return "json"
}

// Batch bounds how large a single chunk may grow before it is flushed.
type Batch struct {
	MaxBytes int64
	MaxCount int64
}

// StoreJob describes a running or finished store job: stream -> chunk -> S3 -> metadata -> ack.
type StoreJob struct {
	ID        string
	Name      string
	Status    JobStatus
	Stream    string
	Consumer  string // optional, empty if unset
	Subject   string
	Bucket    string
	Prefix    string // optional, empty if unset
	Batch     Batch
	Codec     Codec
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateStoreJob is the input to coordinator.StartNewStoreJob.
type CreateStoreJob struct {
	Name     string
	Stream   string
	Consumer string
	Subject  string
	Bucket   string
	Prefix   string
	Batch    Batch
	Codec    Codec
}

// LoadJob describes a running or finished load job: metadata -> S3 -> verify -> republish.
type LoadJob struct {
	ID            string
	Status        JobStatus
	Bucket        string
	Prefix        string
	ReadStream    string
	ReadConsumer  string
	ReadSubject   string
	WriteSubject  string
	PollInterval  time.Duration // zero means disabled
	DeleteChunks  bool
	Start         *int64 // epoch seconds, optional
	End           *int64 // epoch seconds, optional
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateLoadJob is the input to coordinator.StartNewLoadJob.
type CreateLoadJob struct {
	Bucket       string
	Prefix       string
	ReadStream   string
	ReadConsumer string
	ReadSubject  string
	WriteSubject string
	PollInterval time.Duration
	DeleteChunks bool
	Start        *int64
	End          *int64
}

// ChunkMetadata is the persisted index row for one uploaded chunk.
type ChunkMetadata struct {
	SequenceNumber int64
	Bucket         string
	Prefix         string
	Key            string
	Stream         string
	Consumer       string
	Subject        string
	TimestampStart time.Time
	TimestampEnd   time.Time
	MessageCount   int64
	SizeBytes      int64
	Codec          Codec
	Hash           [32]byte
	Version        string
	CreatedAt      time.Time
	DeletedAt      *time.Time
}

// CreateChunkMetadata is the input to metadata.ChunkStore.CreateChunk.
type CreateChunkMetadata struct {
	Bucket         string
	Prefix         string
	Key            string
	Stream         string
	Consumer       string
	Subject        string
	TimestampStart time.Time
	TimestampEnd   time.Time
	MessageCount   int64
	SizeBytes      int64
	Codec          Codec
	Hash           [32]byte
	Version        string
}

// ListChunksQuery selects chunk rows for the publish pipeline.
type ListChunksQuery struct {
	Stream         string
	Consumer       string // optional filter
	Subject        string
	Bucket         string
	Prefix         string // optional filter
	TimestampStart *time.Time
	TimestampEnd   *time.Time
	Limit          *int64
	IncludeDeleted bool
}

// Message is one stream message, either consumed or about to be published.
type Message struct {
	Subject   string
	Payload   []byte
	Headers   map[string][]string
	Length    int64
	Timestamp time.Time
	Sequence  uint64
}
