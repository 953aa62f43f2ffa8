package types

import "fmt"

// ErrNotFound is returned when a job or chunk row does not exist.
var ErrNotFound = fmt.Errorf("not found")

// ErrJobAlreadyRunning is returned by the registry (and surfaced through the
// coordinator as HTTP 409) when a start/resume targets an id with a live worker.
type ErrJobAlreadyRunning struct {
	ID string
}

func (e *ErrJobAlreadyRunning) Error() string {
	return fmt.Sprintf("job already running: %s", e.ID)
}

// ErrDuplicateChunk is returned by the metadata store when the
// (bucket, prefix, key) uniqueness constraint is violated. The consume
// pipeline treats this as a successful flush (idempotent retry).
type ErrDuplicateChunk struct {
	Bucket string
	Key    string
}

func (e *ErrDuplicateChunk) Error() string {
	return fmt.Sprintf("duplicate chunk: bucket=%s key=%s", e.Bucket, e.Key)
}

// ErrInvalidTimestampRange is returned by create_chunk when start > end.
type ErrInvalidTimestampRange struct {
	Start, End int64
}

func (e *ErrInvalidTimestampRange) Error() string {
	return fmt.Sprintf("invalid timestamp range: start=%d end=%d", e.Start, e.End)
}

// ErrBadFormat is returned by chunk.Parse on a magic-number mismatch.
var ErrBadFormat = fmt.Errorf("bad chunk format")

// ErrBadVersion is returned by chunk.Parse on an unrecognized version stamp.
var ErrBadVersion = fmt.Errorf("bad chunk version")

// ErrBadEncoding is returned by chunk.Parse when the codec fails to decode the bytes.
var ErrBadEncoding = fmt.Errorf("bad chunk encoding")
