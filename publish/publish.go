// Package publish drives one load job: query the metadata index for chunks
// matching the job's filter, download and verify each, republish its
// messages to the target subject, and optionally tombstone it. Grounded on
// the same worker-loop shape as the consume pipeline, without the batching
// concerns that pipeline owns.
package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/gurre/nats3/chunk"
	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/metrics"
	"github.com/gurre/nats3/objstore"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/stream"
	"github.com/gurre/nats3/types"
)

// Config parameterizes one load job's worker.
type Config struct {
	JobID        string
	Bucket       string
	Prefix       string
	ReadStream   string
	ReadConsumer string
	ReadSubject  string
	WriteSubject string
	DeleteChunks bool
	Start        *int64
	End          *int64
	// PollInterval, if nonzero, makes Run repeat the list-and-republish pass
	// forever instead of returning after the first pass exhausts the
	// matching chunks. Zero disables polling (the job runs once and exits).
	PollInterval time.Duration
}

// Worker runs one load job's publish pipeline.
type Worker struct {
	cfg     Config
	adapter stream.Publisher
	objects objstore.Store
	store   metadata.ChunkStore
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New builds a publish Worker.
func New(cfg Config, adapter stream.Publisher, objects objstore.Store, store metadata.ChunkStore, m *metrics.Metrics, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{cfg: cfg, adapter: adapter, objects: objects, store: store, metrics: m, log: log}
}

// Run executes the worker's query→download→verify→republish loop. With
// PollInterval unset, it returns once every matching chunk has been
// processed; with it set, it repeats the pass indefinitely until ctx is
// cancelled, sleeping PollInterval between passes.
func (w *Worker) Run(ctx context.Context, handle *registry.Handle) (registry.ExitReason, error) {
	for {
		reason, err := w.runOnce(ctx, handle)
		if err != nil || reason == registry.ReasonCancelled || w.cfg.PollInterval <= 0 {
			return reason, err
		}

		handle.WaitIfPaused(ctx)
		select {
		case <-ctx.Done():
			return registry.ReasonCancelled, nil
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// runOnce performs a single list-and-republish pass over every chunk
// currently matching the job's filter.
func (w *Worker) runOnce(ctx context.Context, handle *registry.Handle) (registry.ExitReason, error) {
	query := types.ListChunksQuery{
		Stream:         w.cfg.ReadStream,
		Consumer:       w.cfg.ReadConsumer,
		Subject:        w.cfg.ReadSubject,
		Bucket:         w.cfg.Bucket,
		Prefix:         w.cfg.Prefix,
		IncludeDeleted: false,
	}
	if w.cfg.Start != nil {
		t := time.Unix(*w.cfg.Start, 0).UTC()
		query.TimestampStart = &t
	}
	if w.cfg.End != nil {
		t := time.Unix(*w.cfg.End, 0).UTC()
		query.TimestampEnd = &t
	}

	rows, err := w.store.ListChunks(ctx, query)
	if err != nil {
		return registry.ReasonCompletedErr, err
	}

	for _, row := range rows {
		handle.WaitIfPaused(ctx)

		select {
		case <-ctx.Done():
			return registry.ReasonCancelled, nil
		default:
		}

		if err := w.processChunk(ctx, handle, row); err != nil {
			if ctx.Err() != nil {
				return registry.ReasonCancelled, nil
			}
			w.log.Warn("chunk processing error, continuing", "job_id", w.cfg.JobID, "sequence_number", row.SequenceNumber, "error", err)
			w.metrics.RecordError(w.cfg.JobID, "process_chunk")
		}
	}

	return registry.ReasonCompletedOk, nil
}

// processChunk downloads, verifies, and republishes a single chunk,
// tombstoning it afterward when the job's delete_chunks flag is set. The
// metadata row stores the bare object key; the full path is reconstructed
// the same way consume built it at upload time.
func (w *Worker) processChunk(ctx context.Context, handle *registry.Handle, row types.ChunkMetadata) error {
	path := chunk.Path(row.Prefix, row.Stream, row.Subject, row.Key)

	body, err := w.objects.Download(ctx, row.Bucket, path)
	if err != nil {
		if objstore.IsNotFound(err) {
			w.log.Warn("object missing for live metadata row, skipping", "job_id", w.cfg.JobID, "key", row.Key)
			return nil
		}
		return err
	}

	parsed, err := chunk.Parse(body, row.Codec)
	if err != nil {
		return err
	}

	if !chunk.Verify(parsed) {
		w.log.Warn("hash mismatch, skipping chunk", "job_id", w.cfg.JobID, "key", row.Key)
		return nil
	}

	for _, msg := range parsed.Block.Messages {
		handle.WaitIfPaused(ctx)
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := w.adapter.Publish(ctx, w.cfg.WriteSubject, msg.Payload, msg.Headers); err != nil {
			return err
		}
		w.metrics.RecordPublished(w.cfg.JobID, msg.Length)
	}

	if w.cfg.DeleteChunks {
		if err := w.objects.Delete(ctx, row.Bucket, path); err != nil {
			w.log.Warn("delete object failed, leaving metadata row live", "job_id", w.cfg.JobID, "key", row.Key, "error", err)
			return nil
		}
		if _, err := w.store.SoftDeleteChunk(ctx, row.SequenceNumber); err != nil {
			w.log.Warn("soft delete metadata failed after object delete", "job_id", w.cfg.JobID, "sequence_number", row.SequenceNumber, "error", err)
		}
	}

	return nil
}
