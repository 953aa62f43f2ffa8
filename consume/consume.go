// Package consume drives one store job: buffer incoming stream messages into
// size/count-bounded batches, seal each batch into a chunk, upload it, record
// its metadata, and ack only once both writes land. Grounded on the
// three-way-select worker loop pattern used for the teacher's task pool,
// generalized to the message/timer/cancel select this job actually needs.
package consume

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gurre/nats3/chunk"
	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/metrics"
	"github.com/gurre/nats3/objstore"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/stream"
	"github.com/gurre/nats3/types"
)

const (
	// KeepAliveInterval is how often the keep-alive subtask progress-acks the
	// current buffer contents, extending the broker's redelivery timer.
	KeepAliveInterval = 10 * time.Second
	// BatchWait bounds how long a partially-filled batch waits before it is
	// flushed regardless of size.
	BatchWait = 10 * time.Second
	// MaxAckPending bounds in-flight unacked messages for the durable
	// consumer this pipeline opens.
	MaxAckPending = 1024
)

// Config parameterizes one store job's worker.
type Config struct {
	JobID    string
	Stream   string
	Consumer string
	Subject  string
	Bucket   string
	Prefix   string
	Batch    types.Batch
	Codec    types.Codec

	// KeepAliveInterval and BatchWait override the package defaults; zero
	// means use KeepAliveInterval/BatchWait. Tests shrink these so they don't
	// block on the production 10s values.
	KeepAliveInterval time.Duration
	BatchWait         time.Duration
}

// buffer holds the messages accumulated toward the next flush.
type buffer struct {
	mu       sync.RWMutex
	messages []*stream.Message
	bytes    int64
}

func (b *buffer) append(m *stream.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, m)
	b.bytes += m.Length
}

func (b *buffer) snapshot() []*stream.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*stream.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

func (b *buffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
	b.bytes = 0
}

func (b *buffer) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}

func (b *buffer) size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bytes
}

// Worker runs one store job's consume pipeline.
type Worker struct {
	cfg     Config
	adapter stream.Adapter
	objects objstore.Uploader
	store   metadata.ChunkStore
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New builds a consume Worker.
func New(cfg Config, adapter stream.Adapter, objects objstore.Uploader, store metadata.ChunkStore, m *metrics.Metrics, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = KeepAliveInterval
	}
	if cfg.BatchWait == 0 {
		cfg.BatchWait = BatchWait
	}
	return &Worker{cfg: cfg, adapter: adapter, objects: objects, store: store, metrics: m, log: log}
}

// Run executes the worker loop until ctx is cancelled or an unrecoverable
// error occurs, returning the reason the completer should reconcile.
func (w *Worker) Run(ctx context.Context, handle *registry.Handle) (registry.ExitReason, error) {
	consumer, err := w.adapter.Consume(ctx, w.cfg.Stream, w.cfg.Subject, MaxAckPending)
	if err != nil {
		return registry.ReasonCompletedErr, err
	}
	defer func() { _ = consumer.Close() }()

	if err := w.objects.EnsureBucket(ctx, w.cfg.Bucket); err != nil {
		return registry.ReasonCompletedErr, err
	}

	buf := &buffer{}

	keepAliveCtx, stopKeepAlive := context.WithCancel(ctx)
	defer stopKeepAlive()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.keepAlive(keepAliveCtx, buf)
	}()
	defer wg.Wait()

	timer := time.NewTimer(w.cfg.BatchWait)
	defer timer.Stop()

	messages := make(chan *stream.Message)
	fetchErrs := make(chan error, 1)
	go w.fetchLoop(ctx, consumer, messages, fetchErrs)

	for {
		handle.WaitIfPaused(ctx)

		select {
		case msg, ok := <-messages:
			if !ok {
				return registry.ReasonCompletedOk, nil
			}
			buf.append(msg)
			w.metrics.RecordConsumed(w.cfg.JobID, msg.Length)
			if buf.len() >= int(w.cfg.Batch.MaxCount) || buf.size() >= w.cfg.Batch.MaxBytes {
				if err := w.flush(ctx, buf); err != nil {
					w.log.Warn("flush failed, batch will be redelivered", "job_id", w.cfg.JobID, "error", err)
					w.metrics.RecordError(w.cfg.JobID, "flush")
				} else {
					resetTimer(timer, w.cfg.BatchWait)
				}
			}

		case <-timer.C:
			if buf.len() > 0 {
				if err := w.flush(ctx, buf); err != nil {
					w.log.Warn("flush failed, batch will be redelivered", "job_id", w.cfg.JobID, "error", err)
					w.metrics.RecordError(w.cfg.JobID, "flush")
				}
			}
			resetTimer(timer, w.cfg.BatchWait)

		case err := <-fetchErrs:
			return registry.ReasonCompletedErr, err

		case <-ctx.Done():
			return registry.ReasonCancelled, nil
		}
	}
}

// fetchLoop pulls messages one at a time and forwards them on messages,
// translating the consumer's blocking Next into a channel the main select
// can wait on alongside the timer and cancel signal.
func (w *Worker) fetchLoop(ctx context.Context, consumer stream.Consumer, out chan<- *stream.Message, errs chan<- error) {
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}
		if msg == nil {
			// No message available this poll; back off briefly rather than
			// busy-spinning on the fetch call.
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// keepAlive progress-acks the current buffer contents every KeepAliveInterval,
// taking only a read lock so it never blocks the worker appending to it.
func (w *Worker) keepAlive(ctx context.Context, buf *buffer) {
	ticker := time.NewTicker(w.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, msg := range buf.snapshot() {
				if err := msg.AckProgress(); err != nil {
					w.log.Debug("ack_progress failed", "job_id", w.cfg.JobID, "error", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// flush seals the buffer into a chunk, uploads it, records its metadata, and
// only then acks every message in the batch. Failure at any write leaves the
// batch unacked for redelivery; a Duplicate metadata insert is success.
func (w *Worker) flush(ctx context.Context, buf *buffer) error {
	msgs := buf.snapshot()
	if len(msgs) == 0 {
		return nil
	}

	domainMsgs := make([]types.Message, len(msgs))
	for i, m := range msgs {
		domainMsgs[i] = types.Message{
			Subject:   m.Subject,
			Payload:   m.Payload,
			Headers:   m.Headers,
			Length:    m.Length,
			Timestamp: m.Time,
			Sequence:  m.Seq,
		}
	}

	sealed, err := chunk.Seal(domainMsgs)
	if err != nil {
		return err
	}

	encoded, err := chunk.Serialize(sealed, w.cfg.Codec)
	if err != nil {
		return err
	}

	key := chunk.Key(sealed, w.cfg.Codec)
	path := chunk.Path(w.cfg.Prefix, w.cfg.Stream, w.cfg.Subject, key)

	if err := w.objects.Upload(ctx, w.cfg.Bucket, path, encoded); err != nil {
		return err
	}

	create := chunk.ToChunkMetadata(sealed, w.cfg.Codec, w.cfg.Bucket, w.cfg.Prefix, key, w.cfg.Stream, w.cfg.Consumer, w.cfg.Subject, int64(len(encoded)))
	if _, err := w.store.CreateChunk(ctx, create); err != nil {
		if _, ok := err.(*types.ErrDuplicateChunk); !ok {
			return err
		}
		// The bucket/key is already durably recorded by a prior attempt;
		// treat as success and proceed to ack.
	}

	for _, msg := range msgs {
		if err := msg.Ack(); err != nil {
			w.log.Warn("ack failed after durable write", "job_id", w.cfg.JobID, "error", err)
		}
	}

	w.metrics.RecordChunkSealed(w.cfg.JobID)
	buf.reset()
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
