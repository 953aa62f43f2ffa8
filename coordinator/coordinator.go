// Package coordinator exposes the public operations that start, pause,
// resume, and stop store and load jobs: persist the intended status, spawn
// or signal the worker, and register it so at most one worker runs per job
// id at a time. Grounded on the worker-pool orchestration shape used for the
// original file-processing pool, generalized from a fixed pool of file
// workers to an open-ended set of job workers spawned and reaped over the
// process lifetime.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gurre/nats3/consume"
	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/metrics"
	"github.com/gurre/nats3/objstore"
	"github.com/gurre/nats3/publish"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/stream"
	"github.com/gurre/nats3/types"
)

// idSource mints strictly-increasing-within-a-millisecond ULIDs. ulid.Make's
// default entropy is not monotonic, and ulid.Monotonic's reader is not safe
// for concurrent use on its own, so access is serialized behind a mutex.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicReader
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)}
}

func (s *idSource) new() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Coordinator owns job lifecycle operations: it is the only writer of
// persisted status besides the completer, and the only spawner of workers.
type Coordinator struct {
	store    metadata.Store
	registry *registry.Registry
	adapter  stream.Adapter
	objects  objstore.Store
	metrics  *metrics.Metrics
	log      *slog.Logger
	ids      *idSource

	wg sync.WaitGroup
}

// New builds a Coordinator.
func New(store metadata.Store, reg *registry.Registry, adapter stream.Adapter, objects objstore.Store, m *metrics.Metrics, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: store, registry: reg, adapter: adapter, objects: objects, metrics: m, log: log, ids: newIDSource()}
}

// Wait blocks until every worker this Coordinator spawned has returned.
// Call before the registry's exit channel is closed: each worker posts its
// exit on that channel as it returns.
func (c *Coordinator) Wait() { c.wg.Wait() }

// StartNewStoreJob inserts a Created row, then transitions it to Running and
// spawns its worker.
func (c *Coordinator) StartNewStoreJob(ctx context.Context, create types.CreateStoreJob) (types.StoreJob, error) {
	job := types.StoreJob{
		ID: c.ids.new(), Name: create.Name, Status: types.StatusCreated,
		Stream: create.Stream, Consumer: create.Consumer, Subject: create.Subject,
		Bucket: create.Bucket, Prefix: create.Prefix, Batch: create.Batch, Codec: create.Codec,
	}
	job, err := c.store.CreateStoreJob(ctx, job)
	if err != nil {
		return types.StoreJob{}, err
	}

	return c.spawnStoreJob(ctx, job)
}

// PauseStoreJob persists Paused and sets the running worker's pause gate.
func (c *Coordinator) PauseStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	job, err := c.store.UpdateStoreJobStatus(ctx, id, types.StatusPaused)
	if err != nil {
		return types.StoreJob{}, err
	}
	c.registry.PauseStoreJob(id)
	return job, nil
}

// ResumeStoreJob is a no-op returning the current row if the job is already
// terminal (Success/Failure are sticky). Otherwise it persists Running and
// either releases a live worker's pause gate or spawns a fresh worker.
func (c *Coordinator) ResumeStoreJob(ctx context.Context, id string) (types.StoreJob, error) {
	current, err := c.store.GetStoreJob(ctx, id)
	if err != nil {
		return types.StoreJob{}, err
	}
	if current.Status.Terminal() {
		return current, nil
	}

	if c.registry.IsStoreJobRunning(id) {
		job, err := c.store.UpdateStoreJobStatus(ctx, id, types.StatusRunning)
		if err != nil {
			return types.StoreJob{}, err
		}
		c.registry.ResumeStoreJob(id)
		return job, nil
	}

	return c.spawnStoreJob(ctx, current)
}

// StopStoreJob signals cancel on the running worker, if any. The completer
// reconciles the persisted status when the worker exits.
func (c *Coordinator) StopStoreJob(id string) {
	c.registry.CancelStoreJob(id)
}

func (c *Coordinator) spawnStoreJob(ctx context.Context, job types.StoreJob) (types.StoreJob, error) {
	handle, workerCtx := registry.NewHandle(context.Background())
	if !c.registry.TryRegisterStoreJob(job.ID, handle) {
		return types.StoreJob{}, &types.ErrJobAlreadyRunning{ID: job.ID}
	}
	c.metrics.JobRegistered(types.JobKindStore)

	job, err := c.store.UpdateStoreJobStatus(ctx, job.ID, types.StatusRunning)
	if err != nil {
		return types.StoreJob{}, err
	}

	cfg := consume.Config{
		JobID: job.ID, Stream: job.Stream, Consumer: job.Consumer, Subject: job.Subject,
		Bucket: job.Bucket, Prefix: job.Prefix, Batch: job.Batch, Codec: job.Codec,
	}
	worker := consume.New(cfg, c.adapter, c.objects, c.store, c.metrics, c.log)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.metrics.JobExited(types.JobKindStore)

		reason, err := worker.Run(workerCtx, handle)
		c.registry.PostExit(registry.TaskExit{
			JobID: job.ID, Kind: types.JobKindStore, Reason: reason, Err: err,
		})
	}()

	return job, nil
}

// StartNewLoadJob inserts a Created row, then transitions it to Running and
// spawns its worker.
func (c *Coordinator) StartNewLoadJob(ctx context.Context, create types.CreateLoadJob) (types.LoadJob, error) {
	job := types.LoadJob{
		ID: c.ids.new(), Status: types.StatusCreated, Bucket: create.Bucket, Prefix: create.Prefix,
		ReadStream: create.ReadStream, ReadConsumer: create.ReadConsumer, ReadSubject: create.ReadSubject,
		WriteSubject: create.WriteSubject, PollInterval: create.PollInterval, DeleteChunks: create.DeleteChunks,
		Start: create.Start, End: create.End,
	}
	job, err := c.store.CreateLoadJob(ctx, job)
	if err != nil {
		return types.LoadJob{}, err
	}

	return c.spawnLoadJob(ctx, job)
}

// PauseLoadJob persists Paused and sets the running worker's pause gate.
func (c *Coordinator) PauseLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	job, err := c.store.UpdateLoadJobStatus(ctx, id, types.StatusPaused)
	if err != nil {
		return types.LoadJob{}, err
	}
	c.registry.PauseLoadJob(id)
	return job, nil
}

// ResumeLoadJob mirrors ResumeStoreJob.
func (c *Coordinator) ResumeLoadJob(ctx context.Context, id string) (types.LoadJob, error) {
	current, err := c.store.GetLoadJob(ctx, id)
	if err != nil {
		return types.LoadJob{}, err
	}
	if current.Status.Terminal() {
		return current, nil
	}

	if c.registry.IsLoadJobRunning(id) {
		job, err := c.store.UpdateLoadJobStatus(ctx, id, types.StatusRunning)
		if err != nil {
			return types.LoadJob{}, err
		}
		c.registry.ResumeLoadJob(id)
		return job, nil
	}

	return c.spawnLoadJob(ctx, current)
}

// StopLoadJob signals cancel on the running worker, if any.
func (c *Coordinator) StopLoadJob(id string) {
	c.registry.CancelLoadJob(id)
}

func (c *Coordinator) spawnLoadJob(ctx context.Context, job types.LoadJob) (types.LoadJob, error) {
	handle, workerCtx := registry.NewHandle(context.Background())
	if !c.registry.TryRegisterLoadJob(job.ID, handle) {
		return types.LoadJob{}, &types.ErrJobAlreadyRunning{ID: job.ID}
	}
	c.metrics.JobRegistered(types.JobKindLoad)

	job, err := c.store.UpdateLoadJobStatus(ctx, job.ID, types.StatusRunning)
	if err != nil {
		return types.LoadJob{}, err
	}

	cfg := publish.Config{
		JobID: job.ID, Bucket: job.Bucket, Prefix: job.Prefix,
		ReadStream: job.ReadStream, ReadConsumer: job.ReadConsumer, ReadSubject: job.ReadSubject,
		WriteSubject: job.WriteSubject, DeleteChunks: job.DeleteChunks, Start: job.Start, End: job.End,
		PollInterval: job.PollInterval,
	}
	worker := publish.New(cfg, c.adapter, c.objects, c.store, c.metrics, c.log)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.metrics.JobExited(types.JobKindLoad)

		reason, err := worker.Run(workerCtx, handle)
		c.registry.PostExit(registry.TaskExit{
			JobID: job.ID, Kind: types.JobKindLoad, Reason: reason, Err: err,
		})
	}()

	return job, nil
}

// DeleteStoreJob cancels a running worker (if any) and drops the persisted
// row. The completer will still reconcile the exit event once the worker
// terminates; remove is idempotent.
func (c *Coordinator) DeleteStoreJob(ctx context.Context, id string) error {
	c.registry.CancelStoreJob(id)
	if err := c.store.DeleteStoreJob(ctx, id); err != nil {
		return fmt.Errorf("delete store job %s: %w", id, err)
	}
	return nil
}

// DeleteLoadJob mirrors DeleteStoreJob.
func (c *Coordinator) DeleteLoadJob(ctx context.Context, id string) error {
	c.registry.CancelLoadJob(id)
	if err := c.store.DeleteLoadJob(ctx, id); err != nil {
		return fmt.Errorf("delete load job %s: %w", id, err)
	}
	return nil
}
