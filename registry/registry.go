// Package registry tracks the set of currently-running store and load jobs,
// one map per job kind guarded by its own lock, the way the coordinator's
// worker-status map was guarded in the source this was distilled from. It
// also fans exit events from every worker into a single channel the
// completer drains.
package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gurre/nats3/types"
)

// ExitReason is the terminal state a worker reports on the exit channel.
type ExitReason int

const (
	// ReasonCompletedOk means the worker finished normally.
	ReasonCompletedOk ExitReason = iota
	// ReasonCompletedErr means the worker stopped on an unrecoverable error.
	ReasonCompletedErr
	// ReasonPaused means the worker stopped because it was paused.
	ReasonPaused
	// ReasonCancelled means the worker stopped because it was cancelled.
	ReasonCancelled
)

// TaskExit is posted by a worker when it terminates.
type TaskExit struct {
	JobID  string
	Kind   types.JobKind
	Reason ExitReason
	Err    error
}

// Handle is what a registered job exposes to the registry: a way to cancel
// it and a gate to pause/resume it. Workers watch the context NewHandle
// returns and block in WaitIfPaused; the coordinator writes via
// Cancel()/Pause()/Resume().
type Handle struct {
	cancel context.CancelFunc
	ctx    context.Context

	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewHandle builds a Handle bound to a cancellable context.
func NewHandle(parent context.Context) (*Handle, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{cancel: cancel, ctx: ctx, resume: make(chan struct{})}, ctx
}

// Cancel signals the worker to stop at its next suspension point.
func (h *Handle) Cancel() { h.cancel() }

// Pause sets the pause gate.
func (h *Handle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
}

// Resume releases the pause gate, waking any worker blocked in WaitIfPaused.
func (h *Handle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.paused {
		return
	}
	h.paused = false
	close(h.resume)
	h.resume = make(chan struct{})
}

// WaitIfPaused blocks the calling worker while the gate is set, releasing
// early if ctx is cancelled. A Cancel always overrides a Pause.
func (h *Handle) WaitIfPaused(ctx context.Context) {
	for {
		h.mu.Lock()
		if !h.paused {
			h.mu.Unlock()
			return
		}
		wake := h.resume
		h.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return
		}
	}
}

// entry is what the registry stores per running job.
type entry struct {
	handle *Handle
}

// Registry owns two maps keyed by job id, one per job kind, each guarded by
// its own lock, plus the shared exit channel every worker posts to.
type Registry struct {
	storeMu   sync.RWMutex
	storeJobs map[string]entry

	loadMu   sync.RWMutex
	loadJobs map[string]entry

	exits chan TaskExit
	log   *slog.Logger
}

// New creates an empty Registry. exitBuffer sizes the shared exit channel;
// workers block posting to it if the completer falls behind.
func New(exitBuffer int, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		storeJobs: make(map[string]entry),
		loadJobs:  make(map[string]entry),
		exits:     make(chan TaskExit, exitBuffer),
		log:       log,
	}
}

// TryRegisterStoreJob registers id if not already running. Returns false if
// id is present; the caller must then abort the worker it just spawned.
func (r *Registry) TryRegisterStoreJob(id string, h *Handle) bool {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()
	if _, ok := r.storeJobs[id]; ok {
		return false
	}
	r.storeJobs[id] = entry{handle: h}
	return true
}

// TryRegisterLoadJob registers id if not already running.
func (r *Registry) TryRegisterLoadJob(id string, h *Handle) bool {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if _, ok := r.loadJobs[id]; ok {
		return false
	}
	r.loadJobs[id] = entry{handle: h}
	return true
}

// IsStoreJobRunning reports whether id has a live registry entry.
func (r *Registry) IsStoreJobRunning(id string) bool {
	r.storeMu.RLock()
	defer r.storeMu.RUnlock()
	_, ok := r.storeJobs[id]
	return ok
}

// IsLoadJobRunning reports whether id has a live registry entry.
func (r *Registry) IsLoadJobRunning(id string) bool {
	r.loadMu.RLock()
	defer r.loadMu.RUnlock()
	_, ok := r.loadJobs[id]
	return ok
}

// CancelStoreJob signals cancel on id's handle, if running.
func (r *Registry) CancelStoreJob(id string) {
	r.storeMu.RLock()
	e, ok := r.storeJobs[id]
	r.storeMu.RUnlock()
	if ok {
		e.handle.Cancel()
	}
}

// CancelLoadJob signals cancel on id's handle, if running.
func (r *Registry) CancelLoadJob(id string) {
	r.loadMu.RLock()
	e, ok := r.loadJobs[id]
	r.loadMu.RUnlock()
	if ok {
		e.handle.Cancel()
	}
}

// PauseStoreJob sets id's pause gate, if running.
func (r *Registry) PauseStoreJob(id string) {
	r.storeMu.RLock()
	e, ok := r.storeJobs[id]
	r.storeMu.RUnlock()
	if ok {
		e.handle.Pause()
	}
}

// ResumeStoreJob releases id's pause gate, if running.
func (r *Registry) ResumeStoreJob(id string) {
	r.storeMu.RLock()
	e, ok := r.storeJobs[id]
	r.storeMu.RUnlock()
	if ok {
		e.handle.Resume()
	}
}

// PauseLoadJob sets id's pause gate, if running.
func (r *Registry) PauseLoadJob(id string) {
	r.loadMu.RLock()
	e, ok := r.loadJobs[id]
	r.loadMu.RUnlock()
	if ok {
		e.handle.Pause()
	}
}

// ResumeLoadJob releases id's pause gate, if running.
func (r *Registry) ResumeLoadJob(id string) {
	r.loadMu.RLock()
	e, ok := r.loadJobs[id]
	r.loadMu.RUnlock()
	if ok {
		e.handle.Resume()
	}
}

// SubscribeToExits returns the single multi-producer, single-consumer
// channel shared across both job kinds; job id is opaque to the consumer.
func (r *Registry) SubscribeToExits() <-chan TaskExit {
	return r.exits
}

// PostExit is called by a worker on termination.
func (r *Registry) PostExit(exit TaskExit) {
	r.exits <- exit
}

// Remove drops id's entry, for the given kind, after the completer has
// processed its exit.
func (r *Registry) Remove(id string, kind types.JobKind) {
	switch kind {
	case types.JobKindStore:
		r.storeMu.Lock()
		delete(r.storeJobs, id)
		r.storeMu.Unlock()
	case types.JobKindLoad:
		r.loadMu.Lock()
		delete(r.loadJobs, id)
		r.loadMu.Unlock()
	}
}

// CloseExits closes the shared exit channel. Call only after every worker
// has been joined, so no PostExit can race a closed channel send.
func (r *Registry) CloseExits() {
	close(r.exits)
}
