// Package completer runs the single process-wide task that reconciles a
// worker's exit event into a persisted job status, then removes the job from
// the registry. Grounded on the exit-channel select loop this module was
// distilled from.
package completer

import (
	"context"
	"log/slog"

	"github.com/gurre/nats3/metadata"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/types"
)

// Completer drains the registry's shared exit channel and reconciles status.
type Completer struct {
	store    metadata.Store
	registry *registry.Registry
	log      *slog.Logger
}

// New builds a Completer over store and registry.
func New(store metadata.Store, reg *registry.Registry, log *slog.Logger) *Completer {
	if log == nil {
		log = slog.Default()
	}
	return &Completer{store: store, registry: reg, log: log}
}

// Run drains exits until ctx is cancelled, then drains whatever remains in
// the channel buffer before returning.
func (c *Completer) Run(ctx context.Context) {
	exits := c.registry.SubscribeToExits()
	for {
		select {
		case exit, ok := <-exits:
			if !ok {
				return
			}
			c.handleExit(ctx, exit)
		case <-ctx.Done():
			c.drainRemaining(exits)
			return
		}
	}
}

func (c *Completer) drainRemaining(exits <-chan registry.TaskExit) {
	for {
		select {
		case exit, ok := <-exits:
			if !ok {
				return
			}
			c.handleExit(context.Background(), exit)
		default:
			return
		}
	}
}

func (c *Completer) handleExit(ctx context.Context, exit registry.TaskExit) {
	switch exit.Reason {
	case registry.ReasonCompletedOk:
		c.setStatus(ctx, exit, types.StatusSuccess)
	case registry.ReasonCompletedErr:
		c.log.Warn("task failed", "job_id", exit.JobID, "error", exit.Err)
		c.setStatus(ctx, exit, types.StatusFailure)
	case registry.ReasonPaused:
		c.setStatus(ctx, exit, types.StatusPaused)
	case registry.ReasonCancelled:
		// The cancel caller already set the status it intends; leave it
		// unchanged.
		c.log.Debug("task cancelled, skip status update", "job_id", exit.JobID)
	}

	c.registry.Remove(exit.JobID, exit.Kind)
}

func (c *Completer) setStatus(ctx context.Context, exit registry.TaskExit, status types.JobStatus) {
	var err error
	switch exit.Kind {
	case types.JobKindStore:
		_, err = c.store.UpdateStoreJobStatus(ctx, exit.JobID, status)
	case types.JobKindLoad:
		_, err = c.store.UpdateLoadJobStatus(ctx, exit.JobID, status)
	}
	if err != nil {
		c.log.Warn("failed to persist job status", "job_id", exit.JobID, "status", status, "error", err)
	}
}
