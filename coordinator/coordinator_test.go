package coordinator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gurre/nats3/metadata/memstore"
	"github.com/gurre/nats3/metrics"
	"github.com/gurre/nats3/objstore"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/stream"
	"github.com/gurre/nats3/types"
)

func newCoordinator() (*Coordinator, *registry.Registry) {
	store := memstore.New()
	reg := registry.New(8, nil)
	adapter := stream.NewFakeAdapter()
	objects := objstore.NewFake()
	m := metrics.New(prometheus.NewRegistry())
	return New(store, reg, adapter, objects, m, nil), reg
}

func TestStartNewStoreJobRegistersAndPersistsRunning(t *testing.T) {
	c, reg := newCoordinator()
	ctx := context.Background()

	job, err := c.StartNewStoreJob(ctx, types.CreateStoreJob{
		Name: "job1", Stream: "ORDERS", Subject: "orders.created", Bucket: "bucket",
		Batch: types.Batch{MaxBytes: 1 << 20, MaxCount: 100}, Codec: types.CodecJSON,
	})
	if err != nil {
		t.Fatalf("StartNewStoreJob() error = %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected generated job id")
	}
	if job.Status != types.StatusRunning {
		t.Errorf("Status = %v want Running", job.Status)
	}
	if !reg.IsStoreJobRunning(job.ID) {
		t.Error("expected job registered as running")
	}

	c.StopStoreJob(job.ID)
	c.Wait()
}

func TestSpawnStoreJobDuplicateFailsWithJobAlreadyRunning(t *testing.T) {
	store := memstore.New()
	reg := registry.New(8, nil)
	h, _ := registry.NewHandle(context.Background())
	reg.TryRegisterStoreJob("dup", h)

	adapter := stream.NewFakeAdapter()
	objects := objstore.NewFake()
	m := metrics.New(prometheus.NewRegistry())
	c := New(store, reg, adapter, objects, m, nil)

	_, err := store.CreateStoreJob(context.Background(), types.StoreJob{ID: "dup", Status: types.StatusRunning})
	if err != nil {
		t.Fatalf("CreateStoreJob() error = %v", err)
	}

	_, err = c.spawnStoreJob(context.Background(), types.StoreJob{ID: "dup", Status: types.StatusRunning})
	if err == nil {
		t.Fatal("expected JobAlreadyRunning error")
	}
	if _, ok := err.(*types.ErrJobAlreadyRunning); !ok {
		t.Fatalf("expected ErrJobAlreadyRunning, got %T: %v", err, err)
	}
}

func TestResumeStoreJobTerminalIsNoOp(t *testing.T) {
	c, _ := newCoordinator()
	ctx := context.Background()

	_, err := c.store.CreateStoreJob(ctx, types.StoreJob{ID: "j1", Status: types.StatusSuccess})
	if err != nil {
		t.Fatalf("CreateStoreJob() error = %v", err)
	}

	resumed, err := c.ResumeStoreJob(ctx, "j1")
	if err != nil {
		t.Fatalf("ResumeStoreJob() error = %v", err)
	}
	if resumed.Status != types.StatusSuccess {
		t.Errorf("Status = %v want Success (terminal, sticky)", resumed.Status)
	}
}
