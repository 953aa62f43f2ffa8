// Package e2e wires the in-memory metadata store, the fake stream adapter,
// and the fake object store directly through the consume and publish
// workers (bypassing the coordinator's goroutine lifecycle, which is
// exercised separately in package coordinator) to verify the roundtrip and
// idempotence properties from spec.md section 8 end to end.
package e2e

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gurre/nats3/chunk"
	"github.com/gurre/nats3/consume"
	"github.com/gurre/nats3/metadata/memstore"
	"github.com/gurre/nats3/metrics"
	"github.com/gurre/nats3/objstore"
	"github.com/gurre/nats3/publish"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/stream"
	"github.com/gurre/nats3/types"
)

func newHarness() (*memstore.Store, *stream.FakeAdapter, *objstore.Fake, *metrics.Metrics) {
	return memstore.New(), stream.NewFakeAdapter(), objstore.NewFake(), metrics.New(prometheus.NewRegistry())
}

// runStoreJob drives one consume.Worker to completion (or cancellation) and
// returns once it exits.
func runStoreJob(t *testing.T, cfg consume.Config, adapter *stream.FakeAdapter, objects *objstore.Fake, store *memstore.Store, m *metrics.Metrics, duration time.Duration) {
	t.Helper()
	w := consume.New(cfg, adapter, objects, store, m, nil)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()
	handle, _ := registry.NewHandle(ctx)

	if _, err := w.Run(ctx, handle); err != nil {
		t.Fatalf("consume.Worker.Run() error = %v", err)
	}
}

// runLoadJob drives one publish.Worker to completion.
func runLoadJob(t *testing.T, cfg publish.Config, adapter *stream.FakeAdapter, objects *objstore.Fake, store *memstore.Store, m *metrics.Metrics) {
	t.Helper()
	w := publish.New(cfg, adapter, objects, store, m, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	handle, _ := registry.NewHandle(ctx)

	reason, err := w.Run(ctx, handle)
	if err != nil {
		t.Fatalf("publish.Worker.Run() error = %v", err)
	}
	if reason != registry.ReasonCompletedOk {
		t.Fatalf("reason = %v want CompletedOk", reason)
	}
}

// TestSmallRoundtripPreservesOrderAndHeaders covers scenario (a): 100
// messages of 1024 bytes each with a monotonically increasing
// msg-sequence header, store then load, expect all N payloads back in
// order with headers intact.
func TestSmallRoundtripPreservesOrderAndHeaders(t *testing.T) {
	store, adapter, objects, m := newHarness()

	const n = 100
	payload := make([]byte, 1024)
	for i := 0; i < n; i++ {
		headers := map[string][]string{"msg-sequence": {fmt.Sprintf("%d", i)}}
		adapter.Seed("orders.created", payload, headers)
	}

	storeCfg := consume.Config{
		JobID: "s1", Stream: "ORDERS", Subject: "orders.created", Bucket: "bucket",
		Batch: types.Batch{MaxBytes: 1 << 20, MaxCount: 1000}, Codec: types.CodecJSON,
		KeepAliveInterval: time.Hour, BatchWait: 200 * time.Millisecond,
	}
	runStoreJob(t, storeCfg, adapter, objects, store, m, time.Second)

	rows, err := store.ListChunks(context.Background(), types.ListChunksQuery{
		Stream: "ORDERS", Subject: "orders.created", Bucket: "bucket",
	})
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected at least one chunk")
	}

	loadCfg := publish.Config{
		JobID: "l1", Bucket: "bucket", ReadStream: "ORDERS", ReadSubject: "orders.created",
		WriteSubject: "orders.replayed",
	}
	runLoadJob(t, loadCfg, adapter, objects, store, m)

	published := adapter.Published()
	if len(published) != n {
		t.Fatalf("published %d messages, want %d", len(published), n)
	}
	for i, msg := range published {
		want := fmt.Sprintf("%d", i)
		got := ""
		if vs := msg.Headers["msg-sequence"]; len(vs) > 0 {
			got = vs[0]
		}
		if got != want {
			t.Fatalf("message %d: msg-sequence header = %q, want %q (order not preserved)", i, got, want)
		}
	}
}

// TestDuplicateKeyFlushIsIdempotent covers the store side of scenario (d): a
// second CreateChunk for an already-recorded (bucket,key) reports
// *types.ErrDuplicateChunk, the error consume's flush treats as a successful
// flush, and exactly one metadata row remains.
func TestDuplicateKeyFlushIsIdempotent(t *testing.T) {
	store, objects := memstore.New(), objstore.NewFake()

	msgs := []types.Message{
		{Subject: "orders.created", Payload: []byte("one"), Timestamp: time.Unix(1, 0)},
	}

	create := types.CreateChunkMetadata{
		Bucket: "bucket", Key: "orders/orders.created/1-1.json", Stream: "ORDERS",
		Subject: "orders.created", TimestampStart: msgs[0].Timestamp, TimestampEnd: msgs[0].Timestamp,
		MessageCount: 1, Codec: types.CodecJSON,
	}

	if err := objects.Upload(context.Background(), "bucket", create.Key, []byte("sealed-bytes")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := store.CreateChunk(context.Background(), create); err != nil {
		t.Fatalf("first CreateChunk() error = %v", err)
	}

	// Simulate the retry after a crash between upload and the first
	// metadata insert's acknowledgement reaching the worker: the same
	// (bucket, key) is inserted again.
	_, err := store.CreateChunk(context.Background(), create)
	if err == nil {
		t.Fatal("expected second CreateChunk for the same key to report Duplicate")
	}
	if _, ok := err.(*types.ErrDuplicateChunk); !ok {
		t.Fatalf("expected *types.ErrDuplicateChunk, got %T: %v", err, err)
	}

	rows, err := store.ListChunks(context.Background(), types.ListChunksQuery{
		Stream: "ORDERS", Subject: "orders.created", Bucket: "bucket",
	})
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one metadata row after the duplicate retry, got %d", len(rows))
	}
}

// TestHashMismatchSkipsOnlyTheCorruptChunk covers scenario (e): corrupting
// one chunk's object bytes after store but before load means that chunk is
// not republished, while sibling chunks still are, and the job still ends
// in CompletedOk (a skip is not a failure).
func TestHashMismatchSkipsOnlyTheCorruptChunk(t *testing.T) {
	store, adapter, objects, m := newHarness()

	good := []types.Message{{Subject: "orders.created", Payload: []byte("good"), Timestamp: time.Unix(1, 0)}}
	bad := []types.Message{{Subject: "orders.created", Payload: []byte("bad"), Timestamp: time.Unix(2, 0)}}

	seal := func(msgs []types.Message) string {
		sealed, err := chunk.Seal(msgs)
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		encoded, err := chunk.Serialize(sealed, types.CodecJSON)
		if err != nil {
			t.Fatalf("Serialize() error = %v", err)
		}
		key := chunk.Key(sealed, types.CodecJSON)
		path := chunk.Path("", "ORDERS", "orders.created", key)
		if err := objects.Upload(context.Background(), "bucket", path, encoded); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		meta := chunk.ToChunkMetadata(sealed, types.CodecJSON, "bucket", "", key, "ORDERS", "", "orders.created", int64(len(encoded)))
		if _, err := store.CreateChunk(context.Background(), meta); err != nil {
			t.Fatalf("CreateChunk() error = %v", err)
		}
		return path
	}

	seal(good)
	badPath := seal(bad)

	// Corrupt the bad chunk's object bytes in place.
	corrupted, err := objects.Download(context.Background(), "bucket", badPath)
	if err != nil {
		t.Fatalf("download to corrupt: %v", err)
	}
	corrupted[len(corrupted)-1] ^= 0xFF
	if err := objects.Upload(context.Background(), "bucket", badPath, corrupted); err != nil {
		t.Fatalf("re-upload corrupted: %v", err)
	}

	loadCfg := publish.Config{
		JobID: "l1", Bucket: "bucket", ReadStream: "ORDERS", ReadSubject: "orders.created",
		WriteSubject: "orders.replayed",
	}
	runLoadJob(t, loadCfg, adapter, objects, store, m)

	published := adapter.Published()
	if len(published) != 1 {
		t.Fatalf("published %d messages, want 1 (only the uncorrupted chunk)", len(published))
	}
	if string(published[0].Payload) != "good" {
		t.Errorf("published payload = %q, want %q", published[0].Payload, "good")
	}
}
