package publish

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gurre/nats3/chunk"
	"github.com/gurre/nats3/metadata/memstore"
	"github.com/gurre/nats3/metrics"
	"github.com/gurre/nats3/objstore"
	"github.com/gurre/nats3/registry"
	"github.com/gurre/nats3/stream"
	"github.com/gurre/nats3/types"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// seedChunk seals msgs, uploads the encoded bytes at the full object path
// the way consume.Worker.flush does (prefix/stream/subject/key), and records
// a metadata row holding the bare key, mirroring the split between
// row.Key and the reconstructed path that publish.Worker.processChunk
// expects.
func seedChunk(t *testing.T, store *memstore.Store, objects *objstore.Fake, bucket string, msgs []types.Message) {
	t.Helper()
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
	if err := objects.Upload(context.Background(), bucket, path, encoded); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	create := chunk.ToChunkMetadata(sealed, types.CodecJSON, bucket, "", key, "ORDERS", "", "orders.created", int64(len(encoded)))
	if _, err := store.CreateChunk(context.Background(), create); err != nil {
		t.Fatalf("CreateChunk() error = %v", err)
	}
}

func TestRunRepublishesAllMessages(t *testing.T) {
	store := memstore.New()
	objects := objstore.NewFake()
	adapter := stream.NewFakeAdapter()

	msgs := []types.Message{
		{Subject: "orders.created", Payload: []byte("one"), Timestamp: time.Unix(1, 0)},
		{Subject: "orders.created", Payload: []byte("two"), Timestamp: time.Unix(2, 0)},
	}
	seedChunk(t, store, objects, "bucket", msgs)

	cfg := Config{
		JobID:        "l1",
		Bucket:       "bucket",
		ReadStream:   "ORDERS",
		ReadSubject:  "orders.created",
		WriteSubject: "orders.replayed",
	}
	w := New(cfg, adapter, objects, store, newTestMetrics(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	handle, _ := registry.NewHandle(ctx)

	reason, err := w.Run(ctx, handle)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != registry.ReasonCompletedOk {
		t.Errorf("reason = %v want CompletedOk", reason)
	}

	published := adapter.Published()
	if len(published) != 2 {
		t.Fatalf("published %d messages, want 2", len(published))
	}
	if string(published[0].Payload) != "one" || string(published[1].Payload) != "two" {
		t.Errorf("unexpected payload order: %v", published)
	}
}

func TestRunDeleteChunksSoftDeletesMetadataAfterObjectDelete(t *testing.T) {
	store := memstore.New()
	objects := objstore.NewFake()
	adapter := stream.NewFakeAdapter()

	msgs := []types.Message{{Subject: "orders.created", Payload: []byte("x"), Timestamp: time.Unix(1, 0)}}
	seedChunk(t, store, objects, "bucket", msgs)

	cfg := Config{
		JobID:        "l1",
		Bucket:       "bucket",
		ReadStream:   "ORDERS",
		ReadSubject:  "orders.created",
		WriteSubject: "orders.replayed",
		DeleteChunks: true,
	}
	w := New(cfg, adapter, objects, store, newTestMetrics(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	handle, _ := registry.NewHandle(ctx)

	if _, err := w.Run(ctx, handle); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows, err := store.ListChunks(context.Background(), types.ListChunksQuery{
		Stream: "ORDERS", Subject: "orders.created", Bucket: "bucket",
	})
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(rows) != 0 {
		t.Error("expected soft-deleted chunk to be hidden from default list")
	}

	if _, err := objects.Download(context.Background(), "bucket", "ORDERS/orders.created/1-1.json"); !objstore.IsNotFound(err) {
		t.Errorf("expected object deleted, got err=%v", err)
	}
}

func TestRunWithPollIntervalRepeatsUntilCancelled(t *testing.T) {
	store := memstore.New()
	objects := objstore.NewFake()
	adapter := stream.NewFakeAdapter()

	msgs := []types.Message{{Subject: "orders.created", Payload: []byte("x"), Timestamp: time.Unix(1, 0)}}
	seedChunk(t, store, objects, "bucket", msgs)

	cfg := Config{
		JobID:        "l1",
		Bucket:       "bucket",
		ReadStream:   "ORDERS",
		ReadSubject:  "orders.created",
		WriteSubject: "orders.replayed",
		PollInterval: 10 * time.Millisecond,
	}
	w := New(cfg, adapter, objects, store, newTestMetrics(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	handle, _ := registry.NewHandle(ctx)

	reason, err := w.Run(ctx, handle)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != registry.ReasonCancelled {
		t.Errorf("reason = %v want Cancelled", reason)
	}

	// The same chunk is still live (no delete_chunks), so each pass
	// republishes it again; with a 10ms interval over a 50ms window we
	// expect more than one pass to have completed.
	if len(adapter.Published()) < 2 {
		t.Errorf("published %d messages across passes, want at least 2", len(adapter.Published()))
	}
}

func TestRunSkipsMissingObject(t *testing.T) {
	store := memstore.New()
	objects := objstore.NewFake()
	adapter := stream.NewFakeAdapter()

	create := types.CreateChunkMetadata{
		Bucket: "bucket", Key: "missing.json", Stream: "ORDERS", Subject: "orders.created",
		TimestampStart: time.Unix(1, 0), TimestampEnd: time.Unix(2, 0), Codec: types.CodecJSON,
	}
	if _, err := store.CreateChunk(context.Background(), create); err != nil {
		t.Fatalf("CreateChunk() error = %v", err)
	}

	cfg := Config{
		JobID: "l1", Bucket: "bucket", ReadStream: "ORDERS", ReadSubject: "orders.created",
		WriteSubject: "orders.replayed",
	}
	w := New(cfg, adapter, objects, store, newTestMetrics(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	handle, _ := registry.NewHandle(ctx)

	reason, err := w.Run(ctx, handle)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reason != registry.ReasonCompletedOk {
		t.Errorf("reason = %v want CompletedOk", reason)
	}
	if len(adapter.Published()) != 0 {
		t.Error("expected no messages published for a missing object")
	}
}
