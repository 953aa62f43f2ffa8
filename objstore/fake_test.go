package objstore

import (
	"context"
	"testing"
)

func TestFakeUploadDownloadRoundtrip(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	if err := f.EnsureBucket(ctx, "bucket"); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if err := f.Upload(ctx, "bucket", "key", []byte("payload")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	got, err := f.Download(ctx, "bucket", "key")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Download() = %q want %q", got, "payload")
	}
}

func TestFakeDownloadMissingIsNotFound(t *testing.T) {
	f := NewFake()
	_, err := f.Download(context.Background(), "bucket", "missing")
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound, got %v", err)
	}
}

func TestFakeDeleteThenDownloadNotFound(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	_ = f.Upload(ctx, "b", "k", []byte("x"))
	if err := f.Delete(ctx, "b", "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.Download(ctx, "b", "k"); !IsNotFound(err) {
		t.Errorf("expected IsNotFound after delete, got %v", err)
	}
}
