package objstore

import (
	"context"
	"sync"
)

// Fake is an in-memory Store used by unit tests and the e2e harness.
type Fake struct {
	mu      sync.RWMutex
	buckets map[string]bool
	objects map[string][]byte
}

var _ Store = (*Fake)(nil)

// NewFake returns an empty Fake store.
func NewFake() *Fake {
	return &Fake{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
	}
}

func objectKey(bucket, key string) string { return bucket + "/" + key }

// Upload stores body under bucket/key.
func (f *Fake) Upload(ctx context.Context, bucket, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	f.objects[objectKey(bucket, key)] = cp
	return nil
}

// EnsureBucket marks bucket as existing.
func (f *Fake) EnsureBucket(ctx context.Context, bucket string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return nil
}

// Download returns the stored body for bucket/key, or errObjectNotFound.
func (f *Fake) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	body, ok := f.objects[objectKey(bucket, key)]
	if !ok {
		return nil, errObjectNotFound
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	return cp, nil
}

// Delete removes bucket/key.
func (f *Fake) Delete(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectKey(bucket, key))
	return nil
}
