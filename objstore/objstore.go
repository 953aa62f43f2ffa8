// Package objstore defines the capability-set interface the store and load
// pipelines use to talk to an S3-compatible object store, plus a concrete
// implementation over the AWS SDK. Capabilities are split the way the
// original AWS client wrappers were (one narrow interface per concern) so
// callers that only read never need to depend on the write path.
package objstore

import (
	"context"
)

// Uploader uploads chunk bodies to the store. The store job's consume
// pipeline depends only on this.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body []byte) error
	EnsureBucket(ctx context.Context, bucket string) error
}

// Downloader reads chunk bodies back from the store. The load job's publish
// pipeline uses it together with Deleter.
type Downloader interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// Deleter removes an object. Used by the publish pipeline, for load jobs with
// delete_chunks set, before the chunk's metadata row is soft-deleted.
type Deleter interface {
	Delete(ctx context.Context, bucket, key string) error
}

// Store is the union of all three, satisfied by the concrete S3 client.
type Store interface {
	Uploader
	Downloader
	Deleter
}
