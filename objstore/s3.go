package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// maxUploadRetries bounds retries for non-throttling failures; throttling
// responses retry until ctx is cancelled.
const maxUploadRetries = 5

// isThrottlingResponse reports whether err is an HTTP 429/503 from the
// object store, the retryable condition S3-compatible backends return under
// load.
func isThrottlingResponse(err error) bool {
	var respErr *smithyhttp.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return respErr.HTTPStatusCode() == 429 || respErr.HTTPStatusCode() == 503
}

// backoffWait sleeps for an exponentially increasing duration with jitter,
// returning false if ctx is cancelled first.
func backoffWait(ctx context.Context, attempt int) bool {
	base := 100 * time.Millisecond
	maxDelay := 30 * time.Second

	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	delay += time.Duration(rand.Int64N(int64(delay) + 1))

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// withRetry retries fn on failure: throttling responses retry indefinitely,
// other errors retry up to maxUploadRetries before giving up.
func withRetry(ctx context.Context, fn func() error) error {
	attempt := 0
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if isThrottlingResponse(err) {
			if !backoffWait(ctx, attempt) {
				return ctx.Err()
			}
			attempt++
			continue
		}
		if attempt < maxUploadRetries {
			if !backoffWait(ctx, attempt) {
				return ctx.Err()
			}
			attempt++
			continue
		}
		return err
	}
}

// Client defines the subset of the AWS SDK's S3 client this package depends
// on, narrowed to the operations the store/load pipelines actually issue.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

// S3Store implements Store against an S3-compatible client.
type S3Store struct {
	client Client
}

var _ Store = (*S3Store)(nil)

// New wraps an AWS SDK S3 client.
func New(client Client) *S3Store {
	return &S3Store{client: client}
}

// Upload writes body to bucket/key, retrying transient and throttling
// failures with exponential backoff.
func (s *S3Store) Upload(ctx context.Context, bucket, key string, body []byte) error {
	err := withRetry(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(body),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// EnsureBucket creates bucket if it does not already exist. Only the store
// path calls this, on first use of a new bucket name; the load path treats a
// missing bucket as an error.
func (s *S3Store) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("head bucket %s: %w", bucket, err)
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// Download reads the full body of bucket/key, retrying transient and
// throttling failures with exponential backoff. A missing key is not
// retried; it is reported immediately via errObjectNotFound.
func (s *S3Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	var notFound bool
	var data []byte
	err := withRetry(ctx, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var noSuchKey *types.NoSuchKey
			if errors.As(err, &noSuchKey) {
				notFound = true
				return nil
			}
			return err
		}
		defer func() { _ = out.Body.Close() }()

		data, err = io.ReadAll(out.Body)
		return err
	})
	if notFound {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, errObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Delete removes bucket/key.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

var errObjectNotFound = errors.New("object not found")

// IsNotFound reports whether err indicates the object does not exist in the
// store, the condition the load pipeline treats as a skip-and-continue per
// the missing-object-with-live-metadata case.
func IsNotFound(err error) bool {
	return errors.Is(err, errObjectNotFound)
}
