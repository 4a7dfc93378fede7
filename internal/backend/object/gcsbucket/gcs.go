// Package gcsbucket adapts a Google Cloud Storage bucket to the object
// cache tier.
package gcsbucket

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/thinktank/tieredcache/internal/backend/object"
)

// Compile-time check that Bucket implements object.Bucket.
var _ object.Bucket = (*Bucket)(nil)

// Bucket is a GCS-backed object.Bucket.
type Bucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// New creates a Bucket using application default credentials unless
// client options say otherwise. The bucket must already exist.
func New(ctx context.Context, bucketName string, opts ...option.ClientOption) (*Bucket, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &Bucket{
		client: client,
		bucket: client.Bucket(bucketName),
	}, nil
}

// Name returns "gcs".
func (b *Bucket) Name() string {
	return "gcs"
}

// Get downloads an object with its metadata.
func (b *Bucket) Get(ctx context.Context, key string) (object.Object, error) {
	obj := b.bucket.Object(key)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return object.Object{}, object.ErrObjectNotFound
		}
		return object.Object{}, fmt.Errorf("reading attrs of %s: %w", key, err)
	}

	// Pin the generation so data and metadata come from the same write.
	reader, err := obj.Generation(attrs.Generation).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return object.Object{}, object.ErrObjectNotFound
		}
		return object.Object{}, fmt.Errorf("creating reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return object.Object{}, fmt.Errorf("reading %s: %w", key, err)
	}
	return object.Object{Data: data, Metadata: attrs.Metadata}, nil
}

// Put uploads an object with its metadata.
func (b *Bucket) Put(ctx context.Context, key string, obj object.Object) error {
	writer := b.bucket.Object(key).NewWriter(ctx)
	writer.Metadata = obj.Metadata

	if _, err := writer.Write(obj.Data); err != nil {
		writer.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", key, err)
	}
	return nil
}

// Delete removes an object. GCS reports a missing object, which becomes
// (false, nil).
func (b *Bucket) Delete(ctx context.Context, key string) (bool, error) {
	err := b.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", key, err)
	}
	return true, nil
}

// List returns every key under prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Close releases the client.
func (b *Bucket) Close() error {
	return b.client.Close()
}
