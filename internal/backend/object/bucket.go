package object

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by a Bucket when an object does not exist.
var ErrObjectNotFound = errors.New("object: not found")

// Object is a stored payload with its user metadata.
type Object struct {
	Data     []byte
	Metadata map[string]string
}

// Bucket is the minimal blob store the object tier needs.
type Bucket interface {
	// Name identifies the store in logs and metrics (e.g., "s3").
	Name() string
	// Get returns the object at key, or ErrObjectNotFound.
	Get(ctx context.Context, key string) (Object, error)
	// Put creates or replaces the object at key.
	Put(ctx context.Context, key string, obj Object) error
	// Delete removes the object at key and reports whether it existed.
	// A missing object is not an error.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns every key with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Close releases resources held by the bucket.
	Close() error
}
