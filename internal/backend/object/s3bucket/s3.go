// Package s3bucket adapts an AWS S3 bucket to the object cache tier.
package s3bucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/thinktank/tieredcache/internal/backend/object"
)

// Compile-time check that Bucket implements object.Bucket.
var _ object.Bucket = (*Bucket)(nil)

// api is the subset of the S3 client used by Bucket.
type api interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Bucket is an S3-backed object.Bucket.
type Bucket struct {
	client api
	bucket string
}

// settings collects options before the client is built.
type settings struct {
	region   string
	endpoint string
}

// Option configures a Bucket.
type Option func(*settings) error

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(s *settings) error {
		s.region = region
		return nil
	}
}

// WithEndpoint sets a custom endpoint (for S3-compatible services like MinIO).
// Path-style addressing is enabled with it.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) error {
		if endpoint == "" {
			return errors.New("s3bucket: empty endpoint")
		}
		s.endpoint = endpoint
		return nil
	}
}

// New creates a Bucket using the default AWS credential chain.
// The bucket must already exist.
func New(ctx context.Context, bucketName string, opts ...Option) (*Bucket, error) {
	var s settings
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	var loadOpts []func(*config.LoadOptions) error
	if s.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	})
	return &Bucket{client: client, bucket: bucketName}, nil
}

// Name returns "s3".
func (b *Bucket) Name() string {
	return "s3"
}

// Get downloads an object with its metadata.
func (b *Bucket) Get(ctx context.Context, key string) (object.Object, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return object.Object{}, object.ErrObjectNotFound
		}
		return object.Object{}, fmt.Errorf("getting %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return object.Object{}, fmt.Errorf("reading %s: %w", key, err)
	}
	return object.Object{Data: data, Metadata: out.Metadata}, nil
}

// Put uploads an object with its metadata.
func (b *Bucket) Put(ctx context.Context, key string, obj object.Object) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Data),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		Metadata:      obj.Metadata,
	})
	if err != nil {
		return fmt.Errorf("putting %s: %w", key, err)
	}
	return nil
}

// Delete removes an object. S3 reports success for missing keys, so a HEAD
// request decides whether anything was there.
func (b *Bucket) Delete(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", key, err)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", key, err)
	}
	return true, nil
}

// List returns every key under prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Close releases resources.
func (b *Bucket) Close() error {
	// S3 client doesn't need explicit closing.
	return nil
}
