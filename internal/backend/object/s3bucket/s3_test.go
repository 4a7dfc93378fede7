package s3bucket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/thinktank/tieredcache/internal/backend/object"
)

// fakeS3 is an in-memory stand-in for the S3 API.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
	pageSize int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
		pageSize: 2,
	}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(data)),
		Metadata: f.metadata[aws.ToString(in.Key)],
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: f.metadata[aws.ToString(in.Key)]}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.metadata[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	delete(f.metadata, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestBucket_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	b := &Bucket{client: newFakeS3(), bucket: "cache"}

	if _, err := b.Get(ctx, "missing"); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrObjectNotFound", err)
	}

	obj := object.Object{Data: []byte("payload"), Metadata: map[string]string{"expires-at": "10"}}
	if err := b.Put(ctx, "k", obj); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != "payload" {
		t.Errorf("Get().Data = %q, want %q", got.Data, "payload")
	}
	if got.Metadata["expires-at"] != "10" {
		t.Errorf("Get().Metadata = %v, want expires-at=10", got.Metadata)
	}

	existed, err := b.Delete(ctx, "k")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !existed {
		t.Error("Delete() of stored object reported nothing removed")
	}
	if _, err := b.Get(ctx, "k"); !errors.Is(err, object.ErrObjectNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrObjectNotFound", err)
	}

	existed, err = b.Delete(ctx, "k")
	if err != nil {
		t.Fatalf("Delete() of missing object error = %v", err)
	}
	if existed {
		t.Error("Delete() of missing object = true, want false")
	}
}

func TestBucket_ListPaginates(t *testing.T) {
	ctx := context.Background()
	b := &Bucket{client: newFakeS3(), bucket: "cache"}

	for _, k := range []string{"ns/a", "ns/b", "ns/c", "ns/d", "ns/e", "other/a"} {
		if err := b.Put(ctx, k, object.Object{Data: []byte(k)}); err != nil {
			t.Fatalf("Put(%s) error = %v", k, err)
		}
	}

	keys, err := b.List(ctx, "ns/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 5 {
		t.Errorf("List() returned %d keys, want 5: %v", len(keys), keys)
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "ns/") {
			t.Errorf("List() returned %q outside prefix", k)
		}
	}
}

func TestBucket_NameClose(t *testing.T) {
	b := &Bucket{client: newFakeS3(), bucket: "cache"}
	if b.Name() != "s3" {
		t.Errorf("Name() = %q, want %q", b.Name(), "s3")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWithEndpoint_Empty(t *testing.T) {
	var s settings
	if err := WithEndpoint("")(&s); err == nil {
		t.Error("WithEndpoint(\"\") should return error")
	}
	if err := WithEndpoint("http://localhost:9000")(&s); err != nil {
		t.Fatalf("WithEndpoint() error = %v", err)
	}
	if s.endpoint != "http://localhost:9000" {
		t.Errorf("endpoint = %q, want %q", s.endpoint, "http://localhost:9000")
	}
}

func TestWithRegion(t *testing.T) {
	var s settings
	if err := WithRegion("eu-west-1")(&s); err != nil {
		t.Fatalf("WithRegion() error = %v", err)
	}
	if s.region != "eu-west-1" {
		t.Errorf("region = %q, want %q", s.region, "eu-west-1")
	}
}
