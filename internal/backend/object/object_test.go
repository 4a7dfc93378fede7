package object

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thinktank/tieredcache/internal/serializer"
)

// memBucket is an in-memory Bucket.
type memBucket struct {
	mu      sync.Mutex
	objects map[string]Object
	failAll bool
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string]Object)}
}

func (m *memBucket) Name() string { return "mem" }

func (m *memBucket) Get(_ context.Context, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return Object{}, errors.New("bucket offline")
	}
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, ErrObjectNotFound
	}
	return obj, nil
}

func (m *memBucket) Put(_ context.Context, key string, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("bucket offline")
	}
	m.objects[key] = obj
	return nil
}

func (m *memBucket) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return false, errors.New("bucket offline")
	}
	_, ok := m.objects[key]
	delete(m.objects, key)
	return ok, nil
}

func (m *memBucket) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("bucket offline")
	}
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memBucket) Close() error { return nil }

func TestBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	b := New[string](bucket, "docs", serializer.MustNew[string](serializer.FormatJSON, nil), WithPrefix("/cache/"))

	if b.Name() != "mem" {
		t.Errorf("Name() = %q, want %q", b.Name(), "mem")
	}
	if _, ok := b.Get(ctx, "k"); ok {
		t.Error("Get() should return false for missing key")
	}
	if !b.Set(ctx, "k", "v", 0) {
		t.Fatal("Set() = false, want true")
	}
	if got, ok := b.Get(ctx, "k"); !ok || got != "v" {
		t.Errorf("Get() = %q, %v, want v, true", got, ok)
	}

	key := b.Key("k")
	if !strings.HasPrefix(key, "cache/docs/") || !strings.HasSuffix(key, ".json") {
		t.Errorf("Key() = %q, want cache/docs/<hash>.json", key)
	}
	if _, ok := bucket.objects[key].Metadata[MetaExpiresAt]; ok {
		t.Error("entries without ttl should carry no expiry metadata")
	}
}

func TestBackend_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	bucket := newMemBucket()
	b := New[int](bucket, "docs", serializer.MustNew[int](serializer.FormatMsgpack, nil),
		WithClock(func() time.Time { return now }))

	b.Set(ctx, "k", 7, time.Minute)
	if got := bucket.objects[b.Key("k")].Metadata[MetaExpiresAt]; got != "1700000060000" {
		t.Errorf("expiry metadata = %q, want %q", got, "1700000060000")
	}
	if _, ok := b.Get(ctx, "k"); !ok {
		t.Error("Get() before expiry should return true")
	}

	now = now.Add(2 * time.Minute)

	if _, ok := b.Get(ctx, "k"); ok {
		t.Error("Get() after expiry should return false")
	}
	if _, ok := bucket.objects[b.Key("k")]; ok {
		t.Error("expired object should be deleted")
	}
}

func TestBackend_FractionalTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 300*int64(time.Millisecond))
	bucket := newMemBucket()
	b := New[int](bucket, "docs", serializer.MustNew[int](serializer.FormatJSON, nil),
		WithClock(func() time.Time { return now }))

	b.Set(ctx, "short", 1, 500*time.Millisecond)
	if _, ok := b.Get(ctx, "short"); !ok {
		t.Error("Get() right after Set with a sub-second ttl should return true")
	}

	b.Set(ctx, "k", 2, 1500*time.Millisecond)
	now = now.Add(800 * time.Millisecond)
	if _, ok := b.Get(ctx, "k"); !ok {
		t.Error("Get() 0.8s into a 1.5s ttl should return true")
	}
	now = now.Add(700 * time.Millisecond)
	if _, ok := b.Get(ctx, "k"); ok {
		t.Error("Get() once the 1.5s ttl has elapsed should return false")
	}
}

func TestBackend_Delete(t *testing.T) {
	ctx := context.Background()
	b := New[int](newMemBucket(), "docs", serializer.MustNew[int](serializer.FormatJSON, nil))

	if b.Delete(ctx, "never-stored") {
		t.Error("Delete() of never-stored key = true, want false")
	}
	b.Set(ctx, "k", 1, 0)
	if !b.Delete(ctx, "k") {
		t.Error("Delete() of stored key = false, want true")
	}
	if b.Delete(ctx, "k") {
		t.Error("second Delete() = true, want false")
	}
}

func TestBackend_ClearSiblingNamespace(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	ser := serializer.MustNew[int](serializer.FormatJSON, nil)
	app := New[int](bucket, "app", ser)
	v2 := New[int](bucket, "app/v2", ser)

	app.Set(ctx, "k", 1, 0)
	v2.Set(ctx, "k", 2, 0)
	if key := v2.Key("k"); !strings.HasPrefix(key, "app%2Fv2/") {
		t.Errorf("Key() = %q, want the namespace as one escaped segment", key)
	}

	if !app.Clear(ctx) {
		t.Fatal("Clear() = false, want true")
	}
	if got, ok := v2.Get(ctx, "k"); !ok || got != 2 {
		t.Error("Clear() of app must not remove objects of app/v2")
	}
}

func TestBackend_ClearScopedToNamespace(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	ser := serializer.MustNew[int](serializer.FormatJSON, nil)
	docs := New[int](bucket, "docs", ser)
	other := New[int](bucket, "other", ser)

	docs.SetMany(ctx, map[string]int{"a": 1, "b": 2}, 0)
	other.Set(ctx, "a", 3, 0)

	if !docs.Clear(ctx) {
		t.Fatal("Clear() = false, want true")
	}
	if got := docs.GetMany(ctx, []string{"a", "b"}); len(got) != 0 {
		t.Errorf("GetMany() after Clear = %v, want empty", got)
	}
	if got, ok := other.Get(ctx, "a"); !ok || got != 3 {
		t.Error("Clear() must not touch other namespaces")
	}
}

func TestBackend_Failures(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	b := New[int](bucket, "docs", serializer.MustNew[int](serializer.FormatJSON, nil))
	b.Set(ctx, "k", 1, 0)

	bucket.failAll = true

	if _, ok := b.Get(ctx, "k"); ok {
		t.Error("Get() with failing bucket should return false")
	}
	if b.Set(ctx, "k", 2, 0) {
		t.Error("Set() with failing bucket should return false")
	}
	if b.Delete(ctx, "k") {
		t.Error("Delete() with failing bucket should return false")
	}
	if b.Clear(ctx) {
		t.Error("Clear() with failing bucket should return false")
	}
}

func TestBackend_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	b := New[int](bucket, "docs", serializer.MustNew[int](serializer.FormatJSON, nil))
	bucket.objects[b.Key("k")] = Object{Data: []byte("not a number")}

	if _, ok := b.Get(ctx, "k"); ok {
		t.Error("Get() of corrupt payload should return false")
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		input   string
		want    Location
		wantErr bool
	}{
		{"s3://bucket", Location{Scheme: "s3", Bucket: "bucket"}, false},
		{"s3://bucket/a/b/", Location{Scheme: "s3", Bucket: "bucket", Prefix: "a/b/"}, false},
		{"gs://bucket/cache", Location{Scheme: "gs", Bucket: "bucket", Prefix: "cache/"}, false},
		{"http://bucket", Location{}, true},
		{"s3:///path", Location{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLocation(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLocation(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"/a/b/c", "a/b/c/"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizePrefix(tt.input); got != tt.want {
				t.Errorf("NormalizePrefix(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
