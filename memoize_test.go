package tieredcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thinktank/tieredcache/internal/config"
)

var errBoom = errors.New("boom")

// square counts its invocations so tests can tell hits from calls.
type square struct {
	calls atomic.Int32
}

func (s *square) fn(_ context.Context, args ...any) (int, error) {
	s.calls.Add(1)
	n := args[0].(int)
	return n * n, nil
}

func TestMemoize_CallsOncePerArgs(t *testing.T) {
	reg, err := NewRegistry[int](singleSettings())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defer reg.Close()

	sq := &square{}
	f := Memoize(reg, sq.fn, WithMemoNamespace("squares"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := f(ctx, 4)
		if err != nil || v != 16 {
			t.Fatalf("f(4) = %d, %v, want 16, nil", v, err)
		}
	}
	if got := sq.calls.Load(); got != 1 {
		t.Errorf("calls after repeated args = %d, want 1", got)
	}

	if v, _ := f(ctx, 5); v != 25 {
		t.Errorf("f(5) = %d, want 25", v)
	}
	if got := sq.calls.Load(); got != 2 {
		t.Errorf("calls after new args = %d, want 2", got)
	}
	if got := reg.Namespaces(); len(got) != 1 || got[0] != "squares" {
		t.Errorf("Namespaces() = %v, want [squares]", got)
	}
}

func TestMemoize_Disabled(t *testing.T) {
	s := singleSettings()
	s.Enabled = false
	reg, err := NewRegistry[int](s)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defer reg.Close()

	sq := &square{}
	f := Memoize(reg, sq.fn)
	for i := 0; i < 3; i++ {
		f(context.Background(), 3)
	}
	if got := sq.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if len(reg.Namespaces()) != 0 {
		t.Error("disabled registry should not build caches")
	}
}

func TestMemoize_ErrorsNotCached(t *testing.T) {
	reg, err := NewRegistry[int](singleSettings())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defer reg.Close()

	var calls int
	f := Memoize(reg, func(context.Context, ...any) (int, error) {
		calls++
		return 0, errBoom
	})

	for i := 0; i < 2; i++ {
		if _, err := f(context.Background(), "x"); !errors.Is(err, errBoom) {
			t.Fatalf("f() error = %v, want errBoom", err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestMemoize_DefaultNamespace(t *testing.T) {
	reg, err := NewRegistry[int](singleSettings())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defer reg.Close()

	sq := &square{}
	f := Memoize(reg, sq.fn)
	if _, err := f(context.Background(), 2); err != nil {
		t.Fatalf("f() error = %v", err)
	}

	ns := reg.Namespaces()
	if len(ns) != 1 || !strings.Contains(ns[0], "tieredcache") || !strings.Contains(ns[0], "fn") {
		t.Errorf("namespace = %v, want the qualified function name", ns)
	}
}

func TestMemoizeWith_KeyFuncAndTTL(t *testing.T) {
	fast := newFake("fast", nil)
	c := newChain(t, fast)

	sq := &square{}
	f := MemoizeWith(c, sq.fn,
		WithKeyFunc(func(args ...any) string { return fmt.Sprint("sq-", args[0]) }),
		WithMemoTTL(10*time.Second),
	)

	if v, _ := f(context.Background(), 3); v != 9 {
		t.Fatalf("f(3) = %d, want 9", v)
	}
	if fast.data["sq-3"] != 9 {
		t.Errorf("cache holds %v, want sq-3=9", fast.data)
	}
	if fast.ttls["sq-3"] != 10*time.Second {
		t.Errorf("ttl = %v, want 10s", fast.ttls["sq-3"])
	}
}

func TestMemoizeWith_CoalescesConcurrentMisses(t *testing.T) {
	c := newChain(t, newFake("fast", nil))

	release := make(chan struct{})
	var calls atomic.Int32
	f := MemoizeWith(c, func(context.Context, ...any) (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(context.Background(), "same")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestMemoizeWith_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	c := newChain(t, newFake("fast", nil))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var calls atomic.Int32
	f := MemoizeWith(c, func(ctx context.Context, _ ...any) (int, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f(leaderCtx, "same")
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		v   int
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		v, err := f(context.Background(), "same")
		waiter <- outcome{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}
	close(release)

	got := <-waiter
	if got.err != nil || got.v != 42 {
		t.Errorf("waiter = %d, %v, want 42, nil", got.v, got.err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
	if v, err := f(context.Background(), "same"); err != nil || v != 42 {
		t.Errorf("f() after the shared call = %d, %v, want cached 42", v, err)
	}
}

func TestShortName(t *testing.T) {
	tests := []struct {
		full string
		want string
	}{
		{"github.com/acme/app/reports.Build", "Build"},
		{"github.com/acme/app/reports.(*Builder).Run-fm", "(*Builder).Run-fm"},
		{"main.main.func1", "main.func1"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := shortName(tt.full); got != tt.want {
			t.Errorf("shortName(%q) = %q, want %q", tt.full, got, tt.want)
		}
	}
}

func TestMemoize_SharesCacheAcrossWrappers(t *testing.T) {
	reg, err := NewRegistry[int](config.Settings{
		Enabled:       true,
		TTL:           time.Hour,
		Strategy:      config.StrategySingle,
		MemoryMaxSize: 10,
		Dir:           t.TempDir(),
		Serializer:    "json",
		Compression:   "none",
		RedisTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	defer reg.Close()

	sq := &square{}
	a := Memoize(reg, sq.fn, WithMemoNamespace("shared"))
	b := Memoize(reg, sq.fn, WithMemoNamespace("shared"))
	a(context.Background(), 6)
	b(context.Background(), 6)
	if got := sq.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}
