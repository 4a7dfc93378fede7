package tieredcache_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/thinktank/tieredcache"
	"github.com/thinktank/tieredcache/internal/backend/memory/cachestrategy/lru"
	"github.com/thinktank/tieredcache/internal/config"
	"github.com/thinktank/tieredcache/internal/serializer"
)

type report struct {
	Title string  `json:"title" msgpack:"title"`
	Score float64 `json:"score" msgpack:"score"`
}

func newBenchCache(b *testing.B, opts ...tieredcache.Option) *tieredcache.Cache[report] {
	b.Helper()
	mr := miniredis.RunT(b)
	base := []tieredcache.Option{
		tieredcache.WithRedisURL("redis://" + mr.Addr() + "/0"),
		tieredcache.WithDirectory(b.TempDir()),
	}
	c, err := tieredcache.New[report](context.Background(), "bench", append(base, opts...)...)
	if err != nil {
		b.Fatalf("creating cache: %v", err)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

// BenchmarkGet_MemoryHit measures reads served by the in-process tier.
func BenchmarkGet_MemoryHit(b *testing.B) {
	c, err := tieredcache.New[report](context.Background(), "bench",
		tieredcache.WithStrategy(config.StrategySingle),
	)
	if err != nil {
		b.Fatalf("creating cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", report{Title: "q3", Score: 1}, 0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Get(ctx, "k"); !ok {
			b.Fatal("miss")
		}
	}
}

// BenchmarkGet_ReadThrough measures reads that fall through to the
// durable tier because the faster tiers were emptied.
func BenchmarkGet_ReadThrough(b *testing.B) {
	for _, format := range []serializer.Format{serializer.FormatJSON, serializer.FormatMsgpack} {
		b.Run(format.String(), func(b *testing.B) {
			c := newBenchCache(b, tieredcache.WithFormat(format))
			ctx := context.Background()
			c.Set(ctx, "k", report{Title: "q3", Score: 1}, 0)
			chain := c.Backends()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				chain[0].Delete(ctx, "k")
				chain[1].Delete(ctx, "k")
				b.StartTimer()

				if _, ok := c.Get(ctx, "k"); !ok {
					b.Fatal("miss")
				}
			}
		})
	}
}

// BenchmarkSet_Chain measures writes fanned out to every tier.
func BenchmarkSet_Chain(b *testing.B) {
	c := newBenchCache(b, tieredcache.WithEvictionPolicy(lru.PolicyRecency))
	ctx := context.Background()
	keys := make([]string, 256)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(ctx, keys[i%len(keys)], report{Title: "q3", Score: float64(i)}, 0)
	}
}
