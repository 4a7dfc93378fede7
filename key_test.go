package tieredcache

import "testing"

func TestCacheKey(t *testing.T) {
	a := CacheKey(1, 2, Named("a", 3), Named("b", 4))
	b := CacheKey(1, 2, Named("b", 4), Named("a", 3))
	if a != b {
		t.Error("keyword argument order changed the key")
	}
	if CacheKey(1, 2) == CacheKey(2, 1) {
		t.Error("positional argument order did not change the key")
	}
	if CacheKey("x") != CacheKey("x") {
		t.Error("CacheKey is not deterministic")
	}
	if got := len(CacheKey()); got != 64 {
		t.Errorf("len(CacheKey()) = %d, want 64 hex characters", got)
	}
}
