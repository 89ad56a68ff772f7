package embed

import "testing"

func TestL1CachePutGet(t *testing.T) {
	c := NewL1Cache(1024)
	vec := []float32{1, 2, 3}
	c.Put("key", vec)

	got, ok := c.Get("key")
	if !ok {
		t.Fatalf("expected key to be present")
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got wrong vector: %v", got)
	}
}

func TestL1CacheMissReturnsFalse(t *testing.T) {
	c := NewL1Cache(1024)
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestL1CacheEvictsByByteSize(t *testing.T) {
	// Each float32 vector of length 4 costs 16 bytes; bound to 20 bytes
	// so only one such vector fits at a time.
	c := NewL1Cache(20)
	c.Put("a", []float32{1, 2, 3, 4})
	c.Put("b", []float32{5, 6, 7, 8})

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be evicted once b no longer fits alongside it")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("expected b to survive")
	}
}
