package cache

import (
	"testing"
	"time"
)

func TestResponseCacheRoundTrip(t *testing.T) {
	c := NewResponseCache(10, 0)
	fp := Fingerprint("passage one\npassage two")

	if _, ok := c.Get("what is a widget?", fp); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set("what is a widget?", fp, "a widget is a thing")
	got, ok := c.Get("what is a widget?", fp)
	if !ok || got != "a widget is a thing" {
		t.Fatalf("expected cached answer, got %q ok=%v", got, ok)
	}
}

func TestResponseCacheNormalizesQuery(t *testing.T) {
	c := NewResponseCache(10, 0)
	fp := Fingerprint("ctx")
	c.Set("What is a Widget?", fp, "answer")

	if _, ok := c.Get("  what is a widget?  ", fp); !ok {
		t.Fatal("expected case and whitespace variants to share an entry")
	}
}

func TestResponseCacheDistinguishesContext(t *testing.T) {
	c := NewResponseCache(10, 0)
	c.Set("query", Fingerprint("context a"), "answer a")

	if _, ok := c.Get("query", Fingerprint("context b")); ok {
		t.Fatal("expected different context fingerprint to miss")
	}
}

func TestFingerprintStability(t *testing.T) {
	a := Fingerprint("same text")
	b := Fingerprint("same text")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != fingerprintLen {
		t.Fatalf("expected %d hex chars, got %d", fingerprintLen, len(a))
	}
	if a == Fingerprint("other text") {
		t.Fatal("distinct inputs produced identical fingerprints")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(2, 0)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	// Touch "a" so "b" is the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a present")
	}
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a retained")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected c present")
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU(10, time.Millisecond)
	c.Set("k", "v", 0)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry removed, len=%d", c.Len())
	}
}

func TestLRUUpdateMovesToFront(t *testing.T) {
	c := NewLRU(2, 0)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("a", 10, 0)
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b evicted after a was rewritten")
	}
	v, ok := c.Get("a")
	if !ok || v.(int) != 10 {
		t.Fatalf("expected updated value for a, got %v ok=%v", v, ok)
	}
}
