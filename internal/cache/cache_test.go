package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"lingorelay/pkg/relay"
)

func TestLookupMissThenHit(t *testing.T) {
	t.Parallel()

	pairCache := New(WithCapacity(4))
	key := relay.NewPairKey("hello", "", "fr")

	if _, ok := pairCache.Lookup(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	pairCache.Insert(key, "bonjour")

	text, ok := pairCache.Lookup(key)
	if !ok {
		t.Fatal("expected hit after insert")
	}
	if text != "bonjour" {
		t.Fatalf("text = %q, want bonjour", text)
	}
}

func TestKeyDistinguishesLanguagePair(t *testing.T) {
	t.Parallel()

	pairCache := New()
	pairCache.Insert(relay.NewPairKey("hello", "", "fr"), "bonjour")

	if _, ok := pairCache.Lookup(relay.NewPairKey("hello", "", "de")); ok {
		t.Fatal("expected miss for different target language")
	}
	if _, ok := pairCache.Lookup(relay.NewPairKey("hello", "en", "fr")); ok {
		t.Fatal("expected miss for different source language")
	}
	if _, ok := pairCache.Lookup(relay.NewPairKey("hello!", "", "fr")); ok {
		t.Fatal("expected miss for different text")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	pairCache := New(WithCapacity(2))
	first := relay.NewPairKey("one", "", "fr")
	second := relay.NewPairKey("two", "", "fr")
	third := relay.NewPairKey("three", "", "fr")

	pairCache.Insert(first, "un")
	pairCache.Insert(second, "deux")

	// Touch the oldest entry so the middle one becomes eviction candidate.
	if _, ok := pairCache.Lookup(first); !ok {
		t.Fatal("expected hit for first")
	}

	pairCache.Insert(third, "trois")

	if _, ok := pairCache.Lookup(second); ok {
		t.Fatal("expected second to be evicted")
	}
	if _, ok := pairCache.Lookup(first); !ok {
		t.Fatal("expected first to survive")
	}
	if _, ok := pairCache.Lookup(third); !ok {
		t.Fatal("expected third to be present")
	}
	if got := pairCache.Len(); got != 2 {
		t.Fatalf("len = %d, want 2", got)
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0).UTC()
	clock := func() time.Time { return now }
	pairCache := New(WithTTL(time.Minute), WithClock(func() time.Time { return clock() }))
	key := relay.NewPairKey("hello", "", "fr")

	pairCache.Insert(key, "bonjour")
	now = now.Add(61 * time.Second)

	if _, ok := pairCache.Lookup(key); ok {
		t.Fatal("expected expired entry to miss")
	}
	if got := pairCache.Len(); got != 0 {
		t.Fatalf("len = %d after lazy eviction, want 0", got)
	}
}

func TestInsertRefreshesExistingEntry(t *testing.T) {
	t.Parallel()

	pairCache := New(WithCapacity(2))
	key := relay.NewPairKey("hello", "", "fr")

	pairCache.Insert(key, "bonjour")
	pairCache.Insert(key, "salut")

	text, ok := pairCache.Lookup(key)
	if !ok {
		t.Fatal("expected hit after refresh")
	}
	if text != "salut" {
		t.Fatalf("text = %q, want salut", text)
	}
	if got := pairCache.Len(); got != 1 {
		t.Fatalf("len = %d, want 1", got)
	}
}

func TestConcurrentLookupsAndInserts(t *testing.T) {
	t.Parallel()

	pairCache := New(WithCapacity(64))
	var group sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		group.Add(1)
		go func(worker int) {
			defer group.Done()
			for i := 0; i < 200; i++ {
				key := relay.NewPairKey(fmt.Sprintf("text-%d", i%32), "", "fr")
				pairCache.Insert(key, "value")
				pairCache.Lookup(key)
			}
		}(worker)
	}
	group.Wait()

	if got := pairCache.Len(); got > 64 {
		t.Fatalf("len = %d, want <= capacity 64", got)
	}
}
