package session

import (
	"testing"

	"github.com/storefront-agent/server/internal/agent/model"
)

func TestCacheReplaceIsFullSwap(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Replace([]model.Product{
		{Handle: "phone-a", Name: "SuperPhone X", Price: 299},
		{Handle: "lap-b", Name: "ZBook", Price: 999},
	})

	cache.Replace([]model.Product{{Handle: "tab-c", Name: "Alpha Pad", Price: 450}})

	if cache.Has("phone-a") || cache.Has("lap-b") {
		t.Fatal("Replace() must discard previously shown products")
	}
	if got := cache.Handles(); len(got) != 1 || got[0] != "tab-c" {
		t.Fatalf("Handles() = %v, want [tab-c]", got)
	}
}

func TestCacheReplaceSkipsEmptyHandle(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Replace([]model.Product{{Name: "ghost"}, {Handle: "phone-a", Name: "SuperPhone X"}})

	if cache.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cache.Len())
	}
}

func TestCacheSnapshotRestore(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Replace([]model.Product{{Handle: "phone-a", Name: "SuperPhone X", Price: 299}})

	snap := cache.Snapshot()
	cache.Replace([]model.Product{{Handle: "lap-b", Name: "ZBook", Price: 999}})
	cache.Restore(snap)

	if !cache.Has("phone-a") || cache.Has("lap-b") {
		t.Fatalf("Restore() should reinstate pre-turn contents, got %v", cache.Handles())
	}

	p, ok := cache.Get("phone-a")
	if !ok || p.Price != 299 {
		t.Fatalf("Get(phone-a) = %+v, %v", p, ok)
	}
}

func TestArenaIsolatesSessions(t *testing.T) {
	t.Parallel()

	arena := NewArena()
	first := arena.Acquire("conv-1")
	second := arena.Acquire("conv-2")

	first.Replace([]model.Product{{Handle: "phone-a", Name: "SuperPhone X"}})

	if second.Has("phone-a") {
		t.Fatal("sessions must not share cache contents")
	}
	if arena.Acquire("conv-1") != first {
		t.Fatal("Acquire() must return the same cache for the same session")
	}
}

func TestArenaEndDropsCache(t *testing.T) {
	t.Parallel()

	arena := NewArena()
	arena.Acquire("conv-1").Replace([]model.Product{{Handle: "phone-a", Name: "SuperPhone X"}})
	arena.End("conv-1")

	if arena.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after End", arena.Len())
	}
	if arena.Acquire("conv-1").Has("phone-a") {
		t.Fatal("a restarted session must begin with an empty cache")
	}
}
