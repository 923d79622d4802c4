package tabs

import (
	"context"
	"sync"
	"testing"

	"github.com/perchbrowser/perch/internal/engine"
)

type fakeOpener struct{ name string }

func (f *fakeOpener) OpenTab(context.Context, OpenOptions) (engine.Page, error) {
	return nil, nil
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("w1"); ok {
		t.Fatal("lookup on empty registry succeeded")
	}

	a := &fakeOpener{name: "a"}
	r.Register("w1", a)

	got, ok := r.Lookup("w1")
	if !ok || got != a {
		t.Fatalf("Lookup(w1) = %v, %v, want %v, true", got, ok, a)
	}

	// Re-register replaces.
	b := &fakeOpener{name: "b"}
	r.Register("w1", b)
	got, _ = r.Lookup("w1")
	if got != b {
		t.Fatalf("Lookup(w1) after replace = %v, want %v", got, b)
	}

	r.Unregister("w1")
	r.Unregister("w1") // repeated removal is harmless
	if _, ok := r.Lookup("w1"); ok {
		t.Fatal("lookup after unregister succeeded")
	}
}

func TestRegistryIDs(t *testing.T) {
	r := NewRegistry()
	r.Register("w1", &fakeOpener{})
	r.Register("w2", &fakeOpener{})

	ids := r.IDs()
	if len(ids) != 2 {
		t.Fatalf("IDs() = %v, want two entries", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["w1"] || !seen["w2"] {
		t.Fatalf("IDs() = %v, want w1 and w2", ids)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("w", &fakeOpener{})
			r.Unregister("w")
		}()
		go func() {
			defer wg.Done()
			r.Lookup("w")
			r.IDs()
		}()
	}
	wg.Wait()
}
