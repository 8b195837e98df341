package guidance

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"livenav/internal/types"
)

func TestRegistry_CreateAssignsID(t *testing.T) {
	r := NewRegistry()
	id, err := r.Create(&Route{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_CreateRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(&Route{ID: "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := r.Create(&Route{ID: "r1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Create(&Route{ID: "r1"})

	cp, err := r.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cp.Tracking.NoProgress = 99
	cp.Revision = 7

	again, _ := r.Get(id)
	if again.Tracking.NoProgress != 0 || again.Revision != 0 {
		t.Errorf("mutating a snapshot leaked into the registry: %+v", again.Tracking)
	}
}

func TestRegistry_UpdateInPlace(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Create(&Route{ID: "r1"})

	err := r.Update(id, func(rt *Route) error {
		rt.Tracking.Hint = 12
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := r.Get(id)
	if got.Tracking.Hint != 12 {
		t.Errorf("Hint = %d, want 12", got.Tracking.Hint)
	}

	sentinel := errors.New("boom")
	if err := r.Update(id, func(*Route) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("expected callback error to propagate, got %v", err)
	}
}

func TestRegistry_NotFound(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := r.Update("missing", func(*Route) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	err := r.Remove("missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != "missing" {
		t.Errorf("Remove: expected NotFoundError for missing, got %v", err)
	}
}

func TestRegistry_RemoveMarksEntryDead(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Create(&Route{ID: "r1"})
	e, _ := r.lookup(id)

	if err := r.Remove(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.dead {
		t.Error("removed entry must be marked dead")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		_, _ = r.Create(&Route{ID: types.ID(fmt.Sprintf("r%d", i))})
	}
	e, _ := r.lookup("r3")

	if n := r.Clear(); n != 5 {
		t.Errorf("Clear() = %d, want 5", n)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after clear", r.Count())
	}
	if !e.dead {
		t.Error("cleared entries must be marked dead")
	}
}

func TestRegistry_ConcurrentUpdatesAreSerializedPerRoute(t *testing.T) {
	r := NewRegistry()
	ids := []types.ID{"a", "b", "c"}
	for _, id := range ids {
		_, _ = r.Create(&Route{ID: id})
	}

	const perRoute = 200
	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < perRoute; i++ {
			wg.Add(1)
			go func(id types.ID) {
				defer wg.Done()
				_ = r.Update(id, func(rt *Route) error {
					rt.Tracking.NoProgress++
					return nil
				})
				_, _ = r.Get(id)
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		got, _ := r.Get(id)
		if got.Tracking.NoProgress != perRoute {
			t.Errorf("route %s: %d increments, want %d", id, got.Tracking.NoProgress, perRoute)
		}
	}
}
