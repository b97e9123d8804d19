package registry

import (
	"sync"
	"testing"
)

func TestActivateDeactivate(t *testing.T) {
	reg := NewRecipientRegistry()

	reg.Activate(42)
	if !reg.Contains(42) {
		t.Fatal("Expected chat 42 to be a member after Activate")
	}

	reg.Deactivate(42)
	if reg.Contains(42) {
		t.Fatal("Expected chat 42 to be gone after Deactivate")
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	reg := NewRecipientRegistry()

	reg.Activate(7)
	reg.Activate(7)

	if got := reg.Len(); got != 1 {
		t.Errorf("Expected 1 member after double Activate, got %d", got)
	}
}

func TestDeactivateUnknownIsNoOp(t *testing.T) {
	reg := NewRecipientRegistry()

	reg.Deactivate(99)

	if got := reg.Len(); got != 0 {
		t.Errorf("Expected empty registry, got %d members", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	reg := NewRecipientRegistry()
	reg.Activate(1)
	reg.Activate(2)

	snapshot := reg.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Expected snapshot of 2 members, got %d", len(snapshot))
	}

	// Mutating the registry must not affect an already-taken snapshot
	reg.Deactivate(1)
	if len(snapshot) != 2 {
		t.Errorf("Snapshot changed after Deactivate, got %d members", len(snapshot))
	}
}

func TestConcurrentMutation(t *testing.T) {
	reg := NewRecipientRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			reg.Activate(id)
			reg.Contains(id)
			reg.Snapshot()
			if id%2 == 0 {
				reg.Deactivate(id)
			}
		}(int64(i))
	}
	wg.Wait()

	if got := reg.Len(); got != 25 {
		t.Errorf("Expected 25 members after concurrent mutation, got %d", got)
	}
}
