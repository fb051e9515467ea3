package audit

import (
	"testing"

	"vortex-go/internal/restore"
)

func TestMemoryStore_CopiesOnLoadAndSave(t *testing.T) {
	seed := sampleEntries()
	store := NewMemoryStore(seed...)

	got, _ := store.Load()
	got[0].Name = "mutated"

	again, _ := store.Load()
	if again[0].Name != seed[0].Name {
		t.Errorf("Load() leaked internal slice: got %q", again[0].Name)
	}

	saved := []restore.AuditEntry{{ID: 9, Name: "saved"}}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	saved[0].Name = "mutated"

	after, _ := store.Load()
	if len(after) != 1 || after[0].Name != "saved" {
		t.Errorf("Save() kept caller's slice: %+v", after)
	}
	if store.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", store.Saves())
	}
}
