// internal/archive/checkpoint_test.go
package archive

import (
	"path/filepath"
	"testing"
)

func TestCheckpoint_MissingFileIsEmpty(t *testing.T) {
	cp, err := LoadCheckpoint(filepath.Join(t.TempDir(), "done.json"))
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	if cp.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cp.Len())
	}
	if cp.Done("anything") {
		t.Error("empty checkpoint should report nothing done")
	}
}

func TestCheckpoint_MarkPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.json")

	cp, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	if err := cp.Mark("demoa", "demoa.zip"); err != nil {
		t.Fatalf("Mark error: %v", err)
	}
	if err := cp.Mark("demob", "demob.zip"); err != nil {
		t.Fatalf("Mark error: %v", err)
	}

	reloaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint after Mark error: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reloaded.Len())
	}
	for _, id := range []string{"demoa", "demob"} {
		if !reloaded.Done(id) {
			t.Errorf("Done(%q) = false after reload", id)
		}
	}
	if reloaded.Done("democ") {
		t.Error("unmarked demo reported done")
	}
}

func TestCheckpoint_ClearIsInMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.json")

	cp, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	if err := cp.Mark("demoa", "demoa.zip"); err != nil {
		t.Fatalf("Mark error: %v", err)
	}

	cp.Clear("demoa")
	if cp.Done("demoa") {
		t.Error("Done after Clear should be false")
	}

	// Clear alone does not rewrite the file.
	reloaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	if !reloaded.Done("demoa") {
		t.Error("file should still list the demo until the next Mark")
	}
}

func TestCheckpoint_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.json")
	writeTestFile(t, path, "{broken")

	if _, err := LoadCheckpoint(path); err == nil {
		t.Fatal("expected error for corrupt checkpoint")
	}
}
