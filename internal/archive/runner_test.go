// internal/archive/runner_test.go
package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
)

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		LogLevel: "error",
		DataDir:  dataDir,
		Workers:  2,
	}
}

func seedDemos(t *testing.T, dataDir string) {
	t.Helper()
	demos := dataset.DemosDir(dataDir)
	writeTestFile(t, filepath.Join(demos, "demoa", "replay.json"), `{"data":[]}`)
	writeTestFile(t, filepath.Join(demos, "demoa", "pages", "page-0-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demos, "demob", "replay.json"), `{"data":[]}`)
	// Stray files next to the demo directories are not archived.
	writeTestFile(t, filepath.Join(demos, "notes.txt"), "scratch")
}

func TestRunnerRun_ZipsEveryDemo(t *testing.T) {
	dataDir := t.TempDir()
	seedDemos(t, dataDir)

	res, err := NewRunner(testConfig(dataDir)).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Zipped != 2 || res.Skipped != 0 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 zipped", res)
	}

	zipsDir := dataset.ZipsDir(dataDir)
	for _, name := range []string{"demoa.zip", "demob.zip"} {
		if _, err := os.Stat(filepath.Join(zipsDir, name)); err != nil {
			t.Errorf("missing archive %s: %v", name, err)
		}
	}

	names := zipEntryNames(t, filepath.Join(zipsDir, "demoa.zip"))
	if len(names) != 2 || names[0] != "pages/page-0-0.html" || names[1] != "replay.json" {
		t.Errorf("demoa entries = %v", names)
	}

	cp, err := LoadCheckpoint(filepath.Join(zipsDir, CheckpointFile))
	if err != nil {
		t.Fatalf("LoadCheckpoint error: %v", err)
	}
	if !cp.Done("demoa") || !cp.Done("demob") {
		t.Errorf("checkpoint incomplete: %d entries", cp.Len())
	}
}

func TestRunnerRun_SecondRunSkips(t *testing.T) {
	dataDir := t.TempDir()
	seedDemos(t, dataDir)
	runner := NewRunner(testConfig(dataDir))

	if _, err := runner.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	res, err := runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if res.Zipped != 0 || res.Skipped != 2 {
		t.Errorf("second run result = %+v, want 2 skipped", res)
	}

	over, err := runner.Run(context.Background(), Options{Overwrite: true})
	if err != nil {
		t.Fatalf("overwrite Run error: %v", err)
	}
	if over.Zipped != 2 || over.Skipped != 0 {
		t.Errorf("overwrite result = %+v, want 2 zipped", over)
	}
}

func TestRunnerRun_EmptyDataset(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.MkdirAll(dataset.DemosDir(dataDir), 0o755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}

	res, err := NewRunner(testConfig(dataDir)).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Zipped != 0 || res.Skipped != 0 || res.Failed != 0 {
		t.Errorf("result = %+v, want all zero", res)
	}
}

func TestRunnerRun_MissingDemosDir(t *testing.T) {
	if _, err := NewRunner(testConfig(t.TempDir())).Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error when demonstrations/ does not exist")
	}
}
