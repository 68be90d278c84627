package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/web-traces/wlprep/internal/cache"
	"github.com/web-traces/wlprep/internal/config"
)

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		LogLevel:        "error",
		DataDir:         dataDir,
		ScreenWidth:     config.DefaultScreenWidth,
		ScreenHeight:    config.DefaultScreenHeight,
		CaptureRetries:  1,
		SnapshotIoU:     config.DefaultSnapshotIoU,
		SnapshotMinArea: config.DefaultSnapshotMinArea,
		SkippedDemoIDs:  []string{"skipme"},
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func testRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dataDir := t.TempDir()
	cfg := testConfig(dataDir)
	return NewRunner(cfg, nil, cache.NewBBoxCache(4)), dataDir
}

func TestRunnerDiscover(t *testing.T) {
	r, dataDir := testRunner(t)
	demos := filepath.Join(dataDir, "demonstrations")

	writeTestFile(t, filepath.Join(demos, "abcdemo", "pages", "page-0-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demos, "abcdemo", "pages", "page-1-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demos, "abcdemo", "pages", "notes.html"), "not a capture")
	writeTestFile(t, filepath.Join(demos, "skipme", "pages", "page-0-0.html"), "<html></html>")

	jobs, err := r.discover(Options{})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Discovered %d jobs, want 2", len(jobs))
	}

	first := jobs[0]
	if first.demoID != "abcdemo" || first.name != "page-0-0" {
		t.Errorf("First job = %s/%s", first.demoID, first.name)
	}
	if want := filepath.Join(demos, "abcdemo", "axtrees", "page-0-0.json"); first.axtree != want {
		t.Errorf("axtree = %q, want %q", first.axtree, want)
	}
	if want := filepath.Join(demos, "abcdemo", "bboxes", "bboxes-0.json"); first.bboxes != want {
		t.Errorf("bboxes = %q, want %q", first.bboxes, want)
	}
	if want := filepath.Join(demos, "abcdemo", "screenshots", "screenshot-0-0.png"); first.screenshot != want {
		t.Errorf("screenshot = %q, want %q", first.screenshot, want)
	}
	if want := filepath.Join(demos, "abcdemo", "axtrees", "page-0-0-failed.json"); first.failed != want {
		t.Errorf("failed = %q, want %q", first.failed, want)
	}

	if jobs[1].bboxes != filepath.Join(demos, "abcdemo", "bboxes", "bboxes-1.json") {
		t.Errorf("Second job bboxes = %q", jobs[1].bboxes)
	}
}

func TestRunnerDiscover_AllowedFilter(t *testing.T) {
	r, dataDir := testRunner(t)
	demos := filepath.Join(dataDir, "demonstrations")

	writeTestFile(t, filepath.Join(demos, "keepdemo", "pages", "page-0-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demos, "otherdemo", "pages", "page-0-0.html"), "<html></html>")

	jobs, err := r.discover(Options{AllowedDemoIDs: []string{"keepdemo"}})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].demoID != "keepdemo" {
		t.Fatalf("jobs = %+v, want only keepdemo", jobs)
	}

	jobs, err = r.discover(Options{AllowedDemoIDs: []string{}})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("Empty allow list matched %d jobs, want 0", len(jobs))
	}
}

func TestProcessPage_SkipRules(t *testing.T) {
	r, dataDir := testRunner(t)
	demos := filepath.Join(dataDir, "demonstrations")
	ctx := context.Background()

	// No bounding box file.
	writeTestFile(t, filepath.Join(demos, "noboxes", "pages", "page-0-0.html"), "<html></html>")

	// Previously failed.
	writeTestFile(t, filepath.Join(demos, "failed", "pages", "page-0-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demos, "failed", "bboxes", "bboxes-0.json"), "{}")
	writeTestFile(t, filepath.Join(demos, "failed", "axtrees", "page-0-0-failed.json"), `{"error":"x","html_file_path":"y"}`)

	// Artifacts already written.
	writeTestFile(t, filepath.Join(demos, "done", "pages", "page-0-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demos, "done", "bboxes", "bboxes-0.json"), "{}")
	writeTestFile(t, filepath.Join(demos, "done", "axtrees", "page-0-0.json"), "{}")
	writeTestFile(t, filepath.Join(demos, "done", "dom_snapshots", "page-0-0.json"), "{}")
	writeTestFile(t, filepath.Join(demos, "done", "extra_element_properties", "page-0-0.json"), "{}")

	jobs, err := r.discover(Options{})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("Discovered %d jobs, want 3", len(jobs))
	}

	for _, job := range jobs {
		if out := r.processPage(ctx, job, Options{}); out != outcomeSkipped {
			t.Errorf("Demo %s outcome = %v, want skipped", job.demoID, out)
		}
	}

	// Retry-failed targets marked pages only; finished pages stay skipped.
	for _, job := range jobs {
		if job.demoID != "done" {
			continue
		}
		if out := r.processPage(ctx, job, Options{RetryFailed: true}); out != outcomeSkipped {
			t.Errorf("Retry-failed on finished page = %v, want skipped", out)
		}
	}
}

func TestProcessPage_BadBBoxesWritesMarker(t *testing.T) {
	r, dataDir := testRunner(t)
	demos := filepath.Join(dataDir, "demonstrations")

	writeTestFile(t, filepath.Join(demos, "badboxes", "pages", "page-0-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demos, "badboxes", "bboxes", "bboxes-0.json"), "{not json")

	jobs, err := r.discover(Options{})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Discovered %d jobs, want 1", len(jobs))
	}

	if out := r.processPage(context.Background(), jobs[0], Options{}); out != outcomeFailed {
		t.Fatalf("Outcome = %v, want failed", out)
	}

	marker, err := LoadFailedMarker(jobs[0].failed)
	if err != nil {
		t.Fatalf("Failure marker not written: %v", err)
	}
	if marker.HTMLFilePath != jobs[0].htmlPath {
		t.Errorf("Marker html path = %q, want %q", marker.HTMLFilePath, jobs[0].htmlPath)
	}

	// The marker now blocks reprocessing until a retry is requested.
	if out := r.processPage(context.Background(), jobs[0], Options{}); out != outcomeSkipped {
		t.Errorf("Second pass outcome = %v, want skipped", out)
	}
	if out := r.processPage(context.Background(), jobs[0], Options{Overwrite: true}); out != outcomeFailed {
		t.Errorf("Overwrite pass outcome = %v, want failed", out)
	}
	if out := r.processPage(context.Background(), jobs[0], Options{RetryFailed: true}); out != outcomeFailed {
		t.Errorf("Retry-failed pass outcome = %v, want failed", out)
	}
}
