// internal/pack/runner_test.go
package pack

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/internal/metadata"
	"github.com/web-traces/wlprep/pkg/models"
)

func strPtr(s string) *string { return &s }

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
}

func testConfig(dataDir, outDir string) *config.Config {
	return &config.Config{
		LogLevel:    "error",
		DataDir:     dataDir,
		OutputDir:   outDir,
		PackIoU:     config.DefaultPackIoU,
		PackMinArea: config.DefaultPackMinArea,
		PackMaxArea: config.DefaultPackMaxArea,
	}
}

// seedDemo lays out one recorded demonstration with a full snapshot for
// page-0-0 and a second page without derived files.
func seedDemo(t *testing.T, dataDir string) {
	t.Helper()
	demo := filepath.Join(dataset.DemosDir(dataDir), "demoa")
	writeTestFile(t, filepath.Join(demo, "replay.json"), `{"data":[]}`)
	writeTestFile(t, filepath.Join(demo, "metadata.json"), `{"recordingStart": 1000}`)
	writeTestFile(t, filepath.Join(demo, "form.json"), `{}`)
	writeTestFile(t, filepath.Join(demo, "pages", "page-0-0.html"), "<html></html>")
	writeTestFile(t, filepath.Join(demo, "pages", "page-1-0.html"), "<html>2</html>")
	writeTestFile(t, filepath.Join(demo, "screenshots", "screenshot-0-0.png"), "png")
	writeTestFile(t, filepath.Join(demo, "bboxes", "bboxes-0.json"), "{}")
	writeTestFile(t, filepath.Join(demo, "axtrees", "page-0-0.json"), "{}")
	writeTestFile(t, filepath.Join(demo, "dom_snapshots", "page-0-0.json"), "{}")
	writeTestFile(t, filepath.Join(demo, "extra_element_properties", "page-0-0.json"),
		`{"aaa": {"bbox": [0,0,100,100], "visibility": 1, "set_of_marks": 1, "clickable": 1},
		  "bbb": {"bbox": [0,0,102,102], "visibility": 1, "set_of_marks": 1, "clickable": 1}}`)
}

func taskStep() *models.StepRecord {
	return &models.StepRecord{
		Intent:          "click",
		IsTask:          true,
		HasFullSnapshot: true,
		ScreenshotPath:  "demoa/screenshots/screenshot-0-0.png",
		BBoxPath:        "demoa/bboxes/bboxes-0.json",
		HTMLPath:        "demoa/pages/page-0-0.html",
		AXTreePath:      strPtr("demoa/axtrees/page-0-0.json"),
		DOMObjectPath:   strPtr("demoa/dom_snapshots/page-0-0.json"),
		ExtraPropsPath:  strPtr("demoa/extra_element_properties/page-0-0.json"),
	}
}

func seedIndex(t *testing.T, path string) models.MetadataIndex {
	t.Helper()
	index := models.MetadataIndex{
		"train": {
			"demoa": {
				0: taskStep(),
				1: {
					Intent:          "say",
					IsTask:          false,
					HasFullSnapshot: true,
					ScreenshotPath:  "demoa/screenshots/screenshot-0-0.png",
					BBoxPath:        "demoa/bboxes/bboxes-0.json",
					HTMLPath:        "demoa/pages/page-1-0.html",
				},
			},
		},
	}
	if err := metadata.WriteIndex(index, path); err != nil {
		t.Fatalf("WriteIndex error: %v", err)
	}
	return index
}

func zipEntryNames(t *testing.T, zipPath string) []string {
	t.Helper()
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("OpenReader error: %v", err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestRunnerRun_PackagesTaskSteps(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	seedDemo(t, dataDir)
	indexPath := filepath.Join(dataDir, "metadata.json")
	seedIndex(t, indexPath)

	res, err := NewRunner(testConfig(dataDir, outDir)).Run(context.Background(), Options{
		IndexPath: indexPath,
		Splits:    []string{"train"},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if res.Demos != 1 || res.Zipped != 1 || res.Processed != 1 || res.Missing != 0 {
		t.Errorf("result = %+v", res)
	}
	// 3 descriptor files plus the 6 artifacts of the task step.
	if res.FilesCopied != 9 {
		t.Errorf("FilesCopied = %d, want 9", res.FilesCopied)
	}

	outDemo := filepath.Join(dataset.DemosDir(outDir), "demoa")
	for _, rel := range []string{
		"replay.json", "metadata.json", "form.json",
		"pages/page-0-0.html",
		"screenshots/screenshot-0-0.png",
		"bboxes/bboxes-0.json",
		"axtrees/page-0-0.json",
		"dom_snapshots/page-0-0.json",
		"extra_element_properties/page-0-0.json",
	} {
		if _, err := os.Stat(filepath.Join(outDemo, filepath.FromSlash(rel))); err != nil {
			t.Errorf("missing packaged file %s: %v", rel, err)
		}
	}
	// The non-task step's page is not packaged.
	if _, err := os.Stat(filepath.Join(outDemo, "pages", "page-1-0.html")); !os.IsNotExist(err) {
		t.Error("non-task step file should not be packaged")
	}

	// The copied index sits at the package root.
	copied, err := metadata.LoadIndex(metadata.IndexPath(outDir))
	if err != nil {
		t.Fatalf("LoadIndex error: %v", err)
	}
	if copied["train"]["demoa"][0] == nil {
		t.Error("copied index lost its content")
	}

	// Copied element properties were post-processed; the source stays intact.
	var packed map[string]*models.ElementProperties
	data, err := os.ReadFile(filepath.Join(outDemo, "extra_element_properties", "page-0-0.json"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if err := json.Unmarshal(data, &packed); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if packed["aaa"].SetOfMarks != 1 || packed["bbb"].SetOfMarks != 0 {
		t.Errorf("packed marks = aaa:%d bbb:%d, want aaa:1 bbb:0", packed["aaa"].SetOfMarks, packed["bbb"].SetOfMarks)
	}

	var source map[string]*models.ElementProperties
	data, err = os.ReadFile(filepath.Join(dataset.DemosDir(dataDir), "demoa", "extra_element_properties", "page-0-0.json"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if err := json.Unmarshal(data, &source); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if source["bbb"].SetOfMarks != 1 {
		t.Error("source file must not be modified")
	}

	names := zipEntryNames(t, filepath.Join(dataset.ZipsDir(outDir), "demoa.zip"))
	if len(names) != 9 {
		t.Errorf("zip has %d entries, want 9: %v", len(names), names)
	}
	found := false
	for _, n := range names {
		if n == "pages/page-0-0.html" {
			found = true
		}
	}
	if !found {
		t.Errorf("zip entries missing page html: %v", names)
	}
}

func TestRunnerRun_DefaultIndexLocation(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	seedDemo(t, dataDir)
	seedIndex(t, metadata.IndexPath(outDir))

	// No explicit index path and no split filter: unknown splits in the
	// default list are warned about and skipped.
	res, err := NewRunner(testConfig(dataDir, outDir)).Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Demos != 1 {
		t.Errorf("Demos = %d, want 1", res.Demos)
	}
}

func TestRunnerRun_MissingStepFiles(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	seedDemo(t, dataDir)

	index := models.MetadataIndex{"train": {"demoa": {0: taskStep()}}}
	index["train"]["demoa"][0].HTMLPath = "demoa/pages/page-9-9.html"
	indexPath := filepath.Join(dataDir, "metadata.json")
	if err := metadata.WriteIndex(index, indexPath); err != nil {
		t.Fatalf("WriteIndex error: %v", err)
	}

	res, err := NewRunner(testConfig(dataDir, outDir)).Run(context.Background(), Options{
		IndexPath: indexPath,
		Splits:    []string{"train"},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Missing != 1 {
		t.Errorf("Missing = %d, want 1", res.Missing)
	}
	if res.FilesCopied != 8 {
		t.Errorf("FilesCopied = %d, want 8", res.FilesCopied)
	}
}

func TestRunnerRun_BadIndex(t *testing.T) {
	dataDir := t.TempDir()
	cfg := testConfig(dataDir, t.TempDir())
	if _, err := NewRunner(cfg).Run(context.Background(), Options{IndexPath: filepath.Join(dataDir, "nope.json")}); err == nil {
		t.Fatal("expected error for missing index")
	}
}
