// internal/pack/extraprops_test.go
package pack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/web-traces/wlprep/internal/som"
	"github.com/web-traces/wlprep/pkg/models"
)

var packOpts = som.Options{IoUThreshold: 0.75, MinArea: 50, MaxArea: 500000}

func box(x, y, w, h float64) *models.BoundingBox {
	return &models.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func TestPostProcessExtraProps(t *testing.T) {
	props := map[string]*models.ElementProperties{
		"aaa": {BBox: box(0, 0, 100, 100), SetOfMarks: 1, Clickable: 1},
		"bbb": {BBox: box(0, 0, 102, 102), SetOfMarks: 1, Clickable: 1},
		"ccc": {BBox: nil, SetOfMarks: 1, Clickable: 1},
		"ddd": {BBox: box(0, 200, 5, 5), SetOfMarks: 1, Clickable: 1},
		"eee": {BBox: box(200, 200, 1000, 1000), SetOfMarks: 1, Clickable: 1},
		"fff": {BBox: box(500, 0, 30, 30), SetOfMarks: 0, Clickable: 1},
		"ggg": {BBox: box(0, 500, 60, 10), SetOfMarks: 1, Clickable: 0},
	}

	PostProcessExtraProps(props, packOpts)

	if len(props) != 7 {
		t.Fatalf("entry count changed: %d", len(props))
	}

	wantMarks := map[string]models.IntBool{
		"aaa": 1, // in band, accepted before the larger overlapping box
		"bbb": 0, // IoU with aaa above threshold
		"ccc": 0, // no bbox
		"ddd": 0, // below the area band
		"eee": 0, // above the area band
		"fff": 0, // never marked
		"ggg": 1, // in band, no overlap
	}
	for id, want := range wantMarks {
		if got := props[id].SetOfMarks; got != want {
			t.Errorf("props[%q].SetOfMarks = %d, want %d", id, got, want)
		}
	}

	if props["ccc"].Clickable != 0 {
		t.Error("entry without bbox should lose the clickable flag")
	}
	for _, id := range []string{"aaa", "bbb", "ddd", "eee", "fff"} {
		if props[id].Clickable != 1 {
			t.Errorf("props[%q].Clickable changed, want 1", id)
		}
	}
}

func TestPostProcessExtraProps_Empty(t *testing.T) {
	props := map[string]*models.ElementProperties{}
	if got := PostProcessExtraProps(props, packOpts); len(got) != 0 {
		t.Errorf("expected empty result, got %d entries", len(got))
	}
}

func TestPostProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page-0-0.json")
	src := `{
		"aaa": {"bbox": [0,0,100,100], "visibility": 1, "set_of_marks": 1, "clickable": 1, "tag_name": "button"},
		"bbb": {"bbox": [0,0,102,102], "visibility": 1, "set_of_marks": 1, "clickable": 1},
		"ccc": {"bbox": null, "visibility": 0, "set_of_marks": 1, "clickable": 1}
	}`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	if err := postProcessFile(path, packOpts); err != nil {
		t.Fatalf("postProcessFile error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	props := map[string]*models.ElementProperties{}
	if err := json.Unmarshal(data, &props); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if props["aaa"].SetOfMarks != 1 || props["bbb"].SetOfMarks != 0 {
		t.Errorf("marks = aaa:%d bbb:%d, want aaa:1 bbb:0", props["aaa"].SetOfMarks, props["bbb"].SetOfMarks)
	}
	if props["ccc"].SetOfMarks != 0 || props["ccc"].Clickable != 0 {
		t.Error("null bbox entry should lose mark and clickable flags")
	}
	if string(props["aaa"].Extra["tag_name"]) != `"button"` {
		t.Errorf("passthrough field lost: %s", props["aaa"].Extra["tag_name"])
	}
}

func TestPostProcessFile_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page-0-0.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if err := postProcessFile(path, packOpts); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}
