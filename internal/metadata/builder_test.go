package metadata

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/pkg/models"
)

const demoReplay = `{
  "data": [
    {"type": "chat", "timestamp": 1.0, "speaker": "instructor", "utterance": "Book a flight"},
    {"type": "browser", "timestamp": 2.0,
     "state": {"screenshot": "screenshot-0-0.png", "page": "page-0-0.html"},
     "action": {"intent": "load", "arguments": {
       "metadata": {"tabId": 1, "url": "https://example.com/search"},
       "properties": {"url": "https://example.com/search", "transitionType": "link"}}}},
    {"type": "browser", "timestamp": 3.5,
     "state": {"screenshot": "screenshot-1-0.png", "page": "page-1-0.html"},
     "action": {"intent": "click", "arguments": {
       "metadata": {"zoomLevel": 1.5},
       "element": {
         "attributes": {"data-webtasks-id": "dcf620e2-bd53-4332"},
         "bbox": {"x": 10.123, "y": 20.456, "width": 100.789, "height": 50.111,
                  "top": 20.456, "right": 110.912, "bottom": 70.567, "left": 10.123},
         "tagName": "BUTTON", "textContent": "Search", "xpath": "//button[1]"}}}},
    {"type": "browser", "timestamp": 4.0,
     "action": {"intent": "dragstart", "arguments": {}}},
    {"type": "browser", "timestamp": 5.0,
     "action": {"intent": "textInput", "arguments": {
       "text": "toronto",
       "element": {
         "attributes": {"data-webtasks-id": "aaaaaaaa-bbbb-cccc", "class": "input-lg"},
         "bbox": {"x": 1, "y": 2, "width": 3, "height": 4,
                  "top": 2, "right": 4, "bottom": 6, "left": 1},
         "tagName": "INPUT", "textContent": "", "xpath": "//input[1]"}}}},
    {"type": "chat", "timestamp": 6.0, "speaker": "navigator", "utterance": "Done"}
  ]
}`

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// fixtureDataset lays out one demonstration with two captured pages, where
// only the first page has its snapshot artifacts.
func fixtureDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	demo := filepath.Join(root, "demonstrations", "demoa")

	writeFixture(t, filepath.Join(root, "splits.json"), `{"train": ["demoa"]}`)
	writeFixture(t, filepath.Join(demo, "metadata.json"), `{"recordingStart": 1000.5}`)
	writeFixture(t, filepath.Join(demo, "form.json"),
		`{"instructor_sees_screen": true, "uses_ai_generated_output": false, "annotator": "an-07", "upload_date": "2023-07-22"}`)
	writeFixture(t, filepath.Join(demo, "replay.json"), demoReplay)

	writeFixture(t, filepath.Join(demo, "pages", "page-0-0.html"), "<html>0</html>")
	writeFixture(t, filepath.Join(demo, "pages", "page-1-0.html"), "<html>1</html>")
	writeFixture(t, filepath.Join(demo, "screenshots", "screenshot-0-0.png"), "png")
	writeFixture(t, filepath.Join(demo, "screenshots", "screenshot-1-0.png"), "png")
	writeFixture(t, filepath.Join(demo, "bboxes", "bboxes-0.json"), "{}")
	writeFixture(t, filepath.Join(demo, "bboxes", "bboxes-1.json"), "{}")

	writeFixture(t, filepath.Join(demo, "axtrees", "page-0-0.json"), `{"nodes": []}`)
	writeFixture(t, filepath.Join(demo, "dom_snapshots", "page-0-0.json"), `{"documents": [], "strings": []}`)
	writeFixture(t, filepath.Join(demo, "extra_element_properties", "page-0-0.json"), `{}`)

	return root
}

func buildFixture(t *testing.T, root string) map[int]*models.StepRecord {
	t.Helper()
	b := NewBuilder(&config.Config{DataDir: root, LogLevel: "error"})
	index, err := b.Build(context.Background(), Options{Splits: []string{"train"}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	steps := index["train"]["demoa"]
	if steps == nil {
		t.Fatal("demoa missing from index")
	}
	return steps
}

func TestBuildIndex_Walk(t *testing.T) {
	steps := buildFixture(t, fixtureDataset(t))

	for _, want := range []int{0, 1, 2, 4, 5} {
		if steps[want] == nil {
			t.Fatalf("Step %d missing, got keys %v", want, stepKeys(steps))
		}
	}
	if steps[3] != nil {
		t.Error("Invalid-intent turn 3 should be dropped")
	}
	if len(steps) != 5 {
		t.Fatalf("Emitted %d steps, want 5", len(steps))
	}

	for i, rec := range steps {
		if rec.NumActions != 5 {
			t.Errorf("Step %d num_actions = %d, want 5", i, rec.NumActions)
		}
	}

	say := steps[0]
	if say.Intent != "say" || say.IsTask {
		t.Errorf("Instructor say: intent=%q is_task=%v", say.Intent, say.IsTask)
	}
	if say.ScreenshotPath != "demoa/screenshots/screenshot-0-0.png" {
		t.Errorf("Seeded screenshot = %q", say.ScreenshotPath)
	}
	if say.HTMLPath != "demoa/pages/page-0-0.html" || say.BBoxPath != "demoa/bboxes/bboxes-0.json" {
		t.Errorf("Seeded capture = %q / %q", say.HTMLPath, say.BBoxPath)
	}
	if !say.HasFullSnapshot {
		t.Error("Step 0 uses page-0-0 and should have a full snapshot")
	}
	if math.Abs(say.Timestamp-1001.5) > 1e-9 {
		t.Errorf("Step 0 timestamp = %v", say.Timestamp)
	}

	load := steps[1]
	if load.Intent != "load" {
		t.Errorf("Step 1 intent = %q", load.Intent)
	}
	if load.Tab.ID == nil || load.Tab.ID.String() != "1" {
		t.Errorf("Step 1 tab id = %v", load.Tab.ID)
	}
	if load.Tab.URL == nil || *load.Tab.URL != "https://example.com/search" {
		t.Errorf("Step 1 url = %v", load.Tab.URL)
	}
	if load.Args["url"] != "https://example.com/search" {
		t.Errorf("Step 1 args = %v", load.Args)
	}

	click := steps[2]
	if click.HasFullSnapshot {
		t.Error("Step 2 uses page-1-0 which has no artifacts")
	}
	if click.AXTreePath != nil {
		t.Errorf("Step 2 axtree path = %v", *click.AXTreePath)
	}
	if click.Tab.ID == nil || click.Tab.ID.String() != "1" {
		t.Errorf("Step 2 should inherit tab 1, got %v", click.Tab.ID)
	}
	if click.Tab.URL == nil || *click.Tab.URL != "https://example.com/search" {
		t.Errorf("Step 2 should inherit the tab url, got %v", click.Tab.URL)
	}
	if click.Zoom != 1.5 {
		t.Errorf("Step 2 zoom = %v", click.Zoom)
	}
	if click.Args["uid"] != "dcf620e2-bd53-4332" {
		t.Errorf("Step 2 uid = %v", click.Args["uid"])
	}
	if click.Element == nil {
		t.Fatal("Step 2 element missing")
	}
	if click.Element.Attributes != nil {
		t.Errorf("Single-attribute element should drop attributes, got %v", click.Element.Attributes)
	}
	for key, want := range map[string]float64{
		"x": 10.1, "y": 20.5, "width": 100.8, "height": 50.1,
		"top": 20.5, "right": 110.9, "bottom": 70.6, "left": 10.1,
	} {
		if got := click.Element.BBox[key]; math.Abs(got-want) > 1e-9 {
			t.Errorf("Element bbox %s = %v, want %v", key, got, want)
		}
	}

	input := steps[4]
	if input.Intent != "textinput" {
		t.Errorf("Step 4 intent = %q", input.Intent)
	}
	if input.Args["value"] != "toronto" {
		t.Errorf("Step 4 args = %v", input.Args)
	}
	if _, ok := input.Args["text"]; ok {
		t.Error("Step 4 text arg should be renamed to value")
	}
	if input.HTMLPath != "demoa/pages/page-1-0.html" || input.ScreenshotPath != "demoa/screenshots/screenshot-1-0.png" {
		t.Errorf("Step 4 should carry forward capture files, got %q / %q", input.HTMLPath, input.ScreenshotPath)
	}
	if input.Element == nil || input.Element.Attributes["class"] != "input-lg" {
		t.Error("Multi-attribute element should keep its attributes")
	}

	done := steps[5]
	if !done.IsTask {
		t.Error("Navigator say should be a task step")
	}
	if done.Zoom != 1.0 {
		t.Errorf("Default zoom = %v", done.Zoom)
	}
	if done.FocusedElementUID != nil {
		t.Error("focused_element_uid should stay null")
	}
	if string(done.AnnotatorID) != `"an-07"` {
		t.Errorf("Annotator passthrough = %s", done.AnnotatorID)
	}
}

func TestBuildIndex_DesyncedTurnDropped(t *testing.T) {
	root := fixtureDataset(t)

	// page-2-0 exists but its bboxes file does not
	writeFixture(t, filepath.Join(root, "demonstrations", "demoa", "pages", "page-2-0.html"), "<html>2</html>")
	writeFixture(t, filepath.Join(root, "demonstrations", "demoa", "replay.json"), `{
  "data": [
    {"type": "browser", "timestamp": 1.0,
     "state": {"screenshot": "screenshot-2-0.png", "page": "page-2-0.html"},
     "action": {"intent": "scroll", "arguments": {"scrollX": 0, "scrollY": 120}}}
  ]
}`)

	steps := buildFixture(t, root)
	if len(steps) != 0 {
		t.Errorf("Desynced turn should be dropped, got %d steps", len(steps))
	}
}

func TestBuildIndex_ElementRules(t *testing.T) {
	root := fixtureDataset(t)
	writeFixture(t, filepath.Join(root, "demonstrations", "demoa", "replay.json"), `{
  "data": [
    {"type": "browser", "timestamp": 1.0,
     "action": {"intent": "click", "arguments": {"metadata": {"tabId": 4}}}},
    {"type": "browser", "timestamp": 2.0,
     "action": {"intent": "click", "arguments": {
       "element": {"attributes": {"class": "btn"},
                   "bbox": {"x": 0, "y": 0, "width": 1, "height": 1, "top": 0, "right": 1, "bottom": 1, "left": 0},
                   "tagName": "A"}}}},
    {"type": "browser", "timestamp": 3.0,
     "action": {"intent": "scroll", "arguments": {"scrollX": 0, "scrollY": 50}}}
  ]
}`)

	steps := buildFixture(t, root)

	// click without element and click without uid are both dropped; the
	// scroll survives on carried-forward capture files
	if len(steps) != 1 {
		t.Fatalf("Emitted %d steps, want 1 (keys %v)", len(steps), stepKeys(steps))
	}
	if steps[2] == nil {
		t.Fatal("Scroll step missing")
	}
	if steps[2].NumActions != 1 {
		t.Errorf("num_actions = %d, want 1", steps[2].NumActions)
	}
}

func TestBuildIndex_NoSeedsSkipsEverything(t *testing.T) {
	root := t.TempDir()
	demo := filepath.Join(root, "demonstrations", "demob")
	writeFixture(t, filepath.Join(root, "splits.json"), `{"train": ["demob"]}`)
	writeFixture(t, filepath.Join(demo, "metadata.json"), `{"recordingStart": 5.0}`)
	writeFixture(t, filepath.Join(demo, "form.json"), `{}`)
	writeFixture(t, filepath.Join(demo, "replay.json"), `{
  "data": [{"type": "chat", "timestamp": 1.0, "speaker": "navigator", "utterance": "hi"}]
}`)

	b := NewBuilder(&config.Config{DataDir: root, LogLevel: "error"})
	index, err := b.Build(context.Background(), Options{Splits: []string{"train"}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(index["train"]["demob"]) != 0 {
		t.Errorf("Steps without any capture files should be dropped, got %d", len(index["train"]["demob"]))
	}
}

func TestBuildIndex_UnknownSplit(t *testing.T) {
	root := fixtureDataset(t)
	b := NewBuilder(&config.Config{DataDir: root, LogLevel: "error"})
	if _, err := b.Build(context.Background(), Options{Splits: []string{"nope"}}); err == nil {
		t.Error("Expected error for split missing from splits.json")
	}
}

func TestIndexRoundtrip(t *testing.T) {
	root := fixtureDataset(t)
	b := NewBuilder(&config.Config{DataDir: root, LogLevel: "error"})
	index, err := b.Build(context.Background(), Options{Splits: []string{"train"}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "metadata.json")
	if err := WriteIndex(index, path); err != nil {
		t.Fatalf("WriteIndex failed: %v", err)
	}

	loaded, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}

	in := index["train"]["demoa"]
	out := loaded["train"]["demoa"]
	if len(out) != len(in) {
		t.Fatalf("Roundtrip step count = %d, want %d", len(out), len(in))
	}
	for i, rec := range in {
		got := out[i]
		if got == nil {
			t.Fatalf("Step %d lost in roundtrip", i)
		}
		if got.Intent != rec.Intent || got.IsTask != rec.IsTask ||
			got.HasFullSnapshot != rec.HasFullSnapshot ||
			got.HTMLPath != rec.HTMLPath || got.NumActions != rec.NumActions {
			t.Errorf("Step %d changed in roundtrip: %+v vs %+v", i, got, rec)
		}
	}
}

func stepKeys(m map[int]*models.StepRecord) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
