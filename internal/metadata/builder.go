// internal/metadata/builder.go
package metadata

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/internal/ui"
	"github.com/web-traces/wlprep/pkg/models"
)

// Browser intents the index keeps, in the recording's casing. Turns with any
// other intent never become steps; chat turns are always eligible.
var validIntents = map[string]bool{
	"click":     true,
	"hover":     true,
	"textInput": true,
	"load":      true,
	"scroll":    true,
	"tabcreate": true,
	"tabswitch": true,
	"tabremove": true,
	"submit":    true,
}

// Intents whose steps must name a target element.
var elementIntents = map[string]bool{
	"click":     true,
	"hover":     true,
	"textinput": true,
	"submit":    true,
}

// tabcreate legitimately ends up with empty args once the created tab id
// moves into the tab field; for every other intent empty args are suspect.
var emptyArgsOK = map[string]bool{"tabcreate": true}

// Element bbox entries rounded to one decimal for the index.
var bboxRoundKeys = []string{"top", "right", "bottom", "left", "x", "y", "width", "height"}

// Builder walks demonstrations into the consolidated metadata index.
type Builder struct {
	cfg *config.Config
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Options filters which splits a build covers.
type Options struct {
	Splits []string // nil means every known split
}

// Build produces the split -> demo -> turn index. Unreadable demonstrations
// are skipped with a warning; a split missing from splits.json fails the run.
func (b *Builder) Build(ctx context.Context, opts Options) (models.MetadataIndex, error) {
	splits := opts.Splits
	if len(splits) == 0 {
		splits = dataset.KnownSplits
	}

	index := models.MetadataIndex{}
	for _, split := range splits {
		names, err := dataset.DemoNamesInSplit(dataset.SplitsFile(b.cfg.DataDir), split)
		if err != nil {
			return nil, err
		}

		log.Info().Str("split", split).Int("demos", len(names)).Msg("Indexing split")
		bar := ui.NewProgressBar(len(names), "indexing "+split, b.cfg.LogLevel != "error" && !b.cfg.JSONLog)

		index[split] = make(map[string]map[int]*models.StepRecord, len(names))
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			demo, err := dataset.LoadDemonstration(b.cfg.DataDir, name)
			if err != nil {
				log.Warn().Err(err).Str("demo", name).Msg("Skipping unreadable demonstration")
				bar.Add(1)
				continue
			}
			replay, err := dataset.LoadReplay(b.cfg.DataDir, name)
			if err != nil {
				log.Warn().Err(err).Str("demo", name).Msg("Skipping demonstration without replay")
				bar.Add(1)
				continue
			}

			index[split][name] = b.walkDemo(demo, replay)
			bar.Add(1)
		}
		bar.Finish()
	}
	return index, nil
}

func (b *Builder) walkDemo(demo *dataset.Demonstration, replay *dataset.Replay) map[int]*models.StepRecord {
	w := &demoWalk{root: b.cfg.DataDir, demo: demo, tabURLs: map[string]string{}}
	return w.run(replay)
}

// demoWalk threads the carry-forward state of one demonstration through its
// turns: the last complete capture files, the active tab, and per-tab urls.
type demoWalk struct {
	root string
	demo *dataset.Demonstration

	lastScreenshot string
	lastHTML       string
	lastBBox       string
	lastTabID      *json.Number
	lastURL        *string
	tabURLs        map[string]string
}

func (w *demoWalk) run(replay *dataset.Replay) map[int]*models.StepRecord {
	w.lastScreenshot = w.seed(path.Join(w.demo.Name, dataset.DirScreenshots, dataset.ScreenshotFile(0, 0)))
	w.lastBBox = w.seed(path.Join(w.demo.Name, dataset.DirBBoxes, dataset.BBoxesFile(0)))
	w.lastHTML = w.seed(path.Join(w.demo.Name, dataset.DirPages, "page-0-0.html"))

	records := map[int]*models.StepRecord{}
	for i := range replay.Turns {
		if rec := w.step(&replay.Turns[i]); rec != nil {
			records[i] = rec
		}
	}

	// every demo step reports the demo's total, known only after the walk
	for _, rec := range records {
		rec.NumActions = len(records)
	}
	return records
}

// step converts one turn, returning nil when the walk rules drop it.
func (w *demoWalk) step(turn *dataset.Turn) *models.StepRecord {
	if turn.Type == dataset.TurnBrowser && !validIntents[turn.Intent()] {
		return nil
	}

	screenshot, ok := w.resolveScreenshot(turn)
	if !ok {
		return nil
	}
	html, bbox, ok := w.resolveCapture(turn)
	if !ok {
		return nil
	}

	axtree := w.derived(html, dataset.DirAXTrees)
	domObj := w.derived(html, dataset.DirDOMSnaps)
	extraProps := w.derived(html, dataset.DirExtraProps)

	action := dataset.ExtractAction(turn)
	tabID := w.resolveTab(turn)
	url := w.resolveURL(turn, action.Intent, tabID)

	element := action.Element
	if elementIntents[action.Intent] && element == nil {
		return nil
	}
	if element != nil {
		uid, ok := element.Attributes[dataset.UIDKey]
		if !ok {
			return nil
		}
		action.Args["uid"] = uid

		// once the uid moved into args the attribute map is redundant,
		// except for the rare elements recorded with more attributes
		if len(element.Attributes) > 1 {
			log.Debug().
				Str("demo", w.demo.Name).
				Interface("attributes", element.Attributes).
				Msg("Element keeps extra attributes")
		} else {
			element.Attributes = nil
		}

		for _, k := range bboxRoundKeys {
			if v, ok := element.BBox[k]; ok {
				element.BBox[k] = math.Round(v*10) / 10
			}
		}
	}

	if len(action.Args) == 0 && !emptyArgsOK[action.Intent] {
		log.Warn().
			Str("demo", w.demo.Name).
			Str("intent", action.Intent).
			Msg("Step has no arguments")
	}

	renameArgs(action.Intent, action.Args)

	speaker, _ := action.Args["speaker"].(string)
	isTask := !(action.Intent == dataset.IntentSay && speaker == "instructor")

	zoom, ok := turn.Zoom()
	if !ok {
		zoom = 1.0
	}

	return &models.StepRecord{
		Intent:          action.Intent,
		Args:            action.Args,
		IsTask:          isTask,
		HasFullSnapshot: axtree != nil && domObj != nil && extraProps != nil,
		Timestamp:       w.demo.Metadata.RecordingStart + turn.Timestamp,
		ScreenshotPath:  screenshot,
		BBoxPath:        bbox,
		HTMLPath:        html,
		Tab:             models.Tab{URL: url, ID: tabID},
		Zoom:            zoom,
		AXTreePath:      axtree,
		DOMObjectPath:   domObj,
		ExtraPropsPath:  extraProps,
		UserSeesScreen:  w.demo.Form.InstructorSeesScreen,
		UsesAIOutput:    w.demo.Form.UsesAIGeneratedOutput,
		AnnotatorID:     w.demo.Form.Annotator,
		UploadDate:      w.demo.Form.UploadDate,
		Element:         element,
	}
}

// resolveScreenshot prefers the turn's own screenshot and falls back to the
// last one seen. A missing-on-disk reference counts as absent.
func (w *demoWalk) resolveScreenshot(turn *dataset.Turn) (string, bool) {
	if turn.HasScreenshot() {
		rel := path.Join(w.demo.Name, dataset.DirScreenshots, turn.State.Screenshot)
		if w.exists(rel) {
			w.lastScreenshot = rel
			return rel, true
		}
	}
	if w.lastScreenshot == "" {
		return "", false
	}
	return w.lastScreenshot, true
}

// resolveCapture pairs the turn's page with its bboxes file. A turn carrying
// exactly one of the two is desynced and dropped outright; a turn carrying
// neither falls back to the last complete pair.
func (w *demoWalk) resolveCapture(turn *dataset.Turn) (html, bbox string, ok bool) {
	html, hasHTML := w.turnHTML(turn)
	bbox, hasBBox := w.turnBBoxes(turn)

	if hasHTML != hasBBox {
		return "", "", false
	}
	if !hasHTML {
		if w.lastHTML == "" || w.lastBBox == "" {
			return "", "", false
		}
		return w.lastHTML, w.lastBBox, true
	}
	w.lastHTML, w.lastBBox = html, bbox
	return html, bbox, true
}

func (w *demoWalk) turnHTML(turn *dataset.Turn) (string, bool) {
	if !turn.HasPage() {
		return "", false
	}
	rel := path.Join(w.demo.Name, dataset.DirPages, turn.State.Page)
	if !w.exists(rel) {
		return "", false
	}
	return rel, true
}

func (w *demoWalk) turnBBoxes(turn *dataset.Turn) (string, bool) {
	name, ok := turn.BBoxesFile()
	if !ok {
		return "", false
	}
	rel := path.Join(w.demo.Name, dataset.DirBBoxes, name)
	if !w.exists(rel) {
		return "", false
	}
	return rel, true
}

// derived maps a pages/ path onto its snapshot artifact, nil when the
// artifact does not exist yet.
func (w *demoWalk) derived(htmlRel, kind string) *string {
	rel, err := dataset.DerivedSnapshotPath(htmlRel, kind)
	if err != nil || !w.exists(rel) {
		return nil
	}
	return &rel
}

// resolveTab follows the recording quirks: tab events carry the created or
// destination tab in their event properties rather than in turn metadata,
// and turns without any tab reuse the last one.
func (w *demoWalk) resolveTab(turn *dataset.Turn) *json.Number {
	recorded := turn.TabID()
	if recorded == nil {
		return w.lastTabID
	}
	id := recorded
	if turn.Intent() == "tabcreate" || turn.Intent() == "tabswitch" {
		if ev := turn.EventTabID(); ev != nil {
			id = ev
		}
	}
	w.lastTabID = id
	return id
}

// resolveURL prefers the turn's recorded url, then the url last seen on the
// same tab, then the last url seen anywhere. Fresh tabs start on about:blank.
func (w *demoWalk) resolveURL(turn *dataset.Turn, intent string, tabID *json.Number) *string {
	if u := turn.URL(); u != "" {
		w.lastURL = &u
		w.tabURLs[tabKey(tabID)] = u
		return &u
	}
	if intent == "tabcreate" {
		blank := "about:blank"
		return &blank
	}
	if u, ok := w.tabURLs[tabKey(tabID)]; ok {
		return &u
	}
	return w.lastURL
}

func tabKey(id *json.Number) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// renameArgs maps recorded argument names onto the published ones.
func renameArgs(intent string, args map[string]any) {
	switch intent {
	case "tabremove":
		if v, ok := args["tab_id"]; ok {
			args["target"] = v
			delete(args, "tab_id")
		}
	case "tabswitch":
		if v, ok := args["tab_id_from"]; ok {
			args["origin"] = v
			delete(args, "tab_id_from")
		}
		if v, ok := args["tab_id_to"]; ok {
			args["target"] = v
			delete(args, "tab_id_to")
		}
	case "textinput":
		if v, ok := args["text"]; ok {
			args["value"] = v
			delete(args, "text")
		}
	}
}

func (w *demoWalk) seed(rel string) string {
	if !w.exists(rel) {
		log.Debug().Str("demo", w.demo.Name).Str("file", rel).Msg("Seed capture file missing")
		return ""
	}
	return rel
}

func (w *demoWalk) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(dataset.DemosDir(w.root), filepath.FromSlash(rel)))
	return err == nil
}
