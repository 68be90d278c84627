// internal/dataset/replay.go
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/web-traces/wlprep/pkg/models"
)

const (
	TurnBrowser = "browser"
	TurnChat    = "chat"

	IntentSay = "say"

	// UIDKey is the attribute the recording extension stamps on every
	// element it tracks.
	UIDKey = "data-webtasks-id"
)

// Replay is the ordered action log of one demonstration.
type Replay struct {
	Turns []Turn `json:"data"`
}

// Turn is one replay entry. Chat turns carry speaker/utterance, browser
// turns carry state and action.
type Turn struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Speaker   string      `json:"speaker,omitempty"`
	Utterance string      `json:"utterance,omitempty"`
	State     *TurnState  `json:"state,omitempty"`
	Action    *TurnAction `json:"action,omitempty"`
}

// TurnState references the capture files recorded alongside a turn, as bare
// file names inside the demonstration's screenshots/ and pages/ directories.
type TurnState struct {
	Screenshot string `json:"screenshot"`
	Page       string `json:"page"`
}

// TurnAction is the raw recorded action. Arguments is decoded with
// json.Number so tab ids and coordinates survive round trips unchanged.
type TurnAction struct {
	Intent    string         `json:"intent"`
	Arguments map[string]any `json:"arguments"`
}

// LoadReplay reads demonstrations/<name>/replay.json under root.
func LoadReplay(root, name string) (*Replay, error) {
	p := filepath.Join(DemosDir(root), name, "replay.json")
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()

	dec := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(f)
	dec.UseNumber()
	var r Replay
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	return &r, nil
}

// Intent returns the recorded intent, or "say" for chat turns.
func (t *Turn) Intent() string {
	if t.Type == TurnChat {
		return IntentSay
	}
	if t.Action == nil {
		return ""
	}
	return t.Action.Intent
}

// Args returns the raw action arguments, nil for chat turns.
func (t *Turn) Args() map[string]any {
	if t.Action == nil {
		return nil
	}
	return t.Action.Arguments
}

func (t *Turn) metadata() map[string]any {
	m, _ := t.Args()["metadata"].(map[string]any)
	return m
}

func (t *Turn) properties() map[string]any {
	m, _ := t.Args()["properties"].(map[string]any)
	return m
}

// TabID returns the recording-side tab id of the turn, nil when absent.
func (t *Turn) TabID() *json.Number {
	if v, ok := t.metadata()["tabId"].(json.Number); ok {
		return &v
	}
	return nil
}

// EventTabID returns the tab id carried in the event properties block. For
// tabcreate and tabswitch this is the created or destination tab, which
// differs from the tab the event was observed on.
func (t *Turn) EventTabID() *json.Number {
	if v, ok := t.properties()["tabId"].(json.Number); ok {
		return &v
	}
	return nil
}

// URL returns the page url the turn happened on, empty when unknown.
func (t *Turn) URL() string {
	s, _ := t.metadata()["url"].(string)
	return s
}

// Zoom returns the recorded zoom level if the recording provides one.
func (t *Turn) Zoom() (float64, bool) {
	if v, ok := t.metadata()["zoomLevel"].(json.Number); ok {
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (t *Turn) HasScreenshot() bool {
	return t.State != nil && t.State.Screenshot != ""
}

func (t *Turn) HasPage() bool {
	return t.State != nil && t.State.Page != ""
}

// BBoxesFile derives the bboxes file name for the turn from its screenshot
// or, failing that, its page name. The boolean is false when neither is
// present.
func (t *Turn) BBoxesFile() (string, bool) {
	if t.State == nil {
		return "", false
	}
	for _, name := range []string{t.State.Screenshot, t.State.Page} {
		if name == "" {
			continue
		}
		if i, _, err := PageNums(name); err == nil {
			return fmt.Sprintf("bboxes-%d.json", i), true
		}
	}
	return "", false
}

// Action is the normalized form of a turn consumed by the index builder:
// lowercased intent, flattened snake_case arguments, typed target element.
type Action struct {
	Intent  string
	Args    map[string]any
	Element *models.ElementRecord
}

// ExtractAction normalizes a turn. Tab events get their ids lifted out of
// the raw properties block; metadata, properties and element blocks never
// leak into Args.
func ExtractAction(t *Turn) *Action {
	if t.Type == TurnChat {
		return &Action{
			Intent: IntentSay,
			Args: map[string]any{
				"speaker":   t.Speaker,
				"utterance": t.Utterance,
			},
		}
	}

	a := &Action{Intent: strings.ToLower(t.Intent()), Args: map[string]any{}}
	args := t.Args()
	if args == nil {
		return a
	}

	props := t.properties()
	switch a.Intent {
	case "tabremove":
		if v, ok := props["tabId"]; ok {
			a.Args["tab_id"] = v
		}
	case "tabswitch":
		if v, ok := props["tabIdOrigin"]; ok {
			a.Args["tab_id_from"] = v
		}
		if v, ok := props["tabId"]; ok {
			a.Args["tab_id_to"] = v
		}
	case "load":
		if v, ok := props["url"]; ok {
			a.Args["url"] = v
		}
	}

	for k, v := range args {
		switch k {
		case "metadata", "element", "properties":
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		a.Args[k] = v
	}

	a.Element = t.elementRecord()
	return a
}

func (t *Turn) elementRecord() *models.ElementRecord {
	raw, ok := t.Args()["element"].(map[string]any)
	if !ok {
		return nil
	}

	el := &models.ElementRecord{}
	if attrs, ok := raw["attributes"].(map[string]any); ok {
		el.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			if s, ok := v.(string); ok {
				el.Attributes[k] = s
			}
		}
	}
	if bbox, ok := raw["bbox"].(map[string]any); ok {
		el.BBox = make(map[string]float64, len(bbox))
		for k, v := range bbox {
			if n, ok := v.(json.Number); ok {
				if f, err := n.Float64(); err == nil {
					el.BBox[k] = f
				}
			}
		}
	}
	el.TagName, _ = raw["tagName"].(string)
	el.TextContent, _ = raw["textContent"].(string)
	el.InnerHTML, _ = raw["innerHTML"].(string)
	el.OuterHTML, _ = raw["outerHTML"].(string)
	el.XPath, _ = raw["xpath"].(string)
	return el
}
