package models

import (
	"encoding/json"
	"fmt"
)

// BoundingBox is an axis-aligned rectangle in screen pixel coordinates.
// Width and height may be zero or negative; a box with non-positive area
// is degenerate and carries no usable geometry. Recorded bbox files store
// boxes in this object form (extra keys such as top/right are ignored).
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns width times height, negative for degenerate boxes.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Array returns the [x, y, width, height] form used inside element
// property files.
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.X, b.Y, b.Width, b.Height}
}

// Screen is the visible frame a snapshot was rendered in, typically probed
// from the matching screenshot.
type Screen struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IntBool is a boolean persisted as 0 or 1. Older property files carry true
// JSON booleans, so both encodings are accepted on read.
type IntBool int

// Bool reports whether the flag is set.
func (v IntBool) Bool() bool { return v != 0 }

func (v IntBool) MarshalJSON() ([]byte, error) {
	if v != 0 {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (v *IntBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*v = 1
		return nil
	case "false", "null":
		*v = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("intbool: %w", err)
	}
	if f != 0 {
		*v = 1
	} else {
		*v = 0
	}
	return nil
}

// ElementProperties is one entry of an extra_element_properties file, keyed
// by the element uid. BBox serializes as [x,y,width,height] or null; fields
// this tool does not interpret are preserved verbatim in Extra.
type ElementProperties struct {
	BBox       *BoundingBox
	Visibility float64
	SetOfMarks IntBool
	Clickable  IntBool
	Extra      map[string]json.RawMessage
}

func (p ElementProperties) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.BBox != nil {
		out["bbox"] = p.BBox.Array()
	} else {
		out["bbox"] = nil
	}
	out["visibility"] = p.Visibility
	out["set_of_marks"] = p.SetOfMarks
	out["clickable"] = p.Clickable
	return json.Marshal(out)
}

func (p *ElementProperties) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if b, ok := raw["bbox"]; ok {
		delete(raw, "bbox")
		if string(b) != "null" {
			var arr []float64
			if err := json.Unmarshal(b, &arr); err != nil {
				return fmt.Errorf("element bbox: %w", err)
			}
			// malformed arrays are kept as "no bbox" rather than failing the file
			if len(arr) == 4 {
				p.BBox = &BoundingBox{X: arr[0], Y: arr[1], Width: arr[2], Height: arr[3]}
			}
		}
	}
	if v, ok := raw["visibility"]; ok {
		delete(raw, "visibility")
		var vis IntBoolOrFloat
		if err := json.Unmarshal(v, &vis); err != nil {
			return fmt.Errorf("element visibility: %w", err)
		}
		p.Visibility = float64(vis)
	}
	if v, ok := raw["set_of_marks"]; ok {
		delete(raw, "set_of_marks")
		if err := json.Unmarshal(v, &p.SetOfMarks); err != nil {
			return fmt.Errorf("element set_of_marks: %w", err)
		}
	}
	if v, ok := raw["clickable"]; ok {
		delete(raw, "clickable")
		if err := json.Unmarshal(v, &p.Clickable); err != nil {
			return fmt.Errorf("element clickable: %w", err)
		}
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	return nil
}

// IntBoolOrFloat decodes a number or a JSON boolean into a float64.
type IntBoolOrFloat float64

func (v *IntBoolOrFloat) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*v = 1
		return nil
	case "false", "null":
		*v = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = IntBoolOrFloat(f)
	return nil
}

// Tab identifies the browser tab a step happened in. Both fields stay null
// until the replay provides them.
type Tab struct {
	URL *string      `json:"url"`
	ID  *json.Number `json:"id"`
}

// ElementRecord is the action target carried by element-bound steps of the
// metadata index. Attributes are dropped by the builder when only the uid
// attribute is present.
type ElementRecord struct {
	Attributes  map[string]string  `json:"attributes,omitempty"`
	BBox        map[string]float64 `json:"bbox,omitempty"`
	TagName     string             `json:"tagName,omitempty"`
	TextContent string             `json:"textContent,omitempty"`
	InnerHTML   string             `json:"innerHTML,omitempty"`
	OuterHTML   string             `json:"outerHTML,omitempty"`
	XPath       string             `json:"xpath,omitempty"`
}

// StepRecord is one entry of the consolidated metadata index, keyed by the
// turn index within its demonstration.
type StepRecord struct {
	Intent          string         `json:"intent"`
	Args            map[string]any `json:"args"`
	IsTask          bool           `json:"is_task"`
	HasFullSnapshot bool           `json:"has_full_snapshot"`
	Timestamp       float64        `json:"timestamp"`
	ScreenshotPath  string         `json:"screenshot_path"`
	BBoxPath        string         `json:"bbox_path"`
	HTMLPath        string         `json:"html_path"`
	Tab             Tab            `json:"tab"`
	Zoom            float64        `json:"zoom"`

	// Derived snapshot files, null while the snapshots stage has not run.
	AXTreePath        *string `json:"axtree_path"`
	DOMObjectPath     *string `json:"dom_object_path"`
	ExtraPropsPath    *string `json:"extra_props_path"`
	FocusedElementUID *string `json:"focused_element_uid"`

	// Demonstration-level annotator form passthrough.
	UserSeesScreen json.RawMessage `json:"user_sees_screen"`
	UsesAIOutput   json.RawMessage `json:"uses_ai_output"`
	AnnotatorID    json.RawMessage `json:"annotator_id"`
	UploadDate     json.RawMessage `json:"upload_date"`

	Element    *ElementRecord `json:"element,omitempty"`
	NumActions int            `json:"num_actions"`
}

// MetadataIndex is the full consolidated index: split -> demo id -> turn
// index -> step.
type MetadataIndex map[string]map[string]map[int]*StepRecord

// TaskRow is one line of a browsergym task CSV.
type TaskRow struct {
	TaskName        string
	DemoName        string
	Step            int
	Split           string
	BrowserGymSplit string
}
