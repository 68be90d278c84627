// internal/dataset/demonstration.go
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// Demonstration bundles the per-demo descriptor files. The replay is loaded
// separately since several stages never need it.
type Demonstration struct {
	Name     string
	Dir      string
	Metadata DemoMetadata
	Form     Form
}

// DemoMetadata is the slice of demonstrations/<id>/metadata.json this tool
// reads. recordingStart and turn timestamps share a unit, so their sum is
// the absolute step time.
type DemoMetadata struct {
	RecordingStart float64 `json:"recordingStart"`
}

// Form carries the annotator form fields the index passes through. Values
// stay raw: recordings mix booleans, strings and nulls across batches.
type Form struct {
	InstructorSeesScreen  json.RawMessage `json:"instructor_sees_screen"`
	UsesAIGeneratedOutput json.RawMessage `json:"uses_ai_generated_output"`
	Annotator             json.RawMessage `json:"annotator"`
	UploadDate            json.RawMessage `json:"upload_date"`
}

// LoadDemonstration reads metadata.json and form.json of one demonstration.
func LoadDemonstration(root, name string) (*Demonstration, error) {
	d := &Demonstration{
		Name: name,
		Dir:  filepath.Join(DemosDir(root), name),
	}
	if err := readJSON(filepath.Join(d.Dir, "metadata.json"), &d.Metadata); err != nil {
		return nil, fmt.Errorf("demonstration %s: %w", name, err)
	}
	if err := readJSON(filepath.Join(d.Dir, "form.json"), &d.Form); err != nil {
		return nil, fmt.Errorf("demonstration %s: %w", name, err)
	}
	return d, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
