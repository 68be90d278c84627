// internal/dataset/bboxes.go
package dataset

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/web-traces/wlprep/pkg/models"
)

// LoadBBoxes reads a bboxes-<i>.json file: element uid to bounding box in
// object form. Extra per-box keys recorded by the extension (top, right and
// friends) are dropped.
func LoadBBoxes(path string) (map[string]models.BoundingBox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bboxes: %w", err)
	}
	boxes := map[string]models.BoundingBox{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &boxes); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return boxes, nil
}

// Intent vocabularies of the recording format.
var (
	// ValidIntents are the browser intents the index keeps, in the raw
	// casing the extension records.
	ValidIntents = map[string]bool{
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

	// IntentsWithElement are normalized intents that must carry a target
	// element.
	IntentsWithElement = map[string]bool{
		"click":     true,
		"hover":     true,
		"textinput": true,
		"submit":    true,
	}

	// IntentsWithoutArgs are normalized intents allowed to have empty
	// arguments.
	IntentsWithoutArgs = map[string]bool{
		"tabcreate": true,
	}
)
