// internal/snapshot/errors.go
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// Sentinel errors for capture outcomes
var (
	ErrMissingBBoxes    = errors.New("no bounding boxes recorded for page")
	ErrPreviouslyFailed = errors.New("page previously failed to capture")
)

// CaptureError ties a failure to the page that produced it.
type CaptureError struct {
	Page string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Page, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// FailedMarker records why a page could not be captured. The marker doubles
// as a checkpoint: pages with a marker are skipped on later runs instead of
// burning browser time on a page that is known to hang.
type FailedMarker struct {
	Error        string `json:"error"`
	HTMLFilePath string `json:"html_file_path"`
	Attempts     int    `json:"attempts,omitempty"`
	RunID        string `json:"run_id,omitempty"`
}

// WriteFailedMarker persists the marker next to the axtree output.
func WriteFailedMarker(path string, marker FailedMarker) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(marker)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFailedMarker reads a previously written marker.
func LoadFailedMarker(path string) (*FailedMarker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var marker FailedMarker
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("parse failure marker %s: %w", path, err)
	}
	return &marker, nil
}
