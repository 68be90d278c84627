// internal/metadata/index.go
package metadata

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/web-traces/wlprep/pkg/models"
)

// IndexFile is the file name of the consolidated index inside the output
// directory.
const IndexFile = "metadata.json"

// IndexPath returns the canonical index location for an output directory.
func IndexPath(outputDir string) string {
	return filepath.Join(outputDir, IndexFile)
}

// WriteIndex writes the consolidated index as indented JSON, creating the
// parent directory when needed.
func WriteIndex(index models.MetadataIndex, path string) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadIndex reads a consolidated index produced by WriteIndex.
func LoadIndex(path string) (models.MetadataIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	index := models.MetadataIndex{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return index, nil
}
