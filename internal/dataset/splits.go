// internal/dataset/splits.go
package dataset

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// KnownSplits lists the dataset splits in canonical processing order.
var KnownSplits = []string{
	"train",
	"valid",
	"test_iid",
	"test_geo",
	"test_vis",
	"test_web",
	"test_cat",
}

// IsKnownSplit reports whether name is one of the canonical splits.
func IsKnownSplit(name string) bool {
	for _, s := range KnownSplits {
		if s == name {
			return true
		}
	}
	return false
}

// LoadSplits reads a splits.json mapping split name to demo ids.
func LoadSplits(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read splits: %w", err)
	}
	splits := map[string][]string{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &splits); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return splits, nil
}

// DemoNamesInSplit returns the demo ids of one split, in file order.
func DemoNamesInSplit(path, split string) ([]string, error) {
	splits, err := LoadSplits(path)
	if err != nil {
		return nil, err
	}
	names, ok := splits[split]
	if !ok {
		return nil, fmt.Errorf("split %q not present in %s", split, path)
	}
	return names, nil
}
