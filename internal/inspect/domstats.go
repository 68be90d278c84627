// internal/inspect/domstats.go
package inspect

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// DOMStats summarizes a captured DOM snapshot. The snapshot files follow
// the CDP flattened layout: a documents array of parallel node arrays plus
// one shared string table.
type DOMStats struct {
	Documents int   `json:"documents"`
	Nodes     int64 `json:"nodes"`
	Strings   int64 `json:"strings"`
}

// ReadDOMStats extracts counts from a DOM snapshot file. Snapshots run to
// tens of megabytes, so the file is scanned with gjson instead of decoded
// into structs.
func ReadDOMStats(path string) (*DOMStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	root := gjson.ParseBytes(raw)
	docs := root.Get("documents")
	if !docs.IsArray() {
		return nil, fmt.Errorf("no documents array in %s", path)
	}

	stats := &DOMStats{
		Documents: int(root.Get("documents.#").Int()),
		Strings:   root.Get("strings.#").Int(),
	}
	docs.ForEach(func(_, doc gjson.Result) bool {
		stats.Nodes += doc.Get("nodes.parentIndex.#").Int()
		return true
	})
	return stats, nil
}
