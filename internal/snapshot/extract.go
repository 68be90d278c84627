// internal/snapshot/extract.go
package snapshot

import (
	"encoding/json"
	"regexp"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/domsnapshot"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/web-traces/wlprep/pkg/models"
)

// AXTree is the merged accessibility tree written to axtrees/<page>.json.
type AXTree struct {
	Nodes []*AXNode `json:"nodes"`
}

// AXNode decorates a protocol node with the element id recovered from the
// injected markers.
type AXNode struct {
	*accessibility.Node
	BrowserGymID string `json:"browsergym_id,omitempty"`
}

// DOMSnapshot is the capture payload written to dom_snapshots/<page>.json.
// All documents share the one string table.
type DOMSnapshot struct {
	Documents []*domsnapshot.DocumentSnapshot `json:"documents"`
	Strings   []string                        `json:"strings"`
}

// The injection leaves "browsergym_id_<id> <original value>" in the aria
// attributes; the marker always carries a trailing space even when the
// original value was empty.
var markerRe = regexp.MustCompile(`(?s)\Abrowsergym_id_(\S+) (.*)\z`)

func splitMarker(s string) (id, rest string, ok bool) {
	m := markerRe.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func rawString(raw jsontext.Value) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func quoteRaw(s string) jsontext.Value {
	b, err := json.Marshal(s)
	if err != nil {
		return jsontext.Value(`""`)
	}
	return jsontext.Value(b)
}

// RecoverAXMarkers pulls the injected id markers out of every node. The
// marker can surface through the roledescription property or, for generic
// nodes, through the description field. Both are stripped back to their
// original value and dropped entirely when the original value was empty.
func RecoverAXMarkers(tree *AXTree) {
	if tree == nil {
		return
	}
	for _, node := range tree.Nodes {
		if node == nil || node.Node == nil {
			continue
		}

		if len(node.Properties) > 0 {
			kept := node.Properties[:0]
			for _, prop := range node.Properties {
				if prop == nil || prop.Name != "roledescription" || prop.Value == nil {
					kept = append(kept, prop)
					continue
				}
				value, ok := rawString(prop.Value.Value)
				if !ok {
					kept = append(kept, prop)
					continue
				}
				id, rest, found := splitMarker(value)
				if !found {
					kept = append(kept, prop)
					continue
				}
				node.BrowserGymID = id
				if rest == "" {
					continue
				}
				prop.Value.Value = quoteRaw(rest)
				kept = append(kept, prop)
			}
			node.Properties = kept
		}

		if node.Description != nil {
			if value, ok := rawString(node.Description.Value); ok {
				if id, rest, found := splitMarker(value); found {
					node.BrowserGymID = id
					if rest == "" {
						node.Description = nil
					} else {
						node.Description.Value = quoteRaw(rest)
					}
				}
			}
		}
	}
}

// CleanupRoleDescriptions strips the injected markers from
// aria-roledescription attribute values in the snapshot string table. The
// aria-description markers are kept, matching the published artifacts.
func CleanupRoleDescriptions(snap *DOMSnapshot) {
	if snap == nil {
		return
	}
	target := stringIndexOf(snap.Strings, "aria-roledescription")
	if target < 0 {
		return
	}

	processed := make(map[int64]bool)
	for _, doc := range snap.Documents {
		if doc == nil || doc.Nodes == nil {
			continue
		}
		for _, attrs := range doc.Nodes.Attributes {
			for i := 0; i+1 < len(attrs); i += 2 {
				if int64(attrs[i]) != target {
					continue
				}
				valueIdx := int64(attrs[i+1])
				if processed[valueIdx] || valueIdx < 0 || valueIdx >= int64(len(snap.Strings)) {
					continue
				}
				processed[valueIdx] = true
				if _, rest, found := splitMarker(snap.Strings[valueIdx]); found {
					snap.Strings[valueIdx] = rest
				}
			}
		}
	}
}

// ExtractElementProperties collects one property record per element carrying
// a bid attribute, across every document in the snapshot. The bounding box
// comes from the layout tree when the node was laid out; recorded boxes
// overwrite it later, so no cross-frame offset adjustment is attempted.
func ExtractElementProperties(snap *DOMSnapshot) map[string]*models.ElementProperties {
	props := make(map[string]*models.ElementProperties)
	if snap == nil {
		return props
	}
	bidIdx := stringIndexOf(snap.Strings, "bid")
	if bidIdx < 0 {
		return props
	}

	for _, doc := range snap.Documents {
		if doc == nil || doc.Nodes == nil {
			continue
		}

		bounds := make(map[int64]domsnapshot.Rectangle)
		if doc.Layout != nil {
			for i, nodeIdx := range doc.Layout.NodeIndex {
				if i < len(doc.Layout.Bounds) {
					bounds[nodeIdx] = doc.Layout.Bounds[i]
				}
			}
		}

		clickable := make(map[int64]bool)
		if doc.Nodes.IsClickable != nil {
			for _, idx := range doc.Nodes.IsClickable.Index {
				clickable[idx] = true
			}
		}

		for nodeIdx, attrs := range doc.Nodes.Attributes {
			id := ""
			for i := 0; i+1 < len(attrs); i += 2 {
				if int64(attrs[i]) == bidIdx {
					id = stringAt(snap.Strings, int64(attrs[i+1]))
				}
			}
			if id == "" {
				continue
			}

			p := &models.ElementProperties{}
			if rect, ok := bounds[int64(nodeIdx)]; ok && len(rect) == 4 {
				p.BBox = &models.BoundingBox{X: rect[0], Y: rect[1], Width: rect[2], Height: rect[3]}
			}
			if clickable[int64(nodeIdx)] {
				p.Clickable = 1
			}
			props[id] = p
		}
	}
	return props
}

func stringIndexOf(table []string, s string) int64 {
	for i, v := range table {
		if v == s {
			return int64(i)
		}
	}
	return -1
}

func stringAt(table []string, idx int64) string {
	if idx < 0 || idx >= int64(len(table)) {
		return ""
	}
	return table[idx]
}
