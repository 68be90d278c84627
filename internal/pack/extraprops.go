// internal/pack/extraprops.go
package pack

import (
	"fmt"
	"math"
	"os"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/web-traces/wlprep/internal/som"
	"github.com/web-traces/wlprep/pkg/models"
)

// PostProcessExtraProps applies the packaging mark rules in place. Entries
// without a usable bbox lose both the mark and the clickable flag. Marked
// entries outside the area band lose the mark. The surviving marks are then
// deduplicated by IoU, feeding candidates in sorted uid order so the result
// does not depend on map iteration. No entry is ever removed.
func PostProcessExtraProps(props map[string]*models.ElementProperties, opts som.Options) map[string]*models.ElementProperties {
	maxArea := opts.MaxArea
	if maxArea <= 0 {
		maxArea = math.MaxFloat64
	}

	ids := make([]string, 0, len(props))
	for id := range props {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	candidates := make([]som.Candidate, 0, len(ids))
	for _, id := range ids {
		p := props[id]
		if p.BBox == nil {
			p.SetOfMarks = 0
			p.Clickable = 0
			continue
		}
		if p.SetOfMarks.Bool() {
			area := p.BBox.Area()
			if area < opts.MinArea || area > maxArea {
				p.SetOfMarks = 0
			}
		}
		if p.SetOfMarks.Bool() {
			candidates = append(candidates, som.Candidate{ID: id, Box: *p.BBox})
		}
	}

	marks := som.SelectMarks(candidates, opts)
	for _, c := range candidates {
		if !marks[c.ID] {
			props[c.ID].SetOfMarks = 0
		}
	}
	return props
}

// postProcessFile rewrites one copied extra-properties file with the
// packaging mark rules applied.
func postProcessFile(path string, opts som.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	props := map[string]*models.ElementProperties{}
	if err := jsoniter.Unmarshal(data, &props); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	PostProcessExtraProps(props, opts)

	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(props)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
