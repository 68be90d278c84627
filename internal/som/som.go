// internal/som/som.go
package som

import (
	"math"
	"sort"

	"github.com/web-traces/wlprep/internal/geometry"
	"github.com/web-traces/wlprep/pkg/models"
)

// Candidate pairs an element uid with its recorded bounding box.
type Candidate struct {
	ID  string
	Box models.BoundingBox
}

// Options bound which candidates may become marks.
type Options struct {
	IoUThreshold float64
	MinArea      float64
	MaxArea      float64 // non-positive means unlimited
}

// SelectMarks decides which candidates survive as set-of-marks annotations.
// Candidates are processed smallest area first (stable sort, input order
// breaks ties) so small, specific elements win over containers that visually
// subsume them. A candidate is dropped when its box is degenerate, its area
// falls outside [MinArea, MaxArea], or it overlaps an already accepted box
// above the IoU threshold. Only accepted boxes join the comparison list, so
// a rejected container never shadows later candidates.
func SelectMarks(candidates []Candidate, opts Options) map[string]bool {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Box.Area() < ordered[j].Box.Area()
	})

	maxArea := opts.MaxArea
	if maxArea <= 0 {
		maxArea = math.MaxFloat64
	}

	selected := make(map[string]bool, len(ordered))
	accepted := make([]models.BoundingBox, 0, len(ordered))

	for _, c := range ordered {
		area := c.Box.Area()
		if area <= 0 {
			continue
		}
		if area < opts.MinArea || area > maxArea {
			continue
		}

		overlaps := false
		for _, prev := range accepted {
			if geometry.IntersectionOverUnion(c.Box, prev) > opts.IoUThreshold {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}

		selected[c.ID] = true
		accepted = append(accepted, c.Box)
	}
	return selected
}

// MergeBoxes overwrites the geometry-derived fields of props from the
// recorded boxes. Ids with a box get that box, their on-screen visibility
// and their mark flag from SelectMarks; ids without a box become invisible
// non-marks with every other field untouched. Candidates enter the mark
// selection in sorted id order so the tie-break is independent of map
// iteration. Box ids absent from props are ignored. props is mutated and
// returned.
func MergeBoxes(props map[string]*models.ElementProperties, boxes map[string]models.BoundingBox, screen models.Screen, opts Options) map[string]*models.ElementProperties {
	ids := make([]string, 0, len(props))
	for id := range props {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if box, ok := boxes[id]; ok {
			candidates = append(candidates, Candidate{ID: id, Box: box})
		}
	}
	marks := SelectMarks(candidates, opts)

	for _, id := range ids {
		p := props[id]
		box, ok := boxes[id]
		if !ok {
			p.Visibility = 0
			p.SetOfMarks = 0
			continue
		}

		b := box
		p.BBox = &b
		p.Visibility = geometry.VisibilityFraction(box, screen)
		if marks[id] {
			p.SetOfMarks = 1
		} else {
			p.SetOfMarks = 0
		}
	}
	return props
}
