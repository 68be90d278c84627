// Package inspect produces triage reports for recorded demonstrations:
// file inventory, per-page audits, DOM snapshot statistics, and recovery
// of inline page state.
package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
)

// Inspector audits demonstrations under the configured dataset root.
type Inspector struct {
	cfg *config.Config
}

// NewInspector creates a new Inspector instance
func NewInspector(cfg *config.Config) *Inspector {
	return &Inspector{cfg: cfg}
}

// Report is the demonstration-level audit.
type Report struct {
	Demo        string          `json:"demo"`
	Dir         string          `json:"dir"`
	Descriptors map[string]bool `json:"descriptors"`
	Counts      FileCounts      `json:"counts"`
	Pages       []PageReport    `json:"pages"`
	// MissingDerived counts capture outputs (axtree, DOM snapshot, extra
	// properties) absent for recorded pages.
	MissingDerived int `json:"missing_derived"`
}

// FileCounts inventories the capture directories of one demonstration.
type FileCounts struct {
	Pages         int `json:"pages"`
	Screenshots   int `json:"screenshots"`
	BBoxes        int `json:"bboxes"`
	AXTrees       int `json:"axtrees"`
	DOMSnapshots  int `json:"dom_snapshots"`
	ExtraProps    int `json:"extra_element_properties"`
	FailedMarkers int `json:"failed_markers"`
}

// descriptorFiles are the per-demonstration metadata files every recording
// is expected to carry.
var descriptorFiles = []string{"replay.json", "metadata.json", "form.json"}

// Demo audits one demonstration. A non-empty page narrows the report to a
// single recorded page, named with or without the .html suffix.
func (ins *Inspector) Demo(name, page string) (*Report, error) {
	demoDir := filepath.Join(dataset.DemosDir(ins.cfg.DataDir), name)
	info, err := os.Stat(demoDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("demonstration %q not found under %s", name, dataset.DemosDir(ins.cfg.DataDir))
	}

	report := &Report{
		Demo:        name,
		Dir:         demoDir,
		Descriptors: map[string]bool{},
	}
	for _, f := range descriptorFiles {
		report.Descriptors[f] = fileExists(filepath.Join(demoDir, f))
	}
	report.Counts = countFiles(demoDir)

	pages, err := listPages(demoDir)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		if page != "" && p != page && strings.TrimSuffix(p, ".html") != page {
			continue
		}
		pr := ins.auditPage(demoDir, p)
		report.Pages = append(report.Pages, *pr)
		for _, present := range []bool{pr.AXTree, pr.DOMSnapshot, pr.ExtraProps} {
			if !present {
				report.MissingDerived++
			}
		}
	}
	if page != "" && len(report.Pages) == 0 {
		return nil, fmt.Errorf("page %q not recorded in %s", page, name)
	}

	return report, nil
}

// countFiles tallies the capture directories. Failure markers live in the
// axtrees directory and are counted separately from real trees.
func countFiles(demoDir string) FileCounts {
	counts := FileCounts{
		Pages:        countDir(filepath.Join(demoDir, dataset.DirPages)),
		Screenshots:  countDir(filepath.Join(demoDir, dataset.DirScreenshots)),
		BBoxes:       countDir(filepath.Join(demoDir, dataset.DirBBoxes)),
		DOMSnapshots: countDir(filepath.Join(demoDir, dataset.DirDOMSnaps)),
		ExtraProps:   countDir(filepath.Join(demoDir, dataset.DirExtraProps)),
	}

	entries, err := os.ReadDir(filepath.Join(demoDir, dataset.DirAXTrees))
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.HasSuffix(e.Name(), "-failed.json") {
				counts.FailedMarkers++
			} else {
				counts.AXTrees++
			}
		}
	}
	return counts
}

func countDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// listPages returns the recorded page files sorted by their embedded
// indices, so page-10-0 sorts after page-2-0.
func listPages(demoDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(demoDir, dataset.DirPages))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list pages: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".html") {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(a, b int) bool {
		ai, aj, errA := dataset.PageNums(names[a])
		bi, bj, errB := dataset.PageNums(names[b])
		if errA != nil || errB != nil {
			return names[a] < names[b]
		}
		if ai != bi {
			return ai < bi
		}
		return aj < bj
	})
	return names, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
