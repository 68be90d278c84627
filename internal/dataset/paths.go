// internal/dataset/paths.go
package dataset

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Directory names inside one demonstration.
const (
	DirPages       = "pages"
	DirScreenshots = "screenshots"
	DirBBoxes      = "bboxes"
	DirAXTrees     = "axtrees"
	DirDOMSnaps    = "dom_snapshots"
	DirExtraProps  = "extra_element_properties"
)

// DemosDir returns the demonstrations directory of a dataset root.
func DemosDir(root string) string {
	return filepath.Join(root, "demonstrations")
}

// ZipsDir returns the directory holding per-demonstration archives.
func ZipsDir(root string) string {
	return filepath.Join(root, "demonstrations_zip")
}

// SplitsFile returns the splits.json path of a dataset root.
func SplitsFile(root string) string {
	return filepath.Join(root, "splits.json")
}

var pageNumsRe = regexp.MustCompile(`(\d+)-(\d+)\.[A-Za-z0-9]+$`)

// PageNums extracts the two indices embedded in capture file names such as
// page-4-1.html or screenshot-4-1.png.
func PageNums(name string) (int, int, error) {
	m := pageNumsRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, 0, fmt.Errorf("no page indices in %q", name)
	}
	i, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, err
	}
	j, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, err
	}
	return i, j, nil
}

// ScreenshotFile returns the screenshot name for a page index pair.
func ScreenshotFile(i, j int) string {
	return fmt.Sprintf("screenshot-%d-%d.png", i, j)
}

// BBoxesFile returns the bboxes file name for a page index.
func BBoxesFile(i int) string {
	return fmt.Sprintf("bboxes-%d.json", i)
}

// DerivedSnapshotPath rewrites a pages/ path into the matching derived file:
// the "pages" component becomes kind and the extension becomes .json, e.g.
// abc/pages/page-0-0.html -> abc/axtrees/page-0-0.json. Paths are returned
// slash-separated, matching how the index stores them.
func DerivedSnapshotPath(htmlRel, kind string) (string, error) {
	parts := strings.Split(path.Clean(filepath.ToSlash(htmlRel)), "/")
	idx := slices.Index(parts, DirPages)
	if idx < 0 {
		return "", fmt.Errorf("no %q component in %q", DirPages, htmlRel)
	}
	parts[idx] = kind

	last := parts[len(parts)-1]
	parts[len(parts)-1] = strings.TrimSuffix(last, path.Ext(last)) + ".json"
	return path.Join(parts...), nil
}

// FailedMarkerPath returns the failure marker written next to a page's
// axtree output when snapshot extraction gives up.
func FailedMarkerPath(demoDir, pageName string) string {
	stem := strings.TrimSuffix(pageName, path.Ext(pageName))
	return filepath.Join(demoDir, DirAXTrees, stem+"-failed.json")
}
