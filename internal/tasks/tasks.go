// internal/tasks/tasks.go
package tasks

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/pkg/models"
)

// TaskMetadataDir is where the harness expects its CSVs, under the output
// directory.
const TaskMetadataDir = "browsergym/task_metadata"

// BrowserGymSplit converts a dataset split into the harness label; only
// test_iid changes name.
func BrowserGymSplit(split string) string {
	if split == "test_iid" {
		return "test"
	}
	return split
}

// FromIndex selects the benchmark-eligible steps of one split: every step
// that is a task and has its full snapshot on disk, ordered by demo id and
// step number.
func FromIndex(index models.MetadataIndex, split string) []models.TaskRow {
	demos := index[split]

	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []models.TaskRow
	for _, name := range names {
		steps := demos[name]
		keys := make([]int, 0, len(steps))
		for k := range steps {
			keys = append(keys, k)
		}
		sort.Ints(keys)

		for _, k := range keys {
			rec := steps[k]
			if rec == nil || !rec.IsTask || !rec.HasFullSnapshot {
				continue
			}
			rows = append(rows, models.TaskRow{
				TaskName:        fmt.Sprintf("weblinx.%s.%d", name, k),
				DemoName:        name,
				Step:            k,
				Split:           split,
				BrowserGymSplit: BrowserGymSplit(split),
			})
		}
	}
	return rows
}

// WriteCSVs writes weblinx_<split>.csv for every known split present in the
// index, plus the combined weblinx_all.csv. Unknown splits are skipped with
// a warning. Returns the task count per split.
func WriteCSVs(index models.MetadataIndex, outputDir string) (map[string]int, error) {
	dir := filepath.Join(outputDir, filepath.FromSlash(TaskMetadataDir))

	var all []models.TaskRow
	counts := map[string]int{}

	for _, split := range dataset.KnownSplits {
		if _, ok := index[split]; !ok {
			continue
		}
		rows := FromIndex(index, split)
		counts[split] = len(rows)
		log.Info().Str("split", split).Int("tasks", len(rows)).Msg("Collected tasks")

		if err := writeCSV(filepath.Join(dir, "weblinx_"+split+".csv"), rows); err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}

	for split := range index {
		if !dataset.IsKnownSplit(split) {
			log.Warn().Str("split", split).Msg("Skipping unknown split")
		}
	}

	if err := writeCSV(filepath.Join(dir, "weblinx_all.csv"), all); err != nil {
		return nil, err
	}
	return counts, nil
}

func writeCSV(path string, rows []models.TaskRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"task_name", "demo_name", "step", "split", "browsergym_split"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{row.TaskName, row.DemoName, strconv.Itoa(row.Step), row.Split, row.BrowserGymSplit}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
