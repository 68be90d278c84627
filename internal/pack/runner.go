// internal/pack/runner.go
package pack

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/archive"
	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/internal/metadata"
	"github.com/web-traces/wlprep/internal/som"
	"github.com/web-traces/wlprep/internal/ui"
	"github.com/web-traces/wlprep/pkg/models"
)

// demoFiles are the per-demonstration descriptor files every packaged demo
// keeps regardless of which steps survive.
var demoFiles = []string{"replay.json", "metadata.json", "form.json"}

// Runner builds the pruned benchmark package: the subset of recordings the
// harness actually replays, with packaging mark rules applied to the copied
// element properties.
type Runner struct {
	cfg *config.Config
}

// NewRunner creates a packaging runner.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Options controls a packaging run.
type Options struct {
	IndexPath string   // consolidated index; defaults to the one in the output dir
	Splits    []string // defaults to every known split
}

// Result counts run outcomes.
type Result struct {
	Demos       int
	FilesCopied int
	Missing     int
	Processed   int
	Zipped      int
}

// Run packages the benchmark subset under the output directory.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	indexPath := opts.IndexPath
	if indexPath == "" {
		indexPath = metadata.IndexPath(r.cfg.OutputDir)
	}
	index, err := metadata.LoadIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	splits := opts.Splits
	if len(splits) == 0 {
		splits = dataset.KnownSplits
	}

	outDemos := dataset.DemosDir(r.cfg.OutputDir)
	outZips := dataset.ZipsDir(r.cfg.OutputDir)
	for _, dir := range []string{outDemos, outZips} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := r.copyIndex(indexPath); err != nil {
		return nil, err
	}

	total := 0
	for _, split := range splits {
		total += len(index[split])
	}

	result := &Result{}
	if total == 0 {
		log.Info().Msg("Nothing to package")
		return result, nil
	}

	log.Info().Int("demos", total).Str("index", indexPath).Msg("Starting packaging")
	bar := ui.NewProgressBar(total, "packing", r.cfg.LogLevel != "error" && !r.cfg.JSONLog)

	for _, split := range splits {
		demos, ok := index[split]
		if !ok {
			log.Warn().Str("split", split).Msg("Split missing from index, skipping")
			continue
		}

		steps := 0
		for _, demo := range demos {
			steps += len(demo)
		}
		log.Info().Str("split", split).Int("demos", len(demos)).Int("steps", steps).Msg("Packing split")

		names := make([]string, 0, len(demos))
		for name := range demos {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if ctx.Err() != nil {
				bar.Finish()
				return result, ctx.Err()
			}

			r.packDemo(name, demos[name], result)

			zipName := name + ".zip"
			if err := archive.ZipDirectory(filepath.Join(outDemos, name), filepath.Join(outZips, zipName)); err != nil {
				log.Warn().Err(err).Str("demo", name).Msg("Zipping packaged demo failed")
			} else {
				result.Zipped++
			}

			result.Demos++
			bar.Add(1)
		}
	}
	bar.Finish()

	log.Info().
		Int("demos", result.Demos).
		Int("files", result.FilesCopied).
		Int("missing", result.Missing).
		Int("processed", result.Processed).
		Int("zipped", result.Zipped).
		Msg("Packaging complete")

	return result, nil
}

// copyIndex places the consolidated index at the package root, skipping the
// copy when it already lives there.
func (r *Runner) copyIndex(indexPath string) error {
	dest := metadata.IndexPath(r.cfg.OutputDir)

	srcInfo, err := os.Stat(indexPath)
	if err != nil {
		return fmt.Errorf("stat index: %w", err)
	}
	if destInfo, err := os.Stat(dest); err == nil && os.SameFile(srcInfo, destInfo) {
		return nil
	}

	if err := copyFile(indexPath, dest); err != nil {
		return fmt.Errorf("copy index: %w", err)
	}
	log.Debug().Str("from", indexPath).Str("to", dest).Msg("Copied metadata index")
	return nil
}

// packDemo copies one demonstration's descriptor files and the artifacts of
// its benchmark-eligible steps, post-processing copied element properties.
func (r *Runner) packDemo(name string, steps map[int]*models.StepRecord, res *Result) {
	demosDir := dataset.DemosDir(r.cfg.DataDir)
	outDir := filepath.Join(dataset.DemosDir(r.cfg.OutputDir), name)
	logger := log.With().Str("demo", name).Logger()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		logger.Error().Err(err).Msg("Failed to create package directory")
		return
	}

	for _, file := range demoFiles {
		src := filepath.Join(demosDir, name, file)
		dst := filepath.Join(outDir, file)
		if fileExists(dst) {
			continue
		}
		if !fileExists(src) {
			logger.Warn().Str("file", file).Msg("Descriptor file missing")
			res.Missing++
			continue
		}
		if err := copyFile(src, dst); err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Copy failed")
			res.Missing++
			continue
		}
		res.FilesCopied++
	}

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

		rels := []string{rec.BBoxPath, rec.HTMLPath, rec.ScreenshotPath}
		for _, p := range []*string{rec.AXTreePath, rec.DOMObjectPath, rec.ExtraPropsPath} {
			if p != nil {
				rels = append(rels, *p)
			}
		}

		for _, rel := range rels {
			if rel == "" {
				continue
			}
			src := filepath.Join(demosDir, filepath.FromSlash(rel))
			if !fileExists(src) {
				logger.Warn().Str("file", rel).Msg("Step file missing")
				res.Missing++
				continue
			}

			dst := filepath.Join(dataset.DemosDir(r.cfg.OutputDir), filepath.FromSlash(rel))
			if err := copyFile(src, dst); err != nil {
				logger.Warn().Err(err).Str("file", rel).Msg("Copy failed")
				res.Missing++
				continue
			}
			res.FilesCopied++

			if rec.ExtraPropsPath != nil && rel == *rec.ExtraPropsPath {
				if err := postProcessFile(dst, som.Options{
					IoUThreshold: r.cfg.PackIoU,
					MinArea:      r.cfg.PackMinArea,
					MaxArea:      r.cfg.PackMaxArea,
				}); err != nil {
					logger.Warn().Err(err).Str("file", rel).Msg("Post-processing failed")
				} else {
					res.Processed++
				}
			}
		}
	}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
