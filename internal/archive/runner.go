// internal/archive/runner.go
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/internal/ui"
)

// Runner archives every demonstration directory into its own zip, resuming
// from a checkpoint on re-runs.
type Runner struct {
	cfg *config.Config
}

// NewRunner creates an archive runner.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Options controls a zip run.
type Options struct {
	Overwrite bool // rezip demonstrations the checkpoint already lists
}

// Result counts run outcomes.
type Result struct {
	Zipped  int
	Skipped int
	Failed  int
}

// Run zips each directory under demonstrations/ into
// demonstrations_zip/<id>.zip.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	demosDir := dataset.DemosDir(r.cfg.DataDir)
	entries, err := os.ReadDir(demosDir)
	if err != nil {
		return nil, fmt.Errorf("list demonstrations: %w", err)
	}

	var demos []string
	for _, e := range entries {
		if e.IsDir() {
			demos = append(demos, e.Name())
		}
	}

	result := &Result{}
	if len(demos) == 0 {
		log.Info().Msg("No demonstrations to zip")
		return result, nil
	}

	zipsDir := dataset.ZipsDir(r.cfg.DataDir)
	if err := os.MkdirAll(zipsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", zipsDir, err)
	}

	cp, err := LoadCheckpoint(filepath.Join(zipsDir, CheckpointFile))
	if err != nil {
		return nil, err
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(demos) {
		workers = len(demos)
	}

	log.Info().
		Int("demos", len(demos)).
		Int("already_done", cp.Len()).
		Int("workers", workers).
		Msg("Starting demonstration zipping")

	bar := ui.NewProgressBar(len(demos), "zipping", r.cfg.LogLevel != "error" && !r.cfg.JSONLog)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range demos {
		id := id
		g.Go(func() error {
			defer bar.Add(1)

			out := r.zipDemo(gctx, cp, zipsDir, filepath.Join(demosDir, id), id, opts)

			mu.Lock()
			switch out {
			case outcomeZipped:
				result.Zipped++
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				result.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	bar.Finish()

	log.Info().
		Int("zipped", result.Zipped).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Demonstration zipping complete")

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

type outcome int

const (
	outcomeZipped outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *Runner) zipDemo(ctx context.Context, cp *Checkpoint, zipsDir, demoDir, id string, opts Options) outcome {
	if ctx.Err() != nil {
		return outcomeSkipped
	}
	if cp.Done(id) && !opts.Overwrite {
		log.Debug().Str("demo", id).Msg("Already zipped, skipping")
		return outcomeSkipped
	}

	zipName := id + ".zip"
	if err := ZipDirectory(demoDir, filepath.Join(zipsDir, zipName)); err != nil {
		log.Warn().Err(err).Str("demo", id).Msg("Zipping failed")
		cp.Clear(id)
		return outcomeFailed
	}

	if err := cp.Mark(id, zipName); err != nil {
		log.Error().Err(err).Str("demo", id).Msg("Failed to update checkpoint")
	}
	log.Debug().Str("demo", id).Str("zip", zipName).Msg("Zipped demonstration")
	return outcomeZipped
}
