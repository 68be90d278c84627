// internal/snapshot/runner.go
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/browser"
	"github.com/web-traces/wlprep/internal/cache"
	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/internal/ratelimit"
	"github.com/web-traces/wlprep/internal/retry"
	"github.com/web-traces/wlprep/internal/runctx"
	"github.com/web-traces/wlprep/internal/som"
	"github.com/web-traces/wlprep/internal/ui"
	"github.com/web-traces/wlprep/pkg/models"
)

// Runner replays recorded pages and writes accessibility artifacts next to
// them. Work is spread over a pool of warm browser tabs.
type Runner struct {
	cfg     *config.Config
	pool    *browser.Pool
	bboxes  *cache.BBoxCache
	limiter ratelimit.RateLimiter
}

// NewRunner creates a capture runner on top of an initialized browser pool.
func NewRunner(cfg *config.Config, pool *browser.Pool, bboxes *cache.BBoxCache) *Runner {
	return &Runner{
		cfg:     cfg,
		pool:    pool,
		bboxes:  bboxes,
		limiter: ratelimit.NewFixedLimiter(cfg.CaptureRPS, cfg.CaptureBurst),
	}
}

// Options filters which pages a run touches.
type Options struct {
	AllowedDemoIDs []string // nil means every demonstration
	Overwrite      bool     // recapture pages whose artifacts or failure markers exist
	RetryFailed    bool     // recapture marked pages, leaving finished pages alone
}

// Result counts run outcomes.
type Result struct {
	Captured int
	Skipped  int
	Failed   int
}

type outcome int

const (
	outcomeCaptured outcome = iota
	outcomeSkipped
	outcomeFailed
)

// pageJob identifies one recorded page and its artifact paths.
type pageJob struct {
	demoID     string
	demoDir    string
	htmlPath   string
	name       string // page stem, e.g. "page-3-1"
	axtree     string
	domSnap    string
	extraProps string
	failed     string
	bboxes     string
	screenshot string
}

// Run captures every eligible page under demonstrations/*/pages/.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	jobs, err := r.discover(opts)
	if err != nil {
		return nil, fmt.Errorf("discover pages: %w", err)
	}
	if len(jobs) == 0 {
		log.Info().Msg("No pages to capture")
		return &Result{}, nil
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = OptimalWorkers()
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	run := runctx.GetRunContext(ctx)
	log.Info().
		Int("pages", len(jobs)).
		Int("workers", workers).
		Str("run_id", run.RunID).
		Msg("Starting snapshot capture")

	bar := ui.NewProgressBar(len(jobs), "capturing", r.cfg.LogLevel != "error" && !r.cfg.JSONLog)

	result := &Result{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			wg.Wait()
			bar.Finish()
			return result, ctx.Err()
		default:
		}

		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore

		go func(job pageJob) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore

			out := r.processPage(ctx, job, opts)

			mu.Lock()
			switch out {
			case outcomeCaptured:
				result.Captured++
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				result.Failed++
			}
			mu.Unlock()
			bar.Add(1)
		}(job)
	}

	wg.Wait()
	bar.Finish()

	log.Info().
		Int("captured", result.Captured).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Snapshot capture complete")

	return result, nil
}

// discover lists recorded pages in deterministic order and resolves the
// artifact paths for each.
func (r *Runner) discover(opts Options) ([]pageJob, error) {
	demosDir := dataset.DemosDir(r.cfg.DataDir)
	matches, err := filepath.Glob(filepath.Join(demosDir, "*", dataset.DirPages, "*.html"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var allowed map[string]bool
	if opts.AllowedDemoIDs != nil {
		allowed = make(map[string]bool, len(opts.AllowedDemoIDs))
		for _, id := range opts.AllowedDemoIDs {
			allowed[id] = true
		}
	}

	var jobs []pageJob
	for _, htmlPath := range matches {
		pagesDir := filepath.Dir(htmlPath)
		demoDir := filepath.Dir(pagesDir)
		demoID := filepath.Base(demoDir)

		if allowed != nil && !allowed[demoID] {
			continue
		}
		if r.cfg.SkipsDemo(demoID) {
			continue
		}

		base := filepath.Base(htmlPath)
		name := strings.TrimSuffix(base, filepath.Ext(base))

		i, j, err := dataset.PageNums(base)
		if err != nil {
			log.Warn().Str("page", htmlPath).Msg("Skipping page with unrecognized name")
			continue
		}

		jobs = append(jobs, pageJob{
			demoID:     demoID,
			demoDir:    demoDir,
			htmlPath:   htmlPath,
			name:       name,
			axtree:     filepath.Join(demoDir, dataset.DirAXTrees, name+".json"),
			domSnap:    filepath.Join(demoDir, dataset.DirDOMSnaps, name+".json"),
			extraProps: filepath.Join(demoDir, dataset.DirExtraProps, name+".json"),
			failed:     dataset.FailedMarkerPath(demoDir, base),
			bboxes:     filepath.Join(demoDir, dataset.DirBBoxes, dataset.BBoxesFile(i)),
			screenshot: filepath.Join(demoDir, dataset.DirScreenshots, dataset.ScreenshotFile(i, j)),
		})
	}
	return jobs, nil
}

func (r *Runner) processPage(ctx context.Context, job pageJob, opts Options) outcome {
	logger := log.With().Str("demo", job.demoID).Str("page", job.name).Logger()

	hasMarker := fileExists(job.failed)
	if !opts.Overwrite {
		if hasMarker && !opts.RetryFailed {
			logger.Debug().Str("marker", job.failed).Msg("Previously failed, skipping")
			return outcomeSkipped
		}
		if !hasMarker && fileExists(job.axtree) && fileExists(job.domSnap) && fileExists(job.extraProps) {
			logger.Debug().Msg("Artifacts already exist, skipping")
			return outcomeSkipped
		}
	}

	// A page without recorded boxes cannot produce usable element
	// properties, so it is never rendered.
	if !fileExists(job.bboxes) {
		logger.Debug().Str("bboxes", job.bboxes).Msg("No bounding box file, skipping")
		return outcomeSkipped
	}

	screen := models.Screen{Width: r.cfg.ScreenWidth, Height: r.cfg.ScreenHeight}
	if probed, err := ProbeScreen(job.screenshot); err == nil {
		screen = probed
	} else {
		logger.Debug().
			Float64("width", screen.Width).
			Float64("height", screen.Height).
			Msg("Screenshot not probed, using fallback screen")
	}

	boxes, err := r.bboxes.Get(job.bboxes)
	if err != nil {
		logger.Warn().Err(err).Msg("Bounding box file unreadable")
		r.markFailed(ctx, job, err, 0)
		return outcomeFailed
	}

	raw, err := os.ReadFile(job.htmlPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Page HTML unreadable")
		r.markFailed(ctx, job, err, 0)
		return outcomeFailed
	}
	// The browser receives the document over the protocol as UTF-8, so
	// legacy-charset recordings are transcoded up front.
	html, _, decErr := dataset.DecodeHTML(raw)
	if decErr != nil {
		logger.Debug().Err(decErr).Msg("Charset decode failed, using raw bytes")
	}

	if err := r.limiter.Wait(ctx, job.htmlPath); err != nil {
		return outcomeSkipped
	}

	attempts := 0
	var capture *Capture
	err = retry.WithRetry(ctx, retry.CaptureConfig(r.cfg.CaptureRetries), func() error {
		attempts++
		tab, err := r.pool.Acquire(0)
		if err != nil {
			return retry.Permanent(err)
		}

		tctx, cancel := context.WithTimeout(tab.Ctx, r.cfg.CaptureTimeout)
		c, err := CapturePage(tctx, html, CaptureOptions{
			PageLoadTimeout: r.cfg.PageLoadTimeout,
			SettleWait:      r.cfg.SettleWait,
		})
		cancel()

		if err != nil {
			// The tab may be wedged mid-render; replace it instead of
			// handing it to the next page.
			r.pool.Discard(tab)
			return err
		}
		r.pool.Release(tab)
		capture = c
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return outcomeSkipped
		}
		logger.Warn().Err(err).Int("attempts", attempts).Msg("Capture failed")
		r.markFailed(ctx, job, &CaptureError{Page: job.htmlPath, Err: err}, attempts)
		return outcomeFailed
	}

	som.MergeBoxes(capture.ExtraProps, boxes, screen, som.Options{
		IoUThreshold: r.cfg.SnapshotIoU,
		MinArea:      r.cfg.SnapshotMinArea,
		MaxArea:      r.cfg.SnapshotMaxArea,
	})

	if err := r.writeArtifacts(job, capture); err != nil {
		logger.Error().Err(err).Msg("Failed to write artifacts")
		return outcomeFailed
	}

	// A successful capture clears any stale failure marker.
	os.Remove(job.failed)

	logger.Debug().Int("elements", len(capture.ExtraProps)).Msg("Captured page")
	return outcomeCaptured
}

func (r *Runner) markFailed(ctx context.Context, job pageJob, cause error, attempts int) {
	marker := FailedMarker{
		Error:        cause.Error(),
		HTMLFilePath: job.htmlPath,
		Attempts:     attempts,
		RunID:        runctx.GetRunContext(ctx).RunID,
	}
	if err := WriteFailedMarker(job.failed, marker); err != nil {
		log.Error().Err(err).Str("path", job.failed).Msg("Failed to write failure marker")
	}
}

func (r *Runner) writeArtifacts(job pageJob, capture *Capture) error {
	for _, dir := range []string{
		filepath.Dir(job.axtree),
		filepath.Dir(job.domSnap),
		filepath.Dir(job.extraProps),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	if err := writeJSON(job.axtree, capture.AXTree); err != nil {
		return fmt.Errorf("write axtree: %w", err)
	}
	if err := writeJSON(job.domSnap, capture.DOMSnapshot); err != nil {
		return fmt.Errorf("write dom snapshot: %w", err)
	}
	if err := writeJSON(job.extraProps, capture.ExtraProps); err != nil {
		return fmt.Errorf("write extra properties: %w", err)
	}
	return nil
}

// writeJSON writes v as compact JSON.
func writeJSON(path string, v interface{}) error {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
