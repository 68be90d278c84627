// internal/fetch/runner.go
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/archive"
	"github.com/web-traces/wlprep/internal/config"
	"github.com/web-traces/wlprep/internal/dataset"
	"github.com/web-traces/wlprep/internal/ui"
)

// splitsRemote is the split table's path on the hub.
const splitsRemote = "splits.json"

// Options configures one fetch run.
type Options struct {
	// Splits to download. Empty means every known split present in the
	// split table; naming a split that is absent is an error.
	Splits    []string
	Overwrite bool
	// Extract unpacks each downloaded archive into demonstrations/<id>/.
	Extract bool
}

// Result summarizes a fetch run.
type Result struct {
	Downloaded int
	Skipped    int
	Failed     int
	Extracted  int
	Bytes      int64
}

// Runner downloads demonstration archives from the hub using a worker pool.
type Runner struct {
	cfg    *config.Config
	client *Client
}

// NewRunner creates a new Runner instance
func NewRunner(cfg *config.Config, client *Client) *Runner {
	return &Runner{cfg: cfg, client: client}
}

// demoJob identifies one demonstration archive to fetch.
type demoJob struct {
	name    string
	zipPath string
}

// demoResult reports the outcome of one demonstration.
type demoResult struct {
	name       string
	downloaded bool
	skipped    bool
	extracted  bool
	bytes      int64
	err        error
}

// Run downloads the demonstration archives of the requested splits. The
// split table itself is fetched first when the dataset root has none.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	splitsPath := dataset.SplitsFile(r.cfg.DataDir)
	if !fileExists(splitsPath) {
		log.Info().Str("file", splitsPath).Msg("Downloading split table")
		if _, err := r.client.DownloadFile(ctx, splitsRemote, splitsPath, false); err != nil {
			return nil, fmt.Errorf("download split table: %w", err)
		}
	}

	demos, err := r.demoList(splitsPath, opts.Splits)
	if err != nil {
		return nil, err
	}
	if len(demos) == 0 {
		log.Info().Msg("No demonstrations to fetch")
		return &Result{}, nil
	}

	zipsDir := dataset.ZipsDir(r.cfg.DataDir)
	if err := os.MkdirAll(zipsDir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", zipsDir, err)
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 5 // Default to 5 workers
	}
	if workers > 50 {
		workers = 50 // Max 50 workers to avoid overwhelming the hub
	}
	if workers > len(demos) {
		workers = len(demos)
	}

	log.Info().
		Int("demos", len(demos)).
		Int("workers", workers).
		Bool("extract", opts.Extract).
		Msg("Starting fetch")

	// Byte-level bars only make sense for a single worker; concurrent runs
	// get one counting bar instead.
	barVisible := r.cfg.LogLevel != "error" && !r.cfg.JSONLog
	showBytes := workers == 1 && barVisible
	bar := ui.NewProgressBar(len(demos), "downloading", barVisible && !showBytes)

	jobs := make(chan demoJob, len(demos))
	results := make(chan demoResult, len(demos))

	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go r.worker(ctx, w, jobs, results, opts, showBytes, &wg)
	}

	go func() {
		for _, name := range demos {
			jobs <- demoJob{name: name, zipPath: filepath.Join(zipsDir, name+".zip")}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	result := &Result{}
	authHinted := false
	for res := range results {
		switch {
		case res.err != nil:
			result.Failed++
			log.Warn().Str("demo", res.name).Err(res.err).Msg("Fetch failed")
			if IsAuthError(res.err) && !authHinted {
				authHinted = true
				log.Warn().Msg("Hub rejected the request; run 'wlprep login' to store an access token")
			}
		case res.downloaded:
			result.Downloaded++
			result.Bytes += res.bytes
		case res.skipped:
			result.Skipped++
		}
		if res.extracted {
			result.Extracted++
		}
		bar.Add(1)
	}
	bar.Finish()

	log.Info().
		Int("downloaded", result.Downloaded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("extracted", result.Extracted).
		Int64("bytes", result.Bytes).
		Msg("Fetch complete")

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// demoList resolves the requested splits to a sorted, deduplicated list of
// demonstration names. Splits the caller named must exist; when defaulting
// to all known splits, absent ones are skipped.
func (r *Runner) demoList(splitsPath string, requested []string) ([]string, error) {
	splits, err := dataset.LoadSplits(splitsPath)
	if err != nil {
		return nil, err
	}

	explicit := len(requested) > 0
	if !explicit {
		requested = dataset.KnownSplits
	}

	seen := map[string]bool{}
	var names []string
	for _, split := range requested {
		ids, ok := splits[split]
		if !ok {
			if explicit {
				return nil, fmt.Errorf("split %q not present in %s", split, splitsPath)
			}
			log.Debug().Str("split", split).Msg("Split not in split table")
			continue
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				names = append(names, id)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// worker processes fetch jobs from the jobs channel
func (r *Runner) worker(ctx context.Context, id int, jobs <-chan demoJob, results chan<- demoResult, opts Options, showBytes bool, wg *sync.WaitGroup) {
	defer wg.Done()

	log.Debug().Int("worker_id", id).Msg("Worker started")

	for job := range jobs {
		select {
		case <-ctx.Done():
			log.Debug().Int("worker_id", id).Msg("Worker cancelled")
			return
		default:
		}

		res := r.processDemo(ctx, job, opts, showBytes)

		select {
		case results <- res:
		case <-ctx.Done():
			return
		}
	}

	log.Debug().Int("worker_id", id).Msg("Worker finished")
}

// processDemo downloads one archive and optionally unpacks it.
func (r *Runner) processDemo(ctx context.Context, job demoJob, opts Options, showBytes bool) demoResult {
	res := demoResult{name: job.name}

	if fileExists(job.zipPath) && !opts.Overwrite {
		log.Debug().Str("demo", job.name).Msg("Archive already present")
		res.skipped = true
	} else {
		remote := "demonstrations_zip/" + job.name + ".zip"
		size, err := r.client.DownloadFile(ctx, remote, job.zipPath, showBytes)
		if err != nil {
			res.err = err
			return res
		}
		log.Debug().Str("demo", job.name).Int64("bytes", size).Msg("Archive downloaded")
		res.downloaded = true
		res.bytes = size
	}

	if opts.Extract {
		demoDir := filepath.Join(dataset.DemosDir(r.cfg.DataDir), job.name)
		if dirExists(demoDir) && !opts.Overwrite {
			log.Debug().Str("demo", job.name).Msg("Already extracted")
			return res
		}
		if err := archive.Unzip(job.zipPath, demoDir); err != nil {
			res.err = fmt.Errorf("extract %s: %w", job.name, err)
			return res
		}
		res.extracted = true
	}

	return res
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
