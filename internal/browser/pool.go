// internal/browser/pool.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// Pool manages a set of reusable Chrome tabs. Replaying a dataset means
// rendering tens of thousands of recorded pages, and reusing warm tabs
// avoids paying browser startup for every one of them.
type Pool struct {
	size        int
	contexts    chan *Tab
	allocCtx    context.Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	closed      bool
}

// Tab wraps a chromedp context with its cancel function
type Tab struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

// PoolOptions configures the browser pool
type PoolOptions struct {
	Size       int
	Headless   bool
	ChromePath string
	ExtraArgs  []chromedp.ExecAllocatorOption
}

// NewPool creates a new pool of browser tabs
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Size <= 0 {
		opts.Size = 3
	}
	if opts.Size > 16 {
		opts.Size = 16 // Avoid resource exhaustion
	}

	log.Debug().Int("size", opts.Size).Msg("Creating browser pool")

	chromePath := FindChrome(opts.ChromePath)

	// Allocator options shared by all tabs. Recorded pages are rendered from
	// strings, so networking and most Chrome services are switched off.
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-features", "site-per-process,TranslateUI,BlinkGenPropertyTrees"),
		chromedp.Flag("enable-features", "NetworkService,NetworkServiceInProcess"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1366,768"),
		chromedp.Flag("disk-cache-size", "0"),
		chromedp.Flag("media-cache-size", "0"),
	}

	// Set Chrome path if found
	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}

	// Configure headless mode
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	// Add extra args
	allocOpts = append(allocOpts, opts.ExtraArgs...)

	// Create parent allocator context
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	pool := &Pool{
		size:        opts.Size,
		contexts:    make(chan *Tab, opts.Size),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		closed:      false,
	}

	// Pre-create tabs
	for i := 0; i < opts.Size; i++ {
		tabCtx, tabCancel := chromedp.NewContext(allocCtx)

		// Warm up the tab by loading a blank page
		if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
			tabCancel()
			pool.Close()
			return nil, fmt.Errorf("failed to warm up browser tab %d: %w", i, err)
		}

		pool.contexts <- &Tab{
			Ctx:    tabCtx,
			Cancel: tabCancel,
		}

		log.Debug().Int("tab_id", i).Msg("Browser tab initialized")
	}

	log.Info().
		Int("pool_size", opts.Size).
		Str("chrome", GetChromeVersion(chromePath)).
		Msg("Browser pool ready")

	return pool, nil
}

// Acquire gets a tab from the pool (blocks if none available)
func (bp *Pool) Acquire(timeout time.Duration) (*Tab, error) {
	if timeout > 0 {
		select {
		case tab := <-bp.contexts:
			// Check if pool was closed after we got the tab
			bp.mu.Lock()
			defer bp.mu.Unlock()
			if bp.closed {
				tab.Cancel()
				return nil, fmt.Errorf("browser pool is closed")
			}
			log.Debug().Msg("Browser tab acquired from pool")
			return tab, nil
		case <-time.After(timeout):
			return nil, fmt.Errorf("timeout waiting for available browser tab")
		}
	}

	// No timeout, block until available
	tab := <-bp.contexts
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.closed {
		tab.Cancel()
		return nil, fmt.Errorf("browser pool is closed")
	}
	log.Debug().Msg("Browser tab acquired from pool")
	return tab, nil
}

// Release returns a tab to the pool. The document is replaced with a blank
// page so injected markers never leak into the next capture.
func (bp *Pool) Release(tab *Tab) {
	bp.mu.Lock()
	if bp.closed {
		tab.Cancel()
		bp.mu.Unlock()
		return
	}
	bp.mu.Unlock()

	chromedp.Run(tab.Ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Best effort cleanup
			chromedp.Navigate("about:blank").Do(ctx)
			return nil
		}),
	)

	// Return to pool
	select {
	case bp.contexts <- tab:
		log.Debug().Msg("Browser tab released to pool")
	default:
		// Pool is full (shouldn't happen), cancel the tab
		tab.Cancel()
		log.Warn().Msg("Browser pool full, discarding tab")
	}
}

// Discard drops a broken tab and replaces it with a fresh one so the pool
// keeps its capacity after a renderer crash.
func (bp *Pool) Discard(tab *Tab) {
	tab.Cancel()

	bp.mu.Lock()
	if bp.closed {
		bp.mu.Unlock()
		return
	}
	bp.mu.Unlock()

	fresh, cancel := chromedp.NewContext(bp.allocCtx)
	if err := chromedp.Run(fresh, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		log.Warn().Err(err).Msg("Failed to replace discarded browser tab")
		return
	}

	select {
	case bp.contexts <- &Tab{Ctx: fresh, Cancel: cancel}:
		log.Debug().Msg("Replaced discarded browser tab")
	default:
		cancel()
	}
}

// Close shuts down all tabs and the allocator
func (bp *Pool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return nil
	}
	bp.closed = true

	log.Debug().Msg("Closing browser pool")

	// Close the channel
	close(bp.contexts)

	// Cancel all tabs
	for tab := range bp.contexts {
		tab.Cancel()
	}

	// Cancel the allocator
	bp.allocCancel()

	log.Info().Msg("Browser pool closed")

	return nil
}

// Size returns the pool size
func (bp *Pool) Size() int {
	return bp.size
}

// Available returns the number of available tabs in the pool
func (bp *Pool) Available() int {
	return len(bp.contexts)
}
