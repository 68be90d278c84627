package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel = "info"
	DefaultJSONLog  = false

	DefaultDataDir   = "wl_data"
	DefaultOutputDir = "bg_wl_data"

	DefaultWorkers         = 0 // sized from host CPU and memory
	DefaultCaptureTimeout  = 20 * time.Second
	DefaultPageLoadTimeout = 5 * time.Second
	DefaultCaptureRetries  = 2
	DefaultCaptureRPS      = 4.0
	DefaultCaptureBurst    = 2
	DefaultSettleWait      = 500 * time.Millisecond

	DefaultBrowserPoolSize    = 3
	DefaultMaxBrowserPoolSize = 16
	DefaultBrowserHeadless    = true

	DefaultScreenWidth  = 1366.0
	DefaultScreenHeight = 768.0

	DefaultSnapshotIoU     = 0.9
	DefaultSnapshotMinArea = 25.0
	DefaultSnapshotMaxArea = 0.0 // unlimited
	DefaultPackIoU         = 0.75
	DefaultPackMinArea     = 50.0
	DefaultPackMaxArea     = 500000.0

	DefaultHubBaseURL  = "https://huggingface.co/datasets/McGill-NLP/WebLINX-full/resolve/main"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultFetchRPS    = 2.0
	DefaultFetchBurst  = 4

	DefaultBBoxCacheEntries = 64
)

// DefaultSkippedDemoIDs lists demonstrations excluded from packaging because
// their recordings are known to be unusable.
var DefaultSkippedDemoIDs = []string{"oiiwawv", "bkseapp", "etzkmrj", "cdfkxtv", "kjcptgq"}
