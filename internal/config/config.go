package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Dataset layout
	DataDir   string
	OutputDir string

	// Snapshot capture
	Workers         int
	CaptureTimeout  time.Duration
	PageLoadTimeout time.Duration
	SettleWait      time.Duration
	CaptureRetries  int
	CaptureRPS      float64
	CaptureBurst    int

	// Browser Pool
	BrowserPoolSize int
	BrowserHeadless bool
	ChromePath      string

	// Fallback viewport when a screenshot cannot be probed
	ScreenWidth  float64
	ScreenHeight float64

	// Mark selection thresholds
	SnapshotIoU     float64
	SnapshotMinArea float64
	SnapshotMaxArea float64
	PackIoU         float64
	PackMinArea     float64
	PackMaxArea     float64

	// Hub downloads. HubMirrors lists alternate base URLs tried when the
	// primary endpoint errors.
	HubBaseURL  string
	HubMirrors  []string
	HTTPTimeout time.Duration
	FetchRPS    float64
	FetchBurst  int

	// Caching
	BBoxCacheEntries int

	// Demonstrations excluded from packaging
	SkippedDemoIDs []string
}

// Load builds a Config by combining defaults, an optional YAML config file,
// environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:         DefaultLogLevel,
		JSONLog:          DefaultJSONLog,
		DataDir:          DefaultDataDir,
		OutputDir:        DefaultOutputDir,
		Workers:          DefaultWorkers,
		CaptureTimeout:   DefaultCaptureTimeout,
		PageLoadTimeout:  DefaultPageLoadTimeout,
		SettleWait:       DefaultSettleWait,
		CaptureRetries:   DefaultCaptureRetries,
		CaptureRPS:       DefaultCaptureRPS,
		CaptureBurst:     DefaultCaptureBurst,
		BrowserPoolSize:  DefaultBrowserPoolSize,
		BrowserHeadless:  DefaultBrowserHeadless,
		ScreenWidth:      DefaultScreenWidth,
		ScreenHeight:     DefaultScreenHeight,
		SnapshotIoU:      DefaultSnapshotIoU,
		SnapshotMinArea:  DefaultSnapshotMinArea,
		SnapshotMaxArea:  DefaultSnapshotMaxArea,
		PackIoU:          DefaultPackIoU,
		PackMinArea:      DefaultPackMinArea,
		PackMaxArea:      DefaultPackMaxArea,
		HubBaseURL:       DefaultHubBaseURL,
		HTTPTimeout:      DefaultHTTPTimeout,
		FetchRPS:         DefaultFetchRPS,
		FetchBurst:       DefaultFetchBurst,
		BBoxCacheEntries: DefaultBBoxCacheEntries,
		SkippedDemoIDs:   append([]string(nil), DefaultSkippedDemoIDs...),
	}

	// The config file path comes from the flag first, then the environment.
	path := ""
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if path == "" {
		path = os.Getenv("WLPREP_CONFIG")
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// Override from environment variables (simple helpers)
	if v := os.Getenv("WLPREP_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("WLPREP_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("WLPREP_CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("WLPREP_HUB_URL"); v != "" {
		cfg.HubBaseURL = v
	}
	if v := os.Getenv("WLPREP_HUB_MIRRORS"); v != "" {
		cfg.HubMirrors = nil
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.HubMirrors = append(cfg.HubMirrors, m)
			}
		}
	}
	if v := os.Getenv("WLPREP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	// Read CLI flags if provided
	if cmd != nil {
		flags := cmd.Flags()
		if f := flags.Lookup("data-dir"); f != nil && f.Changed {
			cfg.DataDir = f.Value.String()
		}
		if f := flags.Lookup("output-dir"); f != nil && f.Changed {
			cfg.OutputDir = f.Value.String()
		}
		if f := flags.Lookup("chrome-path"); f != nil && f.Changed {
			cfg.ChromePath = f.Value.String()
		}
		if f := flags.Lookup("timeout"); f != nil && f.Changed {
			if d, err := time.ParseDuration(f.Value.String()); err == nil {
				cfg.HTTPTimeout = d
			}
		}
		if f := flags.Lookup("json"); f != nil {
			if f.Value.String() == "true" {
				cfg.JSONLog = true
			}
		}
		if f := flags.Lookup("verbose"); f != nil {
			if f.Value.String() == "true" {
				cfg.LogLevel = "debug"
			}
		}
		if f := flags.Lookup("quiet"); f != nil {
			if f.Value.String() == "true" {
				cfg.LogLevel = "error"
			}
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// fileConfig mirrors Config with optional fields so a YAML file only
// overrides the values it names. Durations are written as strings ("20s").
type fileConfig struct {
	LogLevel         *string  `yaml:"log_level"`
	JSONLog          *bool    `yaml:"json_log"`
	DataDir          *string  `yaml:"data_dir"`
	OutputDir        *string  `yaml:"output_dir"`
	Workers          *int     `yaml:"workers"`
	CaptureTimeout   *string  `yaml:"capture_timeout"`
	PageLoadTimeout  *string  `yaml:"page_load_timeout"`
	SettleWait       *string  `yaml:"settle_wait"`
	CaptureRetries   *int     `yaml:"capture_retries"`
	CaptureRPS       *float64 `yaml:"capture_rps"`
	CaptureBurst     *int     `yaml:"capture_burst"`
	BrowserPoolSize  *int     `yaml:"browser_pool_size"`
	BrowserHeadless  *bool    `yaml:"browser_headless"`
	ChromePath       *string  `yaml:"chrome_path"`
	ScreenWidth      *float64 `yaml:"screen_width"`
	ScreenHeight     *float64 `yaml:"screen_height"`
	SnapshotIoU      *float64 `yaml:"snapshot_iou"`
	SnapshotMinArea  *float64 `yaml:"snapshot_min_area"`
	SnapshotMaxArea  *float64 `yaml:"snapshot_max_area"`
	PackIoU          *float64 `yaml:"pack_iou"`
	PackMinArea      *float64 `yaml:"pack_min_area"`
	PackMaxArea      *float64 `yaml:"pack_max_area"`
	HubBaseURL       *string  `yaml:"hub_base_url"`
	HubMirrors       []string `yaml:"hub_mirrors"`
	HTTPTimeout      *string  `yaml:"http_timeout"`
	FetchRPS         *float64 `yaml:"fetch_rps"`
	FetchBurst       *int     `yaml:"fetch_burst"`
	BBoxCacheEntries *int     `yaml:"bbox_cache_entries"`
	SkippedDemoIDs   []string `yaml:"skipped_demo_ids"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	setBool(&cfg.JSONLog, fc.JSONLog)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.OutputDir, fc.OutputDir)
	setInt(&cfg.Workers, fc.Workers)
	if err := setDuration(&cfg.CaptureTimeout, fc.CaptureTimeout); err != nil {
		return fmt.Errorf("capture_timeout: %w", err)
	}
	if err := setDuration(&cfg.PageLoadTimeout, fc.PageLoadTimeout); err != nil {
		return fmt.Errorf("page_load_timeout: %w", err)
	}
	if err := setDuration(&cfg.SettleWait, fc.SettleWait); err != nil {
		return fmt.Errorf("settle_wait: %w", err)
	}
	setInt(&cfg.CaptureRetries, fc.CaptureRetries)
	setFloat(&cfg.CaptureRPS, fc.CaptureRPS)
	setInt(&cfg.CaptureBurst, fc.CaptureBurst)
	setInt(&cfg.BrowserPoolSize, fc.BrowserPoolSize)
	setBool(&cfg.BrowserHeadless, fc.BrowserHeadless)
	setString(&cfg.ChromePath, fc.ChromePath)
	setFloat(&cfg.ScreenWidth, fc.ScreenWidth)
	setFloat(&cfg.ScreenHeight, fc.ScreenHeight)
	setFloat(&cfg.SnapshotIoU, fc.SnapshotIoU)
	setFloat(&cfg.SnapshotMinArea, fc.SnapshotMinArea)
	setFloat(&cfg.SnapshotMaxArea, fc.SnapshotMaxArea)
	setFloat(&cfg.PackIoU, fc.PackIoU)
	setFloat(&cfg.PackMinArea, fc.PackMinArea)
	setFloat(&cfg.PackMaxArea, fc.PackMaxArea)
	setString(&cfg.HubBaseURL, fc.HubBaseURL)
	if fc.HubMirrors != nil {
		cfg.HubMirrors = fc.HubMirrors
	}
	if err := setDuration(&cfg.HTTPTimeout, fc.HTTPTimeout); err != nil {
		return fmt.Errorf("http_timeout: %w", err)
	}
	setFloat(&cfg.FetchRPS, fc.FetchRPS)
	setInt(&cfg.FetchBurst, fc.FetchBurst)
	setInt(&cfg.BBoxCacheEntries, fc.BBoxCacheEntries)
	if fc.SkippedDemoIDs != nil {
		cfg.SkippedDemoIDs = fc.SkippedDemoIDs
	}
	return nil
}

// SkipsDemo reports whether the named demonstration is on the skip list.
func (c *Config) SkipsDemo(name string) bool {
	for _, id := range c.SkippedDemoIDs {
		if id == name {
			return true
		}
	}
	return false
}
