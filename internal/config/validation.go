package config

import (
	"fmt"

	urlutil "github.com/web-traces/wlprep/internal/utils/url"
)

func validate(c *Config) error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if c.BrowserPoolSize <= 0 || c.BrowserPoolSize > DefaultMaxBrowserPoolSize {
		return fmt.Errorf("browser pool size must be between 1 and %d", DefaultMaxBrowserPoolSize)
	}
	if c.CaptureTimeout <= 0 || c.PageLoadTimeout <= 0 {
		return fmt.Errorf("capture timeouts must be > 0")
	}
	if c.CaptureRetries < 1 {
		return fmt.Errorf("capture retries must be >= 1")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if err := urlutil.ValidateURL(c.HubBaseURL); err != nil {
		return fmt.Errorf("hub base url: %w", err)
	}
	for _, m := range c.HubMirrors {
		if err := urlutil.ValidateURL(m); err != nil {
			return fmt.Errorf("hub mirror %q: %w", m, err)
		}
	}
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		return fmt.Errorf("fallback screen size must be positive")
	}
	if err := validateMarkBand("snapshot", c.SnapshotIoU, c.SnapshotMinArea, c.SnapshotMaxArea); err != nil {
		return err
	}
	if err := validateMarkBand("pack", c.PackIoU, c.PackMinArea, c.PackMaxArea); err != nil {
		return err
	}
	if c.BBoxCacheEntries <= 0 {
		return fmt.Errorf("bbox cache entries must be > 0")
	}
	return nil
}

func validateMarkBand(stage string, iou, minArea, maxArea float64) error {
	if iou <= 0 || iou > 1 {
		return fmt.Errorf("%s iou threshold must be in (0, 1]", stage)
	}
	if minArea < 0 {
		return fmt.Errorf("%s min mark area must be >= 0", stage)
	}
	if maxArea != 0 && maxArea < minArea {
		return fmt.Errorf("%s max mark area must be 0 (unlimited) or >= min area", stage)
	}
	return nil
}
