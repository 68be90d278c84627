package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil) returned error: %v", err)
	}

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.CaptureTimeout != 20*time.Second {
		t.Errorf("CaptureTimeout = %v, want 20s", cfg.CaptureTimeout)
	}
	if cfg.PageLoadTimeout != 5*time.Second {
		t.Errorf("PageLoadTimeout = %v, want 5s", cfg.PageLoadTimeout)
	}
	if cfg.ScreenWidth != 1366 || cfg.ScreenHeight != 768 {
		t.Errorf("fallback screen = %vx%v, want 1366x768", cfg.ScreenWidth, cfg.ScreenHeight)
	}
	if cfg.SnapshotIoU != 0.9 || cfg.SnapshotMinArea != 25 || cfg.SnapshotMaxArea != 0 {
		t.Errorf("snapshot thresholds = (%v, %v, %v)", cfg.SnapshotIoU, cfg.SnapshotMinArea, cfg.SnapshotMaxArea)
	}
	if cfg.PackIoU != 0.75 || cfg.PackMinArea != 50 || cfg.PackMaxArea != 500000 {
		t.Errorf("pack thresholds = (%v, %v, %v)", cfg.PackIoU, cfg.PackMinArea, cfg.PackMaxArea)
	}
	if len(cfg.SkippedDemoIDs) != len(DefaultSkippedDemoIDs) {
		t.Errorf("SkippedDemoIDs = %v", cfg.SkippedDemoIDs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WLPREP_DATA_DIR", "/mnt/weblinx")
	t.Setenv("WLPREP_WORKERS", "6")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil) returned error: %v", err)
	}
	if cfg.DataDir != "/mnt/weblinx" {
		t.Errorf("DataDir = %q, want env override", cfg.DataDir)
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want 6", cfg.Workers)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wlprep.yaml")
	body := strings.Join([]string{
		"data_dir: /srv/wl",
		"capture_timeout: 45s",
		"pack_iou: 0.8",
		"browser_headless: false",
		"skipped_demo_ids: [aaaa, bbbb]",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WLPREP_CONFIG", path)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DataDir != "/srv/wl" {
		t.Errorf("DataDir = %q, want /srv/wl", cfg.DataDir)
	}
	if cfg.CaptureTimeout != 45*time.Second {
		t.Errorf("CaptureTimeout = %v, want 45s", cfg.CaptureTimeout)
	}
	if cfg.PackIoU != 0.8 {
		t.Errorf("PackIoU = %v, want 0.8", cfg.PackIoU)
	}
	if cfg.BrowserHeadless {
		t.Error("BrowserHeadless should be overridden to false")
	}
	if len(cfg.SkippedDemoIDs) != 2 || cfg.SkippedDemoIDs[0] != "aaaa" {
		t.Errorf("SkippedDemoIDs = %v", cfg.SkippedDemoIDs)
	}
	if !cfg.SkipsDemo("bbbb") || cfg.SkipsDemo("oiiwawv") {
		t.Error("SkipsDemo should reflect the file override")
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wlprep.yaml")
	if err := os.WriteFile(path, []byte("data_dir: /from/file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WLPREP_CONFIG", path)
	t.Setenv("WLPREP_DATA_DIR", "/from/env")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DataDir != "/from/env" {
		t.Errorf("DataDir = %q, env should win over the file", cfg.DataDir)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wlprep.yaml")
	if err := os.WriteFile(path, []byte("capture_timeout: [not, a, duration]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WLPREP_CONFIG", path)

	if _, err := Load(nil); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero iou", func(c *Config) { c.SnapshotIoU = 0 }},
		{"iou above one", func(c *Config) { c.PackIoU = 1.5 }},
		{"negative min area", func(c *Config) { c.PackMinArea = -1 }},
		{"max below min", func(c *Config) { c.PackMaxArea = 10 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"zero capture timeout", func(c *Config) { c.CaptureTimeout = 0 }},
		{"oversized pool", func(c *Config) { c.BrowserPoolSize = DefaultMaxBrowserPoolSize + 1 }},
		{"bad hub url", func(c *Config) { c.HubBaseURL = "ftp://hub.example.com" }},
		{"bad hub mirror", func(c *Config) { c.HubMirrors = []string{"mirror.example.com"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(nil)
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			tc.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
