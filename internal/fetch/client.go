// internal/fetch/client.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web-traces/wlprep/internal/ratelimit"
	"github.com/web-traces/wlprep/internal/retry"
	"github.com/web-traces/wlprep/internal/ui"
)

// ClientOptions configures the hub download client
type ClientOptions struct {
	BaseURL   string
	Mirrors   []string
	Token     string
	Headers   map[string]string
	UserAgent string
	Timeout   time.Duration
	RPS       float64
	Burst     int
	Retry     retry.Config
}

// Client downloads dataset files from the hub with streaming I/O,
// per-domain rate limiting, retry, and endpoint failover.
type Client struct {
	client    *http.Client
	mirrors   *MirrorPool
	limiter   *ratelimit.DomainLimiter
	retryCfg  retry.Config
	token     string
	headers   map[string]string
	userAgent string
}

// NewClient creates a new Client instance
func NewClient(opts ClientOptions) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "wlprep/1.0 (https://github.com/web-traces/wlprep)"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 2.0
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	endpoints := append([]string{opts.BaseURL}, opts.Mirrors...)

	return &Client{
		client:    client,
		mirrors:   NewMirrorPool(endpoints),
		limiter:   ratelimit.NewDomainLimiter(opts.RPS, opts.Burst),
		retryCfg:  opts.Retry,
		token:     opts.Token,
		headers:   opts.Headers,
		userAgent: opts.UserAgent,
	}
}

// DownloadFile fetches the hub file at remotePath into destPath. Each retry
// attempt picks the next healthy mirror, so a run survives one bad endpoint.
func (c *Client) DownloadFile(ctx context.Context, remotePath, destPath string, showProgress bool) (int64, error) {
	var size int64
	err := retry.WithRetry(ctx, c.retryCfg, func() error {
		mirror := c.mirrors.Next()
		if mirror == "" {
			return retry.Permanent(errors.New("no hub endpoints configured"))
		}
		fileURL := mirror + "/" + strings.TrimPrefix(remotePath, "/")

		if err := c.limiter.Wait(ctx, fileURL); err != nil {
			return err
		}

		n, err := c.fetchOnce(ctx, fileURL, destPath, showProgress)
		if err != nil {
			// Bench the mirror on transport errors and server-side failures.
			// Auth and missing-file responses are not the mirror's fault.
			var httpErr retry.HTTPError
			if !errors.As(err, &httpErr) ||
				httpErr.StatusCode >= http.StatusInternalServerError ||
				httpErr.StatusCode == http.StatusTooManyRequests {
				c.mirrors.MarkFailed(mirror)
			}
			return err
		}

		c.mirrors.MarkHealthy(mirror)
		size = n
		return nil
	})
	return size, err
}

// fetchOnce performs a single GET and streams the body to disk.
func (c *Client) fetchOnce(ctx context.Context, fileURL, destPath string, showProgress bool) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	// Set headers
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, retry.NewHTTPError(resp.StatusCode, resp.Status, fileURL)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, retry.Permanent(fmt.Errorf("failed to create output directory: %w", err))
	}

	outFile, err := os.Create(destPath)
	if err != nil {
		return 0, retry.Permanent(fmt.Errorf("failed to create file: %w", err))
	}
	defer outFile.Close()

	var src io.Reader = resp.Body
	if showProgress {
		pb := ui.NewByteProgressBar(resp.ContentLength, filepath.Base(destPath), true)
		defer pb.Finish()
		src = io.TeeReader(resp.Body, pb)
	}

	// Stream to disk
	bytesWritten, err := io.Copy(outFile, src)
	if err != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	log.Debug().
		Str("url", fileURL).
		Str("file", destPath).
		Int64("bytes", bytesWritten).
		Msg("Download completed")

	return bytesWritten, nil
}

// IsAuthError reports whether err is a hub authentication failure.
func IsAuthError(err error) bool {
	var httpErr retry.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
}
