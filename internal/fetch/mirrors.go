// internal/fetch/mirrors.go
package fetch

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	urlutil "github.com/web-traces/wlprep/internal/utils/url"
)

// failureCooldown is how long a mirror stays benched after an error.
const failureCooldown = 5 * time.Minute

// MirrorPool rotates through hub endpoints with failure tracking, so a
// flaky or blocked mirror does not stall a long download run.
type MirrorPool struct {
	mirrors []string
	index   int
	mu      sync.Mutex
	failed  map[string]time.Time
}

// NewMirrorPool creates a pool over the given base URLs. Empty entries are
// dropped, trailing slashes trimmed, and endpoints that are not absolute
// http(s) URLs ignored with a warning.
func NewMirrorPool(mirrors []string) *MirrorPool {
	cleaned := make([]string, 0, len(mirrors))
	for _, m := range mirrors {
		m = strings.TrimRight(strings.TrimSpace(m), "/")
		if m == "" {
			continue
		}
		if err := urlutil.ValidateURL(m); err != nil {
			log.Warn().Str("endpoint", m).Err(err).Msg("Ignoring invalid hub endpoint")
			continue
		}
		cleaned = append(cleaned, m)
	}
	return &MirrorPool{
		mirrors: cleaned,
		failed:  make(map[string]time.Time),
	}
}

// Next returns the next healthy mirror from the pool
func (p *MirrorPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.mirrors) == 0 {
		return ""
	}

	// Try to find a healthy mirror
	start := p.index
	for {
		mirror := p.mirrors[p.index]
		p.index = (p.index + 1) % len(p.mirrors)

		// Check if failed recently
		if failTime, ok := p.failed[mirror]; ok {
			if time.Since(failTime) < failureCooldown {
				// Still considered failed, try next
				if p.index == start {
					// Every mirror is benched; hand out the current one anyway
					return mirror
				}
				continue
			}
			// Failure expired
			delete(p.failed, mirror)
		}

		return mirror
	}
}

// MarkFailed benches a mirror so it is skipped for a while
func (p *MirrorPool) MarkFailed(mirror string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[mirror] = time.Now()
}

// MarkHealthy clears the failure status of a mirror
func (p *MirrorPool) MarkHealthy(mirror string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, mirror)
}

// Len returns the number of configured mirrors.
func (p *MirrorPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.mirrors)
}
