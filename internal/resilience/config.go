package resilience

import (
	"time"

	"github.com/sells-group/contact-research/internal/config"
)

// FromEnrichConfig builds the retry policy and breaker settings used for
// provider calls.
func FromEnrichConfig(cfg config.EnrichConfig) (Policy, BreakerConfig) {
	p := DefaultPolicy()
	if cfg.RetryAttempts > 0 {
		p.Attempts = cfg.RetryAttempts
	}
	bc := BreakerConfig{Failures: cfg.BreakerFailures}
	if cfg.BreakerResetSecs > 0 {
		bc.Cooldown = time.Duration(cfg.BreakerResetSecs) * time.Second
	}
	return p, bc
}
