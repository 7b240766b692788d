package enrich

import (
	"time"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/internal/persist"
)

// Report summarizes one run. Fire-and-forget triggers ignore it.
type Report struct {
	RunID      string            `json:"run_id"`
	ContactID  string            `json:"contact_id"`
	Providers  []ProviderOutcome `json:"providers"`
	Synthesis  StageOutcome      `json:"synthesis"`
	Embedding  StageOutcome      `json:"embedding"`
	DepthScore float64           `json:"depth_score"`
	Persist    persist.Outcome   `json:"persist"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// ProviderOutcome is one provider's settled result without its payload.
type ProviderOutcome struct {
	Provider    model.ProviderName `json:"provider"`
	OK          bool               `json:"ok"`
	Unavailable bool               `json:"unavailable,omitempty"`
	Error       string             `json:"error,omitempty"`
	DurationMS  int64              `json:"duration_ms"`
}

// StageOutcome is the result of a non-provider stage.
type StageOutcome struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// Succeeded counts providers that returned a payload.
func (r *Report) Succeeded() int {
	n := 0
	for _, p := range r.Providers {
		if p.OK {
			n++
		}
	}
	return n
}
