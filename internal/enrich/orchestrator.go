// Package enrich runs the research pipeline for one contact: provider
// fan-out, synthesis, scoring, embedding and persistence.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-research/internal/config"
	"github.com/sells-group/contact-research/internal/embed"
	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/internal/persist"
	"github.com/sells-group/contact-research/internal/provider"
	"github.com/sells-group/contact-research/internal/resilience"
	"github.com/sells-group/contact-research/internal/scorer"
	"github.com/sells-group/contact-research/internal/store"
)

// ErrContactNotFound is the only error class a run reports besides a failed
// relational write.
var ErrContactNotFound = eris.New("enrich: contact not found")

// ContactReader loads the contact being enriched.
type ContactReader interface {
	GetContact(ctx context.Context, id string) (*model.Contact, error)
}

// Synthesizer writes the narrative profile.
type Synthesizer interface {
	Synthesize(ctx context.Context, c model.Contact, raw model.ResearchRaw) (model.Synthesis, error)
}

// Persister writes the finished research.
type Persister interface {
	Persist(ctx context.Context, c model.Contact) (persist.Outcome, error)
}

// Options bounds each stage of a run.
type Options struct {
	ProviderTimeout time.Duration
	SynthTimeout    time.Duration
	EmbedTimeout    time.Duration
	Retry           resilience.Policy
	Breakers        *resilience.Breakers
}

// OptionsFromConfig builds Options with one breaker per provider.
func OptionsFromConfig(cfg config.EnrichConfig) Options {
	policy, bc := resilience.FromEnrichConfig(cfg)
	bc.Ignore = func(err error) bool { return errors.Is(err, provider.ErrUnavailable) }
	return Options{
		ProviderTimeout: cfg.ProviderTimeout(),
		SynthTimeout:    cfg.SynthTimeout(),
		EmbedTimeout:    cfg.EmbedTimeout(),
		Retry:           policy,
		Breakers:        resilience.NewBreakers(bc),
	}
}

// Orchestrator wires the pipeline stages together. All collaborators are
// built once at startup and shared across runs.
type Orchestrator struct {
	contacts  ContactReader
	providers provider.Set
	synth     Synthesizer
	embedder  embed.Embedder
	persister Persister
	opts      Options
	now       func() time.Time
}

// New creates an orchestrator. embedder may be nil.
func New(contacts ContactReader, providers provider.Set, synth Synthesizer, embedder embed.Embedder, persister Persister, opts Options) *Orchestrator {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	if opts.SynthTimeout <= 0 {
		opts.SynthTimeout = 60 * time.Second
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 20 * time.Second
	}
	return &Orchestrator{
		contacts:  contacts,
		providers: providers,
		synth:     synth,
		embedder:  embedder,
		persister: persister,
		opts:      opts,
		now:       time.Now,
	}
}

// Run enriches one contact. It returns an error only when the contact does
// not exist or the relational write fails; every other failure is logged and
// reflected in the report.
func (o *Orchestrator) Run(ctx context.Context, contactID string) (*Report, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("contact_id", contactID), zap.String("run_id", runID))
	report := &Report{RunID: runID, ContactID: contactID, StartedAt: o.now()}

	log.Info("enrich: stage", zap.String("stage", "load"))
	c, err := o.contacts.GetContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Error("enrich: contact not found, aborting")
			return nil, eris.Wrapf(ErrContactNotFound, "enrich: %s", contactID)
		}
		log.Error("enrich: load contact failed", zap.Error(err))
		return nil, eris.Wrapf(err, "enrich: load contact %s", contactID)
	}

	log.Info("enrich: stage", zap.String("stage", "fan_out"))
	f := o.fanOut(ctx, *c)
	report.Providers = f.outcomes()
	for _, p := range report.Providers {
		logProvider(log, p)
	}
	raw, signals := f.aggregate()

	log.Info("enrich: stage", zap.String("stage", "synthesize"))
	syn := o.synthesize(ctx, log, *c, raw, report)
	signals.Summary = syn.HasSummary()

	log.Info("enrich: stage", zap.String("stage", "score"))
	report.DepthScore = scorer.Depth(signals)

	var vec []float32
	if signals.Summary {
		log.Info("enrich: stage", zap.String("stage", "embed"))
		vec = o.embed(ctx, log, syn, report)
	}

	now := o.now().UTC()
	c.Research = model.Research{
		Summary:                syn.Summary,
		Raw:                    raw,
		LastUpdated:            &now,
		DepthScore:             report.DepthScore,
		KeyAchievements:        syn.Achievements,
		MutualInterests:        syn.MutualInterests,
		SuggestedIntroductions: syn.IntroSuggestions,
		PotentialValue:         syn.PotentialValue,
		Embedding:              vec,
	}

	log.Info("enrich: stage", zap.String("stage", "persist"))
	outcome, err := o.persister.Persist(ctx, *c)
	report.Persist = outcome
	report.FinishedAt = o.now()
	if err != nil {
		log.Error("enrich: run failed", zap.Error(err))
		return report, eris.Wrapf(err, "enrich: persist %s", contactID)
	}

	log.Info("enrich: stage",
		zap.String("stage", "done"),
		zap.Float64("depth_score", report.DepthScore),
		zap.Int64("duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds()),
	)
	return report, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, log *zap.Logger, c model.Contact, raw model.ResearchRaw, report *Report) model.Synthesis {
	if o.synth == nil {
		report.Synthesis = StageOutcome{Error: "not configured"}
		return model.Synthesis{}
	}
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, o.opts.SynthTimeout)
	defer cancel()

	policy := o.opts.Retry
	policy.OnRetry = resilience.LogRetries("synthesis")
	syn, err := resilience.Retry(sctx, policy, func(ctx context.Context) (model.Synthesis, error) {
		return o.synth.Synthesize(ctx, c, raw)
	})
	dur := time.Since(start)
	if err != nil {
		log.Warn("enrich: synthesis failed, continuing with empty profile",
			zap.String("stage", "synthesize"), zap.Error(err), zap.Int64("duration_ms", dur.Milliseconds()))
		report.Synthesis = StageOutcome{Error: err.Error(), DurationMS: dur.Milliseconds()}
		return model.Synthesis{}
	}
	report.Synthesis = StageOutcome{OK: true, DurationMS: dur.Milliseconds()}
	return syn
}

func (o *Orchestrator) embed(ctx context.Context, log *zap.Logger, syn model.Synthesis, report *Report) []float32 {
	if o.embedder == nil {
		report.Embedding = StageOutcome{Error: embed.ErrUnavailable.Error()}
		return nil
	}
	start := time.Now()
	ectx, cancel := context.WithTimeout(ctx, o.opts.EmbedTimeout)
	defer cancel()

	policy := o.opts.Retry
	policy.OnRetry = resilience.LogRetries("embedding")
	vec, err := resilience.Retry(ectx, policy, func(ctx context.Context) ([]float32, error) {
		return o.embedder.Embed(ctx, EmbeddingText(syn))
	})
	dur := time.Since(start)
	switch {
	case errors.Is(err, embed.ErrUnavailable):
		log.Debug("enrich: embeddings unavailable", zap.String("stage", "embed"))
		report.Embedding = StageOutcome{Error: err.Error()}
		return nil
	case err != nil:
		log.Warn("enrich: embedding failed",
			zap.String("stage", "embed"), zap.Error(err), zap.Int64("duration_ms", dur.Milliseconds()))
		report.Embedding = StageOutcome{Error: err.Error(), DurationMS: dur.Milliseconds()}
		return nil
	}
	report.Embedding = StageOutcome{OK: true, DurationMS: dur.Milliseconds()}
	return vec
}

// BreakerStates reports each provider's circuit state by provider name.
func (o *Orchestrator) BreakerStates() map[string]string {
	states := o.opts.Breakers.States()
	out := make(map[string]string, len(states))
	for name, st := range states {
		out[name] = st.String()
	}
	return out
}

// EmbeddingText is the text a contact's vector is computed from.
func EmbeddingText(s model.Synthesis) string {
	parts := []string{strings.TrimSpace(s.Summary)}
	if v := strings.TrimSpace(s.PotentialValue); v != "" {
		parts = append(parts, v)
	}
	if len(s.Achievements) > 0 {
		parts = append(parts, strings.Join(s.Achievements, "; "))
	}
	if len(s.MutualInterests) > 0 {
		parts = append(parts, strings.Join(s.MutualInterests, ", "))
	}
	return strings.Join(parts, "\n")
}

func logProvider(log *zap.Logger, p ProviderOutcome) {
	fields := []zap.Field{zap.String("provider", string(p.Provider)), zap.Int64("duration_ms", p.DurationMS)}
	switch {
	case p.OK:
		log.Info("enrich: provider succeeded", fields...)
	case p.Unavailable:
		log.Info("enrich: provider unavailable", append(fields, zap.String("error", p.Error))...)
	default:
		log.Warn("enrich: provider failed", append(fields, zap.String("error", p.Error))...)
	}
}
