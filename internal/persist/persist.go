// Package persist writes an enrichment result to the relational record, the
// vector column and the graph mirror, in that order.
package persist

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-research/internal/model"
)

// Relational is the authoritative contact record and its vector column.
type Relational interface {
	UpdateResearch(ctx context.Context, id string, r model.Research) error
	UpdateEmbedding(ctx context.Context, id string, vec []float32) error
}

// Graph is the graph mirror.
type Graph interface {
	UpsertContact(ctx context.Context, c model.GraphContact) error
	MergeRelations(ctx context.Context, id string, tags, genres []string) error
}

// Step is the outcome of one write.
type Step struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

func stepFrom(err error) Step {
	if err != nil {
		return Step{Error: err.Error()}
	}
	return Step{OK: true}
}

// Outcome reports every write of one Persist call.
type Outcome struct {
	Relational Step `json:"relational"`
	Vector     Step `json:"vector"`
	Graph      Step `json:"graph"`
}

// Persister performs the three writes. Writes are sequential and not
// transactional; drift between stores is repaired elsewhere.
type Persister struct {
	rel   Relational
	graph Graph
}

// New creates a persister. A nil graph skips the mirror.
func New(rel Relational, graph Graph) *Persister {
	return &Persister{rel: rel, graph: graph}
}

// Persist writes c.Research. Only a failed relational write is returned as an
// error; in that case the vector and graph writes are not attempted. The
// embedding is always written, so a run without a vector clears the old one.
func (p *Persister) Persist(ctx context.Context, c model.Contact) (Outcome, error) {
	log := zap.L().With(zap.String("contact_id", c.ID), zap.String("stage", "persist"))
	var out Outcome

	start := time.Now()
	if err := p.rel.UpdateResearch(ctx, c.ID, c.Research); err != nil {
		out.Relational = stepFrom(err)
		out.Vector = Step{Skipped: true}
		out.Graph = Step{Skipped: true}
		log.Error("persist: relational write failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return out, eris.Wrapf(err, "persist: relational write for %s", c.ID)
	}
	out.Relational = Step{OK: true}

	start = time.Now()
	if err := p.rel.UpdateEmbedding(ctx, c.ID, c.Research.Embedding); err != nil {
		log.Warn("persist: vector write failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		out.Vector = stepFrom(err)
	} else {
		out.Vector = Step{OK: true}
	}

	out.Graph = p.mirror(ctx, log, c)
	return out, nil
}

func (p *Persister) mirror(ctx context.Context, log *zap.Logger, c model.Contact) Step {
	if p.graph == nil {
		return Step{Skipped: true}
	}
	start := time.Now()
	if err := p.graph.UpsertContact(ctx, c.GraphMirror()); err != nil {
		log.Warn("persist: graph upsert failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return stepFrom(err)
	}
	if err := p.graph.MergeRelations(ctx, c.ID, c.Tags, c.Genres); err != nil {
		log.Warn("persist: graph relations failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return stepFrom(err)
	}
	return Step{OK: true}
}
