// Package search answers retrieval queries over the relational store, the
// vector column and the graph mirror.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-research/internal/config"
	"github.com/sells-group/contact-research/internal/embed"
	"github.com/sells-group/contact-research/internal/graph"
	"github.com/sells-group/contact-research/internal/model"
)

// ErrGraphUnavailable is returned by graph queries when no graph is configured.
var ErrGraphUnavailable = eris.New("search: graph unavailable")

// ContactIndex is the relational side: vector and text retrieval.
type ContactIndex interface {
	SemanticSearch(ctx context.Context, vec []float32, limit int) ([]model.SearchHit, error)
	TextSearch(ctx context.Context, query string, limit int) ([]model.SearchHit, error)
}

// GraphIndex is the graph mirror's read side.
type GraphIndex interface {
	FullTextSearch(ctx context.Context, query string, limit int) ([]model.SearchHit, error)
	Neighborhood(ctx context.Context, id string, depth int) (*model.Neighborhood, error)
	ShortestPath(ctx context.Context, from, to string) (*model.Path, error)
}

// Options bounds retrieval.
type Options struct {
	ModeTimeout         time.Duration
	DefaultTopK         int
	MaxTopK             int
	CandidateMultiplier int
}

// OptionsFromConfig converts the search config section.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		ModeTimeout:         cfg.ModeTimeout(),
		DefaultTopK:         cfg.DefaultTopK,
		MaxTopK:             cfg.MaxTopK,
		CandidateMultiplier: cfg.CandidateMultiplier,
	}
}

// Engine runs hybrid, semantic and graph queries. It never writes.
type Engine struct {
	contacts ContactIndex
	graph    GraphIndex
	embedder embed.Embedder
	opts     Options
}

// New creates an engine. graph and embedder may be nil; the modes that need
// them then contribute nothing.
func New(contacts ContactIndex, g GraphIndex, embedder embed.Embedder, opts Options) *Engine {
	if opts.ModeTimeout <= 0 {
		opts.ModeTimeout = 5 * time.Second
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 10
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 100
	}
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = 2
	}
	return &Engine{contacts: contacts, graph: g, embedder: embedder, opts: opts}
}

func (e *Engine) topK(k int) int {
	if k <= 0 {
		return e.opts.DefaultTopK
	}
	if k > e.opts.MaxTopK {
		return e.opts.MaxTopK
	}
	return k
}

// HybridSearch queries the vector, graph full-text and relational text modes
// concurrently and fuses them with Fuse. A mode that fails or times out
// contributes an empty list.
func (e *Engine) HybridSearch(ctx context.Context, query string, topK int) ([]model.FusedSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.FusedSearchResult{}, nil
	}
	topK = e.topK(topK)
	limit := topK * e.opts.CandidateMultiplier

	var vector, fullText, text []model.SearchHit
	var g errgroup.Group
	g.Go(func() error {
		vector = e.runMode(ctx, model.SearchModeVector, func(ctx context.Context) ([]model.SearchHit, error) {
			return e.semantic(ctx, query, limit)
		})
		return nil
	})
	g.Go(func() error {
		fullText = e.runMode(ctx, model.SearchModeGraph, func(ctx context.Context) ([]model.SearchHit, error) {
			if e.graph == nil {
				return nil, nil
			}
			return e.graph.FullTextSearch(ctx, query, limit)
		})
		return nil
	})
	g.Go(func() error {
		text = e.runMode(ctx, model.SearchModeText, func(ctx context.Context) ([]model.SearchHit, error) {
			return e.contacts.TextSearch(ctx, query, limit)
		})
		return nil
	})
	_ = g.Wait()

	return Fuse(topK,
		RankedList{Mode: model.SearchModeVector, Hits: vector},
		RankedList{Mode: model.SearchModeGraph, Hits: fullText},
		RankedList{Mode: model.SearchModeText, Hits: text},
	), nil
}

// runMode bounds one retrieval mode by the mode timeout and turns any
// failure into an empty list.
func (e *Engine) runMode(ctx context.Context, mode model.SearchMode, fn func(context.Context) ([]model.SearchHit, error)) []model.SearchHit {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.opts.ModeTimeout)
	defer cancel()

	ch := make(chan []model.SearchHit, 1)
	errCh := make(chan error, 1)
	go func() {
		hits, err := fn(ctx)
		if err != nil {
			errCh <- err
			return
		}
		ch <- hits
	}()

	var err error
	select {
	case hits := <-ch:
		return hits
	case err = <-errCh:
	case <-ctx.Done():
		err = eris.Wrapf(ctx.Err(), "search: %s mode timed out", mode)
	}
	zap.L().Warn("search: mode failed, contributing no results",
		zap.String("mode", string(mode)),
		zap.Error(err),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// SemanticSearch embeds query and ranks contacts by cosine distance. When
// embeddings are unavailable the result is empty, not an error.
func (e *Engine) SemanticSearch(ctx context.Context, query string, topK int) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchHit{}, nil
	}
	hits, err := e.semantic(ctx, query, e.topK(topK))
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []model.SearchHit{}
	}
	return hits, nil
}

func (e *Engine) semantic(ctx context.Context, query string, limit int) ([]model.SearchHit, error) {
	if e.embedder == nil {
		return nil, nil
	}
	vec, err := e.embedder.Embed(ctx, query)
	if errors.Is(err, embed.ErrUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "search: embed query")
	}
	return e.contacts.SemanticSearch(ctx, vec, limit)
}

// Neighborhood returns the subgraph within depth hops of id.
func (e *Engine) Neighborhood(ctx context.Context, id string, depth int) (*model.Neighborhood, error) {
	if !graph.ValidDepth(depth) {
		return nil, eris.Wrapf(graph.ErrInvalidDepth, "search: neighborhood depth %d", depth)
	}
	if e.graph == nil {
		return nil, ErrGraphUnavailable
	}
	return e.graph.Neighborhood(ctx, id, depth)
}

// ShortestPath returns the shortest path between two contacts.
func (e *Engine) ShortestPath(ctx context.Context, from, to string) (*model.Path, error) {
	if e.graph == nil {
		return nil, ErrGraphUnavailable
	}
	return e.graph.ShortestPath(ctx, from, to)
}
