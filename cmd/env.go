package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-research/internal/embed"
	"github.com/sells-group/contact-research/internal/enrich"
	"github.com/sells-group/contact-research/internal/graph"
	"github.com/sells-group/contact-research/internal/persist"
	"github.com/sells-group/contact-research/internal/provider"
	"github.com/sells-group/contact-research/internal/search"
	"github.com/sells-group/contact-research/internal/store"
	"github.com/sells-group/contact-research/internal/synth"
	anthropicpkg "github.com/sells-group/contact-research/pkg/anthropic"
	"github.com/sells-group/contact-research/pkg/jina"
	"github.com/sells-group/contact-research/pkg/perplexity"
)

// env holds the store handles and services built once at startup and shared
// by every command.
type env struct {
	Store        store.ContactStore
	Graph        *graph.Store // nil when the graph is unreachable
	Embedder     *embed.Generator
	Orchestrator *enrich.Orchestrator
	Search       *search.Engine
}

// Close releases the store and graph connections.
func (e *env) Close() {
	if e.Graph != nil {
		_ = e.Graph.Close(context.Background())
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// graphIndex returns the graph as an interface value, untyped nil when absent.
func (e *env) graphIndex() search.GraphIndex {
	if e.Graph == nil {
		return nil
	}
	return e.Graph
}

func (e *env) graphWriter() persist.Graph {
	if e.Graph == nil {
		return nil
	}
	return e.Graph
}

// initEnv validates cfg for mode, opens the stores and wires the pipeline
// and retrieval engine. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	e := &env{Store: st}
	e.Graph = openGraph(ctx)

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	if cfg.Jina.RateLimit > 0 {
		jinaOpts = append(jinaOpts, jina.WithRateLimit(cfg.Jina.RateLimit))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	var pplxClient perplexity.Client
	if cfg.Perplexity.Key != "" {
		pplxClient = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	} else {
		zap.L().Debug("RESEARCH_PERPLEXITY_KEY not set, news and profile fallback disabled")
	}

	var aiClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		aiClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("RESEARCH_ANTHROPIC_KEY not set, synthesis and profile extraction disabled")
	}

	providers := provider.Set{
		Web:     provider.NewWebSearch(jinaClient),
		Profile: provider.NewProfile(jinaClient, pplxClient, aiClient, cfg.Anthropic.HaikuModel),
		Social:  provider.NewSocialProbe(provider.NewGuard(nil), nil, cfg.Enrich.SocialMaxBytes, cfg.Enrich.ProviderTimeout()),
		News:    provider.NewPerplexityNews(pplxClient),
	}

	e.Embedder = embed.New(cfg.OpenAI)
	if !e.Embedder.Available() {
		zap.L().Warn("RESEARCH_OPENAI_KEY not set, embeddings disabled")
	}

	e.Orchestrator = enrich.New(
		st,
		providers,
		synth.New(aiClient, cfg.Anthropic.SonnetModel, cfg.Anthropic.MaxTokens),
		e.Embedder,
		persist.New(st, e.graphWriter()),
		enrich.OptionsFromConfig(cfg.Enrich),
	)
	e.Search = search.New(st, e.graphIndex(), e.Embedder, search.OptionsFromConfig(cfg.Search))

	return e, nil
}

// openGraph connects to the graph database. A failure is logged and the
// graph-backed capabilities degrade.
func openGraph(ctx context.Context) *graph.Store {
	d, err := graph.NewNeo4jDriver(ctx, cfg.Graph)
	if err != nil {
		zap.L().Warn("graph unavailable, mirror writes and graph queries disabled", zap.Error(err))
		return nil
	}
	return graph.NewStore(d, cfg.Search.NeighborhoodLimit)
}
