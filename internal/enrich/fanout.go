package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/internal/provider"
	"github.com/sells-group/contact-research/internal/resilience"
	"github.com/sells-group/contact-research/internal/scorer"
)

// fanOutResult holds the settled outcome of every provider.
type fanOutResult struct {
	web     provider.Result[*model.WebSearchRaw]
	profile provider.Result[*model.ProfileRaw]
	social  provider.Result[*model.SocialRaw]
	news    provider.Result[*model.NewsRaw]
}

// fanOut calls all providers concurrently. No goroutine returns an error:
// each outcome is captured in its Result so one provider can never cancel
// or block another.
func (o *Orchestrator) fanOut(ctx context.Context, c model.Contact) fanOutResult {
	var f fanOutResult
	var g errgroup.Group
	ps := o.providers

	g.Go(func() error {
		f.web = settle(ctx, o, model.ProviderWebSearch, ps.Web != nil, func(ctx context.Context) (*model.WebSearchRaw, error) {
			return ps.Web.Search(ctx, c.Name, c.Organization)
		})
		return nil
	})
	g.Go(func() error {
		f.profile = settle(ctx, o, model.ProviderProfile, ps.Profile != nil, func(ctx context.Context) (*model.ProfileRaw, error) {
			return ps.Profile.Lookup(ctx, c.ProfileURL, c.Email)
		})
		return nil
	})
	g.Go(func() error {
		f.social = settle(ctx, o, model.ProviderSocial, ps.Social != nil, func(ctx context.Context) (*model.SocialRaw, error) {
			return ps.Social.Probe(ctx, c.SocialURL, c.WebsiteURL)
		})
		return nil
	})
	g.Go(func() error {
		f.news = settle(ctx, o, model.ProviderNews, ps.News != nil, func(ctx context.Context) (*model.NewsRaw, error) {
			return ps.News.News(ctx, c.Name, c.Organization)
		})
		return nil
	})

	_ = g.Wait()
	return f
}

type settled[T any] struct {
	v   T
	err error
}

// settle runs one provider call under its timeout, retry policy and circuit
// breaker and always resolves to a Result. A call that ignores cancellation
// is abandoned at the deadline; a panic becomes that provider's failure.
func settle[T any](ctx context.Context, o *Orchestrator, name model.ProviderName, configured bool, fn func(context.Context) (T, error)) provider.Result[T] {
	start := time.Now()
	if !configured {
		res := provider.Failure[T](eris.Wrapf(provider.ErrUnavailable, "%s: not configured", name))
		res.Duration = time.Since(start)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()

	safe := func(ctx context.Context) (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = eris.Errorf("%s: panic: %v", name, r)
			}
		}()
		return fn(ctx)
	}

	policy := o.opts.Retry
	policy.OnRetry = resilience.LogRetries(string(name))
	breaker := o.opts.Breakers.For(string(name))

	ch := make(chan settled[T], 1)
	go func() {
		v, err := resilience.Guard(ctx, breaker, func(ctx context.Context) (T, error) {
			return resilience.Retry(ctx, policy, safe)
		})
		ch <- settled[T]{v: v, err: err}
	}()

	var res provider.Result[T]
	select {
	case s := <-ch:
		if s.err != nil {
			res = provider.Failure[T](s.err)
		} else {
			res = provider.Success(s.v)
		}
	case <-ctx.Done():
		res = provider.Failure[T](eris.Wrapf(ctx.Err(), "%s: timed out after %s", name, o.opts.ProviderTimeout))
	}
	res.Duration = time.Since(start)
	return res
}

// aggregate keeps the payload of every successful provider and derives the
// depth signals from them.
func (f fanOutResult) aggregate() (model.ResearchRaw, scorer.Signals) {
	var raw model.ResearchRaw
	var s scorer.Signals

	if f.web.OK() && f.web.Value != nil {
		raw.WebSearch = f.web.Value
		s.WebSearch = len(f.web.Value.Results) > 0
	}
	if f.profile.OK() && f.profile.Value != nil {
		raw.Profile = f.profile.Value
		s.Profile = true
	}
	if f.social.OK() && f.social.Value != nil {
		raw.Social = f.social.Value
		s.Social = len(f.social.Value.Profiles) > 0
	}
	if f.news.OK() && f.news.Value != nil {
		raw.News = f.news.Value
		s.News = len(f.news.Value.Articles) > 0
	}
	return raw, s
}

func (f fanOutResult) outcomes() []ProviderOutcome {
	return []ProviderOutcome{
		outcomeOf(model.ProviderWebSearch, f.web),
		outcomeOf(model.ProviderProfile, f.profile),
		outcomeOf(model.ProviderSocial, f.social),
		outcomeOf(model.ProviderNews, f.news),
	}
}

func outcomeOf[T any](name model.ProviderName, r provider.Result[T]) ProviderOutcome {
	return ProviderOutcome{
		Provider:    name,
		OK:          r.OK(),
		Unavailable: errors.Is(r.Err, provider.ErrUnavailable),
		Error:       r.Reason(),
		DurationMS:  r.Duration.Milliseconds(),
	}
}
