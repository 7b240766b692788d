package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/contact-research/internal/config"
)

func failing(_ context.Context) (int, error) { return 0, errors.New("fail") }
func passing(_ context.Context) (int, error) { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("news", BreakerConfig{Failures: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = Guard(context.Background(), b, failing)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	_, err := Guard(context.Background(), b, func(_ context.Context) (int, error) {
		t.Error("should not run while open")
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("news", BreakerConfig{Failures: 2, Cooldown: time.Minute})
	_, _ = Guard(context.Background(), b, failing)
	_, _ = Guard(context.Background(), b, passing)
	_, _ = Guard(context.Background(), b, failing)
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker("web_search", BreakerConfig{Failures: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	_, _ = Guard(context.Background(), b, failing)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(2 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	v, err := Guard(context.Background(), b, passing)
	if err != nil || v != 1 {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after probe, got %s", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("social_probe", BreakerConfig{Failures: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	_, _ = Guard(context.Background(), b, failing)
	now = now.Add(2 * time.Second)
	_, _ = Guard(context.Background(), b, failing)

	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
}

func TestGuard_NilBreaker(t *testing.T) {
	v, err := Guard(context.Background(), nil, passing)
	if err != nil || v != 1 {
		t.Errorf("unexpected result %d, %v", v, err)
	}
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	errMissing := errors.New("missing input")
	b := NewBreaker("profile", BreakerConfig{Failures: 1, Ignore: func(err error) bool { return errors.Is(err, errMissing) }})

	_, err := Guard(context.Background(), b, func(_ context.Context) (int, error) { return 0, errMissing })
	if !errors.Is(err, errMissing) {
		t.Errorf("expected the original error, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreakers_NilRegistry(t *testing.T) {
	var r *Breakers
	if r.For("news") != nil {
		t.Error("expected nil breaker")
	}
	if s := r.States(); s == nil || len(s) != 0 {
		t.Errorf("expected empty states, got %v", s)
	}
}

func TestBreakers_ReusesByName(t *testing.T) {
	r := NewBreakers(BreakerConfig{Failures: 1})
	a := r.For("news")
	if r.For("news") != a {
		t.Error("expected same breaker")
	}
	if r.For("web_search") == a {
		t.Error("expected distinct breaker")
	}

	_, _ = Guard(context.Background(), a, failing)
	states := r.States()
	if states["news"] != StateOpen || states["web_search"] != StateClosed {
		t.Errorf("unexpected states: %v", states)
	}
}

func TestFromEnrichConfig(t *testing.T) {
	p, bc := FromEnrichConfig(config.EnrichConfig{RetryAttempts: 4, BreakerFailures: 7, BreakerResetSecs: 9})
	if p.Attempts != 4 {
		t.Errorf("attempts = %d", p.Attempts)
	}
	if bc.Failures != 7 || bc.Cooldown != 9*time.Second {
		t.Errorf("unexpected breaker config %+v", bc)
	}

	p, _ = FromEnrichConfig(config.EnrichConfig{})
	if p.Attempts != DefaultPolicy().Attempts {
		t.Errorf("expected default attempts, got %d", p.Attempts)
	}
}
