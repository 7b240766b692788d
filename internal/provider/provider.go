// Package provider holds the enrichment data sources consulted for a contact
// and the tagged result type every source resolves to.
package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-research/internal/model"
)

var (
	// ErrUnavailable means the provider has nothing to offer for this input
	// (missing identifier, missing credential, or an empty lookup).
	ErrUnavailable = eris.New("provider: unavailable")
	// ErrUnsafeURL is returned when a URL fails SSRF validation.
	ErrUnsafeURL = eris.New("provider: unsafe url")
)

// WebSearcher looks a person up on the open web.
type WebSearcher interface {
	Search(ctx context.Context, name, organization string) (*model.WebSearchRaw, error)
}

// ProfileLookup fetches a professional profile by profile URL or email.
type ProfileLookup interface {
	Lookup(ctx context.Context, profileURL, email string) (*model.ProfileRaw, error)
}

// SocialProber fetches the contact's public social page and website.
type SocialProber interface {
	Probe(ctx context.Context, socialURL, websiteURL string) (*model.SocialRaw, error)
}

// NewsLookup finds recent news mentions of a person.
type NewsLookup interface {
	News(ctx context.Context, name, organization string) (*model.NewsRaw, error)
}

// Set bundles the four providers an enrichment run fans out to.
type Set struct {
	Web     WebSearcher
	Profile ProfileLookup
	Social  SocialProber
	News    NewsLookup
}

// Result is the outcome of one provider call: either a value or the reason
// it failed. It never carries both.
type Result[T any] struct {
	Value    T
	Err      error
	Duration time.Duration
}

// Success wraps v.
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failure wraps err. A nil err is replaced so the result still reads as failed.
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = eris.New("provider: failed without reason")
	}
	return Result[T]{Err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Reason is the failure message, or "" on success.
func (r Result[T]) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
