package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/pkg/anthropic"
	"github.com/sells-group/contact-research/pkg/jina"
	"github.com/sells-group/contact-research/pkg/perplexity"
)

const profileSearchPrompt = `Find the public professional profile of the person identified by %s.
Return everything available: headline, summary, work experience (title, company, period),
education, skills and certifications. Return the raw information as text.`

const profileExtractPrompt = `Extract the professional profile from the research data below.
Return a valid JSON object with these fields:
- headline: string
- summary: string
- experiences: array of {"title", "company", "period", "description"}
- education: array of {"school", "degree", "period"}
- skills: array of strings
- certifications: array of strings

Use empty strings and empty arrays for anything that cannot be determined.

Research data:
%s`

const maxProfileInput = 12000

// Profile reads a profile page through Jina, falls back to Perplexity when
// the page is missing or behind a login wall, and extracts structure with
// a Haiku call.
type Profile struct {
	reader jina.Client
	pplx   perplexity.Client
	ai     anthropic.Client
	model  string
}

// NewProfile creates a profile lookup. reader and pplx may be nil; without
// ai every lookup is unavailable.
func NewProfile(reader jina.Client, pplx perplexity.Client, ai anthropic.Client, haikuModel string) *Profile {
	return &Profile{reader: reader, pplx: pplx, ai: ai, model: haikuModel}
}

// Lookup returns the structured profile for profileURL, or for email when
// no URL is known.
func (p *Profile) Lookup(ctx context.Context, profileURL, email string) (*model.ProfileRaw, error) {
	profileURL = strings.TrimSpace(profileURL)
	email = strings.TrimSpace(email)
	if profileURL == "" && email == "" {
		return nil, eris.Wrap(ErrUnavailable, "profile: no profile url or email")
	}
	if p.ai == nil {
		return nil, eris.Wrap(ErrUnavailable, "profile: no extraction client")
	}
	log := zap.L().With(zap.String("provider", string(model.ProviderProfile)))

	var raw string
	if profileURL != "" && p.reader != nil {
		resp, err := p.reader.Read(ctx, profileURL)
		switch {
		case err != nil:
			log.Debug("profile: read failed, falling back", zap.Error(err))
		case isLoginWall(resp.Data.Content):
			log.Debug("profile: login wall, falling back")
		default:
			raw = resp.Data.Content
		}
	}

	if raw == "" {
		if p.pplx == nil {
			return nil, eris.Wrap(ErrUnavailable, "profile: page unreadable and no search fallback")
		}
		ident := profileURL
		if ident == "" {
			ident = "the email address " + email
		}
		temp := 0.2
		resp, err := p.pplx.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages:    []perplexity.Message{{Role: "user", Content: fmt.Sprintf(profileSearchPrompt, ident)}},
			Temperature: &temp,
		})
		if err != nil {
			return nil, eris.Wrap(err, "profile: perplexity search")
		}
		raw = resp.Text()
	}
	if strings.TrimSpace(raw) == "" {
		return nil, eris.Wrap(ErrUnavailable, "profile: empty research data")
	}

	resp, err := p.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 1024,
		Messages:  []anthropic.Message{{Role: "user", Content: fmt.Sprintf(profileExtractPrompt, truncateRunes(raw, maxProfileInput))}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "profile: haiku extraction")
	}
	resp.Usage.LogCost(p.model, string(model.ProviderProfile))

	var out model.ProfileRaw
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &out); err != nil {
		return nil, eris.Wrap(err, "profile: parse extraction")
	}
	if out.Headline == "" && out.Summary == "" && len(out.Experiences) == 0 {
		return nil, eris.Wrap(ErrUnavailable, "profile: nothing extracted")
	}
	out.SourceURL = profileURL
	return &out, nil
}

var loginIndicators = []string{
	"sign in",
	"join now",
	"authwall",
	"login_required",
	"please log in",
	"sign up to view",
}

// isLoginWall detects a reader response that is a login page rather than
// profile content.
func isLoginWall(content string) bool {
	if len(content) < 100 {
		return true
	}
	lower := strings.ToLower(content)
	for _, s := range loginIndicators {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
