// Package synth turns aggregated provider output into a narrative profile.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/pkg/anthropic"
)

// ErrUnavailable is returned when no generation client is configured.
var ErrUnavailable = eris.New("synth: unavailable")

const systemPrompt = `You are a research analyst preparing relationship briefs about people in a professional network.
Use only the facts in the research context. Do not invent employers, dates or awards.`

const userPrompt = `Write a research profile for %s.

Respond with only a JSON object with these fields:
- summary: string, 3-5 sentences on who they are and what they work on
- achievements: array of strings, notable verifiable achievements
- mutual_interests: array of strings, topics that make good conversation openers
- potential_value: string, one or two sentences on why the relationship matters
- intro_suggestions: array of strings, kinds of people or organisations worth introducing them to

Use empty strings and empty arrays when the context does not support a field.

Research context:
%s`

const maxContextRunes = 24000

// Synthesizer writes the narrative profile with a Sonnet call.
type Synthesizer struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// New creates a synthesizer. A nil client makes every call unavailable.
func New(ai anthropic.Client, model string, maxTokens int64) *Synthesizer {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Synthesizer{ai: ai, model: model, maxTokens: maxTokens}
}

type reply struct {
	Summary          string   `json:"summary"`
	Achievements     []string `json:"achievements"`
	MutualInterests  []string `json:"mutual_interests"`
	PotentialValue   string   `json:"potential_value"`
	IntroSuggestions []string `json:"intro_suggestions"`
}

// Synthesize builds the profile. On any error the returned Synthesis is
// empty and safe to persist.
func (s *Synthesizer) Synthesize(ctx context.Context, c model.Contact, raw model.ResearchRaw) (model.Synthesis, error) {
	if s == nil || s.ai == nil {
		return model.Synthesis{}, ErrUnavailable
	}

	temp := 0.3
	resp, err := s.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      systemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(userPrompt, c.Name, truncate(BuildContext(c, raw), maxContextRunes)),
		}},
	})
	if err != nil {
		return model.Synthesis{}, eris.Wrap(err, "synth: create message")
	}
	resp.Usage.LogCost(s.model, "synthesis")

	var r reply
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &r); err != nil {
		return model.Synthesis{}, eris.Wrap(err, "synth: parse reply")
	}
	return model.Synthesis{
		Summary:          strings.TrimSpace(r.Summary),
		Achievements:     clean(r.Achievements),
		MutualInterests:  clean(r.MutualInterests),
		PotentialValue:   strings.TrimSpace(r.PotentialValue),
		IntroSuggestions: clean(r.IntroSuggestions),
	}, nil
}

// BuildContext concatenates the contact's identity and every provider payload
// present in raw into one prompt section per provider.
func BuildContext(c model.Contact, raw model.ResearchRaw) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Contact\nName: %s\n", c.Name)
	writeField(&b, "Title", c.Title)
	writeField(&b, "Organization", c.Organization)
	if len(c.Tags) > 0 {
		writeField(&b, "Tags", strings.Join(c.Tags, ", "))
	}
	if len(c.Genres) > 0 {
		writeField(&b, "Genres", strings.Join(c.Genres, ", "))
	}

	if p := raw.Profile; p != nil {
		b.WriteString("\n## Professional profile\n")
		writeField(&b, "Headline", p.Headline)
		writeField(&b, "Summary", p.Summary)
		for _, e := range p.Experiences {
			fmt.Fprintf(&b, "- %s at %s", e.Title, e.Company)
			if e.Period != "" {
				fmt.Fprintf(&b, " (%s)", e.Period)
			}
			b.WriteByte('\n')
		}
		for _, e := range p.Education {
			fmt.Fprintf(&b, "- Studied %s at %s\n", e.Degree, e.School)
		}
		if len(p.Skills) > 0 {
			writeField(&b, "Skills", strings.Join(p.Skills, ", "))
		}
		if len(p.Certifications) > 0 {
			writeField(&b, "Certifications", strings.Join(p.Certifications, ", "))
		}
	}

	if w := raw.WebSearch; w != nil && len(w.Results) > 0 {
		b.WriteString("\n## Web search\n")
		for _, r := range w.Results {
			fmt.Fprintf(&b, "### %s (%s)\n%s\n", r.Title, r.URL, r.Content)
		}
	}

	if s := raw.Social; s != nil && len(s.Profiles) > 0 {
		b.WriteString("\n## Social and web presence\n")
		for _, p := range s.Profiles {
			fmt.Fprintf(&b, "- %s %s: %s\n", p.Platform, p.URL, p.Bio)
		}
	}

	if n := raw.News; n != nil && len(n.Articles) > 0 {
		b.WriteString("\n## News\n")
		for _, a := range n.Articles {
			fmt.Fprintf(&b, "- %s (%s): %s\n", a.Title, a.URL, a.Snippet)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, label, v string) {
	if v = strings.TrimSpace(v); v != "" {
		fmt.Fprintf(b, "%s: %s\n", label, v)
	}
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
