package model

import "strings"

// ProviderName identifies an enrichment data source.
type ProviderName string

const (
	ProviderWebSearch ProviderName = "web_search"
	ProviderProfile   ProviderName = "professional_profile"
	ProviderSocial    ProviderName = "social_probe"
	ProviderNews      ProviderName = "news"
)

// ResearchRaw keeps each provider's typed payload under its provider name.
// A nil entry means that provider failed or had nothing to offer on the last run.
type ResearchRaw struct {
	WebSearch *WebSearchRaw `json:"web_search,omitempty"`
	Profile   *ProfileRaw   `json:"professional_profile,omitempty"`
	Social    *SocialRaw    `json:"social_probe,omitempty"`
	News      *NewsRaw      `json:"news,omitempty"`
}

// WebSearchRaw is the payload of the web-search provider.
type WebSearchRaw struct {
	Query   string      `json:"query"`
	Results []WebResult `json:"results"`
}

// WebResult is a single web search hit.
type WebResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ProfileRaw is the payload of the professional-profile provider.
type ProfileRaw struct {
	Headline       string       `json:"headline"`
	Summary        string       `json:"summary"`
	Experiences    []Experience `json:"experiences"`
	Education      []Education  `json:"education"`
	Skills         []string     `json:"skills"`
	Certifications []string     `json:"certifications"`
	SourceURL      string       `json:"source_url,omitempty"`
}

// Experience is one position on a professional profile.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Period      string `json:"period,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is one school entry on a professional profile.
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Period string `json:"period,omitempty"`
}

// SocialRaw is the payload of the social/website probe.
type SocialRaw struct {
	Profiles []SocialProfile `json:"profiles"`
}

// SocialProfile is a public page that was fetched for the contact.
type SocialProfile struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Bio      string `json:"bio"`
}

// NewsRaw is the payload of the news provider.
type NewsRaw struct {
	Articles []NewsArticle `json:"articles"`
}

// NewsArticle is a single news mention.
type NewsArticle struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Synthesis is the narrative profile produced from aggregated provider output.
type Synthesis struct {
	Summary          string   `json:"summary"`
	Achievements     []string `json:"achievements"`
	MutualInterests  []string `json:"mutual_interests"`
	PotentialValue   string   `json:"potential_value"`
	IntroSuggestions []string `json:"intro_suggestions"`
}

// HasSummary reports whether synthesis produced a non-empty summary.
func (s Synthesis) HasSummary() bool {
	return strings.TrimSpace(s.Summary) != ""
}
