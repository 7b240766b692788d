package model

import "time"

// Contact is a person in the relationship network together with the research
// fields owned by the enrichment pipeline.
type Contact struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title,omitempty"`
	Organization string   `json:"organization,omitempty"`
	Email        string   `json:"email,omitempty"`
	ProfileURL   string   `json:"profile_url,omitempty"`
	SocialURL    string   `json:"social_url,omitempty"`
	WebsiteURL   string   `json:"website_url,omitempty"`
	Type         string   `json:"type,omitempty"`
	Warmth       string   `json:"warmth,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	Archived     bool     `json:"archived"`
	Research     Research `json:"research"`
}

// Research holds the mutable research fields of a contact. Every enrichment
// run overwrites all of them; nothing is merged with a previous run.
type Research struct {
	Summary                string      `json:"summary,omitempty"`
	Raw                    ResearchRaw `json:"raw"`
	LastUpdated            *time.Time  `json:"last_updated,omitempty"`
	DepthScore             float64     `json:"depth_score"`
	KeyAchievements        []string    `json:"key_achievements,omitempty"`
	MutualInterests        []string    `json:"mutual_interests,omitempty"`
	SuggestedIntroductions []string    `json:"suggested_introductions,omitempty"`
	PotentialValue         string      `json:"potential_value,omitempty"`
	Embedding              []float32   `json:"-"`
}

// GraphContact is the denormalized subset of a contact mirrored into the graph.
type GraphContact struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Title           string `json:"title,omitempty"`
	Organization    string `json:"organization,omitempty"`
	Type            string `json:"type,omitempty"`
	Warmth          string `json:"warmth,omitempty"`
	ResearchSummary string `json:"research_summary,omitempty"`
	Archived        bool   `json:"archived"`
}

// GraphMirror builds the graph node projection of the contact.
func (c Contact) GraphMirror() GraphContact {
	return GraphContact{
		ID:              c.ID,
		Name:            c.Name,
		Title:           c.Title,
		Organization:    c.Organization,
		Type:            c.Type,
		Warmth:          c.Warmth,
		ResearchSummary: c.Research.Summary,
		Archived:        c.Archived,
	}
}
