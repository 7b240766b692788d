package model

// SearchMode names one of the retrieval modes fused by hybrid search.
type SearchMode string

const (
	SearchModeVector SearchMode = "vector"
	SearchModeGraph  SearchMode = "graph"
	SearchModeText   SearchMode = "text"
)

// SearchHit is the canonical record every retrieval mode is normalized into.
type SearchHit struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Title        string  `json:"title,omitempty"`
	Organization string  `json:"organization,omitempty"`
	Score        float64 `json:"score"`
}

// FusedSearchResult is one entry of a hybrid search response. Never persisted.
type FusedSearchResult struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Title        string       `json:"title,omitempty"`
	Organization string       `json:"organization,omitempty"`
	Score        float64      `json:"score"`
	Sources      int          `json:"sources"`
	Modes        []SearchMode `json:"modes"`
	// Provenance is "multiple" when more than one mode returned the contact.
	Provenance string `json:"provenance"`
}

// ProvenanceLabel labels a result returned by sources retrieval modes.
func ProvenanceLabel(sources int) string {
	if sources > 1 {
		return "multiple"
	}
	return "single"
}
