package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/pkg/jina"
)

const (
	maxWebResults     = 10
	maxWebContentRune = 2000
)

// WebSearch queries the Jina search endpoint for "name organization".
type WebSearch struct {
	client jina.Client
}

// NewWebSearch creates a web searcher over c.
func NewWebSearch(c jina.Client) *WebSearch {
	return &WebSearch{client: c}
}

// Search returns up to ten results, best first, each scored 1/(rank+1).
func (w *WebSearch) Search(ctx context.Context, name, organization string) (*model.WebSearchRaw, error) {
	query := strings.TrimSpace(strings.TrimSpace(name) + " " + strings.TrimSpace(organization))
	if query == "" {
		return nil, eris.Wrap(ErrUnavailable, "web search: no name")
	}

	resp, err := w.client.Search(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "web search")
	}

	raw := &model.WebSearchRaw{Query: query, Results: []model.WebResult{}}
	for _, r := range resp.Data {
		if len(raw.Results) == maxWebResults {
			break
		}
		if r.URL == "" {
			continue
		}
		content := r.Content
		if strings.TrimSpace(content) == "" {
			content = r.Description
		}
		raw.Results = append(raw.Results, model.WebResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Content: truncateRunes(strings.TrimSpace(content), maxWebContentRune),
			Score:   1 / float64(len(raw.Results)+1),
		})
	}
	return raw, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
