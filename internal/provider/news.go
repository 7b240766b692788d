package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/pkg/anthropic"
	"github.com/sells-group/contact-research/pkg/perplexity"
)

const newsPrompt = `Find recent news articles (last 12 months) that mention %s%s.
Respond with only a JSON array. Each element must have "title", "url" and "snippet".
Return [] if there is no coverage.`

// PerplexityNews finds news coverage through Perplexity's online model.
type PerplexityNews struct {
	client perplexity.Client
}

// NewPerplexityNews creates a news lookup over c. A nil client makes every
// lookup unavailable.
func NewPerplexityNews(c perplexity.Client) *PerplexityNews {
	return &PerplexityNews{client: c}
}

// News returns articles with a URL, dropping duplicates.
func (n *PerplexityNews) News(ctx context.Context, name, organization string) (*model.NewsRaw, error) {
	if n.client == nil {
		return nil, eris.Wrap(ErrUnavailable, "news: no perplexity client")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.Wrap(ErrUnavailable, "news: no name")
	}
	org := ""
	if o := strings.TrimSpace(organization); o != "" {
		org = " (" + o + ")"
	}

	temp := 0.1
	resp, err := n.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages:            []perplexity.Message{{Role: "user", Content: fmt.Sprintf(newsPrompt, name, org)}},
		Temperature:         &temp,
		SearchRecencyFilter: "year",
	})
	if err != nil {
		return nil, eris.Wrap(err, "news: perplexity")
	}

	var articles []model.NewsArticle
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &articles); err != nil {
		return nil, eris.Wrap(err, "news: parse articles")
	}

	out := &model.NewsRaw{Articles: []model.NewsArticle{}}
	seen := map[string]bool{}
	for _, a := range articles {
		a.URL = strings.TrimSpace(a.URL)
		if a.URL == "" || seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		a.Title = strings.TrimSpace(a.Title)
		a.Snippet = strings.TrimSpace(a.Snippet)
		out.Articles = append(out.Articles, a)
	}
	return out, nil
}
