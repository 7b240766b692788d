package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-research/internal/model"
	"github.com/sells-group/contact-research/pkg/anthropic"
	anthropicmocks "github.com/sells-group/contact-research/pkg/anthropic/mocks"
)

const sonnet = "claude-sonnet-4-5-20250929"

func contact() model.Contact {
	return model.Contact{ID: "c1", Name: "Ada Lovelace", Title: "Engineer", Organization: "Engines Ltd", Tags: []string{"math"}}
}

func TestSynthesize(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(r anthropic.MessageRequest) bool {
		return r.Model == sonnet && r.MaxTokens == 2048 && r.System != "" &&
			strings.Contains(r.Messages[0].Content, "Ada wins award")
	})).Return(&anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: "```json\n" + `{
  "summary": " Ada builds engines. ",
  "achievements": ["First program", " "],
  "mutual_interests": ["poetry"],
  "potential_value": "Advisor",
  "intro_suggestions": []
}` + "\n```"}}}, nil)

	raw := model.ResearchRaw{News: &model.NewsRaw{Articles: []model.NewsArticle{{Title: "Ada wins award", URL: "https://n.example"}}}}
	s, err := New(ai, sonnet, 0).Synthesize(context.Background(), contact(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Ada builds engines.", s.Summary)
	assert.Equal(t, []string{"First program"}, s.Achievements)
	assert.Equal(t, []string{"poetry"}, s.MutualInterests)
	assert.Equal(t, "Advisor", s.PotentialValue)
	assert.Equal(t, []string{}, s.IntroSuggestions)
	assert.True(t, s.HasSummary())
}

func TestSynthesize_FailureIsEmpty(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	s, err := New(ai, sonnet, 100).Synthesize(context.Background(), contact(), model.ResearchRaw{})
	require.Error(t, err)
	assert.Equal(t, model.Synthesis{}, s)
}

func TestSynthesize_BadJSON(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "I cannot help with that."}},
	}, nil)

	s, err := New(ai, sonnet, 100).Synthesize(context.Background(), contact(), model.ResearchRaw{})
	require.Error(t, err)
	assert.False(t, s.HasSummary())
}

func TestSynthesize_NoClient(t *testing.T) {
	s, err := New(nil, sonnet, 0).Synthesize(context.Background(), contact(), model.ResearchRaw{})
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, model.Synthesis{}, s)
}

func TestBuildContext(t *testing.T) {
	raw := model.ResearchRaw{
		WebSearch: &model.WebSearchRaw{Results: []model.WebResult{{Title: "Bio", URL: "https://w.example", Content: "Ada bio"}}},
		Profile: &model.ProfileRaw{
			Headline:    "Engineer",
			Experiences: []model.Experience{{Title: "Lead", Company: "Engines Ltd", Period: "1842"}},
			Skills:      []string{"math", "poetry"},
		},
		Social: &model.SocialRaw{Profiles: []model.SocialProfile{{Platform: "github", URL: "https://github.com/ada", Bio: "code"}}},
	}
	got := BuildContext(contact(), raw)

	assert.Contains(t, got, "Name: Ada Lovelace")
	assert.Contains(t, got, "Tags: math")
	assert.Contains(t, got, "Headline: Engineer")
	assert.Contains(t, got, "- Lead at Engines Ltd (1842)")
	assert.Contains(t, got, "Skills: math, poetry")
	assert.Contains(t, got, "### Bio (https://w.example)\nAda bio")
	assert.Contains(t, got, "- github https://github.com/ada: code")
	assert.NotContains(t, got, "## News")
	assert.NotContains(t, got, "Genres")
}
