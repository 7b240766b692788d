package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-research/pkg/anthropic"
	anthropicmocks "github.com/sells-group/contact-research/pkg/anthropic/mocks"
	"github.com/sells-group/contact-research/pkg/jina"
	jinamocks "github.com/sells-group/contact-research/pkg/jina/mocks"
	perplexitymocks "github.com/sells-group/contact-research/pkg/perplexity/mocks"
)

const haiku = "claude-haiku-4-5-20251001"

const profileJSON = `{"headline": "Engineer", "summary": "Builds engines",
 "experiences": [{"title": "Lead", "company": "Engines Ltd", "period": "1842-1843"}],
 "education": [], "skills": ["math"], "certifications": []}`

func aiReply(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}

func readReply(content string) *jina.ReadResponse {
	return &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: content}}
}

func TestProfile_ReaderSuccess(t *testing.T) {
	page := "Ada Lovelace. Engineer at Engines Ltd. " + strings.Repeat("Experience details. ", 10)
	reader := jinamocks.NewMockClient(t)
	reader.On("Read", mock.Anything, "https://www.linkedin.com/in/ada").Return(readReply(page), nil)

	pplx := perplexitymocks.NewMockClient(t)

	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(r anthropic.MessageRequest) bool {
		return r.Model == haiku && strings.Contains(r.Messages[0].Content, "Engineer at Engines Ltd")
	})).Return(aiReply(profileJSON), nil)

	raw, err := NewProfile(reader, pplx, ai, haiku).Lookup(context.Background(), "https://www.linkedin.com/in/ada", "")
	require.NoError(t, err)
	assert.Equal(t, "Engineer", raw.Headline)
	require.Len(t, raw.Experiences, 1)
	assert.Equal(t, "Engines Ltd", raw.Experiences[0].Company)
	assert.Equal(t, "https://www.linkedin.com/in/ada", raw.SourceURL)
	pplx.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestProfile_LoginWallFallsBack(t *testing.T) {
	reader := jinamocks.NewMockClient(t)
	reader.On("Read", mock.Anything, mock.Anything).Return(readReply("Sign in to view this profile. Join now."), nil)

	pplx := perplexitymocks.NewMockClient(t)
	pplx.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatReply("Ada is an engineer at Engines Ltd."), nil)

	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(r anthropic.MessageRequest) bool {
		return strings.Contains(r.Messages[0].Content, "Ada is an engineer")
	})).Return(aiReply(profileJSON), nil)

	raw, err := NewProfile(reader, pplx, ai, haiku).Lookup(context.Background(), "https://www.linkedin.com/in/ada", "")
	require.NoError(t, err)
	assert.Equal(t, "Builds engines", raw.Summary)
}

func TestProfile_EmailOnly(t *testing.T) {
	pplx := perplexitymocks.NewMockClient(t)
	pplx.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatReply("Ada, engineer."), nil)
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(aiReply(profileJSON), nil)

	raw, err := NewProfile(nil, pplx, ai, haiku).Lookup(context.Background(), "", "ada@example.com")
	require.NoError(t, err)
	assert.Empty(t, raw.SourceURL)
}

func TestProfile_Unavailable(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)

	_, err := NewProfile(nil, nil, ai, haiku).Lookup(context.Background(), "", "")
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = NewProfile(nil, nil, nil, haiku).Lookup(context.Background(), "https://x.example", "")
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = NewProfile(nil, nil, ai, haiku).Lookup(context.Background(), "", "ada@example.com")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestProfile_NothingExtracted(t *testing.T) {
	pplx := perplexitymocks.NewMockClient(t)
	pplx.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatReply("unknown person"), nil)
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(aiReply(`{"headline": "", "experiences": []}`), nil)

	_, err := NewProfile(nil, pplx, ai, haiku).Lookup(context.Background(), "", "ada@example.com")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestIsLoginWall(t *testing.T) {
	assert.True(t, isLoginWall("short"))
	assert.True(t, isLoginWall(strings.Repeat("x", 120)+" authwall"))
	assert.False(t, isLoginWall(strings.Repeat("Experienced engineer. ", 10)))
}
