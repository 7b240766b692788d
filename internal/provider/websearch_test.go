package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-research/pkg/jina"
	jinamocks "github.com/sells-group/contact-research/pkg/jina/mocks"
)

func TestWebSearch_ScoresByRank(t *testing.T) {
	ctx := context.Background()
	c := jinamocks.NewMockClient(t)
	c.On("Search", ctx, "Ada Lovelace Analytical Engines").Return(&jina.SearchResponse{Data: []jina.SearchResult{
		{Title: " First ", URL: "https://a.example", Content: "alpha"},
		{Title: "No URL"},
		{Title: "Second", URL: "https://b.example", Description: "from description"},
	}}, nil)

	raw, err := NewWebSearch(c).Search(ctx, " Ada Lovelace ", "Analytical Engines")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace Analytical Engines", raw.Query)
	require.Len(t, raw.Results, 2)
	assert.Equal(t, "First", raw.Results[0].Title)
	assert.Equal(t, 1.0, raw.Results[0].Score)
	assert.Equal(t, "from description", raw.Results[1].Content)
	assert.Equal(t, 0.5, raw.Results[1].Score)
}

func TestWebSearch_CapsResultsAndContent(t *testing.T) {
	ctx := context.Background()
	var data []jina.SearchResult
	for i := 0; i < 15; i++ {
		data = append(data, jina.SearchResult{URL: "https://x.example", Content: strings.Repeat("é", 3000)})
	}
	c := jinamocks.NewMockClient(t)
	c.On("Search", ctx, "Ada").Return(&jina.SearchResponse{Data: data}, nil)

	raw, err := NewWebSearch(c).Search(ctx, "Ada", "")
	require.NoError(t, err)
	assert.Len(t, raw.Results, maxWebResults)
	assert.Len(t, []rune(raw.Results[0].Content), maxWebContentRune)
}

func TestWebSearch_EmptyName(t *testing.T) {
	c := jinamocks.NewMockClient(t)
	_, err := NewWebSearch(c).Search(context.Background(), "", " ")
	assert.True(t, errors.Is(err, ErrUnavailable))
	c.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestWebSearch_ClientError(t *testing.T) {
	c := jinamocks.NewMockClient(t)
	c.On("Search", mock.Anything, mock.Anything).Return(nil, &jina.StatusError{StatusCode: 503})

	_, err := NewWebSearch(c).Search(context.Background(), "Ada", "")
	require.Error(t, err)
	var se *jina.StatusError
	assert.True(t, errors.As(err, &se))
}

func TestResult(t *testing.T) {
	ok := Success(3)
	assert.True(t, ok.OK())
	assert.Empty(t, ok.Reason())

	bad := Failure[int](errors.New("timeout"))
	assert.False(t, bad.OK())
	assert.Equal(t, "timeout", bad.Reason())

	assert.False(t, Failure[string](nil).OK())
}
