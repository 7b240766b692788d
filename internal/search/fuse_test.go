package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-research/internal/model"
)

func hits(ids ...string) []model.SearchHit {
	out := make([]model.SearchHit, len(ids))
	for i, id := range ids {
		out[i] = model.SearchHit{ID: id, Name: "name-" + id}
	}
	return out
}

func TestFuse_WorkedExample(t *testing.T) {
	got := Fuse(10,
		RankedList{Mode: model.SearchModeVector, Hits: hits("A", "B")},
		RankedList{Mode: model.SearchModeGraph, Hits: hits("B", "C")},
		RankedList{Mode: model.SearchModeText, Hits: hits("A")},
	)
	require.Len(t, got, 3)

	assert.Equal(t, "A", got[0].ID)
	assert.InDelta(t, 2.0, got[0].Score, 1e-12)
	assert.Equal(t, 2, got[0].Sources)
	assert.Equal(t, []model.SearchMode{model.SearchModeVector, model.SearchModeText}, got[0].Modes)

	assert.Equal(t, "B", got[1].ID)
	assert.InDelta(t, 1.5, got[1].Score, 1e-12)
	assert.Equal(t, 2, got[1].Sources)

	assert.Equal(t, "C", got[2].ID)
	assert.InDelta(t, 0.5, got[2].Score, 1e-12)
	assert.Equal(t, 1, got[2].Sources)
	assert.Equal(t, "single", got[2].Provenance)
	assert.Equal(t, "multiple", got[0].Provenance)
}

func TestFuse_TiesKeepFirstSeenOrder(t *testing.T) {
	got := Fuse(0,
		RankedList{Mode: model.SearchModeVector, Hits: hits("X")},
		RankedList{Mode: model.SearchModeGraph, Hits: hits("Y")},
		RankedList{Mode: model.SearchModeText, Hits: hits("Z")},
	)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"X", "Y", "Z"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestFuse_Truncates(t *testing.T) {
	got := Fuse(2, RankedList{Mode: model.SearchModeText, Hits: hits("a", "b", "c", "d")})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestFuse_CollapsesDuplicatesWithinList(t *testing.T) {
	got := Fuse(0,
		RankedList{Mode: model.SearchModeGraph, Hits: hits("A", "A", "B")},
	)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.0, got[0].Score, 1e-12)
	assert.Equal(t, 1, got[0].Sources)
	assert.InDelta(t, 0.5, got[1].Score, 1e-12)
}

func TestFuse_FillsDisplayFieldsFromLaterModes(t *testing.T) {
	got := Fuse(0,
		RankedList{Mode: model.SearchModeVector, Hits: []model.SearchHit{{ID: "A", Name: "Ada"}}},
		RankedList{Mode: model.SearchModeText, Hits: []model.SearchHit{{ID: "A", Name: "ignored", Title: "Engineer"}}},
	)
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got[0].Name)
	assert.Equal(t, "Engineer", got[0].Title)
}

func TestFuse_Empty(t *testing.T) {
	got := Fuse(5, RankedList{Mode: model.SearchModeVector}, RankedList{Mode: model.SearchModeText, Hits: []model.SearchHit{{}}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
