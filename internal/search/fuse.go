package search

import (
	"sort"

	"github.com/sells-group/contact-research/internal/model"
)

// RankedList is one retrieval mode's hits, best first.
type RankedList struct {
	Mode model.SearchMode
	Hits []model.SearchHit
}

// Fuse merges ranked lists with Reciprocal Rank Fusion. The hit at 0-based
// position i of a list adds 1/(i+1) to its id; an id's score is the sum over
// every list it appears in. Ids with equal scores keep the order in which
// they were first seen across lists in argument order. Repeats of an id
// inside one list are dropped before ranking. topK <= 0 keeps everything.
func Fuse(topK int, lists ...RankedList) []model.FusedSearchResult {
	index := map[string]int{}
	var out []model.FusedSearchResult

	for _, l := range lists {
		seen := map[string]bool{}
		rank := 0
		for _, h := range l.Hits {
			if h.ID == "" || seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			contribution := 1 / float64(rank+1)
			rank++

			i, ok := index[h.ID]
			if !ok {
				i = len(out)
				index[h.ID] = i
				out = append(out, model.FusedSearchResult{ID: h.ID})
			}
			r := &out[i]
			r.Score += contribution
			r.Sources++
			r.Modes = append(r.Modes, l.Mode)
			if r.Name == "" {
				r.Name = h.Name
			}
			if r.Title == "" {
				r.Title = h.Title
			}
			if r.Organization == "" {
				r.Organization = h.Organization
			}
		}
	}

	for i := range out {
		out[i].Provenance = model.ProvenanceLabel(out[i].Sources)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	if out == nil {
		out = []model.FusedSearchResult{}
	}
	return out
}
