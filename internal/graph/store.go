package graph

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/contact-research/internal/model"
)

var (
	// ErrInvalidDepth is returned for a neighborhood depth outside 1..5.
	ErrInvalidDepth = eris.New("graph: depth must be between 1 and 5")
	// ErrNoPath is returned when no path of at most MaxPathHops exists.
	ErrNoPath = eris.New("graph: no path")
	// ErrSameEndpoints is returned when a path is requested from a node to itself.
	ErrSameEndpoints = eris.New("graph: path endpoints must differ")
)

// MaxPathHops bounds ShortestPath.
const MaxPathHops = 6

const (
	upsertContactCypher = `MERGE (c:Contact {id: $id})
SET c.name = $name, c.title = $title, c.organization = $organization, c.type = $type,
    c.warmth = $warmth, c.research_summary = $research_summary, c.archived = $archived,
    c.updated_at = datetime()`

	mergeTagsCypher = `MATCH (c:Contact {id: $id})
OPTIONAL MATCH (c)-[r:TAGGED]->(old:Tag) WHERE NOT old.name IN $names
DELETE r
WITH DISTINCT c
UNWIND $names AS name
MERGE (t:Tag {name: name})
MERGE (c)-[:TAGGED]->(t)`

	mergeGenresCypher = `MATCH (c:Contact {id: $id})
OPTIONAL MATCH (c)-[r:IN_GENRE]->(old:Genre) WHERE NOT old.name IN $names
DELETE r
WITH DISTINCT c
UNWIND $names AS name
MERGE (g:Genre {name: name})
MERGE (c)-[:IN_GENRE]->(g)`

	fullTextCypher = `CALL db.index.fulltext.queryNodes('contact_search', $query) YIELD node, score
WHERE coalesce(node.archived, false) = false
RETURN node.id AS id, node.name AS name, node.title AS title, node.organization AS organization, score
ORDER BY score DESC
LIMIT $limit`

	shortestPathCypher = `MATCH (a:Contact {id: $from}), (b:Contact {id: $to})
MATCH p = shortestPath((a)-[*..6]-(b))
RETURN p`
)

// neighborhoodCypher maps each permitted depth to its traversal. The depth
// is never formatted into a query string.
var neighborhoodCypher = map[int]string{
	1: `MATCH p = (c:Contact {id: $id})-[*1..1]-(n) RETURN p LIMIT $limit`,
	2: `MATCH p = (c:Contact {id: $id})-[*1..2]-(n) RETURN p LIMIT $limit`,
	3: `MATCH p = (c:Contact {id: $id})-[*1..3]-(n) RETURN p LIMIT $limit`,
	4: `MATCH p = (c:Contact {id: $id})-[*1..4]-(n) RETURN p LIMIT $limit`,
	5: `MATCH p = (c:Contact {id: $id})-[*1..5]-(n) RETURN p LIMIT $limit`,
}

var indexCypher = []string{
	`CREATE CONSTRAINT contact_id IF NOT EXISTS FOR (c:Contact) REQUIRE c.id IS UNIQUE`,
	`CREATE CONSTRAINT tag_name IF NOT EXISTS FOR (t:Tag) REQUIRE t.name IS UNIQUE`,
	`CREATE CONSTRAINT genre_name IF NOT EXISTS FOR (g:Genre) REQUIRE g.name IS UNIQUE`,
	`CREATE FULLTEXT INDEX contact_search IF NOT EXISTS FOR (c:Contact) ON EACH [c.name, c.title, c.organization, c.research_summary]`,
}

// Store reads and writes the contact mirror.
type Store struct {
	driver            Driver
	neighborhoodLimit int
}

// NewStore wraps d. neighborhoodLimit caps the paths a neighborhood query
// returns; values <= 0 use 200.
func NewStore(d Driver, neighborhoodLimit int) *Store {
	if neighborhoodLimit <= 0 {
		neighborhoodLimit = 200
	}
	return &Store{driver: d, neighborhoodLimit: neighborhoodLimit}
}

// Close releases the driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureIndexes creates the uniqueness constraints and the full-text index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	var failed []string
	for _, q := range indexCypher {
		if _, err := s.driver.ExecuteQuery(ctx, q, nil); err != nil {
			zap.L().Warn("graph: create index failed", zap.String("query", q), zap.Error(err))
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return eris.Errorf("graph: ensure indexes: %s", strings.Join(failed, "; "))
	}
	return nil
}

// UpsertContact merges the node keyed by id and overwrites its properties.
func (s *Store) UpsertContact(ctx context.Context, c model.GraphContact) error {
	_, err := s.driver.ExecuteQuery(ctx, upsertContactCypher, map[string]any{
		"id":               c.ID,
		"name":             c.Name,
		"title":            c.Title,
		"organization":     c.Organization,
		"type":             c.Type,
		"warmth":           c.Warmth,
		"research_summary": c.ResearchSummary,
		"archived":         c.Archived,
	})
	return eris.Wrapf(err, "graph: upsert contact %s", c.ID)
}

// MergeRelations makes the contact's TAGGED and IN_GENRE edges match tags
// and genres, merging shared Tag/Genre nodes by name.
func (s *Store) MergeRelations(ctx context.Context, id string, tags, genres []string) error {
	if _, err := s.driver.ExecuteQuery(ctx, mergeTagsCypher, map[string]any{
		"id": id, "names": cleanNames(tags),
	}); err != nil {
		return eris.Wrapf(err, "graph: merge tags for %s", id)
	}
	if _, err := s.driver.ExecuteQuery(ctx, mergeGenresCypher, map[string]any{
		"id": id, "names": cleanNames(genres),
	}); err != nil {
		return eris.Wrapf(err, "graph: merge genres for %s", id)
	}
	return nil
}

// FullTextSearch queries the contact_search index, best match first.
func (s *Store) FullTextSearch(ctx context.Context, query string, limit int) ([]model.SearchHit, error) {
	q := escapeLucene(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil, nil
	}

	res, err := s.driver.ExecuteQuery(ctx, fullTextCypher, map[string]any{"query": q, "limit": limit})
	if err != nil {
		return nil, eris.Wrap(err, "graph: full-text search")
	}

	hits := make([]model.SearchHit, 0, len(res.Records))
	for _, rec := range res.Records {
		h := model.SearchHit{
			ID:           recordString(rec, "id"),
			Name:         recordString(rec, "name"),
			Title:        recordString(rec, "title"),
			Organization: recordString(rec, "organization"),
		}
		if v, ok := rec.Get("score"); ok {
			if f, ok := v.(float64); ok {
				h.Score = f
			}
		}
		if h.ID == "" {
			continue
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// ValidDepth reports whether depth is an allowed neighborhood depth.
func ValidDepth(depth int) bool {
	_, ok := neighborhoodCypher[depth]
	return ok
}

// Neighborhood returns the nodes and edges within depth hops of id.
func (s *Store) Neighborhood(ctx context.Context, id string, depth int) (*model.Neighborhood, error) {
	query, ok := neighborhoodCypher[depth]
	if !ok {
		return nil, eris.Wrapf(ErrInvalidDepth, "graph: neighborhood depth %d", depth)
	}

	res, err := s.driver.ExecuteQuery(ctx, query, map[string]any{"id": id, "limit": s.neighborhoodLimit})
	if err != nil {
		return nil, eris.Wrapf(err, "graph: neighborhood of %s", id)
	}

	b := newSubgraph()
	for _, rec := range res.Records {
		if p, ok := recordPath(rec, "p"); ok {
			b.addPath(p)
		}
	}
	return &model.Neighborhood{
		Center:    id,
		Depth:     depth,
		Nodes:     b.nodes,
		Edges:     b.edges,
		Truncated: len(res.Records) >= s.neighborhoodLimit,
	}, nil
}

// ShortestPath returns the shortest path of at most MaxPathHops between two
// contacts with each node listed once.
func (s *Store) ShortestPath(ctx context.Context, from, to string) (*model.Path, error) {
	if from == to {
		return nil, ErrSameEndpoints
	}

	res, err := s.driver.ExecuteQuery(ctx, shortestPathCypher, map[string]any{"from": from, "to": to})
	if err != nil {
		return nil, eris.Wrapf(err, "graph: shortest path %s -> %s", from, to)
	}

	for _, rec := range res.Records {
		p, ok := recordPath(rec, "p")
		if !ok {
			continue
		}
		b := newSubgraph()
		b.addPath(p)
		return &model.Path{
			From:  from,
			To:    to,
			Hops:  len(p.Relationships),
			Nodes: b.nodes,
			Edges: b.edges,
		}, nil
	}
	return nil, eris.Wrapf(ErrNoPath, "graph: %s -> %s", from, to)
}

// subgraph accumulates nodes and edges from paths, keeping first occurrences.
type subgraph struct {
	keys      map[string]string // element id -> node key
	seenEdges map[string]bool
	nodes     []model.GraphNode
	edges     []model.GraphEdge
}

func newSubgraph() *subgraph {
	return &subgraph{keys: map[string]string{}, seenEdges: map[string]bool{}}
}

func (b *subgraph) addPath(p neo4j.Path) {
	for _, n := range p.Nodes {
		if _, ok := b.keys[n.ElementId]; ok {
			continue
		}
		gn := toGraphNode(n)
		b.keys[n.ElementId] = gn.Key
		b.nodes = append(b.nodes, gn)
	}
	for _, r := range p.Relationships {
		if b.seenEdges[r.ElementId] {
			continue
		}
		b.seenEdges[r.ElementId] = true
		b.edges = append(b.edges, model.GraphEdge{
			Type:   r.Type,
			Source: b.keys[r.StartElementId],
			Target: b.keys[r.EndElementId],
		})
	}
}

func toGraphNode(n neo4j.Node) model.GraphNode {
	label := ""
	if len(n.Labels) > 0 {
		label = n.Labels[0]
	}
	name, _ := n.Props["name"].(string)
	key, _ := n.Props["id"].(string)
	if key == "" {
		key = label + ":" + name
	}
	props := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		if k == "id" || k == "name" {
			continue
		}
		props[k] = v
	}
	return model.GraphNode{Key: key, Label: label, Name: name, Props: props}
}

func recordPath(rec *neo4j.Record, key string) (neo4j.Path, bool) {
	v, ok := rec.Get(key)
	if !ok {
		return neo4j.Path{}, false
	}
	p, ok := v.(neo4j.Path)
	return p, ok
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// cleanNames lowercases, trims and dedupes tag or genre names so shared
// nodes merge regardless of how each contact spelled them.
func cleanNames(in []string) []string {
	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, n := range in {
		n = lower.String(strings.Join(strings.Fields(n), " "))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

const luceneSpecial = `\+-!():^[]"{}~*?|&/`

// escapeLucene backslash-escapes Lucene query syntax so user input is
// matched as plain terms.
func escapeLucene(q string) string {
	var b strings.Builder
	for _, r := range q {
		if strings.ContainsRune(luceneSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
