package model

// GraphNode is a node returned by a graph traversal.
type GraphNode struct {
	Key   string         `json:"key"`
	Label string         `json:"label"`
	Name  string         `json:"name"`
	Props map[string]any `json:"props,omitempty"`
}

// GraphEdge is a relationship between two traversal nodes, referenced by key.
type GraphEdge struct {
	Type   string `json:"type"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Neighborhood is the bounded subgraph around a contact.
type Neighborhood struct {
	Center    string      `json:"center"`
	Depth     int         `json:"depth"`
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	Truncated bool        `json:"truncated"`
}

// Path is a shortest path between two contacts with each node listed once.
type Path struct {
	From  string      `json:"from"`
	To    string      `json:"to"`
	Hops  int         `json:"hops"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
