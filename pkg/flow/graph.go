package flow

// Graph is a compiled, immutable flow graph. It owns its nodes and is safe
// to share across any number of concurrent sessions. Construction goes
// through the compiler, which enforces the structural invariants; NewGraph
// only assembles.
type Graph struct {
	name    string
	version string
	start   string
	nodes   map[string]*Node
	order   []string
}

// NewGraph assembles a compiled graph from checked parts. The nodes slice
// fixes iteration order for rendering and introspection.
func NewGraph(name, version, start string, nodes []*Node) *Graph {
	g := &Graph{
		name:    name,
		version: version,
		start:   start,
		nodes:   make(map[string]*Node, len(nodes)),
		order:   make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	return g
}

// Name returns the graph's published name.
func (g *Graph) Name() string { return g.name }

// Version returns the published graph version.
func (g *Graph) Version() string { return g.version }

// StartID returns the designated start node id.
func (g *Graph) StartID() string { return g.start }

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns all node ids in declaration order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }
