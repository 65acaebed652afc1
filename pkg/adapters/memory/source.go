package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dialflow/dialflow/pkg/flow"
)

// GraphSource implements ports.GraphSource over a map of compiled graphs.
// Publishing replaces the whole graph under its name; in-flight calls keep
// the version they fetched at start.
type GraphSource struct {
	mu     sync.RWMutex
	graphs map[string]*flow.Graph
}

// NewGraphSource creates a source preloaded with the given graphs.
func NewGraphSource(graphs ...*flow.Graph) *GraphSource {
	s := &GraphSource{graphs: make(map[string]*flow.Graph)}
	for _, g := range graphs {
		s.graphs[g.Name()] = g
	}
	return s
}

// Publish registers or replaces a compiled graph.
func (s *GraphSource) Publish(g *flow.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.Name()] = g
}

// Fetch returns the published graph for name.
func (s *GraphSource) Fetch(ctx context.Context, name string) (*flow.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.graphs[name]
	if !ok {
		return nil, fmt.Errorf("graph not published: %s", name)
	}
	return g, nil
}
