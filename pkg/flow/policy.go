package flow

import "fmt"

// FallbackMode selects what happens when no transition condition is
// satisfied (or the judgment capability stays unavailable).
type FallbackMode string

const (
	// FallbackReprompt replays the current node's prompt, bounded by
	// MaxReprompts. Only meaningful for nodes that can re-prompt; silent
	// nodes degrade to the Target route.
	FallbackReprompt FallbackMode = "reprompt"
	// FallbackRoute follows the designated Target node unconditionally.
	FallbackRoute FallbackMode = "route"
)

// FallbackPolicy is required external configuration, not part of the graph
// schema. The orchestrator refuses to run without one; there is no built-in
// default and no unbounded loop.
type FallbackPolicy struct {
	Mode FallbackMode

	// MaxReprompts bounds FallbackReprompt. Mandatory for that mode.
	MaxReprompts int

	// Target is the node routed to by FallbackRoute, and by FallbackReprompt
	// once the ceiling is hit. Optional for reprompt: with no target the
	// session ends instead.
	Target string
}

// Validate checks the policy against a compiled graph.
func (p FallbackPolicy) Validate(g *Graph) error {
	switch p.Mode {
	case FallbackReprompt:
		if p.MaxReprompts < 1 {
			return fmt.Errorf("fallback policy: reprompt mode requires MaxReprompts >= 1")
		}
	case FallbackRoute:
		if p.Target == "" {
			return fmt.Errorf("fallback policy: route mode requires a target node")
		}
	default:
		return fmt.Errorf("fallback policy: unknown mode %q", p.Mode)
	}
	if p.Target != "" {
		if _, ok := g.Node(p.Target); !ok {
			return fmt.Errorf("fallback policy: target node %q not in graph", p.Target)
		}
	}
	return nil
}
