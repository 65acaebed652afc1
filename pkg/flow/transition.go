package flow

// Transition is a guarded edge from its owning node to Target. Condition is
// a natural-language predicate judged by an external capability; priority is
// implicit in declaration order within the owning node.
type Transition struct {
	Condition string
	Target    string
}
