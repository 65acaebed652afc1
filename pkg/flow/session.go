package flow

import "time"

// Session is the mutable runtime state of one live call executing a graph.
// It is created at call start, mutated only through its owning session
// manager, and destroyed at call end or session timeout. Nothing in a
// session is ever shared with another session.
type Session struct {
	CallID       string    `json:"call_id"`
	Graph        string    `json:"graph"`
	GraphVersion string    `json:"graph_version"`

	CurrentNodeID string   `json:"current_node_id"`
	History       []string `json:"history"`

	// Variables written by extract_variable (and function result capture)
	// are visible to condition judgment and prompt templating from the turn
	// after they are written.
	Variables Vars `json:"variables"`

	// Turn increases monotonically, once per committed advance.
	Turn int `json:"turn"`

	// LastUtterance is the most recent caller input consumed by the engine,
	// fed to the extraction capability.
	LastUtterance string `json:"last_utterance,omitempty"`

	Terminal  bool      `json:"terminal"`
	StartedAt time.Time `json:"started_at"`
}

// NewSession starts a session at the graph's start node.
func NewSession(callID string, graph *Graph) *Session {
	return &Session{
		CallID:        callID,
		Graph:         graph.Name(),
		GraphVersion:  graph.Version(),
		CurrentNodeID: graph.StartID(),
		History:       []string{graph.StartID()},
		Variables:     make(Vars),
		StartedAt:     time.Now(),
	}
}

// Clone returns a deep-enough copy: history and variables are copied so the
// caller cannot mutate stored state through the snapshot.
func (s *Session) Clone() *Session {
	out := *s
	out.History = make([]string, len(s.History))
	copy(out.History, s.History)
	out.Variables = s.Variables.Clone()
	return &out
}

// Record snapshots the session into a CallRecord with the given end reason.
func (s *Session) Record(reason EndReason) CallRecord {
	c := s.Clone()
	return CallRecord{
		CallID:       c.CallID,
		Graph:        c.Graph,
		GraphVersion: c.GraphVersion,
		Reason:       reason,
		History:      c.History,
		Variables:    c.Variables,
		Turns:        c.Turn,
		StartedAt:    c.StartedAt,
		EndedAt:      time.Now(),
	}
}
