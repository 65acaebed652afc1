package flow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a call id has no active session.
var ErrSessionNotFound = errors.New("session not found")

// ErrDuplicateSession is returned when a session is created for a call id
// that is already active. The existing session is unaffected.
var ErrDuplicateSession = errors.New("session already active for call id")

// ErrCapacity is returned when the active-session bound is reached. Call
// starts are rejected, never queued.
var ErrCapacity = errors.New("session capacity reached")

// ErrNoTransition is returned by the evaluator when no condition was
// satisfied; the orchestrator applies the fallback policy.
var ErrNoTransition = errors.New("no transition satisfied")

// ErrJudgeUnavailable is returned when the judgment capability failed after
// its single retry. Routed to the fallback policy, never left undefined.
var ErrJudgeUnavailable = errors.New("judgment capability unavailable")

// CompileIssue describes one fatal structural defect found at compile time.
type CompileIssue struct {
	Check   string // e.g. "unique-ids", "start-node", "target-resolves", "ending-terminal"
	NodeID  string
	Message string
}

func (i CompileIssue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Check, i.Message)
	}
	return fmt.Sprintf("%s: node %q: %s", i.Check, i.NodeID, i.Message)
}

// CompileError rejects a whole graph definition. No partial activation: a
// graph that fails any fatal check never reaches a live call.
type CompileError struct {
	Issues []CompileIssue
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("graph rejected: %s", strings.Join(msgs, "; "))
}

// CapabilityError wraps a failure of an external capability call.
// Temporary marks read-like calls that were already retried once; side
// effects such as SMS sends are never retried and carry Temporary=false.
type CapabilityError struct {
	Capability string
	Err        error
	Temporary  bool
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }
