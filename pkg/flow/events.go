package flow

import (
	"context"
	"time"
)

// EndReason classifies how a session terminated.
type EndReason string

const (
	EndReasonEnding        EndReason = "ending"
	EndReasonCallTransfer  EndReason = "call_transfer"
	EndReasonAgentTransfer EndReason = "agent_transfer"
	EndReasonHangup        EndReason = "hangup"
	EndReasonTimeout       EndReason = "timeout"
	EndReasonFallback      EndReason = "fallback_exhausted"
	EndReasonError         EndReason = "error"
)

// NodeEvent reports entering or leaving a node during a call.
type NodeEvent struct {
	CallID    string
	NodeID    string
	NodeType  NodeType
	Turn      int
	Timestamp time.Time
}

// JudgeEvent reports one condition judgment.
type JudgeEvent struct {
	CallID    string
	NodeID    string
	Condition string
	Satisfied bool
	Retried   bool
	Err       error
}

// InterruptEvent reports a barge-in that cancelled playback.
type InterruptEvent struct {
	CallID    string
	NodeID    string
	Phrase    string
	Utterance string
}

// CapabilityEvent reports a failed external capability call.
type CapabilityEvent struct {
	CallID     string
	NodeID     string
	Capability string
	Err        error
}

// SessionEndEvent reports session termination with its final snapshot.
type SessionEndEvent struct {
	CallID string
	Reason EndReason
	Turns  int
	Nodes  int
}

// LifecycleHooks carries optional observability callbacks. Nil fields are
// skipped; hooks run on the session's goroutine and must not block.
type LifecycleHooks struct {
	OnNodeEnter       func(context.Context, *NodeEvent)
	OnNodeLeave       func(context.Context, *NodeEvent)
	OnJudge           func(context.Context, *JudgeEvent)
	OnInterrupt       func(context.Context, *InterruptEvent)
	OnCapabilityError func(context.Context, *CapabilityEvent)
	OnSessionEnd      func(context.Context, *SessionEndEvent)
}

// MergeHooks fans each event out to both hook sets, a before b.
func MergeHooks(a, b LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, ev *NodeEvent) {
			a.EmitNodeEnter(ctx, ev)
			b.EmitNodeEnter(ctx, ev)
		},
		OnNodeLeave: func(ctx context.Context, ev *NodeEvent) {
			a.EmitNodeLeave(ctx, ev)
			b.EmitNodeLeave(ctx, ev)
		},
		OnJudge: func(ctx context.Context, ev *JudgeEvent) {
			a.EmitJudge(ctx, ev)
			b.EmitJudge(ctx, ev)
		},
		OnInterrupt: func(ctx context.Context, ev *InterruptEvent) {
			a.EmitInterrupt(ctx, ev)
			b.EmitInterrupt(ctx, ev)
		},
		OnCapabilityError: func(ctx context.Context, ev *CapabilityEvent) {
			a.EmitCapabilityError(ctx, ev)
			b.EmitCapabilityError(ctx, ev)
		},
		OnSessionEnd: func(ctx context.Context, ev *SessionEndEvent) {
			a.EmitSessionEnd(ctx, ev)
			b.EmitSessionEnd(ctx, ev)
		},
	}
}

// EmitNodeEnter invokes OnNodeEnter if set.
func (h LifecycleHooks) EmitNodeEnter(ctx context.Context, ev *NodeEvent) {
	if h.OnNodeEnter != nil {
		h.OnNodeEnter(ctx, ev)
	}
}

// EmitNodeLeave invokes OnNodeLeave if set.
func (h LifecycleHooks) EmitNodeLeave(ctx context.Context, ev *NodeEvent) {
	if h.OnNodeLeave != nil {
		h.OnNodeLeave(ctx, ev)
	}
}

// EmitJudge invokes OnJudge if set.
func (h LifecycleHooks) EmitJudge(ctx context.Context, ev *JudgeEvent) {
	if h.OnJudge != nil {
		h.OnJudge(ctx, ev)
	}
}

// EmitInterrupt invokes OnInterrupt if set.
func (h LifecycleHooks) EmitInterrupt(ctx context.Context, ev *InterruptEvent) {
	if h.OnInterrupt != nil {
		h.OnInterrupt(ctx, ev)
	}
}

// EmitCapabilityError invokes OnCapabilityError if set.
func (h LifecycleHooks) EmitCapabilityError(ctx context.Context, ev *CapabilityEvent) {
	if h.OnCapabilityError != nil {
		h.OnCapabilityError(ctx, ev)
	}
}

// EmitSessionEnd invokes OnSessionEnd if set.
func (h LifecycleHooks) EmitSessionEnd(ctx context.Context, ev *SessionEndEvent) {
	if h.OnSessionEnd != nil {
		h.OnSessionEnd(ctx, ev)
	}
}

// CallRecord is the snapshot handed to the call-record store when a session
// ends. The engine keeps no durable storage of its own.
type CallRecord struct {
	CallID       string    `json:"call_id"`
	Graph        string    `json:"graph"`
	GraphVersion string    `json:"graph_version"`
	Reason       EndReason `json:"reason"`
	History      []string  `json:"history"`
	Variables    Vars      `json:"variables,omitempty"`
	Turns        int       `json:"turns"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
}
