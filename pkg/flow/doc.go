// Package flow defines the immutable conversational graph model: typed
// nodes, ordered guarded transitions, the compiled Graph shared read-only by
// all concurrent call sessions, session variables, fallback policy, and the
// lifecycle event types emitted by the runtime.
package flow
