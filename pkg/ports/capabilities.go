package ports

import (
	"context"

	"github.com/dialflow/dialflow/pkg/flow"
)

// JudgeInput carries the context a condition is judged against.
type JudgeInput struct {
	// Utterance is the caller's latest input. Empty for logic_split nodes,
	// which judge against variables alone.
	Utterance string
	Variables flow.Vars
}

// Judge decides whether a natural-language condition holds. Implementations
// wrap an external semantic evaluator (typically an LLM) and must honor ctx
// deadlines; the runtime imposes a bounded timeout and retries once.
type Judge interface {
	Judge(ctx context.Context, condition string, input JudgeInput) (bool, error)
}

// Playback is a cancellable in-flight speech synthesis operation.
type Playback interface {
	// Done yields the playback outcome when the prompt finishes or is
	// cancelled.
	Done() <-chan error
	// Cancel tears the playback down. Safe to call more than once.
	Cancel()
}

// Speaker synthesizes speech on a live call.
type Speaker interface {
	Speak(ctx context.Context, callID, text string) (Playback, error)
}

// Utterance is one transcription event. Partial events arrive while the
// caller is speaking; a Final event closes the turn.
type Utterance struct {
	Text  string
	Final bool
}

// Transcriber produces the live utterance stream for a call. The channel is
// closed when the caller's audio path ends (hangup).
type Transcriber interface {
	Stream(ctx context.Context, callID string) (<-chan Utterance, error)
}

// DTMF captures inbound key presses and emits outbound tones on a call.
type DTMF interface {
	Digits(ctx context.Context, callID string) (<-chan string, error)
	Emit(ctx context.Context, callID, digits string) error
}

// FunctionInvoker runs an external function by name. Args are already
// rendered against session variables.
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]string) (any, error)
}

// SMSSender sends a text message. Sends are not idempotent; the runtime
// never retries a failed send.
type SMSSender interface {
	Send(ctx context.Context, destination, message string) error
}

// Transferrer hands a live call off to an endpoint or a human agent queue.
// Both operations are terminal for the engine's session.
type Transferrer interface {
	TransferCall(ctx context.Context, callID, destination string) error
	TransferAgent(ctx context.Context, callID, queue string) error
}

// Extractor derives a variable value from the conversation according to a
// natural-language instruction.
type Extractor interface {
	Extract(ctx context.Context, instruction, utterance string, vars flow.Vars) (any, error)
}
