package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dialflow/dialflow/pkg/ports"
)

// InputHub implements ports.Transcriber and ports.DTMF for hosts that
// push caller input over an API (HTTP, websocket bridge) instead of wiring a
// live transcription stream. Each call gets its own channels, created lazily
// and torn down when the call's stream context ends.
type InputHub struct {
	mu      sync.Mutex
	calls   map[string]*callIO
	emitted []string
}

type callIO struct {
	utterances chan ports.Utterance
	digits     chan string
}

// NewInputHub creates an empty hub.
func NewInputHub() *InputHub {
	return &InputHub{calls: make(map[string]*callIO)}
}

func (h *InputHub) io(callID string) *callIO {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.calls[callID]
	if !ok {
		c = &callIO{
			utterances: make(chan ports.Utterance, 16),
			digits:     make(chan string, 4),
		}
		h.calls[callID] = c
	}
	return c
}

// Stream returns the utterance channel for a call. The channel closes when
// ctx is cancelled.
func (h *InputHub) Stream(ctx context.Context, callID string) (<-chan ports.Utterance, error) {
	c := h.io(callID)
	out := make(chan ports.Utterance)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				h.drop(callID)
				return
			case u := <-c.utterances:
				select {
				case out <- u:
				case <-ctx.Done():
					h.drop(callID)
					return
				}
			}
		}
	}()
	return out, nil
}

// Digits returns the DTMF channel for a call.
func (h *InputHub) Digits(ctx context.Context, callID string) (<-chan string, error) {
	c := h.io(callID)
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-c.digits:
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Emit records an outbound tone sequence. The hub has no far end to play it
// to, so emitted digits are retained for inspection.
func (h *InputHub) Emit(_ context.Context, callID, digits string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emitted = append(h.emitted, callID+":"+digits)
	return nil
}

// Emitted returns the tone sequences sent so far, as "callID:digits" pairs.
func (h *InputHub) Emitted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.emitted))
	copy(out, h.emitted)
	return out
}

func (h *InputHub) drop(callID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.calls, callID)
}

// Push injects an utterance for a call. Partial utterances feed the
// interruption monitor; final ones close a listening turn.
func (h *InputHub) Push(callID, text string, final bool) error {
	c := h.io(callID)
	select {
	case c.utterances <- ports.Utterance{Text: text, Final: final}:
		return nil
	default:
		return fmt.Errorf("input buffer full for call %s", callID)
	}
}

// PushDigit injects a DTMF key press for a call.
func (h *InputHub) PushDigit(callID, digit string) error {
	c := h.io(callID)
	select {
	case c.digits <- digit:
		return nil
	default:
		return fmt.Errorf("digit buffer full for call %s", callID)
	}
}
