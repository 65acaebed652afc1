package runtime

import (
	"context"
	"strings"

	"github.com/dialflow/dialflow/pkg/ports"
)

// phraseMatcher matches partial transcripts against the interruption phrase
// list, case-insensitively. Phrases are lowered once at construction; the
// matcher itself is immutable, so swapping in an updated list is a pointer
// swap for the next playback.
type phraseMatcher struct {
	phrases []string
}

func newPhraseMatcher(phrases []string) *phraseMatcher {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &phraseMatcher{phrases: lowered}
}

func (m *phraseMatcher) empty() bool {
	return len(m.phrases) == 0
}

// Match reports the first phrase contained in text.
func (m *phraseMatcher) Match(text string) (string, bool) {
	if len(m.phrases) == 0 {
		return "", false
	}
	haystack := strings.ToLower(text)
	for _, p := range m.phrases {
		if strings.Contains(haystack, p) {
			return p, true
		}
	}
	return "", false
}

// interruption is delivered when a phrase matched during playback.
type interruption struct {
	Phrase    string
	Utterance string
}

// watchInterrupt runs the interruption monitor for one playback. It
// consumes transcripts until a phrase matches, ctx is cancelled (playback
// finished), or the stream closes. Utterances that do not match are handed
// back on the second channel so the post-playback listener still sees a
// caller who answered over the prompt. The monitor never touches session
// state: it only reports the match, and the orchestrator does the
// cancelling and the state writes.
func watchInterrupt(ctx context.Context, utterances <-chan ports.Utterance, matcher *phraseMatcher) (<-chan interruption, <-chan ports.Utterance) {
	out := make(chan interruption, 1)
	passed := make(chan ports.Utterance, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-utterances:
				if !ok {
					return
				}
				if phrase, matched := matcher.Match(u.Text); matched {
					out <- interruption{Phrase: phrase, Utterance: u.Text}
					return
				}
				select {
				case passed <- u:
				default:
				}
			}
		}
	}()
	return out, passed
}
