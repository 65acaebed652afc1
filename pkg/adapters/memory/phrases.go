package memory

import (
	"context"
	"sync"
)

// PhraseSource implements ports.PhraseSource in memory. Update swaps the
// phrase list and notifies watchers; in-flight sessions pick the new list
// up on their next playback without restarting.
type PhraseSource struct {
	mu       sync.RWMutex
	phrases  []string
	watchers []chan []string
}

// NewPhraseSource creates a source with an initial phrase list.
func NewPhraseSource(phrases ...string) *PhraseSource {
	return &PhraseSource{phrases: append([]string(nil), phrases...)}
}

// Snapshot returns a copy of the current phrase list.
func (s *PhraseSource) Snapshot(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.phrases...), nil
}

// Watch registers a watcher channel fed on every Update. The channel is
// dropped when ctx is cancelled.
func (s *PhraseSource) Watch(ctx context.Context) (<-chan []string, error) {
	ch := make(chan []string, 1)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
	}()
	return ch, nil
}

// Update replaces the phrase list and notifies watchers. Slow watchers miss
// intermediate snapshots rather than blocking the updater.
func (s *PhraseSource) Update(phrases []string) {
	snapshot := append([]string(nil), phrases...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.phrases = snapshot
	for _, w := range s.watchers {
		select {
		case w <- snapshot:
		default:
		}
	}
}
