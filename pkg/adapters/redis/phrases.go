package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// PhraseSource implements ports.PhraseSource over a Redis key holding a
// JSON array of phrases. Operators edit the key; Watch polls it and pushes
// new snapshots to in-flight sessions without restarting them.
type PhraseSource struct {
	client   *backend.Client
	key      string
	interval time.Duration
}

// PhraseOption configures the phrase source.
type PhraseOption func(*PhraseSource)

// WithPollInterval overrides the watch poll interval (default 5s).
func WithPollInterval(d time.Duration) PhraseOption {
	return func(s *PhraseSource) {
		s.interval = d
	}
}

// NewPhraseSource creates a phrase source reading the given key.
func NewPhraseSource(client *backend.Client, key string, opts ...PhraseOption) *PhraseSource {
	s := &PhraseSource{
		client:   client,
		key:      key,
		interval: 5 * time.Second,
	}
	if s.key == "" {
		s.key = "dialflow:interrupt_phrases"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot reads the current phrase list. A missing key is an empty list,
// not an error.
func (s *PhraseSource) Snapshot(ctx context.Context) ([]string, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read phrase list: %w", err)
	}

	var phrases []string
	if err := json.Unmarshal(data, &phrases); err != nil {
		return nil, fmt.Errorf("failed to parse phrase list: %w", err)
	}
	return phrases, nil
}

// Watch polls the key and delivers a snapshot whenever its content changes.
func (s *PhraseSource) Watch(ctx context.Context) (<-chan []string, error) {
	current, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []string, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		last := current
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				next, err := s.Snapshot(ctx)
				if err != nil {
					continue // transient; keep the last good list
				}
				if slices.Equal(next, last) {
					continue
				}
				last = next
				select {
				case out <- next:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Update writes the phrase list, for tests and provisioning tools.
func (s *PhraseSource) Update(ctx context.Context, phrases []string) error {
	data, err := json.Marshal(phrases)
	if err != nil {
		return fmt.Errorf("failed to marshal phrase list: %w", err)
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}
