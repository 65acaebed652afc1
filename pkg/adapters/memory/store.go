// Package memory provides in-process adapters: session store, graph source,
// phrase source, an input hub that implements the transcription and DTMF
// ports for hosts that push caller input over an API, and log-backed
// capability stubs for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/dialflow/dialflow/pkg/flow"
)

// Store implements ports.SessionStore in memory. Sessions are cloned on
// both save and load so callers can never mutate stored state by pointer.
type Store struct {
	mu   sync.RWMutex
	data map[string]*flow.Session
}

// NewStore creates an empty in-memory session store.
func NewStore() *Store {
	return &Store{data: make(map[string]*flow.Session)}
}

// Save persists a clone of the session.
func (s *Store) Save(ctx context.Context, sess *flow.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.CallID] = sess.Clone()
	return nil
}

// Load returns a clone of the stored session.
func (s *Store) Load(ctx context.Context, callID string) (*flow.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[callID]
	if !ok {
		return nil, flow.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, callID)
	return nil
}

// List returns active call ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
