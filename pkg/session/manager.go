package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dialflow/dialflow/internal/logging"
	"github.com/dialflow/dialflow/pkg/flow"
	"github.com/dialflow/dialflow/pkg/ports"
)

// lockEntry holds the per-call mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes all mutation of a given call's session. Lock entries
// are reference counted so the map does not grow with dead calls. An
// optional distributed locker extends the guarantee across replicas.
type Manager struct {
	store ports.SessionStore

	mu     sync.Mutex
	locks  map[string]*lockEntry
	active map[string]struct{}

	capacity int
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithCapacity bounds the number of simultaneously active sessions. Zero
// means unbounded. Creates beyond the bound fail with flow.ErrCapacity.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		m.capacity = n
	}
}

// WithLogger configures a logger for deferred errors.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		active:  make(map[string]struct{}),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and bumps its reference count. The
// caller must lock entry.mu and pair with release(callID).
func (m *Manager) acquire(callID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		entry = &lockEntry{}
		m.locks[callID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, callID)
	}
}

// WithLock runs fn while holding the call's lock (and the distributed lock,
// when configured).
func (m *Manager) WithLock(ctx context.Context, callID string, fn func(context.Context) error) error {
	entry := m.acquire(callID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(callID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, callID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"call_id", callID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Create starts a session for callID at the graph's start node. It fails
// with flow.ErrDuplicateSession if the call id is already active and with
// flow.ErrCapacity once the active-session bound is reached.
func (m *Manager) Create(ctx context.Context, callID string, graph *flow.Graph) (*flow.Session, error) {
	if err := m.reserve(callID); err != nil {
		return nil, err
	}

	var sess *flow.Session
	err := m.WithLock(ctx, callID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, callID); err == nil {
			return fmt.Errorf("%w: %s", flow.ErrDuplicateSession, callID)
		} else if !errors.Is(err, flow.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		sess = flow.NewSession(callID, graph)
		if err := m.store.Save(ctx, sess); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	if err != nil {
		m.unreserve(callID)
		return nil, err
	}
	return sess, nil
}

// reserve claims an active slot for callID under the capacity bound.
func (m *Manager) reserve(callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[callID]; exists {
		return fmt.Errorf("%w: %s", flow.ErrDuplicateSession, callID)
	}
	if m.capacity > 0 && len(m.active) >= m.capacity {
		return flow.ErrCapacity
	}
	m.active[callID] = struct{}{}
	return nil
}

func (m *Manager) unreserve(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, callID)
}

// Get returns a snapshot of the session for callID.
func (m *Manager) Get(ctx context.Context, callID string) (*flow.Session, error) {
	var sess *flow.Session
	err := m.WithLock(ctx, callID, func(ctx context.Context) error {
		var err error
		sess, err = m.store.Load(ctx, callID)
		return err
	})
	return sess, err
}

// SetVariable writes one session variable. Last write wins.
func (m *Manager) SetVariable(ctx context.Context, callID, name string, value any) error {
	return m.Update(ctx, callID, func(s *flow.Session) error {
		s.Variables.Set(name, value)
		return nil
	})
}

// Advance commits a node transition: appends to history, moves the current
// node, and increments the turn counter, atomically under the call's lock.
func (m *Manager) Advance(ctx context.Context, callID, nodeID string) (*flow.Session, error) {
	var out *flow.Session
	err := m.Update(ctx, callID, func(s *flow.Session) error {
		if s.Terminal {
			return fmt.Errorf("session %s is terminal, cannot advance", callID)
		}
		s.History = append(s.History, nodeID)
		s.CurrentNodeID = nodeID
		s.Turn++
		out = s.Clone()
		return nil
	})
	return out, err
}

// Update applies fn to the session and saves it, all under the call's lock.
// Used by the orchestrator for writes that have no dedicated operation.
func (m *Manager) Update(ctx context.Context, callID string, fn func(*flow.Session) error) error {
	return m.WithLock(ctx, callID, func(ctx context.Context) error {
		sess, err := m.store.Load(ctx, callID)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		return m.store.Save(ctx, sess)
	})
}

// Destroy removes the session and frees its active slot.
func (m *Manager) Destroy(ctx context.Context, callID string) error {
	err := m.WithLock(ctx, callID, func(ctx context.Context) error {
		return m.store.Delete(ctx, callID)
	})
	m.unreserve(callID)
	return err
}

// ActiveCount reports the number of reserved sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
