package ports

import (
	"context"
	"time"

	"github.com/dialflow/dialflow/pkg/flow"
)

// SessionStore persists per-call session state. Implementations must return
// flow.ErrSessionNotFound for absent call ids and must isolate callers from
// internal state (clone on read/write). Serializing mutation is the session
// Manager's job, not the store's.
type SessionStore interface {
	Save(ctx context.Context, sess *flow.Session) error
	Load(ctx context.Context, callID string) (*flow.Session, error)
	Delete(ctx context.Context, callID string) error
	List(ctx context.Context) ([]string, error)
}

// GraphSource supplies published, versioned graph definitions. A graph is
// fetched exactly once per call start and never re-fetched mid-call.
type GraphSource interface {
	Fetch(ctx context.Context, name string) (*flow.Graph, error)
}

// PhraseSource supplies the interruption phrase list. Snapshot must be cheap
// and safe under concurrent readers; Watch delivers replacement snapshots
// without requiring in-flight sessions to restart.
type PhraseSource interface {
	Snapshot(ctx context.Context) ([]string, error)
	Watch(ctx context.Context) (<-chan []string, error)
}

// CallRecorder receives the final session snapshot at call end. The engine
// holds no durable storage of its own.
type CallRecorder interface {
	Record(ctx context.Context, rec flow.CallRecord) error
}

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session access across replicas. Lock blocks
// until acquired, ctx is cancelled, or the attempt fails.
type DistributedLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
