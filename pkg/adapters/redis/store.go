// Package redis provides Redis-backed adapters: session store, distributed
// locker, call recorder, and a polled interruption phrase source.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/dialflow/dialflow/pkg/flow"
)

// Store implements ports.SessionStore on Redis. Sessions are stored as JSON
// under a keyspace prefix, with a ZSET index scored by expiry so List can
// lazily drop expired entries.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL sets an expiration for sessions. A crashed call's state goes away
// on its own instead of leaking.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "dialflow:session:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(callID string) string {
	return s.prefix + callID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// farFuture scores index entries for sessions without TTL (2100-01-01).
const farFuture = 4102444800

// Save persists the session JSON and its index entry in one pipeline.
func (s *Store) Save(ctx context.Context, sess *flow.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sess.CallID), data, s.ttl)

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sess.CallID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves and unmarshals a session.
func (s *Store) Load(ctx context.Context, callID string) (*flow.Session, error) {
	data, err := s.client.Get(ctx, s.key(callID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, flow.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess flow.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes the session and its index entry.
func (s *Store) Delete(ctx context.Context, callID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(callID))
	pipe.ZRem(ctx, s.indexKey(), callID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns live call ids, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune session index: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}
