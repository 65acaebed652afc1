package dialflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialflow/dialflow/internal/logging"
	"github.com/dialflow/dialflow/internal/metrics"
	"github.com/dialflow/dialflow/internal/runtime"
	"github.com/dialflow/dialflow/pkg/adapters/memory"
	"github.com/dialflow/dialflow/pkg/flow"
	"github.com/dialflow/dialflow/pkg/ports"
	"github.com/dialflow/dialflow/pkg/session"
)

// Engine is the high-level entry point. It wires the session manager, the
// call orchestrator, and the capability ports behind a small API: publish or
// point at graphs, start calls, feed input, hang up.
type Engine struct {
	source   ports.GraphSource
	sessions *session.Manager
	orch     *runtime.Orchestrator
	metrics  *metrics.Registry
	logger   *slog.Logger

	watchCtx    context.Context
	watchCancel context.CancelFunc

	mu    sync.Mutex
	calls map[string]*call
}

type call struct {
	cancel context.CancelFunc
	done   chan error
}

type config struct {
	store    ports.SessionStore
	source   ports.GraphSource
	phrases  ports.PhraseSource
	recorder ports.CallRecorder
	locker   ports.DistributedLocker
	caps     runtime.Capabilities
	policy   flow.FallbackPolicy
	hooks    flow.LifecycleHooks
	logger   *slog.Logger

	maxSessions    int
	sessionTimeout time.Duration
	digitTimeout   time.Duration
	judgeTimeout   time.Duration
	retryBackoff   time.Duration
}

// Option configures an Engine.
type Option func(*config)

// WithStore swaps the in-memory session store for another implementation.
func WithStore(s ports.SessionStore) Option {
	return func(c *config) { c.store = s }
}

// WithGraphSource sets where graphs are fetched from at call start.
func WithGraphSource(s ports.GraphSource) Option {
	return func(c *config) { c.source = s }
}

// WithPhraseSource sets the interruption phrase list provider.
func WithPhraseSource(s ports.PhraseSource) Option {
	return func(c *config) { c.phrases = s }
}

// WithRecorder sets the sink for final call records.
func WithRecorder(r ports.CallRecorder) Option {
	return func(c *config) { c.recorder = r }
}

// WithLocker enables distributed session locking across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(c *config) { c.locker = l }
}

// WithJudge sets the condition judgment capability.
func WithJudge(j ports.Judge) Option {
	return func(c *config) { c.caps.Judge = j }
}

// WithSpeaker sets the speech synthesis capability.
func WithSpeaker(s ports.Speaker) Option {
	return func(c *config) { c.caps.Speaker = s }
}

// WithTranscriber sets the live transcription capability.
func WithTranscriber(t ports.Transcriber) Option {
	return func(c *config) { c.caps.Transcriber = t }
}

// WithDTMF sets the DTMF capture/emit capability.
func WithDTMF(d ports.DTMF) Option {
	return func(c *config) { c.caps.DTMF = d }
}

// WithFunctions sets the external function invoker.
func WithFunctions(f ports.FunctionInvoker) Option {
	return func(c *config) { c.caps.Functions = f }
}

// WithSMS sets the SMS sending capability.
func WithSMS(s ports.SMSSender) Option {
	return func(c *config) { c.caps.SMS = s }
}

// WithTransferrer sets the call/agent transfer capability.
func WithTransferrer(t ports.Transferrer) Option {
	return func(c *config) { c.caps.Transfer = t }
}

// WithExtractor sets the variable extraction capability.
func WithExtractor(e ports.Extractor) Option {
	return func(c *config) { c.caps.Extractor = e }
}

// WithFallbackPolicy sets the mandatory fallback policy.
func WithFallbackPolicy(p flow.FallbackPolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithHooks registers lifecycle hooks alongside the built-in metrics ones.
func WithHooks(h flow.LifecycleHooks) Option {
	return func(c *config) { c.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMaxSessions bounds concurrent calls. Zero means unbounded.
func WithMaxSessions(n int) Option {
	return func(c *config) { c.maxSessions = n }
}

// WithSessionTimeout bounds the wait for caller input after a prompt.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *config) { c.sessionTimeout = d }
}

// WithDigitTimeout bounds press_digit capture when a node sets no timeout.
func WithDigitTimeout(d time.Duration) Option {
	return func(c *config) { c.digitTimeout = d }
}

// WithJudgeTimeout bounds one judgment call.
func WithJudgeTimeout(d time.Duration) Option {
	return func(c *config) { c.judgeTimeout = d }
}

// WithRetryBackoff sets the fixed delay before the single judgment retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *config) { c.retryBackoff = d }
}

// New assembles an engine. Defaults are in-memory throughout: memory session
// store, keyword judge, logging capabilities, and an input hub for
// transcription and DTMF, so a fresh engine is usable without any external
// service. Production hosts replace the pieces they care about via options.
func New(opts ...Option) (*Engine, error) {
	cfg := config{
		policy: flow.FallbackPolicy{Mode: flow.FallbackReprompt, MaxReprompts: 2},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.store == nil {
		cfg.store = memory.NewStore()
	}
	if cfg.source == nil {
		cfg.source = memory.NewGraphSource()
	}
	if cfg.phrases == nil {
		cfg.phrases = memory.NewPhraseSource()
	}
	if cfg.caps.Judge == nil {
		cfg.caps.Judge = memory.KeywordJudge{}
	}
	logCaps := memory.NewLogCapabilities(cfg.logger)
	hub := memory.NewInputHub()
	if cfg.caps.Speaker == nil {
		cfg.caps.Speaker = logCaps
	}
	if cfg.caps.Transcriber == nil {
		cfg.caps.Transcriber = hub
	}
	if cfg.caps.DTMF == nil {
		cfg.caps.DTMF = hub
	}
	if cfg.caps.Functions == nil {
		cfg.caps.Functions = logCaps
	}
	if cfg.caps.SMS == nil {
		cfg.caps.SMS = logCaps
	}
	if cfg.caps.Transfer == nil {
		cfg.caps.Transfer = logCaps
	}
	if cfg.caps.Extractor == nil {
		cfg.caps.Extractor = logCaps
	}

	mgrOpts := []session.Option{session.WithLogger(cfg.logger)}
	if cfg.maxSessions > 0 {
		mgrOpts = append(mgrOpts, session.WithCapacity(cfg.maxSessions))
	}
	if cfg.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(cfg.locker))
	}
	sessions := session.NewManager(cfg.store, mgrOpts...)

	reg := metrics.NewRegistry()
	orch, err := runtime.New(runtime.Config{
		Sessions:       sessions,
		Capabilities:   cfg.caps,
		Phrases:        cfg.phrases,
		Recorder:       cfg.recorder,
		Policy:         cfg.policy,
		Hooks:          flow.MergeHooks(reg.Hooks(), cfg.hooks),
		Logger:         cfg.logger,
		SessionTimeout: cfg.sessionTimeout,
		DigitTimeout:   cfg.digitTimeout,
		JudgeTimeout:   cfg.judgeTimeout,
		RetryBackoff:   cfg.retryBackoff,
	})
	if err != nil {
		return nil, err
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	if err := orch.WatchPhrases(watchCtx); err != nil {
		watchCancel()
		return nil, err
	}

	return &Engine{
		source:      cfg.source,
		sessions:    sessions,
		orch:        orch,
		metrics:     reg,
		logger:      cfg.logger,
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
		calls:       make(map[string]*call),
	}, nil
}

// Metrics exposes the engine's Prometheus registry.
func (e *Engine) Metrics() *metrics.Registry {
	return e.metrics
}

// Sessions exposes the session manager for read access and tests.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// StartCall fetches the named graph and begins executing it on a new
// goroutine. An empty callID gets a generated one; the id in use is
// returned. Starting a call id that is already live fails with
// flow.ErrDuplicateSession.
func (e *Engine) StartCall(ctx context.Context, callID, graphName string) (string, error) {
	if callID == "" {
		callID = uuid.NewString()
	}

	graph, err := e.source.Fetch(ctx, graphName)
	if err != nil {
		return "", fmt.Errorf("fetch graph %q: %w", graphName, err)
	}

	e.mu.Lock()
	if _, live := e.calls[callID]; live {
		e.mu.Unlock()
		e.metrics.RecordRejection("duplicate")
		return "", fmt.Errorf("call %s: %w", callID, flow.ErrDuplicateSession)
	}
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call{cancel: cancel, done: make(chan error, 1)}
	e.calls[callID] = c
	e.mu.Unlock()

	e.metrics.ActiveSessions.Inc()
	go func() {
		err := e.orch.Run(callCtx, callID, graph)
		if err != nil {
			switch {
			case errors.Is(err, flow.ErrDuplicateSession):
				e.metrics.RecordRejection("duplicate")
			case errors.Is(err, flow.ErrCapacity):
				e.metrics.RecordRejection("capacity")
			default:
				e.logger.Error("call failed", "call_id", callID, "err", err)
			}
		}
		e.metrics.ActiveSessions.Dec()
		c.done <- err
		cancel()
		e.mu.Lock()
		delete(e.calls, callID)
		e.mu.Unlock()
	}()
	return callID, nil
}

// Hangup cancels a live call. The orchestrator observes the cancellation,
// records the session with a hangup reason, and tears it down.
func (e *Engine) Hangup(callID string) error {
	e.mu.Lock()
	c, ok := e.calls[callID]
	e.mu.Unlock()
	if !ok {
		return flow.ErrSessionNotFound
	}
	c.cancel()
	return nil
}

// Wait blocks until the call finishes and returns its error.
func (e *Engine) Wait(ctx context.Context, callID string) error {
	e.mu.Lock()
	c, ok := e.calls[callID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case err := <-c.done:
		c.done <- err
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Graph fetches a published graph by name from the engine's graph source.
func (e *Engine) Graph(ctx context.Context, name string) (*flow.Graph, error) {
	return e.source.Fetch(ctx, name)
}

// Session returns a snapshot of a live session.
func (e *Engine) Session(ctx context.Context, callID string) (*flow.Session, error) {
	return e.sessions.Get(ctx, callID)
}

// ActiveCalls reports the number of live sessions.
func (e *Engine) ActiveCalls() int {
	return e.sessions.ActiveCount()
}

// Close hangs up every live call and stops the phrase watcher.
func (e *Engine) Close() {
	e.watchCancel()
	e.mu.Lock()
	for _, c := range e.calls {
		c.cancel()
	}
	e.mu.Unlock()
}
