package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialflow/dialflow/internal/logging"
	"github.com/dialflow/dialflow/internal/runtime"
	"github.com/dialflow/dialflow/pkg/adapters/memory"
	"github.com/dialflow/dialflow/pkg/flow"
	"github.com/dialflow/dialflow/pkg/ports"
	"github.com/dialflow/dialflow/pkg/session"
)

type fakePlayback struct {
	done      chan error
	once      sync.Once
	cancelled bool
}

func (p *fakePlayback) Done() <-chan error { return p.done }

func (p *fakePlayback) Cancel() {
	p.once.Do(func() {
		p.cancelled = true
		p.done <- context.Canceled
	})
}

// fakeSpeaker records prompts. With block set, playbacks stay open until
// cancelled; otherwise they complete instantly.
type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	block   bool
	started chan *fakePlayback
}

func (s *fakeSpeaker) Speak(_ context.Context, _ string, text string) (ports.Playback, error) {
	pb := &fakePlayback{done: make(chan error, 1)}
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	if !s.block {
		pb.done <- nil
	}
	if s.started != nil {
		s.started <- pb
	}
	return pb, nil
}

func (s *fakeSpeaker) prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type fakeStream struct {
	ch chan ports.Utterance
}

func (f *fakeStream) Stream(context.Context, string) (<-chan ports.Utterance, error) {
	return f.ch, nil
}

type fakeDTMF struct {
	mu      sync.Mutex
	digits  chan string
	emitted []string
}

func (d *fakeDTMF) Digits(context.Context, string) (<-chan string, error) {
	return d.digits, nil
}

func (d *fakeDTMF) Emit(_ context.Context, _, digits string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emitted = append(d.emitted, digits)
	return nil
}

type fakeInvoker struct {
	mu     sync.Mutex
	result any
	err    error
	calls  []map[string]string
}

func (f *fakeInvoker) Invoke(_ context.Context, _ string, args map[string]string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	return f.result, f.err
}

type fakeSMS struct {
	mu    sync.Mutex
	err   error
	sends []string
}

func (f *fakeSMS) Send(_ context.Context, destination, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, destination+"|"+message)
	return f.err
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type fakeTransfer struct {
	mu           sync.Mutex
	destinations []string
	queues       []string
}

func (f *fakeTransfer) TransferCall(_ context.Context, _, destination string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destinations = append(f.destinations, destination)
	return nil
}

func (f *fakeTransfer) TransferAgent(_ context.Context, _, queue string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, queue)
	return nil
}

type fakeExtractor struct {
	value any
	err   error
}

func (f *fakeExtractor) Extract(context.Context, string, string, flow.Vars) (any, error) {
	return f.value, f.err
}

type fixture struct {
	orch     *runtime.Orchestrator
	sessions *session.Manager
	speaker  *fakeSpeaker
	stream   chan ports.Utterance
	dtmf     *fakeDTMF
	invoker  *fakeInvoker
	sms      *fakeSMS
	transfer *fakeTransfer
	recorder *memory.Recorder
}

type fixtureOpts struct {
	judge     ports.Judge
	extractor *fakeExtractor
	policy    flow.FallbackPolicy
	phrases   []string
	timeout   time.Duration
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	f := &fixture{
		sessions: session.NewManager(memory.NewStore()),
		speaker:  &fakeSpeaker{},
		stream:   make(chan ports.Utterance, 16),
		dtmf:     &fakeDTMF{digits: make(chan string, 4)},
		invoker:  &fakeInvoker{},
		sms:      &fakeSMS{},
		transfer: &fakeTransfer{},
		recorder: memory.NewRecorder(),
	}
	if opts.judge == nil {
		opts.judge = &scriptedJudge{}
	}
	if opts.extractor == nil {
		opts.extractor = &fakeExtractor{}
	}
	if opts.policy.Mode == "" {
		opts.policy = flow.FallbackPolicy{Mode: flow.FallbackReprompt, MaxReprompts: 1}
	}
	if opts.timeout == 0 {
		opts.timeout = time.Second
	}

	var phrases ports.PhraseSource
	if len(opts.phrases) > 0 {
		phrases = memory.NewPhraseSource(opts.phrases...)
	}

	orch, err := runtime.New(runtime.Config{
		Sessions: f.sessions,
		Capabilities: runtime.Capabilities{
			Judge:       opts.judge,
			Speaker:     f.speaker,
			Transcriber: &fakeStream{ch: f.stream},
			DTMF:        f.dtmf,
			Functions:   f.invoker,
			SMS:         f.sms,
			Transfer:    f.transfer,
			Extractor:   opts.extractor,
		},
		Phrases:        phrases,
		Recorder:       f.recorder,
		Policy:         opts.policy,
		Logger:         logging.NewNop(),
		SessionTimeout: opts.timeout,
		DigitTimeout:   50 * time.Millisecond,
		JudgeTimeout:   time.Second,
		RetryBackoff:   time.Millisecond,
	})
	require.NoError(t, err)
	f.orch = orch

	if phrases != nil {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		require.NoError(t, orch.WatchPhrases(ctx))
	}
	return f
}

func (f *fixture) lastRecord(t *testing.T) flow.CallRecord {
	t.Helper()
	records := f.recorder.Records()
	require.NotEmpty(t, records)
	return records[len(records)-1]
}

func graphOf(start string, nodes ...*flow.Node) *flow.Graph {
	return flow.NewGraph("test", "1", start, nodes)
}

func TestRunConversationToEnding(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{"caller wants to finish": true}}
	f := newFixture(t, fixtureOpts{judge: judge})

	graph := graphOf("greet",
		&flow.Node{
			ID: "greet", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "How can I help?"},
			Transitions:  []flow.Transition{{Condition: "caller wants to finish", Target: "bye"}},
		},
		&flow.Node{
			ID: "bye", Type: flow.NodeEnding,
			Ending: &flow.EndingData{Prompt: "Goodbye."},
		},
	)

	f.stream <- ports.Utterance{Text: "that is all, thanks", Final: true}
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonEnding, rec.Reason)
	assert.Equal(t, []string{"greet", "bye"}, rec.History)
	assert.Equal(t, 1, rec.Turns)
	assert.Equal(t, []string{"How can I help?", "Goodbye."}, f.speaker.prompts())

	_, err := f.sessions.Get(context.Background(), "call-1")
	assert.ErrorIs(t, err, flow.ErrSessionNotFound)
}

func TestRunLogicSplitOnVariables(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{
		"anything at all":       true,
		"balance is positive":   true,
		"balance is overdrawn":  false,
	}}
	f := newFixture(t, fixtureOpts{judge: judge})
	f.invoker.result = 250

	graph := graphOf("greet",
		&flow.Node{
			ID: "greet", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Checking your account"},
			Transitions:  []flow.Transition{{Condition: "anything at all", Target: "lookup"}},
		},
		&flow.Node{
			ID: "lookup", Type: flow.NodeFunction,
			Function:    &flow.FunctionData{Name: "fetch_balance", Args: map[string]string{"account": "42"}, ResultVar: "balance"},
			Transitions: []flow.Transition{{Condition: "", Target: "split"}},
		},
		&flow.Node{
			ID: "split", Type: flow.NodeLogicSplit,
			Transitions: []flow.Transition{
				{Condition: "balance is overdrawn", Target: "bye"},
				{Condition: "balance is positive", Target: "bye"},
			},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	f.stream <- ports.Utterance{Text: "balance please", Final: true}
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonEnding, rec.Reason)
	assert.Equal(t, []string{"greet", "lookup", "split", "bye"}, rec.History)
	assert.Equal(t, 250, rec.Variables["balance"])
	require.Len(t, f.invoker.calls, 1)
	assert.Equal(t, map[string]string{"account": "42"}, f.invoker.calls[0])
}

func TestRunLogicSplitUnsatisfiedEndsViaPolicy(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{"balance is overdrawn": false}}
	f := newFixture(t, fixtureOpts{judge: judge})
	f.invoker.result = 250

	// A reprompt policy cannot repeat a logic_split, and with no fallback
	// target configured the call ends instead of reaching an undefined node.
	graph := graphOf("lookup",
		&flow.Node{
			ID: "lookup", Type: flow.NodeFunction,
			Function:    &flow.FunctionData{Name: "fetch_balance", ResultVar: "balance"},
			Transitions: []flow.Transition{{Condition: "", Target: "split"}},
		},
		&flow.Node{
			ID: "split", Type: flow.NodeLogicSplit,
			Transitions: []flow.Transition{{Condition: "balance is overdrawn", Target: "bye"}},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonFallback, rec.Reason)
	assert.Equal(t, []string{"lookup", "split"}, rec.History)
}

func TestRunExtractAndTemplating(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{"caller gave a city": true}}
	f := newFixture(t, fixtureOpts{
		judge:     judge,
		extractor: &fakeExtractor{value: "Lisbon"},
	})

	graph := graphOf("ask",
		&flow.Node{
			ID: "ask", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Which city?"},
			Transitions:  []flow.Transition{{Condition: "caller gave a city", Target: "capture"}},
		},
		&flow.Node{
			ID: "capture", Type: flow.NodeExtractVariable,
			Extract:     &flow.ExtractVariableData{Name: "city", Instruction: "the city the caller named"},
			Transitions: []flow.Transition{{Condition: "", Target: "bye"}},
		},
		&flow.Node{
			ID: "bye", Type: flow.NodeEnding,
			Ending: &flow.EndingData{Prompt: "Goodbye, see you in {{.city}}."},
		},
	)

	f.stream <- ports.Utterance{Text: "Lisbon please", Final: true}
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, "Lisbon", rec.Variables["city"])
	prompts := f.speaker.prompts()
	require.Len(t, prompts, 2)
	assert.Equal(t, "Goodbye, see you in Lisbon.", prompts[1])
}

func TestRunPressDigitRouting(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	graph := graphOf("menu",
		&flow.Node{
			ID: "menu", Type: flow.NodePressDigit,
			PressDigit: &flow.PressDigitData{
				Prompt: "Press 1 for sales",
				Rules:  map[string]string{"1": "sales"},
			},
		},
		&flow.Node{
			ID: "sales", Type: flow.NodeAgentTransfer,
			AgentTransfer: &flow.AgentTransferData{Queue: "sales"},
		},
	)

	f.dtmf.digits <- "1"
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonAgentTransfer, rec.Reason)
	assert.Equal(t, []string{"menu", "sales"}, rec.History)
	assert.Equal(t, []string{"sales"}, f.transfer.queues)
}

func TestRunPressDigitTimeoutExhaustsFallback(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		policy: flow.FallbackPolicy{Mode: flow.FallbackReprompt, MaxReprompts: 1},
	})

	graph := graphOf("menu",
		&flow.Node{
			ID: "menu", Type: flow.NodePressDigit,
			PressDigit: &flow.PressDigitData{
				Prompt:  "Press 1",
				Rules:   map[string]string{"1": "bye"},
				Timeout: 20 * time.Millisecond,
			},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonFallback, rec.Reason)
	// Initial prompt plus exactly one reprompt.
	assert.Len(t, f.speaker.prompts(), 2)
	assert.Equal(t, 0, rec.Turns)
}

func TestRunPressDigitEmit(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	graph := graphOf("dial",
		&flow.Node{
			ID: "dial", Type: flow.NodePressDigit,
			PressDigit:  &flow.PressDigitData{Emit: "42#"},
			Transitions: []flow.Transition{{Condition: "", Target: "bye"}},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))
	assert.Equal(t, []string{"42#"}, f.dtmf.emitted)
	assert.Equal(t, flow.EndReasonEnding, f.lastRecord(t).Reason)
}

func TestRunInterruptionAdvancesExactlyOnce(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{"caller wants to stop": true}}
	f := newFixture(t, fixtureOpts{judge: judge, phrases: []string{"stop"}})
	f.speaker.block = true
	f.speaker.started = make(chan *fakePlayback, 4)

	graph := graphOf("pitch",
		&flow.Node{
			ID: "pitch", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Let me tell you about our offers..."},
			Transitions:  []flow.Transition{{Condition: "caller wants to stop", Target: "bye"}},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	done := make(chan error, 1)
	go func() {
		done <- f.orch.Run(context.Background(), "call-1", graph)
	}()

	var pb *fakePlayback
	select {
	case pb = <-f.speaker.started:
	case <-time.After(time.Second):
		t.Fatal("prompt never started")
	}

	// Partial transcript while the prompt is still playing.
	f.stream <- ports.Utterance{Text: "ok stop please", Final: false}

	require.NoError(t, <-done)
	assert.True(t, pb.cancelled, "playback should have been cancelled by the barge-in")

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonEnding, rec.Reason)
	assert.Equal(t, []string{"pitch", "bye"}, rec.History)
	assert.Equal(t, 1, rec.Turns)
}

func TestRunFinalDuringPlaybackIsKept(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{"caller asks for support": true}}
	f := newFixture(t, fixtureOpts{judge: judge, phrases: []string{"stop"}})
	f.speaker.block = true
	f.speaker.started = make(chan *fakePlayback, 4)

	graph := graphOf("greet",
		&flow.Node{
			ID: "greet", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Welcome to support, how can I help?"},
			Transitions:  []flow.Transition{{Condition: "caller asks for support", Target: "bye"}},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	done := make(chan error, 1)
	go func() {
		done <- f.orch.Run(context.Background(), "call-1", graph)
	}()

	var pb *fakePlayback
	select {
	case pb = <-f.speaker.started:
	case <-time.After(time.Second):
		t.Fatal("prompt never started")
	}

	// The caller answers over the prompt without hitting an interruption
	// phrase. The monitor consumes the utterance; it must survive for the
	// listener once playback runs out.
	f.stream <- ports.Utterance{Text: "I need help with my order", Final: true}
	require.Eventually(t, func() bool { return len(f.stream) == 0 }, time.Second, time.Millisecond)

	pb.done <- nil

	require.NoError(t, <-done)
	assert.False(t, pb.cancelled, "a non-matching answer must not cancel playback")

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonEnding, rec.Reason)
	assert.Equal(t, []string{"greet", "bye"}, rec.History)
	assert.Equal(t, 1, rec.Turns)
}

func TestRunRepromptThenRouteOnNoTransition(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{"caller answered clearly": false}}
	f := newFixture(t, fixtureOpts{
		judge:  judge,
		policy: flow.FallbackPolicy{Mode: flow.FallbackReprompt, MaxReprompts: 1, Target: "operator"},
	})

	graph := graphOf("ask",
		&flow.Node{
			ID: "ask", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Say yes or no"},
			Transitions:  []flow.Transition{{Condition: "caller answered clearly", Target: "bye"}},
		},
		&flow.Node{
			ID: "operator", Type: flow.NodeAgentTransfer,
			AgentTransfer: &flow.AgentTransferData{Queue: "humans"},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	f.stream <- ports.Utterance{Text: "mumble", Final: true}
	f.stream <- ports.Utterance{Text: "mumble again", Final: true}
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonAgentTransfer, rec.Reason)
	assert.Equal(t, []string{"ask", "operator"}, rec.History)
	// The prompt played twice before routing to the operator.
	assert.Len(t, f.speaker.prompts(), 2)
}

func TestRunJudgeUnavailableUsesFallback(t *testing.T) {
	judge := &scriptedJudge{failures: map[string]int{"unjudgeable": 10}}
	f := newFixture(t, fixtureOpts{
		judge:  judge,
		policy: flow.FallbackPolicy{Mode: flow.FallbackRoute, Target: "bye"},
	})

	graph := graphOf("ask",
		&flow.Node{
			ID: "ask", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Hello?"},
			Transitions:  []flow.Transition{{Condition: "unjudgeable", Target: "other"}},
		},
		&flow.Node{ID: "other", Type: flow.NodeEnding},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	f.stream <- ports.Utterance{Text: "hi", Final: true}
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	rec := f.lastRecord(t)
	assert.Equal(t, []string{"ask", "bye"}, rec.History)
	assert.Equal(t, flow.EndReasonEnding, rec.Reason)
}

func TestRunSessionTimeout(t *testing.T) {
	f := newFixture(t, fixtureOpts{timeout: 30 * time.Millisecond})

	graph := graphOf("ask",
		&flow.Node{
			ID: "ask", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Anyone there?"},
			Transitions:  []flow.Transition{{Condition: "x", Target: "bye"}},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))
	assert.Equal(t, flow.EndReasonTimeout, f.lastRecord(t).Reason)
}

func TestRunHangupMidListen(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	graph := graphOf("ask",
		&flow.Node{
			ID: "ask", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Hello?"},
			Transitions:  []flow.Transition{{Condition: "x", Target: "bye"}},
		},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	close(f.stream)
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))
	assert.Equal(t, flow.EndReasonHangup, f.lastRecord(t).Reason)
}

func TestRunSMSFailureNotRetried(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		policy: flow.FallbackPolicy{Mode: flow.FallbackRoute, Target: "bye"},
	})
	f.sms.err = errors.New("carrier rejected")

	graph := graphOf("notify",
		&flow.Node{
			ID: "notify", Type: flow.NodeSMS,
			SMS:         &flow.SMSData{Destination: "+15550100", Message: "Your order shipped"},
			Transitions: []flow.Transition{{Condition: "", Target: "other"}},
		},
		&flow.Node{ID: "other", Type: flow.NodeEnding},
		&flow.Node{ID: "bye", Type: flow.NodeEnding},
	)

	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	assert.Equal(t, 1, f.sms.count())
	assert.Equal(t, []string{"notify", "bye"}, f.lastRecord(t).History)
}

func TestRunCallTransferTerminal(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	graph := graphOf("handoff",
		&flow.Node{
			ID: "handoff", Type: flow.NodeCallTransfer,
			CallTransfer: &flow.CallTransferData{Destination: "+15550123"},
		},
	)

	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))

	assert.Equal(t, []string{"+15550123"}, f.transfer.destinations)
	rec := f.lastRecord(t)
	assert.Equal(t, flow.EndReasonCallTransfer, rec.Reason)

	_, err := f.sessions.Get(context.Background(), "call-1")
	assert.ErrorIs(t, err, flow.ErrSessionNotFound)
}

func TestRunNodeLevelFallbackWins(t *testing.T) {
	judge := &scriptedJudge{answers: map[string]bool{"never true": false}}
	f := newFixture(t, fixtureOpts{
		judge:  judge,
		policy: flow.FallbackPolicy{Mode: flow.FallbackRoute, Target: "global"},
	})

	graph := graphOf("ask",
		&flow.Node{
			ID: "ask", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Hm?"},
			Transitions:  []flow.Transition{{Condition: "never true", Target: "other"}},
			Fallback:     "local",
		},
		&flow.Node{ID: "other", Type: flow.NodeEnding},
		&flow.Node{ID: "global", Type: flow.NodeEnding},
		&flow.Node{ID: "local", Type: flow.NodeEnding},
	)

	f.stream <- ports.Utterance{Text: "hi", Final: true}
	require.NoError(t, f.orch.Run(context.Background(), "call-1", graph))
	assert.Equal(t, []string{"ask", "local"}, f.lastRecord(t).History)
}

func TestRunRejectsPolicyMissingTarget(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		policy: flow.FallbackPolicy{Mode: flow.FallbackRoute, Target: "missing"},
	})

	graph := graphOf("bye", &flow.Node{ID: "bye", Type: flow.NodeEnding})

	err := f.orch.Run(context.Background(), "call-1", graph)
	require.Error(t, err)
	assert.Empty(t, f.recorder.Records())
}
