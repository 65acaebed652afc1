package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dialflow/dialflow/internal/logging"
	"github.com/dialflow/dialflow/pkg/flow"
	"github.com/dialflow/dialflow/pkg/ports"
	"github.com/dialflow/dialflow/pkg/session"
)

const (
	defaultSessionTimeout = 30 * time.Second
	defaultDigitTimeout   = 10 * time.Second
	defaultJudgeTimeout   = 5 * time.Second
	defaultRetryBackoff   = 500 * time.Millisecond
)

// Capabilities bundles the external ports a call needs. Judge, Speaker and
// Transcriber are mandatory; the rest are required only when the graph
// contains nodes that use them.
type Capabilities struct {
	Judge       ports.Judge
	Speaker     ports.Speaker
	Transcriber ports.Transcriber
	DTMF        ports.DTMF
	Functions   ports.FunctionInvoker
	SMS         ports.SMSSender
	Transfer    ports.Transferrer
	Extractor   ports.Extractor
}

// Config assembles an Orchestrator.
type Config struct {
	Sessions     *session.Manager
	Capabilities Capabilities

	// Phrases feeds the interruption monitor. Nil disables barge-in.
	Phrases ports.PhraseSource
	// Recorder receives the final snapshot of every call. Nil discards it.
	Recorder ports.CallRecorder

	Policy flow.FallbackPolicy
	Hooks  flow.LifecycleHooks
	Logger *slog.Logger

	// SessionTimeout bounds the wait for caller input after a prompt.
	SessionTimeout time.Duration
	// DigitTimeout bounds press_digit capture when the node sets none.
	DigitTimeout time.Duration
	JudgeTimeout time.Duration
	RetryBackoff time.Duration
}

// Orchestrator drives live calls through a compiled graph: one goroutine
// per call, all session mutation through the session manager, all external
// effects through the capability ports.
type Orchestrator struct {
	sessions *session.Manager
	caps     Capabilities
	eval     *Evaluator
	phrases  ports.PhraseSource
	recorder ports.CallRecorder
	policy   flow.FallbackPolicy
	hooks    flow.LifecycleHooks
	logger   *slog.Logger

	sessionTimeout time.Duration
	digitTimeout   time.Duration

	matcher atomic.Pointer[phraseMatcher]
}

// New builds an orchestrator. It fails fast on missing mandatory wiring so
// a misconfigured engine never reaches a live call.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("runtime: session manager is required")
	}
	if cfg.Capabilities.Judge == nil {
		return nil, errors.New("runtime: judge capability is required")
	}
	if cfg.Capabilities.Speaker == nil {
		return nil, errors.New("runtime: speaker capability is required")
	}
	if cfg.Capabilities.Transcriber == nil {
		return nil, errors.New("runtime: transcriber capability is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = defaultSessionTimeout
	}
	if cfg.DigitTimeout <= 0 {
		cfg.DigitTimeout = defaultDigitTimeout
	}
	if cfg.JudgeTimeout <= 0 {
		cfg.JudgeTimeout = defaultJudgeTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}

	o := &Orchestrator{
		sessions:       cfg.Sessions,
		caps:           cfg.Capabilities,
		eval:           NewEvaluator(cfg.Capabilities.Judge, cfg.JudgeTimeout, cfg.RetryBackoff, cfg.Hooks, cfg.Logger),
		phrases:        cfg.Phrases,
		recorder:       cfg.Recorder,
		policy:         cfg.Policy,
		hooks:          cfg.Hooks,
		logger:         cfg.Logger,
		sessionTimeout: cfg.SessionTimeout,
		digitTimeout:   cfg.DigitTimeout,
	}
	o.matcher.Store(newPhraseMatcher(nil))
	return o, nil
}

// WatchPhrases loads the interruption phrase list and keeps it current.
// In-flight playbacks keep the matcher they started with; the next playback
// picks up the replacement.
func (o *Orchestrator) WatchPhrases(ctx context.Context) error {
	if o.phrases == nil {
		return nil
	}
	snap, err := o.phrases.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot interrupt phrases: %w", err)
	}
	o.matcher.Store(newPhraseMatcher(snap))

	updates, err := o.phrases.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch interrupt phrases: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case phrases, ok := <-updates:
				if !ok {
					return
				}
				o.matcher.Store(newPhraseMatcher(phrases))
				o.logger.Info("interrupt phrase list updated", "count", len(phrases))
			}
		}
	}()
	return nil
}

// Run executes one call against a graph until a terminal node, hangup,
// timeout, or fallback exhaustion. It owns the session for the whole call:
// created on entry, recorded and destroyed on exit, whatever the path out.
func (o *Orchestrator) Run(ctx context.Context, callID string, graph *flow.Graph) error {
	if err := o.policy.Validate(graph); err != nil {
		return err
	}
	sess, err := o.sessions.Create(ctx, callID, graph)
	if err != nil {
		return err
	}

	reason := flow.EndReasonError
	defer func() {
		o.finish(context.WithoutCancel(ctx), callID, reason)
	}()

	utts, err := o.caps.Transcriber.Stream(ctx, callID)
	if err != nil {
		return fmt.Errorf("open transcription stream for call %s: %w", callID, err)
	}

	o.logger.Info("call started",
		"call_id", callID,
		"graph", graph.Name(),
		"version", graph.Version(),
		"start", graph.StartID(),
	)

	reprompts := 0
	for {
		node, ok := graph.Node(sess.CurrentNodeID)
		if !ok {
			return fmt.Errorf("call %s is on unknown node %q", callID, sess.CurrentNodeID)
		}
		o.hooks.EmitNodeEnter(ctx, &flow.NodeEvent{
			CallID:    callID,
			NodeID:    node.ID,
			NodeType:  node.Type,
			Turn:      sess.Turn,
			Timestamp: time.Now(),
		})

		var target string
		var stepErr error

		switch node.Type {
		case flow.NodeConversation:
			input, outcome, cerr := o.converse(ctx, sess, node, utts)
			switch outcome {
			case converseHangup:
				reason = flow.EndReasonHangup
				return nil
			case converseTimeout:
				o.logger.Info("session timed out waiting for caller", "call_id", callID, "node", node.ID)
				reason = flow.EndReasonTimeout
				return nil
			}
			if cerr != nil {
				stepErr = cerr
				break
			}
			if uerr := o.sessions.Update(ctx, callID, func(s *flow.Session) error {
				s.LastUtterance = input
				return nil
			}); uerr != nil {
				return uerr
			}
			sess.LastUtterance = input
			target, stepErr = o.eval.Next(ctx, sess, node, input)

		case flow.NodeLogicSplit:
			target, stepErr = o.eval.Next(ctx, sess, node, "")

		case flow.NodeFunction:
			target, stepErr = o.runFunction(ctx, sess, node)

		case flow.NodePressDigit:
			var hungup bool
			target, hungup, stepErr = o.pressDigit(ctx, sess, node)
			if hungup {
				reason = flow.EndReasonHangup
				return nil
			}

		case flow.NodeSMS:
			target, stepErr = o.runSMS(ctx, sess, node)

		case flow.NodeExtractVariable:
			target, stepErr = o.runExtract(ctx, sess, node)

		case flow.NodeCallTransfer:
			dest, rerr := renderTemplate(node.CallTransfer.Destination, sess.Variables)
			if rerr != nil {
				stepErr = rerr
				break
			}
			if terr := o.caps.Transfer.TransferCall(ctx, callID, dest); terr != nil {
				stepErr = &flow.CapabilityError{Capability: "transfer", Err: terr}
				break
			}
			o.markTerminal(ctx, callID)
			reason = flow.EndReasonCallTransfer
			return nil

		case flow.NodeAgentTransfer:
			if terr := o.caps.Transfer.TransferAgent(ctx, callID, node.AgentTransfer.Queue); terr != nil {
				stepErr = &flow.CapabilityError{Capability: "transfer", Err: terr}
				break
			}
			o.markTerminal(ctx, callID)
			reason = flow.EndReasonAgentTransfer
			return nil

		case flow.NodeEnding:
			if node.Ending != nil && node.Ending.Prompt != "" {
				if prompt, rerr := renderTemplate(node.Ending.Prompt, sess.Variables); rerr == nil {
					o.speakAndWait(ctx, callID, prompt)
				}
			}
			o.markTerminal(ctx, callID)
			reason = flow.EndReasonEnding
			return nil

		default:
			return fmt.Errorf("call %s hit unsupported node type %q", callID, node.Type)
		}

		if stepErr != nil {
			if ctx.Err() != nil {
				reason = flow.EndReasonHangup
				return nil
			}
			var capErr *flow.CapabilityError
			if errors.As(stepErr, &capErr) {
				o.hooks.EmitCapabilityError(ctx, &flow.CapabilityEvent{
					CallID:     callID,
					NodeID:     node.ID,
					Capability: capErr.Capability,
					Err:        capErr.Err,
				})
			}
			fbTarget, action := o.applyFallback(node, &reprompts)
			switch action {
			case fallbackReprompt:
				o.logger.Info("repeating node",
					"call_id", callID,
					"node", node.ID,
					"attempt", reprompts,
					"err", stepErr,
				)
				continue
			case fallbackEnd:
				o.logger.Warn("fallback exhausted, ending call",
					"call_id", callID,
					"node", node.ID,
					"err", stepErr,
				)
				reason = flow.EndReasonFallback
				return nil
			}
			o.logger.Info("routing to fallback target",
				"call_id", callID,
				"node", node.ID,
				"target", fbTarget,
				"err", stepErr,
			)
			target = fbTarget
		}

		next, aerr := o.sessions.Advance(ctx, callID, target)
		if aerr != nil {
			return aerr
		}
		o.hooks.EmitNodeLeave(ctx, &flow.NodeEvent{
			CallID:    callID,
			NodeID:    node.ID,
			NodeType:  node.Type,
			Turn:      next.Turn,
			Timestamp: time.Now(),
		})
		reprompts = 0
		sess = next
	}
}

type converseOutcome int

const (
	converseInput converseOutcome = iota
	converseInterrupted
	converseTimeout
	converseHangup
)

// converse plays the node prompt with the interruption monitor attached,
// then waits for the caller's final utterance. A matched phrase cancels
// playback and the matched utterance becomes the turn's input; playback is
// the only thing cancellation touches, the session stays consistent.
func (o *Orchestrator) converse(ctx context.Context, sess *flow.Session, node *flow.Node, utts <-chan ports.Utterance) (string, converseOutcome, error) {
	prompt, err := renderTemplate(node.Conversation.Prompt, sess.Variables)
	if err != nil {
		return "", converseInput, err
	}
	pb, err := o.caps.Speaker.Speak(ctx, sess.CallID, prompt)
	if err != nil {
		return "", converseInput, &flow.CapabilityError{Capability: "speaker", Err: err}
	}

	matcher := o.matcher.Load()
	if matcher.empty() {
		// No phrases configured, so nothing can barge in. Skip the monitor
		// and let the playback run out.
		select {
		case perr := <-pb.Done():
			if perr != nil && !errors.Is(perr, context.Canceled) {
				return "", converseInput, &flow.CapabilityError{Capability: "speaker", Err: perr}
			}
		case <-ctx.Done():
			pb.Cancel()
			return "", converseHangup, nil
		}
		return o.listen(ctx, nil, utts)
	}

	monCtx, cancelMon := context.WithCancel(ctx)
	defer cancelMon()
	matches, passed := watchInterrupt(monCtx, utts, matcher)

	select {
	case intr, ok := <-matches:
		pb.Cancel()
		if !ok {
			return "", converseHangup, nil
		}
		o.hooks.EmitInterrupt(ctx, &flow.InterruptEvent{
			CallID:    sess.CallID,
			NodeID:    node.ID,
			Phrase:    intr.Phrase,
			Utterance: intr.Utterance,
		})
		o.logger.Info("playback interrupted",
			"call_id", sess.CallID,
			"node", node.ID,
			"phrase", intr.Phrase,
		)
		return intr.Utterance, converseInterrupted, nil
	case perr := <-pb.Done():
		cancelMon()
		if perr != nil && !errors.Is(perr, context.Canceled) {
			return "", converseInput, &flow.CapabilityError{Capability: "speaker", Err: perr}
		}
	case <-ctx.Done():
		pb.Cancel()
		return "", converseHangup, nil
	}

	return o.listen(ctx, passed, utts)
}

// listen waits for the caller's final utterance after a prompt, bounded by
// the session timeout. held carries utterances the interruption monitor
// consumed during playback without matching; nil when no monitor ran.
func (o *Orchestrator) listen(ctx context.Context, held <-chan ports.Utterance, utts <-chan ports.Utterance) (string, converseOutcome, error) {
	timer := time.NewTimer(o.sessionTimeout)
	defer timer.Stop()
	for {
		select {
		case u := <-held:
			if u.Final {
				return u.Text, converseInput, nil
			}
		case u, ok := <-utts:
			if !ok {
				return "", converseHangup, nil
			}
			if u.Final {
				return u.Text, converseInput, nil
			}
		case <-timer.C:
			return "", converseTimeout, nil
		case <-ctx.Done():
			return "", converseHangup, nil
		}
	}
}

// pressDigit either emits a tone sequence and transitions, or prompts the
// caller for one key press and routes through the node's digit rules. A
// missing rule or a capture timeout goes to the fallback policy.
func (o *Orchestrator) pressDigit(ctx context.Context, sess *flow.Session, node *flow.Node) (string, bool, error) {
	pd := node.PressDigit
	if pd.Emit != "" {
		if err := o.caps.DTMF.Emit(ctx, sess.CallID, pd.Emit); err != nil {
			return "", false, &flow.CapabilityError{Capability: "dtmf", Err: err}
		}
		target, err := o.eval.Next(ctx, sess, node, "")
		return target, false, err
	}

	if pd.Prompt != "" {
		prompt, err := renderTemplate(pd.Prompt, sess.Variables)
		if err != nil {
			return "", false, err
		}
		hungup, err := o.speakAndWait(ctx, sess.CallID, prompt)
		if hungup || err != nil {
			return "", hungup, err
		}
	}

	digits, err := o.caps.DTMF.Digits(ctx, sess.CallID)
	if err != nil {
		return "", false, &flow.CapabilityError{Capability: "dtmf", Err: err}
	}
	wait := pd.Timeout
	if wait <= 0 {
		wait = o.digitTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case d, ok := <-digits:
		if !ok {
			return "", true, nil
		}
		if target, ok := pd.Rules[d]; ok {
			o.logger.Debug("digit routed", "call_id", sess.CallID, "digit", d, "target", target)
			return target, false, nil
		}
		o.logger.Info("unmapped digit", "call_id", sess.CallID, "node", node.ID, "digit", d)
		return "", false, flow.ErrNoTransition
	case <-timer.C:
		return "", false, flow.ErrNoTransition
	case <-ctx.Done():
		return "", true, nil
	}
}

func (o *Orchestrator) runFunction(ctx context.Context, sess *flow.Session, node *flow.Node) (string, error) {
	fd := node.Function
	args, err := renderArgs(fd.Args, sess.Variables)
	if err != nil {
		return "", err
	}
	result, err := o.caps.Functions.Invoke(ctx, fd.Name, args)
	if err != nil {
		o.logger.Warn("function failed", "call_id", sess.CallID, "function", fd.Name, "err", err)
		return "", &flow.CapabilityError{Capability: "function", Err: err}
	}
	if fd.ResultVar != "" {
		if err := o.sessions.SetVariable(ctx, sess.CallID, fd.ResultVar, result); err != nil {
			return "", err
		}
		sess.Variables.Set(fd.ResultVar, result)
	}
	return o.eval.Next(ctx, sess, node, "")
}

// runSMS sends the message exactly once. A failed send is surfaced to the
// fallback policy, never retried.
func (o *Orchestrator) runSMS(ctx context.Context, sess *flow.Session, node *flow.Node) (string, error) {
	sd := node.SMS
	dest, err := renderTemplate(sd.Destination, sess.Variables)
	if err != nil {
		return "", err
	}
	msg, err := renderTemplate(sd.Message, sess.Variables)
	if err != nil {
		return "", err
	}
	if serr := o.caps.SMS.Send(ctx, dest, msg); serr != nil {
		o.logger.Error("sms send failed", "call_id", sess.CallID, "node", node.ID, "err", serr)
		return "", &flow.CapabilityError{Capability: "sms", Err: serr}
	}
	return o.eval.Next(ctx, sess, node, "")
}

func (o *Orchestrator) runExtract(ctx context.Context, sess *flow.Session, node *flow.Node) (string, error) {
	ed := node.Extract
	val, err := o.caps.Extractor.Extract(ctx, ed.Instruction, sess.LastUtterance, sess.Variables)
	if err != nil {
		return "", &flow.CapabilityError{Capability: "extractor", Err: err, Temporary: true}
	}
	if err := o.sessions.SetVariable(ctx, sess.CallID, ed.Name, val); err != nil {
		return "", err
	}
	sess.Variables.Set(ed.Name, val)
	o.logger.Debug("variable extracted", "call_id", sess.CallID, "name", ed.Name)
	return o.eval.Next(ctx, sess, node, "")
}

// speakAndWait plays text to completion with no interruption monitor. Used
// for press_digit and ending prompts.
func (o *Orchestrator) speakAndWait(ctx context.Context, callID, text string) (bool, error) {
	pb, err := o.caps.Speaker.Speak(ctx, callID, text)
	if err != nil {
		return false, &flow.CapabilityError{Capability: "speaker", Err: err}
	}
	select {
	case perr := <-pb.Done():
		if perr != nil && !errors.Is(perr, context.Canceled) {
			return false, &flow.CapabilityError{Capability: "speaker", Err: perr}
		}
		return false, nil
	case <-ctx.Done():
		pb.Cancel()
		return true, nil
	}
}

type fallbackAction int

const (
	fallbackRouteTo fallbackAction = iota
	fallbackReprompt
	fallbackEnd
)

// applyFallback decides what happens after an unsatisfied or failed
// transition. A node-level fallback target wins over the global policy.
// Reprompting only makes sense for nodes that talk to the caller; silent
// nodes degrade straight to the route target.
func (o *Orchestrator) applyFallback(node *flow.Node, reprompts *int) (string, fallbackAction) {
	if node.Fallback != "" {
		return node.Fallback, fallbackRouteTo
	}
	if o.policy.Mode == flow.FallbackReprompt && canReprompt(node) && *reprompts < o.policy.MaxReprompts {
		*reprompts++
		return "", fallbackReprompt
	}
	if o.policy.Target != "" {
		return o.policy.Target, fallbackRouteTo
	}
	return "", fallbackEnd
}

func canReprompt(node *flow.Node) bool {
	switch node.Type {
	case flow.NodeConversation:
		return true
	case flow.NodePressDigit:
		return node.PressDigit.Emit == ""
	}
	return false
}

func (o *Orchestrator) markTerminal(ctx context.Context, callID string) {
	err := o.sessions.Update(ctx, callID, func(s *flow.Session) error {
		s.Terminal = true
		return nil
	})
	if err != nil {
		o.logger.Error("mark session terminal", "call_id", callID, "err", err)
	}
}

// finish records the call and destroys the session. It runs on every exit
// path, on a context detached from the call's own.
func (o *Orchestrator) finish(ctx context.Context, callID string, reason flow.EndReason) {
	sess, err := o.sessions.Get(ctx, callID)
	if err != nil {
		o.logger.Error("load session for call record", "call_id", callID, "err", err)
	} else {
		if o.recorder != nil {
			if rerr := o.recorder.Record(ctx, sess.Record(reason)); rerr != nil {
				o.logger.Error("record call", "call_id", callID, "err", rerr)
			}
		}
		o.hooks.EmitSessionEnd(ctx, &flow.SessionEndEvent{
			CallID: callID,
			Reason: reason,
			Turns:  sess.Turn,
			Nodes:  len(sess.History),
		})
	}
	if err := o.sessions.Destroy(ctx, callID); err != nil && !errors.Is(err, flow.ErrSessionNotFound) {
		o.logger.Error("destroy session", "call_id", callID, "err", err)
	}
	o.logger.Info("call ended", "call_id", callID, "reason", string(reason))
}
