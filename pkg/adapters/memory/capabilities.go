package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dialflow/dialflow/internal/logging"
	"github.com/dialflow/dialflow/pkg/flow"
	"github.com/dialflow/dialflow/pkg/ports"
)

// KeywordJudge is a heuristic ports.Judge for development and tests: a
// condition is satisfied when any of its significant words appears in the
// utterance, case-insensitively. Production deployments wire an LLM judge.
type KeywordJudge struct{}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "for": true, "to": true, "of": true,
	"is": true, "asks": true, "wants": true, "caller": true, "user": true,
	"about": true, "says": true,
}

// Judge reports whether any significant condition word occurs in the input.
func (KeywordJudge) Judge(ctx context.Context, condition string, input ports.JudgeInput) (bool, error) {
	haystack := strings.ToLower(input.Utterance)
	for _, word := range strings.Fields(strings.ToLower(condition)) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) < 3 || stopwords[word] {
			continue
		}
		if strings.Contains(haystack, word) {
			return true, nil
		}
	}
	return false, nil
}

// LogCapabilities implements the side-effect ports by logging what a real
// telephony stack would do. Speak returns a playback that completes after a
// duration proportional to the text length so barge-in remains observable
// in local runs.
type LogCapabilities struct {
	Logger *slog.Logger

	// PerChar throttles simulated playback. Zero means instant completion.
	PerChar time.Duration
}

// NewLogCapabilities creates log-backed capabilities.
func NewLogCapabilities(logger *slog.Logger) *LogCapabilities {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogCapabilities{Logger: logger, PerChar: 30 * time.Millisecond}
}

type logPlayback struct {
	done   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func (p *logPlayback) Done() <-chan error { return p.done }

func (p *logPlayback) Cancel() {
	p.once.Do(p.cancel)
}

// Speak logs the prompt and simulates its playback time.
func (c *LogCapabilities) Speak(ctx context.Context, callID, text string) (ports.Playback, error) {
	c.Logger.Info("speak", "call_id", callID, "text", text)

	playCtx, cancel := context.WithCancel(ctx)
	pb := &logPlayback{done: make(chan error, 1), cancel: cancel}

	go func() {
		timer := time.NewTimer(time.Duration(len(text)) * c.PerChar)
		defer timer.Stop()
		select {
		case <-timer.C:
			pb.done <- nil
		case <-playCtx.Done():
			pb.done <- playCtx.Err()
		}
	}()
	return pb, nil
}

// Invoke logs the function call and echoes its arguments as the result.
func (c *LogCapabilities) Invoke(ctx context.Context, name string, args map[string]string) (any, error) {
	c.Logger.Info("function call", "name", name, "args", args)
	return args, nil
}

// Send logs the SMS.
func (c *LogCapabilities) Send(ctx context.Context, destination, message string) error {
	c.Logger.Info("sms", "to", destination, "message", message)
	return nil
}

// TransferCall logs the handoff.
func (c *LogCapabilities) TransferCall(ctx context.Context, callID, destination string) error {
	c.Logger.Info("call transfer", "call_id", callID, "destination", destination)
	return nil
}

// TransferAgent logs the escalation.
func (c *LogCapabilities) TransferAgent(ctx context.Context, callID, queue string) error {
	c.Logger.Info("agent transfer", "call_id", callID, "queue", queue)
	return nil
}

// Extract returns the raw utterance; good enough for local runs where the
// caller answers with exactly the value being asked for.
func (c *LogCapabilities) Extract(ctx context.Context, instruction, utterance string, vars flow.Vars) (any, error) {
	c.Logger.Info("extract", "instruction", instruction, "utterance", utterance)
	return strings.TrimSpace(utterance), nil
}

// Recorder implements ports.CallRecorder in memory for tests and local runs.
type Recorder struct {
	mu      sync.Mutex
	records []flow.CallRecord
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends the call record.
func (r *Recorder) Record(ctx context.Context, rec flow.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []flow.CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flow.CallRecord(nil), r.records...)
}
