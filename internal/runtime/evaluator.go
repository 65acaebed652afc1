package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dialflow/dialflow/pkg/flow"
	"github.com/dialflow/dialflow/pkg/ports"
)

// Evaluator selects the next node for a session. Transitions are evaluated
// in declaration order and the first satisfied condition wins, so evaluation
// is deterministic for identical judgment responses.
type Evaluator struct {
	judge        ports.Judge
	judgeTimeout time.Duration
	retryBackoff time.Duration
	hooks        flow.LifecycleHooks
	logger       *slog.Logger
}

// NewEvaluator creates an evaluator over a judgment capability.
func NewEvaluator(judge ports.Judge, judgeTimeout, retryBackoff time.Duration, hooks flow.LifecycleHooks, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		judge:        judge,
		judgeTimeout: judgeTimeout,
		retryBackoff: retryBackoff,
		hooks:        hooks,
		logger:       logger,
	}
}

// Next returns the target of the first satisfied transition. An empty
// condition matches unconditionally without consulting the judge. It returns
// flow.ErrNoTransition when every judgment answered "no", and
// flow.ErrJudgeUnavailable when the capability kept failing; both route the
// caller to the fallback policy so the session never lands on an undefined
// node.
func (e *Evaluator) Next(ctx context.Context, sess *flow.Session, node *flow.Node, utterance string) (string, error) {
	input := ports.JudgeInput{
		Utterance: utterance,
		Variables: sess.Variables,
	}

	for _, t := range node.Transitions {
		if t.Condition == "" {
			return t.Target, nil
		}
		satisfied, retried, err := e.judgeOnce(ctx, t.Condition, input)
		e.hooks.EmitJudge(ctx, &flow.JudgeEvent{
			CallID:    sess.CallID,
			NodeID:    node.ID,
			Condition: t.Condition,
			Satisfied: satisfied,
			Retried:   retried,
			Err:       err,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			e.logger.Warn("judgment failed, applying fallback policy",
				"call_id", sess.CallID,
				"node", node.ID,
				"err", err,
			)
			return "", flow.ErrJudgeUnavailable
		}
		if satisfied {
			return t.Target, nil
		}
	}
	return "", flow.ErrNoTransition
}

// judgeOnce performs one bounded judgment, retrying once with backoff. The
// judgment is read-like, so the single retry is safe.
func (e *Evaluator) judgeOnce(ctx context.Context, condition string, input ports.JudgeInput) (satisfied bool, retried bool, err error) {
	satisfied, err = e.callJudge(ctx, condition, input)
	if err == nil || ctx.Err() != nil {
		return satisfied, false, err
	}

	select {
	case <-time.After(e.retryBackoff):
	case <-ctx.Done():
		return false, false, ctx.Err()
	}

	satisfied, err = e.callJudge(ctx, condition, input)
	if err != nil {
		err = &flow.CapabilityError{Capability: "judge", Err: err, Temporary: true}
	}
	return satisfied, true, err
}

func (e *Evaluator) callJudge(ctx context.Context, condition string, input ports.JudgeInput) (bool, error) {
	judgeCtx, cancel := context.WithTimeout(ctx, e.judgeTimeout)
	defer cancel()

	satisfied, err := e.judge.Judge(judgeCtx, condition, input)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return false, &flow.CapabilityError{Capability: "judge", Err: err, Temporary: true}
	}
	return satisfied, err
}
