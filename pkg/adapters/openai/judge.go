// Package openai implements the condition-judgment port using the OpenAI
// Chat Completions API. One judgment is one bounded completion call that
// must answer yes or no.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/dialflow/dialflow/pkg/ports"
)

const systemPrompt = `You judge whether a condition holds for a phone caller's utterance.
Answer with exactly one word: "yes" if the condition is satisfied, "no" otherwise.`

// Options configure the judge adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Judge wraps the OpenAI client behind ports.Judge.
type Judge struct {
	client *openai.Client
	opts   Options
}

// NewJudge creates a judge using the default client (API key from env).
func NewJudge(optFns ...func(o *Options)) *Judge {
	client := openai.NewClient()
	return NewJudgeFromClient(&client, optFns...)
}

// NewJudgeFromClient creates a judge from an existing client.
func NewJudgeFromClient(client *openai.Client, optFns ...func(o *Options)) *Judge {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0,
		MaxTokens:   4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Judge{client: client, opts: opts}
}

// Judge asks the model whether the condition holds for the given context.
// The caller bounds the call with a deadline on ctx.
func (j *Judge) Judge(ctx context.Context, condition string, input ports.JudgeInput) (bool, error) {
	resp, err := j.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: j.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(judgePrompt(condition, input)),
		},
		Temperature:         openai.Float(j.opts.Temperature),
		MaxCompletionTokens: openai.Int(j.opts.MaxTokens),
	})
	if err != nil {
		return false, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("openai: no choices returned")
	}
	return parseVerdict(resp.Choices[0].Message.Content)
}

func judgePrompt(condition string, input ports.JudgeInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Condition: %s\n", condition)
	if input.Utterance != "" {
		fmt.Fprintf(&sb, "Caller said: %q\n", input.Utterance)
	} else {
		sb.WriteString("The caller has not spoken this turn; judge from the variables alone.\n")
	}
	if len(input.Variables) > 0 {
		sb.WriteString("Known variables:\n")
		for k, v := range input.Variables {
			fmt.Fprintf(&sb, "  %s = %v\n", k, v)
		}
	}
	return sb.String()
}

func parseVerdict(answer string) (bool, error) {
	clean := strings.ToLower(strings.TrimSpace(answer))
	clean = strings.Trim(clean, ".!\"'")
	switch clean {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, fmt.Errorf("unexpected judgment answer %q", answer)
}
