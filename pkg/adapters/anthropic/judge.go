// Package anthropic implements the condition-judgment port using the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dialflow/dialflow/pkg/ports"
)

const systemPrompt = `You judge whether a condition holds for a phone caller's utterance.
Answer with exactly one word: "yes" if the condition is satisfied, "no" otherwise.`

// Options configure the judge adapter.
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Judge wraps the Anthropic client behind ports.Judge.
type Judge struct {
	client *anthropic.Client
	opts   Options
}

// NewJudge creates a judge with its own client.
func NewJudge(optFns ...func(o *Options)) *Judge {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Judge{client: &client, opts: opts}
}

// NewJudgeFromClient creates a judge from an existing client.
func NewJudgeFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Judge {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Judge{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 8,
	}
}

// Judge asks the model whether the condition holds for the given context.
func (j *Judge) Judge(ctx context.Context, condition string, input ports.JudgeInput) (bool, error) {
	resp, err := j.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     j.opts.Model,
		MaxTokens: j.opts.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(judgePrompt(condition, input))),
		},
	})
	if err != nil {
		return false, fmt.Errorf("anthropic api error: %w", err)
	}

	var answer strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			answer.WriteString(block.AsText().Text)
		}
	}
	return parseVerdict(answer.String())
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
