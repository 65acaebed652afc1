/*
Package dialflow is an execution engine for conversational flow graphs on
live phone calls.

A flow is a directed graph of typed nodes: conversation turns, logic splits,
external function calls, DTMF handling, SMS sends, variable extraction,
transfers, and endings. Transitions carry natural-language conditions judged
by a pluggable semantic capability, evaluated in declaration order so the
first satisfied condition always wins. Graphs are compiled and validated
before they ever reach a call; a published graph version is fetched once at
call start and never changes mid-call.

Each live call runs on its own goroutine with its own session: current node,
traversal history, variables, and a monotonic turn counter. While a prompt
plays, an interruption monitor watches partial transcripts for configured
barge-in phrases; a match cancels only the playback, and the matched
utterance becomes the turn's input. When no transition is satisfied, a
mandatory fallback policy decides between bounded reprompting and routing to
a designated node, so a session can never loop forever or land on an
undefined node.

The engine is hexagonal: all external effects (speech, transcription,
judgment, functions, SMS, transfers, storage) go through narrow port
interfaces in pkg/ports. In-memory adapters back every port for embedding
and tests; Redis adapters cover session storage, locking, phrase
distribution, and call records; OpenAI and Anthropic adapters back the
judgment capability.

	eng, err := dialflow.New(
		dialflow.WithGraphSource(source),
		dialflow.WithJudge(judge),
		dialflow.WithFallbackPolicy(flow.FallbackPolicy{
			Mode:         flow.FallbackReprompt,
			MaxReprompts: 2,
			Target:       "operator",
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	callID, err := eng.StartCall(ctx, "", "support-line")
*/
package dialflow
