package flow

import "time"

// NodeType identifies one of the nine node kinds. The set is closed: the
// compiler rejects anything else, and the executor switches exhaustively.
type NodeType string

const (
	// NodeConversation speaks a prompt, listens, and evaluates transitions
	// against the caller's utterance (hard step).
	NodeConversation NodeType = "conversation"
	// NodeLogicSplit evaluates transitions against accumulated variables
	// with no new utterance (silent step).
	NodeLogicSplit NodeType = "logic_split"
	// NodeFunction invokes an external function and stores its result.
	NodeFunction NodeType = "function"
	// NodeCallTransfer hands off the live call. Terminal.
	NodeCallTransfer NodeType = "call_transfer"
	// NodePressDigit emits or captures DTMF and routes by digit rules.
	NodePressDigit NodeType = "press_digit"
	// NodeAgentTransfer escalates to a human agent queue. Terminal.
	NodeAgentTransfer NodeType = "agent_transfer"
	// NodeSMS sends a text message, then transitions.
	NodeSMS NodeType = "sms"
	// NodeExtractVariable writes a value into session variables.
	NodeExtractVariable NodeType = "extract_variable"
	// NodeEnding terminates the session. Terminal, no outgoing transitions.
	NodeEnding NodeType = "ending"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeConversation, NodeLogicSplit, NodeFunction, NodeCallTransfer,
		NodePressDigit, NodeAgentTransfer, NodeSMS, NodeExtractVariable,
		NodeEnding:
		return true
	}
	return false
}

// Terminal reports whether the engine performs no further execution for a
// session after this node type runs.
func (t NodeType) Terminal() bool {
	return t == NodeEnding || t == NodeCallTransfer || t == NodeAgentTransfer
}

// Node is one step of a flow graph. Exactly one payload pointer is non-nil,
// matching Type; the compiler guarantees this before a Graph is built.
// Nodes are immutable once compiled.
type Node struct {
	ID    string
	Type  NodeType
	Label string // display only, no runtime effect

	// Transitions are evaluated in declaration order; the first satisfied
	// condition wins.
	Transitions []Transition

	// Fallback names an explicit fallback target node. A non-terminal node
	// with no transitions must carry one.
	Fallback string

	Conversation  *ConversationData
	Function      *FunctionData
	CallTransfer  *CallTransferData
	PressDigit    *PressDigitData
	AgentTransfer *AgentTransferData
	SMS           *SMSData
	Extract       *ExtractVariableData
	Ending        *EndingData
}

// Outgoing counts the routes leaving this node, including digit rules and an
// explicit fallback.
func (n *Node) Outgoing() int {
	count := len(n.Transitions)
	if n.PressDigit != nil {
		count += len(n.PressDigit.Rules)
	}
	if n.Fallback != "" {
		count++
	}
	return count
}

// ConversationData holds the prompt template for a conversation node.
// The template is rendered against session variables before playback.
type ConversationData struct {
	Prompt string `mapstructure:"prompt"`
}

// FunctionData describes an external function invocation. Args values are
// templates rendered against session variables. ResultVar, when set, names
// the session variable that receives the function result.
type FunctionData struct {
	Name      string            `mapstructure:"name"`
	Args      map[string]string `mapstructure:"args"`
	ResultVar string            `mapstructure:"result_var"`
}

// CallTransferData names the destination endpoint for a blind transfer.
type CallTransferData struct {
	Destination string `mapstructure:"destination"`
}

// PressDigitData configures DTMF handling. When Emit is set the node sends
// those digits outbound; otherwise it plays Prompt and waits for one digit,
// routing through Rules (digit -> target node id). Timeout bounds the wait.
type PressDigitData struct {
	Emit    string            `mapstructure:"emit"`
	Prompt  string            `mapstructure:"prompt"`
	Rules   map[string]string `mapstructure:"rules"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// AgentTransferData names the human agent queue to escalate to.
type AgentTransferData struct {
	Queue string `mapstructure:"queue"`
}

// SMSData holds the destination and message template for a text send.
type SMSData struct {
	Destination string `mapstructure:"destination"`
	Message     string `mapstructure:"message"`
}

// ExtractVariableData instructs the extraction capability to derive a value
// from the conversation and store it under Name.
type ExtractVariableData struct {
	Name        string `mapstructure:"name"`
	Instruction string `mapstructure:"instruction"`
}

// EndingData optionally carries a closing prompt spoken before hangup.
type EndingData struct {
	Prompt string `mapstructure:"prompt"`
}
