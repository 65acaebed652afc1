// Package compiler turns raw graph definitions (YAML or JSON) into compiled,
// immutable flow.Graph values. Compilation is pure: it performs no I/O and
// never touches a live call. Fatal structural defects reject the whole
// definition; softer findings come back as warnings.
package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/dialflow/dialflow/pkg/flow"
)

// Definition is the raw, serializable shape of a published graph.
type Definition struct {
	Name    string           `yaml:"name" json:"name"`
	Version string           `yaml:"version" json:"version"`
	Start   string           `yaml:"start" json:"start"`
	Nodes   []NodeDefinition `yaml:"nodes" json:"nodes"`
}

// NodeDefinition is one raw node. Data carries the type-specific payload as
// a free map; Compile decodes it into the matching payload struct.
type NodeDefinition struct {
	ID          string                 `yaml:"id" json:"id"`
	Type        string                 `yaml:"type" json:"type"`
	Label       string                 `yaml:"label,omitempty" json:"label,omitempty"`
	Transitions []TransitionDefinition `yaml:"transitions,omitempty" json:"transitions,omitempty"`
	Fallback    string                 `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Data        map[string]any         `yaml:"data,omitempty" json:"data,omitempty"`
}

// TransitionDefinition is one raw guarded edge.
type TransitionDefinition struct {
	Condition string `yaml:"condition" json:"condition"`
	Target    string `yaml:"target" json:"target"`
}

// Warning is a non-fatal finding surfaced to the caller. Warnings never
// block compilation.
type Warning struct {
	NodeID  string
	Message string
}

func (w Warning) String() string {
	if w.NodeID == "" {
		return w.Message
	}
	return fmt.Sprintf("node %q: %s", w.NodeID, w.Message)
}

// Parse decodes a definition from YAML or JSON bytes. JSON is a subset of
// YAML, but a leading '{' is routed through encoding/json for exact error
// positions.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse graph definition: %w", err)
		}
		return &def, nil
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse graph definition: %w", err)
	}
	return &def, nil
}

// Compile checks a definition and builds the immutable graph. Check order:
// unique node ids, exactly one start node, every target resolves, ending
// nodes have no outgoing routes. Any failure rejects the whole graph.
// Missing outgoing routes on non-terminal nodes and unreachable nodes are
// returned as warnings alongside a usable graph.
func Compile(def *Definition) (*flow.Graph, []Warning, error) {
	var issues []flow.CompileIssue

	// (1) unique ids, known types, payload decode
	seen := make(map[string]bool, len(def.Nodes))
	nodes := make([]*flow.Node, 0, len(def.Nodes))
	for _, nd := range def.Nodes {
		if nd.ID == "" {
			issues = append(issues, flow.CompileIssue{
				Check: "unique-ids", Message: "node with empty id",
			})
			continue
		}
		if seen[nd.ID] {
			issues = append(issues, flow.CompileIssue{
				Check: "unique-ids", NodeID: nd.ID, Message: "duplicate node id",
			})
			continue
		}
		seen[nd.ID] = true

		node, err := buildNode(nd)
		if err != nil {
			issues = append(issues, flow.CompileIssue{
				Check: "payload", NodeID: nd.ID, Message: err.Error(),
			})
			continue
		}
		nodes = append(nodes, node)
	}

	// (2) exactly one start node
	if def.Start == "" {
		issues = append(issues, flow.CompileIssue{
			Check: "start-node", Message: "no start node declared",
		})
	} else if !seen[def.Start] {
		issues = append(issues, flow.CompileIssue{
			Check: "start-node", Message: fmt.Sprintf("start node %q does not exist", def.Start),
		})
	}

	// (3) every target resolves
	for _, n := range nodes {
		for _, t := range n.Transitions {
			if !seen[t.Target] {
				issues = append(issues, flow.CompileIssue{
					Check: "target-resolves", NodeID: n.ID,
					Message: fmt.Sprintf("transition target %q does not exist", t.Target),
				})
			}
		}
		if n.PressDigit != nil {
			for digit, target := range n.PressDigit.Rules {
				if !seen[target] {
					issues = append(issues, flow.CompileIssue{
						Check: "target-resolves", NodeID: n.ID,
						Message: fmt.Sprintf("digit rule %q target %q does not exist", digit, target),
					})
				}
			}
		}
		if n.Fallback != "" && !seen[n.Fallback] {
			issues = append(issues, flow.CompileIssue{
				Check: "target-resolves", NodeID: n.ID,
				Message: fmt.Sprintf("fallback target %q does not exist", n.Fallback),
			})
		}
	}

	// (4) ending nodes are terminal
	for _, n := range nodes {
		if n.Type.Terminal() && n.Outgoing() > 0 {
			issues = append(issues, flow.CompileIssue{
				Check: "ending-terminal", NodeID: n.ID,
				Message: fmt.Sprintf("%s node must have no outgoing transitions", n.Type),
			})
		}
	}

	if len(issues) > 0 {
		return nil, nil, &flow.CompileError{Issues: issues}
	}

	// (5) warnings: dead ends and unreachable nodes
	var warnings []Warning
	for _, n := range nodes {
		if !n.Type.Terminal() && n.Outgoing() == 0 {
			warnings = append(warnings, Warning{
				NodeID:  n.ID,
				Message: "non-terminal node has no outgoing transition or fallback",
			})
		}
	}
	warnings = append(warnings, unreachable(def.Start, nodes)...)

	return flow.NewGraph(def.Name, def.Version, def.Start, nodes), warnings, nil
}

// unreachable walks the graph from start and flags nodes no path reaches.
func unreachable(start string, nodes []*flow.Node) []Warning {
	byID := make(map[string]*flow.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	visited := make(map[string]bool, len(nodes))
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		n, ok := byID[id]
		if !ok {
			continue
		}
		for _, t := range n.Transitions {
			queue = append(queue, t.Target)
		}
		if n.PressDigit != nil {
			for _, target := range n.PressDigit.Rules {
				queue = append(queue, target)
			}
		}
		if n.Fallback != "" {
			queue = append(queue, n.Fallback)
		}
	}

	var warnings []Warning
	for _, n := range nodes {
		if !visited[n.ID] {
			warnings = append(warnings, Warning{NodeID: n.ID, Message: "unreachable from start node"})
		}
	}
	return warnings
}

func buildNode(nd NodeDefinition) (*flow.Node, error) {
	typ := flow.NodeType(nd.Type)
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown node type %q", nd.Type)
	}

	node := &flow.Node{
		ID:       nd.ID,
		Type:     typ,
		Label:    nd.Label,
		Fallback: nd.Fallback,
	}
	for _, t := range nd.Transitions {
		if t.Target == "" {
			return nil, fmt.Errorf("transition with empty target")
		}
		node.Transitions = append(node.Transitions, flow.Transition{
			Condition: t.Condition,
			Target:    t.Target,
		})
	}

	if err := decodePayload(typ, nd.Data, node); err != nil {
		return nil, err
	}
	return node, nil
}

// decodePayload maps the free-form data block into the payload struct for
// the node's type. Unknown keys are an error so typos fail at publish time,
// not mid-call.
func decodePayload(typ flow.NodeType, data map[string]any, node *flow.Node) error {
	decode := func(out any) error {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           out,
			ErrorUnused:      true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
		})
		if err != nil {
			return err
		}
		if data == nil {
			data = map[string]any{}
		}
		if err := dec.Decode(data); err != nil {
			return fmt.Errorf("invalid %s payload: %w", typ, err)
		}
		return nil
	}

	switch typ {
	case flow.NodeConversation:
		payload := &flow.ConversationData{}
		if err := decode(payload); err != nil {
			return err
		}
		if payload.Prompt == "" {
			return fmt.Errorf("conversation node requires a prompt")
		}
		node.Conversation = payload

	case flow.NodeLogicSplit:
		// No payload: a logic_split is its transitions.
		if len(data) > 0 {
			return fmt.Errorf("logic_split node takes no payload")
		}

	case flow.NodeFunction:
		payload := &flow.FunctionData{}
		if err := decode(payload); err != nil {
			return err
		}
		if payload.Name == "" {
			return fmt.Errorf("function node requires a function name")
		}
		node.Function = payload

	case flow.NodeCallTransfer:
		payload := &flow.CallTransferData{}
		if err := decode(payload); err != nil {
			return err
		}
		if payload.Destination == "" {
			return fmt.Errorf("call_transfer node requires a destination")
		}
		node.CallTransfer = payload

	case flow.NodePressDigit:
		payload := &flow.PressDigitData{}
		if err := decode(payload); err != nil {
			return err
		}
		if payload.Emit == "" && len(payload.Rules) == 0 {
			return fmt.Errorf("press_digit node requires digits to emit or digit rules")
		}
		for digit := range payload.Rules {
			if !validDigit(digit) {
				return fmt.Errorf("invalid DTMF digit %q in rules", digit)
			}
		}
		for _, r := range payload.Emit {
			if !validDigit(string(r)) {
				return fmt.Errorf("invalid DTMF digit %q in emit", string(r))
			}
		}
		node.PressDigit = payload

	case flow.NodeAgentTransfer:
		payload := &flow.AgentTransferData{}
		if err := decode(payload); err != nil {
			return err
		}
		if payload.Queue == "" {
			return fmt.Errorf("agent_transfer node requires a queue")
		}
		node.AgentTransfer = payload

	case flow.NodeSMS:
		payload := &flow.SMSData{}
		if err := decode(payload); err != nil {
			return err
		}
		if payload.Destination == "" || payload.Message == "" {
			return fmt.Errorf("sms node requires destination and message")
		}
		node.SMS = payload

	case flow.NodeExtractVariable:
		payload := &flow.ExtractVariableData{}
		if err := decode(payload); err != nil {
			return err
		}
		if payload.Name == "" || payload.Instruction == "" {
			return fmt.Errorf("extract_variable node requires name and instruction")
		}
		node.Extract = payload

	case flow.NodeEnding:
		payload := &flow.EndingData{}
		if err := decode(payload); err != nil {
			return err
		}
		node.Ending = payload
	}
	return nil
}

func validDigit(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return (c >= '0' && c <= '9') || c == '*' || c == '#'
}
