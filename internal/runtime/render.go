package runtime

import (
	"fmt"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/dialflow/dialflow/pkg/flow"
)

// renderTemplate interpolates session variables into a prompt or argument
// template. Variables are addressed as {{.name}}; missing keys render empty
// rather than failing a live call.
func renderTemplate(tmpl string, vars flow.Vars) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	data := make(map[string]any, len(vars))
	for k, v := range vars {
		data[k] = v
	}
	// Fill in only the keys the template references, so literal prompt text
	// is never rewritten.
	for _, key := range referencedKeys(t.Root) {
		if _, ok := data[key]; !ok {
			data[key] = ""
		}
	}

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return sb.String(), nil
}

// referencedKeys collects the top-level variable names a parsed template
// reads.
func referencedKeys(node parse.Node) []string {
	var keys []string
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return nil
		}
		for _, item := range n.Nodes {
			keys = append(keys, referencedKeys(item)...)
		}
	case *parse.ActionNode:
		keys = append(keys, pipeKeys(n.Pipe)...)
	case *parse.IfNode:
		keys = append(keys, branchKeys(&n.BranchNode)...)
	case *parse.RangeNode:
		keys = append(keys, branchKeys(&n.BranchNode)...)
	case *parse.WithNode:
		keys = append(keys, branchKeys(&n.BranchNode)...)
	}
	return keys
}

func branchKeys(n *parse.BranchNode) []string {
	keys := pipeKeys(n.Pipe)
	keys = append(keys, referencedKeys(n.List)...)
	keys = append(keys, referencedKeys(n.ElseList)...)
	return keys
}

func pipeKeys(pipe *parse.PipeNode) []string {
	if pipe == nil {
		return nil
	}
	var keys []string
	for _, cmd := range pipe.Cmds {
		for _, arg := range cmd.Args {
			if f, ok := arg.(*parse.FieldNode); ok && len(f.Ident) > 0 {
				keys = append(keys, f.Ident[0])
			}
		}
	}
	return keys
}

// renderArgs interpolates every value of an argument template map.
func renderArgs(args map[string]string, vars flow.Vars) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		rendered, err := renderTemplate(v, vars)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}
