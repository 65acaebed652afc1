package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialflow/dialflow/pkg/flow"
)

func TestVarsCoercion(t *testing.T) {
	v := flow.Vars{}
	v.Set("count", "7")
	v.Set("ratio", 0.5)
	v.Set("flag", "true")

	assert.Equal(t, 7, v.GetInt("count"))
	assert.Equal(t, "7", v.GetString("count"))
	assert.Equal(t, 0.5, v.GetFloat("ratio"))
	assert.True(t, v.GetBool("flag"))

	assert.Equal(t, "", v.GetString("missing"))
	_, ok := v.Get("missing")
	assert.False(t, ok)
}

func TestVarsCloneIsolation(t *testing.T) {
	v := flow.Vars{"a": 1}
	c := v.Clone()
	c.Set("a", 2)
	assert.Equal(t, 1, v.GetInt("a"))
}

func TestNodeTypeSets(t *testing.T) {
	assert.True(t, flow.NodeEnding.Terminal())
	assert.True(t, flow.NodeCallTransfer.Terminal())
	assert.True(t, flow.NodeAgentTransfer.Terminal())
	assert.False(t, flow.NodeConversation.Terminal())

	assert.True(t, flow.NodeLogicSplit.Valid())
	assert.False(t, flow.NodeType("teleport").Valid())
}

func TestNodeOutgoingCountsAllRoutes(t *testing.T) {
	n := &flow.Node{
		ID:   "n",
		Type: flow.NodePressDigit,
		Transitions: []flow.Transition{
			{Condition: "a", Target: "x"},
		},
		PressDigit: &flow.PressDigitData{Rules: map[string]string{"1": "y", "2": "z"}},
		Fallback:   "f",
	}
	assert.Equal(t, 4, n.Outgoing())
}

func TestPolicyValidate(t *testing.T) {
	g := flow.NewGraph("g", "1", "a", []*flow.Node{
		{ID: "a", Type: flow.NodeEnding},
	})

	cases := []struct {
		name   string
		policy flow.FallbackPolicy
		ok     bool
	}{
		{"reprompt with ceiling", flow.FallbackPolicy{Mode: flow.FallbackReprompt, MaxReprompts: 2}, true},
		{"reprompt without ceiling", flow.FallbackPolicy{Mode: flow.FallbackReprompt}, false},
		{"route with target", flow.FallbackPolicy{Mode: flow.FallbackRoute, Target: "a"}, true},
		{"route without target", flow.FallbackPolicy{Mode: flow.FallbackRoute}, false},
		{"route to unknown node", flow.FallbackPolicy{Mode: flow.FallbackRoute, Target: "ghost"}, false},
		{"unknown mode", flow.FallbackPolicy{Mode: "shrug"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate(g)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSessionRecordSnapshot(t *testing.T) {
	g := flow.NewGraph("g", "2", "start", []*flow.Node{
		{ID: "start", Type: flow.NodeEnding},
	})
	sess := flow.NewSession("call-1", g)
	sess.Variables.Set("k", "v")
	sess.Turn = 3

	rec := sess.Record(flow.EndReasonHangup)
	require.Equal(t, "call-1", rec.CallID)
	assert.Equal(t, "g", rec.Graph)
	assert.Equal(t, "2", rec.GraphVersion)
	assert.Equal(t, flow.EndReasonHangup, rec.Reason)
	assert.Equal(t, 3, rec.Turns)

	// The record is a snapshot, not a view.
	sess.Variables.Set("k", "changed")
	assert.Equal(t, "v", rec.Variables.GetString("k"))
}

func TestMergeHooksFansOut(t *testing.T) {
	var gotA, gotB int
	merged := flow.MergeHooks(
		flow.LifecycleHooks{OnInterrupt: func(context.Context, *flow.InterruptEvent) { gotA++ }},
		flow.LifecycleHooks{OnInterrupt: func(context.Context, *flow.InterruptEvent) { gotB++ }},
	)

	merged.EmitInterrupt(context.Background(), &flow.InterruptEvent{})
	assert.Equal(t, 1, gotA)
	assert.Equal(t, 1, gotB)

	// Nil callbacks on either side are skipped, not called.
	merged.EmitSessionEnd(context.Background(), &flow.SessionEndEvent{})
}
