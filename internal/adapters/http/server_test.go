package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialflow/dialflow"
	httpAdapter "github.com/dialflow/dialflow/internal/adapters/http"
	"github.com/dialflow/dialflow/internal/logging"
	"github.com/dialflow/dialflow/pkg/adapters/memory"
	"github.com/dialflow/dialflow/pkg/flow"
)

func newTestServer(t *testing.T) (*httptest.Server, *dialflow.Engine, *memory.Recorder) {
	t.Helper()

	source := memory.NewGraphSource()
	source.Publish(flow.NewGraph("support", "1", "greet", []*flow.Node{
		{
			ID: "greet", Type: flow.NodeConversation,
			Conversation: &flow.ConversationData{Prompt: "Hi?"},
			Transitions:  []flow.Transition{{Condition: "caller mentions billing", Target: "bye"}},
		},
		{ID: "bye", Type: flow.NodeEnding},
	}))

	hub := memory.NewInputHub()
	recorder := memory.NewRecorder()
	eng, err := dialflow.New(
		dialflow.WithGraphSource(source),
		dialflow.WithTranscriber(hub),
		dialflow.WithDTMF(hub),
		dialflow.WithRecorder(recorder),
		dialflow.WithLogger(logging.NewNop()),
	)
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	srv := httptest.NewServer(httpAdapter.NewHandler(eng, hub, logging.NewNop()))
	t.Cleanup(srv.Close)
	return srv, eng, recorder
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	srv, eng, recorder := newTestServer(t)

	resp := postJSON(t, srv.URL+"/calls", `{"call_id": "call-1", "graph": "support"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var started struct {
		CallID string `json:"call_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	assert.Equal(t, "call-1", started.CallID)

	resp = postJSON(t, srv.URL+"/calls/call-1/input", `{"text": "my billing is broken", "final": true}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Wait(ctx, "call-1"))

	records := recorder.Records()
	require.Len(t, records, 1)
	assert.Equal(t, flow.EndReasonEnding, records[0].Reason)
	assert.Equal(t, []string{"greet", "bye"}, records[0].History)

	// Finished calls are gone.
	getResp, err := http.Get(srv.URL + "/calls/call-1")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestStartCallUnknownGraph(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/calls", `{"graph": "missing"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestStartCallDuplicate(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/calls", `{"call_id": "dup", "graph": "support"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/calls", `{"call_id": "dup", "graph": "support"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, eng.Hangup("dup"))
}

func TestHangupEndpoint(t *testing.T) {
	srv, eng, recorder := newTestServer(t)

	resp := postJSON(t, srv.URL+"/calls", `{"call_id": "call-h", "graph": "support"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/calls/call-h/hangup", `{}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Wait(ctx, "call-h"))

	records := recorder.Records()
	require.Len(t, records, 1)
	assert.Equal(t, flow.EndReasonHangup, records[0].Reason)
}

func TestHangupUnknownCall(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/calls/nope/hangup", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDTMFValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/calls/x/dtmf", `{"digit": "12"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	good := `{"name": "g", "version": "1", "start": "bye",
		"nodes": [{"id": "bye", "type": "ending"}]}`
	resp := postJSON(t, srv.URL+"/validate", good)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Valid)

	bad := `{"name": "g", "version": "1", "start": "bye",
		"nodes": [{"id": "bye", "type": "conversation",
			"transitions": [{"condition": "x", "target": "ghost"}]}]}`
	resp = postJSON(t, srv.URL+"/validate", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
}

func TestGraphEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/graphs/support")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "support", out["name"])
	assert.Equal(t, "greet", out["start"])

	resp, err = http.Get(srv.URL + "/graphs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
