package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nubi/internal/identity"
	"nubi/internal/mutation"
	"nubi/internal/persona"
	"nubi/internal/pipeline"
	"nubi/internal/security"
	"nubi/internal/staleness"
	"nubi/internal/workflow"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	state := persona.NewState(persona.WithRand(rand.New(rand.NewSource(1))))
	processor := pipeline.NewProcessor(
		pipeline.Config{},
		pipeline.Deps{
			State:    state,
			Mutator:  mutation.NewEngine(mutation.DefaultConfig(), mutation.WithRand(rand.New(rand.NewSource(2)))),
			Detector: staleness.NewDetector(staleness.DefaultConfig()),
			Resolver: identity.NewResolver(nil),
			Screener: security.NewScreener(),
		},
		pipeline.WithRand(rand.New(rand.NewSource(3))),
	)

	engine := workflow.NewEngine()
	engine.RegisterAction(workflow.ActionFunc{
		ActionName: "echo",
		Fn: func(_ context.Context, inputs map[string]any) (*workflow.ActionResult, error) {
			return &workflow.ActionResult{Values: map[string]any{"echo": inputs["value"]}}, nil
		},
	})
	require.NoError(t, engine.RegisterTemplate(&workflow.Workflow{
		ID: "echo-flow",
		Steps: []workflow.Step{
			{ID: "s1", Action: "echo", Inputs: map[string]any{"value": "{{value}}"}, Outputs: map[string]string{"echo": "result"}},
		},
	}))

	return NewServer(processor, state, engine)
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
}

func TestMessageEndpoint(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Router())
	defer srv.Close()

	msg := pipeline.InboundMessage{
		ID:       "m1",
		EntityID: "u1",
		RoomID:   "room-1",
		Content: pipeline.Content{
			Text:   "sol is amazing!!!",
			Source: "twitter",
			Metadata: map[string]any{
				"user": map[string]any{"id_str": "u1", "screen_name": "tester"},
			},
		},
	}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/message", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool           `json:"success"`
		Reply   pipeline.Reply `json:"reply"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.False(t, body.Reply.Skip)
	assert.NotEmpty(t, body.Reply.Text)
	assert.Equal(t, persona.EmotionExcited, body.Reply.Metadata.EmotionalState.Current)
}

func TestMessageEndpointRejectsBadPayload(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/message", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStateEndpoint(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "emotion")
	assert.Contains(t, body, "personality")
}

func TestWorkflowRunEndpoint(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Router())
	defer srv.Close()

	payload := []byte(`{"value":"hello"}`)
	resp, err := http.Post(srv.URL+"/api/workflows/echo-flow/run", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success   bool           `json:"success"`
		Variables map[string]any `json:"variables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "hello", body.Variables["result"])
}

func TestWorkflowRunUnknownTemplate(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/workflows/ghost/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestWorkflowCancelUnknownExecution(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/workflows/executions/nope", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
