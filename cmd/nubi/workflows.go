package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nubi/internal/ai"
	"nubi/internal/persona"
	"nubi/internal/storage"
	"nubi/internal/workflow"
)

// registerWorkflows wires the built-in actions and templates. The digest
// workflow pulls recent room activity, reads the current mood, and has the
// AI provider write a short in-character recap.
func registerWorkflows(engine *workflow.Engine, store *storage.Storage, provider ai.Provider, state *persona.State) error {
	engine.RegisterAction(workflow.ActionFunc{
		ActionName: "fetch_interactions",
		Fn: func(_ context.Context, inputs map[string]any) (*workflow.ActionResult, error) {
			roomID, _ := inputs["roomId"].(string)
			if roomID == "" {
				return nil, fmt.Errorf("fetch_interactions: roomId required")
			}
			recs, err := store.Interactions(roomID)
			if err != nil {
				return nil, err
			}
			lines := make([]string, 0, len(recs))
			for _, r := range recs {
				lines = append(lines, r.Text)
			}
			return &workflow.ActionResult{Values: map[string]any{
				"transcript": strings.Join(lines, "\n"),
				"count":      len(recs),
			}}, nil
		},
	})

	engine.RegisterAction(workflow.ActionFunc{
		ActionName: "mood_report",
		Fn: func(_ context.Context, _ map[string]any) (*workflow.ActionResult, error) {
			snap := state.EmotionSnapshot()
			return &workflow.ActionResult{Values: map[string]any{
				"emotion":   string(snap.Current),
				"intensity": snap.Intensity,
			}}, nil
		},
	})

	engine.RegisterAction(workflow.ActionFunc{
		ActionName: "summarize",
		Fn: func(ctx context.Context, inputs map[string]any) (*workflow.ActionResult, error) {
			transcript, _ := inputs["transcript"].(string)
			mood, _ := inputs["mood"].(string)
			if strings.TrimSpace(transcript) == "" {
				return &workflow.ActionResult{Values: map[string]any{"digest": "quiet day. nothing to report"}}, nil
			}
			out, err := provider.Generate(ctx, []ai.Message{
				{Role: "system", Content: "Summarize this community chat in three short informal sentences. Current mood: " + mood + "."},
				{Role: "user", Content: transcript},
			})
			if err != nil {
				return nil, err
			}
			return &workflow.ActionResult{Values: map[string]any{"digest": out}}, nil
		},
	})

	return engine.RegisterTemplate(&workflow.Workflow{
		ID:   "community-digest",
		Name: "Community digest",
		Steps: []workflow.Step{
			{
				ID:       "fetch",
				Action:   "fetch_interactions",
				Inputs:   map[string]any{"roomId": "{{roomId}}"},
				Outputs:  map[string]string{"transcript": "transcript", "count": "messageCount"},
				Parallel: true,
			},
			{
				ID:       "mood",
				Action:   "mood_report",
				Outputs:  map[string]string{"emotion": "mood"},
				Parallel: true,
			},
			{
				ID:         "digest",
				Action:     "summarize",
				Inputs:     map[string]any{"transcript": "{{transcript}}", "mood": "{{mood}}"},
				Outputs:    map[string]string{"digest": "digest"},
				RetryCount: 2,
				Timeout:    30 * time.Second,
			},
		},
	})
}
