// Package workflow executes named multi-step templates against a registry
// of pluggable actions, with variable interpolation between steps.
package workflow

import (
	"context"
	"time"
)

// Action is one pluggable unit of work a step can invoke.
type Action interface {
	Name() string
	Execute(ctx context.Context, inputs map[string]any) (*ActionResult, error)
}

// ActionResult carries an action's named output values.
type ActionResult struct {
	Values map[string]any
}

// ActionFunc adapts a plain function into an Action.
type ActionFunc struct {
	ActionName string
	Fn         func(ctx context.Context, inputs map[string]any) (*ActionResult, error)
}

func (a ActionFunc) Name() string { return a.ActionName }

func (a ActionFunc) Execute(ctx context.Context, inputs map[string]any) (*ActionResult, error) {
	return a.Fn(ctx, inputs)
}

// Step is one entry in a workflow template. Inputs may reference earlier
// results via {{var}} or {{stepId.field}} tokens. Outputs maps result field
// names to variable aliases visible to later steps. Consecutive steps with
// Parallel set are batched and run concurrently.
type Step struct {
	ID         string
	Action     string
	Inputs     map[string]any
	Outputs    map[string]string
	Condition  func(vars map[string]any) bool
	RetryCount int
	Timeout    time.Duration
	Parallel   bool
}

// Workflow is a named, reusable ordered step sequence.
type Workflow struct {
	ID    string
	Name  string
	Steps []Step
}

// StepStatus describes how a step settled.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records one step's outcome inside an execution.
type StepResult struct {
	StepID   string
	Status   StepStatus
	Values   map[string]any
	Err      error
	Attempts int
	Elapsed  time.Duration

	step *Step // originating step, for output mapping
}

// ExecutionContext is the per-run state: the accumulated variable store and
// every settled step result. It is discarded on completion.
type ExecutionContext struct {
	ID          string
	WorkflowID  string
	Variables   map[string]any
	StepResults map[string]*StepResult
	CurrentStep int
	StartedAt   time.Time

	cancel context.CancelFunc
}

// Result is the structured outcome of one workflow run. On failure the
// partial StepResults are still populated.
type Result struct {
	ExecutionID string
	WorkflowID  string
	Success     bool
	Err         error
	Variables   map[string]any
	StepResults map[string]*StepResult
	Elapsed     time.Duration
}
