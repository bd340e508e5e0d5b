package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nubi/pkg/util"
)

// defaultStepBackoff is the fixed delay between step retry attempts.
const defaultStepBackoff = time.Second

// parallelWorkerLimit bounds one parallel batch's concurrency.
const parallelWorkerLimit = 8

// Engine stores workflow templates, the action registry, and in-flight
// executions. Safe for concurrent use.
type Engine struct {
	mu          sync.RWMutex
	templates   map[string]*Workflow
	actions     map[string]Action
	executions  map[string]*ExecutionContext
	stepBackoff time.Duration
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{
		templates:   make(map[string]*Workflow),
		actions:     make(map[string]Action),
		executions:  make(map[string]*ExecutionContext),
		stepBackoff: defaultStepBackoff,
	}
}

// SetStepBackoff overrides the retry backoff (tests).
func (e *Engine) SetStepBackoff(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepBackoff = d
}

// RegisterAction adds an action to the registry, replacing any action of
// the same name.
func (e *Engine) RegisterAction(a Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions[a.Name()] = a
}

// RegisterTemplate stores a named reusable workflow.
func (e *Engine) RegisterTemplate(w *Workflow) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("workflow template needs an id")
	}
	for _, s := range w.Steps {
		if s.ID == "" || s.Action == "" {
			return fmt.Errorf("workflow %q: every step needs id and action", w.ID)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[w.ID] = w
	return nil
}

// CancelExecution drops an in-flight execution. Cancellation is cooperative:
// steps not yet dispatched never run, but actions already in flight are not
// interrupted; they finish and their results are discarded.
func (e *Engine) CancelExecution(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ec, ok := e.executions[executionID]
	if !ok {
		return false
	}
	ec.cancel()
	delete(e.executions, executionID)
	return true
}

// RunningExecutions returns the ids of in-flight executions.
func (e *Engine) RunningExecutions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.executions))
	for id := range e.executions {
		ids = append(ids, id)
	}
	return ids
}

// Execute instantiates the named template and runs it to completion.
// Steps run in declaration order; runs of consecutive Parallel steps are
// dispatched concurrently and joined (all-settled) before the next
// sequential step. A required step failing after retries aborts the rest
// and returns a failure Result with the partial step results.
func (e *Engine) Execute(ctx context.Context, templateID string, variables map[string]any) *Result {
	e.mu.RLock()
	tmpl := e.templates[templateID]
	e.mu.RUnlock()

	started := time.Now()
	if tmpl == nil {
		return &Result{
			WorkflowID: templateID,
			Err:        fmt.Errorf("unknown workflow template %q", templateID),
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ec := &ExecutionContext{
		ID:          uuid.NewString(),
		WorkflowID:  tmpl.ID,
		Variables:   make(map[string]any, len(variables)),
		StepResults: make(map[string]*StepResult),
		StartedAt:   started,
		cancel:      cancel,
	}
	for k, v := range variables {
		ec.Variables[k] = v
	}

	e.mu.Lock()
	e.executions[ec.ID] = ec
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.executions, ec.ID)
		e.mu.Unlock()
	}()

	err := e.runSteps(runCtx, tmpl, ec)

	return &Result{
		ExecutionID: ec.ID,
		WorkflowID:  tmpl.ID,
		Success:     err == nil,
		Err:         err,
		Variables:   ec.Variables,
		StepResults: ec.StepResults,
		Elapsed:     time.Since(started),
	}
}

func (e *Engine) runSteps(ctx context.Context, tmpl *Workflow, ec *ExecutionContext) error {
	steps := tmpl.Steps
	for i := 0; i < len(steps); {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("workflow %q canceled: %w", tmpl.ID, err)
		}
		ec.CurrentStep = i

		// Collect a run of consecutive parallel steps.
		if steps[i].Parallel {
			j := i
			for j < len(steps) && steps[j].Parallel {
				j++
			}
			if err := e.runParallelBatch(ctx, steps[i:j], ec); err != nil {
				return err
			}
			i = j
			continue
		}

		res := e.runStep(ctx, &steps[i], ec)
		e.recordResult(ec, res)
		if res.Status == StepFailed {
			return fmt.Errorf("workflow %q step %q: %w", tmpl.ID, res.StepID, res.Err)
		}
		i++
	}
	return nil
}

// runParallelBatch fans out the batch and joins all-settled: every branch
// runs regardless of sibling failures, then any failure aborts the workflow.
func (e *Engine) runParallelBatch(ctx context.Context, batch []Step, ec *ExecutionContext) error {
	outcomes := util.Settle(ctx, batch, parallelWorkerLimit, func(ctx context.Context, s Step) (*StepResult, error) {
		res := e.runStep(ctx, &s, ec)
		return res, res.Err
	})

	var firstErr error
	for _, o := range outcomes {
		e.recordResult(ec, o.Value)
		if o.Value.Status == StepFailed && firstErr == nil {
			firstErr = fmt.Errorf("step %q: %w", o.Value.StepID, o.Value.Err)
		}
	}
	return firstErr
}

func (e *Engine) recordResult(ec *ExecutionContext, res *StepResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ec.StepResults[res.StepID] = res
	if res.Status != StepCompleted {
		return
	}
	// Map declared outputs into the shared variable store.
	step := res.step
	if step == nil {
		return
	}
	for field, alias := range step.Outputs {
		if v, ok := res.Values[field]; ok {
			ec.Variables[alias] = v
		}
	}
}

func (e *Engine) runStep(ctx context.Context, step *Step, ec *ExecutionContext) *StepResult {
	started := time.Now()
	res := &StepResult{StepID: step.ID, step: step}

	e.mu.RLock()
	action := e.actions[step.Action]
	vars := make(map[string]any, len(ec.Variables))
	for k, v := range ec.Variables {
		vars[k] = v
	}
	sc := scope{variables: vars, stepResults: ec.StepResults}
	backoff := e.stepBackoff
	e.mu.RUnlock()

	if step.Condition != nil && !step.Condition(vars) {
		res.Status = StepSkipped
		res.Elapsed = time.Since(started)
		return res
	}
	if action == nil {
		res.Status = StepFailed
		res.Err = fmt.Errorf("unknown action %q", step.Action)
		res.Elapsed = time.Since(started)
		return res
	}

	inputs := sc.resolveInputs(step.Inputs)

	attempts := step.RetryCount + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		out, err := e.invoke(ctx, action, inputs, step.Timeout)
		if err == nil {
			res.Status = StepCompleted
			if out != nil {
				res.Values = out.Values
			}
			res.Elapsed = time.Since(started)
			return res
		}
		lastErr = err
		log.Warn().Err(err).Str("step", step.ID).Int("attempt", attempt).Msg("workflow step failed")
		if attempt < attempts {
			select {
			case <-ctx.Done():
				res.Status = StepFailed
				res.Err = ctx.Err()
				res.Elapsed = time.Since(started)
				return res
			case <-time.After(backoff):
			}
		}
	}

	res.Status = StepFailed
	res.Err = lastErr
	res.Elapsed = time.Since(started)
	return res
}

// invoke races the action against its declared timeout. A timed-out action
// keeps running in its goroutine (cooperative cancellation via ctx) but its
// eventual result is discarded.
func (e *Engine) invoke(ctx context.Context, action Action, inputs map[string]any, timeout time.Duration) (*ActionResult, error) {
	if timeout <= 0 {
		return action.Execute(ctx, inputs)
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *ActionResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := action.Execute(stepCtx, inputs)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-stepCtx.Done():
		return nil, fmt.Errorf("action %q timed out after %s", action.Name(), timeout)
	}
}
