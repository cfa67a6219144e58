// Copyright 2025 Joseph Cumines

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joeycumines/DesktopUseAgent/internal/expr"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/vars"
)

// defaultRetryGap separates retry attempts, skipped when the failed attempt
// itself timed out.
const defaultRetryGap = 250 * time.Millisecond

// iterationMultiplier bounds total iterations at len(steps) * this factor,
// so a jump cycle terminates instead of spinning forever.
const iterationMultiplier = 10

// ToolExecutor dispatches one named tool call. The returned map is the
// tool's result body; a non-nil error marks the attempt failed.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, args map[string]any) (map[string]any, error)
}

// ToolExecutorFunc adapts a function to ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, toolName string, args map[string]any) (map[string]any, error)

func (f ToolExecutorFunc) Execute(ctx context.Context, toolName string, args map[string]any) (map[string]any, error) {
	return f(ctx, toolName, args)
}

// Runner executes workflows against a ToolExecutor.
type Runner struct {
	Exec     ToolExecutor
	Log      logrus.FieldLogger
	RetryGap time.Duration
}

// NewRunner returns a Runner with default retry spacing.
func NewRunner(exec ToolExecutor, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{Exec: exec, Log: log, RetryGap: defaultRetryGap}
}

// run carries the per-execution state of one workflow run.
type run struct {
	r   *Runner
	w   *Workflow
	env map[string]any

	items   []Step // steps then troubleshooting
	mainLen int
	idIndex map[string]int

	result   RunResult
	executed []string // ids of successfully completed steps, in order

	// resumeIndex is where control returns after a fallback into the
	// troubleshooting region completes successfully; -1 when unarmed.
	resumeIndex int
}

// Run validates and executes the workflow. The returned envelope is always
// populated; the error is non-nil only for validation or load-state
// failures that prevent execution from starting.
func (r *Runner) Run(ctx context.Context, w *Workflow) (*RunResult, error) {
	inputs, err := w.Validate()
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(inputs)+8)
	for k, v := range inputs {
		env[k] = v
	}
	for k, v := range w.SelectorMap() {
		env[k] = v
	}

	rn := &run{
		r:           r,
		w:           w,
		env:         env,
		items:       append(append([]Step{}, w.Steps...), w.Troubleshooting...),
		mainLen:     len(w.Steps),
		resumeIndex: -1,
	}
	rn.result.SetEnv = map[string]any{}
	rn.indexSteps()

	start := 0
	if w.StartFromStep != "" {
		idx, ok := rn.idIndex[w.StartFromStep]
		if !ok {
			return nil, &ValidationError{Field: "start_from_step", Expected: "an existing step id", Actual: w.StartFromStep}
		}
		st, err := w.LoadState()
		if err != nil {
			return nil, err
		}
		if st != nil {
			for k, v := range st.Environment {
				if _, present := rn.env[k]; !present {
					rn.env[k] = v
				}
			}
			rn.executed = append(rn.executed, st.StepsExecuted...)
		}
		start = idx
	}

	rn.execute(ctx, start)

	if w.OutputParser != nil && rn.result.Status != "failed" {
		parsed, perr := w.ParseOutput(rn.env)
		if perr != nil {
			r.Log.WithError(perr).Warn("output parsing failed")
		} else {
			rn.result.ParsedOutput = parsed
		}
	}
	return &rn.result, nil
}

// indexSteps maps every step id to its top-level index; ids nested inside a
// group map to the group's index, so transfers land on the whole group.
func (rn *run) indexSteps() {
	rn.idIndex = make(map[string]int, len(rn.items))
	var walk func(idx int, steps []Step)
	walk = func(idx int, steps []Step) {
		for i := range steps {
			if steps[i].ID != "" {
				rn.idIndex[steps[i].ID] = idx
			}
			if steps[i].IsGroup() {
				walk(idx, steps[i].Steps)
			}
		}
	}
	for i := range rn.items {
		if rn.items[i].ID != "" {
			rn.idIndex[rn.items[i].ID] = i
		}
		if rn.items[i].IsGroup() {
			walk(i, rn.items[i].Steps)
		}
	}
}

func (rn *run) execute(ctx context.Context, start int) {
	began := time.Now()
	defer func() {
		rn.result.TotalDurationMs = time.Since(began).Milliseconds()
		if rn.result.Status == "" {
			rn.result.Status = "success"
		}
		if !rn.w.Detailed() {
			rn.result.PerStepResults = nil
		}
	}()

	endIndex := len(rn.items) - 1
	haltAfter := -1
	if rn.w.EndAtStep != "" {
		if idx, ok := rn.idIndex[rn.w.EndAtStep]; ok {
			haltAfter = idx
		}
	}

	maxIterations := len(rn.items) * iterationMultiplier
	sawFailure := false
	current := start

loop:
	for iterations := 0; current >= 0 && current <= endIndex; iterations++ {
		if iterations >= maxIterations {
			rn.fail("", fmt.Sprintf("exceeded maximum iterations (%d); aborting to break a jump cycle", maxIterations))
			return
		}
		if err := ctx.Err(); err != nil {
			rn.fail(rn.items[current].ID, "execution cancelled: "+err.Error())
			return
		}

		step := &rn.items[current]
		sr := rn.runStep(ctx, current, step)
		rn.result.PerStepResults = append(rn.result.PerStepResults, sr)
		if sr.Status != "skipped" {
			rn.result.ExecutedSteps++
			if step.ToolName != "" {
				rn.result.ExecutedTools = append(rn.result.ExecutedTools, step.ToolName)
			}
		}

		atBoundary := current == haltAfter
		next := current + 1

		switch sr.Status {
		case "failed":
			sawFailure = true
			if step.FallbackID != "" {
				if atBoundary && !rn.boolOpt(rn.w.FollowFallback) {
					rn.log().WithField("step", step.ID).Debug("fallback suppressed at end_at_step boundary")
					break loop
				}
				if idx, ok := rn.idIndex[step.FallbackID]; ok {
					rn.result.Transfers = append(rn.result.Transfers, Transfer{
						FromID: step.ID, ToID: step.FallbackID, Kind: "fallback",
					})
					if idx >= rn.mainLen && current < rn.mainLen {
						rn.resumeIndex = current + 1
					}
					current = idx
					continue
				}
				rn.log().WithField("fallback_id", step.FallbackID).Warn("fallback target not found; continuing")
			} else if !step.ContinueOnError && rn.w.StopsOnError() {
				rn.fail(step.ID, sr.Error)
				return
			}
		case "success":
			if jumpTo, tr, ok := rn.firstJump(step); ok {
				if atBoundary && !rn.boolOpt(rn.w.ExecuteJumpsAtEnd) {
					rn.log().WithField("step", step.ID).Debug("jump suppressed at end_at_step boundary")
				} else {
					rn.result.Transfers = append(rn.result.Transfers, tr)
					next = jumpTo
					atBoundary = false
				}
			} else if current >= rn.mainLen && rn.resumeIndex >= 0 {
				// Troubleshooting chain finished; return to the step after
				// the one whose fallback brought us here.
				next = rn.resumeIndex
				rn.resumeIndex = -1
				atBoundary = false
			}
		}

		if sr.Status != "skipped" {
			if d := step.DelayDuration(); d > 0 {
				if err := sleep(ctx, d); err != nil {
					rn.fail(step.ID, err.Error())
					return
				}
			}
		}

		if sr.Status == "success" {
			rn.persist(step)
		}

		if atBoundary {
			break
		}
		// Sequential flow never crosses into troubleshooting; those steps
		// run only via an explicit transfer.
		if current < rn.mainLen && next >= rn.mainLen && next == current+1 {
			break
		}
		current = next
	}

	if sawFailure {
		rn.result.Status = "partial_failure"
	}
}

// runStep applies the full per-step pipeline: condition, substitution,
// dispatch with retries, and environment bookkeeping.
func (rn *run) runStep(ctx context.Context, index int, step *Step) StepResult {
	sr := StepResult{Index: index, ID: step.ID, ToolName: step.ToolName, GroupName: step.GroupName}
	began := time.Now()
	defer func() {
		sr.Duration = time.Since(began)
		sr.DurationMs = sr.Duration.Milliseconds()
	}()

	if step.If != "" && !expr.Evaluate(step.If, rn.env) {
		sr.Status = "skipped"
		rn.log().WithFields(logrus.Fields{"step": step.ID, "if": step.If}).Debug("condition false; step skipped")
		return sr
	}

	var value map[string]any
	var err error
	if step.IsGroup() {
		// A non-skippable group retries as a unit.
		for attempt := 0; attempt <= step.Retries; attempt++ {
			if attempt > 0 && !uia.IsKind(err, uia.KindTimeout) {
				if serr := sleep(ctx, rn.retryGap()); serr != nil {
					err = serr
					break
				}
			}
			sr.Attempts = attempt + 1
			value, err = rn.runGroup(ctx, step)
			if err == nil {
				break
			}
		}
	} else {
		value, err = rn.attempt(ctx, step, &sr)
	}

	if err != nil {
		sr.Status = "failed"
		sr.Error = err.Error()
		if step.ID != "" {
			rn.env[step.ID+"_status"] = "error"
		}
		rn.log().WithFields(logrus.Fields{"step": step.ID, "tool": step.ToolName}).WithError(err).Warn("step failed")
		return sr
	}

	sr.Status = "success"
	sr.Result = value
	rn.mergeResult(step, value)
	return sr
}

// attempt dispatches the tool call with retries. The gap between attempts is
// skipped when the failed attempt itself timed out.
func (rn *run) attempt(ctx context.Context, step *Step, sr *StepResult) (map[string]any, error) {
	args, _ := vars.Substitute(step.Arguments, rn.env).(map[string]any)

	var lastErr error
	for attempt := 0; attempt <= step.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, uia.Errorf(uia.KindTimeout, "cancelled before attempt: %w", err)
		}
		if attempt > 0 && !uia.IsKind(lastErr, uia.KindTimeout) {
			if err := sleep(ctx, rn.retryGap()); err != nil {
				return nil, err
			}
		}
		sr.Attempts = attempt + 1
		value, err := rn.r.Exec.Execute(ctx, step.ToolName, args)
		if err == nil {
			return value, nil
		}
		// validate_element reports absence as a result, never as a failure.
		if step.ToolName == "validate_element" {
			return map[string]any{"status": "failed", "exists": false, "reason": err.Error()}, nil
		}
		lastErr = err
		rn.log().WithFields(logrus.Fields{
			"step": step.ID, "tool": step.ToolName, "attempt": attempt + 1,
		}).WithError(err).Debug("tool call failed")
	}
	return nil, lastErr
}

// runGroup executes a group's members in order. A skippable group tolerates
// member failures; otherwise the first failure fails the group. Member-level
// fallback_id and jumps are not honoured inside groups.
func (rn *run) runGroup(ctx context.Context, group *Step) (map[string]any, error) {
	value := map[string]any{"group_name": group.GroupName, "members": len(group.Steps)}
	var failures []string
	for i := range group.Steps {
		member := &group.Steps[i]
		sr := StepResult{Index: i, ID: member.ID, ToolName: member.ToolName}
		if member.If != "" && !expr.Evaluate(member.If, rn.env) {
			continue
		}
		mv, err := rn.attempt(ctx, member, &sr)
		if err != nil {
			if member.ID != "" {
				rn.env[member.ID+"_status"] = "error"
			}
			if member.ContinueOnError || group.Skippable {
				failures = append(failures, member.ID)
				continue
			}
			return nil, uia.Errorf(uia.KindOf(err), "group %q member %q: %w", group.GroupName, member.ID, err)
		}
		rn.mergeResult(member, mv)
		if d := member.DelayDuration(); d > 0 {
			if err := sleep(ctx, d); err != nil {
				return nil, err
			}
		}
	}
	if len(failures) > 0 {
		value["skipped_members"] = failures
	}
	return value, nil
}

// mergeResult stores {id}_result / {id}_status and auto-merges non-reserved
// top-level fields plus any set_env block.
func (rn *run) mergeResult(step *Step, value map[string]any) {
	if step.ID != "" {
		rn.env[step.ID+"_result"] = value
		rn.env[step.ID+"_status"] = "success"
	}
	for k, v := range value {
		if reservedResultFields[k] {
			continue
		}
		rn.env[k] = v
	}
	if setEnv, ok := value["set_env"].(map[string]any); ok {
		for k, v := range setEnv {
			rn.env[k] = v
			rn.result.SetEnv[k] = v
		}
	}
	if logs, ok := value["logs"].([]any); ok && rn.w.Verbosity == "debug" {
		for _, l := range logs {
			rn.result.Logs = append(rn.result.Logs, fmt.Sprint(l))
		}
	}
}

// firstJump returns the target index of the first jump whose condition holds.
func (rn *run) firstJump(step *Step) (int, Transfer, bool) {
	for _, j := range step.Jumps {
		if j.If == "" || expr.Evaluate(j.If, rn.env) {
			idx, ok := rn.idIndex[j.ToID]
			if !ok {
				continue
			}
			return idx, Transfer{FromID: step.ID, ToID: j.ToID, Kind: "jump", Reason: j.Reason}, true
		}
	}
	return 0, Transfer{}, false
}

// persist snapshots the environment after a successful step.
func (rn *run) persist(step *Step) {
	if step.ID != "" {
		rn.executed = append(rn.executed, step.ID)
	}
	st := &State{
		Environment:   cloneEnv(rn.env),
		StepsExecuted: append([]string{}, rn.executed...),
	}
	if len(rn.executed) > 0 {
		st.LastCompletedStepID = rn.executed[len(rn.executed)-1]
	}
	if err := rn.w.SaveState(st); err != nil {
		rn.log().WithError(err).Warn("state persistence failed")
	}
}

func (rn *run) fail(stepID, msg string) {
	rn.result.Status = "failed"
	rn.result.Error = msg
	rn.result.FailedStepID = stepID
}

func (rn *run) boolOpt(p *bool) bool { return p != nil && *p }

func (rn *run) retryGap() time.Duration {
	if rn.r.RetryGap > 0 {
		return rn.r.RetryGap
	}
	return defaultRetryGap
}

func (rn *run) log() logrus.FieldLogger {
	if rn.r.Log != nil {
		return rn.r.Log
	}
	return logrus.StandardLogger()
}

func cloneEnv(env map[string]any) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return uia.Errorf(uia.KindTimeout, "sleep interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
