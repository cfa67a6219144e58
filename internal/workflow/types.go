// Copyright 2025 Joseph Cumines

// Package workflow loads, validates, and executes workflow documents: ordered
// steps with variable substitution, conditionals, retries, fallback and
// conditional jumps, state persistence, and partial-range execution.
package workflow

import (
	"time"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// reservedResultFields never auto-merge from a step result into the
// environment.
var reservedResultFields = map[string]bool{
	"status":      true,
	"error":       true,
	"logs":        true,
	"duration_ms": true,
	"set_env":     true,
}

// Workflow is the parsed document.
type Workflow struct {
	URL             string `yaml:"url,omitempty" json:"url,omitempty"`
	Steps           []Step `yaml:"steps,omitempty" json:"steps,omitempty"`
	Troubleshooting []Step `yaml:"troubleshooting,omitempty" json:"troubleshooting,omitempty"`

	Variables map[string]VariableDefinition `yaml:"variables,omitempty" json:"variables,omitempty"`
	Inputs    map[string]any                `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	// Selectors may arrive as an object or as a JSON string encoding one.
	Selectors any `yaml:"selectors,omitempty" json:"selectors,omitempty"`

	StopOnError           *bool `yaml:"stop_on_error,omitempty" json:"stop_on_error,omitempty"`
	Continue              *bool `yaml:"continue,omitempty" json:"continue,omitempty"`
	IncludeDetailedResults *bool `yaml:"include_detailed_results,omitempty" json:"include_detailed_results,omitempty"`

	OutputParser map[string]any `yaml:"output_parser,omitempty" json:"output_parser,omitempty"`

	StartFromStep     string `yaml:"start_from_step,omitempty" json:"start_from_step,omitempty"`
	EndAtStep         string `yaml:"end_at_step,omitempty" json:"end_at_step,omitempty"`
	FollowFallback    *bool  `yaml:"follow_fallback,omitempty" json:"follow_fallback,omitempty"`
	ExecuteJumpsAtEnd *bool  `yaml:"execute_jumps_at_end,omitempty" json:"execute_jumps_at_end,omitempty"`

	ScriptsBasePath string `yaml:"scripts_base_path,omitempty" json:"scripts_base_path,omitempty"`
	Verbosity       string `yaml:"verbosity,omitempty" json:"verbosity,omitempty"`

	// dir is the directory of a file://-loaded workflow; empty otherwise.
	// It anchors relative script paths and enables state persistence.
	dir string
	// name is the workflow file's base name without extension.
	name string
}

// Dir returns the workflow's directory for file-loaded workflows.
func (w *Workflow) Dir() string { return w.dir }

// Name returns the workflow's persistence name.
func (w *Workflow) Name() string { return w.name }

// StopsOnError resolves the stop_on_error / continue pair; stopping is the
// default.
func (w *Workflow) StopsOnError() bool {
	if w.Continue != nil {
		return !*w.Continue
	}
	if w.StopOnError != nil {
		return *w.StopOnError
	}
	return true
}

// Detailed reports whether per-step bodies belong in the final envelope.
func (w *Workflow) Detailed() bool {
	return w.IncludeDetailedResults == nil || *w.IncludeDetailedResults
}

// Step is one unit of work: a tool call, or a named group of steps.
type Step struct {
	ID        string         `yaml:"id,omitempty" json:"id,omitempty"`
	ToolName  string         `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	Arguments map[string]any `yaml:"arguments,omitempty" json:"arguments,omitempty"`

	GroupName string `yaml:"group_name,omitempty" json:"group_name,omitempty"`
	Steps     []Step `yaml:"steps,omitempty" json:"steps,omitempty"`
	Skippable bool   `yaml:"skippable,omitempty" json:"skippable,omitempty"`

	If              string `yaml:"if,omitempty" json:"if,omitempty"`
	Retries         int    `yaml:"retries,omitempty" json:"retries,omitempty"`
	ContinueOnError bool   `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
	DelayMs         int64  `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
	Delay           string `yaml:"delay,omitempty" json:"delay,omitempty"`

	FallbackID string `yaml:"fallback_id,omitempty" json:"fallback_id,omitempty"`
	Jumps      []Jump `yaml:"jumps,omitempty" json:"jumps,omitempty"`

	ExpectedUIChanges string `yaml:"expected_ui_changes,omitempty" json:"expected_ui_changes,omitempty"`
}

// IsGroup reports whether the step is a group rather than a tool call.
func (s *Step) IsGroup() bool { return s.GroupName != "" || (s.ToolName == "" && len(s.Steps) > 0) }

// DelayDuration resolves delay_ms / delay (duration string); zero when
// neither is set or the string is malformed.
func (s *Step) DelayDuration() time.Duration {
	if s.DelayMs > 0 {
		return time.Duration(s.DelayMs) * time.Millisecond
	}
	if s.Delay != "" {
		if d, err := time.ParseDuration(s.Delay); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// Jump transfers control to another step when its condition holds.
type Jump struct {
	If     string `yaml:"if" json:"if"`
	ToID   string `yaml:"to_id" json:"to_id"`
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// VariableDefinition is the typed schema for one workflow input. It both
// validates `inputs` and describes the form a planner should render.
type VariableDefinition struct {
	Type        string   `yaml:"type" json:"type"`
	Label       string   `yaml:"label,omitempty" json:"label,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Required    *bool    `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any      `yaml:"default,omitempty" json:"default,omitempty"`
	Regex       string   `yaml:"regex,omitempty" json:"regex,omitempty"`
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`

	ValueSchema map[string]any                `yaml:"value_schema,omitempty" json:"value_schema,omitempty"`
	Properties  map[string]VariableDefinition `yaml:"properties,omitempty" json:"properties,omitempty"`
	ItemSchema  *VariableDefinition           `yaml:"item_schema,omitempty" json:"item_schema,omitempty"`
}

// IsRequired defaults to true: an input without required:false must be
// supplied or have a default.
func (v *VariableDefinition) IsRequired() bool {
	return v.Required == nil || *v.Required
}

// StepResult is one executed step's record in the final envelope.
type StepResult struct {
	Index    int            `json:"index"`
	ID       string         `json:"id,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	GroupName string        `json:"group_name,omitempty"`
	Status   string         `json:"status"` // success | failed | skipped
	Error    string         `json:"error,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	Duration time.Duration  `json:"-"`
	DurationMs int64        `json:"duration_ms"`
	Result   map[string]any `json:"result,omitempty"`
}

// Transfer records one control transfer (jump or fallback) for the failure
// backtrace.
type Transfer struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Kind   string `json:"kind"` // "jump" | "fallback"
	Reason string `json:"reason,omitempty"`
}

// RunResult is the final envelope for one workflow execution.
type RunResult struct {
	Status          string         `json:"status"` // success | partial_failure | failed
	ExecutedSteps   int            `json:"executed_steps"`
	ExecutedTools   []string       `json:"executed_tools"`
	TotalDurationMs int64          `json:"total_duration_ms"`
	PerStepResults  []StepResult   `json:"per_step_results,omitempty"`
	SetEnv          map[string]any `json:"set_env,omitempty"`
	Logs            []string       `json:"logs,omitempty"`
	Error           string         `json:"error,omitempty"`
	FailedStepID    string         `json:"failed_step_id,omitempty"`
	Transfers       []Transfer     `json:"transfers,omitempty"`
	ParsedOutput    any            `json:"parsed_output,omitempty"`
}

// ValidationError describes one workflow-level validation failure.
type ValidationError struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (e *ValidationError) Error() string {
	return "validation failed: field " + e.Field + ": expected " + e.Expected + ", got " + e.Actual
}

// AsAutomationError converts a validation failure to the shared error shape.
func (e *ValidationError) AsAutomationError() *uia.AutomationError {
	return uia.NewError(uia.KindValidation, e.Error())
}
