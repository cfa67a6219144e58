// Copyright 2025 Joseph Cumines
//
// Helper functions for tool handlers

package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joeycumines/DesktopUseAgent/internal/scripting"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/workflow"
)

// maxDisplayTextLen is the maximum length for text shown in result summaries.
// Longer text is truncated with "..." suffix.
const maxDisplayTextLen = 50

// truncateText truncates text to maxDisplayTextLen characters with "..." suffix if needed.
func truncateText(s string) string {
	if len(s) > maxDisplayTextLen {
		return s[:maxDisplayTextLen] + "..."
	}
	return s
}

// failureEnvelope is the standard error payload every failing tool call
// serialises into its result text.
type failureEnvelope struct {
	ErrorType      string   `json:"error_type"`
	Message        string   `json:"message"`
	Selector       string   `json:"selector,omitempty"`
	SelectorsTried []string `json:"selectors_tried,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
	COMError       string   `json:"com_error,omitempty"`
	IsRetryable    bool     `json:"is_retryable"`

	// Script failures carry the captured output.
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// failureFromError classifies err into the standard envelope. AutomationError
// fields map directly; script and validation errors get their specifics;
// anything else is reported as a platform failure, the conservative choice.
func failureFromError(err error) failureEnvelope {
	var scriptErr *scripting.ScriptError
	if errors.As(err, &scriptErr) {
		code := scriptErr.ExitCode
		return failureEnvelope{
			ErrorType: string(uia.KindScript),
			Message:   scriptErr.Error(),
			Stdout:    scriptErr.Stdout,
			Stderr:    scriptErr.Stderr,
			ExitCode:  &code,
		}
	}

	var valErr *workflow.ValidationError
	if errors.As(err, &valErr) {
		return failureEnvelope{
			ErrorType: string(uia.KindValidation),
			Message:   valErr.Error(),
		}
	}

	var ae *uia.AutomationError
	if errors.As(err, &ae) {
		env := failureEnvelope{
			ErrorType:      string(ae.Kind),
			Message:        ae.Message,
			Selector:       ae.Selector,
			SelectorsTried: ae.SelectorsTried,
			Suggestions:    ae.Suggestions,
			COMError:       ae.COMError,
			IsRetryable:    uia.IsRetryable(ae),
		}
		if len(env.Suggestions) == 0 {
			env.Suggestions = suggestionsFor(ae.Kind)
		}
		return env
	}

	return failureEnvelope{
		ErrorType: string(uia.KindPlatformAPI),
		Message:   err.Error(),
	}
}

// suggestionsFor provides an actionable hint for common failure kinds.
func suggestionsFor(kind uia.ErrorKind) []string {
	switch kind {
	case uia.KindElementNotFound:
		return []string{"inspect the current UI with get_window_tree and adjust the selector"}
	case uia.KindElementNotVisible:
		return []string{"scroll the element into view or activate its window first"}
	case uia.KindElementNotEnabled:
		return []string{"the control is disabled; satisfy its preconditions before acting on it"}
	case uia.KindElementNotStable:
		return []string{"the element is still animating; add a delay before the action"}
	case uia.KindElementDetached:
		return []string{"the element was released by its application; re-resolve the selector"}
	case uia.KindElementObscured:
		return []string{"another element would receive the input; close overlays or use invoke_element"}
	case uia.KindUnsupportedOperation:
		return []string{"the element does not offer this capability; try click_element or a keyboard path"}
	case uia.KindTimeout:
		return []string{"increase timeout_ms if the target appears after an animation or load"}
	case uia.KindPlatformAPI:
		return []string{"the accessibility runtime failed; check that the target application is responsive"}
	default:
		return nil
	}
}

// jsonText marshals v for a tool result body. Marshal failures produce a
// minimal error object rather than panicking mid-response.
func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error_type":"InvalidArgument","message":"unencodable result: %s"}`, err)
	}
	return string(data)
}

// toMap round-trips a typed result envelope through JSON into the generic
// map form the dispatch layer and the workflow interpreter both consume.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, uia.Errorf(uia.KindInvalidArgument, "encode result: %w", err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, uia.Errorf(uia.KindInvalidArgument, "decode result: %w", err)
	}
	return out, nil
}
