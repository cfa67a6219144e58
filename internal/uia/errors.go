// Copyright 2025 Joseph Cumines
//
// Error kinds for accessibility operations

package uia

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies automation failures. The values are stable identifiers
// that appear verbatim in tool error envelopes as error_type.
type ErrorKind string

const (
	// KindInvalidArgument indicates malformed tool arguments, a bad selector
	// expression, or an invalid condition string.
	KindInvalidArgument ErrorKind = "InvalidArgument"
	// KindElementNotFound indicates every selector in a group failed.
	KindElementNotFound ErrorKind = "ElementNotFound"
	// KindElementNotVisible indicates the element is off screen or has no
	// visible presentation.
	KindElementNotVisible ErrorKind = "ElementNotVisible"
	// KindElementNotEnabled indicates the element is disabled for input.
	KindElementNotEnabled ErrorKind = "ElementNotEnabled"
	// KindElementNotStable indicates the element's bounds kept changing while
	// waiting for a stable layout.
	KindElementNotStable ErrorKind = "ElementNotStable"
	// KindElementDetached indicates the underlying handle no longer resolves,
	// typically because the owning process released it.
	KindElementDetached ErrorKind = "ElementDetached"
	// KindElementObscured indicates another element would receive the input.
	KindElementObscured ErrorKind = "ElementObscured"
	// KindScrollFailed indicates the element could not be scrolled into view.
	KindScrollFailed ErrorKind = "ScrollFailed"
	// KindPlatformAPI indicates a system-level failure from the accessibility
	// runtime itself. It is never treated as a selector miss.
	KindPlatformAPI ErrorKind = "UIAutomationAPIError"
	// KindUnsupportedOperation indicates the resolved element does not offer
	// the requested capability.
	KindUnsupportedOperation ErrorKind = "UnsupportedOperation"
	// KindTimeout indicates a bounded wait elapsed.
	KindTimeout ErrorKind = "Timeout"
	// KindValidation indicates workflow-level validation failed.
	KindValidation ErrorKind = "ValidationError"
	// KindScript indicates an inline-script step exited non-zero or threw.
	KindScript ErrorKind = "ScriptError"
	// KindVerificationFailed indicates a post-action verification did not
	// satisfy the stated postcondition.
	KindVerificationFailed ErrorKind = "VerificationFailed"
)

// AutomationError is the error type for all accessibility and action
// failures. Kind is always set; the remaining fields are populated where the
// failure site has them.
type AutomationError struct {
	Kind           ErrorKind
	Message        string
	Selector       string
	SelectorsTried []string
	Suggestions    []string
	// COMError carries the platform error code text for KindPlatformAPI.
	COMError  string
	Operation string
	Retryable bool
	cause     error
}

func (e *AutomationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Selector != "" {
		fmt.Fprintf(&b, " (selector: %s)", e.Selector)
	}
	return b.String()
}

func (e *AutomationError) Unwrap() error { return e.cause }

// NewError creates an AutomationError with the given kind and message.
func NewError(kind ErrorKind, message string) *AutomationError {
	return &AutomationError{Kind: kind, Message: message}
}

// Errorf creates an AutomationError with a formatted message. A trailing %w
// verb is honoured as the wrapped cause.
func Errorf(kind ErrorKind, format string, args ...any) *AutomationError {
	err := fmt.Errorf(format, args...)
	return &AutomationError{Kind: kind, Message: err.Error(), cause: errors.Unwrap(err)}
}

// WithSelector returns e with the offending selector recorded.
func (e *AutomationError) WithSelector(selector string) *AutomationError {
	e.Selector = selector
	return e
}

// WithCause returns e wrapping cause.
func (e *AutomationError) WithCause(cause error) *AutomationError {
	e.cause = cause
	return e
}

// KindOf extracts the ErrorKind from err, unwrapping as needed. Errors that
// are not AutomationError report KindPlatformAPI, the conservative choice for
// anything the accessibility layer returned raw.
func KindOf(err error) ErrorKind {
	var ae *AutomationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindPlatformAPI
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is worth retrying. Selector misses and
// timeouts are retryable; platform API errors only when flagged.
func IsRetryable(err error) bool {
	var ae *AutomationError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Kind {
	case KindElementNotFound, KindTimeout, KindElementNotStable, KindElementObscured:
		return true
	case KindPlatformAPI:
		return ae.Retryable
	default:
		return false
	}
}

// PlatformError creates a KindPlatformAPI error with the platform error code
// text and the failing operation recorded.
func PlatformError(operation, comError string, retryable bool, message string) *AutomationError {
	return &AutomationError{
		Kind:      KindPlatformAPI,
		Message:   message,
		COMError:  comError,
		Operation: operation,
		Retryable: retryable,
	}
}
