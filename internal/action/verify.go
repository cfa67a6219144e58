// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"time"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/uidiff"
)

// VerifyOptions are the post-action verification arguments shared by every
// element-targeting tool.
type VerifyOptions struct {
	ExistsSelector    string
	NotExistsSelector string
	Timeout           time.Duration
}

// VerifyOutcome reports one postcondition check.
type VerifyOutcome struct {
	Selector string `json:"selector"`
	Mode     string `json:"mode"` // "exists" or "not_exists"
	Passed   bool   `json:"passed"`
	Scope    string `json:"scope,omitempty"` // where a match was found
}

// VerifyPostconditions runs the configured checks against the application
// owning anchor, falling back to a desktop-wide search. A failed check
// returns KindVerificationFailed with the outcome attached to the error
// message; callers decide whether that fails the step.
func (a *Actor) VerifyPostconditions(ctx context.Context, anchor uia.Element, opts VerifyOptions) ([]VerifyOutcome, error) {
	var outcomes []VerifyOutcome

	if opts.ExistsSelector != "" {
		outcome := a.verifyOne(ctx, anchor, opts.ExistsSelector, opts.Timeout, true)
		outcomes = append(outcomes, outcome)
		if !outcome.Passed {
			return outcomes, uia.Errorf(uia.KindVerificationFailed,
				"expected %q to exist after the action", opts.ExistsSelector)
		}
	}
	if opts.NotExistsSelector != "" {
		outcome := a.verifyOne(ctx, anchor, opts.NotExistsSelector, opts.Timeout, false)
		outcomes = append(outcomes, outcome)
		if !outcome.Passed {
			return outcomes, uia.Errorf(uia.KindVerificationFailed,
				"expected %q to be gone after the action", opts.NotExistsSelector)
		}
	}
	return outcomes, nil
}

func (a *Actor) verifyOne(ctx context.Context, anchor uia.Element, selector string, timeout time.Duration, wantExists bool) VerifyOutcome {
	if timeout <= 0 {
		timeout = uia.DefaultLocateTimeout
	}
	mode := "not_exists"
	if wantExists {
		mode = "exists"
	}
	outcome := VerifyOutcome{Selector: selector, Mode: mode}

	// A not-exists check wants a quick look, not a patient wait for the
	// element to appear; an exists check uses the full timeout.
	searchTimeout := timeout
	if !wantExists {
		searchTimeout = min(timeout, 500*time.Millisecond)
	}

	found := false
	scope := ""
	if anchor != nil {
		if app, err := anchor.Application(); err == nil {
			if _, err := a.locator.Resolve(ctx, uia.Query{
				Primary: selector, Scope: app, Timeout: searchTimeout,
			}); err == nil {
				found = true
				scope = "application"
			}
		}
	}
	if !found {
		if _, err := a.locator.Resolve(ctx, uia.Query{
			Primary: selector, Timeout: searchTimeout,
		}); err == nil {
			found = true
			scope = "desktop"
		}
	}

	outcome.Passed = found == wantExists
	if found {
		outcome.Scope = scope
	}
	return outcome
}

// diffSettle is the pause between the action and the "after" capture,
// giving the application a beat to repaint.
const diffSettle = 150 * time.Millisecond

// DiffOptions configures a before/after tree diff around an action.
type DiffOptions struct {
	PID     int32
	Tree    uidiff.Options
	Enabled bool
}

// WithUIDiff captures the target application's tree, runs the action, waits
// for the UI to settle, captures again, and attaches the diff to the
// action's result. Capture failures degrade to "no diff available" rather
// than failing an otherwise-successful action.
func (a *Actor) WithUIDiff(ctx context.Context, opts DiffOptions, run func() (Result, error)) (Result, error) {
	if !opts.Enabled || opts.PID == 0 {
		return run()
	}

	before := a.captureTree(ctx, opts)

	out, err := run()
	if err != nil {
		return out, err
	}

	if waitErr := uia.WaitSettle(ctx, diffSettle); waitErr != nil {
		return out, nil
	}
	after := a.captureTree(ctx, opts)

	report := &DiffReport{}
	if before == "" || after == "" {
		report.Diff = "no diff available"
	} else {
		report.Diff, report.HasChanges = uidiff.Diff(before, after)
		report.TreeBefore = before
		report.TreeAfter = after
	}
	out.UIDiff = report
	return out, nil
}

func (a *Actor) captureTree(ctx context.Context, opts DiffOptions) string {
	app, err := a.driver.ApplicationByPID(opts.PID)
	if err != nil {
		a.log.WithError(err).WithField("pid", opts.PID).Debug("tree capture skipped")
		return ""
	}
	rendered, err := uidiff.CaptureRendered(ctx, app, a.cache, opts.Tree)
	if err != nil {
		a.log.WithError(err).Debug("tree capture failed")
		return ""
	}
	return rendered
}
