// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"strings"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// ClickOptions tunes Click and its variants.
type ClickOptions struct {
	Button uia.MouseButton
	Clicks int
	// VerifyAction re-reads the element after dispatch; on by default at
	// the dispatch layer.
	VerifyAction bool
	// SkipActionability dispatches without the readiness checks. Used by
	// the close fallback, never exposed as a tool argument.
	SkipActionability bool
}

// Click validates actionability and dispatches a pointer click at the
// element's clickable point. The envelope's details carry the state
// transitions the click went through, so a failure report shows exactly how
// far it got.
func (a *Actor) Click(ctx context.Context, res uia.Resolution, opts ClickOptions) (Result, error) {
	if opts.Button == "" {
		opts.Button = uia.MouseLeft
	}
	if opts.Clicks <= 0 {
		opts.Clicks = 1
	}
	el := res.Element

	transitions := []string{"idle"}
	fail := func(err error) (Result, error) {
		a.log.WithError(err).WithField("selector", res.Selector).
			WithField("transitions", strings.Join(transitions, ">")).
			Debug("click aborted")
		return Result{}, err
	}

	validated := false
	if !opts.SkipActionability {
		transitions = append(transitions, "waiting_stable")
		if err := a.ensureActionable(ctx, el); err != nil {
			return fail(err)
		}
		transitions = append(transitions, "stable")
		validated = true
	}

	bounds, err := el.Bounds()
	if err != nil {
		return fail(err)
	}
	x, y := clickPoint(bounds)
	if err := a.driver.MouseClick(opts.Button, x, y, opts.Clicks); err != nil {
		return fail(err)
	}
	transitions = append(transitions, "dispatched")

	out := a.result("click", el, res)
	out.detail("validated", validated)
	out.detail("button", string(opts.Button))
	out.detail("clicks", opts.Clicks)
	out.detail("coordinates", map[string]int{"x": x, "y": y})

	if opts.VerifyAction {
		transitions = append(transitions, a.verifyClick(el))
	}
	out.detail("transitions", transitions)
	return out, nil
}

// verifyClick re-reads the element after dispatch. A detached handle is a
// normal outcome (the click dismissed a menu or closed a dialog); only a
// platform API failure marks the verification failed.
func (a *Actor) verifyClick(el uia.Element) string {
	if _, err := el.Bounds(); err != nil && uia.IsKind(err, uia.KindPlatformAPI) {
		return "verify_failed"
	}
	return "verified_success"
}

// DoubleClick dispatches a two-click sequence with full actionability
// validation.
func (a *Actor) DoubleClick(ctx context.Context, res uia.Resolution) (Result, error) {
	out, err := a.Click(ctx, res, ClickOptions{Clicks: 2})
	if err != nil {
		return Result{}, err
	}
	out.Action = "double_click"
	return out, nil
}

// RightClick opens the element's context menu.
func (a *Actor) RightClick(ctx context.Context, res uia.Resolution) (Result, error) {
	out, err := a.Click(ctx, res, ClickOptions{Button: uia.MouseRight})
	if err != nil {
		return Result{}, err
	}
	out.Action = "right_click"
	return out, nil
}

// Invoke fires the element's accessibility invoke capability. It skips the
// viewport checks entirely, which makes it the preferred activation when the
// element supports it: off-screen or overlapped controls still invoke.
func (a *Actor) Invoke(ctx context.Context, res uia.Resolution) (Result, error) {
	el := res.Element
	inv, ok := el.(uia.Invokable)
	if !ok {
		return Result{}, uia.NewError(uia.KindUnsupportedOperation, "element has no invoke capability")
	}
	if err := inv.Invoke(); err != nil {
		return Result{}, err
	}
	out := a.result("invoke_element", el, res)
	out.detail("method", "accessibility_invoke")
	return out, nil
}

// MouseDrag presses at the source, moves, and releases at the destination.
func (a *Actor) MouseDrag(ctx context.Context, res uia.Resolution, toX, toY int) (Result, error) {
	el := res.Element
	if err := a.ensureActionable(ctx, el); err != nil {
		return Result{}, err
	}
	bounds, err := el.Bounds()
	if err != nil {
		return Result{}, err
	}
	fromX, fromY := clickPoint(bounds)
	if err := a.driver.MouseDrag(uia.MouseLeft, fromX, fromY, toX, toY); err != nil {
		return Result{}, err
	}
	out := a.result("mouse_drag", el, res)
	out.detail("from", map[string]int{"x": fromX, "y": fromY})
	out.detail("to", map[string]int{"x": toX, "y": toY})
	return out, nil
}
