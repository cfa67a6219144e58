// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"regexp"
	"strings"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// closeButtonVocabulary matches button names that are legitimate close
// affordances. Closing any other button is refused so a mis-resolved
// selector cannot dismiss arbitrary UI.
var closeButtonVocabulary = regexp.MustCompile(`(?i)^(close|×|✕|x|dismiss)$`)

// ActivateElement brings the element's window to the foreground.
func (a *Actor) ActivateElement(ctx context.Context, res uia.Resolution) (Result, error) {
	return a.windowOp(res, "activate_element", uia.WindowControl.Activate)
}

// MinimizeWindow minimizes the element's window.
func (a *Actor) MinimizeWindow(ctx context.Context, res uia.Resolution) (Result, error) {
	return a.windowOp(res, "minimize_window", uia.WindowControl.Minimize)
}

// MaximizeWindow maximizes the element's window.
func (a *Actor) MaximizeWindow(ctx context.Context, res uia.Resolution) (Result, error) {
	return a.windowOp(res, "maximize_window", uia.WindowControl.Maximize)
}

func (a *Actor) windowOp(res uia.Resolution, action string, op func(uia.WindowControl) error) (Result, error) {
	el, err := a.windowFor(res.Element)
	if err != nil {
		return Result{}, err
	}
	wc, ok := el.(uia.WindowControl)
	if !ok {
		return Result{}, uia.NewError(uia.KindUnsupportedOperation, "element is not in a controllable window")
	}
	if err := op(wc); err != nil {
		return Result{}, err
	}
	return a.result(action, res.Element, res), nil
}

// windowFor walks up from the element to the nearest window-role ancestor,
// returning the element itself when it is a window already.
func (a *Actor) windowFor(el uia.Element) (uia.Element, error) {
	current := el
	for depth := 0; current != nil && depth <= uia.MaxTreeDepth; depth++ {
		role, err := current.Role()
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(role, "window") {
			return current, nil
		}
		parent, err := current.Parent()
		if err != nil {
			if uia.IsKind(err, uia.KindElementNotFound) {
				break
			}
			return nil, err
		}
		current = parent
	}
	// No window ancestor; the element itself is the best handle we have.
	return el, nil
}

// CloseElement closes the element's window, trying in order: the window
// close capability, a synthesised Alt+F4 on the activated window, and
// finally process termination (graceful, then forced).
//
// When the resolved element is a button rather than a window, closing is
// only permitted if the button's name is a recognised close affordance; the
// button is then simply clicked.
func (a *Actor) CloseElement(ctx context.Context, res uia.Resolution) (Result, error) {
	el := res.Element
	role, err := el.Role()
	if err != nil {
		return Result{}, err
	}
	if strings.EqualFold(role, "button") {
		name, err := el.Name()
		if err != nil {
			return Result{}, err
		}
		if !closeButtonVocabulary.MatchString(strings.TrimSpace(name)) {
			return Result{}, uia.Errorf(uia.KindInvalidArgument,
				"refusing to close button %q: not a close affordance", name)
		}
		out, err := a.Click(ctx, res, ClickOptions{})
		if err != nil {
			return Result{}, err
		}
		out.Action = "close_element"
		out.detail("method", "close_button_click")
		return out, nil
	}

	window, err := a.windowFor(el)
	if err != nil {
		return Result{}, err
	}

	if wc, ok := window.(uia.WindowControl); ok {
		if err := wc.Close(); err == nil {
			out := a.result("close_element", nil, res)
			out.detail("method", "window_close")
			return out, nil
		} else if !uia.IsKind(err, uia.KindUnsupportedOperation) {
			a.log.WithError(err).Debug("window close capability failed, trying Alt+F4")
		}
	}

	if wc, ok := window.(uia.WindowControl); ok {
		if err := wc.Activate(); err == nil {
			if err := a.driver.SendChord(uia.KeyChord{Modifiers: []string{"Alt"}, Key: "F4"}); err == nil {
				out := a.result("close_element", nil, res)
				out.detail("method", "alt_f4")
				return out, nil
			}
		}
	}

	pid, err := window.ProcessID()
	if err != nil {
		return Result{}, uia.NewError(uia.KindPlatformAPI,
			"could not close the window and its process is unknown").WithCause(err)
	}
	if err := a.driver.TerminateProcess(pid, false); err != nil {
		if err := a.driver.TerminateProcess(pid, true); err != nil {
			return Result{}, err
		}
	}
	out := a.result("close_element", nil, res)
	out.detail("method", "terminate_process")
	out.detail("pid", pid)
	return out, nil
}
