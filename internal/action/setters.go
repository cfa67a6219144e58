// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"math"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// SetValue writes the value through the accessibility value capability,
// falling back to clear-and-type when the element does not offer one.
func (a *Actor) SetValue(ctx context.Context, res uia.Resolution, value string) (Result, error) {
	el := res.Element
	if editor, ok := el.(uia.ValueEditable); ok {
		if err := editor.SetValue(value); err == nil {
			out := a.result("set_value", el, res)
			out.detail("method", "accessibility_value")
			return out, nil
		} else if !uia.IsKind(err, uia.KindUnsupportedOperation) {
			return Result{}, err
		}
	}
	out, err := a.TypeInto(ctx, res, value, TypeOptions{ClearBefore: true})
	if err != nil {
		return Result{}, err
	}
	out.Action = "set_value"
	return out, nil
}

// SetToggled drives a two-state control to the desired state. Reading the
// current state first makes the operation idempotent: an already-correct
// control is left alone and reported as such.
func (a *Actor) SetToggled(ctx context.Context, res uia.Resolution, desired bool) (Result, error) {
	el := res.Element
	current, err := el.Toggled()
	if err != nil {
		return Result{}, err
	}
	out := a.result("set_toggled", el, res)
	out.detail("desired_state", desired)
	if current == desired {
		out.detail("changed", false)
		return out, nil
	}

	if toggler, ok := el.(uia.Toggleable); ok {
		if err := toggler.Toggle(); err == nil {
			out.detail("changed", true)
			out.detail("method", "accessibility_toggle")
			return out, nil
		} else if !uia.IsKind(err, uia.KindUnsupportedOperation) {
			return Result{}, err
		}
	}

	clicked, err := a.Click(ctx, res, ClickOptions{})
	if err != nil {
		return Result{}, err
	}
	clicked.Action = "set_toggled"
	clicked.detail("desired_state", desired)
	clicked.detail("changed", true)
	clicked.detail("method", "click")
	return clicked, nil
}

// SetSelected selects or deselects the element. Selection capability is
// preferred, toggling second; clicking is the last resort and only for
// selecting, since a click on a radio-style control cannot deselect it.
func (a *Actor) SetSelected(ctx context.Context, res uia.Resolution, desired bool) (Result, error) {
	el := res.Element
	current, err := el.Selected()
	if err != nil {
		return Result{}, err
	}
	out := a.result("set_selected", el, res)
	out.detail("desired_state", desired)
	if current == desired {
		out.detail("changed", false)
		return out, nil
	}

	if desired {
		if sel, ok := el.(uia.Selectable); ok {
			if err := sel.Select(); err == nil {
				out.detail("changed", true)
				out.detail("method", "accessibility_select")
				return out, nil
			} else if !uia.IsKind(err, uia.KindUnsupportedOperation) {
				return Result{}, err
			}
		}
	}

	if toggler, ok := el.(uia.Toggleable); ok {
		if err := toggler.Toggle(); err == nil {
			out.detail("changed", true)
			out.detail("method", "accessibility_toggle")
			return out, nil
		} else if !uia.IsKind(err, uia.KindUnsupportedOperation) {
			return Result{}, err
		}
	}

	if !desired {
		return Result{}, uia.NewError(uia.KindUnsupportedOperation,
			"element offers no way to deselect; clicking could not guarantee it")
	}
	clicked, err := a.Click(ctx, res, ClickOptions{})
	if err != nil {
		return Result{}, err
	}
	clicked.Action = "set_selected"
	clicked.detail("desired_state", desired)
	clicked.detail("changed", true)
	clicked.detail("method", "click")
	return clicked, nil
}

// SetRangeValue sets a range-valued control, preferring the accessibility
// range capability and falling back to keyboard stepping from whichever end
// of the range is nearer.
func (a *Actor) SetRangeValue(ctx context.Context, res uia.Resolution, value float64) (Result, error) {
	el := res.Element
	ranged, ok := el.(uia.Ranged)
	if !ok {
		return Result{}, uia.NewError(uia.KindUnsupportedOperation, "element has no range capability")
	}
	info, err := ranged.RangeInfo()
	if err != nil {
		return Result{}, err
	}
	if value < info.Minimum || value > info.Maximum {
		return Result{}, uia.Errorf(uia.KindInvalidArgument,
			"value %v outside range [%v, %v]", value, info.Minimum, info.Maximum)
	}

	if err := ranged.SetRangeValue(value); err == nil {
		out := a.result("set_range_value", el, res)
		out.detail("value", value)
		out.detail("method", "accessibility_range")
		return out, nil
	} else if !uia.IsKind(err, uia.KindUnsupportedOperation) {
		return Result{}, err
	}

	steps, fromEnd, err := rangeSteps(info, value)
	if err != nil {
		return Result{}, err
	}
	if err := el.Focus(); err != nil {
		return Result{}, err
	}
	anchor, step := "Home", "Right"
	if fromEnd {
		anchor, step = "End", "Left"
	}
	if err := a.driver.SendChord(uia.KeyChord{Key: anchor}); err != nil {
		return Result{}, err
	}
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, uia.Errorf(uia.KindTimeout, "range stepping cancelled: %w", err)
		}
		if err := a.driver.SendChord(uia.KeyChord{Key: step}); err != nil {
			return Result{}, err
		}
	}
	out := a.result("set_range_value", el, res)
	out.detail("value", value)
	out.detail("method", "keyboard_stepping")
	out.detail("steps", steps)
	out.detail("anchor", anchor)
	return out, nil
}

// rangeSteps chooses the nearer anchor (Home or End) and the number of
// small-change steps from it, rounding the target to the nearest step.
func rangeSteps(info uia.RangeInfo, value float64) (steps int, fromEnd bool, err error) {
	small := info.SmallChange
	if small <= 0 {
		return 0, false, uia.NewError(uia.KindUnsupportedOperation,
			"range control reports no small-change step for keyboard fallback")
	}
	fromStart := int(math.Round((value - info.Minimum) / small))
	fromEndSteps := int(math.Round((info.Maximum - value) / small))
	if fromEndSteps < fromStart {
		return fromEndSteps, true, nil
	}
	return fromStart, false, nil
}

// SelectOption expands the element if it is collapsible, then selects the
// child option whose name matches.
func (a *Actor) SelectOption(ctx context.Context, res uia.Resolution, name string) (Result, error) {
	el := res.Element
	if exp, ok := el.(uia.Expandable); ok {
		if err := exp.Expand(); err != nil && !uia.IsKind(err, uia.KindUnsupportedOperation) {
			return Result{}, err
		}
	}

	sel := uia.Selector{Kind: uia.SelectorName, Value: name}
	matches, err := uia.FindAll(ctx, el, sel, 1)
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		return Result{}, uia.Errorf(uia.KindElementNotFound,
			"no option named %q under the element", name).WithSelector(res.Selector)
	}
	option := matches[0]

	if s, ok := option.(uia.Selectable); ok {
		if err := s.Select(); err == nil {
			out := a.result("select_option", option, res)
			out.detail("option", name)
			out.detail("method", "accessibility_select")
			return out, nil
		} else if !uia.IsKind(err, uia.KindUnsupportedOperation) {
			return Result{}, err
		}
	}
	clicked, err := a.Click(ctx, uia.Resolution{Element: option, Selector: res.Selector}, ClickOptions{})
	if err != nil {
		return Result{}, err
	}
	clicked.Action = "select_option"
	clicked.detail("option", name)
	clicked.detail("method", "click")
	return clicked, nil
}
