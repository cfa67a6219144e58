// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"math"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// scrollAncestorLevels bounds the upward search for a scrollable container.
const scrollAncestorLevels = 7

// scrollKeys maps scroll directions to the fallback navigation key.
var scrollKeys = map[string]string{
	"up":    "PageUp",
	"down":  "PageDown",
	"left":  "Left",
	"right": "Right",
}

// Scroll scrolls the element's nearest scrollable container by amount
// notches in the given direction. When neither the element nor any of its
// near ancestors can scroll, it focuses the element and synthesises page
// navigation keys instead.
func (a *Actor) Scroll(ctx context.Context, res uia.Resolution, direction string, amount float64) (Result, error) {
	if _, ok := scrollKeys[direction]; !ok {
		return Result{}, uia.Errorf(uia.KindInvalidArgument,
			"scroll direction must be up, down, left or right, got %q", direction)
	}
	iterations := int(math.Round(amount))
	if iterations < 1 {
		iterations = 1
	}
	el := res.Element

	if scrollable := a.findScrollable(el); scrollable != nil {
		var lastErr error
		for i := 0; i < iterations; i++ {
			if err := scrollable.ScrollBy(direction); err != nil {
				lastErr = err
				break
			}
			if err := uia.WaitSettle(ctx, a.settle); err != nil {
				return Result{}, err
			}
		}
		if lastErr == nil {
			out := a.result("scroll_element", el, res)
			out.detail("direction", direction)
			out.detail("amount", iterations)
			out.detail("method", "accessibility_scroll")
			return out, nil
		}
		a.log.WithError(lastErr).Debug("accessibility scroll failed, falling back to keys")
	}

	if err := el.Focus(); err != nil {
		return Result{}, uia.NewError(uia.KindScrollFailed,
			"no scrollable container and the element cannot take focus for key scrolling").WithCause(err)
	}
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, uia.Errorf(uia.KindTimeout, "scroll cancelled: %w", err)
		}
		if err := a.driver.SendChord(uia.KeyChord{Key: scrollKeys[direction]}); err != nil {
			return Result{}, uia.NewError(uia.KindScrollFailed, "key scrolling failed").WithCause(err)
		}
	}
	out := a.result("scroll_element", el, res)
	out.detail("direction", direction)
	out.detail("amount", iterations)
	out.detail("method", "keyboard")
	return out, nil
}

// findScrollable walks from the element up through its ancestors looking
// for scroll capability, probing the element itself first.
func (a *Actor) findScrollable(el uia.Element) uia.Scrollable {
	current := el
	for level := 0; current != nil && level <= scrollAncestorLevels; level++ {
		if s, ok := current.(uia.Scrollable); ok && s.CanScroll() {
			return s
		}
		parent, err := current.Parent()
		if err != nil {
			return nil
		}
		current = parent
	}
	return nil
}
