// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"time"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

const (
	// defaultActionabilityTimeout caps the whole readiness loop.
	defaultActionabilityTimeout = 800 * time.Millisecond
	// defaultBoundsPollInterval is the gap between bounds samples; three
	// identical consecutive samples count as stable.
	defaultBoundsPollInterval = 16 * time.Millisecond
	stableSamplesRequired     = 3
)

func (a *Actor) actionabilityBudget() time.Duration {
	if a.actionabilityTimeout > 0 {
		return a.actionabilityTimeout
	}
	return defaultActionabilityTimeout
}

func (a *Actor) boundsInterval() time.Duration {
	if a.boundsPollInterval > 0 {
		return a.boundsPollInterval
	}
	return defaultBoundsPollInterval
}

// ensureActionable validates the element is ready to receive pointer input:
// attached, visible, enabled, non-empty bounds inside a monitor, bounds
// stable across consecutive samples, and not obscured by a foreign window.
// Each failure mode surfaces its specific error kind so callers and
// retry policies can tell a hidden element from a moving one.
func (a *Actor) ensureActionable(ctx context.Context, el uia.Element) error {
	ctx, cancel := context.WithTimeout(ctx, a.actionabilityBudget())
	defer cancel()

	if _, err := el.Role(); err != nil {
		if uia.IsKind(err, uia.KindElementDetached) {
			return err
		}
		return uia.NewError(uia.KindElementDetached, "element handle is no longer valid").WithCause(err)
	}

	visible, err := el.Visible()
	if err != nil {
		return err
	}
	if !visible {
		return uia.NewError(uia.KindElementNotVisible, "element is not visible")
	}

	enabled, err := el.Enabled()
	if err != nil {
		return err
	}
	if !enabled {
		return uia.NewError(uia.KindElementNotEnabled, "element is disabled")
	}

	bounds, err := a.waitStableBounds(ctx, el)
	if err != nil {
		return err
	}
	if bounds.Empty() {
		return uia.NewError(uia.KindElementNotVisible, "element has zero-size bounds")
	}
	inViewport, err := a.inViewport(bounds)
	if err != nil {
		return err
	}
	if !inViewport {
		return uia.NewError(uia.KindElementNotVisible, "element is outside every monitor")
	}

	if err := a.checkNotObscured(el, bounds); err != nil {
		return err
	}
	return nil
}

// waitStableBounds polls until the element reports identical bounds for
// stableSamplesRequired consecutive samples, or the context deadline fires.
func (a *Actor) waitStableBounds(ctx context.Context, el uia.Element) (uia.Bounds, error) {
	var last uia.Bounds
	matches := 0
	for {
		b, err := el.Bounds()
		if err != nil {
			return uia.Bounds{}, err
		}
		if matches > 0 && b == last {
			matches++
		} else {
			last = b
			matches = 1
		}
		if matches >= stableSamplesRequired {
			return b, nil
		}
		if err := uia.WaitSettle(ctx, a.boundsInterval()); err != nil {
			return uia.Bounds{}, uia.NewError(uia.KindElementNotStable,
				"element bounds kept changing within the actionability window")
		}
	}
}

func (a *Actor) inViewport(b uia.Bounds) (bool, error) {
	monitors, err := a.driver.Monitors()
	if err != nil {
		return false, err
	}
	for _, m := range monitors {
		if !b.Intersect(m.Bounds).Empty() {
			return true, nil
		}
	}
	return false, nil
}

// checkNotObscured hit-tests the element's centre. The hit may legitimately
// land on a descendant (inner text of a button) or an ancestor (a custom
// control painting its own children), so only a hit outside the element's
// ancestry chain counts as obscured.
func (a *Actor) checkNotObscured(el uia.Element, b uia.Bounds) error {
	x, y := b.Center()
	hit, err := a.driver.ElementFromPoint(x, y)
	if err != nil {
		// A failed hit-test is not proof of obstruction.
		return nil
	}
	hit = uia.DeepestAt(hit, x, y)
	if related(el, hit) {
		return nil
	}
	hitName, _ := hit.Name()
	hitRole, _ := hit.Role()
	return uia.Errorf(uia.KindElementObscured,
		"element centre is covered by %s %q", hitRole, hitName)
}

// related reports whether a and b share an ancestry line.
func related(a, b uia.Element) bool {
	if onPathToRoot(a, b.RuntimeID()) {
		return true
	}
	return onPathToRoot(b, a.RuntimeID())
}

func onPathToRoot(from uia.Element, runtimeID string) bool {
	current := from
	for depth := 0; current != nil && depth <= uia.MaxTreeDepth; depth++ {
		if current.RuntimeID() == runtimeID {
			return true
		}
		parent, err := current.Parent()
		if err != nil {
			return false
		}
		current = parent
	}
	return false
}

// clickPoint returns where to aim pointer input: the centre of the stable
// bounds.
func clickPoint(b uia.Bounds) (int, int) {
	return b.Center()
}
