// Copyright 2025 Joseph Cumines

package action

import (
	"context"
	"time"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// defaultHighlightDuration is how long a highlight stays up when the caller
// does not say.
const defaultHighlightDuration = 1000 * time.Millisecond

// HighlightOptions configures HighlightElement.
type HighlightOptions struct {
	Duration time.Duration
	Style    uia.HighlightStyle
}

// HighlightElement draws a border (and optional label) over the element.
// The overlay is removed after the duration; the returned handle lets
// callers stop it early.
func (a *Actor) HighlightElement(ctx context.Context, res uia.Resolution, opts HighlightOptions) (Result, uia.HighlightHandle, error) {
	el := res.Element
	bounds, err := el.Bounds()
	if err != nil {
		return Result{}, nil, err
	}
	if bounds.Empty() {
		return Result{}, nil, uia.NewError(uia.KindElementNotVisible, "cannot highlight zero-size bounds")
	}

	handle, err := a.driver.Highlight(bounds, opts.Style)
	if err != nil {
		return Result{}, nil, err
	}

	duration := opts.Duration
	if duration <= 0 {
		duration = defaultHighlightDuration
	}
	timer := time.AfterFunc(duration, handle.Stop)
	stopper := &highlightStopper{handle: handle, timer: timer}

	out := a.result("highlight_element", el, res)
	out.detail("duration_ms", duration.Milliseconds())
	if opts.Style.Text != "" {
		out.detail("text", opts.Style.Text)
	}
	return out, stopper, nil
}

// highlightStopper cancels the expiry timer when stopped early so the
// overlay is not stopped twice.
type highlightStopper struct {
	handle uia.HighlightHandle
	timer  *time.Timer
}

func (h *highlightStopper) Stop() {
	if h.timer.Stop() {
		h.handle.Stop()
	}
}
