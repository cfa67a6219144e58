// Copyright 2025 Joseph Cumines

package recorder

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// maxChildText caps direct-child text collection per click.
const maxChildText = 8

// resolveWithTimeout runs one blocking accessibility call on a worker
// goroutine and abandons it when the deadline passes. The worker finishes in
// the background; its result is discarded.
func resolveWithTimeout[T any](d time.Duration, fn func() (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn()
		ch <- outcome{v, err}
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case out := <-ch:
		return out.value, out.err
	case <-timer.C:
		var zero T
		return zero, uia.Errorf(uia.KindTimeout, "accessibility call exceeded %s", d)
	}
}

// processor consumes hook requests serially and performs the blocking
// accessibility work the hook must not do.
type processor struct {
	cfg    Config
	driver uia.Driver
	emit   func(Event)
	clicks *doubleClickTracker
	text   *textInputTracker
	log    logrus.FieldLogger
}

// run drains the request channel until it closes. Events for one request are
// emitted before the next request is taken.
func (p *processor) run(requests <-chan uiaRequest) {
	for req := range requests {
		p.handle(req)
	}
}

func (p *processor) handle(req uiaRequest) {
	switch req.kind {
	case reqMouseDown:
		p.handleMouseDown(req)
	case reqMouseUp:
		// Presses carry the semantics; releases are consumed for pairing
		// only.
	case reqKeyActivation:
		p.handleKeyActivation(req)
	}
}

func (p *processor) handleMouseDown(req uiaRequest) {
	if p.clicks.observe(req.button, req.x, req.y, req.time) {
		ev := newEvent(EventDoubleClick, req.time)
		ev.DoubleClick = &DoubleClickPayload{Button: req.button, X: req.x, Y: req.y}
		p.emit(ev)
		return
	}

	el, err := resolveWithTimeout(p.cfg.UIATimeout, func() (uia.Element, error) {
		root, err := p.driver.ElementFromPoint(req.x, req.y)
		if err != nil {
			return nil, err
		}
		return uia.DeepestAt(root, req.x, req.y), nil
	})
	if err != nil {
		p.log.WithError(err).Debug("click target resolution failed")
		p.emitBareClick(req)
		return
	}

	role, _ := el.Role()
	name, _ := el.Name()
	desc, _ := el.Description()

	// A click on a suggestion while a text field is tracked is an
	// autocomplete pick, not a field exit.
	if p.text.tracking() && isSuggestionRole(role) {
		if payload := p.text.complete(name, InputSuggestion, req.time); payload != nil {
			ev := newEvent(EventTextInputCompleted, req.time)
			ev.TextInput = payload
			p.emit(ev)
		}
	}

	if req.button != string(uia.MouseLeft) {
		p.emitBareClick(req)
		return
	}

	enabled, _ := el.Enabled()
	app, _ := el.ApplicationName()
	title, _ := el.WindowTitle()

	ev := newEvent(EventClick, req.time)
	ev.Click = &ClickPayload{
		Button:          req.button,
		X:               req.x,
		Y:               req.y,
		InteractionType: classifyClick(role, name, desc),
		ElementRole:     role,
		ElementName:     name,
		ChildText:       directChildText(el, maxChildText),
		Application:     app,
		WindowTitle:     title,
		Enabled:         enabled,
	}
	p.emit(ev)
}

// emitBareClick reports a click that could not be resolved to an element.
func (p *processor) emitBareClick(req uiaRequest) {
	ev := newEvent(EventClick, req.time)
	ev.Click = &ClickPayload{
		Button:          req.button,
		X:               req.x,
		Y:               req.y,
		InteractionType: InteractionClick,
	}
	p.emit(ev)
}

// handleKeyActivation completes a tracked text input on Enter/Tab.
func (p *processor) handleKeyActivation(req uiaRequest) {
	if req.key != "Enter" && req.key != "Tab" {
		return
	}
	el := p.text.elementRef()
	if el == nil {
		return
	}
	value, err := resolveWithTimeout(p.cfg.UIATimeout, func() (string, error) {
		return fieldValue(el)
	})
	if err != nil {
		p.log.WithError(err).Debug("text value read failed; emitting without value")
	}
	if payload := p.text.complete(value, InputTyped, req.time); payload != nil {
		ev := newEvent(EventTextInputCompleted, req.time)
		ev.TextInput = payload
		p.emit(ev)
	}
}

// fieldValue reads a field's content: value, then name as fallback.
func fieldValue(el uia.Element) (string, error) {
	if v, err := el.Value(); err == nil && v != "" {
		return v, nil
	}
	return el.Name()
}
