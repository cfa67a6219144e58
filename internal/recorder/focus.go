// Copyright 2025 Joseph Cumines

package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// focusPump turns platform focus-change signals into semantic events. The
// platform-side handler calls Notify, which is a non-blocking zero-byte
// send; all resolution happens on the pump's own goroutine.
type focusPump struct {
	cfg     Config
	driver  uia.Driver
	emit    func(Event)
	app     *appSwitchTracker
	browser *browserTracker
	text    *textInputTracker
	log     logrus.FieldLogger

	signal chan struct{}
}

func newFocusPump(cfg Config, driver uia.Driver, emit func(Event), app *appSwitchTracker, browser *browserTracker, text *textInputTracker, log logrus.FieldLogger) *focusPump {
	return &focusPump{
		cfg: cfg, driver: driver, emit: emit,
		app: app, browser: browser, text: text, log: log,
		signal: make(chan struct{}, 1),
	}
}

// Notify coalesces focus-change signals; safe to call from any thread and
// never blocks.
func (f *focusPump) Notify() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *focusPump) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.signal:
			f.process(time.Now())
		}
	}
}

// process resolves the focused element and fans out the three derivation
// checks: application switch, browser navigation, text-input transition.
func (f *focusPump) process(now time.Time) {
	el, err := resolveWithTimeout(f.cfg.UIATimeout, f.driver.FocusedElement)
	if err != nil {
		f.log.WithError(err).Debug("focused element resolution failed")
		return
	}
	role, _ := el.Role()
	name, _ := el.Name()
	app, _ := el.ApplicationName()
	pid, _ := el.ProcessID()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if payload := f.app.observe(app, pid, now); payload != nil {
			ev := newEvent(EventApplicationSwitch, now)
			ev.AppSwitch = payload
			f.emit(ev)
		}
	}()
	go func() {
		defer wg.Done()
		if !isBrowser(app) {
			return
		}
		url, title := recoverURL(el)
		if payload := f.browser.observe(app, url, title, now); payload != nil {
			ev := newEvent(EventBrowserTabNavigation, now)
			ev.BrowserNav = payload
			f.emit(ev)
		}
	}()
	go func() {
		defer wg.Done()
		f.textTransition(el, role, name, app, now)
	}()
	wg.Wait()
}

// textTransition handles focus moving into or out of a text input. Focus
// landing on a suggestion candidate does not complete the tracker; the
// processor's click path owns that case.
func (f *focusPump) textTransition(el uia.Element, role, name, app string, now time.Time) {
	if isTextInputRole(role) {
		if !f.text.tracking() {
			f.text.begin(el, role, name, app, now)
		}
		return
	}
	if isSuggestionRole(role) {
		return
	}
	prev := f.text.elementRef()
	if prev == nil {
		return
	}
	value, err := resolveWithTimeout(f.cfg.UIATimeout, func() (string, error) {
		return fieldValue(prev)
	})
	if err != nil {
		f.log.WithError(err).Debug("departed field value read failed")
	}
	if payload := f.text.complete(value, InputTyped, now); payload != nil {
		ev := newEvent(EventTextInputCompleted, now)
		ev.TextInput = payload
		f.emit(ev)
	}
}
