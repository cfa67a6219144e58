// Copyright 2025 Joseph Cumines

package recorder

import (
	"strings"
	"sync"
	"time"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// doubleClickTracker pairs same-button presses at nearly the same point. A
// detected double click resets the tracker so a triple click yields one
// DoubleClick plus one Click, never two DoubleClicks.
type doubleClickTracker struct {
	mu        sync.Mutex
	interval  time.Duration
	tolerance int

	lastButton string
	lastX      int
	lastY      int
	lastTime   time.Time
	armed      bool
}

func (t *doubleClickTracker) observe(button string, x, y int, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed &&
		t.lastButton == button &&
		at.Sub(t.lastTime) <= t.interval &&
		abs(x-t.lastX) <= t.tolerance &&
		abs(y-t.lastY) <= t.tolerance {
		t.armed = false
		return true
	}
	t.lastButton, t.lastX, t.lastY, t.lastTime = button, x, y, at
	t.armed = true
	return false
}

// appSwitchTracker emits an application switch only after the previous app
// held focus for at least the dwell threshold. The Alt+Tab flag is consumed
// by the first switch it attributes.
type appSwitchTracker struct {
	mu    sync.Mutex
	dwell time.Duration

	currentApp string
	currentPID int32
	since      time.Time
	altTabSeen bool
}

// noteAltTab is called from the hook when a SwitchWindow hotkey fires.
func (t *appSwitchTracker) noteAltTab() {
	t.mu.Lock()
	t.altTabSeen = true
	t.mu.Unlock()
}

// observe compares the newly focused application to the current one and
// returns the switch payload when one should be emitted.
func (t *appSwitchTracker) observe(app string, pid int32, at time.Time) *AppSwitchPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	if app == "" || app == t.currentApp {
		return nil
	}
	prevApp, prevPID, prevSince := t.currentApp, t.currentPID, t.since
	t.currentApp, t.currentPID, t.since = app, pid, at

	if prevApp == "" {
		return nil // first observation establishes the baseline
	}
	dwell := at.Sub(prevSince)
	if dwell < t.dwell {
		return nil
	}
	method := SwitchWindowClick
	if t.altTabSeen {
		method = SwitchAltTab
		t.altTabSeen = false
	}
	return &AppSwitchPayload{
		FromApplication: prevApp,
		ToApplication:   app,
		FromPID:         prevPID,
		ToPID:           pid,
		DwellTimeMs:     dwell.Milliseconds(),
		Method:          method,
	}
}

// browserKeywords identify applications treated as browsers.
var browserKeywords = []string{"chrome", "firefox", "edge", "safari", "brave", "opera", "chromium", "vivaldi"}

func isBrowser(app string) bool {
	lower := strings.ToLower(app)
	for _, kw := range browserKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// browserTracker watches a browser's URL/title transitions.
type browserTracker struct {
	mu    sync.Mutex
	url   string
	title string
	since time.Time
}

// observe returns a navigation payload when the URL or title changed.
func (t *browserTracker) observe(app, url, title string, at time.Time) *BrowserNavPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	if url == t.url && title == t.title {
		return nil
	}
	prevURL, prevSince := t.url, t.since
	t.url, t.title, t.since = url, title, at
	if prevSince.IsZero() {
		prevSince = at
	}
	return &BrowserNavPayload{
		Application: app,
		URL:         url,
		Title:       title,
		PreviousURL: prevURL,
		DwellTimeMs: at.Sub(prevSince).Milliseconds(),
	}
}

// recoverURL tries the element's value, then its text, then the window
// title. Browsers commonly expose the address in the URL bar's value.
func recoverURL(el uia.Element) (url, title string) {
	if v, err := el.Value(); err == nil && looksLikeURL(v) {
		url = v
	}
	if url == "" {
		if n, err := el.Name(); err == nil && looksLikeURL(n) {
			url = n
		}
	}
	if t, err := el.WindowTitle(); err == nil {
		title = t
	}
	return url, title
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		(strings.Contains(s, ".") && !strings.ContainsAny(s, " \t"))
}

// textInputRoles are roles treated as text inputs for completion tracking.
var textInputRoles = map[string]bool{
	"edit": true, "textbox": true, "text": true, "document": true,
	"searchbox": true, "passwordbox": true,
}

// suggestionRoles are focus targets that indicate an autocomplete pick
// rather than leaving the field.
var suggestionRoles = map[string]bool{
	"listitem": true, "list": true, "menuitem": true, "menu": true,
	"option": true, "comboboxitem": true, "cellitem": true, "cell": true,
}

func isTextInputRole(role string) bool  { return textInputRoles[strings.ToLower(role)] }
func isSuggestionRole(role string) bool { return suggestionRoles[strings.ToLower(role)] }

// textInputTracker follows one focused text input from entry to completion.
type textInputTracker struct {
	mu         sync.Mutex
	active     bool
	element    uia.Element
	fieldRole  string
	fieldName  string
	app        string
	started    time.Time
	keystrokes int
}

func (t *textInputTracker) begin(el uia.Element, role, name, app string, at time.Time) {
	t.mu.Lock()
	t.active = true
	t.element = el
	t.fieldRole, t.fieldName, t.app = role, name, app
	t.started = at
	t.keystrokes = 0
	t.mu.Unlock()
}

// elementRef returns the tracked field, nil when the tracker is idle.
func (t *textInputTracker) elementRef() uia.Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return nil
	}
	return t.element
}

func (t *textInputTracker) keystroke() {
	t.mu.Lock()
	if t.active {
		t.keystrokes++
	}
	t.mu.Unlock()
}

func (t *textInputTracker) tracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// complete finishes the tracker and returns the payload; value is the final
// field content, method how it got there.
func (t *textInputTracker) complete(value string, method InputMethod, at time.Time) *TextInputPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return nil
	}
	t.active = false
	t.element = nil
	return &TextInputPayload{
		TextValue:      value,
		FieldRole:      t.fieldRole,
		FieldName:      t.fieldName,
		KeystrokeCount: t.keystrokes,
		DurationMs:     at.Sub(t.started).Milliseconds(),
		InputMethod:    method,
		Application:    t.app,
	}
}

// submitNames and cancelNames drive click classification.
var submitNames = []string{"ok", "submit", "save", "apply", "yes", "continue", "next", "finish", "done", "confirm", "send", "search", "login", "sign in"}
var cancelNames = []string{"cancel", "close", "no", "abort", "dismiss", "back"}

// classifyClick maps a clicked element's role/name/description to an
// interaction type.
func classifyClick(role, name, description string) InteractionType {
	lowerRole := strings.ToLower(role)
	switch lowerRole {
	case "checkbox", "radiobutton", "radio", "switch", "togglebutton":
		return InteractionToggle
	case "combobox", "dropdown", "splitbutton":
		return InteractionDropdownToggle
	}
	text := strings.ToLower(strings.TrimSpace(name))
	if text == "" {
		text = strings.ToLower(strings.TrimSpace(description))
	}
	for _, n := range submitNames {
		if text == n {
			return InteractionSubmit
		}
	}
	for _, n := range cancelNames {
		if text == n {
			return InteractionCancel
		}
	}
	return InteractionClick
}

// directChildText collects up to one level of direct-child text content.
func directChildText(el uia.Element, limit int) []string {
	children, err := el.Children()
	if err != nil {
		return nil
	}
	var out []string
	for _, c := range children {
		if len(out) >= limit {
			break
		}
		if name, err := c.Name(); err == nil && strings.TrimSpace(name) != "" {
			out = append(out, name)
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
