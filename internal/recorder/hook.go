// Copyright 2025 Joseph Cumines

package recorder

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// hotkeyTable maps a normalized modifier+key combination to its action.
// Combinations render as "Ctrl+Shift+key" with modifiers sorted.
var hotkeyTable = map[string]string{
	"Ctrl+a":           "SelectAll",
	"Ctrl+c":           "Copy",
	"Ctrl+x":           "Cut",
	"Ctrl+v":           "Paste",
	"Ctrl+z":           "Undo",
	"Ctrl+y":           "Redo",
	"Ctrl+s":           "Save",
	"Ctrl+f":           "Find",
	"Ctrl+n":           "New",
	"Ctrl+p":           "Print",
	"Ctrl+t":           "NewTab",
	"Ctrl+w":           "CloseTab",
	"Ctrl+Tab":         "NextTab",
	"Alt+Tab":          "SwitchWindow",
	"Alt+F4":           "CloseWindow",
	"Win+d":            "ShowDesktop",
	"Win+l":            "LockScreen",
	"F5":               "Refresh",
	"Ctrl+Shift+Esc": "TaskManager",
	"PrintScreen":    "Screenshot",
	"Shift+Win+s":    "Screenshot",
	"Ctrl+Shift+t":   "ReopenTab",
}

// editingKeys survive the keydown noise filter alongside printable keys.
var editingKeys = map[string]bool{
	"Enter": true, "Tab": true, "Backspace": true, "Delete": true,
	"Home": true, "End": true, "PageUp": true, "PageDown": true,
	"Up": true, "Down": true, "Left": true, "Right": true, "Esc": true,
}

var modifierKeys = map[string]bool{
	"Ctrl": true, "Shift": true, "Alt": true, "Win": true,
}

// requestKind identifies what the processor should resolve for a request.
type requestKind int

const (
	reqMouseDown requestKind = iota
	reqMouseUp
	reqKeyActivation
)

// uiaRequest asks the processor for one blocking accessibility resolution.
type uiaRequest struct {
	kind   requestKind
	button string
	x, y   int
	key    string
	time   time.Time
}

// modifierState tracks held modifiers and active keys. Critical sections are
// bounded and never span an accessibility call.
type modifierState struct {
	mu     sync.Mutex
	held   map[string]bool
	active map[string]bool
}

func newModifierState() *modifierState {
	return &modifierState{held: map[string]bool{}, active: map[string]bool{}}
}

func (m *modifierState) keyDown(key string) {
	m.mu.Lock()
	if modifierKeys[key] {
		m.held[key] = true
	}
	m.active[key] = true
	m.mu.Unlock()
}

func (m *modifierState) keyUp(key string) {
	m.mu.Lock()
	if modifierKeys[key] {
		delete(m.held, key)
	}
	delete(m.active, key)
	m.mu.Unlock()
}

// heldModifiers returns the held modifiers in stable order.
func (m *modifierState) heldModifiers() []string {
	m.mu.Lock()
	mods := make([]string, 0, len(m.held))
	for k := range m.held {
		mods = append(mods, k)
	}
	m.mu.Unlock()
	sort.Strings(mods)
	return mods
}

// hook is the input-hook stage: it never blocks, never touches the
// accessibility tree, and forwards resolution work over a bounded channel.
type hook struct {
	cfg      Config
	mods     *modifierState
	requests chan<- uiaRequest
	emit     func(Event)
	altTab   func() // marks the Alt+Tab consumed flag on the app tracker
	log      logrus.FieldLogger

	lastMouseMove time.Time
	dropped       uint64
}

// run consumes the source until its channel closes.
func (h *hook) run(src InputSource) {
	for raw := range src.Events() {
		h.handle(raw)
	}
}

func (h *hook) handle(raw RawInput) {
	switch raw.Kind {
	case RawKeyDown:
		h.mods.keyDown(raw.Key)
		if modifierKeys[raw.Key] {
			return
		}
		if combo, action, ok := h.matchHotkey(raw.Key); ok {
			if action == "SwitchWindow" {
				h.altTab()
			}
			ev := newEvent(EventHotkey, raw.Time)
			ev.Hotkey = &HotkeyPayload{Combination: combo, Action: action}
			h.emit(ev)
			return
		}
		if raw.Key == "Enter" || raw.Key == " " || raw.Key == "Space" || raw.Key == "Tab" {
			h.send(uiaRequest{kind: reqKeyActivation, key: raw.Key, time: raw.Time})
		}
		ev := newEvent(EventKeyPress, raw.Time)
		ev.KeyPress = &KeyPressPayload{Key: raw.Key, Modifiers: h.mods.heldModifiers()}
		h.emit(ev)
	case RawKeyUp:
		h.mods.keyUp(raw.Key)
	case RawMouseDown:
		h.send(uiaRequest{kind: reqMouseDown, button: string(raw.Button), x: raw.X, y: raw.Y, time: raw.Time})
	case RawMouseUp:
		h.send(uiaRequest{kind: reqMouseUp, button: string(raw.Button), x: raw.X, y: raw.Y, time: raw.Time})
	case RawMouseMove:
		if raw.Time.Sub(h.lastMouseMove) < h.cfg.MouseMoveThrottle {
			return
		}
		h.lastMouseMove = raw.Time
		ev := newEvent(EventMouseMove, raw.Time)
		ev.Mouse = &MousePayload{X: raw.X, Y: raw.Y}
		h.emit(ev)
	case RawMouseWheel:
		ev := newEvent(EventMouseWheel, raw.Time)
		ev.Mouse = &MousePayload{X: raw.X, Y: raw.Y, Delta: raw.Delta}
		h.emit(ev)
	}
}

// matchHotkey checks the pattern table against the held modifiers plus key.
func (h *hook) matchHotkey(key string) (combo, action string, ok bool) {
	parts := append(h.mods.heldModifiers(), key)
	combo = strings.Join(parts, "+")
	action, ok = hotkeyTable[combo]
	return combo, action, ok
}

// send forwards a request without blocking; a full queue drops the request.
func (h *hook) send(req uiaRequest) {
	select {
	case h.requests <- req:
	default:
		h.dropped++
		if h.dropped%100 == 1 {
			h.log.WithField("dropped", h.dropped).Warn("processor queue full; dropping input requests")
		}
	}
}
