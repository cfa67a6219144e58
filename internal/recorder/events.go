// Copyright 2025 Joseph Cumines

// Package recorder converts raw keyboard/mouse input and accessibility focus
// signals into semantic workflow events without blocking the OS input hook.
package recorder

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies a semantic recorded event.
type EventType string

const (
	EventClick                EventType = "Click"
	EventDoubleClick          EventType = "DoubleClick"
	EventTextInputCompleted   EventType = "TextInputCompleted"
	EventApplicationSwitch    EventType = "ApplicationSwitch"
	EventBrowserTabNavigation EventType = "BrowserTabNavigation"
	EventHotkey               EventType = "Hotkey"
	EventClipboard            EventType = "Clipboard"
	EventKeyPress             EventType = "KeyPress"
	EventMouseMove            EventType = "MouseMove"
	EventMouseWheel           EventType = "MouseWheel"
)

// highValue events are never dropped by rate limiting or noise filters.
var highValue = map[EventType]bool{
	EventApplicationSwitch: true,
	EventClick:             true,
	EventClipboard:         true,
}

// Event is one recorded semantic event. Exactly one payload field is set,
// matching Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Click       *ClickPayload       `json:"click,omitempty"`
	DoubleClick *DoubleClickPayload `json:"double_click,omitempty"`
	TextInput   *TextInputPayload   `json:"text_input,omitempty"`
	AppSwitch   *AppSwitchPayload   `json:"application_switch,omitempty"`
	BrowserNav  *BrowserNavPayload  `json:"browser_navigation,omitempty"`
	Hotkey      *HotkeyPayload      `json:"hotkey,omitempty"`
	Clipboard   *ClipboardPayload   `json:"clipboard,omitempty"`
	KeyPress    *KeyPressPayload    `json:"key_press,omitempty"`
	Mouse       *MousePayload       `json:"mouse,omitempty"`
}

// newEvent stamps a fresh event with a sortable unique id.
func newEvent(t EventType, at time.Time) Event {
	return Event{ID: ulid.Make().String(), Type: t, Timestamp: at}
}

// InteractionType classifies what a click most likely meant.
type InteractionType string

const (
	InteractionClick          InteractionType = "Click"
	InteractionSubmit         InteractionType = "Submit"
	InteractionCancel         InteractionType = "Cancel"
	InteractionToggle         InteractionType = "Toggle"
	InteractionDropdownToggle InteractionType = "DropdownToggle"
)

// ClickPayload describes a resolved click on a UI element.
type ClickPayload struct {
	Button          string          `json:"button"`
	X               int             `json:"x"`
	Y               int             `json:"y"`
	InteractionType InteractionType `json:"interaction_type"`
	ElementRole     string          `json:"element_role,omitempty"`
	ElementName     string          `json:"element_name,omitempty"`
	ElementID       string          `json:"element_id,omitempty"`
	ChildText       []string        `json:"child_text,omitempty"`
	Application     string          `json:"application,omitempty"`
	WindowTitle     string          `json:"window_title,omitempty"`
	Enabled         bool            `json:"enabled"`
}

// DoubleClickPayload describes two same-button presses at nearly the same
// point within the configured interval.
type DoubleClickPayload struct {
	Button string `json:"button"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// InputMethod records how a text value ended up in the field.
type InputMethod string

const (
	InputTyped      InputMethod = "Typed"
	InputSuggestion InputMethod = "Suggestion"
)

// TextInputPayload is emitted when focus leaves a text input, or on
// Enter/Tab while one is focused.
type TextInputPayload struct {
	TextValue      string      `json:"text_value"`
	FieldRole      string      `json:"field_role,omitempty"`
	FieldName      string      `json:"field_name,omitempty"`
	KeystrokeCount int         `json:"keystroke_count"`
	DurationMs     int64       `json:"duration_ms"`
	InputMethod    InputMethod `json:"input_method"`
	Application    string      `json:"application,omitempty"`
}

// SwitchMethod records how an application switch was performed.
type SwitchMethod string

const (
	SwitchAltTab      SwitchMethod = "AltTab"
	SwitchWindowClick SwitchMethod = "WindowClick"
)

// AppSwitchPayload is emitted when focus moves to a different application
// after a sufficient dwell on the previous one.
type AppSwitchPayload struct {
	FromApplication string       `json:"from_application,omitempty"`
	ToApplication   string       `json:"to_application"`
	FromPID         int32        `json:"from_pid,omitempty"`
	ToPID           int32        `json:"to_pid"`
	DwellTimeMs     int64        `json:"dwell_time_ms"`
	Method          SwitchMethod `json:"method"`
}

// BrowserNavPayload is emitted when a known browser's URL or title changes.
type BrowserNavPayload struct {
	Application string `json:"application"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	PreviousURL string `json:"previous_url,omitempty"`
	DwellTimeMs int64  `json:"dwell_time_ms"`
}

// HotkeyPayload is emitted straight from the input hook's pattern table.
type HotkeyPayload struct {
	Combination string `json:"combination"`
	Action      string `json:"action"`
}

// ClipboardPayload carries (possibly truncated) clipboard content.
type ClipboardPayload struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	SizeBytes int    `json:"size_bytes"`
}

// KeyPressPayload is a low-level key event kept by the noise filter.
type KeyPressPayload struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// MousePayload covers move and wheel noise events.
type MousePayload struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Delta int `json:"delta,omitempty"`
}
