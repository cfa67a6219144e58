// Copyright 2025 Joseph Cumines

// Package uia defines the accessibility contracts for the desktop-use agent:
// the element and driver interfaces the platform bindings implement, the
// selector language, the element cache, and the locator that resolves
// selectors against a running accessibility tree.
//
// The platform bindings themselves (the OS UI-automation API) are an
// external collaborator; everything in this package is written against the
// Driver contract so the core can be exercised with the in-memory fake in
// the uiatest package.
package uia

import (
	"context"
	"image"
	"time"
)

// Bounds is an element's screen rectangle in device-independent pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (b Bounds) Empty() bool { return b.Width <= 0 || b.Height <= 0 }

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() (x, y int) {
	return int(b.X + b.Width/2), int(b.Y + b.Height/2)
}

// Contains reports whether the point lies inside the rectangle.
func (b Bounds) Contains(x, y int) bool {
	fx, fy := float64(x), float64(y)
	return fx >= b.X && fx < b.X+b.Width && fy >= b.Y && fy < b.Y+b.Height
}

// Intersect returns the overlap of two rectangles; Empty() when disjoint.
func (b Bounds) Intersect(o Bounds) Bounds {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X+b.Width, o.X+o.Width)
	y2 := min(b.Y+b.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Bounds{}
	}
	return Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Element is an opaque handle to an accessibility node. Its validity is tied
// to the owning process: every accessor returns KindElementDetached once the
// handle has been released, and never panics.
//
// Implementations are not safe for concurrent use; callers serialise access
// the way the locator and the recorder's processor thread do.
type Element interface {
	// RuntimeID is the platform's per-session identity key for the node.
	// Equal RuntimeIDs denote the same underlying handle.
	RuntimeID() string

	Role() (string, error)
	Name() (string, error)
	// NativeID is the platform automation id; empty when the node has none.
	NativeID() (string, error)
	Bounds() (Bounds, error)
	ProcessID() (int32, error)
	WindowTitle() (string, error)
	ApplicationName() (string, error)

	Enabled() (bool, error)
	Visible() (bool, error)
	Focused() (bool, error)
	KeyboardFocusable() (bool, error)
	Toggled() (bool, error)
	Selected() (bool, error)
	Value() (string, error)
	Description() (string, error)

	Children() ([]Element, error)
	Parent() (Element, error)
	IndexInParent() (int, error)

	// Application returns the application root element owning this node.
	Application() (Element, error)

	Focus() error
}

// Capability interfaces. Actions probe for these with type assertions and
// report KindUnsupportedOperation when the element does not offer one.

// Invokable activates a control without synthesising a mouse click.
type Invokable interface {
	Invoke() error
}

// ValueEditable sets the element's value through the accessibility runtime.
type ValueEditable interface {
	SetValue(value string) error
}

// Toggleable cycles a two-state control.
type Toggleable interface {
	Toggle() error
}

// Selectable adds the element to (or makes it) the current selection.
type Selectable interface {
	Select() error
}

// RangeInfo describes a range-valued control.
type RangeInfo struct {
	Minimum     float64
	Maximum     float64
	SmallChange float64
	Value       float64
}

// Ranged exposes and sets a numeric range value.
type Ranged interface {
	RangeInfo() (RangeInfo, error)
	SetRangeValue(value float64) error
}

// Expandable opens a collapsed container such as a combo box.
type Expandable interface {
	Expand() error
	Collapse() error
}

// Scrollable scrolls its own viewport.
type Scrollable interface {
	// CanScroll reports whether the platform scroll pattern is available,
	// without side effects.
	CanScroll() bool
	// ScrollBy scrolls one notch in the given direction: "up", "down",
	// "left", or "right".
	ScrollBy(direction string) error
}

// WindowControl exposes window lifecycle operations.
type WindowControl interface {
	Activate() error
	Minimize() error
	Maximize() error
	Close() error
}

// MouseButton identifies a pointer button for synthesised input.
type MouseButton string

const (
	MouseLeft   MouseButton = "left"
	MouseRight  MouseButton = "right"
	MouseMiddle MouseButton = "middle"
)

// KeyChord is one parsed unit of the curly-brace key syntax: zero or more
// modifiers held around a single key.
type KeyChord struct {
	Modifiers []string
	Key       string
}

// Input synthesises keyboard and mouse events at the OS level.
type Input interface {
	MouseClick(button MouseButton, x, y int, clicks int) error
	MouseMove(x, y int) error
	MouseDrag(button MouseButton, fromX, fromY, toX, toY int) error
	SendChord(chord KeyChord) error
	TypeText(text string) error
}

// Clipboard is the process-global clipboard.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// HighlightStyle configures the highlight overlay.
type HighlightStyle struct {
	// Color is a BGR colour code; zero means the default red.
	Color uint32
	// Text is an optional label drawn next to the border.
	Text string
	// TextPosition is one of "top", "bottom", "left", "right", "inside".
	TextPosition string
	FontSize     int
	FontBold     bool
	FontColor    uint32
}

// HighlightHandle stops an active highlight before its duration elapses.
type HighlightHandle interface {
	Stop()
}

// Overlay draws transient decorations over the desktop.
type Overlay interface {
	Highlight(b Bounds, style HighlightStyle) (HighlightHandle, error)
}

// Monitor describes one attached display.
type Monitor struct {
	Name      string
	Bounds    Bounds
	ScaleDPI  float64
	IsPrimary bool
}

// Screen enumerates monitors and captures pixels.
type Screen interface {
	Monitors() ([]Monitor, error)
	// Capture grabs the given region of the monitor at its DPI scale.
	Capture(m Monitor, region Bounds) (image.Image, error)
}

// ProcessControl terminates applications as a last-resort close path.
type ProcessControl interface {
	// TerminateProcess asks the process to exit; force escalates to a kill.
	TerminateProcess(pid int32, force bool) error
}

// Driver is the contract the platform accessibility bindings fulfil. Each
// thread performing accessibility calls initialises the platform apartment
// once at thread start; the bindings log and tolerate mismatches with an
// already-initialised apartment.
type Driver interface {
	Input
	Clipboard
	Overlay
	Screen
	ProcessControl

	// Root returns the desktop root element.
	Root() (Element, error)
	FocusedElement() (Element, error)
	// ElementFromPoint returns the element under the screen point; the
	// locator descends from it to the deepest child containing the point.
	ElementFromPoint(x, y int) (Element, error)
	// Applications returns the root elements of all running applications.
	Applications() ([]Element, error)
	// ApplicationByPID returns the application root for the process.
	ApplicationByPID(pid int32) (Element, error)
}

// WaitSettle sleeps for the given duration unless ctx is cancelled first.
// It exists so every UI-settle pause in the action layer observes
// cancellation.
func WaitSettle(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Errorf(KindTimeout, "cancelled while waiting: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
