// Copyright 2025 Joseph Cumines

// Package uiatest provides an in-memory accessibility tree implementing the
// uia.Driver contract, so the locator, action layer, workflow interpreter,
// and recorder processor can be tested without a desktop session.
//
// Trees are built from Node literals; every mutation the fake performs
// (clicks, typed text, value edits) is recorded so tests can assert on the
// exact platform traffic an operation produced.
package uiatest

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// Capability names accepted by Node.Capabilities.
const (
	CapInvoke   = "invoke"
	CapSetValue = "setvalue"
	CapToggle   = "toggle"
	CapSelect   = "select"
	CapRange    = "range"
	CapExpand   = "expand"
	CapScroll   = "scroll"
	CapWindow   = "window"
)

// Node is one element of a fake accessibility tree. Fields mirror the
// attributes the real bindings expose; zero values are sensible defaults
// (enabled, visible, no capabilities).
type Node struct {
	ID       string
	Role     string
	Name     string
	NativeID string
	Bounds   uia.Bounds

	Disabled          bool
	Hidden            bool
	Focused           bool
	KeyboardFocusable bool
	Toggled           bool
	Selected          bool
	Value             string
	Description       string

	PID             int32
	WindowTitle     string
	ApplicationName string

	// Capabilities lists the capability constants this node supports.
	Capabilities []string
	// Range backs the range capability.
	Range uia.RangeInfo
	// RangeSetBroken makes SetRangeValue report no support while RangeInfo
	// still answers, forcing callers onto their keyboard fallback.
	RangeSetBroken bool

	Children []*Node

	// FailWith, when set, makes every accessor return this error. Use it to
	// simulate platform API failures on a specific node.
	FailWith error

	parent *Node
	driver *Driver
}

func (n *Node) supports(cap string) bool {
	for _, c := range n.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Driver is the in-memory uia.Driver. Safe for concurrent use.
type Driver struct {
	mu sync.Mutex

	root    *Node
	focused *Node

	clipboard string

	// InputLog records every synthesised input event in order, formatted as
	// short strings like "click left 10,20 x1" or "chord Ctrl+c".
	InputLog []string
	// Typed accumulates all TypeText payloads.
	Typed []string
	// Highlights counts active highlight overlays.
	Highlights int
	// Terminated records TerminateProcess calls as "pid/force" pairs.
	Terminated []string

	monitors []uia.Monitor

	// ClipboardBroken makes clipboard writes fail, exercising the typing
	// fallback path.
	ClipboardBroken bool
}

// NewDriver wires the tree rooted at root into a fresh driver. Parent links
// are derived from the Children slices.
func NewDriver(root *Node) *Driver {
	d := &Driver{
		root: root,
		monitors: []uia.Monitor{{
			Name:      "FAKE-1",
			Bounds:    uia.Bounds{Width: 1920, Height: 1080},
			ScaleDPI:  1.0,
			IsPrimary: true,
		}},
	}
	var link func(n, parent *Node)
	link = func(n, parent *Node) {
		n.parent = parent
		n.driver = d
		if n.Focused {
			d.focused = n
		}
		for _, c := range n.Children {
			link(c, n)
		}
	}
	link(root, nil)
	return d
}

// SetMonitors replaces the monitor list.
func (d *Driver) SetMonitors(monitors []uia.Monitor) {
	d.mu.Lock()
	d.monitors = monitors
	d.mu.Unlock()
}

// SetFocus moves keyboard focus to the node.
func (d *Driver) SetFocus(n *Node) {
	d.mu.Lock()
	if d.focused != nil {
		d.focused.Focused = false
	}
	d.focused = n
	if n != nil {
		n.Focused = true
	}
	d.mu.Unlock()
}

// Detach releases the node and its subtree; subsequent accessor calls on
// their handles fail with KindElementDetached.
func (d *Driver) Detach(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var mark func(n *Node)
	mark = func(n *Node) {
		if n.FailWith == nil {
			n.FailWith = uia.NewError(uia.KindElementDetached, "element handle released")
		}
		for _, c := range n.Children {
			mark(c)
		}
	}
	mark(n)
}

// Repair clears an injected failure on the node and its subtree, as if the
// application recreated the elements.
func (d *Driver) Repair(n *Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var clear func(n *Node)
	clear = func(n *Node) {
		n.FailWith = nil
		for _, c := range n.Children {
			clear(c)
		}
	}
	clear(n)
}

// Elem wraps a node as a uia.Element handle.
func (d *Driver) Elem(n *Node) uia.Element { return &element{d: d, n: n} }

func (d *Driver) Root() (uia.Element, error) { return d.Elem(d.root), nil }

func (d *Driver) FocusedElement() (uia.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focused == nil {
		return nil, uia.NewError(uia.KindElementNotFound, "nothing focused")
	}
	return &element{d: d, n: d.focused}, nil
}

func (d *Driver) ElementFromPoint(x, y int) (uia.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var deepest *Node
	var descend func(n *Node)
	descend = func(n *Node) {
		if n.Hidden || n.FailWith != nil || !n.Bounds.Contains(x, y) {
			return
		}
		deepest = n
		for _, c := range n.Children {
			descend(c)
		}
	}
	descend(d.root)
	if deepest == nil {
		return nil, uia.Errorf(uia.KindElementNotFound, "no element at %d,%d", x, y)
	}
	return &element{d: d, n: deepest}, nil
}

func (d *Driver) Applications() ([]uia.Element, error) {
	out := make([]uia.Element, 0, len(d.root.Children))
	for _, c := range d.root.Children {
		out = append(out, d.Elem(c))
	}
	return out, nil
}

func (d *Driver) ApplicationByPID(pid int32) (uia.Element, error) {
	for _, c := range d.root.Children {
		if c.PID == pid {
			return d.Elem(c), nil
		}
	}
	return nil, uia.Errorf(uia.KindElementNotFound, "no application with pid %d", pid)
}

// Input.

func (d *Driver) MouseClick(button uia.MouseButton, x, y int, clicks int) error {
	d.mu.Lock()
	d.InputLog = append(d.InputLog, fmt.Sprintf("click %s %d,%d x%d", button, x, y, clicks))
	d.mu.Unlock()
	return nil
}

func (d *Driver) MouseMove(x, y int) error {
	d.mu.Lock()
	d.InputLog = append(d.InputLog, fmt.Sprintf("move %d,%d", x, y))
	d.mu.Unlock()
	return nil
}

func (d *Driver) MouseDrag(button uia.MouseButton, fromX, fromY, toX, toY int) error {
	d.mu.Lock()
	d.InputLog = append(d.InputLog, fmt.Sprintf("drag %s %d,%d->%d,%d", button, fromX, fromY, toX, toY))
	d.mu.Unlock()
	return nil
}

func (d *Driver) SendChord(chord uia.KeyChord) error {
	d.mu.Lock()
	parts := append(append([]string(nil), chord.Modifiers...), chord.Key)
	d.InputLog = append(d.InputLog, "chord "+strings.Join(parts, "+"))
	d.mu.Unlock()
	return nil
}

func (d *Driver) TypeText(text string) error {
	d.mu.Lock()
	d.InputLog = append(d.InputLog, "type "+text)
	d.Typed = append(d.Typed, text)
	if d.focused != nil && d.focused.FailWith == nil {
		d.focused.Value += text
	}
	d.mu.Unlock()
	return nil
}

// Clipboard.

func (d *Driver) ReadText() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ClipboardBroken {
		return "", uia.PlatformError("clipboard.read", "0x800401D0", false, "clipboard unavailable")
	}
	return d.clipboard, nil
}

func (d *Driver) WriteText(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ClipboardBroken {
		return uia.PlatformError("clipboard.write", "0x800401D0", false, "clipboard unavailable")
	}
	d.clipboard = text
	return nil
}

// Overlay.

type highlightHandle struct{ d *Driver }

func (h *highlightHandle) Stop() {
	h.d.mu.Lock()
	h.d.Highlights--
	h.d.mu.Unlock()
}

func (d *Driver) Highlight(b uia.Bounds, style uia.HighlightStyle) (uia.HighlightHandle, error) {
	d.mu.Lock()
	d.Highlights++
	d.mu.Unlock()
	return &highlightHandle{d: d}, nil
}

// Screen.

func (d *Driver) Monitors() ([]uia.Monitor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uia.Monitor(nil), d.monitors...), nil
}

func (d *Driver) Capture(m uia.Monitor, region uia.Bounds) (image.Image, error) {
	w := int(region.Width * m.ScaleDPI)
	h := int(region.Height * m.ScaleDPI)
	if w <= 0 || h <= 0 {
		return nil, uia.Errorf(uia.KindInvalidArgument, "empty capture region")
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

// ProcessControl.

func (d *Driver) TerminateProcess(pid int32, force bool) error {
	d.mu.Lock()
	d.Terminated = append(d.Terminated, fmt.Sprintf("%d/%v", pid, force))
	d.mu.Unlock()
	return nil
}

// element adapts a Node to uia.Element plus every capability interface;
// unsupported capabilities fail with KindUnsupportedOperation.
type element struct {
	d *Driver
	n *Node
}

func (e *element) RuntimeID() string { return e.n.ID }

func (e *element) check() error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.FailWith
}

func (e *element) Role() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.n.Role, nil
}

func (e *element) Name() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.n.Name, nil
}

func (e *element) NativeID() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.n.NativeID, nil
}

func (e *element) Bounds() (uia.Bounds, error) {
	if err := e.check(); err != nil {
		return uia.Bounds{}, err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.Bounds, nil
}

func (e *element) ProcessID() (int32, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	return e.n.PID, nil
}

func (e *element) WindowTitle() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	if e.n.WindowTitle != "" {
		return e.n.WindowTitle, nil
	}
	for p := e.n.parent; p != nil; p = p.parent {
		if p.WindowTitle != "" {
			return p.WindowTitle, nil
		}
	}
	return "", nil
}

func (e *element) ApplicationName() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	if e.n.ApplicationName != "" {
		return e.n.ApplicationName, nil
	}
	for p := e.n.parent; p != nil; p = p.parent {
		if p.ApplicationName != "" {
			return p.ApplicationName, nil
		}
	}
	return "", nil
}

func (e *element) Enabled() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	return !e.n.Disabled, nil
}

func (e *element) Visible() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	for n := e.n; n != nil; n = n.parent {
		if n.Hidden {
			return false, nil
		}
	}
	return true, nil
}

func (e *element) Focused() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.d.focused == e.n, nil
}

func (e *element) KeyboardFocusable() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	return e.n.KeyboardFocusable, nil
}

func (e *element) Toggled() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.Toggled, nil
}

func (e *element) Selected() (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.Selected, nil
}

func (e *element) Value() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.Value, nil
}

func (e *element) Description() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.n.Description, nil
}

func (e *element) Children() ([]uia.Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	out := make([]uia.Element, 0, len(e.n.Children))
	for _, c := range e.n.Children {
		out = append(out, &element{d: e.d, n: c})
	}
	return out, nil
}

func (e *element) Parent() (uia.Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if e.n.parent == nil {
		return nil, uia.NewError(uia.KindElementNotFound, "element has no parent")
	}
	return &element{d: e.d, n: e.n.parent}, nil
}

func (e *element) IndexInParent() (int, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	if e.n.parent == nil {
		return 0, nil
	}
	for i, c := range e.n.parent.Children {
		if c == e.n {
			return i, nil
		}
	}
	return 0, uia.NewError(uia.KindElementDetached, "element missing from parent")
}

func (e *element) Application() (uia.Element, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	n := e.n
	for n.parent != nil && n.parent.parent != nil {
		n = n.parent
	}
	return &element{d: e.d, n: n}, nil
}

func (e *element) Focus() error {
	if err := e.check(); err != nil {
		return err
	}
	e.d.SetFocus(e.n)
	return nil
}

func (e *element) unsupported(cap string) error {
	return uia.Errorf(uia.KindUnsupportedOperation, "element %q does not support %s", e.n.Role, cap)
}

func (e *element) Invoke() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapInvoke) {
		return e.unsupported(CapInvoke)
	}
	e.d.mu.Lock()
	e.d.InputLog = append(e.d.InputLog, "invoke "+e.n.ID)
	e.d.mu.Unlock()
	return nil
}

func (e *element) SetValue(value string) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapSetValue) {
		return e.unsupported(CapSetValue)
	}
	e.d.mu.Lock()
	e.n.Value = value
	e.d.mu.Unlock()
	return nil
}

func (e *element) Toggle() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapToggle) {
		return e.unsupported(CapToggle)
	}
	e.d.mu.Lock()
	e.n.Toggled = !e.n.Toggled
	e.d.mu.Unlock()
	return nil
}

func (e *element) Select() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapSelect) {
		return e.unsupported(CapSelect)
	}
	e.d.mu.Lock()
	e.n.Selected = true
	e.d.mu.Unlock()
	return nil
}

func (e *element) RangeInfo() (uia.RangeInfo, error) {
	if err := e.check(); err != nil {
		return uia.RangeInfo{}, err
	}
	if !e.n.supports(CapRange) {
		return uia.RangeInfo{}, e.unsupported(CapRange)
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.Range, nil
}

func (e *element) SetRangeValue(value float64) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapRange) || e.n.RangeSetBroken {
		return e.unsupported(CapRange)
	}
	e.d.mu.Lock()
	e.n.Range.Value = value
	e.d.mu.Unlock()
	return nil
}

func (e *element) Expand() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapExpand) {
		return e.unsupported(CapExpand)
	}
	return nil
}

func (e *element) Collapse() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapExpand) {
		return e.unsupported(CapExpand)
	}
	return nil
}

func (e *element) CanScroll() bool {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.n.FailWith == nil && e.n.supports(CapScroll)
}

func (e *element) ScrollBy(direction string) error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapScroll) {
		return e.unsupported(CapScroll)
	}
	e.d.mu.Lock()
	e.d.InputLog = append(e.d.InputLog, "scroll "+e.n.ID+" "+direction)
	e.d.mu.Unlock()
	return nil
}

func (e *element) Activate() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapWindow) {
		return e.unsupported(CapWindow)
	}
	e.d.mu.Lock()
	e.d.InputLog = append(e.d.InputLog, "activate "+e.n.ID)
	e.d.mu.Unlock()
	return nil
}

func (e *element) Minimize() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapWindow) {
		return e.unsupported(CapWindow)
	}
	e.d.mu.Lock()
	e.d.InputLog = append(e.d.InputLog, "minimize "+e.n.ID)
	e.d.mu.Unlock()
	return nil
}

func (e *element) Maximize() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapWindow) {
		return e.unsupported(CapWindow)
	}
	e.d.mu.Lock()
	e.d.InputLog = append(e.d.InputLog, "maximize "+e.n.ID)
	e.d.mu.Unlock()
	return nil
}

func (e *element) Close() error {
	if err := e.check(); err != nil {
		return err
	}
	if !e.n.supports(CapWindow) {
		return e.unsupported(CapWindow)
	}
	e.d.mu.Lock()
	e.d.InputLog = append(e.d.InputLog, "close "+e.n.ID)
	e.d.mu.Unlock()
	e.d.Detach(e.n)
	return nil
}
