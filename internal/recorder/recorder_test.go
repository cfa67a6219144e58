// Copyright 2025 Joseph Cumines

package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/uia/uiatest"
)

// collector is a thread-safe event sink for pipeline stages under test.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) emit(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event{}, c.events...)
}

func (c *collector) types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestDoubleClickTrackerThreshold(t *testing.T) {
	tr := &doubleClickTracker{interval: 500 * time.Millisecond, tolerance: 4}
	t0 := time.Now()

	assert.False(t, tr.observe("left", 100, 100, t0))
	// Second press within interval and tolerance pairs up.
	assert.True(t, tr.observe("left", 102, 101, t0.Add(200*time.Millisecond)))
	// Third press re-arms instead of pairing with the second: a triple
	// click yields one DoubleClick, not two.
	assert.False(t, tr.observe("left", 102, 101, t0.Add(300*time.Millisecond)))

	// Outside the interval.
	assert.False(t, tr.observe("left", 100, 100, t0.Add(2*time.Second)))
	// Outside the tolerance.
	assert.False(t, tr.observe("left", 200, 100, t0.Add(2100*time.Millisecond)))
	// Different button.
	assert.False(t, tr.observe("right", 200, 100, t0.Add(2200*time.Millisecond)))
}

func TestAppSwitchTrackerDwellAndAltTab(t *testing.T) {
	tr := &appSwitchTracker{dwell: time.Second}
	t0 := time.Now()

	// First observation only establishes the baseline.
	assert.Nil(t, tr.observe("Notepad", 10, t0))
	// Too little dwell on the previous app.
	assert.Nil(t, tr.observe("Browser", 20, t0.Add(300*time.Millisecond)))
	// Enough dwell now; no Alt+Tab observed, so it's a window click.
	got := tr.observe("Notepad", 10, t0.Add(2*time.Second))
	require.NotNil(t, got)
	assert.Equal(t, "Browser", got.FromApplication)
	assert.Equal(t, "Notepad", got.ToApplication)
	assert.Equal(t, SwitchWindowClick, got.Method)
	assert.GreaterOrEqual(t, got.DwellTimeMs, int64(1000))

	// Alt+Tab attribution is consumed by the first switch it explains.
	tr.noteAltTab()
	got = tr.observe("Browser", 20, t0.Add(4*time.Second))
	require.NotNil(t, got)
	assert.Equal(t, SwitchAltTab, got.Method)

	got = tr.observe("Notepad", 10, t0.Add(6*time.Second))
	require.NotNil(t, got)
	assert.Equal(t, SwitchWindowClick, got.Method)
}

func TestBrowserTrackerEmitsOnChange(t *testing.T) {
	tr := &browserTracker{}
	t0 := time.Now()

	first := tr.observe("chrome", "https://example.com", "Example", t0)
	require.NotNil(t, first)
	assert.Equal(t, "https://example.com", first.URL)
	assert.Empty(t, first.PreviousURL)

	// Same page, no event.
	assert.Nil(t, tr.observe("chrome", "https://example.com", "Example", t0.Add(time.Second)))

	second := tr.observe("chrome", "https://example.com/about", "About", t0.Add(3*time.Second))
	require.NotNil(t, second)
	assert.Equal(t, "https://example.com", second.PreviousURL)
	assert.Equal(t, int64(3000), second.DwellTimeMs)
}

func TestClassifyClick(t *testing.T) {
	for _, tt := range []struct {
		role, name, desc string
		want             InteractionType
	}{
		{"Button", "OK", "", InteractionSubmit},
		{"Button", "Save", "", InteractionSubmit},
		{"Button", "Cancel", "", InteractionCancel},
		{"Button", "Dismiss", "", InteractionCancel},
		{"CheckBox", "Remember me", "", InteractionToggle},
		{"RadioButton", "Option A", "", InteractionToggle},
		{"ComboBox", "Country", "", InteractionDropdownToggle},
		{"Button", "", "submit", InteractionSubmit},
		{"Button", "View details", "", InteractionClick},
		{"Hyperlink", "Learn more", "", InteractionClick},
	} {
		assert.Equal(t, tt.want, classifyClick(tt.role, tt.name, tt.desc),
			"role=%s name=%s desc=%s", tt.role, tt.name, tt.desc)
	}
}

func TestHookHotkeysAndModifierState(t *testing.T) {
	var sink collector
	altTabs := 0
	h := &hook{
		cfg:      DefaultConfig(),
		mods:     newModifierState(),
		requests: make(chan uiaRequest, 8),
		emit:     sink.emit,
		altTab:   func() { altTabs++ },
		log:      quietLog(),
	}
	now := time.Now()

	h.handle(RawInput{Kind: RawKeyDown, Key: "Ctrl", Time: now})
	h.handle(RawInput{Kind: RawKeyDown, Key: "c", Time: now})
	h.handle(RawInput{Kind: RawKeyUp, Key: "c", Time: now})
	h.handle(RawInput{Kind: RawKeyUp, Key: "Ctrl", Time: now})

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventHotkey, events[0].Type)
	assert.Equal(t, "Ctrl+c", events[0].Hotkey.Combination)
	assert.Equal(t, "Copy", events[0].Hotkey.Action)

	// After Ctrl is released, plain "c" is an ordinary key press.
	h.handle(RawInput{Kind: RawKeyDown, Key: "c", Time: now})
	events = sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventKeyPress, events[1].Type)

	// Alt+Tab marks the application-switch attribution flag.
	h.handle(RawInput{Kind: RawKeyDown, Key: "Alt", Time: now})
	h.handle(RawInput{Kind: RawKeyDown, Key: "Tab", Time: now})
	assert.Equal(t, 1, altTabs)
	events = sink.all()
	assert.Equal(t, "SwitchWindow", events[len(events)-1].Hotkey.Action)
}

func TestHookThrottlesMouseMoves(t *testing.T) {
	var sink collector
	cfg := DefaultConfig()
	cfg.MouseMoveThrottle = 50 * time.Millisecond
	h := &hook{
		cfg:      cfg,
		mods:     newModifierState(),
		requests: make(chan uiaRequest, 8),
		emit:     sink.emit,
		altTab:   func() {},
		log:      quietLog(),
	}
	t0 := time.Now()
	h.handle(RawInput{Kind: RawMouseMove, X: 1, Y: 1, Time: t0})
	h.handle(RawInput{Kind: RawMouseMove, X: 2, Y: 2, Time: t0.Add(10 * time.Millisecond)})
	h.handle(RawInput{Kind: RawMouseMove, X: 3, Y: 3, Time: t0.Add(20 * time.Millisecond)})
	h.handle(RawInput{Kind: RawMouseMove, X: 4, Y: 4, Time: t0.Add(80 * time.Millisecond)})

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Mouse.X)
	assert.Equal(t, 4, events[1].Mouse.X)
}

func TestHookDropsRequestsWhenQueueFull(t *testing.T) {
	var sink collector
	h := &hook{
		cfg:      DefaultConfig(),
		mods:     newModifierState(),
		requests: make(chan uiaRequest, 1),
		emit:     sink.emit,
		altTab:   func() {},
		log:      quietLog(),
	}
	now := time.Now()
	h.handle(RawInput{Kind: RawMouseDown, Button: "left", X: 1, Y: 1, Time: now})
	h.handle(RawInput{Kind: RawMouseDown, Button: "left", X: 2, Y: 2, Time: now})
	assert.Equal(t, uint64(1), h.dropped)
}

func TestEventLimiter(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	l := newEventLimiter(2, 0, clock)
	// Burst is 2x rate: four events pass, the fifth is limited.
	for i := 0; i < 4; i++ {
		assert.True(t, l.allow(), "event %d", i)
	}
	assert.False(t, l.allow())

	// Tokens refill with time.
	now = now.Add(time.Second)
	assert.True(t, l.allow())

	// Minimum spacing rejects even when tokens remain.
	now = now.Add(time.Second)
	spaced := newEventLimiter(100, 50*time.Millisecond, clock)
	assert.True(t, spaced.allow())
	now = now.Add(10 * time.Millisecond)
	assert.False(t, spaced.allow())
	now = now.Add(60 * time.Millisecond)
	assert.True(t, spaced.allow())

	// Nil limiter means unlimited.
	var disabled *eventLimiter
	assert.True(t, disabled.allow())
	assert.Equal(t, float64(-1), disabled.available())
}

// clickTestTree builds desktop > window > {button OK, edit Name, list>item}.
func clickTestTree() (*uiatest.Driver, *uiatest.Node, *uiatest.Node, *uiatest.Node) {
	button := &uiatest.Node{
		ID: "btn", Role: "Button", Name: "OK",
		Bounds:       uia.Bounds{X: 100, Y: 100, Width: 50, Height: 20},
		Capabilities: []string{uiatest.CapInvoke},
	}
	edit := &uiatest.Node{
		ID: "edit", Role: "Edit", Name: "Name",
		Bounds:            uia.Bounds{X: 100, Y: 150, Width: 200, Height: 20},
		KeyboardFocusable: true,
	}
	item := &uiatest.Node{
		ID: "item", Role: "ListItem", Name: "Paris",
		Bounds: uia.Bounds{X: 100, Y: 180, Width: 200, Height: 16},
	}
	list := &uiatest.Node{
		ID: "list", Role: "List", Name: "Suggestions",
		Bounds:   uia.Bounds{X: 100, Y: 175, Width: 200, Height: 40},
		Children: []*uiatest.Node{item},
	}
	window := &uiatest.Node{
		ID: "win", Role: "Window", Name: "Form", PID: 7,
		WindowTitle: "Form", ApplicationName: "FormApp",
		Bounds:   uia.Bounds{X: 0, Y: 0, Width: 800, Height: 600},
		Children: []*uiatest.Node{button, edit, list},
	}
	root := &uiatest.Node{
		ID: "root", Role: "Desktop",
		Bounds:   uia.Bounds{X: 0, Y: 0, Width: 1920, Height: 1080},
		Children: []*uiatest.Node{window},
	}
	return uiatest.NewDriver(root), button, edit, item
}

func newTestProcessor(d *uiatest.Driver, sink *collector) (*processor, *textInputTracker) {
	cfg := DefaultConfig()
	text := &textInputTracker{}
	return &processor{
		cfg:    cfg,
		driver: d,
		emit:   sink.emit,
		clicks: &doubleClickTracker{interval: cfg.DoubleClickInterval, tolerance: cfg.DoubleClickTolerancePx},
		text:   text,
		log:    quietLog(),
	}, text
}

func TestProcessorResolvesAndClassifiesClick(t *testing.T) {
	d, _, _, _ := clickTestTree()
	var sink collector
	p, _ := newTestProcessor(d, &sink)

	p.handle(uiaRequest{kind: reqMouseDown, button: "left", x: 110, y: 105, time: time.Now()})

	events := sink.all()
	require.Len(t, events, 1)
	require.Equal(t, EventClick, events[0].Type)
	click := events[0].Click
	assert.Equal(t, "Button", click.ElementRole)
	assert.Equal(t, "OK", click.ElementName)
	assert.Equal(t, InteractionSubmit, click.InteractionType)
	assert.Equal(t, "FormApp", click.Application)
	assert.Equal(t, "Form", click.WindowTitle)
	assert.True(t, click.Enabled)
}

func TestProcessorEmitsDoubleClickExactlyOnce(t *testing.T) {
	d, _, _, _ := clickTestTree()
	var sink collector
	p, _ := newTestProcessor(d, &sink)
	t0 := time.Now()

	p.handle(uiaRequest{kind: reqMouseDown, button: "left", x: 110, y: 105, time: t0})
	p.handle(uiaRequest{kind: reqMouseDown, button: "left", x: 111, y: 105, time: t0.Add(100 * time.Millisecond)})
	p.handle(uiaRequest{kind: reqMouseDown, button: "left", x: 111, y: 105, time: t0.Add(200 * time.Millisecond)})

	assert.Equal(t, []EventType{EventClick, EventDoubleClick, EventClick}, sink.types())
}

func TestProcessorSuggestionClickCompletesTextInput(t *testing.T) {
	d, _, edit, _ := clickTestTree()
	var sink collector
	p, text := newTestProcessor(d, &sink)
	t0 := time.Now()

	text.begin(d.Elem(edit), "Edit", "Name", "FormApp", t0)
	text.keystroke()
	text.keystroke()

	// Click inside the suggestion item.
	p.handle(uiaRequest{kind: reqMouseDown, button: "left", x: 110, y: 185, time: t0.Add(2 * time.Second)})

	events := sink.all()
	require.Len(t, events, 2)
	require.Equal(t, EventTextInputCompleted, events[0].Type)
	ti := events[0].TextInput
	assert.Equal(t, "Paris", ti.TextValue)
	assert.Equal(t, InputSuggestion, ti.InputMethod)
	assert.Equal(t, 2, ti.KeystrokeCount)
	assert.Equal(t, "Edit", ti.FieldRole)
	assert.Equal(t, EventClick, events[1].Type)
}

func TestProcessorEnterCompletesTextInput(t *testing.T) {
	d, _, edit, _ := clickTestTree()
	var sink collector
	p, text := newTestProcessor(d, &sink)
	t0 := time.Now()

	edit.Value = "Alice"
	text.begin(d.Elem(edit), "Edit", "Name", "FormApp", t0)

	p.handle(uiaRequest{kind: reqKeyActivation, key: "Enter", time: t0.Add(time.Second)})

	events := sink.all()
	require.Len(t, events, 1)
	ti := events[0].TextInput
	assert.Equal(t, "Alice", ti.TextValue)
	assert.Equal(t, InputTyped, ti.InputMethod)
	assert.Equal(t, int64(1000), ti.DurationMs)
	assert.False(t, text.tracking())
}

func TestFocusPumpTracksTextInputAcrossFocusChange(t *testing.T) {
	d, button, edit, _ := clickTestTree()
	var sink collector
	cfg := DefaultConfig()
	text := &textInputTracker{}
	pump := newFocusPump(cfg, d, sink.emit, &appSwitchTracker{dwell: time.Hour}, &browserTracker{}, text, quietLog())
	t0 := time.Now()

	d.SetFocus(edit)
	pump.process(t0)
	assert.True(t, text.tracking())

	edit.Value = "Bob"
	d.SetFocus(button)
	pump.process(t0.Add(2 * time.Second))

	events := sink.all()
	require.Len(t, events, 1)
	require.Equal(t, EventTextInputCompleted, events[0].Type)
	assert.Equal(t, "Bob", events[0].TextInput.TextValue)
	assert.False(t, text.tracking())
}

func TestClipboardPollerSuppressesInitialContent(t *testing.T) {
	d, _, _, _ := clickTestTree()
	require.NoError(t, d.WriteText("preexisting"))

	var sink collector
	cfg := DefaultConfig()
	cfg.MaxClipboardBytes = 5
	cp := &clipboardPoller{cfg: cfg, driver: d, emit: sink.emit, log: quietLog()}

	content, err := d.ReadText()
	require.NoError(t, err)
	cp.lastHash = contentHash(content)

	// Unchanged content emits nothing.
	cp.poll(time.Now())
	assert.Empty(t, sink.all())

	require.NoError(t, d.WriteText("fresh content"))
	cp.poll(time.Now())
	events := sink.all()
	require.Len(t, events, 1)
	clip := events[0].Clipboard
	assert.Equal(t, "fresh", clip.Content)
	assert.True(t, clip.Truncated)
	assert.Equal(t, len("fresh content"), clip.SizeBytes)
}

func TestRecorderPipelineEndToEnd(t *testing.T) {
	d, _, _, _ := clickTestTree()
	src := NewChannelSource(16)
	cfg := DefaultConfig()
	rec := New(d, src, cfg, quietLog())
	require.NoError(t, rec.Start(t.Context()))

	now := time.Now()
	src.C <- RawInput{Kind: RawKeyDown, Key: "Ctrl", Time: now}
	src.C <- RawInput{Kind: RawKeyDown, Key: "c", Time: now}
	src.C <- RawInput{Kind: RawMouseDown, Button: uia.MouseLeft, X: 110, Y: 105, Time: now}

	want := map[EventType]bool{EventHotkey: false, EventClick: false}
	deadline := time.After(2 * time.Second)
	for {
		done := true
		for _, seen := range want {
			if !seen {
				done = false
			}
		}
		if done {
			break
		}
		select {
		case ev := <-rec.Events():
			if _, tracked := want[ev.Type]; tracked {
				want[ev.Type] = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events; got %v", want)
		}
	}

	rec.Stop()
	// The events channel closes once the pipeline drains.
	for range rec.Events() {
	}
}
