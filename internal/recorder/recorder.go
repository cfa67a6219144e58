// Copyright 2025 Joseph Cumines

package recorder

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// Recorder owns the full pipeline: input hook, UIA processor, focus pump,
// and clipboard poller. Consumers read semantic events from Events.
type Recorder struct {
	cfg    Config
	driver uia.Driver
	source InputSource
	log    logrus.FieldLogger

	events   chan Event
	requests chan uiaRequest
	limiter  *eventLimiter

	clicks  *doubleClickTracker
	app     *appSwitchTracker
	browser *browserTracker
	text    *textInputTracker
	focus   *focusPump

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped chan struct{}
	dropped uint64
	mu      sync.Mutex
	started bool
}

// New wires a Recorder; Start begins recording.
func New(driver uia.Driver, source InputSource, cfg Config, log logrus.FieldLogger) *Recorder {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Recorder{
		cfg:      cfg,
		driver:   driver,
		source:   source,
		log:      log,
		events:   make(chan Event, cfg.EventBufferSize),
		requests: make(chan uiaRequest, cfg.RequestQueueSize),
		clicks:   &doubleClickTracker{interval: cfg.DoubleClickInterval, tolerance: cfg.DoubleClickTolerancePx},
		app:      &appSwitchTracker{dwell: cfg.AppSwitchDwell},
		browser:  &browserTracker{},
		text:     &textInputTracker{},
		stopped:  make(chan struct{}),
	}
	if cfg.PerformanceMode {
		r.limiter = newEventLimiter(cfg.MaxEventsPerSecond, cfg.MinEventSpacing, nil)
	}
	r.focus = newFocusPump(cfg, driver, r.publish, r.app, r.browser, r.text, log)
	return r
}

// Events is the stream of recorded semantic events. It closes after Stop
// once all pipeline stages have drained.
func (r *Recorder) Events() <-chan Event { return r.events }

// FocusChanged is the entry point for platform focus-change notifications.
// It never blocks.
func (r *Recorder) FocusChanged() { r.focus.Notify() }

// Start launches the pipeline goroutines. Returns an error when already
// started.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return uia.NewError(uia.KindInvalidArgument, "recorder already started")
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)

	h := &hook{
		cfg:      r.cfg,
		mods:     newModifierState(),
		requests: r.requests,
		emit:     r.publish,
		altTab:   r.app.noteAltTab,
		log:      r.log,
	}
	p := &processor{
		cfg:    r.cfg,
		driver: r.driver,
		emit:   r.publish,
		clicks: r.clicks,
		text:   r.text,
		log:    r.log,
	}
	cp := &clipboardPoller{cfg: r.cfg, driver: r.driver, emit: r.publish, log: r.log}

	r.wg.Add(4)
	go func() {
		defer r.wg.Done()
		h.run(r.source)
		close(r.requests)
	}()
	go func() {
		defer r.wg.Done()
		p.run(r.requests)
	}()
	go func() {
		defer r.wg.Done()
		r.focus.run(ctx)
	}()
	go func() {
		defer r.wg.Done()
		cp.run(ctx)
	}()

	go func() {
		r.wg.Wait()
		close(r.events)
	}()
	return nil
}

// Stop closes the input source, cancels the background pollers, and waits
// for the pipeline to drain. The events channel closes afterwards.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	select {
	case <-r.stopped:
		return
	default:
		close(r.stopped)
	}
	_ = r.source.Close()
	r.cancel()
	r.wg.Wait()
}

// publish applies the noise filters and rate limit, then delivers the
// event. High-value events are never dropped and never rate limited.
func (r *Recorder) publish(ev Event) {
	if ev.Type == EventKeyPress {
		r.text.keystroke()
	}

	if !highValue[ev.Type] {
		if r.cfg.PerformanceMode && r.isNoise(ev) {
			return
		}
		if !r.limiter.allow() {
			return
		}
		select {
		case r.events <- ev:
		default:
			r.dropped++
		}
		return
	}

	select {
	case r.events <- ev:
	case <-r.stopped:
	}
}

// isNoise applies the performance-mode filters.
func (r *Recorder) isNoise(ev Event) bool {
	switch ev.Type {
	case EventMouseMove, EventMouseWheel:
		return r.cfg.FilterMouseNoise
	case EventKeyPress:
		if !r.cfg.FilterKeyNoise || ev.KeyPress == nil {
			return false
		}
		key := ev.KeyPress.Key
		return utf8.RuneCountInString(key) != 1 && !editingKeys[key]
	}
	return false
}
