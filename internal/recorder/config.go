// Copyright 2025 Joseph Cumines

package recorder

import "time"

// Config tunes the recorder pipeline. Zero values mean "use the default".
type Config struct {
	// MouseMoveThrottle is the minimum spacing between forwarded mouse
	// moves from the hook.
	MouseMoveThrottle time.Duration
	// DoubleClickInterval and DoubleClickTolerancePx bound what counts as
	// a double click.
	DoubleClickInterval    time.Duration
	DoubleClickTolerancePx int
	// AppSwitchDwell is the minimum time on the previous application
	// before a switch is emitted.
	AppSwitchDwell time.Duration
	// ClipboardPollInterval spaces clipboard content-hash checks.
	ClipboardPollInterval time.Duration
	// MaxClipboardBytes truncates captured clipboard content.
	MaxClipboardBytes int
	// UIATimeout bounds each blocking accessibility call inside the
	// processor and focus pump.
	UIATimeout time.Duration
	// RequestQueueSize bounds the hook-to-processor channel.
	RequestQueueSize int
	// EventBufferSize bounds the outgoing event channel.
	EventBufferSize int

	// PerformanceMode gates the noise filters and the event rate limit.
	PerformanceMode    bool
	MaxEventsPerSecond float64
	MinEventSpacing    time.Duration
	FilterMouseNoise   bool
	FilterKeyNoise     bool
}

// DefaultConfig returns the recorder defaults.
func DefaultConfig() Config {
	return Config{
		MouseMoveThrottle:      50 * time.Millisecond,
		DoubleClickInterval:    500 * time.Millisecond,
		DoubleClickTolerancePx: 4,
		AppSwitchDwell:         time.Second,
		ClipboardPollInterval:  200 * time.Millisecond,
		MaxClipboardBytes:      4096,
		UIATimeout:             100 * time.Millisecond,
		RequestQueueSize:       256,
		EventBufferSize:        1024,
		MaxEventsPerSecond:     30,
		MinEventSpacing:        10 * time.Millisecond,
		FilterMouseNoise:       true,
		FilterKeyNoise:         true,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MouseMoveThrottle <= 0 {
		c.MouseMoveThrottle = d.MouseMoveThrottle
	}
	if c.DoubleClickInterval <= 0 {
		c.DoubleClickInterval = d.DoubleClickInterval
	}
	if c.DoubleClickTolerancePx <= 0 {
		c.DoubleClickTolerancePx = d.DoubleClickTolerancePx
	}
	if c.AppSwitchDwell <= 0 {
		c.AppSwitchDwell = d.AppSwitchDwell
	}
	if c.ClipboardPollInterval <= 0 {
		c.ClipboardPollInterval = d.ClipboardPollInterval
	}
	if c.MaxClipboardBytes <= 0 {
		c.MaxClipboardBytes = d.MaxClipboardBytes
	}
	if c.UIATimeout <= 0 {
		c.UIATimeout = d.UIATimeout
	}
	if c.RequestQueueSize <= 0 {
		c.RequestQueueSize = d.RequestQueueSize
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = d.EventBufferSize
	}
	if c.MaxEventsPerSecond <= 0 {
		c.MaxEventsPerSecond = d.MaxEventsPerSecond
	}
	if c.MinEventSpacing <= 0 {
		c.MinEventSpacing = d.MinEventSpacing
	}
	return c
}
