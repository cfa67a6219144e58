// Copyright 2025 Joseph Cumines
//
// Token bucket rate limiter for recorded events

package recorder

import (
	"sync"
	"time"
)

// eventLimiter applies a token bucket plus a minimum inter-event spacing.
// High-value event types bypass it entirely; see Recorder.publish.
type eventLimiter struct {
	clock      func() time.Time
	lastUpdate time.Time
	lastEvent  time.Time
	rate       float64
	burst      float64
	tokens     float64
	minSpacing time.Duration
	mu         sync.Mutex
}

// newEventLimiter returns a limiter for the given events-per-second rate.
// The burst size is 2x the rate. Returns nil when rate is 0 or negative,
// which disables limiting.
func newEventLimiter(eventsPerSecond float64, minSpacing time.Duration, clock func() time.Time) *eventLimiter {
	if eventsPerSecond <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	burst := eventsPerSecond * 2
	if burst < 1 {
		burst = 1
	}
	return &eventLimiter{
		rate:       eventsPerSecond,
		burst:      burst,
		tokens:     burst,
		minSpacing: minSpacing,
		lastUpdate: clock(),
		clock:      clock,
	}
}

// allow checks whether an event may pass and consumes a token if so.
// A nil limiter always allows. Thread-safe.
func (l *eventLimiter) allow() bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if l.minSpacing > 0 && !l.lastEvent.IsZero() && now.Sub(l.lastEvent) < l.minSpacing {
		return false
	}

	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastUpdate = now

	if l.tokens < 1 {
		return false
	}

	l.tokens--
	l.lastEvent = now
	return true
}

// available returns the current token count, -1 when disabled.
func (l *eventLimiter) available() float64 {
	if l == nil {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}
