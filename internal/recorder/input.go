// Copyright 2025 Joseph Cumines

package recorder

import (
	"time"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// RawKind identifies one low-level input event from the OS hook.
type RawKind int

const (
	RawKeyDown RawKind = iota
	RawKeyUp
	RawMouseDown
	RawMouseUp
	RawMouseMove
	RawMouseWheel
)

// RawInput is one event as delivered by the platform input hook binding.
type RawInput struct {
	Kind   RawKind
	Key    string
	Button uia.MouseButton
	X, Y   int
	Delta  int
	Time   time.Time
}

// InputSource delivers raw input events. The platform binding implements it;
// tests feed a channel directly. The channel closes when the source stops.
type InputSource interface {
	Events() <-chan RawInput
	Close() error
}

// ChannelSource is an InputSource backed by a plain channel, used by tests
// and by replay tooling.
type ChannelSource struct {
	C chan RawInput
}

// NewChannelSource returns a buffered channel-backed source.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{C: make(chan RawInput, buffer)}
}

func (s *ChannelSource) Events() <-chan RawInput { return s.C }

func (s *ChannelSource) Close() error {
	close(s.C)
	return nil
}
