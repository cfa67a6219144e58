// Copyright 2025 Joseph Cumines

package server

import (
	"context"
	"time"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// maxRecordedEvents caps the in-memory event buffer for a single recording
// session; older sessions should be stopped and drained before this fills.
const maxRecordedEvents = 10000

func (s *Server) registerRecorderTools() {
	s.register("start_recording",
		"Starts capturing user interactions (clicks, typed text, hotkeys, application "+
			"switches, clipboard, browser navigation) as semantic events. Only one "+
			"recording can be active at a time.",
		s.handleStartRecording,
	)
	s.register("stop_recording",
		"Stops the active recording and returns the captured events.",
		s.handleStopRecording,
	)
}

func (s *Server) handleStartRecording(ctx context.Context, _ map[string]any) (map[string]any, error) {
	if s.newRecorder == nil {
		return nil, uia.NewError(uia.KindUnsupportedOperation, "recording is not available: no input source configured")
	}

	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.rec != nil {
		return nil, uia.NewError(uia.KindInvalidArgument, "a recording is already in progress")
	}

	rec, err := s.newRecorder(s.driver, s.log)
	if err != nil {
		return nil, err
	}

	// The recording outlives the request; it runs until stop_recording.
	recCtx, cancel := context.WithCancel(context.Background())
	if err := rec.Start(recCtx); err != nil {
		cancel()
		return nil, err
	}

	s.rec = rec
	s.recCancel = cancel
	s.recDone = make(chan struct{})
	s.recEvents = nil
	s.recStarted = time.Now()

	done := s.recDone
	go func() {
		defer close(done)
		for ev := range rec.Events() {
			s.recMu.Lock()
			if len(s.recEvents) < maxRecordedEvents {
				s.recEvents = append(s.recEvents, ev)
			}
			s.recMu.Unlock()
		}
	}()

	s.log.Info("recording started")
	return map[string]any{
		"action":     "start_recording",
		"status":     "success",
		"started_at": s.recStarted.UTC().Format(time.RFC3339),
	}, nil
}

func (s *Server) handleStopRecording(ctx context.Context, _ map[string]any) (map[string]any, error) {
	s.recMu.Lock()
	rec := s.rec
	cancel := s.recCancel
	done := s.recDone
	started := s.recStarted
	s.rec = nil
	s.recCancel = nil
	s.recDone = nil
	s.recMu.Unlock()

	if rec == nil {
		return nil, uia.NewError(uia.KindInvalidArgument, "no recording is in progress")
	}

	rec.Stop()
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.recMu.Lock()
	events := s.recEvents
	s.recEvents = nil
	s.recMu.Unlock()

	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		m, err := toMap(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	s.log.WithField("events", len(out)).Info("recording stopped")
	return map[string]any{
		"action":      "stop_recording",
		"status":      "success",
		"events":      out,
		"event_count": len(out),
		"duration_ms": time.Since(started).Milliseconds(),
	}, nil
}
