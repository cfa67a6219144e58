// Copyright 2025 Joseph Cumines
//
// Element screenshot tool

package server

import (
	"context"
)

func (s *Server) registerScreenshotTools() {
	s.register("capture_element_screenshot",
		"Captures a screenshot of a UI element's pixel region, clipped to the monitors that show it and taken at the monitor's DPI scale. Returns base64-encoded PNG data.",
		s.handleCaptureElementScreenshot,
		composeSchema(selectorSchema(), actionSchema())...,
	)
}

func (s *Server) handleCaptureElementScreenshot(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.actor.CaptureElement(ctx, res)
	if err != nil {
		return nil, err
	}
	return toMap(result)
}
