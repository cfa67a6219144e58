// Copyright 2025 Joseph Cumines
//
// Window lifecycle tools

package server

import (
	"context"

	"github.com/joeycumines/DesktopUseAgent/internal/action"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func (s *Server) registerWindowTools() {
	s.register("activate_element",
		"Activates the window containing the element, bringing it to the foreground.",
		s.handleActivateElement,
		composeSchema(selectorSchema(), actionSchema(), treeSchema())...,
	)

	s.register("minimize_window",
		"Minimizes the window containing the element.",
		s.handleMinimizeWindow,
		composeSchema(selectorSchema(), actionSchema())...,
	)

	s.register("maximize_window",
		"Maximizes the window containing the element.",
		s.handleMaximizeWindow,
		composeSchema(selectorSchema(), actionSchema())...,
	)

	s.register("close_element",
		"Closes a window, application, or dialog: the window close capability when present, then Alt+F4, then process termination as a last resort. Close on a button is only permitted when the button's name is close-like.",
		s.handleCloseElement,
		composeSchema(selectorSchema(), actionSchema(), verifySchema())...,
	)
}

func (s *Server) windowTool(ctx context.Context, args map[string]any, op func(context.Context, uia.Resolution) (action.Result, error)) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := op(ctx, res)
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleActivateElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.windowTool(ctx, args, s.actor.ActivateElement)
}

func (s *Server) handleMinimizeWindow(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.windowTool(ctx, args, s.actor.MinimizeWindow)
}

func (s *Server) handleMaximizeWindow(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.windowTool(ctx, args, s.actor.MaximizeWindow)
}

func (s *Server) handleCloseElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.windowTool(ctx, args, s.actor.CloseElement)
}
