// Copyright 2025 Joseph Cumines
//
// Read-only observation tools and the delay helper

package server

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func (s *Server) registerObservationTools() {
	s.register("get_window_tree",
		"Returns the UI tree for an application by process id, optionally narrowed to a window title. The primary tool for understanding the application's current state. Read-only.",
		s.handleGetWindowTree,
		composeSchema(treeSchema(),
			[]mcp.ToolOption{
				mcp.WithNumber("pid", mcp.Required(), mcp.Description("Process id of the target application.")),
				mcp.WithString("title", mcp.Description("Optional window title filter; substring match.")),
			})...,
	)

	s.register("get_focused_window_tree",
		"Returns the UI tree of the application that currently holds keyboard focus. Read-only.",
		s.handleGetFocusedWindowTree,
		composeSchema(treeSchema())...,
	)

	s.register("get_applications",
		"Lists running applications with name, pid, and focus state. Read-only; returns a flat list without UI trees.",
		s.handleGetApplications,
	)

	s.register("delay",
		"Delays execution for the given number of milliseconds. Useful between actions while the UI settles.",
		s.handleDelay,
		mcp.WithNumber("delay_ms", mcp.Required(), mcp.Description("Milliseconds to wait.")),
	)
}

func (s *Server) handleGetWindowTree(ctx context.Context, args map[string]any) (map[string]any, error) {
	pidValue, ok := argFloat(args, "pid")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required numeric argument: pid")
	}
	app, err := s.driver.ApplicationByPID(int32(pidValue))
	if err != nil {
		return nil, err
	}

	root := app
	if title, hasTitle := argString(args, "title"); hasTitle && title != "" {
		if match := findWindowByTitle(app, title); match != nil {
			root = match
		}
	}

	topts := decodeTreeOptions(args)
	rendered, err := s.renderTree(ctx, root, topts)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"action":    "get_window_tree",
		"status":    "success",
		"pid":       int32(pidValue),
		"ui_tree":   rendered,
		"format":    topts.Capture.Format,
		"timestamp": time.Now().UTC(),
	}, nil
}

// findWindowByTitle scans the application's direct children for a window
// whose title contains the filter, case-insensitively.
func findWindowByTitle(app uia.Element, title string) uia.Element {
	children, err := app.Children()
	if err != nil {
		return nil
	}
	needle := strings.ToLower(title)
	for _, child := range children {
		if t, err := child.WindowTitle(); err == nil &&
			strings.Contains(strings.ToLower(t), needle) {
			return child
		}
	}
	return nil
}

func (s *Server) handleGetFocusedWindowTree(ctx context.Context, args map[string]any) (map[string]any, error) {
	focused, err := s.driver.FocusedElement()
	if err != nil {
		return nil, err
	}
	app, err := focused.Application()
	if err != nil {
		return nil, err
	}

	topts := decodeTreeOptions(args)
	rendered, err := s.renderTree(ctx, app, topts)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"action":    "get_focused_window_tree",
		"status":    "success",
		"ui_tree":   rendered,
		"timestamp": time.Now().UTC(),
	}
	if pid, err := app.ProcessID(); err == nil {
		out["pid"] = pid
	}
	if name, err := app.ApplicationName(); err == nil {
		out["application_name"] = name
	}
	return out, nil
}

func (s *Server) handleGetApplications(ctx context.Context, args map[string]any) (map[string]any, error) {
	apps, err := s.driver.Applications()
	if err != nil {
		return nil, err
	}

	var focusedPID int32 = -1
	if focused, err := s.driver.FocusedElement(); err == nil {
		if pid, err := focused.ProcessID(); err == nil {
			focusedPID = pid
		}
	}

	list := make([]map[string]any, 0, len(apps))
	for _, app := range apps {
		entry := map[string]any{}
		if name, err := app.ApplicationName(); err == nil {
			entry["name"] = name
		}
		if title, err := app.WindowTitle(); err == nil && title != "" {
			entry["window_title"] = title
		}
		pid, err := app.ProcessID()
		if err != nil {
			continue
		}
		entry["pid"] = pid
		entry["is_focused"] = pid == focusedPID
		entry["id"] = uia.FormatID(s.cache.ID(app))
		list = append(list, entry)
	}
	return map[string]any{
		"action":       "get_applications",
		"status":       "success",
		"applications": list,
		"count":        len(list),
		"timestamp":    time.Now().UTC(),
	}, nil
}

func (s *Server) handleDelay(ctx context.Context, args map[string]any) (map[string]any, error) {
	ms, ok := argFloat(args, "delay_ms")
	if !ok || ms < 0 {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required numeric argument: delay_ms")
	}
	if err := uia.WaitSettle(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		return nil, err
	}
	return map[string]any{
		"action":     "delay",
		"status":     "success",
		"delayed_ms": int64(ms),
	}, nil
}
