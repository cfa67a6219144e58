// Copyright 2025 Joseph Cumines
//
// Clipboard tools

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func (s *Server) registerClipboardTools() {
	s.register("get_clipboard",
		"Reads the current text content of the system clipboard. Read-only.",
		s.handleGetClipboard,
	)

	s.register("set_clipboard",
		"Writes text to the system clipboard.",
		s.handleSetClipboard,
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to place on the clipboard.")),
	)
}

func (s *Server) handleGetClipboard(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, err := s.driver.ReadText()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"action":  "get_clipboard",
		"status":  "success",
		"content": text,
		"length":  len(text),
	}, nil
}

func (s *Server) handleSetClipboard(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, ok := argString(args, "text")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: text")
	}
	if err := s.driver.WriteText(text); err != nil {
		return nil, err
	}
	return map[string]any{
		"action":  "set_clipboard",
		"status":  "success",
		"content": truncateText(text),
		"length":  len(text),
	}, nil
}
