// Copyright 2025 Joseph Cumines
//
// Keyboard input tools

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/action"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func (s *Server) registerInputTools() {
	s.register("type_into_element",
		"Types text into a UI element. Focuses the target, optionally clears it, then writes through the clipboard paste path with a transparent per-character fallback. Much faster than individual key presses.",
		s.handleTypeIntoElement,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{
				mcp.WithString("text_to_type", mcp.Required(), mcp.Description("The text to type into the element.")),
				mcp.WithBoolean("clear_before_typing", mcp.Description("Clear the element before typing. Defaults to true.")),
				mcp.WithBoolean("use_clipboard", mcp.Description("Paste through the clipboard instead of per-character synthesis. Defaults to true.")),
				mcp.WithBoolean("verify_action", mcp.Description("Re-read focus and enabled state after typing. Defaults to true.")),
			})...,
	)

	s.register("press_key",
		"Sends a key sequence to a UI element after focusing it. Curly-brace syntax: {Ctrl}c, {Alt}{F4}, {Enter}, {PageDown}, {Tab}; printable characters are typed literally.",
		s.handlePressKey,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{
				mcp.WithString("key", mcp.Required(), mcp.Description("The key sequence to send, e.g. {Ctrl}c or {Enter}.")),
			})...,
	)

	s.register("press_key_global",
		"Sends a key sequence to the currently focused element; no selector required.",
		s.handlePressKeyGlobal,
		mcp.WithString("key", mcp.Required(), mcp.Description("The key sequence to send, e.g. {Ctrl}s or {F5}.")),
	)
}

func (s *Server) handleTypeIntoElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, ok := argString(args, "text_to_type")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: text_to_type")
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.TypeInto(ctx, res, text, action.TypeOptions{
			ClearBefore:  argBool(args, "clear_before_typing", true),
			UseClipboard: argBool(args, "use_clipboard", true),
			VerifyAction: argBool(args, "verify_action", true),
		})
	})
	if err != nil {
		return nil, err
	}
	out, err := s.completeAction(ctx, res, args, result)
	if err != nil {
		return nil, err
	}
	out["text_typed"] = truncateText(text)
	return out, nil
}

func (s *Server) handlePressKey(ctx context.Context, args map[string]any) (map[string]any, error) {
	sequence, ok := argString(args, "key")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: key")
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.PressKey(ctx, res, sequence)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handlePressKeyGlobal(ctx context.Context, args map[string]any) (map[string]any, error) {
	sequence, ok := argString(args, "key")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: key")
	}
	result, err := s.actor.PressKeyGlobal(ctx, sequence)
	if err != nil {
		return nil, err
	}
	return toMap(result)
}
