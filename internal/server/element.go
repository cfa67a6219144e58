// Copyright 2025 Joseph Cumines
//
// Element tools: clicking, validation, waiting, and highlighting

package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/action"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func (s *Server) registerElementTools() {
	s.register("click_element",
		"Clicks a UI element after Playwright-style actionability validation: the element must be attached, visible, enabled, in viewport, and hold stable bounds. Fails with a specific error kind (ElementNotVisible, ElementNotEnabled, ElementNotStable, ElementDetached, ElementObscured) when a precondition does not hold. Prefer invoke_element for buttons; use click_element for links and hover-sensitive UI.",
		s.handleClickElement,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{mcp.WithBoolean("verify_action",
				mcp.Description("Re-read the element after the click to confirm it is still attached. Defaults to true."))})...,
	)

	s.register("invoke_element",
		"Invokes a UI element through the accessibility invoke capability. More reliable than clicking for buttons, radio buttons and menu items; does not require viewport visibility.",
		s.handleInvokeElement,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema())...,
	)

	s.register("double_click_element",
		"Double-clicks a UI element at its clickable point.",
		s.handleDoubleClickElement,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema())...,
	)

	s.register("right_click_element",
		"Right-clicks a UI element at its clickable point, typically opening a context menu.",
		s.handleRightClickElement,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema())...,
	)

	s.register("mouse_drag",
		"Drags from the element's clickable point to the given screen coordinates.",
		s.handleMouseDrag,
		composeSchema(selectorSchema(), actionSchema(),
			[]mcp.ToolOption{
				mcp.WithNumber("end_x", mcp.Required(), mcp.Description("Drag destination X in screen pixels.")),
				mcp.WithNumber("end_y", mcp.Required(), mcp.Description("Drag destination Y in screen pixels.")),
			})...,
	)

	s.register("validate_element",
		"Validates that an element exists and reports its attributes. Read-only and total: returns status=success with exists=true when found, status=failed with exists=false when not, and never an error. Use {step_id}_status or {step_id}_result.exists for conditional logic.",
		s.handleValidateElement,
		composeSchema(selectorSchema(), actionSchema(), treeSchema())...,
	)

	s.register("wait_for_element",
		"Waits for an element to satisfy a condition: exists, visible, enabled, or focused.",
		s.handleWaitForElement,
		composeSchema(selectorSchema(), actionSchema(),
			[]mcp.ToolOption{mcp.WithString("condition",
				mcp.Required(),
				mcp.Description("Condition to wait for: exists, visible, enabled, or focused."))})...,
	)

	s.register("highlight_element",
		"Highlights an element with a coloured border and optional label for visual confirmation. Returns a highlight_id usable with stop_highlighting.",
		s.handleHighlightElement,
		composeSchema(selectorSchema(), actionSchema(),
			[]mcp.ToolOption{
				mcp.WithNumber("duration_ms", mcp.Description("How long the highlight stays up. Defaults to 1000.")),
				mcp.WithNumber("color", mcp.Description("BGR colour code; defaults to red.")),
				mcp.WithString("text", mcp.Description("Optional label drawn next to the border.")),
				mcp.WithString("text_position", mcp.Description("Label position: top, bottom, left, right, or inside.")),
				mcp.WithNumber("font_size", mcp.Description("Label font size.")),
				mcp.WithBoolean("font_bold", mcp.Description("Bold label font.")),
				mcp.WithNumber("font_color", mcp.Description("Label font colour, BGR.")),
			})...,
	)

	s.register("stop_highlighting",
		"Stops active highlights. With highlight_id stops that one; otherwise stops all.",
		s.handleStopHighlighting,
		mcp.WithString("highlight_id",
			mcp.Description("Specific highlight to stop; omit to stop every active highlight.")),
	)
}

func (s *Server) handleClickElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.Click(ctx, res, action.ClickOptions{
			VerifyAction: argBool(args, "verify_action", true),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleInvokeElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.Invoke(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleDoubleClickElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.DoubleClick(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleRightClickElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.RightClick(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleMouseDrag(ctx context.Context, args map[string]any) (map[string]any, error) {
	endX, okX := argFloat(args, "end_x")
	endY, okY := argFloat(args, "end_y")
	if !okX || !okY {
		return nil, uia.NewError(uia.KindInvalidArgument, "mouse_drag requires numeric end_x and end_y")
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.actor.MouseDrag(ctx, res, int(endX), int(endY))
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

// handleValidateElement is total: resolution failures become a failed status
// in a successful response, never an error.
func (s *Server) handleValidateElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return map[string]any{
			"action": "validate_element",
			"status": "failed",
			"exists": false,
			"reason": err.Error(),
		}, nil
	}
	out := map[string]any{
		"action":        "validate_element",
		"status":        "success",
		"exists":        true,
		"selector_used": res.Selector,
		"timestamp":     time.Now().UTC(),
	}
	if attrs, err := s.cache.Attributes(res.Element, true); err == nil {
		out["element"] = attrs
	}
	if topts := decodeTreeOptions(args); topts.IncludeTree {
		if rendered, err := s.captureTree(ctx, res.Element, topts); err == nil {
			out["ui_tree"] = rendered
		}
	}
	return out, nil
}

// waitPollInterval is the pause between condition checks in wait_for_element.
const waitPollInterval = 100 * time.Millisecond

func (s *Server) handleWaitForElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	condition, _ := argString(args, "condition")
	switch condition {
	case "exists", "visible", "enabled", "focused":
	default:
		return nil, uia.Errorf(uia.KindInvalidArgument,
			"condition must be exists, visible, enabled, or focused; got %q", condition)
	}
	selOpts, err := decodeSelectorOptions(args)
	if err != nil {
		return nil, err
	}
	timeout := decodeActionOptions(args, s.cfg.LocatorTimeout).Timeout

	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		q := selOpts.query(remaining)
		res, resolveErr := s.actor.Locator().Resolve(ctx, q)
		if resolveErr == nil {
			met, checkErr := conditionMet(res.Element, condition)
			if checkErr == nil && met {
				out := map[string]any{
					"action":        "wait_for_element",
					"status":        "success",
					"condition":     condition,
					"condition_met": true,
					"selector_used": res.Selector,
					"timestamp":     time.Now().UTC(),
				}
				if attrs, err := s.cache.Attributes(res.Element, false); err == nil {
					out["element"] = attrs
				}
				return out, nil
			}
		} else if uia.IsKind(resolveErr, uia.KindPlatformAPI) || uia.IsKind(resolveErr, uia.KindInvalidArgument) {
			return nil, resolveErr
		}
		if err := uia.WaitSettle(ctx, waitPollInterval); err != nil {
			break
		}
	}
	return nil, uia.Errorf(uia.KindTimeout,
		"element %q did not become %s within %s", selOpts.Selector, condition, timeout).
		WithSelector(selOpts.Selector)
}

func conditionMet(el uia.Element, condition string) (bool, error) {
	switch condition {
	case "exists":
		return true, nil
	case "visible":
		return el.Visible()
	case "enabled":
		return el.Enabled()
	case "focused":
		return el.Focused()
	}
	return false, nil
}

func (s *Server) handleHighlightElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	text, _ := argString(args, "text")
	position, _ := argString(args, "text_position")
	opts := action.HighlightOptions{
		Duration: argDurationMs(args, "duration_ms", 0),
		Style: uia.HighlightStyle{
			Text:         text,
			TextPosition: position,
			FontSize:     argInt(args, "font_size", 0),
			FontBold:     argBool(args, "font_bold", false),
		},
	}
	if c, ok := argFloat(args, "color"); ok {
		opts.Style.Color = uint32(c)
	}
	if c, ok := argFloat(args, "font_color"); ok {
		opts.Style.FontColor = uint32(c)
	}

	result, handle, err := s.actor.HighlightElement(ctx, res, opts)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	s.highlightMu.Lock()
	s.highlights[id] = handle
	s.highlightMu.Unlock()

	out, err := toMap(result)
	if err != nil {
		return nil, err
	}
	out["highlight_id"] = id
	return out, nil
}

func (s *Server) handleStopHighlighting(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, _ := argString(args, "highlight_id")

	s.highlightMu.Lock()
	stopped := 0
	if id != "" {
		if handle, ok := s.highlights[id]; ok {
			handle.Stop()
			delete(s.highlights, id)
			stopped = 1
		}
	} else {
		for key, handle := range s.highlights {
			handle.Stop()
			delete(s.highlights, key)
			stopped++
		}
	}
	s.highlightMu.Unlock()

	return map[string]any{
		"action":  "stop_highlighting",
		"status":  "success",
		"stopped": stopped,
	}, nil
}
