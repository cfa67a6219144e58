// Copyright 2025 Joseph Cumines
//
// Structured setter and state-inspection tools

package server

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/action"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func (s *Server) registerSetterTools() {
	s.register("set_value",
		"Sets the text value of an editable control directly through the accessibility value capability.",
		s.handleSetValue,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{mcp.WithString("value", mcp.Required(), mcp.Description("The value to set."))})...,
	)

	s.register("set_toggled",
		"Sets the state of a toggleable control such as a checkbox or switch. No-ops when the control is already in the desired state.",
		s.handleSetToggled,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{mcp.WithBoolean("state", mcp.Required(), mcp.Description("Desired toggled state."))})...,
	)

	s.register("set_selected",
		"Sets the selection state of a selectable item, such as a list row or calendar cell. Prefers the selection capability, falls back to toggle, and clicks as a last resort when selecting.",
		s.handleSetSelected,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{mcp.WithBoolean("state", mcp.Required(), mcp.Description("Desired selection state."))})...,
	)

	s.register("set_range_value",
		"Sets the value of a range-based control like a slider, falling back to keyboard stepping from the nearer end when the platform capability is missing.",
		s.handleSetRangeValue,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{mcp.WithNumber("value", mcp.Required(), mcp.Description("The numeric value to set."))})...,
	)

	s.register("select_option",
		"Selects an option in a dropdown or combobox by its visible text.",
		s.handleSelectOption,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(), verifySchema(),
			[]mcp.ToolOption{mcp.WithString("option_name", mcp.Required(), mcp.Description("Visible text of the option to select."))})...,
	)

	s.register("list_options",
		"Lists the visible option strings of a dropdown, list box, or similar control. Read-only.",
		s.handleListOptions,
		composeSchema(selectorSchema(), actionSchema())...,
	)

	s.register("is_toggled",
		"Reports whether a toggleable control is currently on. Read-only.",
		s.handleIsToggled,
		composeSchema(selectorSchema(), actionSchema())...,
	)

	s.register("is_selected",
		"Reports whether a selectable item is currently selected. Read-only.",
		s.handleIsSelected,
		composeSchema(selectorSchema(), actionSchema())...,
	)

	s.register("get_range_value",
		"Reads the current value of a range-based control like a slider or progress bar. Read-only.",
		s.handleGetRangeValue,
		composeSchema(selectorSchema(), actionSchema())...,
	)

	s.register("scroll_element",
		"Scrolls a UI element in the given direction, walking up the ancestor chain for a scrollable container and falling back to page keys.",
		s.handleScrollElement,
		composeSchema(selectorSchema(), actionSchema(), highlightSchema(), treeSchema(),
			[]mcp.ToolOption{
				mcp.WithString("direction", mcp.Required(), mcp.Description("Scroll direction: up, down, left, or right.")),
				mcp.WithNumber("amount", mcp.Description("Number of scroll increments. Defaults to 3.")),
			})...,
	)
}

// requireBool reads a mandatory boolean argument, tolerating "true"/"false"
// strings since substituted workflow values often arrive stringified.
func requireBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, uia.Errorf(uia.KindInvalidArgument, "missing required argument: %s", key)
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, uia.Errorf(uia.KindInvalidArgument, "argument %s must be a boolean", key)
}

func (s *Server) handleSetValue(ctx context.Context, args map[string]any) (map[string]any, error) {
	value, ok := argString(args, "value")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: value")
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.SetValue(ctx, res, value)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleSetToggled(ctx context.Context, args map[string]any) (map[string]any, error) {
	state, err := requireBool(args, "state")
	if err != nil {
		return nil, err
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.SetToggled(ctx, res, state)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleSetSelected(ctx context.Context, args map[string]any) (map[string]any, error) {
	state, err := requireBool(args, "state")
	if err != nil {
		return nil, err
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.SetSelected(ctx, res, state)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleSetRangeValue(ctx context.Context, args map[string]any) (map[string]any, error) {
	value, ok := argFloat(args, "value")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required numeric argument: value")
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.SetRangeValue(ctx, res, value)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

func (s *Server) handleSelectOption(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, ok := argString(args, "option_name")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: option_name")
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.SelectOption(ctx, res, name)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}

// optionRoles are the roles counted as options by list_options.
var optionRoles = map[string]bool{
	"ListItem":     true,
	"MenuItem":     true,
	"TreeItem":     true,
	"Item":         true,
	"ComboBoxItem": true,
	"RadioButton":  true,
	"Option":       true,
}

// listOptionsDepth bounds the walk below the container; options live at most
// a couple of levels under list/combo containers.
const listOptionsDepth = 3

func (s *Server) handleListOptions(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	var options []string
	err = uia.WalkTree(ctx, res.Element, func(el uia.Element, depth int) (bool, error) {
		if depth > listOptionsDepth {
			return false, nil
		}
		role, roleErr := el.Role()
		if roleErr != nil {
			return false, nil
		}
		if optionRoles[role] {
			if name, nameErr := el.Name(); nameErr == nil && name != "" {
				options = append(options, name)
			}
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"action":        "list_options",
		"status":        "success",
		"options":       options,
		"count":         len(options),
		"selector_used": res.Selector,
		"timestamp":     time.Now().UTC(),
	}, nil
}

func (s *Server) handleIsToggled(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.readState(ctx, args, "is_toggled", func(el uia.Element) (any, error) {
		toggled, err := el.Toggled()
		return map[string]any{"toggled": toggled}, err
	})
}

func (s *Server) handleIsSelected(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.readState(ctx, args, "is_selected", func(el uia.Element) (any, error) {
		selected, err := el.Selected()
		return map[string]any{"selected": selected}, err
	})
}

func (s *Server) handleGetRangeValue(ctx context.Context, args map[string]any) (map[string]any, error) {
	return s.readState(ctx, args, "get_range_value", func(el uia.Element) (any, error) {
		ranged, ok := el.(uia.Ranged)
		if !ok {
			return nil, uia.NewError(uia.KindUnsupportedOperation, "element does not expose a range value")
		}
		info, err := ranged.RangeInfo()
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"value":   info.Value,
			"minimum": info.Minimum,
			"maximum": info.Maximum,
		}, nil
	})
}

// readState is the shared shape of the read-only state tools.
func (s *Server) readState(ctx context.Context, args map[string]any, actionName string, read func(uia.Element) (any, error)) (map[string]any, error) {
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	fields, err := read(res.Element)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"action":        actionName,
		"status":        "success",
		"selector_used": res.Selector,
		"timestamp":     time.Now().UTC(),
	}
	if m, ok := fields.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Server) handleScrollElement(ctx context.Context, args map[string]any) (map[string]any, error) {
	direction, ok := argString(args, "direction")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: direction")
	}
	amount := 3.0
	if f, hasAmount := argFloat(args, "amount"); hasAmount {
		amount = f
	}
	res, err := s.resolveElement(ctx, args)
	if err != nil {
		return nil, err
	}
	result, err := s.runWithDiff(ctx, res, args, func() (action.Result, error) {
		return s.actor.Scroll(ctx, res, direction, amount)
	})
	if err != nil {
		return nil, err
	}
	return s.completeAction(ctx, res, args, result)
}
