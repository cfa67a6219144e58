// Copyright 2025 Joseph Cumines
//
// Shared argument option groups composed into per-tool argument surfaces

package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/action"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/uidiff"
)

// Argument extraction helpers. Tool arguments arrive as map[string]any from
// JSON, so numbers are float64 and absent keys are simply missing.

func argString(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func argBool(args map[string]any, key string, fallback bool) bool {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := v.(string); ok {
		return s == "true"
	}
	return fallback
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func argInt(args map[string]any, key string, fallback int) int {
	if f, ok := argFloat(args, key); ok {
		return int(f)
	}
	return fallback
}

// argDurationMs reads a millisecond count; zero or absent yields fallback.
func argDurationMs(args map[string]any, key string, fallback time.Duration) time.Duration {
	if f, ok := argFloat(args, key); ok && f > 0 {
		return time.Duration(f) * time.Millisecond
	}
	return fallback
}

// selectorOptions is the element-targeting group shared by every tool that
// resolves an element: a primary selector, optional parallel alternatives,
// optional sequential fallbacks.
type selectorOptions struct {
	Selector     string
	Alternatives []string
	Fallbacks    []string
}

func decodeSelectorOptions(args map[string]any) (selectorOptions, error) {
	sel, ok := argString(args, "selector")
	if !ok || strings.TrimSpace(sel) == "" {
		return selectorOptions{}, uia.NewError(uia.KindInvalidArgument, "missing required argument: selector")
	}
	return selectorOptions{
		Selector:     sel,
		Alternatives: splitSelectorArg(args, "alternative_selectors"),
		Fallbacks:    splitSelectorArg(args, "fallback_selectors"),
	}, nil
}

// splitSelectorArg accepts either a comma-separated string or a JSON array.
func splitSelectorArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return uia.SplitSelectorList(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (o selectorOptions) query(timeout time.Duration) uia.Query {
	return uia.Query{
		Primary:      o.Selector,
		Alternatives: o.Alternatives,
		Fallbacks:    o.Fallbacks,
		Timeout:      timeout,
	}
}

// actionOptions is the timing group: per-call timeout.
type actionOptions struct {
	Timeout time.Duration
}

func decodeActionOptions(args map[string]any, fallback time.Duration) actionOptions {
	return actionOptions{Timeout: argDurationMs(args, "timeout_ms", fallback)}
}

// treeOptions is the observation group: optional UI tree attachment and
// before/after diffing.
type treeOptions struct {
	IncludeTree  bool
	FromSelector string
	Diff         bool
	Capture      uidiff.Options
}

func decodeTreeOptions(args map[string]any) treeOptions {
	fromSelector, _ := argString(args, "tree_from_selector")
	format, _ := argString(args, "tree_output_format")
	return treeOptions{
		IncludeTree:  argBool(args, "include_tree", false),
		FromSelector: fromSelector,
		Diff:         argBool(args, "ui_diff_before_after", false),
		Capture: uidiff.Options{
			MaxDepth:           argInt(args, "tree_max_depth", 0),
			DetailedAttributes: argBool(args, "include_detailed_attributes", true),
			Format:             format,
		},
	}
}

// verifyOptions is the postcondition group.
type verifyOptions struct {
	action.VerifyOptions
}

func decodeVerifyOptions(args map[string]any, fallback time.Duration) verifyOptions {
	exists, _ := argString(args, "verify_exists_selector")
	notExists, _ := argString(args, "verify_not_exists_selector")
	return verifyOptions{action.VerifyOptions{
		ExistsSelector:    exists,
		NotExistsSelector: notExists,
		Timeout:           argDurationMs(args, "verify_timeout_ms", fallback),
	}}
}

func (o verifyOptions) empty() bool {
	return o.ExistsSelector == "" && o.NotExistsSelector == ""
}

// highlightOptions is the pre-action visual cue group. The configuration
// arrives as a nested object (or a stringified one) under
// highlight_before_action.
type highlightOptions struct {
	Enabled bool
	action.HighlightOptions
}

func decodeHighlightOptions(args map[string]any) highlightOptions {
	raw, ok := args["highlight_before_action"]
	if !ok || raw == nil {
		return highlightOptions{}
	}
	cfg, ok := raw.(map[string]any)
	if !ok {
		// Tolerate a stringified JSON object, same as selectors elsewhere.
		s, isString := raw.(string)
		if !isString {
			return highlightOptions{}
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return highlightOptions{}
		}
		cfg = decoded
	}
	if !argBool(cfg, "enabled", true) {
		return highlightOptions{}
	}
	text, _ := argString(cfg, "text")
	position, _ := argString(cfg, "text_position")
	out := highlightOptions{Enabled: true}
	out.Duration = argDurationMs(cfg, "duration_ms", 0)
	out.Style = uia.HighlightStyle{
		Text:         text,
		TextPosition: position,
		FontSize:     argInt(cfg, "font_size", 0),
		FontBold:     argBool(cfg, "font_bold", false),
	}
	if c, ok := argFloat(cfg, "color"); ok {
		out.Style.Color = uint32(c)
	}
	if c, ok := argFloat(cfg, "font_color"); ok {
		out.Style.FontColor = uint32(c)
	}
	return out
}

// Schema option groups. Each returns the mcp tool options for one shared
// argument group so tool registrations compose them instead of restating
// every field.

func selectorSchema() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("selector",
			mcp.Required(),
			mcp.Description("Selector to locate the element. Syntax: #id, nativeid:x, pos:x,y, role|name, role:x, name:x, bare role; chain with >>; disambiguate with |nth:k."),
		),
		mcp.WithString("alternative_selectors",
			mcp.Description("Comma-separated selectors tried in parallel with the primary; the primary wins ties."),
		),
		mcp.WithString("fallback_selectors",
			mcp.Description("Comma-separated selectors tried sequentially after the primary and alternatives fail."),
		),
	}
}

func actionSchema() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("timeout_ms",
			mcp.Description("Timeout in milliseconds for element resolution."),
		),
	}
}

func treeSchema() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithBoolean("include_tree",
			mcp.Description("Include the application's UI tree in the response. Defaults to false."),
		),
		mcp.WithNumber("tree_max_depth",
			mcp.Description("Maximum depth when capturing the UI tree."),
		),
		mcp.WithString("tree_from_selector",
			mcp.Description("Capture the tree from this element instead of the application root."),
		),
		mcp.WithBoolean("include_detailed_attributes",
			mcp.Description("Include bounds and state attributes on every tree node. Defaults to true."),
		),
		mcp.WithString("tree_output_format",
			mcp.Description("Tree format: compact_yaml (default) or verbose_json."),
		),
		mcp.WithBoolean("ui_diff_before_after",
			mcp.Description("Capture the UI tree before and after the action and attach a textual diff."),
		),
	}
}

func verifySchema() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("verify_exists_selector",
			mcp.Description("Selector that must exist after the action; searched window-scoped then desktop-wide."),
		),
		mcp.WithString("verify_not_exists_selector",
			mcp.Description("Selector that must not exist after the action."),
		),
		mcp.WithNumber("verify_timeout_ms",
			mcp.Description("Timeout in milliseconds for post-action verification."),
		),
	}
}

func highlightSchema() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithObject("highlight_before_action",
			mcp.Description("Visual cue drawn on the target before the action: {enabled, duration_ms, color, text, text_position, font_size, font_bold, font_color}."),
		),
	}
}

// composeSchema flattens option groups plus per-tool extras into one list.
func composeSchema(groups ...[]mcp.ToolOption) []mcp.ToolOption {
	var out []mcp.ToolOption
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
