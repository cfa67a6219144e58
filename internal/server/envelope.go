// Copyright 2025 Joseph Cumines
//
// Shared completion path for element-targeting tools: diff wrapping,
// postcondition verification, and UI-tree attachment

package server

import (
	"context"

	"github.com/joeycumines/DesktopUseAgent/internal/action"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/uidiff"
)

// runWithDiff executes run, wrapping it in a before/after tree diff when the
// caller asked for one and the target's owning process is known.
func (s *Server) runWithDiff(ctx context.Context, res uia.Resolution, args map[string]any, run func() (action.Result, error)) (action.Result, error) {
	topts := decodeTreeOptions(args)
	if !topts.Diff {
		return run()
	}
	pid, err := res.Element.ProcessID()
	if err != nil {
		pid = 0
	}
	return s.actor.WithUIDiff(ctx, action.DiffOptions{
		PID:     pid,
		Tree:    topts.Capture,
		Enabled: true,
	}, run)
}

// completeAction finishes an element-targeting tool call: runs the requested
// postcondition checks, serialises the result envelope, and attaches the UI
// tree when asked. Verification failures surface as errors so the step layer
// applies its retry/fallback policy.
func (s *Server) completeAction(ctx context.Context, res uia.Resolution, args map[string]any, result action.Result) (map[string]any, error) {
	vOpts := decodeVerifyOptions(args, s.cfg.VerifyTimeout)
	var verification []map[string]any
	if !vOpts.empty() {
		outcomes, err := s.actor.VerifyPostconditions(ctx, res.Element, vOpts.VerifyOptions)
		verification = verificationReport(outcomes)
		if err != nil {
			return nil, err
		}
	}

	out, err := toMap(result)
	if err != nil {
		return nil, err
	}
	if verification != nil {
		out["verification"] = verification
	}

	topts := decodeTreeOptions(args)
	if topts.IncludeTree {
		rendered, err := s.captureTree(ctx, res.Element, topts)
		if err != nil {
			// Observation is an add-on; the action already succeeded.
			s.log.WithError(err).Debug("ui tree attachment skipped")
		} else {
			out["ui_tree"] = rendered
		}
	}
	return out, nil
}

// verificationReport converts outcomes to the documented result shape, naming
// where the check matched.
func verificationReport(outcomes []action.VerifyOutcome) []map[string]any {
	if len(outcomes) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(outcomes))
	for _, o := range outcomes {
		entry := map[string]any{
			"selector": o.Selector,
			"mode":     o.Mode,
			"passed":   o.Passed,
		}
		switch o.Scope {
		case "application":
			entry["method"] = "window_scoped_search"
		case "desktop":
			entry["method"] = "desktop_wide_search"
		}
		out = append(out, entry)
	}
	return out
}

// captureTree renders the subtree for a tool response, rooted at the tree
// selector when given, the element's application otherwise.
func (s *Server) captureTree(ctx context.Context, anchor uia.Element, topts treeOptions) (string, error) {
	root := anchor
	if topts.FromSelector == "" && anchor != nil {
		if app, err := anchor.Application(); err == nil {
			root = app
		}
	}
	return s.renderTree(ctx, root, topts)
}

// renderTree captures from root exactly, honouring the tree_from_selector
// override; unlike captureTree it never climbs to the owning application.
func (s *Server) renderTree(ctx context.Context, root uia.Element, topts treeOptions) (string, error) {
	if topts.FromSelector != "" {
		res, err := s.actor.Locator().Resolve(ctx, uia.Query{
			Primary: topts.FromSelector,
			Timeout: s.cfg.LocatorTimeout,
		})
		if err != nil {
			return "", err
		}
		root = res.Element
	}
	if root == nil {
		return "", uia.NewError(uia.KindInvalidArgument, "no tree root available")
	}
	return uidiff.CaptureRendered(ctx, root, s.cache, topts.Capture)
}
