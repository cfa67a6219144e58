// Copyright 2025 Joseph Cumines

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/workflow"
)

func (s *Server) registerSequenceTools() {
	s.register("execute_sequence",
		"Executes a workflow of tool calls with control flow (if/retries/fallback_id), "+
			"variable substitution, jumps, and troubleshooting steps. Accepts an inline "+
			"workflow definition or a url to fetch one from (file://, http://, https://).",
		s.handleExecuteSequence,
		mcp.WithString("url",
			mcp.Description("Optional location of a workflow definition to fetch and run. When set, inline steps are ignored."),
		),
		mcp.WithObject("variables",
			mcp.Description("Schema for inputs the workflow accepts; defaults apply when inputs omit a value."),
		),
		mcp.WithObject("inputs",
			mcp.Description("Concrete values for the declared variables."),
		),
		mcp.WithBoolean("stop_on_error",
			mcp.Description("Abort on the first failed step instead of continuing. Defaults to true."),
		),
	)
}

func (s *Server) handleExecuteSequence(ctx context.Context, args map[string]any) (map[string]any, error) {
	src := workflow.Source{}
	if url, ok := argString(args, "url"); ok {
		src.URL = url
	} else {
		src.Inline = args
	}

	wf, err := workflow.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	runner := workflow.NewRunner(s, s.log)
	result, err := runner.Run(ctx, wf)
	if err != nil {
		return nil, err
	}
	return toMap(result)
}
