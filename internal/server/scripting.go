// Copyright 2025 Joseph Cumines
//
// run_command tool: inline-script execution behind the scripting contract

package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joeycumines/DesktopUseAgent/internal/scripting"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func (s *Server) registerScriptingTools() {
	s.register("run_command",
		"Runs a script through one of the configured engines (shell, bash, powershell, python, javascript). Provide exactly one of run (inline source) or script_file. The workflow environment is passed as JSON in AGENT_ENV; JSON printed to stdout becomes the step's return value, and a returned set_env object merges into the workflow environment. Disabled unless AGENT_SHELL_COMMANDS_ENABLED=true.",
		s.handleRunCommand,
		mcp.WithString("engine",
			mcp.Required(),
			mcp.Description("Script engine: shell, bash, powershell, python, javascript, or node."),
		),
		mcp.WithString("run",
			mcp.Description("Inline script source. Mutually exclusive with script_file."),
		),
		mcp.WithString("script_file",
			mcp.Description("Path to a script file; relative paths resolve against the workflow directory or scripts_base_path."),
		),
		mcp.WithString("scripts_base_path",
			mcp.Description("Base directory for relative script_file paths."),
		),
		mcp.WithObject("env",
			mcp.Description("Extra environment values made available to the script via AGENT_ENV."),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Script execution timeout in milliseconds. Defaults to 60000."),
		),
	)
}

func (s *Server) handleRunCommand(ctx context.Context, args map[string]any) (map[string]any, error) {
	engine, ok := argString(args, "engine")
	if !ok {
		return nil, uia.NewError(uia.KindInvalidArgument, "missing required argument: engine")
	}
	source, _ := argString(args, "run")
	file, _ := argString(args, "script_file")
	baseDir, _ := argString(args, "scripts_base_path")

	env, _ := args["env"].(map[string]any)

	result, err := s.scripts.Run(ctx, scripting.Request{
		Engine:  engine,
		Source:  source,
		File:    file,
		BaseDir: baseDir,
		Env:     env,
		Timeout: argDurationMs(args, "timeout_ms", 0),
	})
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"action":       "run_command",
		"status":       "success",
		"engine":       engine,
		"exit_code":    result.ExitCode,
		"stdout":       result.Stdout,
		"stderr":       result.Stderr,
		"return_value": result.ReturnValue,
	}
	// Top-level fields of a JSON return are lifted into the envelope so the
	// interpreter's merge rules see them: set_env reaches the environment
	// through the reserved-field path, the rest through non-reserved merge.
	if rv, ok := result.ReturnValue.(map[string]any); ok {
		for k, v := range rv {
			if _, taken := out[k]; !taken || k == "set_env" {
				out[k] = v
			}
		}
	}
	return out, nil
}
