// Copyright 2025 Joseph Cumines

// Package scripting runs workflow script steps through external engines
// behind a single envelope: run(engine, source|file, env) returning stdout,
// stderr, and a decoded return value.
package scripting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one script execution.
const DefaultTimeout = 60 * time.Second

// envVarName carries the JSON-encoded workflow environment to the script.
const envVarName = "AGENT_ENV"

// Request describes one script execution. Exactly one of Source or File is
// set; File resolves relative to BaseDir when not absolute.
type Request struct {
	Engine  string
	Source  string
	File    string
	BaseDir string
	Env     map[string]any
	Timeout time.Duration
}

// Result is the execution envelope. ReturnValue is the script's stdout
// decoded as JSON when it parses, else the trimmed stdout string.
type Result struct {
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	ReturnValue any    `json:"return_value"`
	ExitCode    int    `json:"exit_code"`
}

// ScriptError reports a non-zero exit or a launch failure, carrying the
// captured output so workflow results can surface it.
type ScriptError struct {
	Engine   string
	ExitCode int
	Stdout   string
	Stderr   string
	cause    error
}

func (e *ScriptError) Error() string {
	msg := fmt.Sprintf("script failed (engine %s, exit %d)", e.Engine, e.ExitCode)
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *ScriptError) Unwrap() error { return e.cause }

// Runner executes scripts. Enabled gates all execution; when false every
// Run fails without launching anything.
type Runner struct {
	Enabled bool
	Log     logrus.FieldLogger
}

// engineCommand maps an engine name to its interpreter invocation.
// sourceFlag is the flag for inline source; empty means "pass a file path".
type engineCommand struct {
	binary     string
	sourceFlag string
	fileArgs   []string
}

var engines = map[string]engineCommand{
	"shell":      {binary: "sh", sourceFlag: "-c"},
	"bash":       {binary: "bash", sourceFlag: "-c"},
	"powershell": {binary: "powershell", sourceFlag: "-Command"},
	"python":     {binary: "python3", sourceFlag: "-c"},
	"javascript": {binary: "node", sourceFlag: "-e"},
	"node":       {binary: "node", sourceFlag: "-e"},
}

// Run executes the request and decodes its output.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if !r.Enabled {
		return nil, &ScriptError{
			Engine: req.Engine,
			Stderr: "script execution is disabled; set AGENT_SHELL_COMMANDS_ENABLED=true to enable",
		}
	}
	eng, ok := engines[strings.ToLower(req.Engine)]
	if !ok {
		return nil, &ScriptError{Engine: req.Engine, Stderr: fmt.Sprintf("unknown engine %q", req.Engine)}
	}
	if (req.Source == "") == (req.File == "") {
		return nil, &ScriptError{Engine: req.Engine, Stderr: "provide exactly one of script source or script file"}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]string, 0, 2+len(eng.fileArgs))
	if req.Source != "" {
		args = append(args, eng.sourceFlag, req.Source)
	} else {
		path := req.File
		if !filepath.IsAbs(path) && req.BaseDir != "" {
			path = filepath.Join(req.BaseDir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, &ScriptError{Engine: req.Engine, Stderr: fmt.Sprintf("script file not found: %s", path), cause: err}
		}
		args = append(args, eng.fileArgs...)
		args = append(args, path)
	}

	cmd := exec.CommandContext(ctx, eng.binary, args...)
	cmd.Env = append(os.Environ(), envVarName+"="+encodeEnv(req.Env))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if r.Log != nil {
		r.Log.WithFields(logrus.Fields{"engine": req.Engine, "file": req.File}).Debug("running script")
	}

	err := cmd.Run()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
	if err != nil {
		return nil, &ScriptError{
			Engine:   req.Engine,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			cause:    err,
		}
	}

	res.ReturnValue = decodeReturnValue(res.Stdout)
	return res, nil
}

// encodeEnv renders the environment as JSON; scripts read AGENT_ENV.
func encodeEnv(env map[string]any) string {
	if env == nil {
		return "{}"
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decodeReturnValue parses the trimmed stdout as JSON when possible. Scripts
// that print a JSON object get structured values merged back into the
// workflow environment; anything else comes back as a string.
func decodeReturnValue(stdout string) any {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return decoded
	}
	return trimmed
}
