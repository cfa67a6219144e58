// Copyright 2025 Joseph Cumines

// Package server exposes the desktop automation agent as an MCP tool surface.
// Every tool is a typed command descriptor: a name, a schema composed from
// the shared option groups in options.go, and a handler operating on generic
// argument maps. The same handler registry backs both the MCP transport and
// the workflow interpreter's dispatch, so execute_sequence steps run through
// exactly the code a direct tool call does.
package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/joeycumines/DesktopUseAgent/internal/action"
	"github.com/joeycumines/DesktopUseAgent/internal/config"
	"github.com/joeycumines/DesktopUseAgent/internal/recorder"
	"github.com/joeycumines/DesktopUseAgent/internal/scripting"
	"github.com/joeycumines/DesktopUseAgent/internal/telemetry"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// serverName and serverVersion identify the agent in the MCP handshake.
const (
	serverName    = "desktop-use-agent"
	serverVersion = "1.0.0"
)

// toolHandler executes one named tool against generic JSON arguments. It is
// the unit of the dispatch registry; handlers return the success envelope as
// a map, or an error classified by uia.ErrorKind.
type toolHandler func(ctx context.Context, args map[string]any) (map[string]any, error)

// RecorderFactory builds a recorder wired to a platform input source. The
// server takes it as an injection point because the global input hook is a
// platform binding the core never links directly.
type RecorderFactory func(driver uia.Driver, log logrus.FieldLogger) (*recorder.Recorder, error)

// Server is the MCP tool dispatcher.
type Server struct {
	cfg     *config.Config
	driver  uia.Driver
	cache   *uia.Cache
	actor   *action.Actor
	scripts *scripting.Runner
	metrics *telemetry.Registry
	log     logrus.FieldLogger

	mcp      *mcpserver.MCPServer
	handlers map[string]toolHandler

	highlightMu sync.Mutex
	highlights  map[string]uia.HighlightHandle

	recMu      sync.Mutex
	rec        *recorder.Recorder
	recCancel  context.CancelFunc
	recDone    chan struct{}
	recEvents  []recorder.Event
	recStarted time.Time

	newRecorder RecorderFactory
}

// Option customises server construction.
type Option func(*Server)

// WithRecorderFactory enables the recording tools.
func WithRecorderFactory(f RecorderFactory) Option {
	return func(s *Server) { s.newRecorder = f }
}

// WithMetrics replaces the default telemetry registry.
func WithMetrics(m *telemetry.Registry) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer wires the full tool surface over the driver.
func NewServer(cfg *config.Config, driver uia.Driver, log logrus.FieldLogger, opts ...Option) (*Server, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache, err := uia.NewCache(uia.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	locator := &uia.Locator{Driver: driver, Cache: cache}

	s := &Server{
		cfg:        cfg,
		driver:     driver,
		cache:      cache,
		actor:      action.New(driver, cache, locator, log),
		scripts:    &scripting.Runner{Enabled: cfg.ShellCommandsEnabled, Log: log},
		metrics:    telemetry.Default(),
		log:        log,
		handlers:   make(map[string]toolHandler),
		highlights: make(map[string]uia.HighlightHandle),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcpserver.NewMCPServer(
		serverName,
		serverVersion,
		mcpserver.WithToolCapabilities(true),
	)
	s.registerElementTools()
	s.registerInputTools()
	s.registerSetterTools()
	s.registerWindowTools()
	s.registerObservationTools()
	s.registerScreenshotTools()
	s.registerClipboardTools()
	s.registerScriptingTools()
	s.registerSequenceTools()
	s.registerRecorderTools()
	return s, nil
}

// Actor exposes the action layer, used by the run subcommand for ad-hoc
// operations outside a workflow.
func (s *Server) Actor() *action.Actor { return s.actor }

// Serve runs the MCP server over stdio until the client disconnects.
func (s *Server) Serve() error {
	return mcpserver.ServeStdio(s.mcp)
}

// register binds a tool schema and its handler into both the MCP server and
// the dispatch registry.
func (s *Server) register(name, description string, handler toolHandler, schema ...mcp.ToolOption) {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, schema...)
	tool := mcp.NewTool(name, opts...)
	s.handlers[name] = handler
	s.mcp.AddTool(tool, s.adapt(name, handler))
}

// adapt wraps a registry handler in the MCP request/result framing. Failures
// become error results with the standard envelope; the Go error return is
// reserved for protocol-level faults.
func (s *Server) adapt(name string, handler toolHandler) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := getArgs(request)
		if s.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeout)*time.Second)
			defer cancel()
		}
		out, err := s.dispatch(ctx, name, handler, args)
		if err != nil {
			return mcp.NewToolResultError(jsonText(failureFromError(err))), nil
		}
		return mcp.NewToolResultText(jsonText(out)), nil
	}
}

// getArgs extracts arguments from request as map[string]any.
func getArgs(request mcp.CallToolRequest) map[string]any {
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		return args
	}
	return make(map[string]any)
}

// dispatch runs one handler with logging and telemetry around it.
func (s *Server) dispatch(ctx context.Context, name string, handler toolHandler, args map[string]any) (map[string]any, error) {
	requestID := uuid.NewString()
	start := time.Now()
	log := s.log.WithFields(logrus.Fields{"tool": name, "request_id": requestID})
	log.Debug("tool call started")

	out, err := handler(ctx, args)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = string(uia.KindOf(err))
		log.WithError(err).WithField("duration_ms", elapsed.Milliseconds()).Warn("tool call failed")
	} else {
		log.WithField("duration_ms", elapsed.Milliseconds()).Debug("tool call completed")
	}
	s.metrics.RecordToolCall(name, status, elapsed)
	return out, err
}

// Execute implements workflow.ToolExecutor, routing interpreter steps through
// the same registry as direct MCP calls. Tool names are accepted in short
// form ("click_element") or the fully-qualified client form
// ("mcp_<server>_click_element").
func (s *Server) Execute(ctx context.Context, toolName string, args map[string]any) (map[string]any, error) {
	name := s.canonicalToolName(toolName)
	handler, ok := s.handlers[name]
	if !ok {
		return nil, uia.Errorf(uia.KindInvalidArgument, "unknown tool %q", toolName)
	}
	return s.dispatch(ctx, name, handler, args)
}

func (s *Server) canonicalToolName(toolName string) string {
	if _, ok := s.handlers[toolName]; ok {
		return toolName
	}
	if strings.HasPrefix(toolName, "mcp_") {
		for name := range s.handlers {
			if strings.HasSuffix(toolName, "_"+name) {
				return name
			}
		}
	}
	return toolName
}

// resolveElement decodes the selector and action option groups, resolves the
// element, and applies the optional pre-action highlight cue.
func (s *Server) resolveElement(ctx context.Context, args map[string]any) (uia.Resolution, error) {
	selOpts, err := decodeSelectorOptions(args)
	if err != nil {
		return uia.Resolution{}, err
	}
	actOpts := decodeActionOptions(args, s.cfg.LocatorTimeout)

	start := time.Now()
	res, err := s.actor.Locator().Resolve(ctx, selOpts.query(actOpts.Timeout))
	outcome := "resolved"
	if err != nil {
		outcome = string(uia.KindOf(err))
	}
	s.metrics.RecordLocatorResolution(outcome, time.Since(start))
	if err != nil {
		return uia.Resolution{}, err
	}

	if h := decodeHighlightOptions(args); h.Enabled {
		// The cue is best-effort; a highlight failure never fails the action.
		if _, _, err := s.actor.HighlightElement(ctx, res, h.HighlightOptions); err != nil {
			s.log.WithError(err).Debug("pre-action highlight skipped")
		}
	}
	return res, nil
}
