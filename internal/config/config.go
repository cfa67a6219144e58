// Copyright 2025 Joseph Cumines
//
// Configuration package for the desktop automation agent

package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the agent configuration, loaded from environment variables.
type Config struct {
	// LogLevel is one of error|warn|info|debug.
	LogLevel string
	// LogDir optionally redirects log output to files in this directory.
	LogDir string

	// RequestTimeout bounds a single tool call, in seconds.
	RequestTimeout int
	// LocatorTimeout is the default element-resolution deadline.
	LocatorTimeout time.Duration
	// VerifyTimeout is the default post-action verification deadline.
	VerifyTimeout time.Duration

	// Recorder tunables.
	RecorderMouseMoveThrottle   time.Duration
	RecorderDoubleClickInterval time.Duration
	RecorderAppSwitchDwell      time.Duration
	RecorderClipboardPoll       time.Duration
	RecorderPerformanceMode     bool
	RecorderMaxEventsPerSecond  int

	// Security: shell commands are disabled by default.
	ShellCommandsEnabled bool

	Debug bool
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	requestTimeout, err := getEnvAsInt("AGENT_REQUEST_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}

	locatorTimeout, err := getEnvAsDuration("AGENT_LOCATOR_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}

	verifyTimeout, err := getEnvAsDuration("AGENT_VERIFY_TIMEOUT", time.Second)
	if err != nil {
		return nil, err
	}

	mouseThrottle, err := getEnvAsDuration("RECORDER_MOUSE_MOVE_THROTTLE", 50*time.Millisecond)
	if err != nil {
		return nil, err
	}

	doubleClick, err := getEnvAsDuration("RECORDER_DOUBLE_CLICK_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	dwell, err := getEnvAsDuration("RECORDER_APP_SWITCH_DWELL", time.Second)
	if err != nil {
		return nil, err
	}

	clipboardPoll, err := getEnvAsDuration("RECORDER_CLIPBOARD_POLL", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	maxEvents, err := getEnvAsInt("RECORDER_MAX_EVENTS_PER_SECOND", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogDir:         os.Getenv("LOG_DIR"),
		RequestTimeout: requestTimeout,
		LocatorTimeout: locatorTimeout,
		VerifyTimeout:  verifyTimeout,

		RecorderMouseMoveThrottle:   mouseThrottle,
		RecorderDoubleClickInterval: doubleClick,
		RecorderAppSwitchDwell:      dwell,
		RecorderClipboardPoll:       clipboardPoll,
		RecorderPerformanceMode:     getEnvAsBool("RECORDER_PERFORMANCE_MODE", false),
		RecorderMaxEventsPerSecond:  maxEvents,

		ShellCommandsEnabled: getEnvAsBool("AGENT_SHELL_COMMANDS_ENABLED", false),
		Debug:                getEnvAsBool("AGENT_DEBUG", false),
	}

	switch cfg.LogLevel {
	case "error", "warn", "info", "debug":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q (must be error, warn, info, or debug)", cfg.LogLevel)
	}

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("AGENT_REQUEST_TIMEOUT must be positive, got %d", cfg.RequestTimeout)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var result int
	_, err := fmt.Sscanf(value, "%d", &result)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected integer)", key, value)
	}
	return result, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q (expected duration, e.g., '30s', '5m')", key, value)
	}
	return d, nil
}
