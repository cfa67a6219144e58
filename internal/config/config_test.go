// Copyright 2025 Joseph Cumines
//
// Configuration unit tests

package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "LOG_DIR",
		"AGENT_REQUEST_TIMEOUT", "AGENT_LOCATOR_TIMEOUT", "AGENT_VERIFY_TIMEOUT",
		"RECORDER_MOUSE_MOVE_THROTTLE", "RECORDER_DOUBLE_CLICK_INTERVAL",
		"RECORDER_APP_SWITCH_DWELL", "RECORDER_CLIPBOARD_POLL",
		"RECORDER_PERFORMANCE_MODE", "RECORDER_MAX_EVENTS_PER_SECOND",
		"AGENT_SHELL_COMMANDS_ENABLED", "AGENT_DEBUG",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}

	if cfg.RequestTimeout != 30 {
		t.Errorf("RequestTimeout = %d, want 30", cfg.RequestTimeout)
	}

	if cfg.LocatorTimeout != 3*time.Second {
		t.Errorf("LocatorTimeout = %v, want 3s", cfg.LocatorTimeout)
	}

	if cfg.RecorderDoubleClickInterval != 500*time.Millisecond {
		t.Errorf("RecorderDoubleClickInterval = %v, want 500ms", cfg.RecorderDoubleClickInterval)
	}

	if cfg.ShellCommandsEnabled {
		t.Error("ShellCommandsEnabled = true, want false by default")
	}

	if cfg.RecorderPerformanceMode {
		t.Error("RecorderPerformanceMode = true, want false by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AGENT_LOCATOR_TIMEOUT", "5s")
	t.Setenv("RECORDER_PERFORMANCE_MODE", "true")
	t.Setenv("AGENT_SHELL_COMMANDS_ENABLED", "1")
	t.Setenv("RECORDER_MAX_EVENTS_PER_SECOND", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}

	if cfg.LocatorTimeout != 5*time.Second {
		t.Errorf("LocatorTimeout = %v, want 5s", cfg.LocatorTimeout)
	}

	if !cfg.RecorderPerformanceMode {
		t.Error("RecorderPerformanceMode = false, want true")
	}

	if !cfg.ShellCommandsEnabled {
		t.Error("ShellCommandsEnabled = false, want true")
	}

	if cfg.RecorderMaxEventsPerSecond != 50 {
		t.Errorf("RecorderMaxEventsPerSecond = %d, want 50", cfg.RecorderMaxEventsPerSecond)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad duration", "AGENT_LOCATOR_TIMEOUT", "fast"},
		{"bad integer", "AGENT_REQUEST_TIMEOUT", "thirty"},
		{"zero timeout", "AGENT_REQUEST_TIMEOUT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q: expected error", tt.key, tt.value)
			}
		})
	}
}
