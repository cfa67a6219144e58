// Copyright 2025 Joseph Cumines
//
// Desktop automation agent - MCP server, workflow runner, and recorder CLI

package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joeycumines/DesktopUseAgent/internal/config"
	"github.com/joeycumines/DesktopUseAgent/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "desktop-use-mcp",
		Short:        "Desktop automation agent with an MCP tool surface",
		Long:         "desktop-use-mcp locates desktop UI elements, acts on them, interprets workflows, and records user interactions. Configuration is environment-variable driven; see the serve command for the MCP entry point.",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newRunCommand(), newRecordCommand())
	return root
}

// loadEnvironment builds the configuration and logger every subcommand
// shares. The logger writes to stderr only; on serve, stdout belongs to the
// MCP transport.
func loadEnvironment() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
