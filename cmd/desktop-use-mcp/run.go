// Copyright 2025 Joseph Cumines

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joeycumines/DesktopUseAgent/internal/server"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
	"github.com/joeycumines/DesktopUseAgent/internal/workflow"
)

func newRunCommand() *cobra.Command {
	var (
		driverName string
		inputs     []string
		startFrom  string
		endAt      string
	)
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow file against the local desktop",
		Long:  "Loads a workflow document (YAML or JSON; a path or a file://, http://, https:// url), runs its steps through the same tool registry the MCP server exposes, and prints a per-step summary. Exits non-zero when the workflow fails.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnvironment()
			if err != nil {
				return err
			}
			driver, err := uia.OpenDriver(driverName)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			wf, err := workflow.Load(ctx, workflow.Source{URL: args[0]})
			if err != nil {
				return err
			}
			if err := applyInputs(wf, inputs); err != nil {
				return err
			}
			if startFrom != "" {
				wf.StartFromStep = startFrom
			}
			if endAt != "" {
				wf.EndAtStep = endAt
			}

			srv, err := server.NewServer(cfg, driver, log)
			if err != nil {
				return err
			}

			result, err := workflow.NewRunner(srv, log).Run(ctx, wf)
			if err != nil {
				return err
			}
			printRunSummary(result)
			if result.Status == "failed" {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&driverName, "driver", "", "platform driver to use when several are linked")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "workflow input as key=value; repeatable")
	cmd.Flags().StringVar(&startFrom, "start-from-step", "", "resume from this step id, restoring persisted state")
	cmd.Flags().StringVar(&endAt, "end-at-step", "", "stop after this step id, persisting state")
	return cmd
}

// applyInputs overlays key=value pairs onto the workflow inputs. Values stay
// strings; typed inputs belong in the document itself.
func applyInputs(wf *workflow.Workflow, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}
	if wf.Inputs == nil {
		wf.Inputs = make(map[string]any, len(pairs))
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --input %q, want key=value", pair)
		}
		wf.Inputs[key] = value
	}
	return nil
}

func printRunSummary(result *workflow.RunResult) {
	statusColour := color.New(color.FgGreen, color.Bold)
	switch result.Status {
	case "failed":
		statusColour = color.New(color.FgRed, color.Bold)
	case "partial_failure":
		statusColour = color.New(color.FgYellow, color.Bold)
	}

	for _, step := range result.PerStepResults {
		label := step.ID
		if label == "" {
			label = fmt.Sprintf("#%d", step.Index)
		}
		name := step.ToolName
		if name == "" {
			name = step.GroupName
		}
		switch step.Status {
		case "success":
			color.Green("  ✓ %s (%s) %dms", label, name, step.DurationMs)
		case "skipped":
			color.HiBlack("  - %s (%s) skipped", label, name)
		default:
			color.Red("  ✗ %s (%s) %s", label, name, step.Error)
		}
	}

	statusColour.Printf("%s", result.Status)
	fmt.Printf("  steps=%d duration=%dms\n", result.ExecutedSteps, result.TotalDurationMs)
	if result.FailedStepID != "" {
		color.Red("failed at step %s: %s", result.FailedStepID, result.Error)
	}
	if result.ParsedOutput != nil {
		fmt.Printf("parsed output: %v\n", result.ParsedOutput)
	}
}
