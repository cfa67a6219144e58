// Copyright 2025 Joseph Cumines

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joeycumines/DesktopUseAgent/internal/config"
	"github.com/joeycumines/DesktopUseAgent/internal/recorder"
	"github.com/joeycumines/DesktopUseAgent/internal/server"
	"github.com/joeycumines/DesktopUseAgent/internal/telemetry"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

// inputSourceProvider is the optional driver surface the recording tools
// need; platform bindings that hook global input implement it.
type inputSourceProvider interface {
	InputSource() recorder.InputSource
}

func newServeCommand() *cobra.Command {
	var (
		driverName  string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tool surface over stdio",
		Long:  "Serves the agent's tools as an MCP (JSON-RPC 2.0) server on stdin/stdout. The platform accessibility binding must be linked into the binary; recording tools are available when the binding provides a global input hook.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadEnvironment()
			if err != nil {
				return err
			}
			driver, err := uia.OpenDriver(driverName)
			if err != nil {
				return err
			}
			return runServe(cfg, log, driver, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&driverName, "driver", "", "platform driver to use when several are linked")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "optional address for a Prometheus text metrics endpoint, e.g. 127.0.0.1:9120")
	return cmd
}

func runServe(cfg *config.Config, log *logrus.Logger, driver uia.Driver, metricsAddr string) error {
	opts := []server.Option{}
	if provider, ok := driver.(inputSourceProvider); ok {
		opts = append(opts, server.WithRecorderFactory(recorderFactory(cfg, provider)))
	} else {
		log.Info("driver has no input hook; recording tools disabled")
	}

	srv, err := server.NewServer(cfg, driver, log, opts...)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	errChan := make(chan error, 1)

	var metricsServer *http.Server
	if metricsAddr != "" {
		metricsServer = newMetricsServer(metricsAddr, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errChan:
		if err != nil {
			log.WithError(err).Error("server error")
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		cancel()
	}

	// The stdio transport returns when the client closes stdin; give it a
	// moment, then stop waiting.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("shutdown complete")
	case <-sigChan:
		log.Warn("forced shutdown")
	case <-time.After(5 * time.Second):
		log.Warn("shutdown timed out")
	}
	return nil
}

func recorderFactory(cfg *config.Config, provider inputSourceProvider) server.RecorderFactory {
	return func(driver uia.Driver, log logrus.FieldLogger) (*recorder.Recorder, error) {
		return recorder.New(driver, provider.InputSource(), recorderConfig(cfg), log), nil
	}
}

// recorderConfig maps agent configuration onto the recorder's tunables.
func recorderConfig(cfg *config.Config) recorder.Config {
	return recorder.Config{
		MouseMoveThrottle:     cfg.RecorderMouseMoveThrottle,
		DoubleClickInterval:   cfg.RecorderDoubleClickInterval,
		AppSwitchDwell:        cfg.RecorderAppSwitchDwell,
		ClipboardPollInterval: cfg.RecorderClipboardPoll,
		PerformanceMode:       cfg.RecorderPerformanceMode,
		MaxEventsPerSecond:    float64(cfg.RecorderMaxEventsPerSecond),
	}
}

func newMetricsServer(addr string, log *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := telemetry.Default().WritePrometheus(w); err != nil {
			log.WithError(err).Warn("metrics write failed")
		}
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
