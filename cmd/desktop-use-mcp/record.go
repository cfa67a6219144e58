// Copyright 2025 Joseph Cumines

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joeycumines/DesktopUseAgent/internal/recorder"
	"github.com/joeycumines/DesktopUseAgent/internal/telemetry"
	"github.com/joeycumines/DesktopUseAgent/internal/uia"
)

func newRecordCommand() *cobra.Command {
	var (
		driverName string
		listenAddr string
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record user interactions as semantic events",
		Long:  "Captures clicks, typed text, hotkeys, application switches, clipboard changes, and browser navigation as JSON events, written to stdout (or a file) until interrupted. With --listen, events are also broadcast to websocket subscribers on /events.",
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
			provider, ok := driver.(inputSourceProvider)
			if !ok {
				return uia.NewError(uia.KindUnsupportedOperation,
					"the platform driver does not provide a global input hook")
			}

			out := os.Stdout
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRecord(ctx, log, driver, provider, recorderConfig(cfg), listenAddr, out)
		},
	}
	cmd.Flags().StringVar(&driverName, "driver", "", "platform driver to use when several are linked")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "optional address for the websocket event stream, e.g. 127.0.0.1:9121")
	cmd.Flags().StringVar(&outputPath, "output", "", "write events to this file instead of stdout")
	return cmd
}

func runRecord(ctx context.Context, log *logrus.Logger, driver uia.Driver, provider inputSourceProvider, cfg recorder.Config, listenAddr string, out *os.File) error {
	rec := recorder.New(driver, provider.InputSource(), cfg, log)
	if err := rec.Start(ctx); err != nil {
		return err
	}

	var stream *recorder.Stream
	var streamServer *http.Server
	if listenAddr != "" {
		stream = recorder.NewStream(log)
		mux := http.NewServeMux()
		mux.Handle("/events", stream)
		streamServer = &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := streamServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("event stream server failed")
			}
		}()
		log.WithField("addr", listenAddr).Info("event stream listening")
	}

	log.Info("recording; interrupt to stop")
	enc := json.NewEncoder(out)
	metrics := telemetry.Default()

	// Stop on interrupt, then keep draining until the pipeline closes the
	// event channel.
	go func() {
		<-ctx.Done()
		rec.Stop()
	}()

	count := 0
	for ev := range rec.Events() {
		metrics.RecordRecorderEvent(string(ev.Type))
		if err := enc.Encode(ev); err != nil {
			log.WithError(err).Warn("event write failed")
		}
		if stream != nil {
			stream.Broadcast(ev)
		}
		count++
	}

	if streamServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = streamServer.Shutdown(shutdownCtx)
		cancel()
		stream.Close()
	}
	log.WithField("events", count).Info("recording stopped")
	return nil
}
