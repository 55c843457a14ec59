package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camcapture/internal/core/domain"

	"go.uber.org/zap"
)

// withSession builds the app, acquires the camera and hands the live
// controller to fn. The camera is always released before returning.
func withSession(fn func(ctx context.Context, a *app, log *zap.SugaredLogger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLogger := newLogger(cfg)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, appOptions{
		prompt:  newTerminalPrompt(os.Stdin, os.Stderr),
		bellOut: stderrIfTerminal(),
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		a.Close(closeCtx)
	}()

	if err := a.controller.Start(ctx, a.defaultTier); err != nil {
		return fmt.Errorf("acquire camera: %w", err)
	}
	status := a.controller.Status()
	log.Infow("camera acquired", "tier", status.TierLabel, "resolution", status.Resolution)

	return fn(ctx, a, log)
}

func runSnap() error {
	return withSession(func(ctx context.Context, a *app, log *zap.SugaredLogger) error {
		result, err := a.controller.TakeStill(ctx)
		if err != nil {
			return err
		}
		printExport(result)
		return nil
	})
}

func runRecord(duration time.Duration) error {
	return withSession(func(ctx context.Context, a *app, log *zap.SugaredLogger) error {
		toggle, err := a.controller.ToggleRecording(ctx)
		if err != nil {
			return err
		}
		if !toggle.Started {
			return fmt.Errorf("recording did not start")
		}

		if duration > 0 {
			fmt.Fprintf(os.Stderr, "recording for %s (Ctrl-C stops early)\n", duration)
		} else {
			fmt.Fprintln(os.Stderr, "recording, press Ctrl-C to stop")
		}

		var timeout <-chan time.Time
		if duration > 0 {
			timer := time.NewTimer(duration)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-timeout:
		case <-ctx.Done():
		}

		// The signal context is spent; stopping and exporting run on a fresh one.
		toggle, err = a.controller.ToggleRecording(context.Background())
		if err != nil {
			return err
		}
		if toggle.Export == nil {
			return fmt.Errorf("recording produced no export")
		}
		printExport(toggle.Export)
		return nil
	})
}

func printExport(result *domain.ExportResult) {
	fmt.Printf("%s\t%d bytes\t%s\n", result.Name, result.Artifact.Size, result.Location)
	if result.TranscodeError != "" {
		fmt.Fprintf(os.Stderr, "mp4 conversion failed, kept webm: %s\n", result.TranscodeError)
	}
}
