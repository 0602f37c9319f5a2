package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/logging"
	"github.com/rrfy/monitoring-system/pkg/monitoring"
	"github.com/rrfy/monitoring-system/pkg/process"
)

// Run loads configFile and supervises the configured application until
// SIGINT/SIGTERM arrives or runDuration (when positive) elapses.
func Run(runDuration time.Duration, configFile string, logger logging.Logger) error {
	ctx := context.Background()
	if runDuration > 0 {
		logger.Infof("Using RUN DURATION of %v", runDuration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return RunWithContext(ctx, configFile, logger)
}

// RunWithContext is Run with the caller owning cancellation.
func RunWithContext(ctx context.Context, configFile string, logger logging.Logger) error {
	logger.Infof("Using CONFIGURATION FILE: %s", configFile)

	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		logger.Errorf("Failed to load configuration %s: %v", configFile, err)
		return err
	}

	logger.Infof("Application: %s %v, working directory: %s",
		config.App.ExecutablePath, config.App.Args, config.App.WorkingDirectory)

	prober := monitoring.NewHTTPProber(nil, logger)
	controller := process.NewController(config.App, logger)

	s, err := NewSupervisor(config.Options(), prober, controller, logger)
	if err != nil {
		return errors.NewValidationError("failed to create supervisor", err)
	}

	err = s.Run(ctx)
	if err != nil {
		return err
	}

	if ctx.Err() == context.DeadlineExceeded {
		logger.Infof("Monitor runner timed out")
	} else {
		logger.Infof("Monitoring stopped by user")
	}
	return nil
}
