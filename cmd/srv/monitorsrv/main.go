package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/logging"
	"github.com/rrfy/monitoring-system/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitFatal  = 2
)

type flagOptions struct {
	Config      string `long:"config" description:"path to config.yaml (default: <base-dir>/config.yaml)"`
	BaseDir     string `long:"base-dir" description:"base directory (default: directory of the executable)"`
	LogFile     string `long:"log-file" description:"log file path (default: <base-dir>/log/monitor.log)"`
	LogLevel    string `long:"log-level" default:"info" description:"debug, info, warn or error"`
	Console     bool   `long:"console" description:"also write log lines to stderr"`
	RunDuration int    `long:"run-duration" description:"Duration in seconds to run the monitor (debug feature)"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	if _, err := parser.ParseArgs(argv); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Command line flags parsing failed: %v\n", err)
		return exitConfig
	}

	baseDir, err := resolveBaseDir(opts.BaseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve base directory: %v\n", err)
		return exitConfig
	}
	if opts.Config == "" {
		opts.Config = filepath.Join(baseDir, "config.yaml")
	}
	if opts.LogFile == "" {
		opts.LogFile = filepath.Join(baseDir, "log", "monitor.log")
	}

	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitConfig
	}

	outputs := []string{opts.LogFile}
	if opts.Console {
		outputs = append(outputs, "stderr")
	}
	zapLogger, err := logging.NewZapLogger(logging.ZapConfig{
		Level:   level,
		Format:  "console",
		Outputs: outputs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging to %s: %v\n", opts.LogFile, err)
		return exitConfig
	}
	defer zapLogger.Sync()

	logger := zapLogger.Logger("")
	logger.Debugf("opts: %+v", opts)

	err = supervisor.Run(time.Duration(opts.RunDuration)*time.Second, opts.Config, logger)
	switch {
	case err == nil:
		return exitOK
	case errors.IsInternalError(err):
		logger.Errorf("Critical error: %v", err)
		return exitFatal
	default:
		return exitConfig
	}
}

func resolveBaseDir(baseDir string) (string, error) {
	if baseDir != "" {
		return filepath.Abs(baseDir)
	}
	executable, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(executable), nil
}
