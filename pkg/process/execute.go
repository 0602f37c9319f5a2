package process

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/logging"
)

// ExecutionConfig describes how the supervised application is launched.
type ExecutionConfig struct {
	ExecutablePath   string   `yaml:"executable_path"`
	Args             []string `yaml:"args,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
}

// Spawn starts the application in a new process group and returns its
// process. The child inherits stdout and stderr and is reaped in the
// background once it exits.
func Spawn(ctx context.Context, execution ExecutionConfig, logger logging.Logger) (*os.Process, error) {
	if ctx == nil {
		return nil, errors.NewValidationError("context cannot be nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError("spawn cancelled", err)
	}

	if err := ValidateExecutionConfig(execution); err != nil {
		logger.Errorf("Execution configuration validation failed, error: %v", err)
		return nil, err
	}

	executable, err := ResolveExecutable(execution.ExecutablePath)
	if err != nil {
		logger.Errorf("Executable not found, path: %s, error: %v", execution.ExecutablePath, err)
		return nil, err
	}

	logger.Debugf("Spawning application, executable: '%s', args: %v, working directory: '%s'",
		executable, execution.Args, execution.WorkingDirectory)

	cmd := exec.Command(executable, execution.Args...)
	cmd.Dir = execution.WorkingDirectory
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		if stderrors.Is(err, os.ErrPermission) {
			return nil, errors.NewPermissionError("permission denied starting the application", err).
				WithContext("executable_path", executable)
		}
		return nil, errors.NewProcessError("failed to start the application", err).
			WithContext("executable_path", executable)
	}

	pid := cmd.Process.Pid
	logger.Debugf("Application process started, PID: %d", pid)

	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Infof("Application process exited, PID: %d, status: %v", pid, err)
			return
		}
		logger.Infof("Application process exited, PID: %d, status: 0", pid)
	}()

	return cmd.Process, nil
}

// ResolveExecutable looks bare names up in PATH and checks explicit paths exist.
func ResolveExecutable(path string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		if stderrors.Is(err, os.ErrPermission) {
			return "", errors.NewPermissionError("executable is not runnable: "+path, err)
		}
		return "", errors.NewProcessError("executable not found: "+path, err)
	}
	return resolved, nil
}
