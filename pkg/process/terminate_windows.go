//go:build windows

package process

import (
	"os/exec"
	"strconv"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/processstate"
)

// TerminateTree kills pid and its descendants with taskkill /T.
func TerminateTree(pid int) error {
	if pid <= 0 {
		return errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	running, err := processstate.IsProcessRunning(pid)
	if err == nil && !running {
		return nil
	}

	output, err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		if running, _ := processstate.IsProcessRunning(pid); !running {
			return nil
		}
		return errors.NewProcessError("taskkill failed: "+string(output), err).WithContext("pid", pid)
	}

	return nil
}
