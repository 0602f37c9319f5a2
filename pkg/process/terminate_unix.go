//go:build !windows

package process

import (
	stderrors "errors"

	"golang.org/x/sys/unix"

	"github.com/rrfy/monitoring-system/pkg/errors"
)

// TerminateTree sends SIGTERM to the process group of pid. A process or
// group that no longer exists counts as terminated.
func TerminateTree(pid int) error {
	if pid <= 0 {
		return errors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	pgid, err := unix.Getpgid(pid)
	switch {
	case err == nil:
	case stderrors.Is(err, unix.ESRCH):
		// Leader already reaped; Spawn made it a group leader, so its
		// children may still be in group pid.
		pgid = pid
	default:
		return errors.NewProcessError("failed to resolve process group", err).WithContext("pid", pid)
	}

	if pgid == unix.Getpgrp() {
		return errors.NewProcessError("refusing to signal the supervisor's own process group", nil).
			WithContext("pid", pid).WithContext("pgid", pgid)
	}

	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		if stderrors.Is(err, unix.ESRCH) {
			return nil
		}
		if stderrors.Is(err, unix.EPERM) {
			return errors.NewPermissionError("not permitted to signal process group", err).
				WithContext("pid", pid).WithContext("pgid", pgid)
		}
		return errors.NewProcessError("failed to signal process group", err).
			WithContext("pid", pid).WithContext("pgid", pgid)
	}

	return nil
}
