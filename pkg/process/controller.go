package process

import (
	"context"

	"github.com/rrfy/monitoring-system/pkg/logging"
	"github.com/rrfy/monitoring-system/pkg/processstate"
)

// Controller is the set of process primitives the supervisor drives.
type Controller interface {
	Spawn(ctx context.Context) (int, error)
	TerminateTree(pid int) error
	IsRunning(pid int) (bool, error)
}

type controller struct {
	execution ExecutionConfig
	logger    logging.Logger
}

// NewController binds the launch configuration of the supervised application.
func NewController(execution ExecutionConfig, logger logging.Logger) Controller {
	return &controller{
		execution: execution,
		logger:    logger,
	}
}

func (c *controller) Spawn(ctx context.Context) (int, error) {
	p, err := Spawn(ctx, c.execution, c.logger)
	if err != nil {
		return 0, err
	}
	return p.Pid, nil
}

func (c *controller) TerminateTree(pid int) error {
	c.logger.Debugf("Terminating process tree, PID: %d", pid)
	return TerminateTree(pid)
}

func (c *controller) IsRunning(pid int) (bool, error) {
	return processstate.IsProcessRunning(pid)
}
