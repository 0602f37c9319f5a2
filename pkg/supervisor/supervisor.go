package supervisor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/logging"
	"github.com/rrfy/monitoring-system/pkg/monitoring"
	"github.com/rrfy/monitoring-system/pkg/process"
)

type State int

const (
	StateNoProcess State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateNoProcess:
		return "no_process"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProcessHandle identifies the supervised process; PID 0 means none.
type ProcessHandle struct {
	PID int
}

func (h ProcessHandle) State() State {
	if h.PID == 0 {
		return StateNoProcess
	}
	return StateRunning
}

// Supervisor probes the application once per interval and restarts its
// process tree whenever a probe fails. All methods must be called from the
// goroutine running Run.
type Supervisor struct {
	options    Options
	prober     monitoring.Prober
	controller process.Controller
	logger     logging.Logger

	handle ProcessHandle
	settle func(time.Duration)
}

func NewSupervisor(options Options, prober monitoring.Prober, controller process.Controller, logger logging.Logger) (*Supervisor, error) {
	if err := ValidateOptions(options); err != nil {
		return nil, err
	}
	if prober == nil || controller == nil || logger == nil {
		return nil, errors.NewValidationError("prober, controller and logger are required", nil)
	}

	return &Supervisor{
		options:    options,
		prober:     prober,
		controller: controller,
		logger:     logger,
		settle:     time.Sleep,
	}, nil
}

func (s *Supervisor) Handle() ProcessHandle {
	return s.handle
}

// Run loops until ctx is cancelled, which is a clean stop and returns nil.
// A panic inside the loop stops it with an internal error.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Infof("Monitoring started")
	s.logger.Infof("URL: %s | Interval: %v | Timeout: %v", s.options.AppURL, s.options.CheckInterval, s.options.Timeout)

	defer s.shutdown()

	// Steps of a tick always run to completion; ctx is only observed between ticks.
	work := context.WithoutCancel(ctx)

	if s.options.StartImmediately && ctx.Err() == nil {
		if err := s.guard(func() { s.spawn(work) }); err != nil {
			return err
		}
	}

	for ctx.Err() == nil {
		if err := s.guard(func() { s.Tick(work) }); err != nil {
			return err
		}
		if !s.wait(ctx, s.options.CheckInterval) {
			break
		}
	}

	s.logger.Infof("Monitoring stopped: %v", context.Cause(ctx))
	return nil
}

// Tick performs one probe and, on an unhealthy verdict, one restart.
func (s *Supervisor) Tick(ctx context.Context) monitoring.ProbeResult {
	result := s.prober.Probe(ctx, s.options.AppURL, s.options.Timeout)
	if result.Healthy {
		s.logger.Infof("Application healthy, state: %s", s.handle.State())
		return result
	}

	s.logger.Warnf("Application unreachable, restarting, reason: %s", result.Reason)
	s.restart(ctx)
	return result
}

func (s *Supervisor) restart(ctx context.Context) {
	if pid := s.handle.PID; pid != 0 {
		if err := s.controller.TerminateTree(pid); err != nil {
			s.logger.Warnf("Failed to terminate process tree, PID: %d, error: %v", pid, err)
		} else {
			s.logger.Infof("Process %d and its children terminated", pid)
		}
		s.handle = ProcessHandle{}
	}

	s.settle(s.options.SettleDelay)
	s.spawn(ctx)
}

func (s *Supervisor) spawn(ctx context.Context) {
	s.logger.Infof("Starting application...")

	pid, err := s.controller.Spawn(ctx)
	if err != nil {
		s.logger.Errorf("Failed to start application: %v", err)
		return
	}

	s.handle = ProcessHandle{PID: pid}
	s.logger.Infof("Application started with PID %d", pid)
}

// wait reports false when ctx is cancelled before d elapses.
func (s *Supervisor) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Supervisor) guard(step func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Critical error in monitoring loop: %v\n%s", r, debug.Stack())
			err = errors.NewInternalError(fmt.Sprintf("monitoring loop fault: %v", r), nil).
				WithContext("pid", s.handle.PID)
		}
	}()
	step()
	return nil
}

func (s *Supervisor) shutdown() {
	pid := s.handle.PID
	if pid == 0 {
		return
	}

	if !s.options.StopOnExit {
		s.logger.Infof("Leaving application running on exit, PID: %d", pid)
		return
	}

	// The group may outlive its leader, so it is signalled either way.
	if running, err := s.controller.IsRunning(pid); err == nil && !running {
		s.logger.Infof("Application already exited, stopping what is left of its process group, PID: %d", pid)
	}

	if err := s.controller.TerminateTree(pid); err != nil {
		s.logger.Errorf("Failed to stop application on exit, PID: %d, error: %v", pid, err)
		return
	}
	s.logger.Infof("Application stopped on exit, PID: %d", pid)
	s.handle = ProcessHandle{}
}
