package supervisor

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/logging"
	"github.com/rrfy/monitoring-system/pkg/logging/loggingtest"
	"github.com/rrfy/monitoring-system/pkg/monitoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProber implements monitoring.Prober for testing
type MockProber struct {
	mock.Mock
}

func (m *MockProber) Probe(ctx context.Context, url string, timeout time.Duration) monitoring.ProbeResult {
	args := m.Called(ctx, url, timeout)
	if args.Get(0) == nil {
		return monitoring.ProbeResult{}
	}
	return args.Get(0).(monitoring.ProbeResult)
}

// MockController implements process.Controller for testing
type MockController struct {
	mock.Mock
}

func (m *MockController) Spawn(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockController) TerminateTree(pid int) error {
	args := m.Called(pid)
	return args.Error(0)
}

func (m *MockController) IsRunning(pid int) (bool, error) {
	args := m.Called(pid)
	return args.Bool(0), args.Error(1)
}

// MockSettler stands in for the pause between terminate and spawn
type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(d time.Duration) {
	m.Called(d)
}

type fixture struct {
	prober     *MockProber
	controller *MockController
	settler    *MockSettler
	logger     *loggingtest.MockLogger
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		prober:     &MockProber{},
		controller: &MockController{},
		settler:    &MockSettler{},
		logger:     loggingtest.NewMockLogger(),
	}
	f.prober.Test(t)
	f.controller.Test(t)
	f.settler.Test(t)
	return f
}

// supervisor wires the mocks; a nil prober means the MockProber.
func (f *fixture) supervisor(t *testing.T, options Options, prober monitoring.Prober) *Supervisor {
	if prober == nil {
		prober = f.prober
	}
	s, err := NewSupervisor(options, prober, f.controller, f.logger)
	require.NoError(t, err)
	s.settle = f.settler.Settle
	return s
}

func (f *fixture) assertExpectations(t *testing.T) {
	mock.AssertExpectationsForObjects(t, f.prober, f.controller, f.settler)
}

func (f *fixture) onProbe(result monitoring.ProbeResult) *mock.Call {
	return f.prober.On("Probe", mock.Anything, mock.Anything, mock.Anything).Return(result)
}

func (f *fixture) onSettle() *mock.Call {
	return f.settler.On("Settle", 2*time.Second)
}

func (f *fixture) onSpawn(pid int, err error) *mock.Call {
	return f.controller.On("Spawn", mock.Anything).Return(pid, err)
}

func (f *fixture) onTerminate(pid int, err error) *mock.Call {
	return f.controller.On("TerminateTree", pid).Return(err)
}

var down = monitoring.ProbeResult{Reason: "down"}

func testOptions(url string) Options {
	return Options{
		AppURL:        url,
		CheckInterval: 10 * time.Second,
		Timeout:       time.Second,
		SettleDelay:   2 * time.Second,
	}
}

func appServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestTick_HealthyLeavesHandleUnchanged(t *testing.T) {
	server := appServer(http.StatusOK, "Hello World!")
	defer server.Close()

	f := newFixture(t)
	s := f.supervisor(t, testOptions(server.URL+"/health"), monitoring.NewHTTPProber(nil, logging.NewNopLogger()))

	result := s.Tick(context.Background())
	assert.True(t, result.Healthy)
	assert.Equal(t, StateNoProcess, s.Handle().State())

	s.handle = ProcessHandle{PID: 1234}
	result = s.Tick(context.Background())
	assert.True(t, result.Healthy)
	assert.Equal(t, ProcessHandle{PID: 1234}, s.Handle())

	assert.Empty(t, f.controller.Calls)
	assert.Empty(t, f.settler.Calls)
}

func TestTick_UnhealthyWithoutProcessSpawns(t *testing.T) {
	server := appServer(http.StatusServiceUnavailable, "Hello World!")
	defer server.Close()

	f := newFixture(t)
	mock.InOrder(
		f.onSettle().Once(),
		f.onSpawn(4001, nil).Once(),
	)
	s := f.supervisor(t, testOptions(server.URL), monitoring.NewHTTPProber(nil, logging.NewNopLogger()))

	result := s.Tick(context.Background())

	assert.False(t, result.Healthy)
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
	f.controller.AssertNotCalled(t, "TerminateTree", mock.Anything)
	assert.Equal(t, StateRunning, s.Handle().State())
	assert.Equal(t, 4001, s.Handle().PID)
	f.assertExpectations(t)
}

func TestTick_WrongBodyRestartsRunningProcess(t *testing.T) {
	server := appServer(http.StatusOK, "goodbye")
	defer server.Close()

	f := newFixture(t)
	mock.InOrder(
		f.onTerminate(1234, nil).Once(),
		f.onSettle().Once(),
		f.onSpawn(5678, nil).Once(),
	)
	s := f.supervisor(t, testOptions(server.URL), monitoring.NewHTTPProber(nil, logging.NewNopLogger()))
	s.handle = ProcessHandle{PID: 1234}

	result := s.Tick(context.Background())

	assert.False(t, result.Healthy)
	assert.Equal(t, 5678, s.Handle().PID)
	f.assertExpectations(t)
}

func TestTick_ConnectionRefusedRestarts(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + listener.Addr().String() + "/"
	require.NoError(t, listener.Close())

	f := newFixture(t)
	mock.InOrder(
		f.onTerminate(1234, nil).Once(),
		f.onSettle().Once(),
		f.onSpawn(2, nil).Once(),
	)
	s := f.supervisor(t, testOptions(url), monitoring.NewHTTPProber(nil, logging.NewNopLogger()))
	s.handle = ProcessHandle{PID: 1234}

	result := s.Tick(context.Background())

	assert.False(t, result.Healthy)
	assert.True(t, errors.IsNetworkError(result.Err))
	assert.Equal(t, 2, s.Handle().PID)
	f.assertExpectations(t)

	warnings := f.logger.Messages("Warnf")
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "restarting")
	assert.Contains(t, warnings[0], "HTTP request failed")
}

func TestTick_SpawnFailureLeavesNoProcess(t *testing.T) {
	f := newFixture(t)
	f.onProbe(down)
	mock.InOrder(
		f.onTerminate(77, nil).Once(),
		f.onSettle().Once(),
		f.onSpawn(0, errors.NewProcessError("executable not found: python3", nil)).Once(),
		f.onSettle().Once(),
		f.onSpawn(1, nil).Once(),
	)
	s := f.supervisor(t, testOptions("http://x/health"), nil)
	s.handle = ProcessHandle{PID: 77}

	assert.NotPanics(t, func() { s.Tick(context.Background()) })
	assert.Equal(t, StateNoProcess, s.Handle().State())
	failures := f.logger.Messages("Errorf")
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "executable not found")

	// Next unhealthy tick retries the spawn without terminating anything
	s.Tick(context.Background())
	assert.Equal(t, 1, s.Handle().PID)
	f.controller.AssertNumberOfCalls(t, "TerminateTree", 1)
	f.prober.AssertNumberOfCalls(t, "Probe", 2)
	f.assertExpectations(t)
}

func TestTick_TerminateFailureStillSpawns(t *testing.T) {
	f := newFixture(t)
	f.onProbe(down)
	mock.InOrder(
		f.onTerminate(1234, stderrors.New("operation not permitted")).Once(),
		f.onSettle().Once(),
		f.onSpawn(10, nil).Once(),
	)
	s := f.supervisor(t, testOptions("http://x/health"), nil)
	s.handle = ProcessHandle{PID: 1234}

	s.Tick(context.Background())

	assert.Equal(t, 10, s.Handle().PID)
	f.assertExpectations(t)
	warnings := f.logger.Messages("Warnf")
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[1], "operation not permitted")
}

func TestRun_OneRestartPerTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	mock.InOrder(
		f.onProbe(down).Once(),
		f.onSettle().Once(),
		f.onSpawn(1, nil).Once(),

		f.onProbe(down).Once(),
		f.onTerminate(1, nil).Once(),
		f.onSettle().Once(),
		f.onSpawn(2, nil).Once(),

		f.onProbe(down).Run(func(mock.Arguments) { cancel() }).Once(),
		f.onTerminate(2, nil).Once(),
		f.onSettle().Once(),
		f.onSpawn(3, nil).Once(),
	)
	options := testOptions("http://x/health")
	options.CheckInterval = time.Millisecond
	s := f.supervisor(t, options, nil)

	require.NoError(t, s.Run(ctx))

	f.assertExpectations(t)
	f.prober.AssertNumberOfCalls(t, "Probe", 3)
	assert.Equal(t, 3, s.Handle().PID)
}

func TestRun_CancellationInterruptsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	f.onProbe(monitoring.ProbeResult{Healthy: true}).Run(func(mock.Arguments) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
	})
	options := testOptions("http://x/health")
	options.CheckInterval = time.Hour
	s := f.supervisor(t, options, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	f.prober.AssertNumberOfCalls(t, "Probe", 1)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t)
	s := f.supervisor(t, testOptions("http://x/health"), nil)

	assert.NoError(t, s.Run(ctx))
	assert.Empty(t, f.prober.Calls)
	assert.Empty(t, f.controller.Calls)
}

func TestRun_PanicIsFatal(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("corrupted state") })
	s := f.supervisor(t, testOptions("http://x/health"), nil)

	err := s.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsInternalError(err))
	assert.Contains(t, err.Error(), "corrupted state")
	f.prober.AssertNumberOfCalls(t, "Probe", 1)
	failures := f.logger.Messages("Errorf")
	require.NotEmpty(t, failures)
	assert.True(t, strings.HasPrefix(failures[0], "Critical error in monitoring loop"))
}

func TestRun_StartImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	mock.InOrder(
		f.onSpawn(42, nil).Once(),
		f.onProbe(monitoring.ProbeResult{Healthy: true}).Run(func(mock.Arguments) { cancel() }).Once(),
	)
	options := testOptions("http://x/health")
	options.StartImmediately = true
	s := f.supervisor(t, options, nil)

	require.NoError(t, s.Run(ctx))

	f.assertExpectations(t)
	assert.Equal(t, 42, s.Handle().PID)
}

func TestRun_ShutdownPolicy(t *testing.T) {
	tests := []struct {
		name         string
		stopOnExit   bool
		running      bool
		terminateErr error
		finalHandle  ProcessHandle
	}{
		{name: "leave_running", stopOnExit: false, running: true, finalHandle: ProcessHandle{PID: 1}},
		{name: "stop_running", stopOnExit: true, running: true, finalHandle: ProcessHandle{}},
		{name: "leader_exited_group_still_signalled", stopOnExit: true, running: false, finalHandle: ProcessHandle{}},
		{name: "stop_fails", stopOnExit: true, running: true, terminateErr: stderrors.New("operation not permitted"), finalHandle: ProcessHandle{PID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			f := newFixture(t)
			f.onProbe(down).Run(func(mock.Arguments) { cancel() }).Once()
			f.onSettle().Once()
			f.onSpawn(1, nil).Once()
			f.controller.On("IsRunning", 1).Return(tt.running, nil).Maybe()
			if tt.stopOnExit {
				f.onTerminate(1, tt.terminateErr).Once()
			}

			options := testOptions("http://x/health")
			options.StopOnExit = tt.stopOnExit
			s := f.supervisor(t, options, nil)

			require.NoError(t, s.Run(ctx))

			f.assertExpectations(t)
			if !tt.stopOnExit {
				f.controller.AssertNotCalled(t, "TerminateTree", mock.Anything)
			}
			assert.Equal(t, tt.finalHandle, s.Handle())
		})
	}
}

func TestNewSupervisor_Validation(t *testing.T) {
	prober := &MockProber{}
	controller := &MockController{}
	logger := logging.NewNopLogger()

	tests := []struct {
		name      string
		options   Options
		nilDeps   bool
		shouldErr bool
	}{
		{name: "valid", options: testOptions("http://x/health")},
		{name: "zero_interval_allowed", options: Options{AppURL: "http://x", Timeout: time.Second}},
		{name: "negative_interval", options: Options{AppURL: "http://x", Timeout: time.Second, CheckInterval: -1}, shouldErr: true},
		{name: "negative_settle", options: Options{AppURL: "http://x", Timeout: time.Second, SettleDelay: -1}, shouldErr: true},
		{name: "zero_timeout", options: Options{AppURL: "http://x"}, shouldErr: true},
		{name: "bad_url", options: Options{AppURL: "x/health", Timeout: time.Second}, shouldErr: true},
		{name: "missing_deps", options: testOptions("http://x/health"), nilDeps: true, shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.nilDeps {
				_, err = NewSupervisor(tt.options, nil, nil, nil)
			} else {
				_, err = NewSupervisor(tt.options, prober, controller, logger)
			}

			if tt.shouldErr {
				assert.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "no_process", ProcessHandle{}.State().String())
	assert.Equal(t, "running", ProcessHandle{PID: 7}.State().String())
}
