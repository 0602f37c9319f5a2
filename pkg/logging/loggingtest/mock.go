// Package loggingtest provides a testify mock of logging.Logger.
package loggingtest

import (
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rrfy/monitoring-system/pkg/logging"
)

// MockLogger implements logging.Logger with full mock capabilities
type MockLogger struct {
	mock.Mock

	lock  sync.Mutex
	lines map[string][]string
}

var _ logging.Logger = (*MockLogger)(nil)

// NewMockLogger accepts any line at any level; tests inspect what was
// logged through Messages or the usual AssertCalled helpers.
func NewMockLogger() *MockLogger {
	m := &MockLogger{lines: make(map[string][]string)}
	m.On("Logf", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("Debugf", mock.Anything, mock.Anything).Maybe()
	m.On("Infof", mock.Anything, mock.Anything).Maybe()
	m.On("Warnf", mock.Anything, mock.Anything).Maybe()
	m.On("Errorf", mock.Anything, mock.Anything).Maybe()
	return m
}

func (m *MockLogger) Logf(level logging.Level, format string, args ...interface{}) {
	m.record("Logf", format, args)
	m.Called(level, format, args)
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.record("Debugf", format, args)
	m.Called(format, args)
}

func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.record("Infof", format, args)
	m.Called(format, args)
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.record("Warnf", format, args)
	m.Called(format, args)
}

func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.record("Errorf", format, args)
	m.Called(format, args)
}

func (m *MockLogger) record(method string, format string, args []interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.lines == nil {
		m.lines = make(map[string][]string)
	}
	m.lines[method] = append(m.lines[method], fmt.Sprintf(format, args...))
}

// Messages returns the formatted lines logged through method, in call order.
func (m *MockLogger) Messages(method string) []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string(nil), m.lines[method]...)
}
