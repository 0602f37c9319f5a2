package supervisor

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rrfy/monitoring-system/pkg/errors"
	"github.com/rrfy/monitoring-system/pkg/monitoring"
	"github.com/rrfy/monitoring-system/pkg/process"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAppURL        = "http://127.0.0.1:5000"
	DefaultCheckInterval = 10 * time.Second
	DefaultTimeout       = 5 * time.Second
	DefaultSettleDelay   = 2 * time.Second

	DefaultExecutablePath   = "python3"
	DefaultWorkingDirectory = "../app"
)

var DefaultArgs = []string{"app.py"}

// maxSeconds is the largest number of seconds a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// Seconds is a duration written either as a number of seconds (10, 0.5)
// or as a Go duration string ("10s", "1m30s").
type Seconds time.Duration

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}

	if f, err := strconv.ParseFloat(value.Value, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
		}
		if math.Abs(f) > maxSeconds {
			return fmt.Errorf("line %d: duration too large %q", value.Line, value.Value)
		}
		*s = Seconds(time.Duration(f * float64(time.Second)))
		return nil
	}

	d, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
	}
	*s = Seconds(d)
	return nil
}

func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// Config is the monitor configuration file
type Config struct {
	AppURL           string                  `yaml:"app_url"`
	CheckInterval    *Seconds                `yaml:"check_interval,omitempty"`
	Timeout          *Seconds                `yaml:"timeout,omitempty"`
	SettleDelay      *Seconds                `yaml:"settle_delay,omitempty"`
	StartImmediately bool                    `yaml:"start_immediately,omitempty"`
	StopOnExit       bool                    `yaml:"stop_on_exit,omitempty"`
	App              process.ExecutionConfig `yaml:"app"`
}

// Options are the resolved settings the supervisor runs with.
type Options struct {
	AppURL           string
	CheckInterval    time.Duration
	Timeout          time.Duration
	SettleDelay      time.Duration
	StartImmediately bool
	StopOnExit       bool
}

// LoadConfigFromFile reads, defaults and validates the configuration. Relative
// working directories are resolved against the directory of filename.
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, errors.NewValidationError("failed to parse configuration", err).WithContext("filename", filename)
	}

	if dir := config.App.WorkingDirectory; dir != "" && !filepath.IsAbs(dir) {
		absConfig, err := filepath.Abs(filename)
		if err != nil {
			return nil, errors.NewIOError("failed to get absolute path", err).WithContext("filename", filename)
		}
		config.App.WorkingDirectory = filepath.Join(filepath.Dir(absConfig), dir)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("filename", filename)
	}

	return config, nil
}

// ParseConfig decodes YAML and applies defaults. An empty document yields
// the default configuration.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err)
	}

	setConfigDefaults(&config)
	return &config, nil
}

func setConfigDefaults(config *Config) {
	if config.AppURL == "" {
		config.AppURL = DefaultAppURL
	}
	if config.CheckInterval == nil {
		d := Seconds(DefaultCheckInterval)
		config.CheckInterval = &d
	}
	if config.Timeout == nil {
		d := Seconds(DefaultTimeout)
		config.Timeout = &d
	}
	if config.SettleDelay == nil {
		d := Seconds(DefaultSettleDelay)
		config.SettleDelay = &d
	}

	if config.App.ExecutablePath == "" {
		config.App.ExecutablePath = DefaultExecutablePath
		if config.App.Args == nil {
			config.App.Args = append([]string(nil), DefaultArgs...)
		}
	}
	if config.App.WorkingDirectory == "" {
		config.App.WorkingDirectory = DefaultWorkingDirectory
	}
}

// Options returns the supervisor settings carried by a defaulted config.
func (c *Config) Options() Options {
	return Options{
		AppURL:           c.AppURL,
		CheckInterval:    durationOf(c.CheckInterval, DefaultCheckInterval),
		Timeout:          durationOf(c.Timeout, DefaultTimeout),
		SettleDelay:      durationOf(c.SettleDelay, DefaultSettleDelay),
		StartImmediately: c.StartImmediately,
		StopOnExit:       c.StopOnExit,
	}
}

func durationOf(s *Seconds, fallback time.Duration) time.Duration {
	if s == nil {
		return fallback
	}
	return s.Duration()
}

// ValidateConfig validates the configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := ValidateOptions(config.Options()); err != nil {
		return err
	}

	if config.App.ExecutablePath == "" {
		return errors.NewValidationError("app executable path is required", nil)
	}

	return nil
}

// ValidateOptions validates the supervisor settings
func ValidateOptions(options Options) error {
	if options.CheckInterval < 0 {
		return errors.NewValidationError("check interval cannot be negative", nil)
	}
	if options.SettleDelay < 0 {
		return errors.NewValidationError("settle delay cannot be negative", nil)
	}
	if err := monitoring.ValidateProbeTarget(options.AppURL, options.Timeout); err != nil {
		return errors.NewValidationError("invalid probe settings", err)
	}
	return nil
}
