package master

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a session configuration file. Durations are
// strings in time.ParseDuration syntax.
type fileConfig struct {
	Interface       string `yaml:"interface"`
	ByteAlignment   *bool  `yaml:"byte_alignment"`
	ReceiveTimeout  string `yaml:"receive_timeout"`
	StateTimeout    string `yaml:"state_timeout"`
	RetryBudget     int    `yaml:"retry_budget"`
	MonitorInterval string `yaml:"monitor_interval"`
	MonitorTimeout  string `yaml:"monitor_timeout"`
	DictTimeout     string `yaml:"dict_timeout"`
}

// LoadSessionConfig reads a YAML session configuration file and builds a
// SessionConfig from it. Options passed in opts are applied after the file
// content and take precedence.
//
// Example file:
//
//	interface: eth0
//	byte_alignment: true
//	receive_timeout: 2ms
//	retry_budget: 200
//	monitor_interval: 10ms
func LoadSessionConfig(path string, opts ...Option) (*SessionConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session config: %w", err)
	}

	return ParseSessionConfig(raw, opts...)
}

// ParseSessionConfig builds a SessionConfig from raw YAML content.
func ParseSessionConfig(raw []byte, opts ...Option) (*SessionConfig, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse session config: %w", err)
	}

	fileOpts, err := fc.options()
	if err != nil {
		return nil, err
	}

	return NewSessionConfig(fc.Interface, append(fileOpts, opts...)...)
}

func (fc *fileConfig) options() ([]Option, error) {
	var opts []Option

	if fc.ByteAlignment != nil {
		opts = append(opts, WithByteAlignment(*fc.ByteAlignment))
	}
	if fc.RetryBudget != 0 {
		opts = append(opts, WithRetryBudget(fc.RetryBudget))
	}

	durOpts := []struct {
		field string
		value string
		opt   func(time.Duration) Option
	}{
		{"receive_timeout", fc.ReceiveTimeout, WithReceiveTimeout},
		{"state_timeout", fc.StateTimeout, WithStateTimeout},
		{"monitor_interval", fc.MonitorInterval, WithMonitorInterval},
		{"monitor_timeout", fc.MonitorTimeout, WithMonitorTimeout},
		{"dict_timeout", fc.DictTimeout, WithDictTimeout},
	}

	for _, d := range durOpts {
		if d.value == "" {
			continue
		}
		dur, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("session config field %s: %w", d.field, err)
		}
		opts = append(opts, d.opt(dur))
	}

	return opts, nil
}
