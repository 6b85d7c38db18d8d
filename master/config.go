package master

import (
	"errors"
	"sync"
	"time"

	"github.com/openecat/go-ecat/logger"
)

// SessionConfig represents the configuration parameters for a master session.
type SessionConfig struct {
	mu sync.RWMutex

	// ifname is the network interface the transport binds to.
	ifname string

	// byteAlign pads every slave's process image region to a byte boundary.
	// Defaults to true.
	byteAlign bool

	// recvTimeout bounds one cyclic process data receive.
	// Defaults to 2 milliseconds.
	recvTimeout time.Duration

	// stateTimeout bounds one state confirmation wait during a transition
	// poll. Defaults to 50 milliseconds.
	stateTimeout time.Duration

	// retryBudget is the number of {exchange, confirmation read} poll
	// attempts per state transition. Defaults to 200.
	retryBudget int

	// monitorInterval is the cadence of the background fault monitor.
	// Defaults to 10 milliseconds.
	monitorInterval time.Duration

	// monitorTimeout bounds a single reconfigure or recover attempt issued
	// by the monitor. Defaults to 500 milliseconds.
	monitorTimeout time.Duration

	// dictTimeout bounds a single dictionary or descriptor read.
	// Defaults to 700 milliseconds.
	dictTimeout time.Duration

	// logger provides a logger instance for session events and errors.
	logger logger.Logger
}

// NewSessionConfig creates a session configuration for the given network
// interface with optional functional options.
//
// It initializes a SessionConfig with default values and then applies the
// provided options to customize the configuration.
func NewSessionConfig(ifname string, opts ...Option) (*SessionConfig, error) {
	cfg := &SessionConfig{
		byteAlign:       true,
		recvTimeout:     2 * time.Millisecond,
		stateTimeout:    50 * time.Millisecond,
		retryBudget:     200,
		monitorInterval: 10 * time.Millisecond,
		monitorTimeout:  500 * time.Millisecond,
		dictTimeout:     700 * time.Millisecond,
		logger:          logger.GetLogger(),
	}

	if err := withInterface(ifname).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Interface returns the configured network interface name.
func (cfg *SessionConfig) Interface() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.ifname
}

// ByteAlignment returns whether slave regions are padded to byte boundaries.
func (cfg *SessionConfig) ByteAlignment() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.byteAlign
}

// ReceiveTimeout returns the cyclic receive timeout.
func (cfg *SessionConfig) ReceiveTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.recvTimeout
}

// StateTimeout returns the per-poll state confirmation timeout.
func (cfg *SessionConfig) StateTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.stateTimeout
}

// RetryBudget returns the state transition poll budget.
func (cfg *SessionConfig) RetryBudget() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.retryBudget
}

// MonitorInterval returns the background monitor cadence.
func (cfg *SessionConfig) MonitorInterval() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.monitorInterval
}

// MonitorTimeout returns the bound of a single monitor repair attempt.
func (cfg *SessionConfig) MonitorTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.monitorTimeout
}

// DictTimeout returns the dictionary/descriptor read timeout.
func (cfg *SessionConfig) DictTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.dictTimeout
}

// Logger returns the configured logger.
func (cfg *SessionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// Option represents a functional option for configuring a SessionConfig.
type Option interface {
	apply(*SessionConfig) error
}

type optFunc struct {
	name      string
	applyFunc func(*SessionConfig) error
}

func (o *optFunc) apply(cfg *SessionConfig) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*SessionConfig) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

var errConfigNil = errors.New("session config is nil")

// withInterface sets the network interface name; it rejects an empty name.
func withInterface(ifname string) Option {
	return newOptFunc("withInterface", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if ifname == "" {
			return errors.New("interface name is empty")
		}
		cfg.ifname = ifname

		return nil
	})
}

// WithByteAlignment sets whether each slave's process image region is padded
// to start on a byte boundary. The default is true.
func WithByteAlignment(align bool) Option {
	return newOptFunc("WithByteAlignment", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		cfg.byteAlign = align

		return nil
	})
}

// WithReceiveTimeout sets the cyclic receive timeout. It should be between
// 100 microseconds and 1 second.
func WithReceiveTimeout(timeout time.Duration) Option {
	return newOptFunc("WithReceiveTimeout", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if timeout < 100*time.Microsecond || timeout > time.Second {
			return errors.New("receive timeout is out of range [100us, 1s]")
		}
		cfg.recvTimeout = timeout

		return nil
	})
}

// WithStateTimeout sets the per-poll state confirmation timeout. It should be
// between 1 millisecond and 10 seconds.
func WithStateTimeout(timeout time.Duration) Option {
	return newOptFunc("WithStateTimeout", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if timeout < time.Millisecond || timeout > 10*time.Second {
			return errors.New("state timeout is out of range [1ms, 10s]")
		}
		cfg.stateTimeout = timeout

		return nil
	})
}

// WithRetryBudget sets the number of poll attempts per state transition.
func WithRetryBudget(budget int) Option {
	return newOptFunc("WithRetryBudget", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if budget < 1 {
			return errors.New("retry budget must be at least 1")
		}
		cfg.retryBudget = budget

		return nil
	})
}

// WithMonitorInterval sets the background monitor cadence. It should be
// between 1 millisecond and 1 second.
func WithMonitorInterval(interval time.Duration) Option {
	return newOptFunc("WithMonitorInterval", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if interval < time.Millisecond || interval > time.Second {
			return errors.New("monitor interval is out of range [1ms, 1s]")
		}
		cfg.monitorInterval = interval

		return nil
	})
}

// WithMonitorTimeout sets the bound of a single monitor repair attempt.
func WithMonitorTimeout(timeout time.Duration) Option {
	return newOptFunc("WithMonitorTimeout", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if timeout < time.Millisecond || timeout > 10*time.Second {
			return errors.New("monitor timeout is out of range [1ms, 10s]")
		}
		cfg.monitorTimeout = timeout

		return nil
	})
}

// WithDictTimeout sets the dictionary/descriptor read timeout.
func WithDictTimeout(timeout time.Duration) Option {
	return newOptFunc("WithDictTimeout", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if timeout < time.Millisecond || timeout > 30*time.Second {
			return errors.New("dictionary timeout is out of range [1ms, 30s]")
		}
		cfg.dictTimeout = timeout

		return nil
	})
}

// WithLogger sets the logger for session events and errors.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *SessionConfig) error {
		if cfg == nil {
			return errConfigNil
		}
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
