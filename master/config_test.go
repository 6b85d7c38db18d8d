package master

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openecat/go-ecat/logger"
)

func TestNewSessionConfig(t *testing.T) {
	require := require.New(t)

	t.Run("Valid Configuration", func(t *testing.T) {
		cfg, err := NewSessionConfig("eth0",
			WithByteAlignment(false),
			WithReceiveTimeout(5*time.Millisecond),
			WithStateTimeout(100*time.Millisecond),
			WithRetryBudget(50),
			WithMonitorInterval(20*time.Millisecond),
			WithMonitorTimeout(time.Second),
			WithDictTimeout(time.Second),
		)
		require.NoError(err)
		require.Equal("eth0", cfg.Interface())
		require.False(cfg.ByteAlignment())
		require.Equal(5*time.Millisecond, cfg.ReceiveTimeout())
		require.Equal(100*time.Millisecond, cfg.StateTimeout())
		require.Equal(50, cfg.RetryBudget())
		require.Equal(20*time.Millisecond, cfg.MonitorInterval())
		require.Equal(time.Second, cfg.MonitorTimeout())
		require.Equal(time.Second, cfg.DictTimeout())
		require.NotNil(cfg.Logger())
	})

	t.Run("Defaults", func(t *testing.T) {
		cfg, err := NewSessionConfig("eth0")
		require.NoError(err)
		require.True(cfg.ByteAlignment())
		require.Equal(2*time.Millisecond, cfg.ReceiveTimeout())
		require.Equal(50*time.Millisecond, cfg.StateTimeout())
		require.Equal(200, cfg.RetryBudget())
		require.Equal(10*time.Millisecond, cfg.MonitorInterval())
		require.Equal(500*time.Millisecond, cfg.MonitorTimeout())
		require.Equal(700*time.Millisecond, cfg.DictTimeout())
	})

	t.Run("Empty Interface", func(t *testing.T) {
		_, err := NewSessionConfig("")
		require.Error(err)
		require.EqualError(err, "interface name is empty")
	})

	t.Run("Invalid Receive Timeout", func(t *testing.T) {
		_, err := NewSessionConfig("eth0", WithReceiveTimeout(10*time.Microsecond))
		require.Error(err)
		require.EqualError(err, "receive timeout is out of range [100us, 1s]")

		_, err = NewSessionConfig("eth0", WithReceiveTimeout(2*time.Second))
		require.Error(err)
		require.EqualError(err, "receive timeout is out of range [100us, 1s]")
	})

	t.Run("Invalid State Timeout", func(t *testing.T) {
		_, err := NewSessionConfig("eth0", WithStateTimeout(0))
		require.Error(err)
		require.EqualError(err, "state timeout is out of range [1ms, 10s]")
	})

	t.Run("Invalid Retry Budget", func(t *testing.T) {
		_, err := NewSessionConfig("eth0", WithRetryBudget(0))
		require.Error(err)
		require.EqualError(err, "retry budget must be at least 1")
	})

	t.Run("Invalid Monitor Interval", func(t *testing.T) {
		_, err := NewSessionConfig("eth0", WithMonitorInterval(2*time.Second))
		require.Error(err)
		require.EqualError(err, "monitor interval is out of range [1ms, 1s]")
	})

	t.Run("Invalid Monitor Timeout", func(t *testing.T) {
		_, err := NewSessionConfig("eth0", WithMonitorTimeout(0))
		require.Error(err)
		require.EqualError(err, "monitor timeout is out of range [1ms, 10s]")
	})

	t.Run("Invalid Dict Timeout", func(t *testing.T) {
		_, err := NewSessionConfig("eth0", WithDictTimeout(time.Minute))
		require.Error(err)
		require.EqualError(err, "dictionary timeout is out of range [1ms, 30s]")
	})

	t.Run("Nil Logger", func(t *testing.T) {
		_, err := NewSessionConfig("eth0", WithLogger(nil))
		require.Error(err)
		require.EqualError(err, "logger is nil")
	})

	t.Run("Nil Config", func(t *testing.T) {
		err := WithByteAlignment(true).apply(nil)
		require.ErrorIs(err, errConfigNil)

		err = WithLogger(logger.GetLogger()).apply(nil)
		require.ErrorIs(err, errConfigNil)
	})
}

func TestParseSessionConfig(t *testing.T) {
	require := require.New(t)

	t.Run("Full File", func(t *testing.T) {
		raw := []byte(`
interface: eth1
byte_alignment: false
receive_timeout: 5ms
state_timeout: 80ms
retry_budget: 120
monitor_interval: 25ms
monitor_timeout: 1s
dict_timeout: 2s
`)
		cfg, err := ParseSessionConfig(raw)
		require.NoError(err)
		require.Equal("eth1", cfg.Interface())
		require.False(cfg.ByteAlignment())
		require.Equal(5*time.Millisecond, cfg.ReceiveTimeout())
		require.Equal(80*time.Millisecond, cfg.StateTimeout())
		require.Equal(120, cfg.RetryBudget())
		require.Equal(25*time.Millisecond, cfg.MonitorInterval())
		require.Equal(time.Second, cfg.MonitorTimeout())
		require.Equal(2*time.Second, cfg.DictTimeout())
	})

	t.Run("Options Override File", func(t *testing.T) {
		raw := []byte("interface: eth1\nretry_budget: 120\n")
		cfg, err := ParseSessionConfig(raw, WithRetryBudget(7))
		require.NoError(err)
		require.Equal(7, cfg.RetryBudget())
	})

	t.Run("Missing Interface", func(t *testing.T) {
		_, err := ParseSessionConfig([]byte("retry_budget: 5\n"))
		require.Error(err)
	})

	t.Run("Bad Duration", func(t *testing.T) {
		_, err := ParseSessionConfig([]byte("interface: eth1\nreceive_timeout: fast\n"))
		require.Error(err)
		require.Contains(err.Error(), "receive_timeout")
	})

	t.Run("Bad YAML", func(t *testing.T) {
		_, err := ParseSessionConfig([]byte("interface: [unclosed"))
		require.Error(err)
	})
}

func TestLoadSessionConfig(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(os.WriteFile(path, []byte("interface: eth2\nmonitor_interval: 15ms\n"), 0o600))

	cfg, err := LoadSessionConfig(path)
	require.NoError(err)
	require.Equal("eth2", cfg.Interface())
	require.Equal(15*time.Millisecond, cfg.MonitorInterval())

	_, err = LoadSessionConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(err)
}
