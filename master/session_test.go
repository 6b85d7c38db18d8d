package master

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openecat/go-ecat/ecat"
	"github.com/openecat/go-ecat/ecattest"
	"github.com/openecat/go-ecat/logger"
)

// newTestSim builds the standard two-slave segment: a dictionary-configured
// drive with 16 output and 16 input bits, and a descriptor-configured IO
// module with 8 output and 8 input bits. Expected work counter at full
// operation: 2*2 + 2 = 6.
func newTestSim() *ecattest.Simulator {
	sim := ecattest.New()

	sim.AddSlave("drive").WithCoE().
		DefineSMTypes(ecat.SMCommMbxIn, ecat.SMCommMbxOut, ecat.SMCommOutputs, ecat.SMCommInputs).
		AssignOutputPDOs(2, ecattest.SimPDO{Index: 0x1600, Entries: []uint32{
			ecattest.PDOEntry(0x7000, 1, 16),
		}}).
		AssignInputPDOs(3, ecattest.SimPDO{Index: 0x1A00, Entries: []uint32{
			ecattest.PDOEntry(0x6000, 1, 16),
		}})

	sim.AddSlave("io-module").
		DefineSIIOutputs(ecattest.SIIRecord{Index: 0x1600, SM: 2, Entries: []ecattest.SIIEntry{
			{Index: 0x7010, Sub: 1, BitLen: 8},
		}}).
		DefineSIIInputs(ecattest.SIIRecord{Index: 0x1A00, SM: 3, Entries: []ecattest.SIIEntry{
			{Index: 0x6010, Sub: 1, BitLen: 8},
		}})

	return sim
}

func newTestSession(t *testing.T, sim *ecattest.Simulator, opts ...Option) *Session {
	t.Helper()

	base := []Option{
		WithReceiveTimeout(100 * time.Microsecond),
		WithStateTimeout(time.Millisecond),
		WithRetryBudget(5),
		WithMonitorInterval(time.Second),
		WithMonitorTimeout(time.Millisecond),
		WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
	}
	cfg, err := NewSessionConfig("sim0", append(base, opts...)...)
	require.NoError(t, err)

	s, err := NewSession(context.Background(), sim, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// advanceToOperational drives the session through the full startup sequence.
func advanceToOperational(t *testing.T, s *Session) {
	t.Helper()

	require.NoError(t, s.Init())
	require.NoError(t, s.ConfigSlaves())

	_, err := s.ConfigMap()
	require.NoError(t, err)

	require.NoError(t, s.SetSafeOperationalState())
	require.NoError(t, s.SetOperationalState())
}

func TestNewSession(t *testing.T) {
	require := require.New(t)

	cfg, err := NewSessionConfig("sim0")
	require.NoError(err)

	t.Run("Nil Transport", func(t *testing.T) {
		_, err := NewSession(context.Background(), nil, cfg)
		require.Error(err)
	})

	t.Run("Nil Config", func(t *testing.T) {
		_, err := NewSession(context.Background(), ecattest.New(), nil)
		require.ErrorIs(err, errConfigNil)
	})

	t.Run("Unique IDs", func(t *testing.T) {
		s1, err := NewSession(context.Background(), ecattest.New(), cfg)
		require.NoError(err)
		s2, err := NewSession(context.Background(), ecattest.New(), cfg)
		require.NoError(err)
		require.NotEqual(s1.ID(), s2.ID())
	})
}

func TestSessionLifecycle(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)

	require.NoError(s.Init())
	require.NoError(s.ConfigSlaves())
	require.Equal(2, s.SlaveCount())

	size, err := s.ConfigMap()
	require.NoError(err)
	// outputs 16+8 bits and inputs 16+8 bits, byte aligned: 3+3 bytes
	require.Equal(6, size)
	require.Equal(6, s.IOMapSize())

	hasDC, err := s.ConfigDC()
	require.NoError(err)
	require.False(hasDC)

	require.NoError(s.SetSafeOperationalState())
	require.Equal(6, s.ExpectedWKC())
	require.Equal(ecat.StateSafeOp, s.GetState())

	require.NoError(s.SetOperationalState())
	require.True(s.IsAllStatesOperational())
	require.Equal(ecat.StateOperational, s.GetSlaveState(1))

	require.True(s.UpdateProcess())
	require.Equal(6, s.LastWKC())
	require.GreaterOrEqual(s.Metrics().Cycles(), int64(1))

	require.NoError(s.Close())
}

func TestSessionProcessImageViews(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)
	advanceToOperational(t, s)

	out1 := s.Outputs(1)
	require.Len(out1, 2)
	out2 := s.Outputs(2)
	require.Len(out2, 1)
	in1 := s.Inputs(1)
	require.Len(in1, 2)
	in2 := s.Inputs(2)
	require.Len(in2, 1)

	require.Nil(s.Outputs(99))

	// views alias the shared image: a write lands in the next sent frame
	out1[0] = 0xA5
	require.True(s.UpdateProcess())
	require.Equal(byte(0xA5), sim.LastImage()[0])
}

func TestSessionNotBound(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, newTestSim())

	require.ErrorIs(s.ConfigSlaves(), ecat.ErrNotBound)
	_, err := s.ConfigMap()
	require.ErrorIs(err, ecat.ErrNotBound)
	_, err = s.ConfigDC()
	require.ErrorIs(err, ecat.ErrNotBound)
	require.ErrorIs(s.SetSafeOperationalState(), ecat.ErrNotBound)
	require.ErrorIs(s.SetOperationalState(), ecat.ErrNotBound)
	require.False(s.UpdateProcess())
}

func TestSessionNoSlaves(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, ecattest.New())

	require.NoError(s.Init())
	require.ErrorIs(s.ConfigSlaves(), ecat.ErrNoSlaves)
	require.NotEmpty(s.LastError())

	_, err := s.ConfigMap()
	require.ErrorIs(err, ecat.ErrNoSlaves)
}

func TestSessionSDOAccess(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)

	require.NoError(s.Init())
	require.NoError(s.ConfigSlaves())

	require.NoError(s.WriteSDOByte(1, 0x8000, 1, 0x42))

	var buf [1]byte
	n, err := s.ReadSDO(1, 0x8000, 1, buf[:])
	require.NoError(err)
	require.Equal(1, n)
	require.Equal(byte(0x42), buf[0])

	// the descriptor-configured module has no dictionary
	require.ErrorIs(s.WriteSDOByte(2, 0x8000, 1, 0), ecat.ErrDictUnsupported)
	require.NotEmpty(s.LastError())
}

func TestSessionCloseIdempotent(t *testing.T) {
	require := require.New(t)
	s := newTestSession(t, newTestSim())
	advanceToOperational(t, s)

	require.NoError(s.Close())
	require.NoError(s.Close())

	require.ErrorIs(s.Init(), ecat.ErrClosed)
}
