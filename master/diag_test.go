package master

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openecat/go-ecat/ecat"
)

func TestListSlaves(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)
	advanceToOperational(t, s)

	var buf bytes.Buffer
	s.ListSlaves(&buf)

	out := buf.String()
	require.Contains(out, "drive")
	require.Contains(out, "io-module")
	require.Contains(out, "Out:   2bytes")
	require.Contains(out, "State: OP")
}

func TestShowStates(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)
	advanceToOperational(t, s)

	sim.SetSlaveState(2, ecat.StateSafeOp|ecat.StateError, 0x001B)

	var buf bytes.Buffer
	s.ShowStates(&buf)

	out := buf.String()
	require.Contains(out, "Slave  1, State=OP")
	require.Contains(out, "State=SAFE_OP+ERROR")
	require.Contains(out, "StatusCode=0x001b : sync manager watchdog")
}
