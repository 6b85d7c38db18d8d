package master

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openecat/go-ecat/ecat"
)

func TestStateTransitionSequence(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)

	require.NoError(s.Init())
	require.NoError(s.ConfigSlaves())
	_, err := s.ConfigMap()
	require.NoError(err)

	t.Run("Operational Requires SafeOp First", func(t *testing.T) {
		err := s.SetOperationalState()
		require.ErrorIs(err, ecat.ErrStateTransition)
	})

	t.Run("Forward Sequence", func(t *testing.T) {
		require.NoError(s.SetSafeOperationalState())
		require.Equal(ecat.StateSafeOp, sim.SlaveState(1))
		require.Equal(ecat.StateSafeOp, sim.SlaveState(2))

		require.NoError(s.SetOperationalState())
		require.True(s.IsAllStatesOperational())
	})

	t.Run("Back To Init", func(t *testing.T) {
		require.NoError(s.SetInitState())
		require.Equal(ecat.StateInit, sim.SlaveState(1))
		require.Equal(ecat.StateInit, s.GetState())
	})

	t.Run("Back Up To PreOp", func(t *testing.T) {
		require.NoError(s.SetPreOperationalState())
		require.Equal(ecat.StatePreOp, s.GetState())
	})
}

func TestStateTransitionStuckSlave(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim, WithRetryBudget(2))

	require.NoError(s.Init())
	require.NoError(s.ConfigSlaves())
	_, err := s.ConfigMap()
	require.NoError(err)

	sim.SetHoldState(2, true)

	err = s.SetSafeOperationalState()
	require.ErrorIs(err, ecat.ErrStateTransition)
	// the diagnostic names the stuck slave with its raw state and status text
	require.Contains(err.Error(), "slave 2")
	require.Contains(err.Error(), "PRE_OP")
	require.Equal(err.Error(), s.LastError())

	// the compliant slave did follow the per-slave request
	require.Equal(ecat.StateSafeOp, sim.SlaveState(1))
}

func TestIsAllStatesOperationalDegraded(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)
	advanceToOperational(t, s)

	require.True(s.IsAllStatesOperational())

	sim.SetSlaveState(2, ecat.StateSafeOp|ecat.StateError, 0x001B)
	require.False(s.IsAllStatesOperational())
	require.NotEmpty(s.LastError())
}

func TestGroupConfirmedState(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)
	advanceToOperational(t, s)

	t.Run("All Agree", func(t *testing.T) {
		s.refreshStates()
		require.Equal(ecat.StateOperational, s.groupConfirmedState())
	})

	t.Run("Mixed States Reduce To Lowest With Error", func(t *testing.T) {
		sim.SetSlaveState(2, ecat.StateSafeOp, 0)
		s.refreshStates()
		require.Equal(ecat.StateSafeOp|ecat.StateError, s.groupConfirmedState())
	})
}

func TestTransitionErrorDetail(t *testing.T) {
	require := require.New(t)
	sim := newTestSim()
	s := newTestSession(t, sim)
	advanceToOperational(t, s)

	sim.SetSlaveState(1, ecat.StateSafeOp|ecat.StateError, 0x001A)
	s.refreshStates()

	err := s.transitionError(ecat.StateOperational)
	require.ErrorIs(err, ecat.ErrStateTransition)
	require.Contains(err.Error(), "slave 1 state=0x14 (SAFE_OP+ERROR)")
	require.Contains(err.Error(), "synchronization error")
	require.NotContains(err.Error(), "slave 2")
}
