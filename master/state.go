package master

import (
	"fmt"
	"strings"
	"time"

	"github.com/openecat/go-ecat/ecat"
	"github.com/openecat/go-ecat/internal/pool"
)

// SetInitState requests Init on the whole group, used for graceful shutdown
// or reconfiguration.
func (s *Session) SetInitState() error {
	return s.requestGroupState(ecat.StateInit)
}

// SetPreOperationalState requests PreOp on the whole group.
func (s *Session) SetPreOperationalState() error {
	return s.requestGroupState(ecat.StatePreOp)
}

// SetSafeOperationalState requests SafeOp on the whole group.
//
// The target state is first written to every individual slave: some devices
// only leave PreOp reliably on a per-device request. After confirmation the
// expected work counter for one full exchange cycle is recomputed as
// 2*outputs + inputs; the write side of the exchange needs an echo
// acknowledgement distinct from the read side, so outputs weigh double.
func (s *Session) SetSafeOperationalState() error {
	if !s.bound.Load() {
		return ecat.ErrNotBound
	}

	s.registry.Each(func(sl *ecat.Slave) {
		if err := s.tr.WriteState(sl.Addr, ecat.StateSafeOp); err != nil {
			s.log.Warn("per-slave SAFE_OP request failed", "slave", sl.Addr, "error", err)
		}
	})

	if err := s.requestGroupState(ecat.StateSafeOp); err != nil {
		return err
	}

	outAck, inAck := 0, 0
	s.registry.Each(func(sl *ecat.Slave) {
		if sl.Obits > 0 {
			outAck++
		}
		if sl.Ibits > 0 {
			inAck++
		}
	})
	s.expectedWKC.Store(int64(2*outAck + inAck))

	s.log.Info("SAFE_OP confirmed", "expected_wkc", 2*outAck+inAck)

	return nil
}

// SetOperationalState requests Operational on the whole group. The group must
// have reached SafeOp first.
func (s *Session) SetOperationalState() error {
	if !s.bound.Load() {
		return ecat.ErrNotBound
	}

	if s.aggregateState().Base() < ecat.StateSafeOp {
		err := fmt.Errorf("%w: group must reach SAFE_OP before OPERATIONAL", ecat.ErrStateTransition)
		s.setLastError("%v", err)
		return err
	}

	return s.requestGroupState(ecat.StateOperational)
}

// IsAllStatesOperational refreshes the state table and reports whether every
// slave in the group confirmed Operational.
func (s *Session) IsAllStatesOperational() bool {
	s.refreshStates()

	all := true
	for _, sl := range s.registry.Views() {
		if !sl.State.IsOperational() {
			all = false
			break
		}
	}

	if !all {
		s.setLastError("not all slaves reached operational state")
	}

	return all
}

// requestGroupState drives the whole group to the target state:
//
//  1. one exchange cycle, so output-capable slaves see a consistent frame
//     before the transition
//  2. broadcast of the state-write request
//  3. bounded poll alternating exchange cycles with confirmation reads
//  4. full state table re-read regardless of outcome
//  5. on failure, a descriptive error naming the slaves still below target
func (s *Session) requestGroupState(target ecat.SlaveState) error {
	if !s.bound.Load() {
		return ecat.ErrNotBound
	}

	s.exchange()

	if err := s.tr.WriteState(0, target); err != nil {
		s.setLastError("state write request for %s failed: %v", target, err)
		return err
	}

	confirmed := ecat.StateNone
	for i := 0; i < s.cfg.RetryBudget(); i++ {
		s.exchange()
		confirmed = s.waitGroupState(target, s.cfg.StateTimeout())
		if confirmed == target {
			break
		}
	}

	s.refreshStates()

	if confirmed != target {
		err := s.transitionError(target)
		s.setLastError("%v", err)
		return err
	}

	s.setState(target)
	s.log.Info("group state confirmed", "state", target.String())

	return nil
}

// transitionError builds the per-slave diagnostic detail for a failed
// transition: raw state value and the last abnormal-termination status code
// translated to text, for every slave still below the target.
func (s *Session) transitionError(target ecat.SlaveState) error {
	var stuck []string
	for _, sl := range s.registry.Views() {
		if sl.State.Base() >= target.Base() && !sl.State.HasError() {
			continue
		}
		stuck = append(stuck, fmt.Sprintf("slave %d state=0x%02x (%s) status=0x%04x (%s)",
			sl.Addr, uint16(sl.State), sl.State, sl.ALStatusCode, ecat.ALStatusText(sl.ALStatusCode)))
	}

	return fmt.Errorf("%w: %s not reached by: %s", ecat.ErrStateTransition, target, strings.Join(stuck, "; "))
}

// waitGroupState polls the state table until the group confirms the target
// state or the timeout expires, returning the last aggregate it observed.
func (s *Session) waitGroupState(target ecat.SlaveState, timeout time.Duration) ecat.SlaveState {
	deadline := pool.GetTimer(timeout)
	defer pool.PutTimer(deadline)

	for {
		s.refreshStates()
		confirmed := s.groupConfirmedState()
		if confirmed == target {
			return confirmed
		}

		select {
		case <-deadline.C:
			return confirmed
		default:
			time.Sleep(500 * time.Microsecond)
		}
	}
}

// waitSlaveState polls one slave until it confirms the target state or the
// timeout expires, returning the last state it observed.
func (s *Session) waitSlaveState(addr uint16, target ecat.SlaveState, timeout time.Duration) ecat.SlaveState {
	deadline := pool.GetTimer(timeout)
	defer pool.PutTimer(deadline)

	for {
		s.refreshStates()
		state := s.registry.State(addr)
		if state == target {
			return state
		}

		select {
		case <-deadline.C:
			return state
		default:
			time.Sleep(500 * time.Microsecond)
		}
	}
}

// groupConfirmedState reduces the registry to the group's representative
// state: the common state when all slaves agree, otherwise the lowest
// lifecycle state present with the error flag set.
func (s *Session) groupConfirmedState() ecat.SlaveState {
	views := s.registry.Views()
	if len(views) == 0 {
		return ecat.StateNone
	}

	common := views[0].State
	lowest := views[0].State.Base()
	mixed := false
	for _, sl := range views[1:] {
		if sl.State != common {
			mixed = true
		}
		if sl.State.Base() < lowest {
			lowest = sl.State.Base()
		}
	}

	if !mixed {
		return common
	}

	return lowest | ecat.StateError
}
