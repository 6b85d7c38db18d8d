package master

import (
	"github.com/openecat/go-ecat/ecat"
)

const monitorTaskName = "fault-monitor"

// startMonitor launches the background fault monitor as an interval task on
// the session's task manager. The task is joined by Close.
func (s *Session) startMonitor() error {
	_, err := s.taskMgr.StartInterval(monitorTaskName, s.monitorSweep, s.cfg.MonitorInterval(), false)
	return err
}

// monitorSweep is one activation of the background fault monitor. It is a
// no-op unless the aggregate state is Operational and either the last cycle
// fell short of the expected work counter or the pending-recheck flag is
// armed.
//
// The flag is cleared before the sweep and re-armed if any slave remains
// non-operational afterwards; a sweep that finds nothing pending logs the
// clean resolution and leaves the flag clear.
func (s *Session) monitorSweep() bool {
	if s.closed.Load() {
		return false
	}
	if s.aggregateState() != ecat.StateOperational {
		return true
	}
	if s.lastWKC.Load() >= s.expectedWKC.Load() && !s.checkFlag.Load() {
		return true
	}

	s.checkFlag.Store(false)
	s.refreshStates()

	pending := false
	for _, sl := range s.registry.Views() {
		if sl.Group == s.group && !sl.State.IsOperational() {
			pending = true
			s.repairSlave(sl)
		}

		// lost slaves are offered recovery independently of the ladder
		cur, ok := s.registry.View(sl.Addr)
		if !ok || !cur.Lost {
			continue
		}

		if cur.State == ecat.StateNone {
			if err := s.tr.Recover(sl.Addr, s.cfg.MonitorTimeout()); err == nil {
				s.markFound(sl.Addr)
				s.log.Info("slave recovered", "slave", sl.Addr)
			}
		} else {
			// reports a real state again, nothing else to do
			s.markFound(sl.Addr)
			s.log.Info("slave found", "slave", sl.Addr)
		}
	}

	if pending {
		s.checkFlag.Store(true)
	} else {
		s.log.Info("all slaves resumed OPERATIONAL")
	}

	return true
}

// repairSlave applies the deterministic repair ladder to one non-operational
// slave, in priority order: acknowledge a flagged error, re-promote from
// SafeOp, reconfigure a responsive but stuck slave, or mark an unreachable
// one lost after a single short recheck.
func (s *Session) repairSlave(sl ecat.Slave) {
	switch {
	case sl.State == ecat.StateSafeOp|ecat.StateError:
		s.log.Error("slave in SAFE_OP+ERROR, attempting ack", "slave", sl.Addr)
		if err := s.tr.WriteState(sl.Addr, ecat.StateSafeOp.WithAck()); err != nil {
			s.log.Warn("error ack request failed", "slave", sl.Addr, "error", err)
		}

	case sl.State == ecat.StateSafeOp:
		s.log.Warn("slave in SAFE_OP, requesting OPERATIONAL", "slave", sl.Addr)
		if err := s.tr.WriteState(sl.Addr, ecat.StateOperational); err != nil {
			s.log.Warn("operational request failed", "slave", sl.Addr, "error", err)
		}

	case sl.State > ecat.StateNone:
		state, err := s.tr.Reconfigure(sl.Addr, s.cfg.MonitorTimeout())
		if err == nil && state != ecat.StateNone {
			s.markFound(sl.Addr)
			s.metrics.repairs.Inc()
			s.log.Info("slave reconfigured", "slave", sl.Addr)
		}

	case !sl.Lost:
		// one more chance with a short timeout before declaring it lost
		state := s.waitSlaveState(sl.Addr, ecat.StateOperational, s.cfg.ReceiveTimeout())
		if state == ecat.StateNone {
			s.registry.Apply(sl.Addr, func(x *ecat.Slave) { x.Lost = true })
			s.metrics.lost.Inc()
			s.log.Error("slave lost", "slave", sl.Addr)
		}
	}
}

func (s *Session) markFound(addr uint16) {
	s.registry.Apply(addr, func(x *ecat.Slave) { x.Lost = false })
}
