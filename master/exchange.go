package master

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openecat/go-ecat/ecat"
)

// SessionMetrics counts exchange cycles and monitor activity. Counters are
// updated from the control-loop thread and the monitor task concurrently.
type SessionMetrics struct {
	cycles     *xsync.Counter
	shortfalls *xsync.Counter
	repairs    *xsync.Counter
	lost       *xsync.Counter
}

func (m *SessionMetrics) init() {
	m.cycles = xsync.NewCounter()
	m.shortfalls = xsync.NewCounter()
	m.repairs = xsync.NewCounter()
	m.lost = xsync.NewCounter()
}

// Cycles returns the number of exchange cycles performed.
func (m *SessionMetrics) Cycles() int64 { return m.cycles.Value() }

// Shortfalls returns the number of cycles whose work counter fell below the
// expected value.
func (m *SessionMetrics) Shortfalls() int64 { return m.shortfalls.Value() }

// Repairs returns the number of successful monitor repair actions.
func (m *SessionMetrics) Repairs() int64 { return m.repairs.Value() }

// Lost returns the number of times a slave was marked lost.
func (m *SessionMetrics) Lost() int64 { return m.lost.Value() }

// UpdateProcess performs one exchange cycle: a send followed by one
// bounded-timeout receive of the process image. It returns true when the
// returned work counter reaches the expected value, and false on a shortfall
// or a transport fault.
//
// The result is the real-time health signal of every control cycle; callers
// must check it each cycle, not just at setup.
func (s *Session) UpdateProcess() bool {
	ok, _ := s.exchange()
	return ok
}

// LastWKC returns the work counter of the most recent exchange cycle.
func (s *Session) LastWKC() int {
	return int(s.lastWKC.Load())
}

// exchange runs one send/receive cycle and records the resulting work
// counter. A work counter equal to the expected value counts as success.
func (s *Session) exchange() (bool, error) {
	if !s.bound.Load() {
		return false, ecat.ErrNotBound
	}

	if err := s.tr.Send(s.ioMap[:s.ioMapSize]); err != nil {
		s.setLastError("process data send failed: %v", err)
		return false, err
	}

	wkc, err := s.tr.Receive(s.ioMap[:s.ioMapSize], s.cfg.ReceiveTimeout())
	if err != nil {
		s.setLastError("process data receive failed: %v", err)
		return false, err
	}

	s.lastWKC.Store(int64(wkc))
	s.metrics.cycles.Inc()

	if int64(wkc) < s.expectedWKC.Load() {
		s.metrics.shortfalls.Inc()
		return false, nil
	}

	return true, nil
}
