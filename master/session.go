// Package master implements the master-side control logic of the fieldbus
// session: slave discovery bookkeeping, process image mapping, the lifecycle
// state machine and the cyclic exchange loop with its background fault
// monitor.
package master

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/openecat/go-ecat/ecat"
	"github.com/openecat/go-ecat/logger"
	"github.com/openecat/go-ecat/pdo"
)

// Session owns one master session: the slave registry, the shared process
// image and the monitor task. All session state lives here; multiple
// concurrent sessions on different transports are possible.
type Session struct {
	cfg *SessionConfig
	tr  ecat.Transport
	log logger.Logger
	id  string

	registry *ecat.Registry
	taskMgr  *ecat.TaskManager

	// ioMap is the shared process image. It is only mutated by the
	// control-loop thread through UpdateProcess.
	ioMap     [ecat.MaxIOMapSize]byte
	ioMapSize int

	state       atomic.Uint32 // aggregate ecat.SlaveState
	expectedWKC atomic.Int64
	lastWKC     atomic.Int64
	checkFlag   atomic.Bool // pending-recheck flag armed by the monitor
	group       uint8

	bound  atomic.Bool
	closed atomic.Bool

	errMu   sync.Mutex
	lastErr string

	metrics SessionMetrics
}

// NewSession creates a session on the given transport. The context bounds the
// lifetime of the monitor task.
func NewSession(ctx context.Context, tr ecat.Transport, cfg *SessionConfig) (*Session, error) {
	if tr == nil {
		return nil, fmt.Errorf("transport is nil")
	}
	if cfg == nil {
		return nil, errConfigNil
	}

	id := uuid.NewString()
	log := cfg.Logger().With("session", id)

	s := &Session{
		cfg:      cfg,
		tr:       tr,
		log:      log,
		id:       id,
		registry: ecat.NewRegistry(),
		taskMgr:  ecat.NewTaskManager(ctx, log),
	}
	s.metrics.init()

	return s, nil
}

// ID returns the session's unique identifier, used for log correlation.
func (s *Session) ID() string { return s.id }

// Registry returns the session's slave registry.
func (s *Session) Registry() *ecat.Registry { return s.registry }

// Metrics returns the session's cycle metrics.
func (s *Session) Metrics() *SessionMetrics { return &s.metrics }

// Init binds the transport to the configured network interface and starts the
// background monitor. A bind failure is fatal to session start.
func (s *Session) Init() error {
	if s.closed.Load() {
		return ecat.ErrClosed
	}

	if err := s.tr.Bind(s.cfg.Interface()); err != nil {
		s.setLastError("failed to bind transport to %s: %v", s.cfg.Interface(), err)
		return fmt.Errorf("bind %s: %w", s.cfg.Interface(), err)
	}
	s.bound.Store(true)
	s.setState(ecat.StateInit)

	if err := s.startMonitor(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	s.refreshStates()
	s.log.Info("session initialized", "interface", s.cfg.Interface())

	return nil
}

// ConfigSlaves discovers and auto-configures the slaves on the segment,
// populating the registry in address order. Discovery leaves every slave
// requested to PreOp. Zero slaves found is reported, not retried.
func (s *Session) ConfigSlaves() error {
	if !s.bound.Load() {
		return ecat.ErrNotBound
	}

	infos, err := s.tr.Discover(false)
	if err != nil {
		s.setLastError("failed to config slaves: %v", err)
		s.refreshStates()
		return fmt.Errorf("discover: %w", err)
	}
	if len(infos) == 0 {
		s.setLastError("failed to config slaves: no slaves detected")
		s.refreshStates()
		return ecat.ErrNoSlaves
	}

	slaves := make([]*ecat.Slave, 0, len(infos))
	for _, info := range infos {
		slaves = append(slaves, &ecat.Slave{
			Addr:      info.Addr,
			Name:      info.Name,
			Group:     info.Group,
			MbxProto:  info.MbxProto,
			HasDC:     info.HasDC,
			PropDelay: info.PropDelay,
			SM:        info.SM,
			SMCount:   info.SMCount,
			State:     ecat.StatePreOp,
		})
	}
	s.registry.Reset(slaves)
	s.setState(ecat.StatePreOp)
	s.refreshStates()

	s.log.Info("slaves configured", "count", len(infos))

	return nil
}

// ConfigMap discovers every slave's process data mapping and lays the shared
// process image out, returning the total bytes used. The mapping strategy is
// selected per slave: dictionary-driven when the slave supports it,
// descriptor-memory-driven otherwise.
func (s *Session) ConfigMap() (int, error) {
	if !s.bound.Load() {
		return 0, ecat.ErrNotBound
	}
	if s.registry.Count() == 0 {
		return 0, ecat.ErrNoSlaves
	}

	var mapErr error
	s.registry.Each(func(sl *ecat.Slave) {
		if mapErr != nil {
			return
		}

		mapper := pdo.Select(s.tr, sl, s.cfg.DictTimeout(), s.log)

		obits, err := mapper.Map(sl, pdo.Outputs)
		if err != nil {
			mapErr = err
			return
		}
		ibits, err := mapper.Map(sl, pdo.Inputs)
		if err != nil {
			mapErr = err
			return
		}

		sl.Obits = obits
		sl.Ibits = ibits
	})
	if mapErr != nil {
		s.setLastError("configMap failed: %v", mapErr)
		return 0, mapErr
	}

	size, err := pdo.Layout(s.registry, ecat.MaxIOMapSize, s.cfg.ByteAlignment())
	if err != nil {
		s.setLastError("configMap failed: %v", err)
		return 0, err
	}
	if size < 1 {
		s.setLastError("configMap failed: no process data mapped")
		return 0, fmt.Errorf("no process data mapped")
	}
	s.ioMapSize = size

	s.log.Info("process image mapped",
		"bytes", size, "byte_aligned", s.cfg.ByteAlignment())

	return size, nil
}

// ConfigDC configures distributed clocks and records per-slave DC capability.
// It reports whether any slave has DC support.
func (s *Session) ConfigDC() (bool, error) {
	if !s.bound.Load() {
		return false, ecat.ErrNotBound
	}

	hasDC, err := s.tr.ConfigureDC()
	if err != nil {
		s.setLastError("configDc failed: %v", err)
		s.refreshStates()
		return false, fmt.Errorf("configure distributed clocks: %w", err)
	}

	s.refreshStates()

	return hasDC, nil
}

// ReadSDO reads an object dictionary value from a slave into buf and returns
// the number of bytes read.
func (s *Session) ReadSDO(addr uint16, index uint16, sub uint8, buf []byte) (int, error) {
	if !s.bound.Load() {
		return 0, ecat.ErrNotBound
	}

	n, err := s.tr.ReadDictionary(addr, index, sub, buf, s.cfg.DictTimeout())
	if err != nil {
		s.setLastError("readSDO slave %d 0x%04x:%d failed: %v", addr, index, sub, err)
		return 0, err
	}

	return n, nil
}

// WriteSDO writes an object dictionary value to a slave.
func (s *Session) WriteSDO(addr uint16, index uint16, sub uint8, data []byte) error {
	if !s.bound.Load() {
		return ecat.ErrNotBound
	}

	if err := s.tr.WriteDictionary(addr, index, sub, data, s.cfg.DictTimeout()); err != nil {
		s.setLastError("writeSDO slave %d 0x%04x:%d failed: %v", addr, index, sub, err)
		return err
	}

	return nil
}

// WriteSDOByte writes a single-byte object dictionary value to a slave.
func (s *Session) WriteSDOByte(addr uint16, index uint16, sub uint8, value byte) error {
	return s.WriteSDO(addr, index, sub, []byte{value})
}

// SlaveCount returns the number of discovered slaves.
func (s *Session) SlaveCount() int { return s.registry.Count() }

// IOMapSize returns the mapped size of the process image in bytes.
func (s *Session) IOMapSize() int { return s.ioMapSize }

// Outputs returns the slave's output window into the shared process image.
// The slice aliases the image; it is valid until Close.
func (s *Session) Outputs(addr uint16) []byte {
	sl, ok := s.registry.View(addr)
	if !ok || sl.Outputs.Bits == 0 {
		return nil
	}

	return s.ioMap[sl.Outputs.Offset : sl.Outputs.Offset+sl.Outputs.Bytes()]
}

// Inputs returns the slave's input window into the shared process image.
func (s *Session) Inputs(addr uint16) []byte {
	sl, ok := s.registry.View(addr)
	if !ok || sl.Inputs.Bits == 0 {
		return nil
	}

	return s.ioMap[sl.Inputs.Offset : sl.Inputs.Offset+sl.Inputs.Bytes()]
}

// GetState refreshes the state table and returns the aggregate session state.
func (s *Session) GetState() ecat.SlaveState {
	s.refreshStates()
	return s.aggregateState()
}

// GetSlaveState refreshes the state table and returns the confirmed state of
// one slave.
func (s *Session) GetSlaveState(addr uint16) ecat.SlaveState {
	s.refreshStates()
	return s.registry.State(addr)
}

// ExpectedWKC returns the expected work counter for one full exchange cycle,
// as computed when SafeOp was last confirmed.
func (s *Session) ExpectedWKC() int {
	return int(s.expectedWKC.Load())
}

// LastError returns the most recent session-level error message, or the empty
// string if none occurred.
func (s *Session) LastError() string {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	return s.lastErr
}

// Close stops and joins the monitor task, then releases the transport.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	// the monitor must be fully stopped before transport teardown
	s.taskMgr.Stop()
	s.taskMgr.Wait()

	s.bound.Store(false)

	if err := s.tr.Close(); err != nil {
		s.setLastError("close failed: %v", err)
		return err
	}

	s.log.Info("session closed")

	return nil
}

func (s *Session) setLastError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	s.errMu.Lock()
	s.lastErr = msg
	s.errMu.Unlock()

	s.log.Error(msg)
}

func (s *Session) setState(state ecat.SlaveState) {
	s.state.Store(uint32(state))
}

func (s *Session) aggregateState() ecat.SlaveState {
	return ecat.SlaveState(s.state.Load())
}

// refreshStates re-reads the full state table into the registry. Read
// failures only populate the last-error text; diagnostic paths still render
// whatever the registry holds.
func (s *Session) refreshStates() {
	if !s.bound.Load() {
		return
	}

	statuses, err := s.tr.ReadStates()
	if err != nil {
		s.setLastError("failed to read slave states: %v", err)
		return
	}

	s.registry.UpdateStatus(statuses)
}
