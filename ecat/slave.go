package ecat

import (
	"sync"
)

// SyncManager describes one sync manager channel of a slave.
type SyncManager struct {
	StartAddr uint16
	Length    uint16
	Flags     uint32
	// CommType classifies the channel: mailbox in/out, process data
	// outputs (SMCommOutputs) or inputs (SMCommInputs).
	CommType uint8
}

// FMMU describes one logical-to-physical address translation entry of a slave.
type FMMU struct {
	LogStart     uint32
	LogLength    uint16
	LogStartBit  uint8
	LogEndBit    uint8
	PhysStart    uint16
	PhysStartBit uint8
	Type         uint8
	Active       bool
}

// IOView is a slave's window into the shared process image: a byte offset,
// a start bit within that byte and a length in bits. It is a view, never a
// copy; the backing buffer is owned by the session.
type IOView struct {
	Offset   int
	StartBit uint8
	Bits     int
}

// Bytes returns the number of whole bytes covered by the view, rounding the
// bit length up.
func (v IOView) Bytes() int {
	return (v.Bits + 7) / 8
}

// Slave is the descriptor of one discovered device. Instances are owned by a
// Registry; all mutation goes through Registry methods so that the monitor
// task and the control loop never race on state fields.
type Slave struct {
	// Addr is the logical address assigned by discovery, unique and stable
	// for the session.
	Addr  uint16
	Name  string
	Group uint8

	// MbxProto is the mailbox protocol capability mask (MbxProto* bits).
	MbxProto uint16

	HasDC bool
	// PropDelay is the propagation delay in nanoseconds.
	PropDelay int

	// Obits and Ibits are the mapped output and input sizes in bits.
	Obits int
	Ibits int

	// Outputs and Inputs are views into the shared process image, valid
	// after mapping.
	Outputs IOView
	Inputs  IOView

	SM        [MaxSM]SyncManager
	SMCount   uint8
	FMMU      [MaxFMMU]FMMU
	FMMUCount uint8

	// State is the last confirmed lifecycle state.
	State SlaveState
	// ALStatusCode is the most recent abnormal-termination status code.
	ALStatusCode uint16
	// Lost is set by the monitor when the slave's confirmed state reads
	// back as StateNone.
	Lost bool
}

// SupportsCoE reports whether the slave advertises dictionary-based
// configuration support.
func (s *Slave) SupportsCoE() bool {
	return s.MbxProto&MbxProtoCoE != 0
}

// Registry is the in-memory table of discovered slave descriptors, addressed
// 1..Count. It is shared between the control-loop thread and the monitor
// task; every access goes through its lock.
type Registry struct {
	mu     sync.RWMutex
	slaves []*Slave // index 0 unused, address n at slaves[n]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{slaves: make([]*Slave, 1)}
}

// Reset replaces the registry content with freshly discovered slaves. Each
// entry is stored under its discovery address; entries must arrive in address
// order 1..count.
func (r *Registry) Reset(slaves []*Slave) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.slaves = make([]*Slave, 1, len(slaves)+1)
	r.slaves = append(r.slaves, slaves...)
}

// Count returns the number of registered slaves.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.slaves) - 1
}

// View returns a copy of the descriptor at addr, or false if addr is out of
// range. The copy is a snapshot; it does not track later mutation.
func (r *Registry) View(addr uint16) (Slave, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(addr) < 1 || int(addr) >= len(r.slaves) {
		return Slave{}, false
	}

	return *r.slaves[addr], true
}

// State returns the last confirmed state of the slave at addr, or StateNone
// if addr is out of range.
func (r *Registry) State(addr uint16) SlaveState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(addr) < 1 || int(addr) >= len(r.slaves) {
		return StateNone
	}

	return r.slaves[addr].State
}

// Apply runs fn on the descriptor at addr under the registry lock. It returns
// false if addr is out of range.
func (r *Registry) Apply(addr uint16, fn func(*Slave)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(addr) < 1 || int(addr) >= len(r.slaves) {
		return false
	}

	fn(r.slaves[addr])

	return true
}

// Each runs fn on every descriptor in address order under the registry lock.
func (r *Registry) Each(fn func(*Slave)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sl := range r.slaves[1:] {
		fn(sl)
	}
}

// UpdateStatus applies a freshly read state table to the registry.
func (r *Registry) UpdateStatus(statuses []SlaveStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range statuses {
		if int(st.Addr) < 1 || int(st.Addr) >= len(r.slaves) {
			continue
		}
		sl := r.slaves[st.Addr]
		sl.State = st.State
		sl.ALStatusCode = st.ALStatusCode
	}
}

// Views returns a snapshot copy of every descriptor in address order.
func (r *Registry) Views() []Slave {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Slave, 0, len(r.slaves)-1)
	for _, sl := range r.slaves[1:] {
		out = append(out, *sl)
	}

	return out
}
