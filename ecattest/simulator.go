// Package ecattest provides an in-memory Transport simulator with scriptable
// fake slaves, for exercising session, mapping and monitor logic without a
// physical segment.
package ecattest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openecat/go-ecat/ecat"
)

// SimSlave is one simulated device on the segment. Configure it through the
// builder methods before the session starts; at runtime, mutate it through
// the Simulator's setter methods only.
type SimSlave struct {
	Name      string
	MbxProto  uint16
	HasDC     bool
	PropDelay int
	Group     uint8

	// OutBits and InBits drive the slave's work counter contribution.
	// Builder helpers keep them in sync with the defined PDOs.
	OutBits int
	InBits  int

	// Unresponsive makes the slave read back as StateNone and drop out of
	// the work counter. When the device returns, it stays unreadable until
	// a Recover call re-addresses it.
	Unresponsive bool

	// needsRecover latches when an unresponsive device comes back; Recover
	// clears it and puts the slave in Init.
	needsRecover bool

	// HoldState freezes the slave in its current state: state-write
	// requests are accepted but not confirmed.
	HoldState bool

	// Recoverable controls whether a returned device can be re-addressed by
	// Recover. Defaults to true.
	Recoverable bool

	state    ecat.SlaveState
	alStatus uint16

	objects map[uint32][]byte

	sii        []byte
	categories map[uint16]uint32
	access     ecat.DescriptorAccess

	// AccessLog records every descriptor access mode change, so tests can
	// assert that readers restore the original mode.
	AccessLog []ecat.DescriptorAccess
}

func objKey(index uint16, sub uint8) uint32 {
	return uint32(index)<<8 | uint32(sub)
}

// offline reports whether the slave is unreachable for datagrams: absent from
// the segment or back but not yet re-addressed.
func (sl *SimSlave) offline() bool {
	return sl.Unresponsive || sl.needsRecover
}

// Simulator is an in-memory ecat.Transport over a set of SimSlaves.
type Simulator struct {
	mu sync.Mutex

	slaves []*SimSlave // address n at slaves[n-1]

	bound  bool
	closed bool
	ifname string

	// BindErr, SendErr and RecvErr inject transport faults.
	BindErr error
	SendErr error
	RecvErr error

	lastImage []byte
	sendCount int
	recvCount int
}

var _ ecat.Transport = (*Simulator)(nil)

// New creates an empty simulator.
func New() *Simulator {
	return &Simulator{}
}

// AddSlave appends a simulated device and returns it for builder-style
// configuration. Addresses are assigned in insertion order starting at 1.
func (s *Simulator) AddSlave(name string) *SimSlave {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := &SimSlave{
		Name:        name,
		Recoverable: true,
		state:       ecat.StateInit,
		objects:     make(map[uint32][]byte),
		categories:  make(map[uint16]uint32),
		access:      ecat.AccessPDI,
	}
	s.slaves = append(s.slaves, sl)

	return sl
}

// SendCount returns the number of process data sends observed.
func (s *Simulator) SendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sendCount
}

// LastImage returns a copy of the most recently sent process image.
func (s *Simulator) LastImage() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, len(s.lastImage))
	copy(out, s.lastImage)

	return out
}

// SetSlaveState forces a slave's confirmed state and AL status code, as seen
// by the next state table read.
func (s *Simulator) SetSlaveState(addr uint16, state ecat.SlaveState, alStatus uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl := s.at(addr); sl != nil {
		sl.state = state
		sl.alStatus = alStatus
	}
}

// SetUnresponsive marks a slave as unreachable or reachable again. A slave
// coming back still reads as StateNone until recovered.
func (s *Simulator) SetUnresponsive(addr uint16, unresponsive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return
	}

	if sl.Unresponsive && !unresponsive {
		sl.needsRecover = true
	}
	sl.Unresponsive = unresponsive
}

// SetHoldState freezes or unfreezes a slave's state machine.
func (s *Simulator) SetHoldState(addr uint16, hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl := s.at(addr); sl != nil {
		sl.HoldState = hold
	}
}

// SlaveState returns a slave's current simulated state.
func (s *Simulator) SlaveState(addr uint16) ecat.SlaveState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl := s.at(addr); sl != nil {
		return sl.state
	}

	return ecat.StateNone
}

// AccessLog returns the recorded descriptor access transitions of a slave.
func (s *Simulator) AccessLog(addr uint16) []ecat.DescriptorAccess {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl := s.at(addr); sl != nil {
		out := make([]ecat.DescriptorAccess, len(sl.AccessLog))
		copy(out, sl.AccessLog)
		return out
	}

	return nil
}

// at returns the slave at addr or nil; callers hold s.mu.
func (s *Simulator) at(addr uint16) *SimSlave {
	if int(addr) < 1 || int(addr) > len(s.slaves) {
		return nil
	}

	return s.slaves[addr-1]
}

// Bind implements ecat.Transport.
func (s *Simulator) Bind(ifname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BindErr != nil {
		return s.BindErr
	}
	if s.closed {
		return errors.New("simulator closed")
	}

	s.bound = true
	s.ifname = ifname

	return nil
}

// Discover implements ecat.Transport. Every slave is requested to PreOp as a
// side effect, matching the auto-configuration contract.
func (s *Simulator) Discover(verbose bool) ([]ecat.SlaveInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bound {
		return nil, ecat.ErrNotBound
	}

	infos := make([]ecat.SlaveInfo, 0, len(s.slaves))
	for i, sl := range s.slaves {
		sl.state = ecat.StatePreOp

		infos = append(infos, ecat.SlaveInfo{
			Addr:      uint16(i + 1),
			Name:      sl.Name,
			Group:     sl.Group,
			MbxProto:  sl.MbxProto,
			HasDC:     sl.HasDC,
			PropDelay: sl.PropDelay,
		})
	}

	return infos, nil
}

// ConfigureDC implements ecat.Transport.
func (s *Simulator) ConfigureDC() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range s.slaves {
		if sl.HasDC {
			return true, nil
		}
	}

	return false, nil
}

// Send implements ecat.Transport.
func (s *Simulator) Send(image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SendErr != nil {
		return s.SendErr
	}

	s.sendCount++
	s.lastImage = append(s.lastImage[:0], image...)

	return nil
}

// Receive implements ecat.Transport. The work counter sums the contribution
// of every responsive slave: 1 per input region from SafeOp up, plus 2 per
// output region once the slave processes outputs in Operational.
func (s *Simulator) Receive(image []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RecvErr != nil {
		return 0, s.RecvErr
	}

	s.recvCount++

	wkc := 0
	for _, sl := range s.slaves {
		if sl.offline() || sl.state.Base() < ecat.StateSafeOp {
			continue
		}
		if sl.OutBits > 0 && sl.state.Base() == ecat.StateOperational {
			wkc += 2
		}
		if sl.InBits > 0 {
			wkc++
		}
	}

	return wkc, nil
}

// WriteState implements ecat.Transport. Address 0 broadcasts. An acknowledge
// request clears a flagged error; other requests confirm immediately unless
// the slave holds its state.
func (s *Simulator) WriteState(addr uint16, state ecat.SlaveState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if addr == 0 {
		for _, sl := range s.slaves {
			sl.applyStateRequest(state)
		}
		return nil
	}

	sl := s.at(addr)
	if sl == nil {
		return ecat.ErrInvalidAddress
	}
	sl.applyStateRequest(state)

	return nil
}

func (sl *SimSlave) applyStateRequest(req ecat.SlaveState) {
	if sl.offline() {
		return
	}

	if req&ecat.StateAck != 0 {
		// error acknowledge keeps the base state and clears the flag
		sl.state = sl.state.Base()
		sl.alStatus = 0
		return
	}

	if sl.HoldState {
		return
	}

	sl.state = req.Base()
}

// ReadStates implements ecat.Transport.
func (s *Simulator) ReadStates() ([]ecat.SlaveStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]ecat.SlaveStatus, 0, len(s.slaves))
	for i, sl := range s.slaves {
		state := sl.state
		if sl.offline() {
			state = ecat.StateNone
		}

		statuses = append(statuses, ecat.SlaveStatus{
			Addr:         uint16(i + 1),
			State:        state,
			ALStatusCode: sl.alStatus,
		})
	}

	return statuses, nil
}

// ReadDictionary implements ecat.Transport.
func (s *Simulator) ReadDictionary(addr uint16, index uint16, sub uint8, buf []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return 0, ecat.ErrInvalidAddress
	}
	if sl.MbxProto&ecat.MbxProtoCoE == 0 {
		return 0, ecat.ErrDictUnsupported
	}
	if sl.offline() {
		return 0, ecat.ErrTimeout
	}

	data, ok := sl.objects[objKey(index, sub)]
	if !ok {
		return 0, fmt.Errorf("object 0x%04x:%d not found", index, sub)
	}

	n := copy(buf, data)

	return n, nil
}

// WriteDictionary implements ecat.Transport.
func (s *Simulator) WriteDictionary(addr uint16, index uint16, sub uint8, data []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return ecat.ErrInvalidAddress
	}
	if sl.MbxProto&ecat.MbxProtoCoE == 0 {
		return ecat.ErrDictUnsupported
	}
	if sl.offline() {
		return ecat.ErrTimeout
	}

	sl.objects[objKey(index, sub)] = append([]byte(nil), data...)

	return nil
}

// DescriptorAccess implements ecat.Transport.
func (s *Simulator) DescriptorAccess(addr uint16) (ecat.DescriptorAccess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return ecat.AccessPDI, ecat.ErrInvalidAddress
	}

	return sl.access, nil
}

// SetDescriptorAccess implements ecat.Transport.
func (s *Simulator) SetDescriptorAccess(addr uint16, access ecat.DescriptorAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return ecat.ErrInvalidAddress
	}

	sl.access = access
	sl.AccessLog = append(sl.AccessLog, access)

	return nil
}

// FindDescriptorSection implements ecat.Transport. It returns 0 for absent
// categories.
func (s *Simulator) FindDescriptorSection(addr uint16, category uint16) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return 0, ecat.ErrInvalidAddress
	}

	return sl.categories[category], nil
}

// ReadDescriptorByte implements ecat.Transport.
func (s *Simulator) ReadDescriptorByte(addr uint16, byteAddr uint32) (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return 0, ecat.ErrInvalidAddress
	}
	if sl.access != ecat.AccessMaster {
		return 0, errors.New("descriptor memory not claimed by master")
	}
	if int(byteAddr) >= len(sl.sii) {
		return 0, fmt.Errorf("descriptor read beyond image at 0x%04x", byteAddr)
	}

	return sl.sii[byteAddr], nil
}

// Reconfigure implements ecat.Transport. A reachable slave is brought back to
// Operational; an offline one stays None.
func (s *Simulator) Reconfigure(addr uint16, timeout time.Duration) (ecat.SlaveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return ecat.StateNone, ecat.ErrInvalidAddress
	}
	if sl.offline() {
		return ecat.StateNone, nil
	}

	sl.state = ecat.StateOperational
	sl.alStatus = 0

	return sl.state, nil
}

// Recover implements ecat.Transport. It fails while the device is absent; a
// returned device is re-addressed and lands in Init.
func (s *Simulator) Recover(addr uint16, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.at(addr)
	if sl == nil {
		return ecat.ErrInvalidAddress
	}
	if sl.Unresponsive || !sl.Recoverable {
		return ecat.ErrTimeout
	}

	sl.needsRecover = false
	sl.state = ecat.StateInit

	return nil
}

// Close implements ecat.Transport.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.bound = false

	return nil
}
