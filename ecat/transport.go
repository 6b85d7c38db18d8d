package ecat

import (
	"time"
)

// SlaveInfo is the discovery result for one device, produced by the transport
// during Discover and loaded into the Registry by the session.
type SlaveInfo struct {
	Addr      uint16
	Name      string
	Group     uint8
	MbxProto  uint16
	HasDC     bool
	PropDelay int
	SM        [MaxSM]SyncManager
	SMCount   uint8
}

// SlaveStatus is one row of a freshly read state table.
type SlaveStatus struct {
	Addr         uint16
	State        SlaveState
	ALStatusCode uint16
}

// DescriptorAccess identifies the owner of a slave's descriptor memory
// interface: the slave-local application processor or the master.
type DescriptorAccess uint8

const (
	// AccessPDI leaves descriptor memory to the slave's local processor.
	AccessPDI DescriptorAccess = iota
	// AccessMaster claims descriptor memory for master reads.
	AccessMaster
)

// Transport is the lower transport/config collaborator: raw frame I/O,
// discovery and the primitive wire operations the session and mapping layers
// are built on. Implementations must be safe for use by the control-loop
// thread and the monitor task concurrently.
//
// All blocking operations are bounded by an explicit timeout; a transport
// never blocks forever.
type Transport interface {
	// Bind opens the transport on the named network interface.
	Bind(ifname string) error

	// Discover scans the segment, auto-configures every device found and
	// requests PreOp on each as a side effect. It returns one SlaveInfo per
	// device in address order 1..count. Zero devices is reported via
	// ErrNoSlaves, not retried.
	Discover(verbose bool) ([]SlaveInfo, error)

	// ConfigureDC configures distributed clocks and reports whether any
	// slave has DC capability.
	ConfigureDC() (bool, error)

	// Send transmits the process image outputs.
	Send(image []byte) error

	// Receive collects the returning frame into the process image and
	// returns the cycle's work counter. It waits at most timeout.
	Receive(image []byte, timeout time.Duration) (int, error)

	// WriteState issues a state-write request to the slave at addr, or to
	// all slaves when addr is 0.
	WriteState(addr uint16, state SlaveState) error

	// ReadStates reads the full state table of the segment.
	ReadStates() ([]SlaveStatus, error)

	// ReadDictionary reads an object dictionary value into buf and returns
	// the number of bytes read.
	ReadDictionary(addr uint16, index uint16, sub uint8, buf []byte, timeout time.Duration) (int, error)

	// WriteDictionary writes an object dictionary value.
	WriteDictionary(addr uint16, index uint16, sub uint8, data []byte, timeout time.Duration) error

	// DescriptorAccess returns the current owner of the slave's descriptor
	// memory interface.
	DescriptorAccess(addr uint16) (DescriptorAccess, error)

	// SetDescriptorAccess hands the slave's descriptor memory interface to
	// the given owner.
	SetDescriptorAccess(addr uint16, access DescriptorAccess) error

	// FindDescriptorSection locates a descriptor memory category and returns
	// its start as a byte address, or 0 when the category is absent.
	FindDescriptorSection(addr uint16, category uint16) (uint32, error)

	// ReadDescriptorByte reads one byte of descriptor memory.
	ReadDescriptorByte(addr uint16, byteAddr uint32) (byte, error)

	// Reconfigure re-runs the configuration sequence for a single slave and
	// returns the state it settles in.
	Reconfigure(addr uint16, timeout time.Duration) (SlaveState, error)

	// Recover attempts to bring back a lost slave.
	Recover(addr uint16, timeout time.Duration) error

	// Close releases transport resources. The session stops the monitor
	// before calling Close.
	Close() error
}
