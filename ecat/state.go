package ecat

// SlaveState represents the lifecycle state of a slave's application layer.
//
// The forward order of the main flow is Init -> PreOp -> SafeOp -> Operational.
// Boot is orthogonal and only used for firmware-update workflows. The Error bit
// can be OR'd onto any state by the slave; writing the same bit back requests
// an error acknowledge.
type SlaveState uint16

// Slave lifecycle states and flags as they appear on the wire.
const (
	// StateNone is the sentinel for an unreachable or not yet read slave.
	StateNone SlaveState = 0x00
	// StateInit is the initialization state.
	StateInit SlaveState = 0x01
	// StatePreOp is the pre-operational state; mailbox communication only.
	StatePreOp SlaveState = 0x02
	// StateBoot is the bootstrap state used for firmware updates.
	StateBoot SlaveState = 0x03
	// StateSafeOp is the safe-operational state; inputs are valid, outputs stay safe.
	StateSafeOp SlaveState = 0x04
	// StateOperational is the fully operational state; cyclic process data is exchanged.
	StateOperational SlaveState = 0x08
	// StateAck requests an error acknowledge when written; reads back as StateError.
	StateAck SlaveState = 0x10
	// StateError flags an application layer error on top of the base state.
	StateError SlaveState = 0x10
)

// Base strips the error/ack flag and returns the underlying lifecycle state.
func (s SlaveState) Base() SlaveState { return s &^ StateError }

// HasError reports whether the error flag is set.
func (s SlaveState) HasError() bool { return s&StateError != 0 }

// WithAck returns the base state with the acknowledge flag set, as written to
// a slave to clear a flagged error.
func (s SlaveState) WithAck() SlaveState { return s.Base() | StateAck }

// IsNone reports whether the state is the unreachable sentinel.
func (s SlaveState) IsNone() bool { return s == StateNone }

// IsOperational reports whether the state is Operational without an error flag.
func (s SlaveState) IsOperational() bool { return s == StateOperational }

// String returns the short display name of the state, with a "+ERROR" suffix
// when the error flag is set.
func (s SlaveState) String() string {
	name := "NONE"
	switch s.Base() {
	case StateInit:
		name = "INIT"
	case StatePreOp:
		name = "PRE_OP"
	case StateBoot:
		name = "BOOT"
	case StateSafeOp:
		name = "SAFE_OP"
	case StateOperational:
		name = "OP"
	}

	if s.HasError() {
		return name + "+ERROR"
	}

	return name
}
