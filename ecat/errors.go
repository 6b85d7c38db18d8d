package ecat

import "errors"

var (
	// ErrNotBound indicates that a session operation was attempted before a
	// successful Init bound the transport.
	ErrNotBound = errors.New("transport not bound")

	// ErrNoSlaves indicates that discovery finished without finding any slave.
	ErrNoSlaves = errors.New("no slaves detected")

	// ErrMapOverflow indicates that the mapped process data does not fit the
	// fixed-capacity process image.
	ErrMapOverflow = errors.New("process image capacity exceeded")

	// ErrStateTransition indicates that one or more slaves failed to confirm
	// a requested state within the retry budget.
	ErrStateTransition = errors.New("state transition not confirmed")

	// ErrTimeout indicates that a bounded wire operation did not complete in
	// time.
	ErrTimeout = errors.New("wire operation timed out")

	// ErrInvalidAddress indicates a slave address outside the registry range.
	ErrInvalidAddress = errors.New("invalid slave address")

	// ErrClosed indicates that the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrDictUnsupported indicates that a dictionary operation was issued to
	// a slave without dictionary-based configuration support.
	ErrDictUnsupported = errors.New("slave has no object dictionary support")
)
