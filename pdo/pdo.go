// Package pdo implements process data mapping discovery and layout: it pulls
// a slave's input/output bit sizes from its object dictionary or from its
// descriptor memory, and computes every slave's offsets into the shared
// process image.
package pdo

import (
	"time"

	"github.com/openecat/go-ecat/ecat"
	"github.com/openecat/go-ecat/logger"
)

// Entry is one PDO mapping entry: the mapped object, its subindex and its
// size in bits. Entries are consumed immediately to advance the running bit
// offset; they are not retained after mapping completes.
type Entry struct {
	Index  uint16
	Sub    uint8
	BitLen uint8
}

// IsFiller reports whether the entry is padding: a zero object index and
// subindex pair contributes only to offset advancement, not to the named
// mapping.
func (e Entry) IsFiller() bool {
	return e.Index == 0 && e.Sub == 0
}

// DecodeEntry decodes the packed 32-bit mapping descriptor word laid out as
// [object index:16][subindex:8][bit length:8].
func DecodeEntry(word uint32) Entry {
	return Entry{
		Index:  uint16(word >> 16),
		Sub:    uint8(word >> 8),
		BitLen: uint8(word),
	}
}

// Word encodes the entry back into its packed descriptor word.
func (e Entry) Word() uint32 {
	return uint32(e.Index)<<16 | uint32(e.Sub)<<8 | uint32(e.BitLen)
}

// Direction selects which half of the process data a mapping pass discovers.
type Direction uint8

const (
	// Outputs selects process data written by the master.
	Outputs Direction = iota
	// Inputs selects process data produced by the slave.
	Inputs
)

func (d Direction) String() string {
	if d == Outputs {
		return "outputs"
	}

	return "inputs"
}

// EntryFunc observes each named mapping entry together with its absolute bit
// offset in the slave's region. Filler entries are not reported.
type EntryFunc func(dir Direction, e Entry, bitOffset int)

// Mapper discovers the PDO mapping of one slave, one direction per pass.
// A pass returns the total bits discovered; repeated passes of the same
// direction accumulate a running offset so the slave's region stays one
// contiguous range.
type Mapper interface {
	// Map discovers the mapping for dir on sl, records the normalized sync
	// manager classification on the descriptor and returns the bits found.
	Map(sl *ecat.Slave, dir Direction) (int, error)
}

// Select picks the mapping strategy for a slave: dictionary-driven when the
// slave advertises CoE support, descriptor-memory-driven otherwise. The
// strategy is selected once per slave at configuration time.
func Select(tr ecat.Transport, sl *ecat.Slave, timeout time.Duration, log logger.Logger) Mapper {
	if sl.SupportsCoE() {
		return NewCoEMapper(tr, timeout, log)
	}

	return NewSIIMapper(tr, timeout, log)
}
