package pdo

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/openecat/go-ecat/ecat"
	"github.com/openecat/go-ecat/logger"
)

// DefaultDictTimeout bounds a single object dictionary read during mapping
// discovery.
const DefaultDictTimeout = 700 * time.Millisecond

// CoEMapper discovers a slave's PDO mapping through its object dictionary:
// the sync manager communication type array classifies each channel, and the
// per-channel PDO assign objects list the mapped entries.
type CoEMapper struct {
	tr      ecat.Transport
	timeout time.Duration
	log     logger.Logger

	// OnEntry, when set, observes every named mapping entry. Filler entries
	// advance the offset silently.
	OnEntry EntryFunc

	offset [2]int
}

var _ Mapper = (*CoEMapper)(nil)

// NewCoEMapper creates a dictionary-driven mapper. A non-positive timeout
// falls back to DefaultDictTimeout.
func NewCoEMapper(tr ecat.Transport, timeout time.Duration, log logger.Logger) *CoEMapper {
	if timeout <= 0 {
		timeout = DefaultDictTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &CoEMapper{tr: tr, timeout: timeout, log: log}
}

// Map walks the sync manager communication types of sl and accumulates the
// mapped bits of every channel matching dir.
//
// Some devices carry an off-by-one firmware defect in the communication type
// array: sync manager 2 reads back as mailbox-out (type 2). When detected, a
// one-unit correction is applied to every communication type read for that
// slave from then on.
func (m *CoEMapper) Map(sl *ecat.Slave, dir Direction) (int, error) {
	want := ecat.SMCommOutputs
	if dir == Inputs {
		want = ecat.SMCommInputs
	}

	nSM, err := m.readU8(sl.Addr, ecat.IdxSMCommType, 0)
	if err != nil {
		return 0, fmt.Errorf("slave %d: read SM communication type count: %w", sl.Addr, err)
	}
	if int(nSM) > ecat.MaxSM {
		nSM = ecat.MaxSM
	}

	var bugAdd uint8
	total := 0

	// SM0 and SM1 are mailbox channels, process data starts at SM2.
	for iSM := 2; iSM < int(nSM); iSM++ {
		commType, err := m.readU8(sl.Addr, ecat.IdxSMCommType, uint8(iSM+1))
		if err != nil {
			m.log.Debug("SM communication type read failed, skipping channel",
				"slave", sl.Addr, "sm", iSM, "error", err)
			continue
		}

		if iSM == 2 && commType == ecat.SMCommMbxOut {
			// firmware defect: SM2 can never be a mailbox channel here, the
			// whole type array is off by one
			bugAdd = 1
			m.log.Warn("slave reports SM2 as mailbox-out, correcting communication types",
				"slave", sl.Addr)
		}
		if commType > 0 {
			commType += bugAdd
		}

		sl.SM[iSM].CommType = commType
		if commType != want {
			continue
		}

		bits, err := m.readPDOAssign(sl.Addr, ecat.IdxPDOAssign+uint16(iSM), dir)
		if err != nil {
			return total, fmt.Errorf("slave %d: SM%d PDO assign: %w", sl.Addr, iSM, err)
		}

		total += bits
	}

	m.log.Debug("dictionary mapping pass complete",
		"slave", sl.Addr, "dir", dir.String(), "bits", total)

	return total, nil
}

// readPDOAssign reads the assigned PDO list at assignIdx and sums the bit
// lengths of every mapping entry, fillers included.
func (m *CoEMapper) readPDOAssign(addr uint16, assignIdx uint16, dir Direction) (int, error) {
	pdoCount, err := m.readU16(addr, assignIdx, 0)
	if err != nil {
		return 0, err
	}
	if pdoCount > 0xFF {
		// the subindex space is one byte, larger counts are corruption
		pdoCount = 0xFF
	}

	bits := 0
	for i := 1; i <= int(pdoCount); i++ {
		pdoIdx, err := m.readU16(addr, assignIdx, uint8(i))
		if err != nil || pdoIdx == 0 {
			continue
		}

		entryCount, err := m.readU8(addr, pdoIdx, 0)
		if err != nil {
			continue
		}

		for sub := 1; sub <= int(entryCount); sub++ {
			word, err := m.readU32(addr, pdoIdx, uint8(sub))
			if err != nil {
				continue
			}

			entry := DecodeEntry(word)
			if !entry.IsFiller() && m.OnEntry != nil {
				m.OnEntry(dir, entry, m.offset[dir])
			}

			bits += int(entry.BitLen)
			m.offset[dir] += int(entry.BitLen)
		}
	}

	return bits, nil
}

func (m *CoEMapper) readU8(addr uint16, index uint16, sub uint8) (uint8, error) {
	var buf [1]byte
	if _, err := m.tr.ReadDictionary(addr, index, sub, buf[:], m.timeout); err != nil {
		return 0, err
	}

	return buf[0], nil
}

func (m *CoEMapper) readU16(addr uint16, index uint16, sub uint8) (uint16, error) {
	var buf [2]byte
	n, err := m.tr.ReadDictionary(addr, index, sub, buf[:], m.timeout)
	if err != nil {
		return 0, err
	}
	if n == 1 {
		return uint16(buf[0]), nil
	}

	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (m *CoEMapper) readU32(addr uint16, index uint16, sub uint8) (uint32, error) {
	var buf [4]byte
	if _, err := m.tr.ReadDictionary(addr, index, sub, buf[:], m.timeout); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}
