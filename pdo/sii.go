package pdo

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/openecat/go-ecat/ecat"
	"github.com/openecat/go-ecat/logger"
)

// Descriptor memory PDO list layout. A category holds a 2-byte section length
// followed by a linked sequence of fixed-width records:
//
//	record header (8 bytes): object index u16, entry count u8, sync manager
//	id u8, sync type u8, name reference u8, flags u16
//	entry (8 bytes): object index u16, subindex u8, name reference u8,
//	data type u8, bit length u8, flags u16
const (
	siiRecordHeaderLen = 8
	siiEntryLen        = 8
)

// SIIMapper discovers a slave's PDO mapping from its onboard descriptor
// memory, for devices without dictionary-based configuration support.
type SIIMapper struct {
	tr      ecat.Transport
	timeout time.Duration
	log     logger.Logger

	// OnEntry, when set, observes every named mapping entry.
	OnEntry EntryFunc

	offset [2]int
}

var _ Mapper = (*SIIMapper)(nil)

// NewSIIMapper creates a descriptor-memory-driven mapper.
func NewSIIMapper(tr ecat.Transport, timeout time.Duration, log logger.Logger) *SIIMapper {
	if timeout <= 0 {
		timeout = DefaultDictTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &SIIMapper{tr: tr, timeout: timeout, log: log}
}

// Map walks the received (outputs) or transmitted (inputs) PDO category of
// sl's descriptor memory and accumulates the mapped bits.
//
// Records whose sync manager id falls outside the valid range are skipped by
// advancing the cursor over their embedded entries; their size is excluded
// from the per-manager bit size report. The walk is capped at MaxEEPDO-1
// records regardless of the declared section length. If descriptor memory had
// to be claimed from the slave's local processor, the original access mode is
// restored on exit.
func (m *SIIMapper) Map(sl *ecat.Slave, dir Direction) (int, error) {
	category := ecat.CatRxPDO
	want := ecat.SMCommOutputs
	if dir == Inputs {
		category = ecat.CatTxPDO
		want = ecat.SMCommInputs
	}

	prev, err := m.tr.DescriptorAccess(sl.Addr)
	if err != nil {
		return 0, fmt.Errorf("slave %d: query descriptor access: %w", sl.Addr, err)
	}
	if prev != ecat.AccessMaster {
		if err := m.tr.SetDescriptorAccess(sl.Addr, ecat.AccessMaster); err != nil {
			return 0, fmt.Errorf("slave %d: claim descriptor memory: %w", sl.Addr, err)
		}
		defer func() {
			if rerr := m.tr.SetDescriptorAccess(sl.Addr, prev); rerr != nil {
				m.log.Warn("failed to restore descriptor access mode",
					"slave", sl.Addr, "error", rerr)
			}
		}()
	}

	start, err := m.tr.FindDescriptorSection(sl.Addr, category)
	if err != nil {
		return 0, fmt.Errorf("slave %d: find descriptor category %d: %w", sl.Addr, category, err)
	}
	if start == 0 {
		// category absent, nothing mapped in this direction
		return 0, nil
	}

	lenBuf, err := m.readBytes(sl.Addr, start, 2)
	if err != nil {
		return 0, err
	}
	sectionLen := uint32(binary.LittleEndian.Uint16(lenBuf))

	var smBits [ecat.MaxSM]int
	cursor := start + 2
	end := cursor + sectionLen
	total := 0
	records := 0

	for cursor < end {
		if records >= ecat.MaxEEPDO-1 {
			// fixed-size record table bound reached, terminate the walk
			m.log.Warn("descriptor PDO record table bound reached, truncating walk",
				"slave", sl.Addr, "records", records)
			break
		}

		hdr, err := m.readBytes(sl.Addr, cursor, siiRecordHeaderLen)
		if err != nil {
			return total, err
		}
		cursor += siiRecordHeaderLen
		records++

		entryCount := int(hdr[2])
		smIdx := hdr[3]

		if int(smIdx) >= ecat.MaxSM {
			// record deactivated or bound to an invalid sync manager:
			// advance over the embedded entries without mapping them
			cursor += uint32(entryCount) * siiEntryLen
			continue
		}

		pdoBits := 0
		for i := 0; i < entryCount; i++ {
			raw, err := m.readBytes(sl.Addr, cursor, siiEntryLen)
			if err != nil {
				return total, err
			}
			cursor += siiEntryLen

			entry := Entry{
				Index:  binary.LittleEndian.Uint16(raw[0:2]),
				Sub:    raw[2],
				BitLen: raw[5],
			}

			if !entry.IsFiller() && m.OnEntry != nil {
				m.OnEntry(dir, entry, m.offset[dir])
			}

			pdoBits += int(entry.BitLen)
			m.offset[dir] += int(entry.BitLen)
		}

		smBits[smIdx] += pdoBits
		total += pdoBits
	}

	for i := range smBits {
		if smBits[i] > 0 {
			sl.SM[i].CommType = want
		}
	}

	m.log.Debug("descriptor memory mapping pass complete",
		"slave", sl.Addr, "dir", dir.String(), "bits", total, "records", records)

	return total, nil
}

func (m *SIIMapper) readBytes(addr uint16, byteAddr uint32, n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := m.tr.ReadDescriptorByte(addr, byteAddr+uint32(i))
		if err != nil {
			return nil, fmt.Errorf("slave %d: descriptor read at 0x%04x: %w", addr, byteAddr+uint32(i), err)
		}
		buf[i] = b
	}

	return buf, nil
}
