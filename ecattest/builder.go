package ecattest

import (
	"encoding/binary"

	"github.com/openecat/go-ecat/ecat"
)

// SimPDO is one mapped PDO for the CoE builder: the mapping object index and
// its packed entry descriptor words.
type SimPDO struct {
	Index   uint16
	Entries []uint32
}

// PDOEntry packs a named mapping entry descriptor word.
func PDOEntry(index uint16, sub uint8, bits uint8) uint32 {
	return uint32(index)<<16 | uint32(sub)<<8 | uint32(bits)
}

// PDOFiller packs a padding entry descriptor word that only advances the
// mapping offset.
func PDOFiller(bits uint8) uint32 {
	return uint32(bits)
}

// WithCoE marks the slave as dictionary-capable.
func (sl *SimSlave) WithCoE() *SimSlave {
	sl.MbxProto |= ecat.MbxProtoCoE
	return sl
}

// WithDC gives the slave distributed clock support with the given measured
// propagation delay.
func (sl *SimSlave) WithDC(propDelay int) *SimSlave {
	sl.HasDC = true
	sl.PropDelay = propDelay
	return sl
}

// WithGroup assigns the slave to a logical group.
func (sl *SimSlave) WithGroup(group uint8) *SimSlave {
	sl.Group = group
	return sl
}

// SetObject stores raw dictionary object content.
func (sl *SimSlave) SetObject(index uint16, sub uint8, data ...byte) *SimSlave {
	sl.objects[objKey(index, sub)] = append([]byte(nil), data...)
	return sl
}

// SetObjectU8 stores a one-byte dictionary object.
func (sl *SimSlave) SetObjectU8(index uint16, sub uint8, v uint8) *SimSlave {
	return sl.SetObject(index, sub, v)
}

// SetObjectU16 stores a little-endian two-byte dictionary object.
func (sl *SimSlave) SetObjectU16(index uint16, sub uint8, v uint16) *SimSlave {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return sl.SetObject(index, sub, buf[:]...)
}

// SetObjectU32 stores a little-endian four-byte dictionary object.
func (sl *SimSlave) SetObjectU32(index uint16, sub uint8, v uint32) *SimSlave {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return sl.SetObject(index, sub, buf[:]...)
}

// DefineSMTypes populates the sync manager communication type array object:
// the element count at subindex 0 and one type byte per manager starting at
// subindex 1.
func (sl *SimSlave) DefineSMTypes(types ...uint8) *SimSlave {
	sl.SetObjectU8(ecat.IdxSMCommType, 0, uint8(len(types)))
	for i, t := range types {
		sl.SetObjectU8(ecat.IdxSMCommType, uint8(i+1), t)
	}

	return sl
}

// AssignOutputPDOs binds pdos to sync manager sm as master-written process
// data and accounts their bits toward the slave's output size.
func (sl *SimSlave) AssignOutputPDOs(sm int, pdos ...SimPDO) *SimSlave {
	sl.OutBits += sl.assignPDOs(sm, pdos)
	return sl
}

// AssignInputPDOs binds pdos to sync manager sm as slave-produced process
// data and accounts their bits toward the slave's input size.
func (sl *SimSlave) AssignInputPDOs(sm int, pdos ...SimPDO) *SimSlave {
	sl.InBits += sl.assignPDOs(sm, pdos)
	return sl
}

// assignPDOs writes the PDO assign object for sm and one mapping object per
// PDO, returning the total mapped bits.
func (sl *SimSlave) assignPDOs(sm int, pdos []SimPDO) int {
	assignIdx := ecat.IdxPDOAssign + uint16(sm)
	sl.SetObjectU8(assignIdx, 0, uint8(len(pdos)))

	bits := 0
	for i, p := range pdos {
		sl.SetObjectU16(assignIdx, uint8(i+1), p.Index)
		sl.SetObjectU8(p.Index, 0, uint8(len(p.Entries)))
		for j, word := range p.Entries {
			sl.SetObjectU32(p.Index, uint8(j+1), word)
			bits += int(word & 0xFF)
		}
	}

	return bits
}

// SIIEntry is one mapping entry in a descriptor memory PDO record.
type SIIEntry struct {
	Index  uint16
	Sub    uint8
	BitLen uint8
}

// SIIRecord is one PDO record in a descriptor memory category: the mapping
// object index, the owning sync manager id and the embedded entries.
type SIIRecord struct {
	Index   uint16
	SM      uint8
	Entries []SIIEntry
}

// DefineSIIOutputs serializes records into the received-PDO descriptor
// category and accounts valid records toward the slave's output size.
func (sl *SimSlave) DefineSIIOutputs(records ...SIIRecord) *SimSlave {
	sl.OutBits += sl.defineSIICategory(ecat.CatRxPDO, records)
	return sl
}

// DefineSIIInputs serializes records into the transmitted-PDO descriptor
// category and accounts valid records toward the slave's input size.
func (sl *SimSlave) DefineSIIInputs(records ...SIIRecord) *SimSlave {
	sl.InBits += sl.defineSIICategory(ecat.CatTxPDO, records)
	return sl
}

// defineSIICategory appends a category section to the descriptor image: a
// two-byte section length followed by fixed-width records, each an 8-byte
// header and 8 bytes per entry. Records bound to an out-of-range sync manager
// are serialized but excluded from the mapped-bit total, matching how the
// walk skips them.
func (sl *SimSlave) defineSIICategory(category uint16, records []SIIRecord) int {
	var body []byte
	bits := 0

	for _, r := range records {
		hdr := make([]byte, 8)
		binary.LittleEndian.PutUint16(hdr[0:2], r.Index)
		hdr[2] = uint8(len(r.Entries))
		hdr[3] = r.SM
		body = append(body, hdr...)

		for _, e := range r.Entries {
			raw := make([]byte, 8)
			binary.LittleEndian.PutUint16(raw[0:2], e.Index)
			raw[2] = e.Sub
			raw[5] = e.BitLen
			body = append(body, raw...)

			if int(r.SM) < ecat.MaxSM {
				bits += int(e.BitLen)
			}
		}
	}

	// address 0 means "category absent", keep a guard region at the front
	if len(sl.sii) == 0 {
		sl.sii = make([]byte, 16)
	}

	start := uint32(len(sl.sii))
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(body)))
	sl.sii = append(sl.sii, lenBuf[:]...)
	sl.sii = append(sl.sii, body...)
	sl.categories[category] = start

	return bits
}
