package pdo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openecat/go-ecat/ecat"
	"github.com/openecat/go-ecat/ecattest"
)

type capturedEntry struct {
	dir    Direction
	entry  Entry
	offset int
}

func captureEntries(dst *[]capturedEntry) EntryFunc {
	return func(dir Direction, e Entry, bitOffset int) {
		*dst = append(*dst, capturedEntry{dir: dir, entry: e, offset: bitOffset})
	}
}

func TestCoEMapperMap(t *testing.T) {
	require := require.New(t)

	sim := ecattest.New()
	sim.AddSlave("drive").WithCoE().
		DefineSMTypes(ecat.SMCommMbxIn, ecat.SMCommMbxOut, ecat.SMCommOutputs, ecat.SMCommInputs).
		AssignOutputPDOs(2, ecattest.SimPDO{Index: 0x1600, Entries: []uint32{
			ecattest.PDOEntry(0x7000, 1, 16),
			ecattest.PDOFiller(8),
			ecattest.PDOEntry(0x7000, 2, 8),
		}}).
		AssignInputPDOs(3,
			ecattest.SimPDO{Index: 0x1A00, Entries: []uint32{ecattest.PDOEntry(0x6000, 1, 16)}},
			ecattest.SimPDO{Index: 0x1A01, Entries: []uint32{ecattest.PDOEntry(0x6010, 1, 8)}},
		)

	var captured []capturedEntry
	m := NewCoEMapper(sim, 0, nil)
	m.OnEntry = captureEntries(&captured)

	sl := &ecat.Slave{Addr: 1, MbxProto: ecat.MbxProtoCoE}

	obits, err := m.Map(sl, Outputs)
	require.NoError(err)
	require.Equal(32, obits)
	require.Equal(ecat.SMCommOutputs, sl.SM[2].CommType)

	ibits, err := m.Map(sl, Inputs)
	require.NoError(err)
	require.Equal(24, ibits)
	require.Equal(ecat.SMCommInputs, sl.SM[3].CommType)

	// filler entries advance the offset but are never reported
	require.Len(captured, 4)
	require.Equal(capturedEntry{Outputs, Entry{0x7000, 1, 16}, 0}, captured[0])
	require.Equal(capturedEntry{Outputs, Entry{0x7000, 2, 8}, 24}, captured[1])
	require.Equal(capturedEntry{Inputs, Entry{0x6000, 1, 16}, 0}, captured[2])
	require.Equal(capturedEntry{Inputs, Entry{0x6010, 1, 8}, 16}, captured[3])
}

func TestCoEMapperCommTypeOffByOne(t *testing.T) {
	require := require.New(t)

	// SM2 reading back as mailbox-out marks the whole type array as shifted:
	// every later nonzero type gets corrected by one
	sim := ecattest.New()
	sim.AddSlave("buggy-drive").WithCoE().
		DefineSMTypes(ecat.SMCommMbxIn, ecat.SMCommMbxIn, ecat.SMCommMbxOut, ecat.SMCommOutputs).
		AssignOutputPDOs(2, ecattest.SimPDO{Index: 0x1600, Entries: []uint32{
			ecattest.PDOEntry(0x7000, 1, 16),
		}}).
		AssignInputPDOs(3, ecattest.SimPDO{Index: 0x1A00, Entries: []uint32{
			ecattest.PDOEntry(0x6000, 1, 8),
		}})

	m := NewCoEMapper(sim, 0, nil)
	sl := &ecat.Slave{Addr: 1, MbxProto: ecat.MbxProtoCoE}

	obits, err := m.Map(sl, Outputs)
	require.NoError(err)
	require.Equal(16, obits)
	require.Equal(ecat.SMCommOutputs, sl.SM[2].CommType)

	ibits, err := m.Map(sl, Inputs)
	require.NoError(err)
	require.Equal(8, ibits)
	require.Equal(ecat.SMCommInputs, sl.SM[3].CommType)
}

func TestCoEMapperClampsAssignCount(t *testing.T) {
	require := require.New(t)

	// the assign count object is two bytes wide but its list is addressed
	// through one-byte subindexes; a corrupt device reporting a count beyond
	// 255 must not make the walk revisit earlier subindexes
	sim := ecattest.New()
	sim.AddSlave("corrupt-drive").WithCoE().
		DefineSMTypes(ecat.SMCommMbxIn, ecat.SMCommMbxOut, ecat.SMCommOutputs).
		AssignOutputPDOs(2, ecattest.SimPDO{Index: 0x1600, Entries: []uint32{
			ecattest.PDOEntry(0x7000, 1, 16),
		}}).
		SetObjectU16(ecat.IdxPDOAssign+2, 0, 257)

	m := NewCoEMapper(sim, 0, nil)
	sl := &ecat.Slave{Addr: 1, MbxProto: ecat.MbxProtoCoE}

	obits, err := m.Map(sl, Outputs)
	require.NoError(err)
	require.Equal(16, obits)
}

func TestCoEMapperNoProcessDataManagers(t *testing.T) {
	require := require.New(t)

	// only the two mailbox managers are present
	sim := ecattest.New()
	sim.AddSlave("mailbox-only").WithCoE().
		DefineSMTypes(ecat.SMCommMbxIn, ecat.SMCommMbxOut)

	m := NewCoEMapper(sim, 0, nil)
	sl := &ecat.Slave{Addr: 1, MbxProto: ecat.MbxProtoCoE}

	obits, err := m.Map(sl, Outputs)
	require.NoError(err)
	require.Equal(0, obits)
}

func TestCoEMapperMissingCommTypeObject(t *testing.T) {
	require := require.New(t)

	sim := ecattest.New()
	sim.AddSlave("bare").WithCoE()

	m := NewCoEMapper(sim, 0, nil)
	sl := &ecat.Slave{Addr: 1, MbxProto: ecat.MbxProtoCoE}

	_, err := m.Map(sl, Outputs)
	require.Error(err)
}
