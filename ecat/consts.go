package ecat

// Structural bounds of a slave descriptor and of the shared process image.
const (
	// MaxSM is the number of sync manager channels per slave.
	MaxSM = 8
	// MaxFMMU is the number of FMMU entries per slave.
	MaxFMMU = 4
	// MaxEEPDO bounds the number of PDO records processed from descriptor
	// memory; the walk terminates after MaxEEPDO-1 records.
	MaxEEPDO = 0x200
	// MaxIOMapSize is the fixed capacity of the shared process image in bytes.
	MaxIOMapSize = 4096
)

// Well-known object dictionary indexes used by dictionary-driven PDO mapping.
const (
	// IdxSMCommType is the sync manager communication type object; subindex
	// n+1 holds the communication type of sync manager n.
	IdxSMCommType uint16 = 0x1C00
	// IdxPDOAssign is the PDO assign object for sync manager 0; sync manager
	// n is assigned at IdxPDOAssign+n.
	IdxPDOAssign uint16 = 0x1C10
)

// Sync manager communication types.
const (
	SMCommUnused  uint8 = 0
	SMCommMbxIn   uint8 = 1
	SMCommMbxOut  uint8 = 2
	SMCommOutputs uint8 = 3
	SMCommInputs  uint8 = 4
)

// Descriptor memory (SII) category ids.
const (
	CatStrings uint16 = 10
	CatGeneral uint16 = 30
	CatFMMU    uint16 = 40
	CatSyncM   uint16 = 41
	CatTxPDO   uint16 = 50
	CatRxPDO   uint16 = 51
)

// Mailbox protocol capability bits advertised by a slave.
const (
	MbxProtoAoE uint16 = 0x0001
	MbxProtoEoE uint16 = 0x0002
	MbxProtoCoE uint16 = 0x0004
	MbxProtoFoE uint16 = 0x0008
	MbxProtoSoE uint16 = 0x0010
	MbxProtoVoE uint16 = 0x0020
)
