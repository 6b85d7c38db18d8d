package ecat

import "fmt"

// alStatusTexts maps AL status codes to human readable descriptions. The
// table covers the codes slaves commonly report during state transitions and
// cyclic operation.
var alStatusTexts = map[uint16]string{
	0x0000: "no error",
	0x0001: "unspecified error",
	0x0002: "no memory",
	0x0011: "invalid requested state change",
	0x0012: "unknown requested state",
	0x0013: "bootstrap not supported",
	0x0014: "no valid firmware",
	0x0015: "invalid mailbox configuration",
	0x0016: "invalid mailbox configuration",
	0x0017: "invalid sync manager configuration",
	0x0018: "no valid inputs available",
	0x0019: "no valid outputs",
	0x001A: "synchronization error",
	0x001B: "sync manager watchdog",
	0x001C: "invalid sync manager types",
	0x001D: "invalid output configuration",
	0x001E: "invalid input configuration",
	0x001F: "invalid watchdog configuration",
	0x0020: "slave needs cold start",
	0x0021: "slave needs INIT",
	0x0022: "slave needs PRE_OP",
	0x0023: "slave needs SAFE_OP",
	0x0024: "invalid input mapping",
	0x0025: "invalid output mapping",
	0x0026: "inconsistent settings",
	0x0027: "freerun not supported",
	0x0028: "synchronization not supported",
	0x0029: "freerun needs 3 buffer mode",
	0x002D: "invalid output FMMU configuration",
	0x002E: "invalid input FMMU configuration",
	0x0030: "invalid DC sync configuration",
	0x0032: "PLL error",
	0x0033: "DC sync IO error",
	0x0034: "DC sync timeout error",
	0x0042: "MBX_EOE",
	0x0043: "MBX_COE",
	0x0044: "MBX_FOE",
	0x0050: "EEPROM no access",
	0x0051: "EEPROM error",
}

// ALStatusText translates an AL status code into a human readable string.
func ALStatusText(code uint16) string {
	if text, ok := alStatusTexts[code]; ok {
		return text
	}

	return fmt.Sprintf("unknown AL status code 0x%04x", code)
}
