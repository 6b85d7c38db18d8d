package pdo

import (
	"github.com/openecat/go-ecat/ecat"
)

// Layout computes byte/bit offsets for every slave's output and input regions
// into one contiguous shared buffer of the given byte capacity. Output
// regions come first in address order, input regions follow.
//
// With byteAlign set, every region is padded so it starts on a byte boundary,
// trading a few wasted bits for simpler downstream offset arithmetic.
// Without it, regions are packed bit-tight.
//
// Layout is a pure function of the registered bit sizes: re-invocation with
// an identical slave set and alignment mode yields identical offsets and
// total. It returns ErrMapOverflow when the required size exceeds capacity,
// leaving no region silently truncated.
func Layout(reg *ecat.Registry, capacity int, byteAlign bool) (int, error) {
	bit := 0

	reg.Each(func(sl *ecat.Slave) {
		if byteAlign {
			bit = alignByte(bit)
		}
		sl.Outputs = ecat.IOView{
			Offset:   bit / 8,
			StartBit: uint8(bit % 8),
			Bits:     sl.Obits,
		}
		bit += sl.Obits
	})

	reg.Each(func(sl *ecat.Slave) {
		if byteAlign {
			bit = alignByte(bit)
		}
		sl.Inputs = ecat.IOView{
			Offset:   bit / 8,
			StartBit: uint8(bit % 8),
			Bits:     sl.Ibits,
		}
		bit += sl.Ibits
	})

	total := (bit + 7) / 8
	if total > capacity {
		return 0, ecat.ErrMapOverflow
	}

	return total, nil
}

func alignByte(bit int) int {
	return (bit + 7) &^ 7
}
