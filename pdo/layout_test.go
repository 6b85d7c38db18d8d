package pdo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openecat/go-ecat/ecat"
)

func newLayoutRegistry(sizes ...[2]int) *ecat.Registry {
	reg := ecat.NewRegistry()

	slaves := make([]*ecat.Slave, 0, len(sizes))
	for i, sz := range sizes {
		slaves = append(slaves, &ecat.Slave{
			Addr:  uint16(i + 1),
			Obits: sz[0],
			Ibits: sz[1],
		})
	}
	reg.Reset(slaves)

	return reg
}

func TestLayoutByteAligned(t *testing.T) {
	require := require.New(t)
	reg := newLayoutRegistry([2]int{4, 6}, [2]int{12, 0})

	total, err := Layout(reg, 64, true)
	require.NoError(err)
	require.Equal(4, total)

	sl1, _ := reg.View(1)
	sl2, _ := reg.View(2)

	// outputs first in address order, then inputs, every region starting on
	// a fresh byte
	require.Equal(ecat.IOView{Offset: 0, StartBit: 0, Bits: 4}, sl1.Outputs)
	require.Equal(ecat.IOView{Offset: 1, StartBit: 0, Bits: 12}, sl2.Outputs)
	require.Equal(ecat.IOView{Offset: 3, StartBit: 0, Bits: 6}, sl1.Inputs)
	require.Equal(ecat.IOView{Offset: 4, StartBit: 0, Bits: 0}, sl2.Inputs)
}

func TestLayoutBitPacked(t *testing.T) {
	require := require.New(t)
	reg := newLayoutRegistry([2]int{4, 6}, [2]int{12, 0})

	total, err := Layout(reg, 64, false)
	require.NoError(err)
	require.Equal(3, total)

	sl1, _ := reg.View(1)
	sl2, _ := reg.View(2)

	require.Equal(ecat.IOView{Offset: 0, StartBit: 0, Bits: 4}, sl1.Outputs)
	require.Equal(ecat.IOView{Offset: 0, StartBit: 4, Bits: 12}, sl2.Outputs)
	require.Equal(ecat.IOView{Offset: 2, StartBit: 0, Bits: 6}, sl1.Inputs)
	require.Equal(ecat.IOView{Offset: 2, StartBit: 6, Bits: 0}, sl2.Inputs)
}

func TestLayoutIdempotent(t *testing.T) {
	require := require.New(t)
	reg := newLayoutRegistry([2]int{16, 8}, [2]int{8, 32})

	total1, err := Layout(reg, 64, true)
	require.NoError(err)
	first := reg.Views()

	total2, err := Layout(reg, 64, true)
	require.NoError(err)

	require.Equal(total1, total2)
	require.Equal(first, reg.Views())
}

func TestLayoutOverflow(t *testing.T) {
	require := require.New(t)
	reg := newLayoutRegistry([2]int{64, 64})

	_, err := Layout(reg, 8, true)
	require.ErrorIs(err, ecat.ErrMapOverflow)
}
