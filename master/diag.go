package master

import (
	"fmt"
	"io"

	"github.com/openecat/go-ecat/ecat"
)

// ListSlaves writes a human readable listing of every discovered slave to w:
// address, name, mapped output/input sizes, confirmed state, propagation
// delay and distributed clock capability. The current table is rendered even
// when the preceding state read failed, to aid field debugging.
func (s *Session) ListSlaves(w io.Writer) {
	s.refreshStates()

	for _, sl := range s.registry.Views() {
		fmt.Fprintf(w, "Slave:%2d Name:%-20s Out: %3dbytes In: %3dbytes State: %-12s Delay: %8d[ns] Has DC: %t\n",
			sl.Addr, sl.Name, sl.Outputs.Bytes(), sl.Inputs.Bytes(),
			sl.State, sl.PropDelay, sl.HasDC)
	}
}

// ShowStates writes the confirmed state and last AL status of every slave to
// w, including the status code translated to text.
func (s *Session) ShowStates(w io.Writer) {
	s.refreshStates()

	for _, sl := range s.registry.Views() {
		fmt.Fprintf(w, "Slave %2d, State=%-12s StatusCode=0x%04x : %s\n",
			sl.Addr, sl.State, sl.ALStatusCode, ecat.ALStatusText(sl.ALStatusCode))
	}
}
