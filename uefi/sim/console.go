package sim

import (
	"strings"
	"unicode/utf16"

	"mazefi/uefi"
)

// console records EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL output.
type console struct {
	m     *Machine
	units []uint16
	calls int
	fail  bool
}

func (c *console) OutputString(s []uint16) error {
	if err := c.m.protocolCall("OutputString"); err != nil {
		return err
	}

	c.calls++

	if c.fail {
		return uefi.DeviceError
	}

	for _, u := range s {
		if u == 0 {
			break
		}

		c.units = append(c.units, u)
	}

	return nil
}

func (c *console) ClearScreen() error {
	if err := c.m.protocolCall("ClearScreen"); err != nil {
		return err
	}

	c.units = c.units[:0]

	return nil
}

// String returns the output with CR LF folded to LF.
func (c *console) String() string {
	return strings.ReplaceAll(string(utf16.Decode(c.units)), "\r\n", "\n")
}

// FailConsole makes every further console write fail with a device error.
func (m *Machine) FailConsole(fail bool) {
	m.console.fail = fail
}

// ConsoleCalls returns the number of OutputString calls.
func (m *Machine) ConsoleCalls() int {
	return m.console.calls
}
