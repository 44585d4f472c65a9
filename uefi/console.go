package uefi

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Console is an io.Writer over EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.
//
// Every UTF-16 code unit is sent in its own OutputString call and line
// feeds are expanded to CR LF, as firmware consoles do not translate them.
type Console struct {
	Out SimpleTextOutput
}

// NewConsole returns a Console writing to out.
func NewConsole(out SimpleTextOutput) *Console {
	return &Console{Out: out}
}

func (c *Console) putc(u uint16) error {
	return c.Out.OutputString([]uint16{u, 0})
}

// Write implements io.Writer. Invalid UTF-8 is printed as U+FFFD. The
// returned count covers the input bytes fully sent before a failure.
func (c *Console) Write(p []byte) (n int, err error) {
	for n < len(p) {
		r, size := utf8.DecodeRune(p[n:])

		if r == '\n' {
			if err = c.putc('\r'); err != nil {
				return
			}
		}

		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			if err = c.putc(uint16(r1)); err != nil {
				return
			}

			r = r2
		}

		if err = c.putc(uint16(r)); err != nil {
			return
		}

		n += size
	}

	return
}

// WriteString writes s, see Write.
func (c *Console) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// ClearScreen clears the console.
func (c *Console) ClearScreen() error {
	return c.Out.ClearScreen()
}
