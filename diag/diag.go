// Package diag writes loader log entries to the firmware text console.
package diag

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/apex/log"

	"mazefi/uefi"
)

// Handler is an apex/log handler printing one line per entry:
//
//	INFO  kernel loaded entry=0x100000 segments=2
//
// Fields are sorted by name.
type Handler struct {
	mu       sync.Mutex
	w        io.Writer
	detached bool
}

// New returns a handler writing to the firmware console.
func New(out uefi.SimpleTextOutput) *Handler {
	return NewWriter(uefi.NewConsole(out))
}

// NewWriter returns a handler writing to w.
func NewWriter(w io.Writer) *Handler {
	return &Handler{w: w}
}

// Detach drops all further output. Once boot services are exited the
// console must not be called.
func (h *Handler) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detached = true
}

// Detached reports whether Detach was called.
func (h *Handler) Detached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.detached
}

// Format renders e without the trailing newline.
func Format(e *log.Entry) string {
	var b bytes.Buffer

	fmt.Fprintf(&b, "%-5s %s", strings.ToUpper(e.Level.String()), e.Message)

	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}

	return b.String()
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.detached {
		return nil
	}

	_, err := io.WriteString(h.w, Format(e)+"\n")

	return err
}
