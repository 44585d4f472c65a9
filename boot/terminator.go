package boot

import (
	"github.com/pkg/errors"

	"mazefi/memmap"
	"mazefi/uefi"
)

// State of the firmware boot services.
type State int

const (
	// Active boot services are usable.
	Active State = iota
	// Terminated boot services are gone for good.
	Terminated
)

func (s State) String() string {
	if s == Terminated {
		return "terminated"
	}

	return "active"
}

// Terminator exits boot services with the key of a memory map snapshot.
//
// A rejected exit, usually a key invalidated by an allocation after the
// snapshot, is retried exactly once after refreshing the snapshot. Nothing
// but GetMemoryMap runs between the two ExitBootServices calls.
type Terminator struct {
	bs    uefi.BootServices
	image uefi.Handle
	snap  *memmap.Snapshot

	state    State
	attempts int
	stale    error
	err      error
}

// NewTerminator returns an Active terminator for image.
func NewTerminator(bs uefi.BootServices, image uefi.Handle, snap *memmap.Snapshot) *Terminator {
	return &Terminator{bs: bs, image: image, snap: snap}
}

// State returns the current state.
func (t *Terminator) State() State {
	return t.state
}

// Attempts returns the number of ExitBootServices calls made.
func (t *Terminator) Attempts() int {
	return t.attempts
}

// Snapshot returns the memory map the last exit attempt used.
func (t *Terminator) Snapshot() *memmap.Snapshot {
	return t.snap
}

// Stale returns the rejection of the first exit attempt, if any. Every
// rejection is treated as a stale map key whatever the status.
func (t *Terminator) Stale() error {
	return t.stale
}

func (t *Terminator) exit() error {
	t.attempts++
	return t.bs.ExitBootServices(t.image, t.snap.Key)
}

// Terminate exits boot services. It can be called once, later calls fail
// without reaching the firmware.
func (t *Terminator) Terminate() error {
	switch {
	case t.state == Terminated:
		return errors.New("boot services already exited")
	case t.err != nil:
		return errors.Wrap(t.err, "boot services exit already failed")
	}

	t.err = t.terminate()

	return t.err
}

func (t *Terminator) terminate() error {
	err := t.exit()

	if err == nil {
		t.state = Terminated
		return nil
	}

	t.stale = uefi.Fail(uefi.ErrTerminationStale, "exit boot services", err)

	if err = t.snap.Refresh(t.bs); err != nil {
		return uefi.Fail(uefi.ErrTerminationFailed, "refresh memory map after rejected exit", err)
	}

	if err = t.exit(); err != nil {
		return uefi.Fail(uefi.ErrTerminationFailed, "exit boot services retry", err)
	}

	t.state = Terminated

	return nil
}
