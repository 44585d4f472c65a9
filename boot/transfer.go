package boot

import (
	"mazefi/bootinfo"
)

// CPU performs the final control transfer.
type CPU interface {
	// Jump calls the kernel entry point with the System V AMD64 calling
	// convention:
	//
	//	entry(fb.Base, fb.PixelsPerScanLine, fb.HorizontalResolution,
	//		fb.VerticalResolution, fb.PixelFormat)
	//
	// It returns only if the kernel does.
	Jump(entry uint64, fb bootinfo.FrameBuffer)
	// Halt stops the processor, it does not return on hardware.
	Halt()
}

// Transfer enters the kernel and never returns. A kernel returning to the
// loader halts the processor: boot services are gone and there is nothing
// left to return to.
func Transfer(cpu CPU, entry uint64, fb bootinfo.FrameBuffer) {
	cpu.Jump(entry, fb)

	halt(cpu)
}

func halt(cpu CPU) {
	for {
		cpu.Halt()
	}
}
