//go:build tamago && amd64

package boot

import (
	"mazefi/bootinfo"
)

// defined in cpu_amd64.s
func jump(entry, base, ppsl, hres, vres, format uint64)
func cli()
func hlt()

// Processor is the CPU the loader runs on.
type Processor struct{}

func (Processor) Jump(entry uint64, fb bootinfo.FrameBuffer) {
	jump(entry,
		fb.Base,
		uint64(fb.PixelsPerScanLine),
		uint64(fb.HorizontalResolution),
		uint64(fb.VerticalResolution),
		uint64(uint32(fb.PixelFormat)),
	)
}

// Halt disables interrupts and halts.
func (Processor) Halt() {
	cli()
	hlt()
}
