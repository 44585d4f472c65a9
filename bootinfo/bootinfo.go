// Package bootinfo defines the parameters the loader hands to the kernel
// entry point.
package bootinfo

import (
	"fmt"

	"mazefi/uefi"
)

// BytesPerPixel of every format the kernel draws to (RGB and BGR 8 bit
// per color with a reserved byte).
const BytesPerPixel = 4

// FrameBuffer is passed to the kernel entry as
// entry(Base, PixelsPerScanLine, HorizontalResolution, VerticalResolution, PixelFormat).
type FrameBuffer struct {
	Base                 uint64 // Physical address of pixel (0,0)
	PixelsPerScanLine    uint32 // Stride in pixels, may exceed the width
	HorizontalResolution uint32 // Width in pixels
	VerticalResolution   uint32 // Height in pixels
	PixelFormat          int32  // EFI_GRAPHICS_PIXEL_FORMAT
}

// FromMode copies the current graphics mode unmodified.
func FromMode(mode uefi.GraphicsMode) FrameBuffer {
	return FrameBuffer{
		Base:                 mode.FrameBufferBase,
		PixelsPerScanLine:    mode.PixelsPerScanLine,
		HorizontalResolution: mode.HorizontalResolution,
		VerticalResolution:   mode.VerticalResolution,
		PixelFormat:          int32(mode.PixelFormat),
	}
}

// Format returns the pixel format.
func (fb FrameBuffer) Format() uefi.PixelFormat {
	return uefi.PixelFormat(fb.PixelFormat)
}

// Pitch returns the bytes per scan line.
func (fb FrameBuffer) Pitch() uint64 {
	return uint64(fb.PixelsPerScanLine) * BytesPerPixel
}

// Size returns the bytes spanned by the visible rows.
func (fb FrameBuffer) Size() uint64 {
	return fb.Pitch() * uint64(fb.VerticalResolution)
}

func (fb FrameBuffer) String() string {
	return fmt.Sprintf("%dx%d stride %d %v at %#x",
		fb.HorizontalResolution, fb.VerticalResolution, fb.PixelsPerScanLine, fb.Format(), fb.Base)
}
