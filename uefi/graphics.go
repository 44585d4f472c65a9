package uefi

import "fmt"

// PixelFormat is EFI_GRAPHICS_PIXEL_FORMAT.
type PixelFormat int32

const (
	PixelRedGreenBlueReserved8BitPerColor PixelFormat = iota
	PixelBlueGreenRedReserved8BitPerColor
	PixelBitMask
	PixelBltOnly
	PixelFormatMax
)

func (f PixelFormat) String() string {
	switch f {
	case PixelRedGreenBlueReserved8BitPerColor:
		return "PixelRGB8bit"
	case PixelBlueGreenRedReserved8BitPerColor:
		return "PixelBGR8bit"
	case PixelBitMask:
		return "PixelBitMask"
	case PixelBltOnly:
		return "PixelBltOnly"
	case PixelFormatMax:
		return "PixelFormatMax"
	}

	return fmt.Sprintf("PixelFormat(%d)", int32(f))
}

// GraphicsMode is the flattened EFI_GRAPHICS_OUTPUT_PROTOCOL_MODE of the
// current mode together with its mode information.
type GraphicsMode struct {
	MaxMode              uint32
	Mode                 uint32
	HorizontalResolution uint32
	VerticalResolution   uint32
	PixelFormat          PixelFormat
	PixelsPerScanLine    uint32
	FrameBufferBase      uint64
	FrameBufferSize      uint64
}
