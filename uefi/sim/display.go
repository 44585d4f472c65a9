package sim

import (
	"fmt"

	"mazefi/bootinfo"
	"mazefi/uefi"
)

// display is EFI_GRAPHICS_OUTPUT_PROTOCOL with a linear framebuffer in
// memory mapped I/O space.
type display struct {
	m    *Machine
	mode uefi.GraphicsMode
}

func (m *Machine) addDisplay(d Display) error {
	if d.Stride == 0 {
		d.Stride = d.Width
	}

	if d.Stride < d.Width {
		return fmt.Errorf("stride %d below width %d", d.Stride, d.Width)
	}

	if d.Base == 0 || d.Base%uefi.PageSize != 0 {
		return fmt.Errorf("framebuffer base %#x is not page aligned", d.Base)
	}

	size := uint64(d.Stride) * uint64(d.Height) * bootinfo.BytesPerPixel

	m.display = &display{
		m: m,
		mode: uefi.GraphicsMode{
			MaxMode:              1,
			Mode:                 0,
			HorizontalResolution: d.Width,
			VerticalResolution:   d.Height,
			PixelFormat:          d.Format,
			PixelsPerScanLine:    d.Stride,
			FrameBufferBase:      d.Base,
			FrameBufferSize:      size,
		},
	}

	pages := uefi.Pages(size)

	m.descriptors = append(m.descriptors, uefi.MemoryDescriptor{
		Type:          uefi.MemoryMappedIO,
		PhysicalStart: d.Base,
		NumberOfPages: pages,
		Attribute:     uefi.MemoryUC | uefi.MemoryWC | uefi.MemoryRuntime,
	})

	m.backing[d.Base] = make([]byte, pages*uefi.PageSize)
	m.install(DisplayHandle, uefi.GraphicsOutputProtocolGUID, m.display)

	return nil
}

func (d *display) Mode() (uefi.GraphicsMode, error) {
	if err := d.m.protocolCall("GraphicsOutput.Mode"); err != nil {
		return uefi.GraphicsMode{}, err
	}

	return d.mode, nil
}

// GraphicsMode returns the display mode, ok is false without a display.
func (m *Machine) GraphicsMode() (mode uefi.GraphicsMode, ok bool) {
	if m.display == nil {
		return
	}

	return m.display.mode, true
}

// FrameBuffer returns the framebuffer memory.
func (m *Machine) FrameBuffer() []byte {
	if m.display == nil {
		return nil
	}

	return m.backing[m.display.mode.FrameBufferBase][:m.display.mode.FrameBufferSize]
}
