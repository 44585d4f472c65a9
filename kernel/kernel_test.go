package kernel

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mazefi/bootinfo"
	"mazefi/uefi"
	"mazefi/uefi/sim"
)

func display(t *testing.T, format uefi.PixelFormat) (*sim.Machine, bootinfo.FrameBuffer) {
	t.Helper()

	cfg := sim.DefaultConfig()
	cfg.Display = sim.Display{Width: 64, Height: 48, Stride: 80, Format: format, Base: 0x80000000}

	m, err := sim.New(cfg)
	require.NoError(t, err)

	mode, ok := m.GraphicsMode()
	require.True(t, ok)

	return m, bootinfo.FromMode(mode)
}

func TestFramebufferLayout(t *testing.T) {
	for _, tt := range []struct {
		format uefi.PixelFormat
		want   []byte
	}{
		{uefi.PixelRedGreenBlueReserved8BitPerColor, []byte{0x10, 0x20, 0x30, 0x00}},
		{uefi.PixelBlueGreenRedReserved8BitPerColor, []byte{0x30, 0x20, 0x10, 0x00}},
	} {
		t.Run(tt.format.String(), func(t *testing.T) {
			m, info := display(t, tt.format)

			fb, err := NewFramebuffer(m, info)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 64, 48), fb.Bounds())

			fb.Set(3, 2, color.RGBA{0x10, 0x20, 0x30, 0xff})

			// rows are a full stride apart
			off := 2*80*4 + 3*4
			assert.Equal(t, tt.want, m.FrameBuffer()[off:off+4])
			assert.Equal(t, color.RGBA{0x10, 0x20, 0x30, 0xff}, fb.At(3, 2))

			// outside the visible area, inside the stride
			fb.Set(70, 0, color.White)
			assert.Equal(t, []byte{0, 0, 0, 0}, m.FrameBuffer()[70*4:70*4+4])
			assert.Equal(t, color.RGBA{}, fb.At(70, 0))
		})
	}
}

func TestFramebufferErrors(t *testing.T) {
	m, info := display(t, uefi.PixelBitMask)

	_, err := NewFramebuffer(m, info)
	assert.Error(t, err)

	info.PixelFormat = int32(uefi.PixelRedGreenBlueReserved8BitPerColor)
	info.PixelsPerScanLine = 10
	_, err = NewFramebuffer(m, info)
	assert.Error(t, err)

	info.PixelsPerScanLine = 80
	info.Base = 0x200000
	_, err = NewFramebuffer(m, info)
	assert.Error(t, err)
}

func TestFlushSnapshot(t *testing.T) {
	m, info := display(t, uefi.PixelBlueGreenRedReserved8BitPerColor)

	fb, err := NewFramebuffer(m, info)
	require.NoError(t, err)

	fb.Fill(MidnightBlue)
	assert.Equal(t, MidnightBlue, fb.At(63, 47))

	im := image.NewRGBA(image.Rect(0, 0, 100, 10))
	im.Set(5, 5, BrightRed)
	fb.Flush(im)

	assert.Equal(t, BrightRed, fb.At(5, 5))
	assert.Equal(t, color.RGBA{A: 0xff}, fb.At(0, 0), "alpha dropped")
	assert.Equal(t, MidnightBlue, fb.At(5, 20))

	snap := fb.Snapshot()
	assert.Equal(t, fb.Bounds(), snap.Bounds())
	assert.Equal(t, BrightRed, snap.RGBAAt(5, 5))
	assert.Equal(t, MidnightBlue, snap.RGBAAt(5, 20))
}

func TestSplash(t *testing.T) {
	m, info := display(t, uefi.PixelRedGreenBlueReserved8BitPerColor)

	Main(m, info)

	fb, err := NewFramebuffer(m, info)
	require.NoError(t, err)

	snap := fb.Snapshot()
	assert.Equal(t, DefaultScheme.Background, snap.RGBAAt(63, 0))

	// the circle crosses the horizontal center line at w/2 + h/4
	assert.Equal(t, DefaultScheme.Circle, snap.RGBAAt(32+12, 24))

	var text bool

	for y := 0; y < 30 && !text; y++ {
		for x := 0; x < 64; x++ {
			if snap.RGBAAt(x, y) == DefaultScheme.Text {
				text = true
				break
			}
		}
	}

	assert.True(t, text, "banner drawn")
}

func TestMainBadFramebuffer(t *testing.T) {
	m, info := display(t, uefi.PixelBltOnly)

	assert.NotPanics(t, func() { Main(m, info) })
	assert.Equal(t, make([]byte, len(m.FrameBuffer())), m.FrameBuffer())
}
