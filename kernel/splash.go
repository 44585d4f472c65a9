package kernel

import (
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"mazefi/bootinfo"
	"mazefi/uefi"
)

const (
	lineWidth   = 6
	lineSpacing = 1.5
	margin      = 16
)

// Splash draws the boot screen: the background, a circle in the middle of
// the screen and lines of text at the top left. The drawing is done in an
// RGBA backbuffer and flushed to the framebuffer once.
func Splash(fb *Framebuffer, scheme Scheme, lines ...string) {
	b := fb.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	dc := gg.NewContext(b.Dx(), b.Dy())

	dc.SetColor(scheme.Background)
	dc.Clear()

	dc.SetColor(scheme.Circle)
	dc.SetLineWidth(lineWidth)
	dc.DrawCircle(w/2, h/2, h/4)
	dc.Stroke()

	face := basicfont.Face7x13
	dc.SetFontFace(face)

	y := float64(margin + face.Ascent)

	for i, line := range lines {
		if i == 0 {
			dc.SetColor(scheme.Text)
		} else {
			dc.SetColor(scheme.Dimmed)
		}

		dc.DrawString(line, margin, y)
		y += float64(face.Height) * lineSpacing
	}

	if im, ok := dc.Image().(*image.RGBA); ok {
		fb.Flush(im)
	}
}

// Banner is the first splash line.
const Banner = "mazefi kernel"

// Main is the kernel body: it draws the splash and returns. mem is all of
// physical memory, identity mapped.
func Main(mem uefi.Memory, info bootinfo.FrameBuffer) {
	fb, err := NewFramebuffer(mem, info)

	if err != nil {
		return
	}

	Splash(fb, DefaultScheme, Banner, info.String())
}
