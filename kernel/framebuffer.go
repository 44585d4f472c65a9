// Package kernel is the second stage: it draws to the framebuffer handed
// over by the loader. There are no firmware services left at this point,
// only memory.
package kernel

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"mazefi/bootinfo"
	"mazefi/uefi"
)

// Framebuffer is a draw.Image over linear framebuffer memory, 4 bytes per
// pixel in RGB or BGR order. Rows are PixelsPerScanLine pixels apart.
type Framebuffer struct {
	info  bootinfo.FrameBuffer
	pix   []byte
	pitch int
	bgr   bool
}

// NewFramebuffer maps the visible rows of fb.
func NewFramebuffer(mem uefi.Memory, fb bootinfo.FrameBuffer) (*Framebuffer, error) {
	var bgr bool

	switch fb.Format() {
	case uefi.PixelRedGreenBlueReserved8BitPerColor:
	case uefi.PixelBlueGreenRedReserved8BitPerColor:
		bgr = true
	default:
		return nil, errors.Errorf("unsupported pixel format %v", fb.Format())
	}

	if fb.HorizontalResolution == 0 || fb.VerticalResolution == 0 || fb.PixelsPerScanLine < fb.HorizontalResolution {
		return nil, errors.Errorf("bad framebuffer geometry %v", fb)
	}

	pix, err := mem.Slice(fb.Base, fb.Size())

	if err != nil {
		return nil, errors.Wrapf(err, "map framebuffer %v", fb)
	}

	return &Framebuffer{info: fb, pix: pix, pitch: int(fb.Pitch()), bgr: bgr}, nil
}

// Info returns the handed-off parameters.
func (f *Framebuffer) Info() bootinfo.FrameBuffer {
	return f.info
}

func (f *Framebuffer) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(f.info.HorizontalResolution), int(f.info.VerticalResolution))
}

func (f *Framebuffer) offset(x, y int) (int, bool) {
	if !(image.Point{x, y}).In(f.Bounds()) {
		return 0, false
	}

	return y*f.pitch + x*bootinfo.BytesPerPixel, true
}

func (f *Framebuffer) At(x, y int) color.Color {
	i, ok := f.offset(x, y)

	if !ok {
		return color.RGBA{}
	}

	p := f.pix[i : i+3 : i+3]

	if f.bgr {
		return color.RGBA{R: p[2], G: p[1], B: p[0], A: 0xff}
	}

	return color.RGBA{R: p[0], G: p[1], B: p[2], A: 0xff}
}

func (f *Framebuffer) put(i int, r, g, b uint8) {
	p := f.pix[i : i+4 : i+4]

	if f.bgr {
		r, b = b, r
	}

	p[0], p[1], p[2], p[3] = r, g, b, 0
}

func (f *Framebuffer) Set(x, y int, c color.Color) {
	i, ok := f.offset(x, y)

	if !ok {
		return
	}

	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	f.put(i, rgba.R, rgba.G, rgba.B)
}

// Fill paints every visible pixel with c.
func (f *Framebuffer) Fill(c color.Color) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	b := f.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			f.put(y*f.pitch+x*bootinfo.BytesPerPixel, rgba.R, rgba.G, rgba.B)
		}
	}
}

// Snapshot copies the visible pixels into a new RGBA image.
func (f *Framebuffer) Snapshot() *image.RGBA {
	im := image.NewRGBA(f.Bounds())
	f.copyTo(im)

	return im
}

func (f *Framebuffer) copyTo(im *image.RGBA) {
	b := f.Bounds().Intersect(im.Bounds())

	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := f.pix[y*f.pitch:]
		dst := im.Pix[im.PixOffset(0, y):]

		for x := b.Min.X; x < b.Max.X; x++ {
			s := src[x*4 : x*4+4]
			d := dst[x*4 : x*4+4]

			if f.bgr {
				d[0], d[1], d[2] = s[2], s[1], s[0]
			} else {
				d[0], d[1], d[2] = s[0], s[1], s[2]
			}

			d[3] = 0xff
		}
	}
}

// Flush copies im, clamped to the visible area, into the framebuffer.
// Alpha is dropped.
func (f *Framebuffer) Flush(im *image.RGBA) {
	b := f.Bounds().Intersect(im.Bounds())

	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := im.Pix[im.PixOffset(0, y):]

		for x := b.Min.X; x < b.Max.X; x++ {
			s := src[x*4 : x*4+4]
			f.put(y*f.pitch+x*bootinfo.BytesPerPixel, s[0], s[1], s[2])
		}
	}
}
