package kernel

import "image/color"

// Splash palette, Dracula-ish.
var (
	MidnightBlue = color.RGBA{0x19, 0x1b, 0x70, 0xff}
	BrightGreen  = color.RGBA{0xb8, 0xf1, 0x71, 0xff}
	BrightRed    = color.RGBA{0xff, 0x78, 0x82, 0xff}
	BrightBlue   = color.RGBA{0x80, 0xba, 0xff, 0xff}
	White        = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
)

// Scheme is the set of colors the splash screen uses.
type Scheme struct {
	Background color.RGBA
	Circle     color.RGBA
	Text       color.RGBA
	Dimmed     color.RGBA
}

// DefaultScheme is midnight blue with a red circle and green text.
var DefaultScheme = Scheme{
	Background: MidnightBlue,
	Circle:     BrightRed,
	Text:       BrightGreen,
	Dimmed:     White,
}
