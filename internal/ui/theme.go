package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/csams/sterncast/internal/markdown"
)

// TokyoNight color palette
var (
	ColorBg          = tcell.NewRGBColor(0x1a, 0x1b, 0x26) // #1a1b26
	ColorBgHighlight = tcell.NewRGBColor(0x29, 0x2e, 0x42) // #292e42
	ColorFg          = tcell.NewRGBColor(0xc0, 0xca, 0xf5) // #c0caf5
	ColorFgDark      = tcell.NewRGBColor(0x56, 0x5f, 0x89) // #565f89

	ColorBlue    = tcell.NewRGBColor(0x7a, 0xa2, 0xf7) // #7aa2f7
	ColorCyan    = tcell.NewRGBColor(0x7d, 0xcf, 0xff) // #7dcfff
	ColorGreen   = tcell.NewRGBColor(0x9e, 0xce, 0x6a) // #9ece6a
	ColorMagenta = tcell.NewRGBColor(0xbb, 0x9a, 0xf7) // #bb9af7
	ColorRed     = tcell.NewRGBColor(0xf7, 0x76, 0x8e) // #f7768e
	ColorYellow  = tcell.NewRGBColor(0xe0, 0xaf, 0x68) // #e0af68

	ColorSelection = ColorBgHighlight
	ColorHeader    = ColorBlue
	ColorHighlight = ColorYellow // search matches
	ColorCurrent   = ColorGreen
	ColorPlayed    = ColorFgDark
	ColorError     = ColorRed
	ColorInfo      = ColorCyan
)

// styleFor maps a markdown style to a tcell style on top of base.
func styleFor(base tcell.Style, styleType markdown.StyleType) tcell.Style {
	switch styleType {
	case markdown.StyleBold:
		return base.Bold(true)
	case markdown.StyleItalic:
		return base.Italic(true)
	case markdown.StyleCode:
		return base.Foreground(ColorFgDark)
	case markdown.StyleLink:
		return base.Underline(true).Foreground(ColorCyan)
	case markdown.StyleHeader:
		return base.Bold(true).Foreground(ColorMagenta)
	case markdown.StyleQuote:
		return base.Italic(true).Foreground(ColorFgDark)
	default:
		return base
	}
}
