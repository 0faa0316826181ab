package ui

import (
	"fmt"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/csams/sterncast/internal/markdown"
)

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	pos := 0
	for _, r := range text {
		s.SetContent(x+pos, y, r, nil, style)
		pos++
	}
}

// drawColumn draws text clipped or padded to exactly width cells. Runes at
// highlight positions use the highlight color.
func drawColumn(s tcell.Screen, x, y, width int, style tcell.Style, text string, highlights []int) {
	if width <= 0 {
		return
	}
	runes := []rune(text)
	if len(runes) > width {
		if width > 1 {
			runes = append(runes[:width-1], '…')
		} else {
			runes = runes[:width]
		}
	}

	marked := make(map[int]bool, len(highlights))
	for _, p := range highlights {
		marked[p] = true
	}
	highlightStyle := style.Foreground(ColorHighlight).Bold(true)

	for i := 0; i < width; i++ {
		r := ' '
		charStyle := style
		if i < len(runes) {
			r = runes[i]
			if marked[i] && r != '…' {
				charStyle = highlightStyle
			}
		}
		s.SetContent(x+i, y, r, nil, charStyle)
	}
}

func fillRow(s tcell.Screen, y, width int, style tcell.Style) {
	for x := 0; x < width; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

// segment is a half-open rune range of a rendered text.
type segment struct {
	start, end int
}

// wrapRunes breaks text into lines no wider than width, preferring spaces.
// Newlines always break. Offsets refer to the rune slice.
func wrapRunes(text []rune, width int) []segment {
	if width <= 0 {
		return nil
	}
	var lines []segment
	lineStart := 0
	for lineStart <= len(text) {
		end := lineStart
		for end < len(text) && text[end] != '\n' {
			end++
		}
		lines = append(lines, wrapLine(text, lineStart, end, width)...)
		lineStart = end + 1
	}
	return lines
}

func wrapLine(text []rune, start, end, width int) []segment {
	if end-start <= width {
		return []segment{{start, end}}
	}
	var out []segment
	for end-start > width {
		brk := -1
		for i := start + width; i > start; i-- {
			if unicode.IsSpace(text[i]) {
				brk = i
				break
			}
		}
		if brk == -1 {
			out = append(out, segment{start, start + width})
			start += width
			continue
		}
		out = append(out, segment{start, brk})
		start = brk + 1
	}
	return append(out, segment{start, end})
}

// drawStyled renders a converted description into a box, skipping the first
// scroll lines. It returns the total number of wrapped lines.
func drawStyled(s tcell.Screen, x, y, width, height, scroll int, base tcell.Style, res markdown.Result) int {
	text := []rune(res.Text)
	lines := wrapRunes(text, width)

	styleAt := func(pos int) tcell.Style {
		st := base
		for _, r := range res.Styles {
			if pos >= r.Start && pos < r.End {
				st = styleFor(st, r.Type)
			}
		}
		return st
	}

	for row := 0; row < height && row+scroll < len(lines); row++ {
		seg := lines[row+scroll]
		for i := seg.start; i < seg.end; i++ {
			s.SetContent(x+i-seg.start, y+row, text[i], nil, styleAt(i))
		}
	}
	return len(lines)
}

// formatSeconds renders H:MM:SS or M:SS.
func formatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
