package ui

import (
	"github.com/gdamore/tcell/v2"
)

var helpLines = []string{
	"",
	"Navigation:",
	"  j / k, Up/Down   Move down/up",
	"  Ctrl+F / Ctrl+B  Page down/up",
	"  g / G            Go to top/bottom",
	"  J / K            Scroll the description",
	"",
	"Episodes:",
	"  Enter            Select episode",
	"  p                Toggle played",
	"  d                Download episode",
	"  x                Delete downloaded file",
	"",
	"Feed:",
	"  r                Refresh from the network",
	"  /                Filter episodes (fuzzy)",
	"  Esc              Clear filter / close dialogs",
	"",
	"  ?                Show this help",
	"  q                Quit",
	"",
	"Press Esc or ? to close",
}

type HelpDialog struct {
	visible      bool
	scrollOffset int
	visibleLines int
}

func NewHelpDialog() *HelpDialog {
	return &HelpDialog{visibleLines: 15}
}

func (h *HelpDialog) Show() {
	h.visible = true
	h.scrollOffset = 0
}

func (h *HelpDialog) Hide() {
	h.visible = false
}

func (h *HelpDialog) IsVisible() bool {
	return h.visible
}

func (h *HelpDialog) Draw(s tcell.Screen) {
	if !h.visible {
		return
	}

	w, screenHeight := s.Size()

	maxLineWidth := 0
	for _, line := range helpLines {
		if n := len([]rune(line)); n > maxLineWidth {
			maxLineWidth = n
		}
	}
	dialogWidth := maxLineWidth + 4
	if dialogWidth > w-4 {
		dialogWidth = w - 4
	}
	if dialogWidth < 20 {
		dialogWidth = min(20, w)
	}

	dialogHeight := len(helpLines) + 3
	if dialogHeight > screenHeight-2 {
		dialogHeight = screenHeight - 2
	}
	if dialogHeight < 4 {
		dialogHeight = min(4, screenHeight)
	}
	h.visibleLines = dialogHeight - 3

	startX := (w - dialogWidth) / 2
	startY := (screenHeight - dialogHeight) / 2
	style := tcell.StyleDefault.Background(ColorBgHighlight).Foreground(ColorFg)
	drawBox(s, startX, startY, dialogWidth, dialogHeight, style)
	drawText(s, startX+2, startY, style.Foreground(ColorHeader).Bold(true), " Help ")

	h.clampScroll()
	for i := 0; i < h.visibleLines && i+h.scrollOffset < len(helpLines); i++ {
		drawColumn(s, startX+2, startY+1+i, dialogWidth-4, style, helpLines[i+h.scrollOffset], nil)
	}
}

// HandleKey consumes every key while the dialog is visible.
func (h *HelpDialog) HandleKey(ev *tcell.EventKey) bool {
	if !h.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		h.Hide()
	case tcell.KeyUp:
		h.scrollOffset--
	case tcell.KeyDown:
		h.scrollOffset++
	case tcell.KeyRune:
		switch ev.Rune() {
		case '?', 'q':
			h.Hide()
		case 'j':
			h.scrollOffset++
		case 'k':
			h.scrollOffset--
		case 'g':
			h.scrollOffset = 0
		case 'G':
			h.scrollOffset = len(helpLines)
		}
	}
	h.clampScroll()
	return true
}

func (h *HelpDialog) clampScroll() {
	maxScroll := len(helpLines) - h.visibleLines
	if maxScroll < 0 {
		maxScroll = 0
	}
	if h.scrollOffset > maxScroll {
		h.scrollOffset = maxScroll
	}
	if h.scrollOffset < 0 {
		h.scrollOffset = 0
	}
}
