package ui

import (
	"github.com/gdamore/tcell/v2"
)

type ConfirmationDialog struct {
	visible bool
	title   string
	message string
	onYes   func()
}

func NewConfirmationDialog() *ConfirmationDialog {
	return &ConfirmationDialog{}
}

func (c *ConfirmationDialog) Show(title, message string, onYes func()) {
	c.visible = true
	c.title = title
	c.message = message
	c.onYes = onYes
}

func (c *ConfirmationDialog) Hide() {
	c.visible = false
	c.title = ""
	c.message = ""
	c.onYes = nil
}

func (c *ConfirmationDialog) IsVisible() bool {
	return c.visible
}

func (c *ConfirmationDialog) Draw(s tcell.Screen) {
	if !c.visible {
		return
	}

	w, h := s.Size()
	dialogWidth := 50
	dialogHeight := 8
	if dialogWidth > w {
		dialogWidth = w
	}
	if dialogHeight > h {
		dialogHeight = h
	}
	startX := (w - dialogWidth) / 2
	startY := (h - dialogHeight) / 2

	style := tcell.StyleDefault.Background(tcell.ColorDarkRed).Foreground(tcell.ColorWhite)
	drawBox(s, startX, startY, dialogWidth, dialogHeight, style)

	titleX := startX + (dialogWidth-len([]rune(c.title)))/2
	if titleX < startX+2 {
		titleX = startX + 2
	}
	drawText(s, titleX, startY+1, style.Foreground(tcell.ColorYellow).Bold(true), c.title)

	msg := []rune(c.message)
	for i, seg := range wrapRunes(msg, dialogWidth-4) {
		if 3+i >= dialogHeight-2 {
			break
		}
		drawText(s, startX+2, startY+3+i, style, string(msg[seg.start:seg.end]))
	}

	buttonStyle := style.Bold(true)
	buttonsY := startY + dialogHeight - 2
	drawText(s, startX+dialogWidth/2-6, buttonsY, buttonStyle, "[Y]es")
	drawText(s, startX+dialogWidth/2+2, buttonsY, buttonStyle, "[N]o")
}

// HandleKey consumes every key while the dialog is visible.
func (c *ConfirmationDialog) HandleKey(ev *tcell.EventKey) bool {
	if !c.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		c.Hide()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'y', 'Y':
			onYes := c.onYes
			c.Hide()
			if onYes != nil {
				onYes()
			}
		case 'n', 'N':
			c.Hide()
		}
	}
	return true
}

// drawBox fills a rectangle and draws a single line border around it.
func drawBox(s tcell.Screen, x, y, width, height int, style tcell.Style) {
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}
	for col := x; col < x+width; col++ {
		s.SetContent(col, y, '─', nil, style)
		s.SetContent(col, y+height-1, '─', nil, style)
	}
	for row := y; row < y+height; row++ {
		s.SetContent(x, row, '│', nil, style)
		s.SetContent(x+width-1, row, '│', nil, style)
	}
	s.SetContent(x, y, '┌', nil, style)
	s.SetContent(x+width-1, y, '┐', nil, style)
	s.SetContent(x, y+height-1, '└', nil, style)
	s.SetContent(x+width-1, y+height-1, '┘', nil, style)
}
