package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/csams/sterncast/internal/models"
	"github.com/csams/sterncast/internal/search"
)

// episodeRow is one visible line of the list, with optional match highlights.
type episodeRow struct {
	episode    models.Episode
	field      search.Field
	highlights []int
}

// rowMarks are the per-episode indicators drawn in the status column.
type rowMarks struct {
	current    bool
	played     bool
	downloaded bool
	// progress is the download fraction while downloading, -1 otherwise.
	progress float64
}

type EpisodeListView struct {
	rows         []episodeRow
	selectedIdx  int
	scrollOffset int
	listHeight   int
}

func NewEpisodeListView() *EpisodeListView {
	return &EpisodeListView{}
}

// SetRows replaces the rows, keeping the cursor on the same episode if it is
// still present.
func (v *EpisodeListView) SetRows(rows []episodeRow) {
	prev := v.SelectedID()
	v.rows = rows
	if prev == "" || !v.SelectID(prev) {
		v.selectedIdx = 0
		v.scrollOffset = 0
	}
	v.clamp()
}

func (v *EpisodeListView) Len() int {
	return len(v.rows)
}

// SelectID moves the cursor to the row with the episode id. Duplicate IDs
// resolve to the last row, matching EpisodeList.ByID.
func (v *EpisodeListView) SelectID(id string) bool {
	for i := len(v.rows) - 1; i >= 0; i-- {
		if v.rows[i].episode.ID == id {
			v.selectedIdx = i
			v.ensureVisible()
			return true
		}
	}
	return false
}

func (v *EpisodeListView) Selected() (models.Episode, bool) {
	if v.selectedIdx < 0 || v.selectedIdx >= len(v.rows) {
		return models.Episode{}, false
	}
	return v.rows[v.selectedIdx].episode, true
}

func (v *EpisodeListView) SelectedID() string {
	ep, ok := v.Selected()
	if !ok {
		return ""
	}
	return ep.ID
}

func (v *EpisodeListView) SelectedIndex() int {
	return v.selectedIdx
}

func (v *EpisodeListView) MoveDown() bool { return v.moveTo(v.selectedIdx + 1) }
func (v *EpisodeListView) MoveUp() bool   { return v.moveTo(v.selectedIdx - 1) }
func (v *EpisodeListView) MoveTop() bool  { return v.moveTo(0) }
func (v *EpisodeListView) MoveBottom() bool {
	return v.moveTo(len(v.rows) - 1)
}

// PageDown moves by one page with one line of overlap.
func (v *EpisodeListView) PageDown() bool {
	return v.moveTo(v.selectedIdx + v.pageSize())
}

func (v *EpisodeListView) PageUp() bool {
	return v.moveTo(v.selectedIdx - v.pageSize())
}

func (v *EpisodeListView) pageSize() int {
	if v.listHeight <= 1 {
		return 1
	}
	return v.listHeight - 1
}

func (v *EpisodeListView) moveTo(idx int) bool {
	if len(v.rows) == 0 {
		return false
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(v.rows) {
		idx = len(v.rows) - 1
	}
	if idx == v.selectedIdx {
		return false
	}
	v.selectedIdx = idx
	v.ensureVisible()
	return true
}

func (v *EpisodeListView) clamp() {
	if v.selectedIdx >= len(v.rows) {
		v.selectedIdx = len(v.rows) - 1
	}
	if v.selectedIdx < 0 {
		v.selectedIdx = 0
	}
	v.ensureVisible()
}

// ensureVisible keeps the selection centered where possible.
func (v *EpisodeListView) ensureVisible() {
	if v.listHeight <= 0 {
		return
	}
	target := v.selectedIdx - v.listHeight/2
	maxOffset := len(v.rows) - v.listHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	switch {
	case target < 0:
		v.scrollOffset = 0
	case target > maxOffset:
		v.scrollOffset = maxOffset
	default:
		v.scrollOffset = target
	}
}

type columnWidths struct {
	status   int
	number   int
	title    int
	date     int
	duration int
}

func calculateColumnWidths(total int) columnWidths {
	const (
		statusW   = 4 // ">▶✓↓" or percent
		numberW   = 5
		dateW     = 17
		durationW = 8
		padding   = 4
	)
	title := total - statusW - numberW - dateW - durationW - padding
	if title < 10 {
		title = 10
	}
	return columnWidths{status: statusW, number: numberW, title: title, date: dateW, duration: durationW}
}

// Draw renders the header and rows into the area starting at y with the
// given height. marks supplies indicators for each episode.
func (v *EpisodeListView) Draw(s tcell.Screen, y, width, height int, marks func(models.Episode) rowMarks) {
	cols := calculateColumnWidths(width)
	headerStyle := tcell.StyleDefault.Background(ColorBg).Foreground(ColorHeader).Bold(true)
	fillRow(s, y, width, headerStyle)

	x := 0
	for _, h := range []struct {
		w    int
		text string
	}{{cols.status, ""}, {cols.number, "#"}, {cols.title, "Title"}, {cols.date, "Published"}, {cols.duration, "Length"}} {
		drawColumn(s, x, y, h.w, headerStyle, h.text, nil)
		x += h.w + 1
	}

	v.listHeight = height - 1
	v.ensureVisible()

	base := tcell.StyleDefault.Background(ColorBg).Foreground(ColorFg)
	for i := 0; i < v.listHeight; i++ {
		row := y + 1 + i
		idx := i + v.scrollOffset
		if idx >= len(v.rows) {
			fillRow(s, row, width, base)
			continue
		}
		v.drawRow(s, row, cols, width, v.rows[idx], idx == v.selectedIdx, marks(v.rows[idx].episode))
	}
}

func (v *EpisodeListView) drawRow(s tcell.Screen, y int, cols columnWidths, width int, row episodeRow, selected bool, m rowMarks) {
	style := tcell.StyleDefault.Background(ColorBg).Foreground(ColorFg)
	switch {
	case m.current:
		style = style.Foreground(ColorCurrent)
	case m.played:
		style = style.Foreground(ColorPlayed)
	}
	if selected {
		style = style.Background(ColorSelection).Bold(true)
	}
	fillRow(s, y, width, style)

	status := []rune("    ")
	if selected {
		status[0] = '>'
	}
	if m.current {
		status[1] = '▶'
	}
	if m.played {
		status[2] = '✓'
	}
	if m.downloaded {
		status[3] = '↓'
	}

	x := 0
	drawColumn(s, x, y, cols.status, style, string(status), nil)
	x += cols.status + 1

	ep := row.episode
	var numberHL, titleHL []int
	switch row.field {
	case search.FieldNumber:
		numberHL = row.highlights
	case search.FieldTitle:
		titleHL = row.highlights
	}
	drawColumn(s, x, y, cols.number, style, ep.EpisodeNumber, numberHL)
	x += cols.number + 1

	title := ep.Title
	if m.progress >= 0 {
		title = formatProgress(m.progress) + " " + title
		titleHL = shift(titleHL, len([]rune(formatProgress(m.progress)))+1)
	}
	drawColumn(s, x, y, cols.title, style, title, titleHL)
	x += cols.title + 1

	drawColumn(s, x, y, cols.date, style, ep.PubDate, nil)
	x += cols.date + 1

	length := "—"
	if ep.Duration != nil {
		length = formatSeconds(*ep.Duration)
	}
	drawColumn(s, x, y, cols.duration, style, length, nil)
}

func formatProgress(fraction float64) string {
	pct := int(fraction * 100)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return fmt.Sprintf("[%d%%]", pct)
}

func shift(positions []int, by int) []int {
	if len(positions) == 0 {
		return nil
	}
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = p + by
	}
	return out
}
