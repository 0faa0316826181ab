// Package ui is the terminal episode browser.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/csams/sterncast/internal/download"
	"github.com/csams/sterncast/internal/feed"
	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/markdown"
	"github.com/csams/sterncast/internal/models"
	"github.com/csams/sterncast/internal/playback"
	"github.com/csams/sterncast/internal/search"
)

// FeedSource is the part of feed.Service the browser uses.
type FeedSource interface {
	FetchWithSource(ctx context.Context) (*models.PodcastFeed, feed.Source, error)
	Cached(ctx context.Context) (*models.PodcastFeed, bool)
}

// Downloads is the part of download.Manager the browser uses.
type Downloads interface {
	LocalPath(episodeID string) (string, bool)
	Download(ctx context.Context, ep models.Episode, onProgress func(download.Progress)) (string, error)
	Remove(episodeID string) error
}

type Options struct {
	Feed    FeedSource
	Tracker *playback.Tracker
	// Downloads is optional; without it the download keys are disabled.
	Downloads Downloads
	Converter *markdown.Converter
	Logger    *slog.Logger
	MinScore  int
}

type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
)

// Events posted from background work back into the event loop.
type (
	feedLoaded struct {
		feed   *models.PodcastFeed
		source feed.Source
		err    error
	}
	downloadProgress struct {
		progress download.Progress
	}
	downloadFinished struct {
		episode models.Episode
		err     error
	}
	quitRequested struct{}
)

const descriptionHeight = 10

type App struct {
	opts   Options
	logger *slog.Logger

	screen tcell.Screen
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	episodes *models.EpisodeList
	list     *EpisodeListView
	mode     Mode
	input    search.Input
	matcher  *search.Matcher

	help    *HelpDialog
	confirm *ConfirmationDialog

	feedTitle     string
	source        string
	loading       bool
	statusMessage string
	statusIsError bool
	descScroll    int

	// downloading maps episode IDs to their download fraction.
	downloading map[string]float64
}

func NewApp(opts Options) *App {
	if opts.Converter == nil {
		opts.Converter = markdown.NewConverter()
	}
	return &App{
		opts:        opts,
		logger:      logging.NewComponentLogger(opts.Logger, "ui"),
		episodes:    models.NewEpisodeList(),
		list:        NewEpisodeListView(),
		matcher:     search.New("", opts.MinScore),
		help:        NewHelpDialog(),
		confirm:     NewConfirmationDialog(),
		feedTitle:   models.DefaultFeedTitle,
		downloading: make(map[string]float64),
	}
}

// Run opens the terminal and blocks until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer s.Fini()

	a.start(ctx, s)
	defer a.stop()

	go func() {
		<-a.ctx.Done()
		_ = s.PostEvent(tcell.NewEventInterrupt(quitRequested{}))
	}()

	for {
		ev := s.PollEvent()
		if ev == nil {
			return nil
		}
		if a.handleEvent(ev) {
			return nil
		}
		a.draw()
	}
}

// start shows the cached episodes and kicks off a network refresh.
func (a *App) start(ctx context.Context, s tcell.Screen) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.screen = s
	s.SetStyle(tcell.StyleDefault.Background(ColorBg).Foreground(ColorFg))
	s.Clear()

	if cached, ok := a.opts.Feed.Cached(a.ctx); ok {
		a.applyFeed(cached, feed.SourceCache)
	}
	a.refresh()
	a.draw()
}

func (a *App) stop() {
	a.cancel()
	a.wg.Wait()
}

// background runs fn and posts its result into the event loop.
func (a *App) background(fn func(ctx context.Context) any) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		result := fn(a.ctx)
		if a.ctx.Err() != nil {
			return
		}
		_ = a.screen.PostEvent(tcell.NewEventInterrupt(result))
	}()
}

func (a *App) refresh() {
	if a.loading {
		return
	}
	a.loading = true
	a.setStatus("Refreshing feed…", false)
	a.background(func(ctx context.Context) any {
		f, src, err := a.opts.Feed.FetchWithSource(ctx)
		return feedLoaded{feed: f, source: src, err: err}
	})
}

// handleEvent processes one event and reports whether the app should exit.
func (a *App) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
	case *tcell.EventKey:
		return a.handleKey(ev)
	case *tcell.EventInterrupt:
		switch data := ev.Data().(type) {
		case quitRequested:
			return true
		case feedLoaded:
			a.loading = false
			if data.err != nil {
				a.logger.Warn("feed refresh failed", logging.Error(data.err))
				a.setStatus("Refresh failed: "+data.err.Error(), true)
				return false
			}
			a.applyFeed(data.feed, data.source)
			if data.source == feed.SourceCache {
				a.setStatus("Offline: showing cached episodes", true)
			} else {
				a.setStatus(fmt.Sprintf("Loaded %d episodes", a.episodes.Count()), false)
			}
		case downloadProgress:
			if data.progress.Status == download.StatusDownloading {
				a.downloading[data.progress.EpisodeID] = data.progress.Fraction
			}
		case downloadFinished:
			delete(a.downloading, data.episode.ID)
			switch {
			case data.err == nil:
				a.setStatus("Downloaded: "+data.episode.Title, false)
			case errors.Is(data.err, download.ErrAlreadyDownloaded):
				a.setStatus("Already downloaded: "+data.episode.Title, false)
			default:
				a.setStatus("Download failed: "+data.err.Error(), true)
			}
		}
	}
	return false
}

// applyFeed replaces the episode list. The first load positions the cursor on
// the restored selection.
func (a *App) applyFeed(f *models.PodcastFeed, src feed.Source) {
	if f == nil {
		return
	}
	first := a.episodes.Count() == 0
	a.episodes.Set(f.Episodes)
	if f.Title != "" {
		a.feedTitle = f.Title
	}
	a.source = src.String()
	a.applyFilter()
	if first {
		if sel := a.opts.Tracker.Selected(); sel != "" {
			a.list.SelectID(sel)
		}
	}
}

func (a *App) applyFilter() {
	all := a.episodes.All()
	a.matcher.SetQuery(a.input.String())

	var rows []episodeRow
	if a.input.String() == "" {
		rows = make([]episodeRow, len(all))
		for i, ep := range all {
			rows[i] = episodeRow{episode: ep}
		}
	} else {
		hits := a.matcher.Filter(all)
		rows = make([]episodeRow, len(hits))
		for i, hit := range hits {
			rows[i] = episodeRow{episode: hit.Episode, field: hit.Field, highlights: hit.Result.Positions}
		}
	}
	a.list.SetRows(rows)
	a.descScroll = 0
}

func (a *App) handleKey(ev *tcell.EventKey) bool {
	if a.confirm.IsVisible() {
		a.confirm.HandleKey(ev)
		return false
	}
	if a.help.IsVisible() {
		a.help.HandleKey(ev)
		return false
	}
	if ev.Key() == tcell.KeyCtrlC {
		return true
	}
	if a.mode == ModeSearch {
		a.handleSearchKey(ev)
		return false
	}

	prev := a.list.SelectedID()
	switch ev.Key() {
	case tcell.KeyDown:
		a.list.MoveDown()
	case tcell.KeyUp:
		a.list.MoveUp()
	case tcell.KeyCtrlF, tcell.KeyPgDn:
		a.list.PageDown()
	case tcell.KeyCtrlB, tcell.KeyPgUp:
		a.list.PageUp()
	case tcell.KeyHome:
		a.list.MoveTop()
	case tcell.KeyEnd:
		a.list.MoveBottom()
	case tcell.KeyEnter:
		a.selectEpisode()
	case tcell.KeyEscape:
		if a.input.String() != "" {
			a.input.Clear()
			a.applyFilter()
		}
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'j':
			a.list.MoveDown()
		case 'k':
			a.list.MoveUp()
		case 'g':
			a.list.MoveTop()
		case 'G':
			a.list.MoveBottom()
		case 'J':
			a.descScroll++
		case 'K':
			if a.descScroll > 0 {
				a.descScroll--
			}
		case 'p':
			a.togglePlayed()
		case '/':
			a.mode = ModeSearch
		case 'r':
			a.refresh()
		case 'd':
			a.downloadSelected()
		case 'x':
			a.confirmRemoveDownload()
		case '?':
			a.help.Show()
		}
	}
	if a.list.SelectedID() != prev {
		a.descScroll = 0
	}
	return false
}

func (a *App) handleSearchKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		a.input.Clear()
		a.mode = ModeNormal
	case tcell.KeyEnter:
		a.mode = ModeNormal
		return
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		a.input.DeleteChar()
	case tcell.KeyDelete:
		a.input.DeleteCharForward()
	case tcell.KeyLeft:
		a.input.MoveCursorLeft()
		return
	case tcell.KeyRight:
		a.input.MoveCursorRight()
		return
	case tcell.KeyCtrlA:
		a.input.MoveCursorStart()
		return
	case tcell.KeyCtrlE:
		a.input.MoveCursorEnd()
		return
	case tcell.KeyCtrlK:
		a.input.DeleteToEnd()
	case tcell.KeyCtrlW:
		a.input.DeleteWord()
	case tcell.KeyCtrlU:
		a.input.Clear()
	case tcell.KeyRune:
		a.input.InsertChar(ev.Rune())
	default:
		return
	}
	a.applyFilter()
}

func (a *App) selectEpisode() {
	ep, ok := a.list.Selected()
	if !ok {
		return
	}
	a.opts.Tracker.SelectEpisode(ep.ID)
	a.setStatus("Selected: "+ep.Title, false)
}

func (a *App) togglePlayed() {
	ep, ok := a.list.Selected()
	if !ok {
		return
	}
	if a.opts.Tracker.IsPlayed(ep.ID) {
		a.opts.Tracker.MarkEpisodeUnplayed(ep.ID)
		a.setStatus("Marked unplayed: "+ep.Title, false)
		return
	}
	a.opts.Tracker.MarkEpisodePlayed(ep.ID)
	a.setStatus("Marked played: "+ep.Title, false)
}

func (a *App) downloadSelected() {
	ep, ok := a.list.Selected()
	if !ok || a.opts.Downloads == nil {
		return
	}
	if _, busy := a.downloading[ep.ID]; busy {
		return
	}
	a.downloading[ep.ID] = 0
	a.setStatus("Downloading: "+ep.Title, false)
	a.background(func(ctx context.Context) any {
		_, err := a.opts.Downloads.Download(ctx, ep, func(p download.Progress) {
			_ = a.screen.PostEvent(tcell.NewEventInterrupt(downloadProgress{progress: p}))
		})
		return downloadFinished{episode: ep, err: err}
	})
}

func (a *App) confirmRemoveDownload() {
	ep, ok := a.list.Selected()
	if !ok || a.opts.Downloads == nil {
		return
	}
	if _, ok := a.opts.Downloads.LocalPath(ep.ID); !ok {
		a.setStatus("Not downloaded: "+ep.Title, true)
		return
	}
	a.confirm.Show("Delete download", fmt.Sprintf("Delete the downloaded file of %q?", ep.Title), func() {
		if err := a.opts.Downloads.Remove(ep.ID); err != nil {
			a.setStatus("Delete failed: "+err.Error(), true)
			return
		}
		a.setStatus("Deleted download: "+ep.Title, false)
	})
}

func (a *App) setStatus(msg string, isError bool) {
	a.statusMessage = msg
	a.statusIsError = isError
}

func (a *App) marks(ep models.Episode) rowMarks {
	m := rowMarks{
		current:  a.opts.Tracker.Current() == ep.ID,
		played:   a.opts.Tracker.IsPlayed(ep.ID),
		progress: -1,
	}
	if a.opts.Downloads != nil {
		_, m.downloaded = a.opts.Downloads.LocalPath(ep.ID)
	}
	if f, ok := a.downloading[ep.ID]; ok {
		m.progress = f
	}
	return m
}

func (a *App) draw() {
	s := a.screen
	s.Clear()
	w, h := s.Size()

	titleStyle := tcell.StyleDefault.Background(ColorBg).Foreground(ColorHeader).Bold(true)
	fillRow(s, 0, w, titleStyle)
	header := fmt.Sprintf("%s (%d episodes)", a.feedTitle, a.episodes.Count())
	if q := a.input.String(); q != "" {
		header += fmt.Sprintf(" · %d matching %q", a.list.Len(), q)
	}
	drawColumn(s, 0, 0, w, titleStyle, header, nil)

	descH := descriptionHeight
	listH := h - 2 - descH
	if listH < 4 {
		listH = h - 2
		descH = 0
	}
	a.list.Draw(s, 1, w, listH, a.marks)
	if descH > 0 {
		a.drawDescription(1+listH, w, descH)
	}
	a.drawStatusBar()

	a.confirm.Draw(s)
	a.help.Draw(s)
	s.Show()
}

func (a *App) drawDescription(y, width, height int) {
	s := a.screen
	base := tcell.StyleDefault.Background(ColorBg).Foreground(ColorFg)
	sep := tcell.StyleDefault.Background(ColorBg).Foreground(ColorFgDark)
	for x := 0; x < width; x++ {
		s.SetContent(x, y, '─', nil, sep)
	}

	ep, ok := a.list.Selected()
	if !ok {
		drawText(s, 1, y+1, sep, "No episode selected")
		return
	}

	info := ep.Title
	if ep.Duration != nil {
		info += " · " + formatSeconds(*ep.Duration)
	}
	if pos, ok := a.opts.Tracker.Position(ep.ID); ok && pos.Position > 0 {
		info += " · resume at " + formatSeconds(int(pos.Position))
	}
	drawColumn(s, 1, y+1, width-2, base.Bold(true), info, nil)

	if ep.Description == "" {
		drawText(s, 1, y+2, sep, "No description available")
		return
	}
	res := a.opts.Converter.Convert(ep.Description)
	total := drawStyled(s, 1, y+2, width-2, height-2, a.descScroll, base, res)
	if maxScroll := total - (height - 2); a.descScroll > maxScroll && maxScroll >= 0 {
		a.descScroll = maxScroll
	}
}

func (a *App) drawStatusBar() {
	s := a.screen
	w, h := s.Size()
	style := tcell.StyleDefault.Background(ColorBgHighlight).Foreground(ColorFg)
	fillRow(s, h-1, w, style)

	left := "NORMAL"
	if a.mode == ModeSearch {
		left = "/" + a.input.String()
	}
	drawText(s, 0, h-1, style, left)
	if a.mode == ModeSearch {
		query := []rune(a.input.String())
		cursor := a.input.Cursor()
		r := ' '
		if cursor < len(query) {
			r = query[cursor]
		}
		s.SetContent(1+cursor, h-1, r, nil, style.Reverse(true))
	}

	right := a.source
	if a.loading {
		right = "refreshing"
	}
	if right != "" {
		drawText(s, w-len([]rune(right))-1, h-1, style.Foreground(ColorInfo), right)
	}

	if a.statusMessage != "" {
		msgStyle := style.Foreground(ColorYellow)
		if a.statusIsError {
			msgStyle = style.Foreground(ColorError)
		}
		x := len([]rune(left)) + 2
		drawColumn(s, x, h-1, w-x-len([]rune(right))-2, msgStyle, a.statusMessage, nil)
	}
}
