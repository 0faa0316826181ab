package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/csams/sterncast/internal/download"
	"github.com/csams/sterncast/internal/feed"
	"github.com/csams/sterncast/internal/kvstore"
	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/models"
	"github.com/csams/sterncast/internal/playback"
)

func intPtr(v int) *int { return &v }

func testEpisodes() []models.Episode {
	return []models.Episode{
		{ID: "ep-1", EpisodeNumber: "1", Title: "Der Mond", Description: "<p>Folge über den <b>Erdtrabanten</b></p>", PubDate: "Mon, 01 Jan 2024 10:00:00 +0000", AudioURL: "https://example.com/1.mp3", Duration: intPtr(600)},
		{ID: "ep-2", EpisodeNumber: "2", Title: "Die Sonne", Description: "Unser Stern", PubDate: "Mon, 08 Jan 2024 10:00:00 +0000", AudioURL: "https://example.com/2.mp3", Duration: intPtr(3723)},
		{ID: "ep-3", EpisodeNumber: "3", Title: "Der Mars", Description: "Der rote Planet", PubDate: "Mon, 15 Jan 2024 10:00:00 +0000", AudioURL: "https://example.com/3.mp3"},
	}
}

type fakeFeed struct {
	cached *models.PodcastFeed
	fresh  *models.PodcastFeed
	source feed.Source
	err    error
}

func (f *fakeFeed) FetchWithSource(ctx context.Context) (*models.PodcastFeed, feed.Source, error) {
	if f.err != nil {
		return nil, feed.SourceNetwork, f.err
	}
	return f.fresh, f.source, nil
}

func (f *fakeFeed) Cached(ctx context.Context) (*models.PodcastFeed, bool) {
	return f.cached, f.cached != nil
}

type fakeDownloads struct {
	mu    sync.Mutex
	paths map[string]string
	err   error
}

func (d *fakeDownloads) LocalPath(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.paths[id]
	return p, ok
}

func (d *fakeDownloads) Download(ctx context.Context, ep models.Episode, onProgress func(download.Progress)) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	onProgress(download.Progress{EpisodeID: ep.ID, Status: download.StatusDownloading, Fraction: 0.5})
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paths[ep.ID] = "/tmp/" + ep.ID + ".mp3"
	return d.paths[ep.ID], nil
}

func (d *fakeDownloads) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.paths, id)
	return nil
}

type testHarness struct {
	app     *App
	sim     tcell.SimulationScreen
	tracker *playback.Tracker
}

func newHarness(t *testing.T, src FeedSource, dl Downloads, setup func(*playback.Tracker)) *testHarness {
	t.Helper()
	tracker := playback.NewTracker(kvstore.NewMemoryStore(), logging.NewNop())
	if setup != nil {
		setup(tracker)
	}

	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("Failed to init simulation screen: %v", err)
	}
	sim.SetSize(100, 30)

	opts := Options{Feed: src, Tracker: tracker, Logger: logging.NewNop()}
	if dl != nil {
		opts.Downloads = dl
	}
	app := NewApp(opts)
	app.start(context.Background(), sim)
	t.Cleanup(func() {
		app.stop()
		sim.Fini()
	})
	return &testHarness{app: app, sim: sim, tracker: tracker}
}

// waitFor handles events until one whose interrupt payload is a T arrives.
func waitFor[T any](t *testing.T, h *testHarness) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		events := make(chan tcell.Event, 1)
		go func() { events <- h.sim.PollEvent() }()
		select {
		case ev := <-events:
			h.app.handleEvent(ev)
			if intr, ok := ev.(*tcell.EventInterrupt); ok {
				if data, ok := intr.Data().(T); ok {
					h.app.draw()
					return data
				}
			}
		case <-deadline:
			var zero T
			t.Fatalf("Timed out waiting for %T", zero)
			return zero
		}
	}
}

func (h *testHarness) key(k tcell.Key) bool {
	quit := h.app.handleKey(tcell.NewEventKey(k, 0, tcell.ModNone))
	h.app.draw()
	return quit
}

func (h *testHarness) press(runes string) {
	for _, r := range runes {
		h.app.handleKey(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}
	h.app.draw()
}

func (h *testHarness) screenText() string {
	cells, w, ht := h.sim.GetContents()
	var b strings.Builder
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteRune(c.Runes[0])
		}
		b.WriteRune('\n')
	}
	return b.String()
}

func feedOf(episodes []models.Episode) *models.PodcastFeed {
	return &models.PodcastFeed{Title: "Sternengeschichten", Episodes: episodes}
}

func TestStartShowsCachedThenFresh(t *testing.T) {
	eps := testEpisodes()
	src := &fakeFeed{cached: feedOf(eps[:2]), fresh: feedOf(eps), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, nil)

	if h.app.list.Len() != 2 {
		t.Fatalf("Expected 2 cached episodes before refresh, got %d", h.app.list.Len())
	}
	if !strings.Contains(h.screenText(), "Die Sonne") {
		t.Error("Expected cached episode on screen")
	}

	waitFor[feedLoaded](t, h)
	if h.app.list.Len() != 3 {
		t.Errorf("Expected 3 episodes after refresh, got %d", h.app.list.Len())
	}
	screen := h.screenText()
	if !strings.Contains(screen, "Der Mars") {
		t.Error("Expected fresh episode on screen")
	}
	if !strings.Contains(screen, "Loaded 3 episodes") {
		t.Errorf("Expected load status, got screen:\n%s", screen)
	}
}

func TestCursorStartsOnRestoredSelection(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, func(tr *playback.Tracker) { tr.SelectEpisode("ep-3") })

	if got := h.app.list.SelectedID(); got != "ep-3" {
		t.Errorf("Expected cursor on ep-3, got %q", got)
	}

	// A refresh keeps the cursor where it is.
	waitFor[feedLoaded](t, h)
	if got := h.app.list.SelectedID(); got != "ep-3" {
		t.Errorf("Expected cursor to stay on ep-3, got %q", got)
	}
}

func TestEnterSelectsEpisode(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, nil)

	h.press("j")
	h.key(tcell.KeyEnter)

	if h.tracker.Selected() != "ep-2" {
		t.Errorf("Expected selected ep-2, got %q", h.tracker.Selected())
	}
	if h.tracker.Current() != "ep-2" {
		t.Errorf("Expected current ep-2, got %q", h.tracker.Current())
	}
	if !strings.Contains(h.screenText(), "▶") {
		t.Error("Expected current episode marker")
	}
}

func TestTogglePlayed(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, nil)

	h.press("p")
	if !h.tracker.IsPlayed("ep-1") {
		t.Fatal("Expected ep-1 to be played")
	}
	if !strings.Contains(h.screenText(), "✓") {
		t.Error("Expected played marker")
	}

	h.press("p")
	if h.tracker.IsPlayed("ep-1") {
		t.Error("Expected ep-1 to be unplayed after second toggle")
	}
}

func TestSearchFiltersEpisodes(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, nil)

	h.press("/mond")
	if h.app.mode != ModeSearch {
		t.Fatal("Expected search mode")
	}
	if h.app.list.Len() != 1 || h.app.list.SelectedID() != "ep-1" {
		t.Fatalf("Expected only ep-1, got %d rows (selected %q)", h.app.list.Len(), h.app.list.SelectedID())
	}
	if !strings.Contains(h.screenText(), "/mond") {
		t.Error("Expected query in status bar")
	}

	h.key(tcell.KeyEnter)
	if h.app.mode != ModeNormal || h.app.list.Len() != 1 {
		t.Error("Expected Enter to keep the filter and leave search mode")
	}

	h.key(tcell.KeyEscape)
	if h.app.list.Len() != 3 {
		t.Errorf("Expected Esc to clear the filter, got %d rows", h.app.list.Len())
	}
}

func TestSearchEditing(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, nil)

	h.press("/marsx")
	if h.app.list.Len() != 0 {
		t.Fatalf("Expected no matches, got %d", h.app.list.Len())
	}
	h.key(tcell.KeyBackspace2)
	if h.app.list.Len() != 1 || h.app.list.SelectedID() != "ep-3" {
		t.Errorf("Expected ep-3 after backspace, got %d rows", h.app.list.Len())
	}
	h.key(tcell.KeyEscape)
	if h.app.mode != ModeNormal || h.app.list.Len() != 3 {
		t.Error("Expected Esc in search mode to clear and exit")
	}
}

func TestOfflineFallbackStatus(t *testing.T) {
	cached := feedOf(testEpisodes()[:1])
	src := &fakeFeed{cached: cached, fresh: cached, source: feed.SourceCache}
	h := newHarness(t, src, nil, nil)

	waitFor[feedLoaded](t, h)
	screen := h.screenText()
	if !strings.Contains(screen, "Offline") {
		t.Errorf("Expected offline status, got screen:\n%s", screen)
	}
	if !strings.Contains(screen, "cache") {
		t.Error("Expected cache source indicator")
	}
}

func TestRefreshFailureWithoutCache(t *testing.T) {
	src := &fakeFeed{err: errors.New("network unreachable")}
	h := newHarness(t, src, nil, nil)

	waitFor[feedLoaded](t, h)
	if h.app.list.Len() != 0 {
		t.Errorf("Expected empty list, got %d", h.app.list.Len())
	}
	if !strings.Contains(h.screenText(), "Refresh failed") {
		t.Error("Expected refresh failure status")
	}
	// Keys on an empty list are harmless.
	h.press("jkpG")
	h.key(tcell.KeyEnter)
	if h.tracker.Selected() != "" {
		t.Error("Expected no selection on empty list")
	}
}

func TestRefreshKey(t *testing.T) {
	eps := testEpisodes()
	src := &fakeFeed{fresh: feedOf(eps[:1]), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, nil)
	waitFor[feedLoaded](t, h)

	src.fresh = feedOf(eps)
	h.press("r")
	if !h.app.loading {
		t.Fatal("Expected refresh to start")
	}
	waitFor[feedLoaded](t, h)
	if h.app.list.Len() != 3 {
		t.Errorf("Expected 3 episodes after refresh, got %d", h.app.list.Len())
	}
}

func TestDescriptionPaneRendersMarkdown(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, func(tr *playback.Tracker) { tr.UpdatePlaybackPosition("ep-1", 75) })

	screen := h.screenText()
	if !strings.Contains(screen, "Folge über den Erdtrabanten") {
		t.Errorf("Expected converted description, got screen:\n%s", screen)
	}
	if strings.Contains(screen, "<b>") || strings.Contains(screen, "**") {
		t.Error("Expected markup to be rendered, not shown")
	}
	if !strings.Contains(screen, "resume at 1:15") {
		t.Error("Expected resume position in description header")
	}
}

func TestDownloadAndRemove(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	dl := &fakeDownloads{paths: map[string]string{}}
	h := newHarness(t, src, dl, nil)
	waitFor[feedLoaded](t, h)

	h.press("d")
	waitFor[downloadFinished](t, h)
	if _, ok := dl.LocalPath("ep-1"); !ok {
		t.Fatal("Expected ep-1 to be downloaded")
	}
	if !strings.Contains(h.screenText(), "Downloaded: Der Mond") {
		t.Error("Expected download status")
	}
	if !strings.Contains(h.screenText(), "↓") {
		t.Error("Expected downloaded marker")
	}

	h.press("x")
	if !h.app.confirm.IsVisible() {
		t.Fatal("Expected confirmation dialog")
	}
	h.press("n")
	if _, ok := dl.LocalPath("ep-1"); !ok {
		t.Error("Expected download to survive a declined confirmation")
	}

	h.press("xy")
	if _, ok := dl.LocalPath("ep-1"); ok {
		t.Error("Expected download to be removed")
	}
}

func TestDownloadFailureStatus(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	dl := &fakeDownloads{paths: map[string]string{}, err: errors.New("HTTP 404")}
	h := newHarness(t, src, dl, nil)

	h.press("d")
	waitFor[downloadFinished](t, h)
	if !strings.Contains(h.screenText(), "Download failed") {
		t.Error("Expected failure status")
	}
}

func TestHelpDialogAndQuit(t *testing.T) {
	src := &fakeFeed{cached: feedOf(testEpisodes()), fresh: feedOf(testEpisodes()), source: feed.SourceNetwork}
	h := newHarness(t, src, nil, nil)

	h.press("?")
	if !h.app.help.IsVisible() || !strings.Contains(h.screenText(), "Toggle played") {
		t.Fatal("Expected help dialog")
	}
	// q closes the dialog instead of quitting.
	if h.app.handleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("Expected q to close help, not quit")
	}
	if h.app.help.IsVisible() {
		t.Error("Expected help to be hidden")
	}
	if !h.app.handleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("Expected q to quit")
	}
	if !h.key(tcell.KeyCtrlC) {
		t.Error("Expected Ctrl+C to quit")
	}
}
