package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/csams/sterncast/internal/feed"
	"github.com/csams/sterncast/internal/models"
)

// loadFeed returns the cached snapshot unless refresh is set or nothing is
// cached yet, in which case it goes through the fetch-with-fallback path.
func loadFeed(ctx context.Context, svc *services, refresh bool) (*models.PodcastFeed, feed.Source, error) {
	if !refresh {
		if cached, ok := svc.feed.Cached(ctx); ok {
			return cached, feed.SourceCache, nil
		}
	}
	f, source, err := svc.feed.FetchWithSource(ctx)
	if err != nil {
		return nil, source, fmt.Errorf("load feed: %w", err)
	}
	return f, source, nil
}

// normalizeEpisodeID accepts "ep-42" or the bare episode number "42".
func normalizeEpisodeID(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, models.EpisodeIDPrefix) {
		return arg
	}
	return models.GenerateEpisodeID(arg)
}

var errUnknownEpisode = errors.New("unknown episode")

func findEpisode(f *models.PodcastFeed, arg string) (models.Episode, error) {
	list := models.NewEpisodeList()
	list.Set(f.Episodes)
	id := normalizeEpisodeID(arg)
	ep, ok := list.ByID(id)
	if !ok {
		return models.Episode{}, fmt.Errorf("%w: %s", errUnknownEpisode, id)
	}
	return ep, nil
}

// episodeView is the structured form of an episode with its user state.
type episodeView struct {
	ID         string  `json:"id" yaml:"id"`
	Number     string  `json:"number,omitempty" yaml:"number,omitempty"`
	Title      string  `json:"title" yaml:"title"`
	PubDate    string  `json:"pubDate" yaml:"pubDate"`
	Duration   int     `json:"duration,omitempty" yaml:"duration,omitempty"`
	AudioURL   string  `json:"audioUrl" yaml:"audioUrl"`
	Played     bool    `json:"played" yaml:"played"`
	Current    bool    `json:"current" yaml:"current"`
	Selected   bool    `json:"selected" yaml:"selected"`
	Position   float64 `json:"position,omitempty" yaml:"position,omitempty"`
	Downloaded string  `json:"downloaded,omitempty" yaml:"downloaded,omitempty"`
}

func newEpisodeView(svc *services, ep models.Episode) episodeView {
	view := episodeView{
		ID:       ep.ID,
		Number:   ep.EpisodeNumber,
		Title:    ep.Title,
		PubDate:  ep.PubDate,
		Duration: ep.DurationSeconds(),
		AudioURL: ep.AudioURL,
		Played:   svc.tracker.IsPlayed(ep.ID),
		Current:  svc.tracker.Current() == ep.ID,
		Selected: svc.tracker.Selected() == ep.ID,
	}
	if pos, ok := svc.tracker.Position(ep.ID); ok {
		view.Position = pos.Position
	}
	if path, ok := svc.downloads.LocalPath(ep.ID); ok {
		view.Downloaded = path
	}
	return view
}

// marks renders the state column used by list and search.
func (v episodeView) marks() string {
	var b strings.Builder
	if v.Current {
		b.WriteString("▶")
	}
	if v.Selected && !v.Current {
		b.WriteString(">")
	}
	if v.Played {
		b.WriteString("✓")
	}
	if v.Downloaded != "" {
		b.WriteString("↓")
	}
	return b.String()
}

func (v episodeView) length() string {
	if v.Duration == 0 {
		return "-"
	}
	return formatClock(float64(v.Duration))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
