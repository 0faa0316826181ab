package models

import (
	"strconv"
	"strings"
	"time"
)

// EpisodeIDPrefix is prepended to the feed-provided episode number to form an Episode ID.
const EpisodeIDPrefix = "ep-"

// DefaultFeedTitle is used when the channel carries no title.
const DefaultFeedTitle = "Sternengeschichten"

type PodcastFeed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Episodes    []Episode `json:"episodes"`
	// LastUpdated is epoch milliseconds.
	LastUpdated int64 `json:"lastUpdated"`
}

type Episode struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	PubDate       string `json:"pubDate"` // feed-native, never parsed
	AudioURL      string `json:"audioUrl"`
	Duration      *int   `json:"duration,omitempty"` // seconds
	EpisodeNumber string `json:"episodeNumber,omitempty"`
}

// PlaybackPosition is the resume point recorded for one episode.
type PlaybackPosition struct {
	EpisodeID string  `json:"episodeId"`
	Position  float64 `json:"position"` // seconds
	Timestamp int64   `json:"timestamp"`
}

// GenerateEpisodeID derives an episode identifier from the feed's episode number.
// Items sharing an episode number (including an empty one) share an ID.
func GenerateEpisodeID(episodeNumber string) string {
	return EpisodeIDPrefix + episodeNumber
}

// GenerateID sets the episode ID from its episode number.
func (e *Episode) GenerateID() {
	e.ID = GenerateEpisodeID(e.EpisodeNumber)
}

// DurationSeconds returns the duration or 0 when the feed did not carry one.
func (e *Episode) DurationSeconds() int {
	if e.Duration == nil {
		return 0
	}
	return *e.Duration
}

// Number returns the numeric episode number, if the feed value looks numeric.
func (e *Episode) Number() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(e.EpisodeNumber))
	if err != nil {
		return 0, false
	}
	return n, true
}

// UpdatedAt converts LastUpdated to a time.Time.
func (f *PodcastFeed) UpdatedAt() time.Time {
	return time.UnixMilli(f.LastUpdated)
}

// NowMillis returns t as epoch milliseconds.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
