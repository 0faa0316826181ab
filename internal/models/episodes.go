package models

import (
	"context"
	"sync"
)

// FeedSource supplies the last durable feed snapshot without touching the network.
type FeedSource interface {
	Cached(ctx context.Context) (*PodcastFeed, bool)
}

// EpisodeList holds the episodes currently shown to the user.
//
// The list keeps every episode it is given, in order. Lookups by ID resolve
// duplicate identifiers last-wins: when two items derive the same ID the later
// one in list order is returned.
type EpisodeList struct {
	mu       sync.RWMutex
	episodes []Episode
	byID     map[string]int
}

func NewEpisodeList() *EpisodeList {
	return &EpisodeList{byID: make(map[string]int)}
}

// Set replaces the held episodes.
func (l *EpisodeList) Set(episodes []Episode) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.episodes = make([]Episode, len(episodes))
	copy(l.episodes, episodes)

	l.byID = make(map[string]int, len(episodes))
	for i, ep := range l.episodes {
		l.byID[ep.ID] = i
	}
}

// All returns a copy of the held episodes.
func (l *EpisodeList) All() []Episode {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Episode, len(l.episodes))
	copy(out, l.episodes)
	return out
}

func (l *EpisodeList) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.episodes)
}

// ByID returns the episode with the given ID.
func (l *EpisodeList) ByID(id string) (Episode, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.byID[id]
	if !ok {
		return Episode{}, false
	}
	return l.episodes[idx], true
}

// LoadFromCache fills the list from the durable snapshot, if one exists.
func (l *EpisodeList) LoadFromCache(ctx context.Context, src FeedSource) ([]Episode, bool) {
	cached, ok := src.Cached(ctx)
	if !ok || cached == nil || cached.Episodes == nil {
		return nil, false
	}
	l.Set(cached.Episodes)
	return l.All(), true
}
