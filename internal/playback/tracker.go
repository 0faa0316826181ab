// Package playback tracks which episode is current, which is selected, where
// each episode was left off and which episodes have been played.
//
// Every mutation writes the full state to the key-value store before it
// returns. Storage problems are logged and never surface to callers.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/csams/sterncast/internal/kvstore"
	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/models"
)

// Tracker owns the playback state.
type Tracker struct {
	mu     sync.Mutex
	store  kvstore.Store
	logger *slog.Logger
	now    func() time.Time
	state  State
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used for position timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a tracker with empty state. Call Restore to load the
// persisted state.
func NewTracker(store kvstore.Store, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		logger: logging.NewComponentLogger(logger, "playback"),
		now:    time.Now,
		state:  newState(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SelectEpisode makes id both the selected and the current episode.
func (t *Tracker) SelectEpisode(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.SelectedEpisodeID = id
	t.state.CurrentEpisodeID = id
	t.persistLocked("select")
}

// MarkEpisodePlayed makes id current and adds it to the played set.
func (t *Tracker) MarkEpisodePlayed(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.CurrentEpisodeID = id
	t.state.Played[id] = struct{}{}
	t.persistLocked("mark_played")
}

// MarkEpisodeUnplayed removes id from the played set.
func (t *Tracker) MarkEpisodeUnplayed(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state.Played, id)
	t.persistLocked("mark_unplayed")
}

// SetCurrentEpisode makes id the current episode.
func (t *Tracker) SetCurrentEpisode(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.CurrentEpisodeID = id
	t.persistLocked("set_current")
}

// UpdatePlaybackPosition records the resume point for id. Current and
// selected are left alone.
func (t *Tracker) UpdatePlaybackPosition(id string, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Positions[id] = models.PlaybackPosition{
		EpisodeID: id,
		Position:  seconds,
		Timestamp: models.NowMillis(t.now()),
	}
	t.persistLocked("update_position")
}

// Restore replaces the in-memory state with the persisted blob. A missing or
// unreadable blob leaves the state empty.
func (t *Tracker) Restore() {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, ok, err := t.store.Get(StorageKey)
	if err != nil {
		t.logger.Warn("failed to read playback state", logging.Error(err))
		return
	}
	if !ok {
		t.logger.Debug("no saved playback state")
		return
	}

	restored, err := decodeState([]byte(raw))
	if err != nil {
		t.logger.Warn("discarding malformed playback state", logging.Error(err))
		return
	}
	if restored.CurrentEpisodeID != "" && restored.SelectedEpisodeID == "" {
		restored.SelectedEpisodeID = restored.CurrentEpisodeID
	}
	t.state = restored
	t.logger.Debug("restored playback state",
		logging.String("current", restored.CurrentEpisodeID),
		logging.Int("positions", len(restored.Positions)),
		logging.Int("played", len(restored.Played)),
	)
}

// CurrentPlaybackPosition returns the resume point of the selected episode, or 0.
func (t *Tracker) CurrentPlaybackPosition() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.SelectedEpisodeID == "" {
		return 0
	}
	return t.state.Positions[t.state.SelectedEpisodeID].Position
}

func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.CurrentEpisodeID
}

func (t *Tracker) Selected() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.SelectedEpisodeID
}

// Position returns the recorded position for id.
func (t *Tracker) Position(id string) (models.PlaybackPosition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.state.Positions[id]
	return pos, ok
}

func (t *Tracker) IsPlayed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.state.Played[id]
	return ok
}

// Played returns the played episode IDs in sorted order.
func (t *Tracker) Played() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.PlayedIDs()
}

// Snapshot returns a copy of the full state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

func (t *Tracker) persistLocked(event string) {
	data, err := encodeState(t.state)
	if err != nil {
		t.logger.Error("failed to encode playback state", logging.String(logging.FieldEventType, event), logging.Error(err))
		return
	}
	if err := t.store.Set(StorageKey, string(data)); err != nil {
		t.logger.Warn("failed to persist playback state", logging.String(logging.FieldEventType, event), logging.Error(err))
	}
}
