package playback

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/csams/sterncast/internal/models"
)

// StorageKey is the key the state blob is persisted under.
const StorageKey = "sternengeschichten_playback"

// State is the user's interaction state with episodes. It only ever refers to
// episodes by ID.
type State struct {
	CurrentEpisodeID  string
	SelectedEpisodeID string
	Positions         map[string]models.PlaybackPosition
	Played            map[string]struct{}
}

func newState() State {
	return State{
		Positions: make(map[string]models.PlaybackPosition),
		Played:    make(map[string]struct{}),
	}
}

func (s State) clone() State {
	out := State{
		CurrentEpisodeID:  s.CurrentEpisodeID,
		SelectedEpisodeID: s.SelectedEpisodeID,
		Positions:         make(map[string]models.PlaybackPosition, len(s.Positions)),
		Played:            make(map[string]struct{}, len(s.Played)),
	}
	for id, pos := range s.Positions {
		out.Positions[id] = pos
	}
	for id := range s.Played {
		out.Played[id] = struct{}{}
	}
	return out
}

// PlayedIDs returns the played set in sorted order.
func (s State) PlayedIDs() []string {
	ids := make([]string, 0, len(s.Played))
	for id := range s.Played {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// blob is the persisted shape. Older revisions wrote only currentEpisodeId, or
// currentEpisodeId plus playedEpisodes; missing fields decode as empty.
type blob struct {
	CurrentEpisodeID  *string      `json:"currentEpisodeId"`
	SelectedEpisodeID *string      `json:"selectedEpisodeId"`
	PlaybackPositions positionList `json:"playbackPositions"`
	PlayedEpisodes    []string     `json:"playedEpisodes"`
}

// positionList is a list of [id, position] pairs.
type positionList []positionEntry

type positionEntry struct {
	ID       string
	Position models.PlaybackPosition
}

func (e positionEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.ID, e.Position})
}

func (e *positionEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("position entry: expected [id, position], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return fmt.Errorf("position entry id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Position); err != nil {
		return fmt.Errorf("position entry %q: %w", e.ID, err)
	}
	return nil
}

func encodeState(s State) ([]byte, error) {
	b := blob{
		PlaybackPositions: make(positionList, 0, len(s.Positions)),
		PlayedEpisodes:    s.PlayedIDs(),
	}
	if s.CurrentEpisodeID != "" {
		id := s.CurrentEpisodeID
		b.CurrentEpisodeID = &id
	}
	if s.SelectedEpisodeID != "" {
		id := s.SelectedEpisodeID
		b.SelectedEpisodeID = &id
	}

	ids := make([]string, 0, len(s.Positions))
	for id := range s.Positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b.PlaybackPositions = append(b.PlaybackPositions, positionEntry{ID: id, Position: s.Positions[id]})
	}
	return json.Marshal(b)
}

// decodeState parses a persisted blob of any revision.
func decodeState(data []byte) (State, error) {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return State{}, err
	}

	s := newState()
	if b.CurrentEpisodeID != nil {
		s.CurrentEpisodeID = *b.CurrentEpisodeID
	}
	if b.SelectedEpisodeID != nil {
		s.SelectedEpisodeID = *b.SelectedEpisodeID
	}
	for _, entry := range b.PlaybackPositions {
		pos := entry.Position
		if pos.EpisodeID == "" {
			pos.EpisodeID = entry.ID
		}
		s.Positions[entry.ID] = pos
	}
	for _, id := range b.PlayedEpisodes {
		s.Played[id] = struct{}{}
	}
	return s, nil
}
