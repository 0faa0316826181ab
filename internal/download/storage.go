package download

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/csams/sterncast/internal/logging"
)

// StorageStats summarizes completed downloads.
type StorageStats struct {
	Episodes   int
	TotalBytes int64
	Failed     int
}

// Stats counts completed downloads whose files still exist.
func (m *Manager) Stats() StorageStats {
	var stats StorageStats
	for _, info := range m.registry.All() {
		switch ParseStatus(info.Status) {
		case StatusCompleted:
			stat, err := os.Stat(info.Path)
			if err != nil {
				continue
			}
			stats.Episodes++
			stats.TotalBytes += stat.Size()
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// PrunePlayed deletes downloads of episodes that isPlayed reports as played.
// It returns the number of files removed and the bytes freed.
func (m *Manager) PrunePlayed(isPlayed func(episodeID string) bool) (int, int64, error) {
	var (
		removed int
		freed   int64
		result  *multierror.Error
	)
	for _, info := range m.registry.All() {
		if ParseStatus(info.Status) != StatusCompleted || !isPlayed(info.EpisodeID) {
			continue
		}
		var size int64
		if stat, err := os.Stat(info.Path); err == nil {
			size = stat.Size()
		} else if !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, fmt.Errorf("stat %s: %w", info.Path, err))
			continue
		}
		if err := m.Remove(info.EpisodeID); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		removed++
		freed += size
	}

	if removed > 0 {
		m.logger.Info("pruned played downloads",
			logging.Int("episodes", removed),
			logging.Int64("bytes", freed),
		)
	}
	return removed, freed, result.ErrorOrNil()
}
