// Package download stores episode audio locally for offline playback.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/models"
)

const (
	defaultExtension = ".mp3"
	maxFilenameLen   = 200
)

// Manager downloads episodes into a directory and records them in a registry.
type Manager struct {
	dir        string
	registry   *Registry
	downloader *Downloader
	logger     *slog.Logger

	maxConcurrent int
	maxRetries    int
	backoff       func(retry int) time.Duration
	now           func() time.Time

	mu     sync.Mutex
	active map[string]struct{}
}

type Option func(*Manager)

// WithConcurrency bounds the number of parallel downloads in DownloadAll.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

// WithRetries sets how often a failed download is retried.
func WithRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

func WithBackoff(fn func(retry int) time.Duration) Option {
	return func(m *Manager) { m.backoff = fn }
}

func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.downloader.client = client }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager opens the download directory and loads its registry.
func NewManager(dir, userAgent string, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	m := &Manager{
		dir:           dir,
		registry:      NewRegistry(dir),
		downloader:    NewDownloader(filepath.Join(dir, "temp"), userAgent),
		logger:        logging.NewComponentLogger(logger, "download"),
		maxConcurrent: 2,
		maxRetries:    3,
		backoff:       exponentialBackoff,
		now:           time.Now,
		active:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.registry.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// exponentialBackoff waits 1s, 2s, 4s ... capped at 16s.
func exponentialBackoff(retry int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(retry-1))) * time.Second
	if delay > 16*time.Second {
		delay = 16 * time.Second
	}
	return delay
}

func (m *Manager) Dir() string {
	return m.dir
}

// Filename derives the local file name from the episode number and title.
func Filename(ep models.Episode) string {
	base := slug.Make(strings.TrimSpace(ep.EpisodeNumber + " " + ep.Title))
	if base == "" {
		base = slug.Make(ep.ID)
	}
	if base == "" {
		base = "episode"
	}
	if len(base) > maxFilenameLen {
		base = strings.Trim(base[:maxFilenameLen], "-")
	}
	return base + extensionFor(ep.AudioURL)
}

func extensionFor(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil {
		return defaultExtension
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".flac", ".wav":
		return ext
	default:
		return defaultExtension
	}
}

// LocalPath returns the downloaded file for an episode if it exists.
func (m *Manager) LocalPath(episodeID string) (string, bool) {
	if !m.registry.IsDownloaded(episodeID) {
		return "", false
	}
	info, _ := m.registry.Get(episodeID)
	return info.Path, true
}

// Downloads returns every registry record.
func (m *Manager) Downloads() []Info {
	return m.registry.All()
}

// Download fetches one episode, retrying with backoff. It returns the local
// path. An existing download yields the path and ErrAlreadyDownloaded.
func (m *Manager) Download(ctx context.Context, ep models.Episode, onProgress func(Progress)) (string, error) {
	if ep.AudioURL == "" {
		return "", fmt.Errorf("episode %s has no audio URL", ep.ID)
	}
	if p, ok := m.LocalPath(ep.ID); ok {
		return p, fmt.Errorf("%w: %s", ErrAlreadyDownloaded, p)
	}

	if !m.claim(ep.ID) {
		return "", fmt.Errorf("episode %s is already downloading", ep.ID)
	}
	defer m.release(ep.ID)

	target := filepath.Join(m.dir, Filename(ep))
	info := Info{
		EpisodeID: ep.ID,
		Title:     ep.Title,
		AudioURL:  ep.AudioURL,
		Path:      target,
		Status:    StatusDownloading.String(),
		StartedAt: m.now(),
	}

	// A file from an earlier run that the registry lost track of.
	if stat, err := os.Stat(target); err == nil {
		info.Status = StatusCompleted.String()
		info.Size = stat.Size()
		info.CompletedAt = m.now()
		m.registry.Put(info)
		m.save()
		return target, fmt.Errorf("%w: %s", ErrAlreadyDownloaded, target)
	}

	m.registry.Put(info)
	m.save()

	prog := Progress{EpisodeID: ep.ID, Status: StatusDownloading}
	report := func(current, total, speed int64) {
		prog.BytesDownloaded = current
		prog.TotalBytes = total
		prog.Speed = speed
		if total > 0 {
			prog.Fraction = float64(current) / float64(total)
		}
		if speed > 0 && total > current {
			prog.ETA = time.Duration((total-current)/speed) * time.Second
		}
		if onProgress != nil {
			onProgress(prog)
		}
	}

	var lastErr error
	for retry := 0; retry <= m.maxRetries; retry++ {
		if retry > 0 {
			delay := m.backoff(retry)
			m.logger.Info("retrying download",
				logging.String("episode_id", ep.ID),
				logging.Int("attempt", retry+1),
				logging.String("delay", delay.String()),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", m.cancelled(ep.ID, ctx.Err())
			}
		}
		prog.RetryCount = retry

		err := m.downloader.DownloadFile(ctx, ep.AudioURL, target, report)
		if err == nil {
			return target, m.completed(info, onProgress)
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", m.cancelled(ep.ID, ctx.Err())
		}
		m.logger.Warn("download attempt failed",
			logging.String("episode_id", ep.ID),
			logging.Int("attempt", retry+1),
			logging.Error(err),
		)
	}

	err := fmt.Errorf("download failed after %d attempts: %w", m.maxRetries+1, lastErr)
	m.registry.SetStatus(ep.ID, StatusFailed, err)
	m.save()
	if cleanupErr := m.downloader.CleanupTempFile(target); cleanupErr != nil {
		m.logger.Warn("failed to remove partial download", logging.Error(cleanupErr))
	}
	if onProgress != nil {
		onProgress(Progress{EpisodeID: ep.ID, Status: StatusFailed, Err: err, RetryCount: m.maxRetries})
	}
	return "", err
}

func (m *Manager) completed(info Info, onProgress func(Progress)) error {
	stat, err := os.Stat(info.Path)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}
	info.Status = StatusCompleted.String()
	info.Size = stat.Size()
	info.CompletedAt = m.now()
	info.LastError = ""
	m.registry.Put(info)
	m.save()

	m.logger.Info("download completed",
		logging.String("episode_id", info.EpisodeID),
		logging.String("path", info.Path),
		logging.Int64("bytes", info.Size),
	)
	if onProgress != nil {
		onProgress(Progress{
			EpisodeID:       info.EpisodeID,
			Status:          StatusCompleted,
			Fraction:        1,
			BytesDownloaded: info.Size,
			TotalBytes:      info.Size,
		})
	}
	return nil
}

// cancelled keeps the partial file so a later run can resume it.
func (m *Manager) cancelled(episodeID string, cause error) error {
	m.registry.SetStatus(episodeID, StatusCancelled, nil)
	m.save()
	m.logger.Info("download cancelled", logging.String("episode_id", episodeID))
	return cause
}

// DownloadAll downloads episodes in parallel. Episodes already on disk are
// skipped; every other failure is collected into the returned error.
func (m *Manager) DownloadAll(ctx context.Context, episodes []models.Episode, onProgress func(Progress)) error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		result *multierror.Error
	)
	g.SetLimit(m.maxConcurrent)

	for _, ep := range episodes {
		ep := ep
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			_, err := m.Download(ctx, ep, onProgress)
			if err != nil && !errors.Is(err, ErrAlreadyDownloaded) {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s: %w", ep.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return result.ErrorOrNil()
}

// Remove deletes the local file and registry record of an episode.
func (m *Manager) Remove(episodeID string) error {
	info, ok := m.registry.Get(episodeID)
	if !ok {
		return fmt.Errorf("episode %s is not downloaded", episodeID)
	}
	if info.Path != "" {
		if err := os.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", info.Path, err)
		}
		if err := m.downloader.CleanupTempFile(info.Path); err != nil {
			m.logger.Warn("failed to remove partial download", logging.Error(err))
		}
	}
	m.registry.Remove(episodeID)
	m.save()
	return nil
}

func (m *Manager) claim(episodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[episodeID]; busy {
		return false
	}
	m.active[episodeID] = struct{}{}
	return true
}

func (m *Manager) release(episodeID string) {
	m.mu.Lock()
	delete(m.active, episodeID)
	m.mu.Unlock()
}

func (m *Manager) save() {
	if err := m.registry.Save(); err != nil {
		m.logger.Warn("failed to save download registry", logging.Error(err))
	}
}
