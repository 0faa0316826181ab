// Package feed retrieves the podcast feed, parses it and keeps the last good
// copy in a durable cache so the episode list is available offline.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/models"
)

// Cache is the durable single-slot feed store.
type Cache interface {
	PutFeed(ctx context.Context, feed *models.PodcastFeed) error
	GetFeed(ctx context.Context) (*models.PodcastFeed, error)
}

// Source tells where a returned feed came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceCache
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "network"
}

// Service fetches the feed from a fixed URL.
type Service struct {
	client    *http.Client
	url       string
	userAgent string
	cache     Cache
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

func WithUserAgent(ua string) Option {
	return func(s *Service) { s.userAgent = ua }
}

// WithTimeout bounds each request. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.client = &http.Client{Transport: s.client.Transport, Timeout: d}
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service for url backed by cache. cache may be nil, in
// which case nothing is persisted and there is no offline fallback.
func NewService(url string, cache Cache, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		client: &http.Client{},
		url:    url,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "feed"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the feed location.
func (s *Service) URL() string {
	return s.url
}

// Fetch retrieves and parses the feed, falling back to the cached copy when
// either step fails. The original error is returned only when there is no
// cached copy.
func (s *Service) Fetch(ctx context.Context) (*models.PodcastFeed, error) {
	feed, _, err := s.FetchWithSource(ctx)
	return feed, err
}

// FetchWithSource is Fetch that also reports whether the feed is fresh or the
// cached fallback.
func (s *Service) FetchWithSource(ctx context.Context) (*models.PodcastFeed, Source, error) {
	feed, err := s.fetchRemote(ctx)
	if err == nil {
		return feed, SourceNetwork, nil
	}

	// The fallback runs even when ctx is what made the fetch fail.
	if cached, ok := s.Cached(context.WithoutCancel(ctx)); ok {
		s.logger.Warn("feed fetch failed, using cached feed",
			logging.Error(err),
			logging.Int("episodes", len(cached.Episodes)),
		)
		return cached, SourceCache, nil
	}
	s.logger.Error("feed fetch failed with no cached feed", logging.Error(err))
	return nil, SourceNetwork, err
}

// Cached returns the cached feed without touching the network. Read failures
// are logged and reported as absent.
func (s *Service) Cached(ctx context.Context) (*models.PodcastFeed, bool) {
	if s.cache == nil {
		return nil, false
	}
	feed, err := s.cache.GetFeed(ctx)
	if err != nil {
		s.logger.Warn("failed to read cached feed", logging.Error(err))
		return nil, false
	}
	if feed == nil {
		return nil, false
	}
	return feed, true
}

func (s *Service) fetchRemote(ctx context.Context) (*models.PodcastFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &NetworkError{URL: s.url, Err: err}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{
			URL:        s.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: s.url, Err: fmt.Errorf("read response: %w", err)}
	}

	now := s.now()
	feed, err := Parse(data, now)
	if err != nil {
		return nil, err
	}
	feed.LastUpdated = models.NowMillis(now)

	s.logger.Info("fetched feed",
		logging.String("title", feed.Title),
		logging.Int("episodes", len(feed.Episodes)),
	)

	if s.cache != nil {
		if err := s.cache.PutFeed(ctx, feed); err != nil {
			s.logger.Warn("failed to cache feed", logging.Error(err))
		}
	}
	return feed, nil
}
