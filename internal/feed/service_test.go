package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/csams/sterncast/internal/logging"
	"github.com/csams/sterncast/internal/models"
	"github.com/csams/sterncast/internal/store"
)

type memoryCache struct {
	feed   *models.PodcastFeed
	putErr error
	getErr error
	puts   int
}

func (m *memoryCache) PutFeed(_ context.Context, feed *models.PodcastFeed) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.feed = feed
	return nil
}

func (m *memoryCache) GetFeed(context.Context) (*models.PodcastFeed, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.feed, nil
}

var fetchTime = time.UnixMilli(1710000000000)

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func cachedFeed() *models.PodcastFeed {
	return &models.PodcastFeed{
		Title:       "Cached",
		LastUpdated: 1600000000000,
		Episodes:    []models.Episode{{ID: "ep-1", Title: "Old", AudioURL: "https://example.com/1.mp3", EpisodeNumber: "1"}},
	}
}

func newService(url string, cache Cache) *Service {
	return NewService(url, cache, logging.NewNop(), WithClock(func() time.Time { return fetchTime }))
}

func TestFetch_SuccessPersistsFeed(t *testing.T) {
	server := feedServer(t, http.StatusOK, sampleFeed)
	cache := &memoryCache{}
	svc := newService(server.URL, cache)

	feed, source, err := svc.FetchWithSource(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if source != SourceNetwork {
		t.Errorf("Expected network source, got %s", source)
	}
	if len(feed.Episodes) != 3 {
		t.Errorf("Expected 3 episodes, got %d", len(feed.Episodes))
	}
	if feed.LastUpdated != fetchTime.UnixMilli() {
		t.Errorf("Expected LastUpdated %d, got %d", fetchTime.UnixMilli(), feed.LastUpdated)
	}
	if cache.puts != 1 || cache.feed == nil {
		t.Fatalf("Expected feed to be cached once, got %d writes", cache.puts)
	}
	if !reflect.DeepEqual(cache.feed, feed) {
		t.Errorf("Expected cached feed to equal returned feed")
	}
}

func TestFetch_SendsUserAgent(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	svc := NewService(server.URL, nil, logging.NewNop(), WithUserAgent("sterncast-test/1.0"))
	if _, err := svc.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if ua, _ := gotUA.Load().(string); ua != "sterncast-test/1.0" {
		t.Errorf("Expected user agent 'sterncast-test/1.0', got '%s'", ua)
	}
}

func TestFetch_NetworkErrorFallsBackToCache(t *testing.T) {
	server := feedServer(t, http.StatusOK, sampleFeed)
	url := server.URL
	server.Close()

	cached := cachedFeed()
	svc := newService(url, &memoryCache{feed: cached})

	feed, source, err := svc.FetchWithSource(context.Background())
	if err != nil {
		t.Fatalf("Expected cached fallback, got error: %v", err)
	}
	if source != SourceCache {
		t.Errorf("Expected cache source, got %s", source)
	}
	if !reflect.DeepEqual(feed, cached) {
		t.Errorf("Expected cached feed unchanged, got %+v", feed)
	}
}

func TestFetch_CancelledContextFallsBackToCache(t *testing.T) {
	handle := store.New(filepath.Join(t.TempDir(), "feed.db"), logging.NewNop())
	defer handle.Close()
	cached := cachedFeed()
	if err := handle.PutFeed(context.Background(), cached); err != nil {
		t.Fatalf("PutFeed returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newService("http://127.0.0.1:1/feed", handle)
	feed, source, err := svc.FetchWithSource(ctx)
	if err != nil {
		t.Fatalf("Expected cached fallback, got error: %v", err)
	}
	if source != SourceCache {
		t.Errorf("Expected cache source, got %s", source)
	}
	if feed == nil || feed.Title != cached.Title {
		t.Errorf("Expected cached feed %q, got %+v", cached.Title, feed)
	}
}

func TestFetch_NetworkErrorWithoutCache(t *testing.T) {
	server := feedServer(t, http.StatusOK, sampleFeed)
	url := server.URL
	server.Close()

	svc := newService(url, &memoryCache{})

	feed, err := svc.Fetch(context.Background())
	if feed != nil {
		t.Errorf("Expected nil feed, got %+v", feed)
	}
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if nerr.StatusCode != 0 {
		t.Errorf("Expected no status code for transport failure, got %d", nerr.StatusCode)
	}
}

func TestFetch_ServerError(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		server := feedServer(t, status, "Offline")
		svc := newService(server.URL, &memoryCache{})

		_, err := svc.Fetch(context.Background())
		var nerr *NetworkError
		if !errors.As(err, &nerr) {
			t.Fatalf("Expected NetworkError for status %d, got %v", status, err)
		}
		if nerr.StatusCode != status {
			t.Errorf("Expected status %d, got %d", status, nerr.StatusCode)
		}
	}
}

func TestFetch_ServerErrorFallsBackToCache(t *testing.T) {
	server := feedServer(t, http.StatusBadGateway, "")
	cached := cachedFeed()
	cache := &memoryCache{feed: cached}
	svc := newService(server.URL, cache)

	feed, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected cached fallback, got error: %v", err)
	}
	if feed.Title != "Cached" {
		t.Errorf("Expected cached feed, got '%s'", feed.Title)
	}
	if cache.puts != 0 {
		t.Errorf("Expected no cache write on failure, got %d", cache.puts)
	}
}

func TestFetch_ParseErrorFallsBackToCache(t *testing.T) {
	server := feedServer(t, http.StatusOK, "<rss><channel>")
	cached := cachedFeed()
	svc := newService(server.URL, &memoryCache{feed: cached})

	feed, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected cached fallback, got error: %v", err)
	}
	if !reflect.DeepEqual(feed, cached) {
		t.Errorf("Expected cached feed unchanged, got %+v", feed)
	}
}

func TestFetch_ParseErrorWithoutCache(t *testing.T) {
	server := feedServer(t, http.StatusOK, `<rss version="2.0"></rss>`)
	svc := newService(server.URL, nil)

	_, err := svc.Fetch(context.Background())
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
	if !errors.Is(err, ErrNoChannel) {
		t.Errorf("Expected ErrNoChannel, got %v", err)
	}
}

func TestFetch_CacheWriteFailureStillReturnsFeed(t *testing.T) {
	server := feedServer(t, http.StatusOK, sampleFeed)
	svc := newService(server.URL, &memoryCache{putErr: errors.New("read-only")})

	feed, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected fresh feed despite cache failure, got %v", err)
	}
	if len(feed.Episodes) != 3 {
		t.Errorf("Expected 3 episodes, got %d", len(feed.Episodes))
	}
}

func TestCached_NeverFails(t *testing.T) {
	svc := newService("http://unused.invalid", &memoryCache{getErr: errors.New("corrupt")})
	if feed, ok := svc.Cached(context.Background()); ok || feed != nil {
		t.Errorf("Expected absent on read failure, got %+v", feed)
	}

	svc = newService("http://unused.invalid", &memoryCache{})
	if _, ok := svc.Cached(context.Background()); ok {
		t.Error("Expected absent for empty slot")
	}

	svc = newService("http://unused.invalid", nil)
	if _, ok := svc.Cached(context.Background()); ok {
		t.Error("Expected absent without a cache")
	}
}

func TestFetch_TimeoutIsOptional(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	svc := NewService(server.URL, nil, logging.NewNop(), WithTimeout(50*time.Millisecond))
	_, err := svc.Fetch(context.Background())
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError on timeout, got %v", err)
	}
}

func TestFetch_RoundTripThroughStore(t *testing.T) {
	server := feedServer(t, http.StatusOK, sampleFeed)
	handle := store.New(filepath.Join(t.TempDir(), "feed.db"), logging.NewNop())
	defer handle.Close()

	svc := newService(server.URL, handle)
	fresh, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	cached, ok := svc.Cached(context.Background())
	if !ok {
		t.Fatal("Expected cached feed after fetch")
	}
	if !reflect.DeepEqual(fresh, cached) {
		t.Errorf("Expected cached feed to equal fetched feed\nfresh:  %+v\ncached: %+v", fresh, cached)
	}

	// Simulated network failure serves the same snapshot
	server.Close()
	offline, err := svc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected cached fallback, got %v", err)
	}
	if !reflect.DeepEqual(offline, cached) {
		t.Errorf("Expected offline fetch to return cached snapshot")
	}
}
