package download

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const registryVersion = 1

// Registry persists download records as JSON next to the downloaded files.
type Registry struct {
	mu           sync.RWMutex
	registryPath string
	downloads    map[string]*Info
}

// registryData represents the persisted registry structure
type registryData struct {
	Downloads map[string]*Info `json:"downloads"`
	Version   int              `json:"version"`
}

func NewRegistry(dir string) *Registry {
	return &Registry{
		registryPath: filepath.Join(dir, "registry.json"),
		downloads:    make(map[string]*Info),
	}
}

// Load reads the registry from disk. A missing file is an empty registry.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.registryPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read registry file: %w", err)
	}

	var rd registryData
	if err := json.Unmarshal(data, &rd); err != nil {
		return fmt.Errorf("failed to parse registry file: %w", err)
	}

	r.downloads = rd.Downloads
	if r.downloads == nil {
		r.downloads = make(map[string]*Info)
	}
	return nil
}

// Save writes the registry to disk atomically.
func (r *Registry) Save() error {
	r.mu.RLock()
	data, err := json.MarshalIndent(registryData{Downloads: r.downloads, Version: registryVersion}, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(r.registryPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("failed to create registry temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.registryPath); err != nil {
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

// Put stores a copy of info.
func (r *Registry) Put(info Info) {
	if info.EpisodeID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads[info.EpisodeID] = &info
}

// SetStatus updates the status of an existing record.
func (r *Registry) SetStatus(episodeID string, status DownloadStatus, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.downloads[episodeID]
	if !ok {
		info = &Info{EpisodeID: episodeID}
		r.downloads[episodeID] = info
	}
	info.Status = status.String()
	info.LastError = ""
	if lastErr != nil {
		info.LastError = lastErr.Error()
	}
}

// Get returns a copy of the record for an episode.
func (r *Registry) Get(episodeID string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.downloads[episodeID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// All returns copies of every record ordered by episode ID.
func (r *Registry) All() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.downloads))
	for _, info := range r.downloads {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpisodeID < out[j].EpisodeID })
	return out
}

func (r *Registry) Remove(episodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.downloads, episodeID)
}

// IsDownloaded reports whether the episode completed and its file still exists.
func (r *Registry) IsDownloaded(episodeID string) bool {
	info, ok := r.Get(episodeID)
	if !ok || info.Status != StatusCompleted.String() || info.Path == "" {
		return false
	}
	_, err := os.Stat(info.Path)
	return err == nil
}
