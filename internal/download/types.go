package download

import (
	"errors"
	"time"
)

// ErrAlreadyDownloaded is returned when the target file already exists.
var ErrAlreadyDownloaded = errors.New("episode already downloaded")

// DownloadStatus represents the current state of a download
type DownloadStatus int

const (
	StatusQueued DownloadStatus = iota
	StatusDownloading
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s DownloadStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus converts a persisted status string back to a DownloadStatus.
func ParseStatus(status string) DownloadStatus {
	switch status {
	case "queued":
		return StatusQueued
	case "downloading":
		return StatusDownloading
	case "completed":
		return StatusCompleted
	case "cancelled":
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Progress represents current download progress
type Progress struct {
	EpisodeID       string
	Status          DownloadStatus
	Fraction        float64 // 0.0 to 1.0, 0 when the size is unknown
	Speed           int64   // bytes per second
	BytesDownloaded int64
	TotalBytes      int64
	ETA             time.Duration
	RetryCount      int
	Err             error
}

// Info is the persisted record of one download.
type Info struct {
	EpisodeID   string    `json:"episodeId"`
	Title       string    `json:"title"`
	AudioURL    string    `json:"audioUrl"`
	Path        string    `json:"path,omitempty"`
	Status      string    `json:"status"`
	Size        int64     `json:"size"`
	LastError   string    `json:"lastError,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}
