package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ProgressReader wraps an io.Reader to track download progress
type ProgressReader struct {
	reader    io.Reader
	total     int64
	current   int64
	interval  time.Duration
	callback  func(current, total, speed int64)
	lastTime  time.Time
	lastBytes int64
}

// NewProgressReader creates a progress tracking reader that reports at most
// once per second.
func NewProgressReader(reader io.Reader, total int64, callback func(current, total, speed int64)) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		total:    total,
		interval: time.Second,
		callback: callback,
		lastTime: time.Now(),
	}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)

	now := time.Now()
	if elapsed := now.Sub(pr.lastTime); elapsed >= pr.interval || err == io.EOF {
		var speed int64
		if elapsed > 0 {
			speed = int64(float64(pr.current-pr.lastBytes) / elapsed.Seconds())
		}
		if pr.callback != nil {
			pr.callback(pr.current, pr.total, speed)
		}
		pr.lastTime = now
		pr.lastBytes = pr.current
	}

	return n, err
}

// Downloader fetches single files over HTTP into a target directory. Partial
// downloads live in tempDir and are resumed with a Range request.
type Downloader struct {
	client    *http.Client
	tempDir   string
	userAgent string
}

func NewDownloader(tempDir, userAgent string) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: 30 * time.Minute, // Long timeout for large files
		},
		tempDir:   tempDir,
		userAgent: userAgent,
	}
}

// DownloadFile downloads url to targetPath with progress tracking and resume support.
func (d *Downloader) DownloadFile(ctx context.Context, url, targetPath string, progressCallback func(current, total, speed int64)) error {
	if _, err := os.Stat(targetPath); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyDownloaded, targetPath)
	}

	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	tempPath := d.tempPath(targetPath)

	var resumeBytes int64
	if stat, err := os.Stat(tempPath); err == nil {
		resumeBytes = stat.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if resumeBytes > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeBytes))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var totalSize int64
	if resumeBytes > 0 && resp.StatusCode == http.StatusPartialContent {
		// Format: "bytes 200-1023/1024"
		var start, end, total int64
		if n, err := fmt.Sscanf(resp.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &total); n == 3 && err == nil {
			totalSize = total
		}
	} else {
		// Server ignored the range, start over
		resumeBytes = 0
		if size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
			totalSize = size
		}
	}

	var file *os.File
	if resumeBytes > 0 {
		file, err = os.OpenFile(tempPath, os.O_WRONLY|os.O_APPEND, 0o644)
	} else {
		file, err = os.Create(tempPath)
	}
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	reader := NewProgressReader(resp.Body, totalSize, func(current, total, speed int64) {
		if progressCallback != nil {
			progressCallback(resumeBytes+current, total, speed)
		}
	})

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to move file to final location: %w", err)
	}
	return nil
}

// CleanupTempFile removes the partial download for targetPath.
func (d *Downloader) CleanupTempFile(targetPath string) error {
	if err := os.Remove(d.tempPath(targetPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to cleanup temp file: %w", err)
	}
	return nil
}

func (d *Downloader) tempPath(targetPath string) string {
	return filepath.Join(d.tempDir, filepath.Base(targetPath)+".tmp")
}
