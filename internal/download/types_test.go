package download

import "testing"

func TestDownloadStatus_String(t *testing.T) {
	tests := []struct {
		status   DownloadStatus
		expected string
	}{
		{StatusQueued, "queued"},
		{StatusDownloading, "downloading"},
		{StatusCompleted, "completed"},
		{StatusFailed, "failed"},
		{StatusCancelled, "cancelled"},
		{DownloadStatus(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
			if tt.expected != "unknown" && ParseStatus(tt.expected) != tt.status {
				t.Errorf("Expected ParseStatus(%q) to round trip", tt.expected)
			}
		})
	}

	if ParseStatus("garbage") != StatusFailed {
		t.Error("Expected unknown status strings to parse as failed")
	}
}
