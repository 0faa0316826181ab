package kvstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreGetMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	v, ok, err := s.Get("nothing")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if ok || v != "" {
		t.Errorf("Expected missing key, got %q (ok=%v)", v, ok)
	}
}

func TestFileStoreSetGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	if err := s.Set("sternengeschichten_playback", `{"a":1}`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := s.Set("sternengeschichten_playback", `{"a":2}`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	v, ok, err := s.Get("sternengeschichten_playback")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok || v != `{"a":2}` {
		t.Errorf("Expected latest value, got %q (ok=%v)", v, ok)
	}

	// A second store on the same directory sees the value
	other, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if v, ok, _ := other.Get("sternengeschichten_playback"); !ok || v != `{"a":2}` {
		t.Errorf("Expected value visible to second store, got %q", v)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", "with space"} {
		if err := s.Set(key, "x"); err == nil {
			t.Errorf("Expected error for key %q", key)
		}
	}
}

func TestFileStoreDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("Expected key to be gone after Delete")
	}
	if err := s.Delete("k"); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
}
