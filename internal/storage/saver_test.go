package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"medcom_capture/pkg/logger"
)

func TestFileName(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 5, 123, time.UTC)
	got := FileName("medcom-meeting", at, "webm")
	if got != "medcom-meeting-2026-10-18T09-30-05.webm" {
		t.Errorf("unexpected file name %q", got)
	}
	if strings.Contains(got, ":") {
		t.Error("file name must not contain colons")
	}

	pattern := regexp.MustCompile(`^medcom-meeting-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}\.webm$`)
	if !pattern.MatchString(FileName("medcom-meeting", time.Now(), "webm")) {
		t.Error("file name does not match timestamp pattern")
	}
}

func TestDiskSaverWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	s := NewDiskSaver(dir, logger.NewNop())

	path, err := s.Save("a.webm", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("unexpected content %q", data)
	}

	second, err := s.Save("a.webm", strings.NewReader("again"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(second) != "a (1).webm" {
		t.Errorf("expected de-duplicated name, got %s", filepath.Base(second))
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".partial-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDiskSaverRejectsPaths(t *testing.T) {
	s := NewDiskSaver(t.TempDir(), logger.NewNop())
	for _, name := range []string{"", "../escape.webm", "sub/dir.webm"} {
		if _, err := s.Save(name, strings.NewReader("x")); err == nil {
			t.Errorf("expected error for %q", name)
		}
	}
}
