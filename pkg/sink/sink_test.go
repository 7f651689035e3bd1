package sink

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteTracksPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.Tell() != 0 {
		t.Fatalf("initial Tell() = %d, want 0", s.Tell())
	}
	if err := s.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if s.Tell() != 5 {
		t.Fatalf("Tell() after write = %d, want 5", s.Tell())
	}
	if err := s.Write([]byte("!!!")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if s.Tell() != 8 {
		t.Fatalf("Tell() after second write = %d, want 8", s.Tell())
	}
}

func TestSeekAndPatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Write([]byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if s.Tell() != 0 {
		t.Fatalf("Tell() after seek = %d, want 0", s.Tell())
	}
	if err := s.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := append([]byte{1, 2, 3, 4}, "payload"...)
	if string(data) != string(want) {
		t.Fatalf("file contents = %x, want %x", data, want)
	}
}

func TestOpenTruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(path, []byte("stale data"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if s.Tell() != 0 {
		t.Fatalf("Tell() on freshly truncated file = %d, want 0", s.Tell())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("file not truncated, got %d bytes", len(data))
	}
}
