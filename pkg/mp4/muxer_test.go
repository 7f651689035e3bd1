package mp4

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestMuxerLifecycleVideoOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	m := New()
	if m.IsOpen() {
		t.Fatalf("fresh Muxer should not be open")
	}

	configRecord := []byte{1, 2, 3, 4}
	if err := m.Initialize(path, false, 1920, 1080, 30, configRecord); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !m.IsOpen() {
		t.Fatalf("Muxer should be open after Initialize")
	}

	if err := m.AppendVideo([]byte{0xAA, 0xBB, 0xCC}, true); err != nil {
		t.Fatalf("AppendVideo: %v", err)
	}
	if err := m.AppendVideo([]byte{0xDD, 0xEE}, false); err != nil {
		t.Fatalf("AppendVideo: %v", err)
	}

	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	verifyContainer(t, data)
}

func TestMuxerFinalizeWithoutInitializeFails(t *testing.T) {
	m := New()
	if err := m.Finalize(); err == nil {
		t.Fatalf("want error finalizing an Unset muxer")
	}
}

func TestMuxerCloseWithoutInitializeIsNoop(t *testing.T) {
	m := New()
	if err := m.Close(); err != nil {
		t.Fatalf("Close on never-opened muxer: %v", err)
	}
}

func TestMuxerAudioLazilyCreatesTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")
	m := New()
	if err := m.Initialize(path, false, 640, 480, 30, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := m.AppendVideo([]byte{0x01}, true); err != nil {
		t.Fatalf("AppendVideo: %v", err)
	}
	asc := BuildAudioSpecificConfig(48000, 2)
	if err := m.AppendAudio([]byte{0x02, 0x03}, 1024, 48000, 2, asc); err != nil {
		t.Fatalf("AppendAudio: %v", err)
	}
	if m.audio == nil {
		t.Fatalf("audio track should be created on first AppendAudio call")
	}
	if m.audio.count() != 1 {
		t.Fatalf("audio sample count = %d, want 1", m.audio.count())
	}
	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

// verifyContainer walks the top-level boxes and confirms ftyp, mdat (with a
// back-patched largesize matching the file), and moov are all present and
// that mdat's declared extent covers every sample byte written.
func verifyContainer(t *testing.T, data []byte) {
	t.Helper()
	off := 0
	var sawFtyp, sawMdat, sawMoov bool
	var mdatSize uint64

	for off < len(data) {
		if off+8 > len(data) {
			t.Fatalf("truncated box header at offset %d", off)
		}
		size32 := binary.BigEndian.Uint32(data[off : off+4])
		fourcc := string(data[off+4 : off+8])
		boxSize := uint64(size32)
		headerLen := 8
		if size32 == 1 {
			if off+16 > len(data) {
				t.Fatalf("truncated largesize field at offset %d", off)
			}
			boxSize = binary.BigEndian.Uint64(data[off+8 : off+16])
			headerLen = 16
		}
		if boxSize < uint64(headerLen) || off+int(boxSize) > len(data) {
			t.Fatalf("box %q at offset %d has invalid size %d (file is %d bytes)", fourcc, off, boxSize, len(data))
		}

		switch fourcc {
		case "ftyp":
			sawFtyp = true
		case "mdat":
			sawMdat = true
			mdatSize = boxSize
		case "moov":
			sawMoov = true
		}
		off += int(boxSize)
	}

	if !sawFtyp {
		t.Fatalf("missing ftyp box")
	}
	if !sawMdat {
		t.Fatalf("missing mdat box")
	}
	if !sawMoov {
		t.Fatalf("missing moov box")
	}
	if mdatSize == 0 {
		t.Fatalf("mdat largesize was never patched (still 0)")
	}
}
