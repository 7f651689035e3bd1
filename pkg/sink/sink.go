// Package sink implements the append-only output file the muxer writes
// through: truncate-create on open, synchronous writes, and a cached
// logical position so callers never need a redundant stat/seek to know
// where they are.
package sink

import (
	"fmt"
	"os"

	"github.com/nvstream/coreenc/pkg/encerr"
)

// ByteSink is a single append-mostly file with a tracked logical position.
// It is exclusively owned by the Mp4Muxer; nothing else touches the
// underlying *os.File.
type ByteSink struct {
	f   *os.File
	pos int64
}

// Open truncates and creates the file at path, matching the muxer's
// expectation that every session starts from an empty file.
func Open(path string) (*ByteSink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", encerr.ErrOpenFailed, err)
	}
	return &ByteSink{f: f}, nil
}

// Write appends b at the current position, all-or-error.
func (s *ByteSink) Write(b []byte) error {
	n, err := s.f.Write(b)
	if err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrWriteShort, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: wrote %d of %d bytes", encerr.ErrWriteShort, n, len(b))
	}
	s.pos += int64(n)
	return nil
}

// Seek moves the file pointer to an absolute offset and updates the cached
// position. Seeking past the current end is not required by any caller in
// this pipeline.
func (s *ByteSink) Seek(absolute int64) error {
	off, err := s.f.Seek(absolute, os.SEEK_SET)
	if err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrSeekFailed, err)
	}
	s.pos = off
	return nil
}

// Tell returns the cached logical position, always equal to the OS file
// pointer since every mutation goes through Write or Seek.
func (s *ByteSink) Tell() int64 {
	return s.pos
}

// Close releases the underlying file handle.
func (s *ByteSink) Close() error {
	return s.f.Close()
}
