// Package encerr holds the sentinel errors shared across the encode/mux
// pipeline so callers can distinguish failure categories with errors.Is.
package encerr

import "errors"

var (
	// Setup failures.
	ErrDriverUnavailable = errors.New("nvenc driver unavailable")
	ErrApiCreateFailed   = errors.New("nvenc api create failed")
	ErrSessionOpenFailed = errors.New("nvenc session open failed")

	// Config-time failures.
	ErrEncoderInitFailed  = errors.New("video encoder init failed")
	ErrAudioInitFailed    = errors.New("audio encoder init failed")
	ErrAacEncoderNotFound = errors.New("system aac encoder not found")

	// Per-frame failures.
	ErrSubmitFailed = errors.New("picture submit failed")
	ErrLockFailed   = errors.New("bitstream lock failed")
	ErrUnlockFailed = errors.New("bitstream unlock failed")
	ErrAsyncTimeout = errors.New("async completion timeout")

	// I/O failures.
	ErrOpenFailed        = errors.New("open failed")
	ErrWriteShort        = errors.New("short write")
	ErrSeekFailed        = errors.New("seek failed")
	ErrWriterThreadError = errors.New("writer thread error")

	// Muxer-level failures.
	ErrVideoHeaderMissing = errors.New("video codec header not found")
	ErrAudioFormatMismatch = errors.New("audio format mismatch")
)
