// Package aac converts an unbounded interleaved float-PCM stream into AAC-LC
// access units of exactly 1024 samples/channel, driving the operating
// system's AAC encoder transform. The transform itself lives outside this
// package; Transform is the seam isolating this package's PCM-buffering
// state machine from it, mirroring nvenc.Session's dependency inversion
// over build-tag-gated hardware bindings.
package aac

// OutputStatus distinguishes the three pull outcomes the Media Foundation
// transform protocol defines.
type OutputStatus int

const (
	// OutputReady means Data holds one access unit.
	OutputReady OutputStatus = iota
	// OutputNeedMoreInput means the transform has nothing to emit yet;
	// not an error.
	OutputNeedMoreInput
	// OutputStreamChange means the output type changed and must be
	// re-adopted before the pull is retried; not an error.
	OutputStreamChange
)

// InputStatus distinguishes "accepted" from "transform is still draining
// its internal queue and cannot take more input yet".
type InputStatus int

const (
	InputAccepted InputStatus = iota
	InputNotAccepting
)

// Transform is the OS AAC-LC encoder transform (Windows Media Foundation's
// AAC encoder MFT in the reference binding). A concrete implementation
// lives behind a platform build tag (driver_windows.go).
type Transform interface {
	// Initialize configures the transform for 16-bit PCM input at the
	// given sample rate/channel count and AAC-LC output at the given
	// target bitrate (profile-level 0x29).
	Initialize(sampleRate, channels, bitrateBps int) error

	// ProcessInput pushes one 1024-samples/channel PCM frame with the
	// given 100ns timestamp.
	ProcessInput(pcm []int16, timestamp100ns int64) (InputStatus, error)

	// ProcessOutput pulls one available AAC access unit, if any.
	ProcessOutput() (data []byte, status OutputStatus, err error)

	// Drain signals end-of-stream; subsequent ProcessOutput calls drain
	// the transform's internal queue until OutputNeedMoreInput.
	Drain() error

	// Close releases the transform.
	Close() error
}
