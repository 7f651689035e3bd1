// Package nvenc drives the NVIDIA hardware video encoder session state
// machine: initialization, pipelined async submission, completion
// consumption, and EOS/drain. The GPU device, the source surfaces, and the
// NVENC vendor library itself are out-of-scope collaborators; Session is
// the seam that isolates this package's state machine from them, built on
// the same build-tag-gated hardware binding approach as the aac package's
// Media Foundation transform.
package nvenc

// Codec selects the hardware encoder's output codec.
type Codec int

const (
	H264 Codec = iota
	HEVC
)

// RateControlMode selects CBR or VBR rate control.
type RateControlMode int

const (
	CBR RateControlMode = iota
	VBR
)

// QualityPreset is a coarse quality/speed knob mapped onto the vendor
// preset+tuning GUID pair by the driver.
type QualityPreset int

const (
	QualityLow QualityPreset = iota
	QualityMedium
	QualityHigh
)

// PixelFormat names the input surface's color layout.
type PixelFormat int

const (
	FormatARGB PixelFormat = iota
	FormatNV12
)

// InitParams configures a Session at Open time, carrying every field the
// video encoder initialization step overrides on top of the vendor
// preset.
type InitParams struct {
	Width, Height   int
	FPS             int
	Codec           Codec
	RateControl     RateControlMode
	TargetBitrate   int
	MaxBitrate      int
	Quality         QualityPreset
	FastPreset      bool
	HEVCAsyncOptIn  bool
	InputFormat     PixelFormat
	GOPLength       int
	IDRPeriod       int
}

// Picture is one input submission: a registered-surface handle, its
// presentation timestamp (driven by frameIndex), and whether this is the
// end-of-stream picture.
type Picture struct {
	Surface   uintptr
	Timestamp int64
	EOS       bool
}

// EOSSlot is the slot index passed to EncodePicture/ConsumeSlot for the
// end-of-stream picture. It is a dedicated bitstream kept separate from
// the async ring so draining never contends with a still-pending regular
// frame occupying ring slot 0.
const EOSSlot = -1

// SubmitResult distinguishes "nothing to emit yet" from a hard failure;
// NeedMoreInput is not an error.
type SubmitResult int

const (
	SubmitOK SubmitResult = iota
	SubmitNeedMoreInput
)

// Session is the vendor NVENC session this package drives. A concrete
// implementation lives behind a platform build tag (driver_windows.go);
// code in this package never imports the vendor SDK directly.
type Session interface {
	// Open creates the encoder session bound to the caller-supplied GPU
	// device handle and applies InitParams, including async bitstream
	// slot allocation when async is requested.
	Open(deviceHandle uintptr, params InitParams) error

	// AsyncDepth returns the number of allocated async bitstream slots,
	// or 0 if the session degraded to synchronous single-buffer mode.
	AsyncDepth() int

	// RegisterSurface registers an input surface (or re-registers it if
	// size/format changed) and returns its registration handle.
	RegisterSurface(sourceTexture uintptr, format PixelFormat) (uintptr, error)

	// EnsureStagingSurface returns the session's owned RGB staging
	// texture sized to width x height, recreating it if missing or if
	// the size changed from the last call.
	EnsureStagingSurface(width, height int) (uintptr, error)

	// CopyToStaging copies sourceTexture into staging via the device
	// context.
	CopyToStaging(staging, sourceTexture uintptr) error

	// EnsureNV12Surface returns the session's owned NV12 output texture
	// backing the fast-preset color-space conversion path, sized to
	// width x height and recreated if the size changed. It returns
	// ErrDriverUnavailable if no color-space converter can be created on
	// this device, in which case the caller should fall back to the RGB
	// staging path.
	EnsureNV12Surface(width, height int) (uintptr, error)

	// BltToNV12 converts sourceTexture into nv12Surface via the video
	// processor backing EnsureNV12Surface.
	BltToNV12(nv12Surface, sourceTexture uintptr) error

	// EncodePicture submits one picture into the given slot index (0 for
	// sync mode, EOSSlot for the end-of-stream picture) and returns
	// whether the encoder needs more input before it will emit anything.
	EncodePicture(slot int, pic Picture) (SubmitResult, error)

	// ConsumeSlot waits for slot's completion (up to 5s in async mode),
	// locks its bitstream, and returns the Annex-B bytes it contains.
	// slot may be EOSSlot to consume the dedicated end-of-stream bitstream.
	ConsumeSlot(slot int) ([]byte, error)

	// Close tears down the session and releases every slot/event/surface
	// registration.
	Close() error
}
