package nvenc

import (
	"fmt"
	"log/slog"

	"github.com/nvstream/coreenc/pkg/encerr"
)

const asyncDepth = 4

// State is the encoder session lifecycle:
// UNINITIALIZED -> READY -> RUNNING -> DRAINING -> CLOSED.
type State int

const (
	Uninitialized State = iota
	Ready
	Running
	Draining
	Closed
)

// Encoder owns the NVENC session, the owned input surface (RGB staging
// texture or NV12 fast-path texture) and its registration cache, and the
// ring of output bitstream slots.
type Encoder struct {
	log     *slog.Logger
	session Session
	params  InitParams

	state State

	depth      int
	pending    []bool
	asyncIndex int

	// useNV12 selects the fast-preset color-space-conversion input path
	// over the default RGB staging-texture path. Decided once at Open,
	// since it depends on whether the device can create a converter, not
	// on anything that varies per frame.
	useNV12 bool

	ownedSurface   uintptr
	registeredFmt  PixelFormat
	registeredHandle uintptr
	haveRegistered bool

	frameIndex int64

	lastErr error
}

// Open constructs the encoder and initializes the hardware session. GOP
// length and IDR period are forced equal so every GOP boundary is an IDR,
// which keeps fast-start and resync behavior predictable for a live
// encode. No P-frame interval (B-frame) setting is passed to the session.
func Open(log *slog.Logger, session Session, deviceHandle uintptr, params InitParams) (*Encoder, error) {
	fps := params.FPS
	if fps <= 0 {
		fps = 1
	}
	gop := fps * 2
	if params.FastPreset {
		gop = fps * 4
	}
	params.GOPLength = gop
	params.IDRPeriod = gop

	if err := session.Open(deviceHandle, params); err != nil {
		return nil, fmt.Errorf("%w: %w", encerr.ErrEncoderInitFailed, err)
	}

	e := &Encoder{log: log, session: session, params: params, state: Ready}
	e.depth = session.AsyncDepth()
	if e.depth > 0 {
		e.pending = make([]bool, e.depth)
	}

	if params.FastPreset {
		if _, err := session.EnsureNV12Surface(params.Width, params.Height); err == nil {
			e.useNV12 = true
		} else if log != nil {
			log.Warn("NV12 fast path unavailable, falling back to RGB staging path", "error", err)
		}
	}
	return e, nil
}

// State returns the encoder's current lifecycle state.
func (e *Encoder) State() State { return e.state }

// LastError returns the most recent fatal error, if any.
func (e *Encoder) LastError() error { return e.lastErr }

// Submit drives one picture through the per-frame protocol: select the
// next async slot, consuming its previous completion first if still
// pending; map/register the input surface; submit. In async mode the
// just-submitted slot is marked pending and its completion is left for a
// later Submit (when the slot comes back around the ring) or Drain to
// consume — Submit never blocks on a completion it just produced, which
// is what keeps the asyncDepth-deep ring pipelined instead of collapsing
// into per-frame synchronous waits. In async mode Submit returns the bytes
// of the earlier completion it consumed from the reused slot (nil if the
// slot was not pending). In sync mode (depth == 0) there is no ring to
// pipeline against, so the completion is consumed immediately.
func (e *Encoder) Submit(sourceTexture uintptr) ([]byte, error) {
	if e.state == Closed {
		return nil, e.lastErr
	}

	slot := 0
	var completed []byte
	if e.depth > 0 {
		slot = e.asyncIndex % e.depth
		if e.pending[slot] {
			b, err := e.session.ConsumeSlot(slot)
			if err != nil {
				return nil, e.fail(err)
			}
			e.pending[slot] = false
			completed = b
		}
	}

	surface, err := e.prepareSurface(sourceTexture)
	if err != nil {
		return nil, e.fail(err)
	}

	pic := Picture{Surface: surface, Timestamp: e.frameIndex}
	e.frameIndex++

	result, err := e.session.EncodePicture(slot, pic)
	if err != nil {
		return nil, e.fail(fmt.Errorf("%w: %v", encerr.ErrSubmitFailed, err))
	}
	e.state = Running

	if e.depth > 0 {
		e.pending[slot] = true
		e.asyncIndex++
		return completed, nil
	}

	if result == SubmitNeedMoreInput {
		return nil, nil
	}

	out, err := e.session.ConsumeSlot(slot)
	if err != nil {
		return nil, e.fail(err)
	}
	return out, nil
}

// prepareSurface drives one of the two input paths onto sourceTexture and
// returns the registration handle EncodePicture submits:
//
//   - NV12 fast path: ensure the owned NV12 output texture (recreating it
//     if the size changed), blt sourceTexture into it, register once.
//   - RGB staging path (default): ensure the owned staging texture
//     (recreating it if missing or the size changed), copy sourceTexture
//     into it via the device context, register once.
//
// In both paths the registration is against the owned surface, not the
// caller-supplied sourceTexture, and is reused across submits as long as
// the owned surface handle is unchanged.
func (e *Encoder) prepareSurface(sourceTexture uintptr) (uintptr, error) {
	if e.useNV12 {
		nv12, err := e.session.EnsureNV12Surface(e.params.Width, e.params.Height)
		if err != nil {
			return 0, err
		}
		if err := e.session.BltToNV12(nv12, sourceTexture); err != nil {
			return 0, err
		}
		return e.registerOwnedSurface(nv12, FormatNV12)
	}

	staging, err := e.session.EnsureStagingSurface(e.params.Width, e.params.Height)
	if err != nil {
		return 0, err
	}
	if err := e.session.CopyToStaging(staging, sourceTexture); err != nil {
		return 0, err
	}
	return e.registerOwnedSurface(staging, e.params.InputFormat)
}

func (e *Encoder) registerOwnedSurface(owned uintptr, format PixelFormat) (uintptr, error) {
	if e.haveRegistered && e.ownedSurface == owned && e.registeredFmt == format {
		return e.registeredHandle, nil
	}
	reg, err := e.session.RegisterSurface(owned, format)
	if err != nil {
		return 0, err
	}
	e.ownedSurface = owned
	e.registeredFmt = format
	e.registeredHandle = reg
	e.haveRegistered = true
	return reg, nil
}

// Drain submits the EOS picture and walks every pending slot in index
// order, returning the Annex-B bytes of each consumed slot as a separate
// slice, the EOS slot's first.
func (e *Encoder) Drain() ([][]byte, error) {
	if e.state == Uninitialized || e.state == Ready || e.state == Closed {
		e.state = Closed
		return nil, nil
	}
	e.state = Draining

	eosResult, err := e.session.EncodePicture(EOSSlot, Picture{EOS: true})
	if err != nil {
		return nil, e.fail(fmt.Errorf("%w: %v", encerr.ErrSubmitFailed, err))
	}
	_ = eosResult
	out, err := e.session.ConsumeSlot(EOSSlot)
	if err != nil {
		return nil, e.fail(err)
	}
	results := [][]byte{out}

	if e.depth > 0 {
		for i := 0; i < e.depth; i++ {
			if !e.pending[i] {
				continue
			}
			b, err := e.session.ConsumeSlot(i)
			if err != nil {
				return results, e.fail(err)
			}
			e.pending[i] = false
			results = append(results, b)
		}
	}

	e.state = Closed
	return results, nil
}

// Close releases the hardware session. Idempotent.
func (e *Encoder) Close() error {
	if e.state == Closed {
		return nil
	}
	e.state = Closed
	return e.session.Close()
}

func (e *Encoder) fail(err error) error {
	e.lastErr = err
	e.state = Closed
	if e.log != nil {
		e.log.Error("video encoder failure", "error", err)
	}
	return err
}
