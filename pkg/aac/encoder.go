package aac

import (
	"fmt"
	"log/slog"

	"github.com/nvstream/coreenc/pkg/encerr"
	"github.com/nvstream/coreenc/pkg/mp4"

	"github.com/deepch/vdk/codec/aacparser"
)

const (
	samplesPerFrame  = 1024
	compactThreshold = 8192
	defaultBitrate   = 192000
)

// AccessUnit is one produced AAC-LC access unit; Duration is always 1024.
type AccessUnit struct {
	Data     []byte
	Duration uint32
}

// Encoder owns the OS AAC transform and the PCM accumulation buffer.
type Encoder struct {
	log       *slog.Logger
	transform Transform

	initialized bool
	finalized   bool
	sampleRate  int
	channels    int

	buf    []int16
	cursor int

	frameIndex int64
	asc        []byte

	lastErr error
}

// New returns an Encoder that lazily initializes on the first Write call.
func New(log *slog.Logger, transform Transform) *Encoder {
	return &Encoder{log: log, transform: transform}
}

// ASC returns the 2-byte AudioSpecificConfig, valid once initialized.
func (e *Encoder) ASC() []byte { return e.asc }

// SampleRate and Channels report the format established by the first
// Write call.
func (e *Encoder) SampleRate() int { return e.sampleRate }
func (e *Encoder) Channels() int   { return e.channels }

// Write appends interleaved float PCM samples (total count across
// channels) and returns every full AAC access unit produced as a side
// effect of buffering this call's input. An empty input is a no-op that
// returns success without state change.
func (e *Encoder) Write(samples []float32, sampleRate, channels int) ([]AccessUnit, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	if !e.initialized {
		if err := e.init(sampleRate, channels); err != nil {
			return nil, err
		}
	} else if sampleRate != e.sampleRate || channels != e.channels {
		return nil, fmt.Errorf("%w: have %dHz/%dch, got %dHz/%dch",
			encerr.ErrAudioFormatMismatch, e.sampleRate, e.channels, sampleRate, channels)
	}

	for _, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		e.buf = append(e.buf, int16(f*32767))
	}

	var units []AccessUnit
	frameSamples := samplesPerFrame * e.channels
	for len(e.buf)-e.cursor >= frameSamples {
		frame := e.buf[e.cursor : e.cursor+frameSamples]
		e.cursor += frameSamples
		out, err := e.pushFrame(frame)
		if err != nil {
			return units, err
		}
		units = append(units, out...)
	}

	if e.cursor > compactThreshold {
		e.buf = append([]int16(nil), e.buf[e.cursor:]...)
		e.cursor = 0
	}
	return units, nil
}

func (e *Encoder) init(sampleRate, channels int) error {
	if err := e.transform.Initialize(sampleRate, channels, defaultBitrate); err != nil {
		return fmt.Errorf("%w: %v", encerr.ErrAudioInitFailed, err)
	}
	asc := mp4.BuildAudioSpecificConfig(sampleRate, channels)
	if _, err := aacparser.NewCodecDataFromMPEG4AudioConfigBytes(asc); err != nil {
		return fmt.Errorf("%w: built an invalid AudioSpecificConfig: %v", encerr.ErrAudioInitFailed, err)
	}
	e.sampleRate = sampleRate
	e.channels = channels
	e.asc = asc
	e.initialized = true
	return nil
}

// frameDuration100ns is 1024 * 1e7 / sampleRate, in 100ns units.
func (e *Encoder) frameDuration100ns() int64 {
	return int64(samplesPerFrame) * 10_000_000 / int64(e.sampleRate)
}

func (e *Encoder) pushFrame(frame []int16) ([]AccessUnit, error) {
	ts := e.frameIndex * e.frameDuration100ns()
	e.frameIndex++

	status, err := e.transform.ProcessInput(frame, ts)
	if err != nil {
		return nil, e.fail(err)
	}
	if status == InputNotAccepting {
		drained, err := e.drainAvailable()
		if err != nil {
			return drained, err
		}
		status, err = e.transform.ProcessInput(frame, ts)
		if err != nil {
			return drained, e.fail(err)
		}
		_ = status
		more, err := e.drainAvailable()
		return append(drained, more...), err
	}
	return e.drainAvailable()
}

// drainAvailable pulls every currently available output, retrying the pull
// on OutputStreamChange without setting a new output type, and stopping on
// OutputNeedMoreInput.
func (e *Encoder) drainAvailable() ([]AccessUnit, error) {
	var units []AccessUnit
	for {
		data, status, err := e.transform.ProcessOutput()
		if err != nil {
			return units, e.fail(err)
		}
		switch status {
		case OutputReady:
			units = append(units, AccessUnit{Data: data, Duration: samplesPerFrame})
		case OutputStreamChange:
			continue
		case OutputNeedMoreInput:
			return units, nil
		}
	}
}

// Finalize zero-pads any residual partial frame to 1024 samples/channel,
// encodes it, drains the transform, and pulls until NEED_MORE_INPUT.
func (e *Encoder) Finalize() ([]AccessUnit, error) {
	if !e.initialized || e.finalized {
		return nil, nil
	}
	e.finalized = true
	var units []AccessUnit

	residual := e.buf[e.cursor:]
	if len(residual) > 0 {
		frameSamples := samplesPerFrame * e.channels
		padded := make([]int16, frameSamples)
		copy(padded, residual)
		out, err := e.pushFrame(padded)
		units = append(units, out...)
		if err != nil {
			return units, err
		}
	}

	if err := e.transform.Drain(); err != nil {
		return units, e.fail(err)
	}
	more, err := e.drainAvailable()
	return append(units, more...), err
}

// Close releases the transform.
func (e *Encoder) Close() error {
	if !e.initialized {
		return nil
	}
	return e.transform.Close()
}

func (e *Encoder) LastError() error { return e.lastErr }

func (e *Encoder) fail(err error) error {
	e.lastErr = err
	if e.log != nil {
		e.log.Error("audio encoder failure", "error", err)
	}
	return err
}
