package coreenc

import (
	"log/slog"
	"os"
	"sync"

	"github.com/nvstream/coreenc/pkg/aac"
	"github.com/nvstream/coreenc/pkg/encerr"
	"github.com/nvstream/coreenc/pkg/mlog"
	"github.com/nvstream/coreenc/pkg/mp4"
	"github.com/nvstream/coreenc/pkg/nal"
	"github.com/nvstream/coreenc/pkg/nvenc"
	"github.com/nvstream/coreenc/pkg/writer"

	"github.com/google/uuid"
)

// Controller is the facade over the whole pipeline: it owns the
// VideoEncoder, AudioEncoder, Mp4Muxer, and WriterPump by composition, and
// is the only component whose lifetime callers manage directly.
type Controller struct {
	id     string
	log    *slog.Logger
	logFil *os.File

	mu     sync.Mutex
	cfg    SessionConfig
	nalCodec nal.Codec
	isHEVC bool

	video *nvenc.Encoder
	audio *aac.Encoder
	mux   *mp4.Muxer
	pump  *writer.Pump

	lastErr string
}

// Create constructs every subcomponent and initializes the VideoEncoder,
// but does not open the MP4 file yet: the codec configuration record is
// unknown until the first keyframe carrying parameter sets arrives.
func Create(deviceHandle uintptr, cfg SessionConfig) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	handler, logFile, err := mlog.DiagnosticFileHandler(cfg.OutputPath, slog.LevelInfo)
	var log *slog.Logger
	if err != nil {
		log = slog.New(mlog.NewConsole(slog.LevelInfo)).With("session", id)
	} else {
		multi := &mlog.MultiHandler{}
		multi.Add(mlog.NewConsole(slog.LevelInfo))
		multi.Add(handler)
		log = slog.New(multi).With("session", id)
	}

	c := &Controller{id: id, log: log, logFil: logFile, cfg: cfg}
	c.isHEVC = cfg.Codec == CodecHEVC
	if c.isHEVC {
		c.nalCodec = nal.HEVC
	} else {
		c.nalCodec = nal.H264
	}

	session := nvenc.NewDriver()
	video, err := nvenc.Open(log, session, deviceHandle, cfg.toNvencParams())
	if err != nil {
		c.setLastError(err)
		return c, err
	}
	c.video = video
	c.audio = aac.New(log, aac.NewDriver())
	c.mux = mp4.New()

	return c, nil
}

// EncodeFrame routes one input surface through the VideoEncoder, then the
// NalScanner, then (once the muxer is open) the WriterPump.
func (c *Controller) EncodeFrame(sourceTexture uintptr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	annexB, err := c.video.Submit(sourceTexture)
	if err != nil {
		c.setLastError(err)
		return false
	}
	if len(annexB) == 0 {
		return true // NEED_MORE_INPUT: success, nothing emitted
	}
	return c.ingestVideoSample(annexB)
}

func (c *Controller) ingestVideoSample(annexB []byte) bool {
	units := nal.Scan(annexB, c.nalCodec)
	keyframe := false
	for _, u := range units {
		if nal.IsKeyframe(u.Typ, c.nalCodec) {
			keyframe = true
			break
		}
	}

	if !c.mux.IsOpen() {
		configRecord, ok := c.buildConfigRecord(annexB, units)
		if !ok {
			// No parameter sets yet: the sample is silently dropped and
			// the muxer stays Unset.
			return true
		}
		if err := c.mux.Initialize(c.cfg.OutputPath, c.isHEVC, c.cfg.Width, c.cfg.Height, c.cfg.FPS, configRecord); err != nil {
			c.setLastError(err)
			return false
		}
		c.pump = writer.New(c.mux)
	}

	sample := nal.ToLengthPrefixed(annexB, units, c.nalCodec, false)
	if !c.pump.Enqueue(writer.Message{Kind: writer.Video, Bytes: sample, Keyframe: keyframe}) {
		c.setLastError(c.pump.Err())
		return false
	}
	return true
}

// buildConfigRecord extracts parameter sets from units and builds avcC or
// hvcC. ok is false if no parameter sets are present yet.
func (c *Controller) buildConfigRecord(annexB []byte, units []nal.Unit) (record []byte, ok bool) {
	var sps, pps, vps []byte
	for _, u := range units {
		if !nal.IsParameterSet(u.Typ, c.nalCodec) {
			continue
		}
		payload := u.Payload(annexB)
		if c.nalCodec == nal.H264 {
			switch u.Typ {
			case 7:
				sps = payload
			case 8:
				pps = payload
			}
		} else {
			switch u.Typ {
			case 32:
				vps = payload
			case 33:
				sps = payload
			case 34:
				pps = payload
			}
		}
	}

	if c.nalCodec == nal.H264 {
		if sps == nil || pps == nil {
			return nil, false
		}
		rec, err := nal.BuildAVCC(sps, pps)
		if err != nil {
			return nil, false
		}
		return rec, true
	}
	if vps == nil || sps == nil || pps == nil {
		return nil, false
	}
	rec, err := nal.BuildHVCC(vps, sps, pps)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// WriteAudio routes interleaved float PCM through the AudioEncoder, then
// the WriterPump. An empty input is a no-op success.
func (c *Controller) WriteAudio(samples []float32, sampleRate, channels int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	units, err := c.audio.Write(samples, sampleRate, channels)
	if err != nil {
		c.setLastError(err)
		return false
	}
	for _, u := range units {
		if c.pump == nil {
			// Audio arrived before the first video keyframe opened the
			// muxer; the sample is simply dropped like an early video
			// sample would be, since there is nowhere to append it yet.
			continue
		}
		if !c.pump.Enqueue(writer.Message{
			Kind: writer.Audio, Bytes: u.Data, Duration: u.Duration,
			SampleRate: c.audio.SampleRate(), Channels: c.audio.Channels(), ASC: c.audio.ASC(),
		}) {
			c.setLastError(c.pump.Err())
			return false
		}
	}
	return true
}

// Finalize drains both encoders, stops the writer, and writes moov.
func (c *Controller) Finalize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalizeLocked()
}

func (c *Controller) finalizeLocked() bool {
	if _, err := c.video.Drain(); err != nil {
		c.setLastError(err)
	}
	if _, err := c.audio.Finalize(); err != nil {
		c.setLastError(err)
	}
	if c.pump != nil {
		c.pump.Stop()
		if c.pump.Failed() {
			c.setLastError(c.pump.Err())
		}
	}
	if !c.mux.IsOpen() {
		c.setLastError(encerr.ErrVideoHeaderMissing)
		return false
	}
	if err := c.mux.Finalize(); err != nil {
		c.setLastError(err)
		return false
	}
	return true
}

// Destroy is idempotent and tolerates partial initialization. It still
// attempts a best-effort finalize so a crash mid-session leaves a valid
// (if truncated) MP4 on disk.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.video != nil {
		c.finalizeLocked()
		c.video.Close()
	}
	if c.audio != nil {
		c.audio.Close()
	}
	if c.mux != nil {
		c.mux.Close()
	}
	if c.logFil != nil {
		c.logFil.Close()
	}
}

// LastError returns the most recent human-readable error, stable until
// the next mutating call.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) setLastError(err error) {
	if err == nil {
		return
	}
	c.lastErr = err.Error()
	c.log.Error("session error", "error", err)
}
