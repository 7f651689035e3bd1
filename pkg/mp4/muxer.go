// Package mp4 implements the streaming ISO-BMFF writer: a single ftyp, an
// mdat opened with unknown size up front and back-patched at finalize, and
// a moov index built from per-sample bookkeeping. Uses a simple
// one-sample-per-chunk stsc rather than grouping samples into chunks.
package mp4

import (
	"encoding/binary"
	"fmt"

	"github.com/nvstream/coreenc/pkg/encerr"
	"github.com/nvstream/coreenc/pkg/sink"
)

// State is the muxer's lifecycle: UNSET until the first video sample
// carrying parameter sets arrives, OPEN while samples are being appended,
// FINALIZED once moov has been written and mdat's size patched.
type State int

const (
	Unset State = iota
	Open
	Finalized
)

// Muxer owns the ByteSink and every per-sample table. It is the only
// component that touches the sink after initialize.
type Muxer struct {
	sink  *sink.ByteSink
	state State

	mdatHeaderOffset    int64
	mdatLargeSizeOffset int64
	mdatDataOffset      int64

	video *videoTrack
	audio *audioTrack
}

// New returns a Muxer in the Unset state; it does not touch disk until
// Initialize is called.
func New() *Muxer {
	return &Muxer{state: Unset}
}

// Initialize opens the output file, writes ftyp and the unknown-size mdat
// header, and transitions the muxer to Open. It is called exactly once,
// when the first video sample carrying parameter sets arrives.
func (m *Muxer) Initialize(path string, isHEVC bool, width, height, fps int, configRecord []byte) error {
	if m.state != Unset {
		return nil
	}
	s, err := sink.Open(path)
	if err != nil {
		return err
	}
	m.sink = s
	m.video = &videoTrack{isHEVC: isHEVC, width: width, height: height, fps: fps, configRecord: configRecord}

	if err := m.writeFtyp(); err != nil {
		return err
	}
	if err := m.writeMdatHeader(); err != nil {
		return err
	}
	m.state = Open
	return nil
}

func (m *Muxer) writeFtyp() error {
	fourcc := "avc1"
	if m.video.isHEVC {
		fourcc = "hvc1"
	}
	b := make([]byte, 0, 32)
	var sz [4]byte
	binary.BigEndian.PutUint32(sz[:], 32)
	b = append(b, sz[:]...)
	b = append(b, "ftyp"...)
	b = append(b, "isom"...)
	binary.BigEndian.PutUint32(sz[:], 0x00000200)
	b = append(b, sz[:]...)
	b = append(b, "isom"...)
	b = append(b, "iso2"...)
	b = append(b, fourcc...)
	b = append(b, "mp41"...)
	return m.sink.Write(b)
}

func (m *Muxer) writeMdatHeader() error {
	m.mdatHeaderOffset = m.sink.Tell()
	var hdr [16]byte
	binary.BigEndian.PutUint32(hdr[0:4], 1) // size=1 -> largesize follows
	copy(hdr[4:8], "mdat")
	// hdr[8:16] is the 64-bit placeholder, patched at finalize.
	if err := m.sink.Write(hdr[:]); err != nil {
		return err
	}
	m.mdatLargeSizeOffset = m.mdatHeaderOffset + 8
	m.mdatDataOffset = m.mdatHeaderOffset + 16
	return nil
}

// IsOpen reports whether Initialize has run.
func (m *Muxer) IsOpen() bool {
	return m.state != Unset
}

// AppendVideo writes a length-prefixed video access unit to mdat and
// records it in the video sample table.
func (m *Muxer) AppendVideo(sample []byte, keyframe bool) error {
	offset := m.sink.Tell()
	if err := m.sink.Write(sample); err != nil {
		return err
	}
	m.video.appendSample(offset, uint32(len(sample)), keyframe)
	return nil
}

// AppendAudio writes an AAC access unit to mdat and records it in the
// audio sample table with the given duration (in audio-timescale units,
// always 1024 for a full frame).
func (m *Muxer) AppendAudio(sample []byte, duration uint32, sampleRate, channels int, asc []byte) error {
	if m.audio == nil {
		m.audio = &audioTrack{sampleRate: sampleRate, channels: channels, asc: asc}
	}
	offset := m.sink.Tell()
	if err := m.sink.Write(sample); err != nil {
		return err
	}
	m.audio.appendSample(offset, uint32(len(sample)), duration)
	return nil
}

// Finalize writes moov and back-patches the mdat largesize field. The
// codec configuration record must already be present (Initialize must
// have run) or this fails with ErrVideoHeaderMissing.
func (m *Muxer) Finalize() error {
	if m.state != Open {
		return fmt.Errorf("%w", encerr.ErrVideoHeaderMissing)
	}
	dataEnd := m.sink.Tell()
	moov := m.buildMoov()
	if err := m.sink.Write(moov); err != nil {
		return err
	}
	if err := m.sink.Seek(m.mdatLargeSizeOffset); err != nil {
		return err
	}
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], uint64(dataEnd-m.mdatHeaderOffset))
	if err := m.sink.Write(sz[:]); err != nil {
		return err
	}
	m.state = Finalized
	return m.sink.Close()
}

// Close releases the underlying file without writing moov, used when the
// muxer was never opened (no video sample ever arrived).
func (m *Muxer) Close() error {
	if m.sink == nil {
		return nil
	}
	return m.sink.Close()
}
