package mp4

import (
	"github.com/nvstream/coreenc/pkg/box"
)

const movieTimescale = 90000

// buildMoov assembles the full moov tree: mvhd, the video trak, and
// (if present) the audio trak.
func (m *Muxer) buildMoov() []byte {
	b := box.NewBuilder()
	start := b.BeginBox("moov")
	m.writeMvhd(b)
	m.writeVideoTrak(b)
	if m.audio != nil && m.audio.count() > 0 {
		m.writeAudioTrak(b)
	}
	b.EndBox(start)
	return b.Bytes()
}

func (m *Muxer) movieDuration() uint64 {
	videoDur := m.video.duration()
	var audioDur uint64
	if m.audio != nil && m.audio.sampleRate > 0 {
		audioDur = m.audio.totalDuration() * movieTimescale / uint64(m.audio.sampleRate)
	}
	if audioDur > videoDur {
		return audioDur
	}
	return videoDur
}

func (m *Muxer) nextTrackID() uint32 {
	if m.audio != nil && m.audio.count() > 0 {
		return 3
	}
	return 2
}

func (m *Muxer) writeMvhd(b *box.Builder) {
	start := b.BeginBox("mvhd")
	b.FullBoxHeader(0, 0)
	b.U32(0)                           // creation_time
	b.U32(0)                           // modification_time
	b.U32(movieTimescale)              // timescale
	b.U32(uint32(m.movieDuration()))   // duration
	b.U32(0x00010000)                  // rate = 1.0
	b.U16(0x0100)                      // volume = 1.0
	b.U16(0)                           // reserved
	b.U32(0).U32(0)                    // reserved[2]
	for _, v := range [9]uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		b.U32(v)
	}
	for i := 0; i < 6; i++ {
		b.U32(0) // pre_defined[6]
	}
	b.U32(m.nextTrackID())
	b.EndBox(start)
}

func (m *Muxer) writeVideoTrak(b *box.Builder) {
	start := b.BeginBox("trak")
	writeTkhd(b, 1, m.video.duration(), uint32(m.video.width), uint32(m.video.height), false)
	writeMdia(b, movieTimescale, m.video.duration(), "vide", "VideoHandler\x00", func(b *box.Builder) {
		writeVideoStbl(b, m.video)
	})
	b.EndBox(start)
}

func (m *Muxer) writeAudioTrak(b *box.Builder) {
	start := b.BeginBox("trak")
	writeTkhd(b, 2, m.audio.totalDuration(), 0, 0, true)
	writeMdia(b, uint32(m.audio.sampleRate), m.audio.totalDuration(), "soun", "SoundHandler\x00", func(b *box.Builder) {
		writeAudioStbl(b, m.audio)
	})
	b.EndBox(start)
}

func writeTkhd(b *box.Builder, trackID uint32, duration uint64, width, height uint32, isAudio bool) {
	start := b.BeginBox("tkhd")
	b.FullBoxHeader(0, 7) // enabled | in_movie | in_preview
	b.U32(0)              // creation_time
	b.U32(0)              // modification_time
	b.U32(trackID)
	b.U32(0) // reserved
	b.U32(uint32(duration))
	b.U32(0).U32(0) // reserved[2]
	b.U16(0)        // layer
	b.U16(0)        // alternate_group
	if isAudio {
		b.U16(0x0100) // volume = 1.0
	} else {
		b.U16(0)
	}
	b.U16(0) // reserved
	for _, v := range [9]uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		b.U32(v)
	}
	b.U32(width << 16)
	b.U32(height << 16)
	b.EndBox(start)
}

func writeMdia(b *box.Builder, timescale uint32, duration uint64, handlerType, handlerName string, stbl func(*box.Builder)) {
	start := b.BeginBox("mdia")
	writeMdhd(b, timescale, duration)
	writeHdlr(b, handlerType, handlerName)
	mstart := b.BeginBox("minf")
	if handlerType == "vide" {
		writeVmhd(b)
	} else {
		writeSmhd(b)
	}
	writeDinf(b)
	stblStart := b.BeginBox("stbl")
	stbl(b)
	b.EndBox(stblStart)
	b.EndBox(mstart)
	b.EndBox(start)
}

func writeMdhd(b *box.Builder, timescale uint32, duration uint64) {
	start := b.BeginBox("mdhd")
	b.FullBoxHeader(0, 0)
	b.U32(0) // creation_time
	b.U32(0) // modification_time
	b.U32(timescale)
	b.U32(uint32(duration))
	b.U16(0x55C4) // language = und
	b.U16(0)      // pre_defined
	b.EndBox(start)
}

func writeHdlr(b *box.Builder, handlerType, name string) {
	start := b.BeginBox("hdlr")
	b.FullBoxHeader(0, 0)
	b.U32(0) // pre_defined
	b.Tag(handlerType)
	b.U32(0).U32(0).U32(0) // reserved[3]
	b.Raw([]byte(name))
	b.EndBox(start)
}

func writeVmhd(b *box.Builder) {
	start := b.BeginBox("vmhd")
	b.FullBoxHeader(0, 1)
	b.U16(0)       // graphicsmode
	b.U16(0).U16(0).U16(0) // opcolor[3]
	b.EndBox(start)
}

func writeSmhd(b *box.Builder) {
	start := b.BeginBox("smhd")
	b.FullBoxHeader(0, 0)
	b.U16(0) // balance
	b.U16(0) // reserved
	b.EndBox(start)
}

func writeDinf(b *box.Builder) {
	start := b.BeginBox("dinf")
	drefStart := b.BeginBox("dref")
	b.FullBoxHeader(0, 0)
	b.U32(1) // entry_count
	urlStart := b.BeginBox("url ")
	b.FullBoxHeader(0, 1) // self-contained
	b.EndBox(urlStart)
	b.EndBox(drefStart)
	b.EndBox(start)
}
