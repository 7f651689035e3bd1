package mp4

import (
	"github.com/nvstream/coreenc/pkg/box"
	"github.com/nvstream/coreenc/pkg/codec"
)

func writeVideoStbl(b *box.Builder, v *videoTrack) {
	writeVideoStsd(b, v)
	writeStts(b, [][2]uint32{{uint32(v.count()), v.frameDuration()}})
	writeStsc(b)
	writeStsz(b, v.sizes)
	writeChunkOffsets(b, v.offsets)
	if len(v.syncSamples) > 0 {
		writeStss(b, v.syncSamples)
	}
}

func writeAudioStbl(b *box.Builder, a *audioTrack) {
	writeAudioStsd(b, a)
	writeStts(b, sttsRuns(a.durations))
	writeStsc(b)
	writeStsz(b, a.sizes)
	writeChunkOffsets(b, a.offsets)
}

func writeVideoStsd(b *box.Builder, v *videoTrack) {
	start := b.BeginBox("stsd")
	b.FullBoxHeader(0, 0)
	b.U32(1) // entry_count

	sampleEntry := codec.FourCC_H264
	configBoxType := "avcC"
	if v.isHEVC {
		sampleEntry = codec.FourCC_H265
		configBoxType = "hvcC"
	}
	entryStart := b.BeginBox(sampleEntry.String())
	b.Zero(6) // reserved
	b.U16(1)  // data_reference_index
	b.U16(0)  // pre_defined
	b.U16(0)  // reserved
	b.U32(0).U32(0).U32(0) // pre_defined[3]
	b.U16(uint16(v.width))
	b.U16(uint16(v.height))
	b.U32(0x00480000) // horizresolution = 72 dpi
	b.U32(0x00480000) // vertresolution = 72 dpi
	b.U32(0)          // reserved
	b.U16(1)          // frame_count
	b.Zero(32)        // compressorname
	b.U16(0x0018)     // depth = 24
	b.U16(0xFFFF)     // pre_defined = -1

	cfgStart := b.BeginBox(configBoxType)
	b.Raw(v.configRecord)
	b.EndBox(cfgStart)

	b.EndBox(entryStart)
	b.EndBox(start)
}

func writeAudioStsd(b *box.Builder, a *audioTrack) {
	start := b.BeginBox("stsd")
	b.FullBoxHeader(0, 0)
	b.U32(1) // entry_count

	entryStart := b.BeginBox(codec.FourCC_MP4A.String())
	b.Zero(6) // reserved
	b.U16(1)  // data_reference_index
	b.U32(0).U32(0) // reserved[2]
	b.U16(uint16(a.channels))
	b.U16(16) // samplesize
	b.U16(0)  // pre_defined
	b.U16(0)  // reserved
	b.U32(uint32(a.sampleRate) << 16)

	esdsStart := b.BeginBox("esds")
	b.FullBoxHeader(0, 0)
	b.Raw(BuildESDS(a.asc, 192000))
	b.EndBox(esdsStart)

	b.EndBox(entryStart)
	b.EndBox(start)
}

func writeStts(b *box.Builder, runs [][2]uint32) {
	start := b.BeginBox("stts")
	b.FullBoxHeader(0, 0)
	b.U32(uint32(len(runs)))
	for _, r := range runs {
		b.U32(r[0]).U32(r[1])
	}
	b.EndBox(start)
}

// writeStsc always emits the single (first_chunk=1, samples_per_chunk=1,
// sample_description_index=1) entry: every sample is its own chunk, which
// is simpler than (and a strict special case of) run-length chunk
// grouping.
func writeStsc(b *box.Builder) {
	start := b.BeginBox("stsc")
	b.FullBoxHeader(0, 0)
	b.U32(1)          // entry_count
	b.U32(1).U32(1).U32(1)
	b.EndBox(start)
}

func writeStsz(b *box.Builder, sizes []uint32) {
	start := b.BeginBox("stsz")
	b.FullBoxHeader(0, 0)
	b.U32(0) // sample_size = 0 (sizes given individually)
	b.U32(uint32(len(sizes)))
	for _, s := range sizes {
		b.U32(s)
	}
	b.EndBox(start)
}

func writeStss(b *box.Builder, syncSamples []uint32) {
	start := b.BeginBox("stss")
	b.FullBoxHeader(0, 0)
	b.U32(uint32(len(syncSamples)))
	for _, s := range syncSamples {
		b.U32(s)
	}
	b.EndBox(start)
}

// writeChunkOffsets emits stco (32-bit) unless any offset exceeds
// 2^32-1, in which case it emits co64 (64-bit) instead.
func writeChunkOffsets(b *box.Builder, offsets []int64) {
	needs64 := false
	for _, o := range offsets {
		if o > 0xFFFFFFFF {
			needs64 = true
			break
		}
	}
	if needs64 {
		start := b.BeginBox("co64")
		b.FullBoxHeader(0, 0)
		b.U32(uint32(len(offsets)))
		for _, o := range offsets {
			b.U64(uint64(o))
		}
		b.EndBox(start)
		return
	}
	start := b.BeginBox("stco")
	b.FullBoxHeader(0, 0)
	b.U32(uint32(len(offsets)))
	for _, o := range offsets {
		b.U32(uint32(o))
	}
	b.EndBox(start)
}
