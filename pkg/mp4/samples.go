package mp4

// sampleTable holds the per-sample bookkeeping for one track: parallel
// offset/size slices plus whatever the track kind needs beyond that
// (sync-sample indices for video, durations for audio).
type sampleTable struct {
	offsets []int64
	sizes   []uint32
}

func (t *sampleTable) append(offset int64, size uint32) {
	t.offsets = append(t.offsets, offset)
	t.sizes = append(t.sizes, size)
}

func (t *sampleTable) count() int {
	return len(t.offsets)
}

func (t *sampleTable) totalBytes() uint64 {
	var n uint64
	for _, s := range t.sizes {
		n += uint64(s)
	}
	return n
}

func (t *sampleTable) maxOffset() int64 {
	var max int64
	for _, o := range t.offsets {
		if o > max {
			max = o
		}
	}
	return max
}

// videoTrack tracks one H.264/HEVC track's samples plus its sync-sample
// (keyframe) index list, 1-based per stss semantics.
type videoTrack struct {
	sampleTable
	syncSamples []uint32
	configRecord []byte // avcC or hvcC
	isHEVC       bool
	width        int
	height       int
	fps          int
}

func (v *videoTrack) appendSample(offset int64, size uint32, keyframe bool) {
	v.sampleTable.append(offset, size)
	if keyframe {
		v.syncSamples = append(v.syncSamples, uint32(v.count()))
	}
}

// frameDuration is 90000/fps in the fixed 90 kHz movie timescale.
func (v *videoTrack) frameDuration() uint32 {
	return uint32(movieTimescale / v.fps)
}

func (v *videoTrack) duration() uint64 {
	return uint64(v.frameDuration()) * uint64(v.count())
}

// audioTrack tracks one AAC track's samples; durations are almost always a
// single repeated value (1024) but are kept per-sample and run-length
// compressed at stts build time to honor a short final partial frame.
type audioTrack struct {
	sampleTable
	durations  []uint32
	sampleRate int
	channels   int
	asc        []byte // AudioSpecificConfig
}

func (a *audioTrack) appendSample(offset int64, size uint32, duration uint32) {
	a.sampleTable.append(offset, size)
	a.durations = append(a.durations, duration)
}

func (a *audioTrack) totalDuration() uint64 {
	var n uint64
	for _, d := range a.durations {
		n += uint64(d)
	}
	return n
}

// sttsRuns run-length-compresses a duration slice into (count, delta)
// pairs, matching stts semantics.
func sttsRuns(durations []uint32) [][2]uint32 {
	var runs [][2]uint32
	for _, d := range durations {
		if len(runs) > 0 && runs[len(runs)-1][1] == d {
			runs[len(runs)-1][0]++
			continue
		}
		runs = append(runs, [2]uint32{1, d})
	}
	return runs
}
