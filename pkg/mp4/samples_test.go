package mp4

import "testing"

func TestSttsRunsCompression(t *testing.T) {
	runs := sttsRuns([]uint32{1024, 1024, 1024, 512})
	want := [][2]uint32{{3, 1024}, {1, 512}}
	if len(runs) != len(want) {
		t.Fatalf("got %d runs, want %d: %v", len(runs), len(want), runs)
	}
	for i, r := range runs {
		if r != want[i] {
			t.Fatalf("run %d = %v, want %v", i, r, want[i])
		}
	}
}

func TestSttsRunsAllDistinct(t *testing.T) {
	runs := sttsRuns([]uint32{1, 2, 3})
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3 (no two adjacent durations equal)", len(runs))
	}
}

func TestVideoTrackSyncSamplesAreOneBased(t *testing.T) {
	v := &videoTrack{fps: 30}
	v.appendSample(0, 10, true)
	v.appendSample(10, 5, false)
	v.appendSample(15, 8, true)

	if len(v.syncSamples) != 2 {
		t.Fatalf("got %d sync samples, want 2", len(v.syncSamples))
	}
	if v.syncSamples[0] != 1 || v.syncSamples[1] != 3 {
		t.Fatalf("sync samples = %v, want [1 3] (1-based)", v.syncSamples)
	}
}

func TestVideoTrackDuration(t *testing.T) {
	v := &videoTrack{fps: 30}
	v.appendSample(0, 10, true)
	v.appendSample(10, 10, false)
	if v.frameDuration() != movieTimescale/30 {
		t.Fatalf("frameDuration = %d, want %d", v.frameDuration(), movieTimescale/30)
	}
	if v.duration() != uint64(v.frameDuration())*2 {
		t.Fatalf("duration = %d, want %d", v.duration(), uint64(v.frameDuration())*2)
	}
}

func TestAudioTrackTotalDuration(t *testing.T) {
	a := &audioTrack{}
	a.appendSample(0, 100, 1024)
	a.appendSample(100, 90, 512)
	if a.totalDuration() != 1536 {
		t.Fatalf("totalDuration = %d, want 1536", a.totalDuration())
	}
}

func TestSampleTableTotalBytesAndMaxOffset(t *testing.T) {
	var tbl sampleTable
	tbl.append(0, 10)
	tbl.append(10, 20)
	tbl.append(30, 5)
	if tbl.totalBytes() != 35 {
		t.Fatalf("totalBytes = %d, want 35", tbl.totalBytes())
	}
	if tbl.maxOffset() != 30 {
		t.Fatalf("maxOffset = %d, want 30", tbl.maxOffset())
	}
	if tbl.count() != 3 {
		t.Fatalf("count = %d, want 3", tbl.count())
	}
}
