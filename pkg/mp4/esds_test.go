package mp4

import "testing"

func TestBuildAudioSpecificConfig(t *testing.T) {
	asc := BuildAudioSpecificConfig(44100, 2)
	if len(asc) != 2 {
		t.Fatalf("len = %d, want 2", len(asc))
	}
	objType := asc[0] >> 3
	if objType != 2 {
		t.Fatalf("object type = %d, want 2 (AAC-LC)", objType)
	}
	sfIdx := (asc[0]&0x7)<<1 | asc[1]>>7
	if int(sfIdx) != samplingFrequencyIndex(44100) {
		t.Fatalf("sampling frequency index = %d, want %d", sfIdx, samplingFrequencyIndex(44100))
	}
	chanCfg := (asc[1] >> 3) & 0xF
	if chanCfg != 2 {
		t.Fatalf("channel config = %d, want 2", chanCfg)
	}
}

func TestBuildAudioSpecificConfigClampsChannels(t *testing.T) {
	asc := BuildAudioSpecificConfig(48000, 9)
	chanCfg := (asc[1] >> 3) & 0xF
	if chanCfg != 7 {
		t.Fatalf("channel config = %d, want clamped to 7", chanCfg)
	}
}

func TestDescriptorSizeExtendedForm(t *testing.T) {
	h := descriptorHeader(tagESDescriptor, 200)
	if h[0] != tagESDescriptor {
		t.Fatalf("tag = %x, want %x", h[0], tagESDescriptor)
	}
	if h[1]&0x80 == 0 || h[2]&0x80 == 0 || h[3]&0x80 == 0 {
		t.Fatalf("continuation bit missing on one of the first 3 size bytes: %x", h[1:4])
	}
	if h[4]&0x80 != 0 {
		t.Fatalf("continuation bit set on final size byte: %x", h[4])
	}
	size := uint32(h[1]&0x7F)<<21 | uint32(h[2]&0x7F)<<14 | uint32(h[3]&0x7F)<<7 | uint32(h[4]&0x7F)
	if size != 200 {
		t.Fatalf("decoded size = %d, want 200", size)
	}
}

func TestBuildESDSNesting(t *testing.T) {
	asc := BuildAudioSpecificConfig(48000, 2)
	out := BuildESDS(asc, 192000)
	if out[0] != tagESDescriptor {
		t.Fatalf("outer tag = %x, want ES_Descriptor", out[0])
	}
	// ES_ID occupies the 2 bytes right after the 5-byte header and is
	// always 1, independent of the containing track's track_ID.
	esIDGot := uint16(out[5])<<8 | uint16(out[6])
	if esIDGot != 1 {
		t.Fatalf("ES_ID = %d, want 1", esIDGot)
	}
	dcdTag := out[8]
	if dcdTag != tagDecoderConfig {
		t.Fatalf("nested tag = %x, want DecoderConfigDescriptor", dcdTag)
	}
}
