package nal

import (
	"bytes"
	"testing"
)

func TestScanMixedStartCodes(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x00, 0x00, 0x01) // 4-byte start code
	buf = append(buf, 0x67, 0xaa, 0xbb)        // SPS payload
	buf = append(buf, 0x00, 0x00, 0x01)        // 3-byte start code
	buf = append(buf, 0x68, 0xcc)              // PPS payload
	buf = append(buf, 0x00, 0x00, 0x01)
	buf = append(buf, 0x65, 0x01, 0x02, 0x03) // IDR slice payload

	units := Scan(buf, H264)
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if units[0].Typ != 7 || units[1].Typ != 8 || units[2].Typ != 5 {
		t.Fatalf("unexpected types: %v %v %v", units[0].Typ, units[1].Typ, units[2].Typ)
	}
	if !bytes.Equal(units[0].Payload(buf), []byte{0x67, 0xaa, 0xbb}) {
		t.Fatalf("unit 0 payload mismatch: %x", units[0].Payload(buf))
	}
	if !bytes.Equal(units[2].Payload(buf), []byte{0x65, 0x01, 0x02, 0x03}) {
		t.Fatalf("unit 2 payload mismatch: %x", units[2].Payload(buf))
	}
}

func TestScanEmpty(t *testing.T) {
	if units := Scan(nil, H264); units != nil {
		t.Fatalf("want nil units for empty input, got %v", units)
	}
}

func TestIsKeyframe(t *testing.T) {
	if !IsKeyframe(5, H264) {
		t.Fatalf("H264 IDR (5) should be a keyframe")
	}
	if IsKeyframe(1, H264) {
		t.Fatalf("H264 non-IDR slice (1) should not be a keyframe")
	}
	if !IsKeyframe(19, HEVC) || !IsKeyframe(20, HEVC) {
		t.Fatalf("HEVC IDR_W_RADL/IDR_N_LP should be keyframes")
	}
	if IsKeyframe(1, HEVC) {
		t.Fatalf("HEVC trailing slice (1) should not be a keyframe")
	}
}

func TestIsParameterSet(t *testing.T) {
	if !IsParameterSet(7, H264) || !IsParameterSet(8, H264) {
		t.Fatalf("H264 SPS/PPS should be parameter sets")
	}
	if IsParameterSet(5, H264) {
		t.Fatalf("H264 IDR slice should not be a parameter set")
	}
	if !IsParameterSet(32, HEVC) || !IsParameterSet(33, HEVC) || !IsParameterSet(34, HEVC) {
		t.Fatalf("HEVC VPS/SPS/PPS should be parameter sets")
	}
}

func TestToLengthPrefixedDropsParameterSets(t *testing.T) {
	var buf []byte
	buf = append(buf, 0x00, 0x00, 0x01, 0x67, 0xaa)
	buf = append(buf, 0x00, 0x00, 0x01, 0x65, 0x01, 0x02)
	units := Scan(buf, H264)

	out := ToLengthPrefixed(buf, units, H264, false)
	if len(out) != 4+3 {
		t.Fatalf("want only the IDR unit length-prefixed, got %d bytes: %x", len(out), out)
	}
	if out[4] != 0x65 {
		t.Fatalf("expected IDR payload after length prefix, got %x", out)
	}

	withParams := ToLengthPrefixed(buf, units, H264, true)
	if len(withParams) != 4+2+4+3 {
		t.Fatalf("want both units length-prefixed, got %d bytes", len(withParams))
	}
}
