package nal

import "testing"

var testH264SPS = []byte{
	0x67, 0x64, 0x00, 0x0c, 0xac, 0x3b, 0x50, 0xb0,
	0x4b, 0x42, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00,
	0x00, 0x03, 0x00, 0x3d, 0x08,
}

var testH264PPS = []byte{
	0x68, 0xee, 0x3c, 0x80,
}

func TestBuildAVCC(t *testing.T) {
	rec, err := BuildAVCC(testH264SPS, testH264PPS)
	if err != nil {
		t.Fatalf("BuildAVCC: %v", err)
	}
	if rec[0] != 1 {
		t.Fatalf("configurationVersion = %d, want 1", rec[0])
	}
	if rec[1] != testH264SPS[1] || rec[2] != testH264SPS[2] || rec[3] != testH264SPS[3] {
		t.Fatalf("profile bytes mismatch: got %x, want %x", rec[1:4], testH264SPS[1:4])
	}
	if rec[4]&0x03 != 3 {
		t.Fatalf("lengthSizeMinusOne = %d, want 3", rec[4]&0x03)
	}
	if rec[5]&0x1F != 1 {
		t.Fatalf("numOfSequenceParameterSets = %d, want 1", rec[5]&0x1F)
	}
	spsLen := int(rec[6])<<8 | int(rec[7])
	if spsLen != len(testH264SPS) {
		t.Fatalf("sps length field = %d, want %d", spsLen, len(testH264SPS))
	}
	spsStart := 8
	if string(rec[spsStart:spsStart+spsLen]) != string(testH264SPS) {
		t.Fatalf("sps bytes not copied verbatim")
	}
	ppsCountOff := spsStart + spsLen
	if rec[ppsCountOff] != 1 {
		t.Fatalf("numOfPictureParameterSets = %d, want 1", rec[ppsCountOff])
	}
}

func TestBuildAVCCRejectsShortSPS(t *testing.T) {
	if _, err := BuildAVCC([]byte{0x67, 0x01}, testH264PPS); err == nil {
		t.Fatalf("want error for too-short sps")
	}
}

func TestBuildAVCCRejectsMalformedSPS(t *testing.T) {
	garbage := make([]byte, len(testH264SPS))
	copy(garbage, testH264SPS)
	garbage[4] = 0xFF
	garbage[5] = 0xFF
	garbage[6] = 0xFF
	if _, err := BuildAVCC(garbage, testH264PPS); err == nil {
		t.Fatalf("want error for sps that fails h264parser validation")
	}
}
