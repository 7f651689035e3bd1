package nal

import (
	"encoding/binary"
	"fmt"

	"github.com/deepch/vdk/codec/h264parser"
)

// BuildAVCC produces an avcC (AVCDecoderConfigurationRecord, ISO/IEC
// 14496-15 §5.2.4) from one SPS and one PPS NAL. The SPS/PPS pair is
// validated by parsing it with h264parser first, rejecting malformed
// parameter sets before they reach the container.
func BuildAVCC(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 {
		return nil, fmt.Errorf("avcC: sps too short (%d bytes)", len(sps))
	}
	if _, err := h264parser.NewCodecDataFromSPSAndPPS(sps, pps); err != nil {
		return nil, fmt.Errorf("avcC: invalid sps/pps: %w", err)
	}
	buf := make([]byte, 0, 11+len(sps)+len(pps))
	buf = append(buf, 1)                 // configurationVersion
	buf = append(buf, sps[1], sps[2], sps[3]) // AVCProfileIndication, profile_compatibility, AVCLevelIndication
	buf = append(buf, 0xFC|3)            // reserved(6)=111111, lengthSizeMinusOne=3
	buf = append(buf, 0xE0|1)            // reserved(3)=111, numOfSequenceParameterSets=1
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(sps)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, sps...)
	buf = append(buf, 1) // numOfPictureParameterSets=1
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(pps)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, pps...)
	return buf, nil
}
