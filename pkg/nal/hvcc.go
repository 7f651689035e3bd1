package nal

import (
	"encoding/binary"
	"fmt"

	"github.com/deepch/vdk/codec/h265parser"
)

// paramSetArray is one hvcC array entry: the NAL_unit_type this array
// carries (32=VPS, 33=SPS, 34=PPS) and its single payload.
type paramSetArray struct {
	nalType byte
	payload []byte
}

// BuildHVCC produces a minimal hvcC (HEVCDecoderConfigurationRecord,
// ISO/IEC 14496-15 §8.3.3) carrying whichever of VPS/SPS/PPS are non-empty.
// Profile/tier/level and chroma/bit-depth fields are fixed (generic Main
// profile, level 4.0) rather than parsed from the stream; this is fragile
// for non-Main-profile or 10-bit output. The VPS/SPS/PPS triple is
// validated with h265parser before being wrapped in a box.
func BuildHVCC(vps, sps, pps []byte) ([]byte, error) {
	if len(sps) == 0 {
		return nil, fmt.Errorf("hvcC: empty sps")
	}
	if _, err := h265parser.NewCodecDataFromVPSAndSPSAndPPS(vps, sps, pps); err != nil {
		return nil, fmt.Errorf("hvcC: invalid vps/sps/pps: %w", err)
	}
	buf := make([]byte, 0, 23)
	buf = append(buf, 1) // configurationVersion

	// general_profile_space(2)=0, general_tier_flag(1)=0, general_profile_idc(5)=1 (Main)
	buf = append(buf, 0x01)
	// general_profile_compatibility_flags(32)
	buf = append(buf, 0, 0, 0, 0)
	// general_constraint_indicator_flags(48)
	buf = append(buf, 0, 0, 0, 0, 0, 0)
	// general_level_idc: level 4.0 = 120
	buf = append(buf, 120)
	// reserved(4)=1111, min_spatial_segmentation_idc(12)=0
	buf = append(buf, 0xF0, 0x00)
	// reserved(6)=111111, parallelismType(2)=0
	buf = append(buf, 0xFC)
	// reserved(6)=111111, chroma_format_idc(2)=1 (4:2:0)
	buf = append(buf, 0xFD)
	// reserved(5)=11111, bit_depth_luma_minus8(3)=0
	buf = append(buf, 0xF8)
	// reserved(5)=11111, bit_depth_chroma_minus8(3)=0
	buf = append(buf, 0xF8)
	// avgFrameRate(16)=0
	buf = append(buf, 0, 0)
	// constantFrameRate(2)=0, numTemporalLayers(3)=0, temporalIdNested(1)=0, lengthSizeMinusOne(2)=3
	buf = append(buf, 0x03)

	arrays := make([]paramSetArray, 0, 3)
	if len(vps) > 0 {
		arrays = append(arrays, paramSetArray{32, vps})
	}
	if len(sps) > 0 {
		arrays = append(arrays, paramSetArray{33, sps})
	}
	if len(pps) > 0 {
		arrays = append(arrays, paramSetArray{34, pps})
	}

	buf = append(buf, byte(len(arrays))) // numOfArrays
	var lenBuf [2]byte
	for _, a := range arrays {
		// array_completeness(1)=1, reserved(1)=0, NAL_unit_type(6)
		buf = append(buf, 0x80|(a.nalType&0x3F))
		binary.BigEndian.PutUint16(lenBuf[:], 1) // numNalus
		buf = append(buf, lenBuf[:]...)
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(a.payload)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, a.payload...)
	}
	return buf, nil
}
