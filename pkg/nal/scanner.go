// Package nal scans Annex-B bitstreams into NAL units, classifies them per
// codec, and builds the length-prefixed access units the muxer stores.
package nal

import (
	"encoding/binary"
)

// Codec distinguishes the two video codecs this pipeline emits.
type Codec int

const (
	H264 Codec = iota
	HEVC
)

// Unit is one NAL unit located within the scanned buffer: ptr/len identify
// the payload (NAL header byte included, start code excluded), and typ is
// the codec-specific NAL type.
type Unit struct {
	Ptr int
	Len int
	Typ byte
}

// Payload returns the NAL bytes this unit refers to within buf.
func (u Unit) Payload(buf []byte) []byte {
	return buf[u.Ptr : u.Ptr+u.Len]
}

// Scan walks an Annex-B buffer and returns one Unit per NAL, accepting
// both 3-byte (00 00 01) and 4-byte (00 00 00 01) start codes even when
// both forms occur in the same buffer.
func Scan(buf []byte, codec Codec) []Unit {
	starts := findStartCodes(buf)
	if len(starts) == 0 {
		return nil
	}
	units := make([]Unit, 0, len(starts))
	for i, s := range starts {
		payloadStart := s.offset + s.scLen
		var end int
		if i+1 < len(starts) {
			end = starts[i+1].offset
		} else {
			end = len(buf)
		}
		if payloadStart >= end {
			continue
		}
		typ := nalType(buf[payloadStart], codec)
		units = append(units, Unit{Ptr: payloadStart, Len: end - payloadStart, Typ: typ})
	}
	return units
}

type startCode struct {
	offset int
	scLen  int
}

// findStartCodes locates every 00 00 01 occurrence in buf, preferring the
// 4-byte form when a 00 prefixes it so consumers see scLen=4 for those.
func findStartCodes(buf []byte) []startCode {
	var out []startCode
	i := 0
	for i+2 < len(buf) {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			if i > 0 && buf[i-1] == 0 {
				out = append(out, startCode{offset: i - 1, scLen: 4})
			} else {
				out = append(out, startCode{offset: i, scLen: 3})
			}
			i += 3
			continue
		}
		i++
	}
	return out
}

func nalType(firstByte byte, codec Codec) byte {
	if codec == H264 {
		return firstByte & 0x1F
	}
	return (firstByte >> 1) & 0x3F
}

// IsKeyframe reports whether typ is an IDR NAL for the given codec.
func IsKeyframe(typ byte, codec Codec) bool {
	if codec == H264 {
		return typ == 5
	}
	return typ == 19 || typ == 20 // IDR_W_RADL, IDR_N_LP
}

// IsParameterSet reports whether typ carries decoder configuration
// (SPS/PPS for H.264; VPS/SPS/PPS for HEVC).
func IsParameterSet(typ byte, codec Codec) bool {
	if codec == H264 {
		return typ == 7 || typ == 8
	}
	return typ == 32 || typ == 33 || typ == 34
}

// ToLengthPrefixed concatenates each unit as a 4-byte big-endian length
// followed by its payload, in order, optionally dropping parameter-set
// NALs.
func ToLengthPrefixed(buf []byte, units []Unit, codec Codec, keepParameterSets bool) []byte {
	out := make([]byte, 0, len(buf)+4*len(units))
	var lenBuf [4]byte
	for _, u := range units {
		if !keepParameterSets && IsParameterSet(u.Typ, codec) {
			continue
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(u.Len))
		out = append(out, lenBuf[:]...)
		out = append(out, u.Payload(buf)...)
	}
	return out
}
