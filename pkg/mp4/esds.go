package mp4

// The esds descriptor tree: ES_Descriptor(0x03){ DecoderConfigDescriptor(0x04){
// DecoderSpecificInfo(0x05){AudioSpecificConfig} }, SLConfigDescriptor(0x06) }.
// Descriptor sizes are encoded in the MPEG-4 extended-size form: four bytes,
// each carrying 7 bits of the size with the high bit set on every byte but
// the last.

const (
	tagESDescriptor          = 0x03
	tagDecoderConfig         = 0x04
	tagDecoderSpecificInfo   = 0x05
	tagSLConfig              = 0x06
	objectTypeIndicationAAC  = 0x40
	streamTypeAudio          = 0x15
)

func putDescriptorSize(buf []byte, size uint32) {
	buf[0] = 0x80 | byte(size>>21)
	buf[1] = 0x80 | byte(size>>14)
	buf[2] = 0x80 | byte(size>>7)
	buf[3] = byte(size) & 0x7F
}

// descriptorHeader returns tag + 4-byte extended-size field for a
// descriptor whose body is bodyLen bytes long.
func descriptorHeader(tag byte, bodyLen int) []byte {
	h := make([]byte, 5)
	h[0] = tag
	putDescriptorSize(h[1:], uint32(bodyLen))
	return h
}

// esID is the ES_Descriptor's ES_ID. It is fixed at 1 regardless of the
// containing track's track_ID: ES_ID names the elementary stream within
// the esds descriptor tree, a namespace distinct from moov's track_ID.
const esID = 1

// BuildESDS assembles the esds payload (the FullBox version/flags are
// written by the caller, matching every other full box in this package)
// carrying asc (the 2-byte AudioSpecificConfig) at the given bitrate.
func BuildESDS(asc []byte, bitrate uint32) []byte {
	dsi := append(descriptorHeader(tagDecoderSpecificInfo, len(asc)), asc...)

	dcdBody := make([]byte, 0, 13+len(dsi))
	dcdBody = append(dcdBody, objectTypeIndicationAAC)
	dcdBody = append(dcdBody, streamTypeAudio<<2|1) // streamType(6)=0x15, upStream(1)=0, reserved(1)=1
	dcdBody = append(dcdBody, 0, 0, 0)              // bufferSizeDB(24)=0
	dcdBody = append(dcdBody, byte(bitrate>>24), byte(bitrate>>16), byte(bitrate>>8), byte(bitrate)) // maxBitrate
	dcdBody = append(dcdBody, byte(bitrate>>24), byte(bitrate>>16), byte(bitrate>>8), byte(bitrate)) // avgBitrate
	dcdBody = append(dcdBody, dsi...)
	dcd := append(descriptorHeader(tagDecoderConfig, len(dcdBody)), dcdBody...)

	sld := append(descriptorHeader(tagSLConfig, 1), 0x02)

	esBody := make([]byte, 0, 3+len(dcd)+len(sld))
	esBody = append(esBody, byte(esID>>8), byte(esID))
	esBody = append(esBody, 0x00) // flags: streamDependence=0, URL=0, OCRstream=0
	esBody = append(esBody, dcd...)
	esBody = append(esBody, sld...)

	return append(descriptorHeader(tagESDescriptor, len(esBody)), esBody...)
}

// samplingFrequencies is the ISO/IEC 14496-3 Table 1.16 sampling-frequency
// index table used to build AudioSpecificConfig.
var samplingFrequencies = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

func samplingFrequencyIndex(rate int) int {
	for i, f := range samplingFrequencies {
		if f == rate {
			return i
		}
	}
	return 0x0F // escape value, not used by this pipeline's supported rates
}

// BuildAudioSpecificConfig builds the 2-byte AAC-LC AudioSpecificConfig:
// 5 bits object type (2 = AAC LC), 4 bits sampling-frequency index, 4 bits
// channel configuration, 3 bits padding.
func BuildAudioSpecificConfig(sampleRate, channels int) []byte {
	const objectTypeAACLC = 2
	chanCfg := channels
	if chanCfg < 1 {
		chanCfg = 1
	}
	if chanCfg > 7 {
		chanCfg = 7
	}
	sfIdx := samplingFrequencyIndex(sampleRate)
	b0 := byte(objectTypeAACLC<<3) | byte(sfIdx>>1)
	b1 := byte(sfIdx&0x1)<<7 | byte(chanCfg<<3)
	return []byte{b0, b1}
}
