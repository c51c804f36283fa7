package audio

// G.711 μ-law, used by telephony WAV recordings (format tag 7).

const (
	muLawBias = 0x84
	muLawClip = 32635
)

var muLawDecodeTable [256]int16

var muLawSegmentEnd = [8]int{0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF, 0x3FFF, 0x7FFF}

func init() {
	for i := range muLawDecodeTable {
		u := ^byte(i)
		exponent := (u >> 4) & 0x07
		mantissa := int(u & 0x0F)
		sample := ((mantissa<<3)+muLawBias)<<exponent - muLawBias
		if u&0x80 != 0 {
			sample = -sample
		}
		muLawDecodeTable[i] = int16(sample)
	}
}

// MuLawDecode expands one μ-law byte to a 16-bit sample.
func MuLawDecode(b byte) int16 {
	return muLawDecodeTable[b]
}

// MuLawEncode compresses a 16-bit sample to μ-law.
func MuLawEncode(sample int16) byte {
	pcm := int(sample)
	mask := byte(0xFF)
	if pcm < 0 {
		pcm = -pcm
		mask = 0x7F
	}
	if pcm > muLawClip {
		pcm = muLawClip
	}
	pcm += muLawBias

	segment := 7
	for i, end := range muLawSegmentEnd {
		if pcm <= end {
			segment = i
			break
		}
	}
	return byte(segment<<4|(pcm>>(segment+3))&0x0F) ^ mask
}

// MuLawToFloat32 decodes μ-law bytes to samples in [-1, 1).
func MuLawToFloat32(data []byte) []float32 {
	out := make([]float32, len(data))
	for i, b := range data {
		out[i] = float32(muLawDecodeTable[b]) / 32768
	}
	return out
}

// Float32ToMuLaw encodes samples to μ-law, clipping to [-1, 1].
func Float32ToMuLaw(samples []float32) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = MuLawEncode(floatToS16(s))
	}
	return out
}
