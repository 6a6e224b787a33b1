package audio

const (
	// WireSampleRate is the telephony sample rate in Hz.
	WireSampleRate = 8000

	// BytesPerSample is the width of one linear PCM sample (s16le).
	BytesPerSample = 2

	mulawBias = 0x84
	mulawClip = 32635
)

// mulawToLinear maps each mu-law byte to its 16-bit linear PCM value.
var mulawToLinear [256]int16

func init() {
	for i := 0; i < 256; i++ {
		u := ^byte(i)
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		magnitude := ((int32(mantissa) << 3) + mulawBias) << exponent
		magnitude -= mulawBias
		if u&0x80 != 0 {
			mulawToLinear[i] = int16(-magnitude)
		} else {
			mulawToLinear[i] = int16(magnitude)
		}
	}
}

// DecodeMuLaw inverse-compands a mu-law wire payload into 16-bit linear PCM
// (little-endian) at the same 8 kHz rate. Every mu-law byte maps to exactly
// one sample, so the output is twice the input length.
func DecodeMuLaw(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, codecErrorf("decode", "empty mu-law payload")
	}
	out := make([]byte, len(data)*BytesPerSample)
	for i, b := range data {
		s := mulawToLinear[b]
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out, nil
}

// EncodeMuLaw forward-compands 16-bit linear PCM (little-endian, 8 kHz) into
// mu-law wire bytes.
func EncodeMuLaw(pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, codecErrorf("encode", "empty pcm payload")
	}
	if len(pcm)%BytesPerSample != 0 {
		return nil, codecErrorf("encode", "pcm length %d is not sample-aligned", len(pcm))
	}
	out := make([]byte, len(pcm)/BytesPerSample)
	for i := range out {
		s := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = encodeMuLawSample(s)
	}
	return out, nil
}

func encodeMuLawSample(s int16) byte {
	var sign byte
	v := int32(s)
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((v >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}
