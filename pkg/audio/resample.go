package audio

const (
	// TranscribeSampleRate is the rate the transcription service expects.
	TranscribeSampleRate = 16000

	// SynthesisSampleRate is the rate the synthesis service produces.
	SynthesisSampleRate = 24000
)

// Resample converts 16-bit linear PCM (little-endian, mono) from srcRate to
// dstRate using linear interpolation. The narrowband telephony path does not
// warrant a windowed-sinc filter.
func Resample(pcm []byte, srcRate, dstRate int) ([]byte, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, codecErrorf("resample", "invalid rates %d -> %d", srcRate, dstRate)
	}
	if len(pcm)%BytesPerSample != 0 {
		return nil, codecErrorf("resample", "pcm length %d is not sample-aligned", len(pcm))
	}
	if srcRate == dstRate || len(pcm) == 0 {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	srcN := len(pcm) / BytesPerSample
	dstN := int(int64(srcN) * int64(dstRate) / int64(srcRate))
	if dstN == 0 {
		return []byte{}, nil
	}

	src := make([]int16, srcN)
	for i := range src {
		src[i] = int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
	}

	out := make([]byte, dstN*BytesPerSample)
	step := float64(srcRate) / float64(dstRate)
	for i := 0; i < dstN; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= srcN-1 {
			s := src[srcN-1]
			out[2*i] = byte(s)
			out[2*i+1] = byte(s >> 8)
			continue
		}
		frac := pos - float64(i0)
		s := float64(src[i0]) + (float64(src[i0+1])-float64(src[i0]))*frac
		v := int16(s)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out, nil
}

// UpsampleForTranscription converts 8 kHz telephony PCM to the 16 kHz the
// transcription service expects.
func UpsampleForTranscription(pcm []byte) ([]byte, error) {
	return Resample(pcm, WireSampleRate, TranscribeSampleRate)
}

// DownsampleToWire converts speech-service PCM (16 kHz or 24 kHz) back down
// to the 8 kHz telephony rate.
func DownsampleToWire(pcm []byte, srcRate int) ([]byte, error) {
	return Resample(pcm, srcRate, WireSampleRate)
}
