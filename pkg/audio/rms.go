package audio

import "math"

// RMS computes the root-mean-square energy of 16-bit linear PCM
// (little-endian). It is the voice-activity proxy used by the utterance
// segmenter.
func RMS(pcm []byte) (float64, error) {
	if len(pcm) == 0 {
		return 0, codecErrorf("rms", "empty pcm payload")
	}
	if len(pcm)%BytesPerSample != 0 {
		return 0, codecErrorf("rms", "pcm length %d is not sample-aligned", len(pcm))
	}
	n := len(pcm) / BytesPerSample
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(pcm[2*i]) | int16(pcm[2*i+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(n)), nil
}
