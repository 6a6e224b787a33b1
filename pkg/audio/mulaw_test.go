package audio

import (
	"bytes"
	"math"
	"testing"
)

func pcmFromSamples(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

func samplesFromPCM(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
	}
	return out
}

func TestDecodeMuLaw_EmptyPayload(t *testing.T) {
	if _, err := DecodeMuLaw(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestDecodeMuLaw_Silence(t *testing.T) {
	// 0xFF is mu-law zero.
	pcm, err := DecodeMuLaw([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, s := range samplesFromPCM(pcm) {
		if s != 0 {
			t.Fatalf("expected silence, got sample %d", s)
		}
	}
}

func TestMuLaw_WireRoundTripIsStable(t *testing.T) {
	// Wire bytes -> PCM -> wire bytes must reproduce the originals exactly:
	// decode maps each code to the codec's canonical level, and encoding a
	// canonical level yields the same code.
	wire := make([]byte, 256)
	for i := range wire {
		wire[i] = byte(i)
	}
	pcm, err := DecodeMuLaw(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	back, err := EncodeMuLaw(pcm)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := range wire {
		// 0x7F and 0xFF both decode to zero; re-encoding zero picks one.
		if mulawToLinear[wire[i]] == 0 && mulawToLinear[back[i]] == 0 {
			continue
		}
		if back[i] != wire[i] {
			t.Fatalf("byte %d: round trip %#x -> %#x", i, wire[i], back[i])
		}
	}
}

func TestMuLaw_RepeatedRoundTripsDoNotDrift(t *testing.T) {
	// Encode a sine wave, then round trip several times; quantization error
	// is allowed once but must not accumulate.
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*float64(i)/40))
	}
	pcm := pcmFromSamples(samples)

	wire, err := EncodeMuLaw(pcm)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	settled, err := DecodeMuLaw(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	current := settled
	for round := 0; round < 5; round++ {
		w, err := EncodeMuLaw(current)
		if err != nil {
			t.Fatalf("round %d encode: %v", round, err)
		}
		if !bytes.Equal(w, wire) {
			t.Fatalf("round %d: wire bytes drifted", round)
		}
		current, err = DecodeMuLaw(w)
		if err != nil {
			t.Fatalf("round %d decode: %v", round, err)
		}
		if !bytes.Equal(current, settled) {
			t.Fatalf("round %d: pcm drifted after settling", round)
		}
	}
}

func TestEncodeMuLaw_OddLengthRejected(t *testing.T) {
	if _, err := EncodeMuLaw([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatalf("expected error for odd pcm length")
	}
}
