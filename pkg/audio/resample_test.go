package audio

import (
	"bytes"
	"testing"
)

func TestResample_SameRateCopies(t *testing.T) {
	in := pcmFromSamples([]int16{1, 2, 3, 4})
	out, err := Resample(in, 8000, 8000)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("same-rate resample altered samples")
	}
	out[0] = 0xFF
	if in[0] == 0xFF {
		t.Fatalf("same-rate resample aliased the input slice")
	}
}

func TestResample_UpsampleDoublesLength(t *testing.T) {
	in := pcmFromSamples(make([]int16, 160)) // 20ms at 8kHz
	out, err := UpsampleForTranscription(in)
	if err != nil {
		t.Fatalf("upsample: %v", err)
	}
	if len(out) != 2*len(in) {
		t.Fatalf("upsample length %d, want %d", len(out), 2*len(in))
	}
}

func TestResample_DownsampleFromSynthesisRate(t *testing.T) {
	in := pcmFromSamples(make([]int16, 240)) // 10ms at 24kHz
	out, err := DownsampleToWire(in, SynthesisSampleRate)
	if err != nil {
		t.Fatalf("downsample: %v", err)
	}
	if len(out) != len(in)/3 {
		t.Fatalf("downsample length %d, want %d", len(out), len(in)/3)
	}
}

func TestResample_ConstantSignalIsPreserved(t *testing.T) {
	samples := make([]int16, 80)
	for i := range samples {
		samples[i] = 1234
	}
	out, err := Resample(pcmFromSamples(samples), 8000, 16000)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	for i, s := range samplesFromPCM(out) {
		if s != 1234 {
			t.Fatalf("sample %d: got %d, want 1234", i, s)
		}
	}
}

func TestResample_RejectsMisalignedInput(t *testing.T) {
	if _, err := Resample([]byte{0x01}, 8000, 16000); err == nil {
		t.Fatalf("expected error for odd-length pcm")
	}
	if _, err := Resample(nil, 0, 16000); err == nil {
		t.Fatalf("expected error for zero source rate")
	}
}

func TestRMS_SilenceAndTone(t *testing.T) {
	silence := pcmFromSamples(make([]int16, 160))
	r, err := RMS(silence)
	if err != nil {
		t.Fatalf("rms: %v", err)
	}
	if r != 0 {
		t.Fatalf("silence rms = %f, want 0", r)
	}

	tone := make([]int16, 160)
	for i := range tone {
		tone[i] = 1000
	}
	r, err = RMS(pcmFromSamples(tone))
	if err != nil {
		t.Fatalf("rms: %v", err)
	}
	if r < 999 || r > 1001 {
		t.Fatalf("constant-amplitude rms = %f, want ~1000", r)
	}
}

func TestWAV_HeaderShape(t *testing.T) {
	pcm := pcmFromSamples(make([]int16, 16))
	w := WAV(pcm, 16000)
	if len(w) != 44+len(pcm) {
		t.Fatalf("wav length %d, want %d", len(w), 44+len(pcm))
	}
	if string(w[0:4]) != "RIFF" || string(w[8:12]) != "WAVE" || string(w[36:40]) != "data" {
		t.Fatalf("wav header markers missing")
	}
}
