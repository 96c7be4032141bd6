package wavio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestEncodeMonoProducesValidWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}

	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = 0.25
	}
	if err := EncodeMono(f, samples); err != nil {
		t.Fatalf("EncodeMono error: %v", err)
	}
	f.Close()

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen temp file: %v", err)
	}
	defer rf.Close()

	dec := wav.NewDecoder(rf)
	if !dec.IsValidFile() {
		t.Fatalf("expected encoded output to be a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer error: %v", err)
	}
	if buf.Format.NumChannels != Channels {
		t.Fatalf("expected mono output, got %d channels", buf.Format.NumChannels)
	}
	if buf.Format.SampleRate != SampleRate {
		t.Fatalf("expected sample rate %d, got %d", SampleRate, buf.Format.SampleRate)
	}
}

func TestClampInt16Bounds(t *testing.T) {
	if v := clampInt16(10.0); v != 32767 {
		t.Fatalf("expected clamp to 32767, got %d", v)
	}
	if v := clampInt16(-10.0); v != -32768 {
		t.Fatalf("expected clamp to -32768, got %d", v)
	}
}
