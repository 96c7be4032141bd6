// Package wavio encodes rendered float samples to 16-bit mono WAV (spec
// component C9), using the same go-audio encoder/decoder pair the CLI
// tooling already relies on.
package wavio

import (
	"fmt"
	"io"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	SampleRate = 48000
	BitDepth   = 16
	Channels   = 1
)

// EncodeMono converts float32 samples in [-1,1] to 16-bit PCM and writes a
// RIFF/WAVE file to w.
func EncodeMono(w io.WriteSeeker, samples []float32) error {
	enc := wav.NewEncoder(w, SampleRate, BitDepth, Channels, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = clampInt16(s)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: SampleRate, NumChannels: Channels},
		Data:           ints,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavio: close encoder: %w", err)
	}
	return nil
}

// DecodeMono reads a RIFF/WAVE file and returns its samples as float64,
// down-mixing to mono if the source has more than one channel, alongside
// its native sample rate.
func DecodeMono(r io.Reader) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("wavio: not a valid RIFF/WAVE stream")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: decode: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("wavio: missing format chunk")
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// Resample converts samples from one sample rate to another using the
// highest-quality windowed-sinc resampler, a no-op when the rates match.
func Resample(samples []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return samples, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, fmt.Errorf("wavio: build resampler: %w", err)
	}
	return r.Process(samples), nil
}

// clampInt16 converts a float sample to a clamped 16-bit integer:
// clamp(x*32767, -32768, 32767).
func clampInt16(x float32) int {
	v := x * 32767.0
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int(v)
}
