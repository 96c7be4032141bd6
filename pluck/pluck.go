// Package pluck implements the Karplus-Strong plucked-string voice shared by
// the guitar and bass engines (spec component C2).
package pluck

import (
	"errors"
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/cwbudde/algo-stringband/internal/fastmath"
)

// Engine selects the per-engine decay and non-linearity formulas.
type Engine int

const (
	// EngineGuitar applies tension-stiffening above |y|>0.3.
	EngineGuitar Engine = iota
	// EngineBass applies low-tension sag above |y|>0.2 and a tanh ceiling above 0.6.
	EngineBass
)

const sampleRate = 48000

// ErrInvalidPitch is returned when the requested frequency falls outside the
// string model's valid range.
var ErrInvalidPitch = errors.New("pluck: invalid pitch")

// Render fills buf with N samples of a plucked string at f0 Hz. noteOffSample
// is the sample index (relative to buf[0]) at which the string is released;
// pass a value >= len(buf) for a note that never releases within buf.
// sustained suppresses the release fade (sustain pedal / sustained event).
func Render(buf []float32, f0 float32, engine Engine, brightness, coupling float32, noteOffSample int, sustained bool, seed uint32) error {
	if f0 < 30 || f0 > sampleRate/2 {
		return ErrInvalidPitch
	}
	if len(buf) == 0 {
		return nil
	}

	L := int(math.Round(float64(sampleRate) / float64(f0)))
	if L < 2 {
		L = 2
	}
	if L > len(buf) {
		L = len(buf)
	}

	brightness = fastmath.Clamp(brightness, 0, 1)
	alpha := 0.5 + brightness*0.35

	rng := seed
	if rng == 0 {
		rng = 0x9e3779b9
	}

	// Excitation: triangular pulse + noise, trapezoidal envelope, one-pole
	// smoothing against the previous sample.
	quarter := fastmath.MaxInt(L/4, 1)
	var prev float32
	for i := 0; i < L; i++ {
		var env float32
		switch {
		case i < quarter:
			env = float32(i) / float32(quarter)
		case i >= L-quarter:
			env = float32(L-1-i) / float32(quarter)
		default:
			env = 1.0
		}
		tri := env * (2.0*float32(i)/float32(L) - 1.0)
		if tri > 1 {
			tri = 1
		}
		if tri < -1 {
			tri = -1
		}
		noise := fastmath.UnitNoise(&rng) * 0.06
		raw := tri*env + noise
		smooth := brightness*raw + (1-brightness)*prev*0.2
		buf[i] = smooth
		prev = smooth
	}

	for i := L; i < len(buf); i++ {
		f := f0
		decay := decayFor(engine, f, coupling)
		var older float32
		if i > L {
			older = buf[i-L-1]
		}
		y := decay * (alpha*buf[i-L] + (1-alpha)*older)

		abs := y
		if abs < 0 {
			abs = -abs
		}

		switch engine {
		case EngineGuitar:
			if abs > 0.3 {
				y *= 1 + (abs-0.3)*0.02
			}
			dynamicDamp := 1 - abs*0.01
			y *= dynamicDamp
		case EngineBass:
			if abs > 0.2 {
				y *= 1 - (abs-0.2)*0.015
			}
			if abs > 0.6 {
				y = float32(math.Tanh(float64(y)))
			}
		}

		buf[i] = float32(dspcore.FlushDenormals(float64(y)))
	}

	applyRelease(buf, noteOffSample, sustained)
	return nil
}

func decayFor(engine Engine, f float32, coupling float32) float32 {
	var decay float32
	switch engine {
	case EngineGuitar:
		decay = 0.9990 - fastmath.Min(f/1000, 1)*0.001 - coupling*0.002
	case EngineBass:
		switch {
		case f < 50:
			decay = 0.992
		case f < 100:
			decay = 0.996
		default:
			decay = 0.997
		}
	}
	return fastmath.Clamp(decay, 0.985, 0.9995)
}

// applyRelease linearly fades buf to zero over the 0.15*SR samples following
// noteOffSample and hard-zeroes thereafter, unless sustained.
func applyRelease(buf []float32, noteOffSample int, sustained bool) {
	if sustained || noteOffSample >= len(buf) || noteOffSample < 0 {
		return
	}
	const releaseSamples = int(0.15 * sampleRate)
	fadeEnd := noteOffSample + releaseSamples
	if fadeEnd > len(buf) {
		fadeEnd = len(buf)
	}
	span := fadeEnd - noteOffSample
	for i := noteOffSample; i < fadeEnd; i++ {
		g := float32(1.0)
		if span > 0 {
			g = 1.0 - float32(i-noteOffSample)/float32(span)
		}
		buf[i] *= g
	}
	for i := fadeEnd; i < len(buf); i++ {
		buf[i] = 0
	}
}
