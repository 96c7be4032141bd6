// Package fastmath collects small numeric helpers shared by the instrument
// engines: MIDI-to-frequency conversion, fast exponentials, and a cheap PRNG
// for excitation noise. Kept alongside (not inside) the DSP primitives
// package since these are domain helpers, not generic signal-processing
// building blocks.
package fastmath

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// MIDINoteToFreq converts a MIDI note number to frequency in Hz (A4=69=440Hz).
func MIDINoteToFreq(note int) float32 {
	const a4Freq = 440.0
	const a4Note = 69
	exponent := float32(note-a4Note) / 12.0
	return a4Freq * Pow2(exponent)
}

// Pow2 approximates 2^x using algo-approx's fast exponential.
func Pow2(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

// CentsToRatio converts a detune amount in cents to a frequency ratio.
func CentsToRatio(cents float32) float32 {
	return Pow2(cents / 1200.0)
}

// Pow raises a non-negative base to an arbitrary exponent via Pow2(exponent*log2(base)).
func Pow(base, exponent float32) float32 {
	if base <= 0 {
		return 0
	}
	log2Base := float32(math.Log2(float64(base)))
	return Pow2(exponent * log2Base)
}

// ExpDecayPerSample returns the per-sample multiplier that reaches -targetDB
// after durationSamples samples.
func ExpDecayPerSample(targetDB float64, durationSamples int) float32 {
	if durationSamples < 1 {
		durationSamples = 1
	}
	// 20*log10(decay^n) = -targetDB  =>  decay = 10^(-targetDB/(20*n))
	exponent := -targetDB / (20.0 * float64(durationSamples))
	return float32(math.Pow(10.0, exponent))
}

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Max returns the larger of a and b.
func Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

// Xorshift32 advances a 32-bit xorshift PRNG state and returns the new value.
// Used for deterministic, seedable excitation noise (render reproducibility).
func Xorshift32(state *uint32) uint32 {
	x := *state
	if x == 0 {
		x = 0x9e3779b9
	}
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	*state = x
	return x
}

// UnitNoise turns a xorshift32 draw into a uniform float in [-1, 1].
func UnitNoise(state *uint32) float32 {
	n := Xorshift32(state)
	return float32(n)*2.3283064e-10*2.0 - 1.0
}
