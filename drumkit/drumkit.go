// Package drumkit synthesizes General MIDI percussion voices (spec component
// C4): one procedural model per pitch-range family, each driven by the
// note's scaled velocity and written into a caller-supplied voice buffer.
package drumkit

import (
	"math"

	"github.com/cwbudde/algo-stringband/internal/fastmath"
)

const sampleRate = 48000

// Voice identifies a GM percussion family.
type Voice int

const (
	VoiceKick Voice = iota
	VoiceSnare
	VoiceClosedHat
	VoiceOpenHat
	VoiceTom
	VoiceCymbal
)

// VoiceForPitch maps a GM drum-map pitch to a synthesis voice family.
func VoiceForPitch(pitch int) Voice {
	switch {
	case pitch == 35 || pitch == 36:
		return VoiceKick
	case pitch == 38 || pitch == 40:
		return VoiceSnare
	case pitch == 42 || pitch == 44:
		return VoiceClosedHat
	case pitch == 46:
		return VoiceOpenHat
	case pitch == 41 || pitch == 43 || pitch == 45 || pitch == 47 || pitch == 48 || pitch == 50:
		return VoiceTom
	case pitch == 49 || pitch == 51 || pitch == 52 || pitch == 53 || pitch == 55 || pitch == 57 || pitch == 59:
		return VoiceCymbal
	default:
		return VoiceSnare
	}
}

// tomFrequency returns the fundamental used for a tom pitch, grouping the GM
// low/mid/high tom keys into three registers.
func tomFrequency(pitch int) float32 {
	switch {
	case pitch <= 43:
		return 85
	case pitch <= 47:
		return 130
	default:
		return 190
	}
}

var hatPartials = [6]float32{263, 400, 421, 474, 587, 845}

// Render fills buf with velocity-scaled percussion for the given GM pitch and
// voice family, using seed for the voice's stochastic (noise-based) content.
// brightness drives the kick's click-noise lowpass and the hat's highpass
// cutoff (spec.md §4.4); positionExponent is the per-render velocity-curve
// exponent applied uniformly across voice families.
func Render(buf []float32, pitch int, velocity int, brightness, positionExponent float32, seed uint32) {
	if len(buf) == 0 {
		return
	}
	v := fastmath.Clamp(float32(velocity)/127.0, 0, 1)
	scaled := fastmath.Pow(v, positionExponent)
	rng := seed
	if rng == 0 {
		rng = 0x85ebca6b
	}

	switch VoiceForPitch(pitch) {
	case VoiceKick:
		renderKick(buf, scaled, brightness, &rng)
	case VoiceSnare:
		renderSnare(buf, scaled, &rng)
	case VoiceClosedHat:
		renderHat(buf, scaled, brightness, false)
	case VoiceOpenHat:
		renderHat(buf, scaled, brightness, true)
	case VoiceTom:
		renderTom(buf, scaled, tomFrequency(pitch))
	case VoiceCymbal:
		renderCymbal(buf, scaled, &rng)
	}
}

// onePoleCoeff returns the feedback coefficient of a one-pole lowpass with
// the given -3dB cutoff, for the simple `y = (1-a)x + a*y_prev` recurrence.
func onePoleCoeff(cutoffHz float32) float32 {
	return float32(math.Exp(-2 * math.Pi * float64(cutoffHz) / sampleRate))
}

func renderKick(buf []float32, v float32, brightness float32, rng *uint32) {
	clickCutoff := 800 + brightness*2000
	a := onePoleCoeff(clickCutoff)
	var clickLP float32
	for i := range buf {
		t := float64(i) / sampleRate
		freq := 50.0 + 180.0*math.Exp(-40.0*t)
		phase := 2 * math.Pi * freq * t
		body := float32(math.Sin(phase))

		click := fastmath.UnitNoise(rng)
		clickLP = (1-a)*click + a*clickLP
		clickEnv := float32(math.Exp(-t * 100))

		x := v * (0.9*body + 0.4*clickLP*clickEnv)
		buf[i] = float32(math.Tanh(float64(1.8 * x)))
	}
}

func renderSnare(buf []float32, v float32, rng *uint32) {
	var bpState1, bpState2 float32
	for i := range buf {
		t := float64(i) / sampleRate
		freq := 180.0 * (1 + 0.05*math.Exp(-15.0*t))
		tone := float32(math.Sin(2 * math.Pi * freq * t))

		n := fastmath.UnitNoise(rng)
		bpState1 += 0.35 * (n - bpState1)
		bpState2 += 0.08 * (bpState1 - bpState2)
		noiseBand := bpState1 - bpState2

		toneEnv := float32(math.Exp(-t * 25))
		noiseEnv := float32(math.Exp(-t * 12))

		buf[i] = v * (0.4*tone*toneEnv + 0.8*noiseBand*noiseEnv)
	}
}

func renderHat(buf []float32, v float32, brightness float32, open bool) {
	decayRate := 50.0
	cutoff := 7000 + (brightness-0.5)*2000
	if open {
		decayRate = 8.0
		cutoff = 4000
	}
	a := onePoleCoeff(cutoff)
	var hpState float32
	for i := range buf {
		t := float64(i) / sampleRate
		var x float32
		for _, f := range hatPartials {
			x += float32(math.Sin(2 * math.Pi * float64(f) * t))
		}
		x /= float32(len(hatPartials))

		hpState = (1-a)*x + a*hpState
		hp := x - hpState

		env := float32(math.Exp(-t * decayRate))
		buf[i] = v * hp * env
	}
}

func renderTom(buf []float32, v float32, f0 float32) {
	for i := range buf {
		t := float64(i) / sampleRate
		freq := float64(f0) * (1 + 0.6*math.Exp(-18.0*t))
		env := float32(math.Exp(-t * 5))
		buf[i] = float32(math.Tanh(float64(v * env * float32(math.Sin(2*math.Pi*freq*t)))))
	}
}

var cymbalPartials = [8]float32{223, 287, 369, 432, 491, 577, 661, 739}

func renderCymbal(buf []float32, v float32, rng *uint32) {
	const decayTime = 2.5
	for i := range buf {
		t := float64(i) / sampleRate
		var x float32
		for pi, f := range cymbalPartials {
			x += float32(math.Sin(2*math.Pi*float64(f)*t)) / float32(pi+1)
		}
		n := fastmath.UnitNoise(rng) * 0.15
		env := float32(math.Exp(-t / decayTime))
		buf[i] = v * env * (x*0.5 + n)
	}
}
