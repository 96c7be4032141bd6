// Package strike implements the struck-string piano voice (spec component
// C3): a nonlinear hammer contact model driving one to three detuned
// waveguide strings, mixed with a soundboard resonator and a felt-damper
// release.
package strike

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-stringband/internal/fastmath"
)

const sampleRate = 48000

// ErrInvalidPitch is returned when the requested note falls outside the
// supported frequency range.
var ErrInvalidPitch = errors.New("strike: invalid pitch")

// Params tunes the hammer/string physics and the optional supplemented
// behaviors (sympathetic resonance, soft pedal). Zero-value Params is usable;
// NewDefaultParams returns sensible defaults.
type Params struct {
	HammerStiffnessScale float32
	HammerExponentScale  float32
	HammerDampingScale   float32

	UnisonDetuneCents float32

	SoftPedalStrikeOffset float32
	SoftPedalHardness     float32

	ResonanceEnabled bool
	ResonanceGain    float32
}

// NewDefaultParams returns the neutral parameter set used when a preset
// supplies no overrides.
func NewDefaultParams() *Params {
	return &Params{
		HammerStiffnessScale: 1.0,
		HammerExponentScale:  1.0,
		HammerDampingScale:   1.0,
		UnisonDetuneCents:    0.5,
		SoftPedalHardness:    0.7,
		ResonanceGain:        0.15,
	}
}

// Render fills buf with a struck-string note at MIDI pitch note, starting at
// buf[0]. noteOffSample is the sample at which the key/pedal is released;
// pass a value >= len(buf) for a note that never releases within buf.
// sustained suppresses the damper fade (sustain pedal held through the tail).
func Render(buf []float32, note int, velocity int, params *Params, noteOffSample int, sustained bool, softPedal bool) error {
	if note < 21 || note > 108 {
		return ErrInvalidPitch
	}
	if len(buf) == 0 {
		return nil
	}
	if params == nil {
		params = NewDefaultParams()
	}

	f0 := fastmath.MIDINoteToFreq(note)
	if f0 <= 0 || f0 > sampleRate/2 {
		return ErrInvalidPitch
	}

	alpha := 0.6 + fastmath.Min(f0/4186, 1)*0.35

	detunes, gains := unisonFor(note, params.UnisonDetuneCents)
	strings := make([]*waveguide, len(detunes))
	for i, cents := range detunes {
		strings[i] = newWaveguide(sampleRate, f0*fastmath.CentsToRatio(cents))
		strings[i].SetBaseReflection(decayFor(f0))
		strings[i].SetBrightness(alpha)
	}

	contactSamples := int(fastmath.Max((0.004-f0/2_000_000)*sampleRate, 1))

	strikePos := float32(0.125) // strike_delay = L/8 in fractional string position terms
	effectiveVelocity := velocity
	if softPedal {
		strikePos += params.SoftPedalStrikeOffset
		effectiveVelocity = int(float32(velocity) * params.SoftPedalHardness)
	}

	h := newHammer(sampleRate, effectiveVelocity, contactSamples)
	h.applyInfluenceScales(params.HammerStiffnessScale, params.HammerExponentScale, params.HammerDampingScale)

	resonator := newSoundboardResonator(sampleRate, f0)

	damperArmed := false
	damperStart := 0
	const damperSamples = int(0.2 * sampleRate)

	for i := 0; i < len(buf); i++ {
		if i == noteOffSample && !sustained {
			damperArmed = true
			damperStart = i
			for _, s := range strings {
				s.SetDamper(true)
			}
		}

		var dry float32
		for si, s := range strings {
			disp := s.Process()
			if h.InContact() {
				force := h.Step(disp)
				s.InjectAtPosition(force*0.02, strikePos)
			}
			dry += disp * gains[si]
		}

		wet := resonator.process(dry)
		out := 0.7*dry + 0.3*wet

		if damperArmed {
			t := i - damperStart
			if t >= damperSamples {
				out = 0
			} else {
				out *= float32(math.Exp(-5.0 * float64(t) / float64(damperSamples)))
			}
		}

		buf[i] = out
	}

	return nil
}

// ApplySympatheticResonance models undamped strings picking up bridge energy
// from whatever else is sounding: every other struck note re-excites a
// shared soundboard resonator, and a small, gain-scaled amount of that
// resonance is folded back across the whole mixed track. Disabled
// (ResonanceEnabled=false) by default, in which case the caller should skip
// this pass entirely and leave spec.md's core §4.3 behavior unaffected.
func ApplySympatheticResonance(mix []float32, gain float32) []float32 {
	if gain <= 0 || len(mix) == 0 {
		return mix
	}
	bridge := newSoundboardResonator(sampleRate, 440)
	out := make([]float32, len(mix))
	for i, x := range mix {
		wet := bridge.process(x)
		out[i] = x + gain*wet
	}
	return out
}

// decayFor returns the per-sample held-note loop gain by register.
func decayFor(f0 float32) float32 {
	switch {
	case f0 < 220:
		return 0.9998
	case f0 < 880:
		return 0.9997
	default:
		return 0.9995
	}
}

// unisonFor returns the detune offsets (cents) and mix gains for the 1-3
// string unison at the given pitch.
func unisonFor(note int, detuneCents float32) ([]float32, []float32) {
	switch {
	case note < 30:
		return []float32{0}, []float32{1.0}
	case note < 50:
		return []float32{-detuneCents, detuneCents}, []float32{0.5, 0.5}
	default:
		return []float32{-detuneCents, 0, detuneCents}, []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
}
