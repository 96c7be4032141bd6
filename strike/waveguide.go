package strike

import dspcore "github.com/cwbudde/algo-dsp/dsp/core"

// waveguide implements a single detuned string of the struck-string voice: a
// fractional-delay circular buffer with a one-pole loop-loss lowpass and a
// damper-engaged reflection coefficient, ported from the digital-waveguide
// core shared with the plucked-string engine's delay-line approach.
type waveguide struct {
	sampleRate  float32
	f0          float32
	delayLength float32
	delayLine   []float32
	writePos    int

	reflection       float32
	baseReflection   float32
	damperReflection float32
	damperEngaged    bool

	lowpassCoeff float32
	loopState    float32
}

func newWaveguide(sampleRate int, f0 float32) *waveguide {
	s := &waveguide{
		sampleRate:       float32(sampleRate),
		f0:               f0,
		reflection:       0.9998,
		baseReflection:   0.9998,
		damperReflection: 0.90,
		lowpassCoeff:     0.05,
	}
	s.delayLength = s.sampleRate / s.f0
	intDelay := int(s.delayLength)
	if intDelay < 2 {
		intDelay = 2
	}
	s.delayLine = make([]float32, intDelay+4)
	return s
}

// SetBaseReflection sets the held-note (undamped) per-sample loop gain.
func (s *waveguide) SetBaseReflection(gain float32) {
	if gain <= 0 {
		gain = 0.0001
	}
	if gain > 1.0 {
		gain = 1.0
	}
	s.baseReflection = gain
	if !s.damperEngaged {
		s.reflection = gain
	}
}

// SetBrightness maps the two-tap averaging coefficient alpha (weight on the
// undelayed tap) onto the loop's one-pole lowpass coefficient: alpha close to
// 1 retains more high-frequency content (brighter, less smoothing).
func (s *waveguide) SetBrightness(alpha float32) {
	s.lowpassCoeff = (1 - alpha) * 0.5
}

// SetDamper toggles the fast-decay felt-damper reflection used after release.
func (s *waveguide) SetDamper(engaged bool) {
	s.damperEngaged = engaged
	if engaged {
		s.reflection = s.damperReflection
		return
	}
	s.reflection = s.baseReflection
}

func (s *waveguide) Process() float32 {
	delayed := s.readDelayFractional(s.delayLength)
	loopSample := s.processLoopLoss(delayed)
	s.delayLine[s.writePos] = loopSample
	s.writePos = (s.writePos + 1) % len(s.delayLine)
	return delayed
}

// InjectAtPosition deposits force at a fractional string position [0,1].
func (s *waveguide) InjectAtPosition(force float32, pos float32) {
	if pos < 0.01 {
		pos = 0.01
	}
	if pos > 0.99 {
		pos = 0.99
	}
	idx := (s.writePos + int(float32(len(s.delayLine))*pos)) % len(s.delayLine)
	s.delayLine[idx] += force
}

func (s *waveguide) processLoopLoss(input float32) float32 {
	lp := (1.0-s.lowpassCoeff)*input + s.lowpassCoeff*s.loopState
	lp = float32(dspcore.FlushDenormals(float64(lp)))
	s.loopState = lp
	return float32(dspcore.FlushDenormals(float64(lp * s.reflection)))
}

func (s *waveguide) readDelayFractional(delay float32) float32 {
	n := len(s.delayLine)
	intDelay := int(delay)
	frac := delay - float32(intDelay)
	p1 := (s.writePos - intDelay + n) % n
	p2 := (s.writePos - intDelay - 1 + n) % n
	return s.delayLine[p1]*(1.0-frac) + s.delayLine[p2]*frac
}
