package strike

import "math"

// soundboardResonator is the second-order IIR resonant filter representing
// the piano soundboard's response to string energy, tuned near a partial of
// the struck note: y[n] = x[n] + 2r*cos(w)*y[n-1] - r^2*y[n-2].
type soundboardResonator struct {
	a1, a2 float32
	y1, y2 float32
}

func newSoundboardResonator(sampleRate int, f0 float32) *soundboardResonator {
	const r = 0.98
	omega := 2.0 * math.Pi * float64(0.93*f0) / float64(sampleRate)
	a1 := float32(2.0 * r * math.Cos(omega))
	a2 := float32(-r * r)
	return &soundboardResonator{a1: a1, a2: a2}
}

func (s *soundboardResonator) process(x float32) float32 {
	y := x + s.a1*s.y1 + s.a2*s.y2
	s.y2 = s.y1
	s.y1 = y
	return y
}
