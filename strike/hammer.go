package strike

import "github.com/cwbudde/algo-stringband/internal/fastmath"

// hammer is a simplified nonlinear felt-hammer contact model: a spring-like
// contact force proportional to string displacement to a non-integer power,
// active only while the hammer and string remain in contact.
type hammer struct {
	stiffness float32
	exponent  float32
	damping   float32

	baseStiffness float32
	baseExponent  float32
	baseDamping   float32

	contactSamples    int
	contactMaxSamples int
	pos               float32
	vel               float32
	inContact         bool
}

func newHammer(sampleRate int, velocity int, contactSamples int) *hammer {
	v := fastmath.Clamp(float32(velocity)/127.0, 0, 1)
	h := &hammer{
		stiffness:         1.0 + v*2.5,
		exponent:          2.2,
		damping:           0.0008,
		contactMaxSamples: contactSamples,
		vel:               v * 4.0,
		inContact:         true,
	}
	h.baseStiffness = h.stiffness
	h.baseExponent = h.exponent
	h.baseDamping = h.damping
	return h
}

// applyInfluenceScales multiplies the hammer's physical parameters by
// per-instrument tuning scales supplied via Params.
func (h *hammer) applyInfluenceScales(stiffnessScale, exponentScale, dampingScale float32) {
	h.stiffness = h.baseStiffness * stiffnessScale
	h.exponent = h.baseExponent * exponentScale
	h.damping = h.baseDamping * dampingScale
}

func (h *hammer) InContact() bool {
	return h.inContact
}

// Step advances the hammer one sample against the given string displacement
// and returns the contact force to inject into the string.
func (h *hammer) Step(stringDisp float32) float32 {
	if !h.inContact {
		return 0
	}
	compression := h.pos - stringDisp
	var force float32
	if compression > 0 {
		force = h.stiffness * fastmath.Pow(compression, h.exponent)
	}
	h.vel -= (force + h.damping*h.vel)
	h.pos += h.vel * 0.001

	h.contactSamples++
	if h.contactSamples >= h.contactMaxSamples || h.pos <= stringDisp && h.contactSamples > 2 {
		h.inContact = false
	}
	return force
}
