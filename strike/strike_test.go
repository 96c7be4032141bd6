package strike

import (
	"math"
	"testing"

	pdefd "github.com/cwbudde/algo-pde/fd"
	pdepoisson "github.com/cwbudde/algo-pde/poisson"
)

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestRenderInvalidPitchRejected(t *testing.T) {
	buf := make([]float32, 1000)
	if err := Render(buf, 10, 80, nil, 1000, false, false); err == nil {
		t.Fatalf("expected ErrInvalidPitch for note 10")
	}
	if err := Render(buf, 130, 80, nil, 1000, false, false); err == nil {
		t.Fatalf("expected ErrInvalidPitch for note 130")
	}
}

func TestRenderVelocityMonotonic(t *testing.T) {
	const n = 8000
	soft := make([]float32, n)
	loud := make([]float32, n)
	if err := Render(soft, 60, 30, nil, n, true, false); err != nil {
		t.Fatalf("Render soft: %v", err)
	}
	if err := Render(loud, 60, 120, nil, n, true, false); err != nil {
		t.Fatalf("Render loud: %v", err)
	}
	if rms(loud) <= rms(soft) {
		t.Fatalf("expected louder velocity to produce higher RMS: soft=%f loud=%f", rms(soft), rms(loud))
	}
}

func TestRenderDamperFadeReducesEnergy(t *testing.T) {
	const n = 48000
	noteOff := n / 4
	buf := make([]float32, n)
	if err := Render(buf, 60, 90, nil, noteOff, false, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	preRelease := rms(buf[:noteOff])
	postFade := rms(buf[n-4000:])
	if postFade >= preRelease {
		t.Fatalf("expected damped tail to be quieter than the struck note: pre=%f post=%f", preRelease, postFade)
	}
}

func TestRenderSustainKeepsRingingLongerThanDamped(t *testing.T) {
	const n = 48000
	noteOff := n / 4
	sustained := make([]float32, n)
	damped := make([]float32, n)
	if err := Render(sustained, 60, 90, nil, noteOff, true, false); err != nil {
		t.Fatalf("Render sustained: %v", err)
	}
	if err := Render(damped, 60, 90, nil, noteOff, false, false); err != nil {
		t.Fatalf("Render damped: %v", err)
	}
	tailSustained := rms(sustained[n-4000:])
	tailDamped := rms(damped[n-4000:])
	if tailSustained <= tailDamped {
		t.Fatalf("expected sustained tail to retain more energy than damped tail: sustained=%f damped=%f", tailSustained, tailDamped)
	}
}

func TestRenderSoftPedalReducesLoudness(t *testing.T) {
	const n = 8000
	normal := make([]float32, n)
	soft := make([]float32, n)
	if err := Render(normal, 60, 100, nil, n, true, false); err != nil {
		t.Fatalf("Render normal: %v", err)
	}
	if err := Render(soft, 60, 100, nil, n, true, true); err != nil {
		t.Fatalf("Render soft pedal: %v", err)
	}
	if rms(soft) >= rms(normal) {
		t.Fatalf("expected soft pedal to reduce loudness: normal=%f soft=%f", rms(normal), rms(soft))
	}
}

// TestAlgoPDEEigenspectrumSanity sanity-checks the finite-difference
// eigensolver that informs the soundboard resonator's pole placement: the
// periodic spectrum's zero mode and the Dirichlet spectrum's strictly
// positive, non-decreasing ordering are both preconditions for a stable
// second-order resonator (§4.3's `r < 1` invariant rests on the same
// well-behaved spectrum this test exercises).
func TestAlgoPDEEigenspectrumSanity(t *testing.T) {
	const n = 64
	const h = 1.0 / 64.0

	periodic := pdefd.Eigenvalues(n, h, pdepoisson.Periodic)
	if len(periodic) != n {
		t.Fatalf("unexpected periodic eigenvalue count: %d", len(periodic))
	}
	if math.Abs(periodic[0]) > 1e-12 {
		t.Fatalf("expected periodic zero mode at index 0, got %g", periodic[0])
	}

	dirichlet := pdefd.Eigenvalues(n, h, pdepoisson.Dirichlet)
	if len(dirichlet) != n {
		t.Fatalf("unexpected dirichlet eigenvalue count: %d", len(dirichlet))
	}
	if dirichlet[0] <= 0 {
		t.Fatalf("expected strictly positive first dirichlet eigenvalue, got %g", dirichlet[0])
	}
	for i := 1; i < len(dirichlet); i++ {
		if dirichlet[i] < dirichlet[i-1] {
			t.Fatalf("expected non-decreasing dirichlet eigenspectrum at %d: %g < %g", i, dirichlet[i], dirichlet[i-1])
		}
	}
}

func TestApplySympatheticResonanceDisabledIsNoop(t *testing.T) {
	mix := []float32{0.1, -0.2, 0.3, 0.05, -0.4}
	out := ApplySympatheticResonance(mix, 0)
	for i := range mix {
		if out[i] != mix[i] {
			t.Fatalf("expected zero gain to be a no-op at index %d: got %f want %f", i, out[i], mix[i])
		}
	}
}

func TestApplySympatheticResonanceAddsEnergy(t *testing.T) {
	const n = 4000
	mix := make([]float32, n)
	for i := range mix {
		mix[i] = float32(math.Sin(2 * math.Pi * 220 * float64(i) / sampleRate))
	}
	out := ApplySympatheticResonance(mix, 0.2)
	if len(out) != len(mix) {
		t.Fatalf("expected output length to match input, got %d want %d", len(out), len(mix))
	}
	if rms(out) == rms(mix) {
		t.Fatalf("expected sympathetic resonance to change the signal's energy")
	}
}
