package fx

import (
	"math"
	"testing"
)

func TestLimitClampsPeakNearTarget(t *testing.T) {
	buf := make([]float32, 2000)
	for i := range buf {
		buf[i] = float32(math.Sin(float64(i) * 0.1))
	}
	buf[500] = 2.5
	buf[1500] = -2.3
	Limit(buf, 0.9)

	var peak float32
	for _, s := range buf {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak > 1.0 {
		t.Fatalf("expected limiter to keep peak close to target, got %f", peak)
	}
}

func TestLimitLeavesQuietSignalUnchanged(t *testing.T) {
	buf := []float32{0.1, -0.2, 0.05, 0.15}
	want := append([]float32(nil), buf...)
	Limit(buf, 0.9)
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("expected unchanged sample %d: got %f want %f", i, buf[i], want[i])
		}
	}
}

func TestChainProcessPreservesLength(t *testing.T) {
	c := NewChain(InstrumentGuitar, 0.6, 0.3, 0.15)
	in := make([]float32, 4000)
	in[0] = 1.0
	out, err := c.Process(in)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected output length %d, got %d", len(in), len(out))
	}
}

func TestChainProcessAddsReverbTail(t *testing.T) {
	c := NewChain(InstrumentPiano, 0.65, 0.3, 0.15)
	in := make([]float32, 8000)
	in[0] = 1.0
	out, err := c.Process(in)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	var tailEnergy float64
	for _, s := range out[6000:] {
		tailEnergy += float64(s) * float64(s)
	}
	if tailEnergy == 0 {
		t.Fatalf("expected reverb tail energy beyond the dry impulse")
	}
}

func TestDrumsSaturationScalesWithBodyMix(t *testing.T) {
	in := make([]float32, 2000)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.2))
	}
	mild, err := NewChain(InstrumentDrums, 0.5, 0.0, 0.2).Process(in)
	if err != nil {
		t.Fatalf("Process (mild): %v", err)
	}
	driven, err := NewChain(InstrumentDrums, 0.5, 1.0, 0.2).Process(in)
	if err != nil {
		t.Fatalf("Process (driven): %v", err)
	}
	var mildEnergy, drivenEnergy float64
	for i := range mild {
		mildEnergy += float64(mild[i]) * float64(mild[i])
		drivenEnergy += float64(driven[i]) * float64(driven[i])
	}
	if drivenEnergy == mildEnergy {
		t.Fatalf("expected body_mix to change the saturation drive: mild=%f driven=%f", mildEnergy, drivenEnergy)
	}
}

func TestLimiterTargetPerInstrument(t *testing.T) {
	cases := map[Instrument]float32{
		InstrumentGuitar: 0.93,
		InstrumentDrums:  0.95,
		InstrumentBass:   0.96,
		InstrumentPiano:  0.96,
	}
	for instrument, want := range cases {
		if got := LimiterTarget(instrument); got != want {
			t.Fatalf("LimiterTarget(%v) = %f, want %f", instrument, got, want)
		}
	}
}
