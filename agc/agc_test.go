package agc

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-stringband/midi"
)

func ev(start, end uint64) midi.Event {
	return midi.Event{StartSample: start, EndSample: end}
}

func TestMaxPolyphonyNoOverlap(t *testing.T) {
	events := []midi.Event{ev(0, 100), ev(100, 200), ev(200, 300)}
	if got := MaxPolyphony(events); got != 1 {
		t.Fatalf("expected max polyphony 1, got %d", got)
	}
}

func TestMaxPolyphonyThreeOverlapping(t *testing.T) {
	events := []midi.Event{ev(0, 500), ev(100, 500), ev(200, 500)}
	if got := MaxPolyphony(events); got != 3 {
		t.Fatalf("expected max polyphony 3, got %d", got)
	}
}

func TestGainPianoIsFixed(t *testing.T) {
	if g := Gain(InstrumentPiano, 10); g != 0.8 {
		t.Fatalf("expected fixed 0.8 gain for piano, got %f", g)
	}
}

func TestGainGuitarScalesByInverseSqrt(t *testing.T) {
	g := Gain(InstrumentGuitar, 4)
	want := float32(0.5)
	if math.Abs(float64(g-want)) > 1e-6 {
		t.Fatalf("expected gain 1/sqrt(4)=0.5, got %f", g)
	}
}
