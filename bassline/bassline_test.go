package bassline

import (
	"testing"

	"github.com/cwbudde/algo-stringband/midi"
)

func ev(start uint64, pitch, velocity uint8) midi.Event {
	return midi.Event{StartSample: start, EndSample: start + 1000, Pitch: pitch, Velocity: velocity}
}

func TestFilterAccompanimentThinsDenseCluster(t *testing.T) {
	score := midi.Score{Events: []midi.Event{
		ev(0, 40, 80),
		ev(100, 43, 80),
		ev(200, 36, 80),
	}}
	a := NewArranger(ModeAccompaniment)
	out := a.Filter(score)
	if len(out) != 1 {
		t.Fatalf("expected the three clustered notes to collapse to 1, got %d: %+v", len(out), out)
	}
	if out[0].Pitch != 36 {
		t.Fatalf("expected lowest pitch 36 to be selected, got %d", out[0].Pitch)
	}
}

func TestFilterAccompanimentRespectsMinGap(t *testing.T) {
	sr := 48000
	score := midi.Score{Events: []midi.Event{
		ev(0, 36, 70),
		ev(uint64(0.05*float64(sr)), 38, 70),
	}}
	a := NewArranger(ModeAccompaniment)
	out := a.Filter(score)
	if len(out) != 1 {
		t.Fatalf("expected second note within 120ms gap to be dropped, got %d: %+v", len(out), out)
	}
}

func TestFilterAccompanimentDropsAbovePitch67(t *testing.T) {
	score := midi.Score{Events: []midi.Event{ev(0, 72, 90)}}
	a := NewArranger(ModeAccompaniment)
	out := a.Filter(score)
	if len(out) != 0 {
		t.Fatalf("expected pitch above 67 to be dropped entirely, got %+v", out)
	}
}

func TestFilterAccompanimentFoldsIntoRange(t *testing.T) {
	score := midi.Score{Events: []midi.Event{ev(0, 20, 90)}}
	a := NewArranger(ModeAccompaniment)
	out := a.Filter(score)
	if len(out) != 1 {
		t.Fatalf("expected 1 event, got %d", len(out))
	}
	if out[0].Pitch < accompLow || out[0].Pitch > accompHigh {
		t.Fatalf("expected folded pitch within [%d,%d], got %d", accompLow, accompHigh, out[0].Pitch)
	}
}

func TestFilterSoloSkipsClustering(t *testing.T) {
	score := midi.Score{Events: []midi.Event{
		ev(0, 40, 80),
		ev(100, 43, 80),
	}}
	a := NewArranger(ModeSolo)
	out := a.Filter(score)
	if len(out) != 2 {
		t.Fatalf("expected solo mode to keep both notes, got %d", len(out))
	}
}

func TestFilterSoloFoldOctavesDisabledDropsOutOfRange(t *testing.T) {
	score := midi.Score{Events: []midi.Event{ev(0, 10, 80)}}
	a := NewArranger(ModeSolo)
	a.FoldSoloOctaves = false
	out := a.Filter(score)
	if len(out) != 0 {
		t.Fatalf("expected out-of-range note to be dropped when folding disabled, got %+v", out)
	}
}
