package mixer

import "testing"

func TestRenderPeakNormalizedToTarget(t *testing.T) {
	const n = 4000
	stems := map[Track][]float32{
		TrackGuitar: make([]float32, n),
		TrackBass:   make([]float32, n),
	}
	for i := 0; i < n; i++ {
		stems[TrackGuitar][i] = 1.5
		stems[TrackBass][i] = -1.3
	}
	m := NewMixer(ArrangementFullBand, 0.5)
	out := m.Render(stems, n)

	var peak float32
	for _, s := range out {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak > 0.97 {
		t.Fatalf("expected peak normalized near 0.96, got %f", peak)
	}
}

func TestBalanceWeightNeutralAtMidpoint(t *testing.T) {
	if w := BalanceWeight(ArrangementFullBand, TrackGuitar, 1.5); w != 0.40 {
		t.Fatalf("expected neutral guitar weight 0.40, got %f", w)
	}
}

func TestBalanceWeightShiftsWithPluckPosition(t *testing.T) {
	low := BalanceWeight(ArrangementFullBand, TrackGuitar, 0.8)
	high := BalanceWeight(ArrangementFullBand, TrackGuitar, 2.5)
	if !(low > 0.40 && high < 0.40) {
		t.Fatalf("expected pluck_pos below 1.5 to favor guitar and above to attenuate it: low=%f high=%f", low, high)
	}
}

func TestBalanceWeightsNormalizeToOne(t *testing.T) {
	const n = 10
	stems := map[Track][]float32{
		TrackGuitar: make([]float32, n),
		TrackBass:   make([]float32, n),
		TrackDrums:  make([]float32, n),
	}
	for i := 0; i < n; i++ {
		stems[TrackGuitar][i] = 1
		stems[TrackBass][i] = 1
		stems[TrackDrums][i] = 1
	}
	m := NewMixer(ArrangementFullBand, 1.5)
	out := m.Render(stems, n)
	// band-split + ducking + compression all apply after weighting, so this
	// only checks the render doesn't panic and keeps the frame count; Render
	// itself divides the weights by their sum, and below checks that the
	// unnormalized BalanceWeight values at the neutral pluck_pos already sum
	// to 1.
	if len(out) != n {
		t.Fatalf("expected output length %d, got %d", n, len(out))
	}
	var sum float32
	for _, track := range []Track{TrackGuitar, TrackBass, TrackDrums} {
		sum += BalanceWeight(ArrangementFullBand, track, 1.5)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("expected base balance weights to sum to 1 at neutral pluck_pos, got %f", sum)
	}
}

func TestRenderHandlesEmptyStems(t *testing.T) {
	m := NewMixer(ArrangementFullBand, 0.5)
	out := m.Render(map[Track][]float32{}, 100)
	if len(out) != 100 {
		t.Fatalf("expected output length 100, got %d", len(out))
	}
}
