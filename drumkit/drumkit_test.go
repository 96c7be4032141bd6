package drumkit

import (
	"math"
	"testing"
)

func peak(buf []float32) float32 {
	var m float32
	for _, s := range buf {
		a := s
		if a < 0 {
			a = -a
		}
		if a > m {
			m = a
		}
	}
	return m
}

func TestVoiceForPitchMapsGMDrumMap(t *testing.T) {
	cases := map[int]Voice{
		36: VoiceKick,
		38: VoiceSnare,
		42: VoiceClosedHat,
		46: VoiceOpenHat,
		45: VoiceTom,
		49: VoiceCymbal,
	}
	for pitch, want := range cases {
		if got := VoiceForPitch(pitch); got != want {
			t.Fatalf("VoiceForPitch(%d) = %v, want %v", pitch, got, want)
		}
	}
}

func TestRenderVelocityScalesPeak(t *testing.T) {
	const n = 4000
	soft := make([]float32, n)
	loud := make([]float32, n)
	Render(soft, 36, 20, 0.7, 1.0, 11)
	Render(loud, 36, 120, 0.7, 1.0, 11)
	if peak(loud) <= peak(soft) {
		t.Fatalf("expected higher velocity to produce higher peak: soft=%f loud=%f", peak(soft), peak(loud))
	}
}

func TestRenderProducesFiniteOutput(t *testing.T) {
	buf := make([]float32, 8000)
	Render(buf, 49, 100, 0.7, 1.0, 5)
	for i, s := range buf {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("non-finite sample at %d: %f", i, s)
		}
	}
}

func TestRenderOpenHatDecaysSlowerThanClosed(t *testing.T) {
	const n = 24000
	closedBuf := make([]float32, n)
	openBuf := make([]float32, n)
	Render(closedBuf, 42, 100, 0.7, 1.0, 3)
	Render(openBuf, 46, 100, 0.7, 1.0, 3)
	tailClosed := peak(closedBuf[n-2000:])
	tailOpen := peak(openBuf[n-2000:])
	if tailOpen <= tailClosed {
		t.Fatalf("expected open hat tail to retain more energy: closed=%f open=%f", tailClosed, tailOpen)
	}
}

func TestRenderBrightnessChangesKickClick(t *testing.T) {
	const n = 2000
	dark := make([]float32, n)
	bright := make([]float32, n)
	Render(dark, 36, 100, 0.0, 1.0, 7)
	Render(bright, 36, 100, 1.0, 1.0, 7)
	var diff float64
	for i := range dark {
		d := float64(bright[i] - dark[i])
		diff += d * d
	}
	if diff == 0 {
		t.Fatalf("expected brightness to change the kick's click-noise filtering")
	}
}

func TestRenderBrightnessChangesHatFiltering(t *testing.T) {
	const n = 2000
	dark := make([]float32, n)
	bright := make([]float32, n)
	Render(dark, 42, 100, 0.0, 1.0, 7)
	Render(bright, 42, 100, 1.0, 1.0, 7)
	var diff float64
	for i := range dark {
		d := float64(bright[i] - dark[i])
		diff += d * d
	}
	if diff == 0 {
		t.Fatalf("expected brightness to change the closed hat's highpass cutoff")
	}
}
