// Package mixer implements the multi-track mixdown stage (spec component
// C8): energy-aware ducking between simultaneously active tracks,
// band-split balance weighting, and master-bus soft-knee compression with
// peak normalization.
package mixer

import (
	"math"

	"github.com/cwbudde/algo-stringband/dsp"
)

const sampleRate = 48000

// Track identifies a rendered stem for band-splitting and balance weighting.
type Track int

const (
	TrackGuitar Track = iota
	TrackBass
	TrackDrums
)

// Arrangement selects the balance-law weight set.
type Arrangement int

const (
	ArrangementFullBand Arrangement = iota
	ArrangementGuitarBass
)

// bandSplit returns a biquad that isolates the track's characteristic band
// before ducking/balance weighting is applied.
func bandSplit(track Track, arrangement Arrangement) *dsp.Biquad {
	switch track {
	case TrackBass:
		return dsp.NewLowpass(250, sampleRate, 0.707)
	case TrackGuitar:
		if arrangement == ArrangementGuitarBass {
			return dsp.NewHighpass(200, sampleRate, 0.707)
		}
		return dsp.NewBandpass(1265, sampleRate, 0.20) // ~[200,8000]Hz
	case TrackDrums:
		return dsp.NewHighpass(100, sampleRate, 0.707)
	default:
		return nil
	}
}

// baseWeights are the neutral three-voice balance weights, per spec.md
// §4.8: (guitar, bass, drums) = (0.40, 0.32, 0.28).
var baseWeights = map[Track]float32{
	TrackGuitar: 0.40,
	TrackBass:   0.32,
	TrackDrums:  0.28,
}

// pluckPositionRange returns the valid range of the balance-law's pluck_pos
// knob for an arrangement: [0.8,2.5] for FullBand, [0.3,3.0] for GuitarBass.
func pluckPositionRange(arrangement Arrangement) (float32, float32) {
	if arrangement == ArrangementGuitarBass {
		return 0.3, 3.0
	}
	return 0.8, 2.5
}

const balanceNeutral = 1.5
const balanceSpan = 0.7

// BalanceWeight returns the unnormalized mix weight for track under the
// asymmetric balance law of spec.md §4.8: pluckPos is clamped into the
// arrangement's valid range, then for pluckPos<1.5 (favor guitar) guitar is
// scaled up and bass/drums scaled down by the same distance-from-neutral
// ratio, symmetrically reversed above 1.5. Callers must normalize the
// weights across all present tracks to sum to 1.
func BalanceWeight(arrangement Arrangement, track Track, pluckPos float32) float32 {
	base, ok := baseWeights[track]
	if !ok {
		return 1.0
	}

	lo, hi := pluckPositionRange(arrangement)
	p := pluckPos
	if p < lo {
		p = lo
	}
	if p > hi {
		p = hi
	}

	favorGuitar := p < balanceNeutral
	var ratio float32
	if favorGuitar {
		ratio = (balanceNeutral - p) / balanceSpan
	} else {
		ratio = (p - balanceNeutral) / balanceSpan
	}

	switch track {
	case TrackGuitar:
		if favorGuitar {
			return base * (1 + ratio*0.3)
		}
		return base * (1 - ratio*0.3)
	case TrackBass, TrackDrums:
		if favorGuitar {
			return base * (1 - ratio*0.2)
		}
		return base * (1 + ratio*0.2)
	}
	return base
}

// Mixer accumulates band-split, ducked, balance-weighted tracks into a
// single master bus and applies soft-knee compression and peak
// normalization on Render.
type Mixer struct {
	Arrangement   Arrangement
	PluckPosition float32
}

// NewMixer returns a Mixer for the given arrangement.
func NewMixer(arrangement Arrangement, pluckPosition float32) *Mixer {
	return &Mixer{Arrangement: arrangement, PluckPosition: pluckPosition}
}

// Render sums the supplied per-track stems (all equal length) into a single
// mono master buffer: band-split, energy-aware duck, balance-weight, sum,
// soft-knee compress, and peak-normalize to 0.96.
func (m *Mixer) Render(stems map[Track][]float32, numFrames int) []float32 {
	filtered := make(map[Track][]float32, len(stems))
	for track, buf := range stems {
		filter := bandSplit(track, m.Arrangement)
		var second *dsp.Biquad
		if track == TrackBass {
			// Order-4 bass lowpass: two cascaded biquad sections.
			second = bandSplit(track, m.Arrangement)
		}
		out := make([]float32, numFrames)
		for i := 0; i < numFrames && i < len(buf); i++ {
			if filter != nil {
				out[i] = filter.Process(buf[i])
				if second != nil {
					out[i] = second.Process(out[i])
				}
			} else {
				out[i] = buf[i]
			}
		}
		filtered[track] = out
	}

	energy := energyEnvelopes(filtered, numFrames)

	weights := make(map[Track]float32, len(filtered))
	var weightSum float32
	for track := range filtered {
		w := BalanceWeight(m.Arrangement, track, m.PluckPosition)
		weights[track] = w
		weightSum += w
	}
	if weightSum > 0 {
		for t := range weights {
			weights[t] /= weightSum
		}
	}

	master := make([]float32, numFrames)
	for track, buf := range filtered {
		weight := weights[track]
		for i := 0; i < numFrames; i++ {
			duck := duckingGain(track, i, energy)
			master[i] += buf[i] * weight * duck
		}
	}

	compressMasterBus(master)
	normalizePeak(master, 0.96)
	return master
}

// energyEnvelopes computes a 1-second moving average of x^2 per track,
// smoothed by a Gaussian kernel with sigma=0.1s, for ducking decisions.
func energyEnvelopes(filtered map[Track][]float32, numFrames int) map[Track][]float32 {
	const windowSamples = sampleRate
	result := make(map[Track][]float32, len(filtered))
	for track, buf := range filtered {
		raw := make([]float32, numFrames)
		var runningSum float64
		for i := 0; i < numFrames; i++ {
			v := float64(buf[i])
			runningSum += v * v
			if i >= windowSamples {
				prevV := float64(buf[i-windowSamples])
				runningSum -= prevV * prevV
			}
			n := windowSamples
			if i+1 < n {
				n = i + 1
			}
			raw[i] = float32(runningSum / float64(n))
		}
		result[track] = gaussianSmooth(raw, 0.1*sampleRate)
	}
	return result
}

func gaussianSmooth(x []float32, sigmaSamples float64) []float32 {
	radius := int(3 * sigmaSamples)
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigmaSamples * sigmaSamples))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	out := make([]float32, len(x))
	for i := range x {
		var acc float64
		for k := -radius; k <= radius; k++ {
			j := i + k
			if j < 0 {
				j = 0
			}
			if j >= len(x) {
				j = len(x) - 1
			}
			acc += float64(x[j]) * kernel[k+radius]
		}
		out[i] = float32(acc)
	}
	return out
}

// duckingGain attenuates a track when another track's smoothed energy
// dominates at sample i (guitar/bass duck under a louder drums hit, etc.).
func duckingGain(track Track, i int, energy map[Track][]float32) float32 {
	self := energy[track][i]
	var otherMax float32
	for t, env := range energy {
		if t == track {
			continue
		}
		if env[i] > otherMax {
			otherMax = env[i]
		}
	}
	if otherMax <= self || self == 0 {
		return 1.0
	}
	ratio := self / otherMax
	const duckFloor = 0.6
	return duckFloor + (1-duckFloor)*ratio
}

// compressMasterBus applies a 3:1 soft-knee compressor above threshold 0.7.
func compressMasterBus(buf []float32) {
	const threshold = 0.7
	const ratio = 3.0
	const kneeWidth = 0.1
	for i, x := range buf {
		a := x
		sign := float32(1.0)
		if a < 0 {
			a = -a
			sign = -1.0
		}
		var out float32
		switch {
		case a < threshold-kneeWidth/2:
			out = a
		case a > threshold+kneeWidth/2:
			out = threshold + (a-threshold)/ratio
		default:
			// soft knee: quadratic blend between unity and 1/ratio slope
			delta := a - (threshold - kneeWidth/2)
			slope := 1.0 + (1.0/ratio-1.0)*(delta/(2*kneeWidth))
			out = (threshold - kneeWidth/2) + delta*slope
		}
		buf[i] = sign * out
	}
}

func normalizePeak(buf []float32, target float32) {
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
	if peak == 0 {
		return
	}
	scale := target / peak
	for i := range buf {
		buf[i] *= scale
	}
}
