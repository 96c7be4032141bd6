// Package agc computes per-voice polyphony attenuation (spec component C6):
// a pre-scan pass builds a concurrency grid across all rendered events, and
// the resulting max polyphony determines a fixed gain applied to every voice.
package agc

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-stringband/midi"
)

// Instrument selects the gain law applied once max polyphony is known.
type Instrument int

const (
	// InstrumentGuitar (and bass, which shares the string-family law) scales
	// gain by the inverse square root of peak concurrency.
	InstrumentGuitar Instrument = iota
	// InstrumentPiano uses a fixed attenuation regardless of polyphony.
	InstrumentPiano
)

// MaxPolyphony scans the event list and returns the largest number of
// simultaneously sounding notes, using an integer concurrency grid sampled
// at each event boundary.
func MaxPolyphony(events []midi.Event) int {
	type boundary struct {
		sample uint64
		delta  int
	}
	bounds := make([]boundary, 0, len(events)*2)
	for _, ev := range events {
		bounds = append(bounds, boundary{ev.StartSample, 1}, boundary{ev.EndSample, -1})
	}
	// Ends before starts at equal sample: a note covers [start, end), so a
	// note ending where another begins does not count as concurrent with it.
	sort.Slice(bounds, func(i, j int) bool {
		if bounds[i].sample != bounds[j].sample {
			return bounds[i].sample < bounds[j].sample
		}
		return bounds[i].delta < bounds[j].delta
	})
	var current, max int
	for _, b := range bounds {
		current += b.delta
		if current > max {
			max = current
		}
	}
	return max
}

// Gain returns the fixed per-voice attenuation for the given instrument and
// the score's peak polyphony.
func Gain(instrument Instrument, maxPolyphony int) float32 {
	if instrument == InstrumentPiano {
		return 0.8
	}
	if maxPolyphony < 1 {
		maxPolyphony = 1
	}
	return float32(1.0 / math.Sqrt(float64(maxPolyphony)))
}
