// Package bassline implements the bass arrangement filter (spec component
// C5): accompaniment-mode note clustering/thinning and octave folding,
// applied to a flattened MIDI score before voice rendering.
package bassline

import "github.com/cwbudde/algo-stringband/midi"

const (
	sampleRate = 48000

	clusterWindowSec = 0.040
	minGapSec        = 0.120
	minGapVelGateSec = 0.060
	velocityGate     = 90
	dropAbovePitch   = 67

	accompLow, accompHigh = 28, 48
	soloLow, soloHigh     = 28, 60
)

// Mode selects accompaniment (clustered/thinned) or solo (unfiltered, wider
// range) bass arrangement behavior.
type Mode int

const (
	ModeAccompaniment Mode = iota
	ModeSolo
)

// Arranger filters a raw score down to a playable bass line.
type Arranger struct {
	Mode Mode
	// FoldSoloOctaves controls whether solo-mode notes outside [soloLow,
	// soloHigh] are octave-folded back into range, or dropped. Defaults to
	// true (open question, resolved in favor of folding: see design notes).
	FoldSoloOctaves bool
}

// NewArranger returns an Arranger with the open-question default applied.
func NewArranger(mode Mode) *Arranger {
	return &Arranger{Mode: mode, FoldSoloOctaves: true}
}

// Filter returns the subset (and pitch-folded copies) of events that should
// be voiced as the bass part.
func (a *Arranger) Filter(score midi.Score) []midi.Event {
	if a.Mode == ModeSolo {
		return a.filterSolo(score)
	}
	return a.filterAccompaniment(score)
}

func (a *Arranger) filterSolo(score midi.Score) []midi.Event {
	out := make([]midi.Event, 0, len(score.Events))
	for _, ev := range score.Events {
		if folded, ok := a.fold(ev.Pitch, soloLow, soloHigh, a.FoldSoloOctaves); ok {
			ev.Pitch = folded
			out = append(out, ev)
		}
	}
	return out
}

func (a *Arranger) filterAccompaniment(score midi.Score) []midi.Event {
	clusters := clusterByWindow(score.Events, uint64(clusterWindowSec*sampleRate))

	var accepted []midi.Event
	var lastAcceptedStart uint64
	haveLast := false

	for _, cluster := range clusters {
		lowest := lowestPitch(cluster)
		if lowest.Pitch > dropAbovePitch {
			continue
		}

		gap := lowest.StartSample
		if haveLast {
			gap = lowest.StartSample - lastAcceptedStart
		}
		minGap := uint64(minGapSec * sampleRate)
		if lowest.Velocity > velocityGate {
			minGap = uint64(minGapVelGateSec * sampleRate)
		}
		if haveLast && gap < minGap {
			continue
		}

		if folded, ok := a.fold(lowest.Pitch, accompLow, accompHigh, true); ok {
			lowest.Pitch = folded
			accepted = append(accepted, lowest)
			lastAcceptedStart = lowest.StartSample
			haveLast = true
		}
	}
	return accepted
}

// fold octave-shifts pitch into [lo, hi]. When allowFold is false, pitches
// outside the range are dropped instead of folded.
func (a *Arranger) fold(pitch uint8, lo, hi uint8, allowFold bool) (uint8, bool) {
	p := int(pitch)
	if !allowFold {
		if p < int(lo) || p > int(hi) {
			return 0, false
		}
		return pitch, true
	}
	for p < int(lo) {
		p += 12
	}
	for p > int(hi) {
		p -= 12
	}
	return uint8(p), true
}

// clusterByWindow groups consecutive events whose start times fall within
// windowSamples of the cluster's first event.
func clusterByWindow(events []midi.Event, windowSamples uint64) [][]midi.Event {
	var clusters [][]midi.Event
	var current []midi.Event
	var clusterStart uint64

	for _, ev := range events {
		if len(current) == 0 {
			current = []midi.Event{ev}
			clusterStart = ev.StartSample
			continue
		}
		if ev.StartSample-clusterStart <= windowSamples {
			current = append(current, ev)
			continue
		}
		clusters = append(clusters, current)
		current = []midi.Event{ev}
		clusterStart = ev.StartSample
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters
}

func lowestPitch(cluster []midi.Event) midi.Event {
	lowest := cluster[0]
	for _, ev := range cluster[1:] {
		if ev.Pitch < lowest.Pitch {
			lowest = ev
		}
	}
	return lowest
}
