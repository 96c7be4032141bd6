// Package midi extracts a flat, time-ordered note-event timeline from a
// Standard MIDI File, shared by every instrument engine in this module.
package midi

import (
	"bytes"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	sampleRate      = 48000
	silenceClampSec = 2.0
	tailSeconds     = 2.0
)

// Event is one flattened note with sustain-pedal context captured at note-on.
type Event struct {
	StartSample uint64
	EndSample   uint64
	Pitch       uint8
	Velocity    uint8
	Sustained   bool
}

// Score is the complete extracted timeline of a MIDI file.
type Score struct {
	Events       []Event
	TotalSamples uint64
}

type openNote struct {
	startSample uint64
	velocity    uint8
	sustained   bool
}

type tempoPoint struct {
	tick     uint64
	microsPQ uint32
}

type tickMsg struct {
	absTick uint64
	msg     smf.Message
}

// Extract parses a Standard MIDI File and returns its flattened note timeline.
// Malformed input returns a zero-value Score and a nil error: per the render
// pipeline's error taxonomy, an unparsable file is treated as an empty score,
// not a fatal error in its own right.
func Extract(data []byte) (Score, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return Score{}, nil
	}

	ppq := uint32(960)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && uint32(mt) > 0 {
		ppq = uint32(mt)
	}

	var merged []tickMsg
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			merged = append(merged, tickMsg{absTick: abs, msg: ev.Message})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].absTick < merged[j].absTick })

	tempoMap := buildTempoMap(merged)

	open := make(map[uint8]*openNote)
	sustainDown := false
	var events []Event
	var cursorSamples uint64
	var lastTick uint64

	closeNote := func(pitch uint8, endSample uint64) {
		n, ok := open[pitch]
		if !ok {
			return
		}
		delete(open, pitch)
		if endSample <= n.startSample {
			endSample = n.startSample + 1
		}
		events = append(events, Event{
			StartSample: n.startSample,
			EndSample:   endSample,
			Pitch:       pitch,
			Velocity:    n.velocity,
			Sustained:   n.sustained,
		})
	}

	for _, tm := range merged {
		deltaSamples := ticksToSamples(tm.absTick-lastTick, ppq, tempoMap, lastTick)
		lastTick = tm.absTick

		clamp := uint64(silenceClampSec * sampleRate)
		if deltaSamples > clamp {
			deltaSamples = clamp
		}
		cursorSamples += deltaSamples

		var channel, key, velocity uint8
		switch {
		case tm.msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
			open[key] = &openNote{startSample: cursorSamples, velocity: velocity, sustained: sustainDown}
		case tm.msg.GetNoteOn(&channel, &key, &velocity):
			closeNote(key, cursorSamples)
		case tm.msg.GetNoteOff(&channel, &key, &velocity):
			closeNote(key, cursorSamples)
		default:
			var controller, value uint8
			if tm.msg.GetControlChange(&channel, &controller, &value) && controller == 64 {
				sustainDown = value >= 64
			}
		}
	}

	totalSamples := cursorSamples + uint64(tailSeconds*sampleRate)
	tailClose := uint64(0)
	if totalSamples > uint64(2*sampleRate) {
		tailClose = totalSamples - uint64(2*sampleRate)
	}
	pitches := make([]uint8, 0, len(open))
	for p := range open {
		pitches = append(pitches, p)
	}
	sort.Slice(pitches, func(i, j int) bool { return pitches[i] < pitches[j] })
	for _, p := range pitches {
		closeNote(p, tailClose)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartSample != events[j].StartSample {
			return events[i].StartSample < events[j].StartSample
		}
		return events[i].Pitch < events[j].Pitch
	})

	return Score{Events: events, TotalSamples: totalSamples}, nil
}

func buildTempoMap(merged []tickMsg) []tempoPoint {
	points := []tempoPoint{{tick: 0, microsPQ: 500000}}
	for _, tm := range merged {
		var bpm float64
		if tm.msg.GetMetaTempo(&bpm) && bpm > 0 {
			points = append(points, tempoPoint{tick: tm.absTick, microsPQ: uint32(60000000.0 / bpm)})
		}
	}
	return points
}

// ticksToSamples converts a tick delta beginning at fromTick into a sample
// count using the tempo in effect at fromTick (no tempo changes occur within
// a single delta-time span for any well-formed SMF).
func ticksToSamples(deltaTicks uint64, ppq uint32, tempoMap []tempoPoint, fromTick uint64) uint64 {
	if ppq == 0 {
		ppq = 960
	}
	microsPQ := uint32(500000)
	for _, p := range tempoMap {
		if p.tick <= fromTick {
			microsPQ = p.microsPQ
		} else {
			break
		}
	}
	seconds := (float64(deltaTicks) / float64(ppq)) * (float64(microsPQ) / 1e6)
	return uint64(seconds * sampleRate)
}
