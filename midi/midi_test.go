package midi

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func buildSMF(t *testing.T, build func(tr *smf.Track)) []byte {
	t.Helper()
	s := smf.New()
	var tr smf.Track
	build(&tr)
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	return buf.Bytes()
}

func TestExtractSingleNote(t *testing.T) {
	data := buildSMF(t, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOff(0, 60))
	})

	score, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(score.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(score.Events))
	}
	ev := score.Events[0]
	if ev.Pitch != 60 || ev.Velocity != 100 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.EndSample <= ev.StartSample {
		t.Fatalf("end_sample must be > start_sample: %+v", ev)
	}
}

func TestExtractMalformedReturnsEmptyScore(t *testing.T) {
	score, err := Extract([]byte("not a midi file"))
	if err != nil {
		t.Fatalf("expected nil error for malformed input, got %v", err)
	}
	if len(score.Events) != 0 || score.TotalSamples != 0 {
		t.Fatalf("expected empty score, got %+v", score)
	}
}

func TestExtractSustainedFlag(t *testing.T) {
	data := buildSMF(t, func(tr *smf.Track) {
		tr.Add(0, midi.ControlChange(0, 64, 127))
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOff(0, 60))
	})

	score, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(score.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(score.Events))
	}
	if !score.Events[0].Sustained {
		t.Fatalf("expected sustained flag to be true")
	}
}

func TestExtractUnclosedNoteClosesNearEnd(t *testing.T) {
	data := buildSMF(t, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 64, 90))
	})

	score, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(score.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(score.Events))
	}
	if score.Events[0].EndSample == 0 {
		t.Fatalf("expected non-zero end sample for force-closed note")
	}
}

func TestExtractOrderingIsStableByStartThenPitch(t *testing.T) {
	data := buildSMF(t, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 67, 100))
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOff(0, 67))
		tr.Add(0, midi.NoteOff(0, 60))
	})

	score, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(score.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(score.Events))
	}
	if score.Events[0].Pitch != 60 || score.Events[1].Pitch != 67 {
		t.Fatalf("expected pitch-ordered events, got %+v", score.Events)
	}
}
