// Package render implements the external render API and orchestration
// pipeline (spec component C10): MIDI in, mixed mono WAV and float samples
// out, routing each event through the instrument's voice model, per-voice
// gain control, post-FX, and (for multi-track arrangements) the mixer.
package render

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-stringband/agc"
	"github.com/cwbudde/algo-stringband/bassline"
	"github.com/cwbudde/algo-stringband/drumkit"
	"github.com/cwbudde/algo-stringband/fx"
	"github.com/cwbudde/algo-stringband/internal/fastmath"
	"github.com/cwbudde/algo-stringband/midi"
	"github.com/cwbudde/algo-stringband/mixer"
	"github.com/cwbudde/algo-stringband/pluck"
	"github.com/cwbudde/algo-stringband/strike"
	"github.com/cwbudde/algo-stringband/wavio"
)

const sampleRate = 48000
const maxDurationSeconds = 600

// Instrument selects the voice model(s) and mix topology for a render.
type Instrument int

const (
	InstrumentGuitar Instrument = iota
	InstrumentBass
	InstrumentPiano
	InstrumentDrums
	InstrumentGuitarBass
	InstrumentFullBand
)

// Error codes from the render pipeline's input-validation and capacity
// error classes (fatal: the render did not produce output).
var (
	ErrInvalidMIDI      = errors.New("render: invalid midi data")
	ErrEmptyScore       = errors.New("render: score contains no notes")
	ErrDurationExceeded = errors.New("render: duration exceeds 600 seconds")
	ErrInvalidParameter = errors.New("render: invalid parameter")
	ErrEncodingFailed   = errors.New("render: wav encoding failed")
)

// Params collects the instrument-parameter quintet of spec.md §3/§6
// (`brightness, pluck_position, body_mix, reflection, coupling`). Each
// engine interprets PluckPosition differently per §3's "coupling is
// engine-specific" note applied symmetrically to pluck_position: it is the
// mixer balance-law knob for GuitarBass/FullBand ([0.3,3.0]/[0.8,2.5],
// neutral 1.5), and the percussion velocity-curve exponent for Drums
// ([0.5,2.0]). Guitar/Bass/Piano ignore it (their own excitation-position
// semantics are absorbed into the voice models' fixed constants).
type Params struct {
	Brightness    float32 // [0,1], high-frequency retention in the feedback loop
	Coupling      float32 // [0,1], guitar inter-string damping (the bass engine ignores it)
	PluckPosition float32 // mixer balance-law knob or drums velocity-curve exponent
	BodyMix       float32 // [0,1], drums saturation drive (other instruments ignore it)
	Reflection    float32 // [0,0.5], reverb tap gain scale

	BassMode            bassline.Mode
	BassFoldSoloOctaves bool

	SoftPedal    bool
	StrikeParams *strike.Params

	SustainPedalIgnored bool // reserved: sustain is read from the score itself
}

// DefaultParams returns the documented default parameter set.
func DefaultParams() Params {
	return Params{
		Brightness:          0.5,
		Coupling:            0.3,
		PluckPosition:       1.5,
		BodyMix:             0.3,
		Reflection:          0.15,
		BassMode:            bassline.ModeAccompaniment,
		BassFoldSoloOctaves: true,
		StrikeParams:        strike.NewDefaultParams(),
	}
}

// Result is the output of a successful Render call.
type Result struct {
	WAV     []byte
	Samples []float32
}

// Render parses midiData, renders it through the requested instrument, and
// returns both the encoded WAV bytes and the underlying float samples.
func Render(midiData []byte, instrument Instrument, params Params) (Result, error) {
	if params.Brightness < 0 || params.Brightness > 1 || params.Coupling < 0 || params.Coupling > 1 {
		return Result{}, ErrInvalidParameter
	}
	if params.BodyMix < 0 || params.BodyMix > 1 || params.Reflection < 0 || params.Reflection > 0.5 {
		return Result{}, ErrInvalidParameter
	}

	score, err := midi.Extract(midiData)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidMIDI, err)
	}
	if len(score.Events) == 0 {
		return Result{}, ErrEmptyScore
	}
	if score.TotalSamples > uint64(maxDurationSeconds*sampleRate) {
		return Result{}, ErrDurationExceeded
	}

	var mix []float32
	switch instrument {
	case InstrumentGuitar:
		mix, err = renderPluckTrack(score, pluck.EngineGuitar, params, agc.InstrumentGuitar)
	case InstrumentBass:
		mix, err = renderBassTrack(score, params)
	case InstrumentPiano:
		mix, err = renderStrikeTrack(score, params)
	case InstrumentDrums:
		mix = renderDrumTrack(score, params)
	case InstrumentGuitarBass, InstrumentFullBand:
		mix, err = renderEnsemble(score, instrument, params)
	default:
		return Result{}, ErrInvalidParameter
	}
	if err != nil {
		return Result{}, err
	}

	sink := newMemWriteSeeker()
	if encErr := wavio.EncodeMono(sink, mix); encErr != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEncodingFailed, encErr)
	}

	return Result{WAV: sink.Bytes(), Samples: mix}, nil
}

func renderPluckTrack(score midi.Score, engine pluck.Engine, params Params, instrument agc.Instrument) ([]float32, error) {
	maxPoly := agc.MaxPolyphony(score.Events)
	gain := agc.Gain(instrument, maxPoly)

	mix := make([]float32, score.TotalSamples)
	for _, ev := range score.Events {
		f0 := fundamentalFor(ev.Pitch)
		length := int(ev.EndSample - ev.StartSample)
		if length <= 0 {
			continue
		}
		voiceBuf := make([]float32, length)
		noteOff := int(0.8 * float64(length))
		if err := pluck.Render(voiceBuf, f0, engine, params.Brightness, params.Coupling, noteOff, ev.Sustained, pluckSeed(ev)); err != nil {
			continue
		}
		sumInto(mix, voiceBuf, ev.StartSample, gain*velocityScale(ev.Velocity))
	}

	inst := eqInstrumentForEngine(engine)
	c := fx.NewChain(inst, params.Brightness, params.BodyMix, params.Reflection)
	out, err := c.Process(mix)
	if err != nil {
		return nil, err
	}
	fx.Limit(out, fx.LimiterTarget(inst))
	return out, nil
}

func renderBassTrack(score midi.Score, params Params) ([]float32, error) {
	arranger := bassline.NewArranger(params.BassMode)
	arranger.FoldSoloOctaves = params.BassFoldSoloOctaves
	events := arranger.Filter(score)
	filteredScore := midi.Score{Events: events, TotalSamples: score.TotalSamples}
	return renderPluckTrack(filteredScore, pluck.EngineBass, params, agc.InstrumentGuitar)
}

func renderStrikeTrack(score midi.Score, params Params) ([]float32, error) {
	mix := make([]float32, score.TotalSamples)
	gain := agc.Gain(agc.InstrumentPiano, 0)
	for _, ev := range score.Events {
		length := int(ev.EndSample - ev.StartSample)
		if length <= 0 {
			continue
		}
		voiceBuf := make([]float32, length)
		noteOff := int(0.85 * float64(length))
		if err := strike.Render(voiceBuf, int(ev.Pitch), int(ev.Velocity), params.StrikeParams, noteOff, ev.Sustained, params.SoftPedal); err != nil {
			continue
		}
		sumInto(mix, voiceBuf, ev.StartSample, gain)
	}

	if params.StrikeParams != nil && params.StrikeParams.ResonanceEnabled {
		mix = strike.ApplySympatheticResonance(mix, params.StrikeParams.ResonanceGain)
	}

	c := fx.NewChain(fx.InstrumentPiano, params.Brightness, params.BodyMix, params.Reflection)
	out, err := c.Process(mix)
	if err != nil {
		return nil, err
	}
	fx.Limit(out, fx.LimiterTarget(fx.InstrumentPiano))
	return out, nil
}

func renderDrumTrack(score midi.Score, params Params) []float32 {
	positionExponent := fastmath.Clamp(params.PluckPosition, 0.5, 2.0)

	mix := make([]float32, score.TotalSamples)
	for _, ev := range score.Events {
		length := int(ev.EndSample - ev.StartSample)
		if length < sampleRate {
			length = sampleRate // percussion voices need their own decay tail
		}
		voiceBuf := make([]float32, length)
		drumkit.Render(voiceBuf, int(ev.Pitch), int(ev.Velocity), params.Brightness, positionExponent, pluckSeed(ev))
		sumInto(mix, voiceBuf, ev.StartSample, 1.0)
	}

	c := fx.NewChain(fx.InstrumentDrums, params.Brightness, params.BodyMix, params.Reflection)
	out, err := c.Process(mix)
	if err != nil {
		return mix
	}
	fx.Limit(out, fx.LimiterTarget(fx.InstrumentDrums))
	return out
}

func renderEnsemble(score midi.Score, instrument Instrument, params Params) ([]float32, error) {
	guitar, err := renderPluckTrack(score, pluck.EngineGuitar, params, agc.InstrumentGuitar)
	if err != nil {
		return nil, err
	}
	bass, err := renderBassTrack(score, params)
	if err != nil {
		return nil, err
	}

	stems := map[mixer.Track][]float32{
		mixer.TrackGuitar: guitar,
		mixer.TrackBass:   bass,
	}
	arrangement := mixer.ArrangementGuitarBass
	if instrument == InstrumentFullBand {
		arrangement = mixer.ArrangementFullBand
		stems[mixer.TrackDrums] = renderDrumTrack(score, params)
	}

	m := mixer.NewMixer(arrangement, params.PluckPosition)
	return m.Render(stems, int(score.TotalSamples)), nil
}

func eqInstrumentForEngine(engine pluck.Engine) fx.Instrument {
	if engine == pluck.EngineBass {
		return fx.InstrumentBass
	}
	return fx.InstrumentGuitar
}

func fundamentalFor(pitch uint8) float32 {
	return fastmath.MIDINoteToFreq(int(pitch))
}

func velocityScale(v uint8) float32 {
	return float32(v) / 127.0
}

func pluckSeed(ev midi.Event) uint32 {
	return uint32(ev.StartSample)*2654435761 + uint32(ev.Pitch)*40503 + 1
}

func sumInto(mix []float32, voice []float32, start uint64, gain float32) {
	for i, s := range voice {
		idx := start + uint64(i)
		if idx >= uint64(len(mix)) {
			break
		}
		mix[idx] += s * gain
	}
}

// memWriteSeeker is a minimal in-memory io.WriteSeeker: the WAV encoder
// seeks back to the header after streaming samples to patch chunk sizes.
type memWriteSeeker struct {
	buf []byte
	pos int64
}

func newMemWriteSeeker() *memWriteSeeker {
	return &memWriteSeeker{}
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case 0:
		newPos = offset
	case 1:
		newPos = m.pos + offset
	case 2:
		newPos = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("memWriteSeeker: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("memWriteSeeker: negative seek position")
	}
	m.pos = newPos
	return newPos, nil
}

func (m *memWriteSeeker) Bytes() []byte {
	return m.buf
}
