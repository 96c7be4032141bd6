// Command render turns a Standard MIDI File into a rendered mono WAV file
// using one of the instrument engines (guitar, bass, piano, drums, or a
// multi-track arrangement).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-stringband/bassline"
	"github.com/cwbudde/algo-stringband/preset"
	"github.com/cwbudde/algo-stringband/render"
)

func main() {
	midiPath := flag.String("midi", "", "input Standard MIDI File path (required)")
	instrumentName := flag.String("instrument", "guitar", "guitar|bass|piano|drums|guitarbass|fullband")
	output := flag.String("output", "output.wav", "output WAV file path")
	presetPath := flag.String("preset", "", "piano preset JSON file path (optional, piano only)")
	brightness := flag.Float64("brightness", 0.5, "high-frequency retention [0,1] (guitar/bass/drums)")
	coupling := flag.Float64("coupling", 0.3, "inter-string damping [0,1] (guitar)")
	pluckPosition := flag.Float64("pluck-position", 1.5, "mixer balance-law position (guitarbass/fullband) or drums velocity-curve exponent")
	bodyMix := flag.Float64("body-mix", 0.3, "saturation drive amount [0,1] (drums)")
	reflection := flag.Float64("reflection", 0.15, "reverb tap gain scale [0,0.5] (all instruments)")
	soloBass := flag.Bool("solo-bass", false, "render the bass part in solo mode instead of accompaniment mode")
	softPedal := flag.Bool("soft-pedal", false, "engage the piano soft pedal for the whole render")
	flag.Parse()

	if *midiPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -midi is required")
		os.Exit(1)
	}

	instrument, err := parseInstrument(*instrumentName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	midiData, err := os.ReadFile(*midiPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading MIDI file %q: %v\n", *midiPath, err)
		os.Exit(1)
	}

	params := render.DefaultParams()
	params.Brightness = float32(*brightness)
	params.Coupling = float32(*coupling)
	params.PluckPosition = float32(*pluckPosition)
	params.BodyMix = float32(*bodyMix)
	params.Reflection = float32(*reflection)
	params.SoftPedal = *softPedal
	if *soloBass {
		params.BassMode = bassline.ModeSolo
	}

	if *presetPath != "" {
		strikeParams, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
		params.StrikeParams = strikeParams
	}

	fmt.Printf("Rendering %q as %s...\n", *midiPath, *instrumentName)
	result, err := render.Render(midiData, instrument, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*output, result.WAV, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully wrote %s (%d samples)\n", *output, len(result.Samples))
}

func parseInstrument(name string) (render.Instrument, error) {
	switch name {
	case "guitar":
		return render.InstrumentGuitar, nil
	case "bass":
		return render.InstrumentBass, nil
	case "piano":
		return render.InstrumentPiano, nil
	case "drums":
		return render.InstrumentDrums, nil
	case "guitarbass":
		return render.InstrumentGuitarBass, nil
	case "fullband":
		return render.InstrumentFullBand, nil
	default:
		return 0, fmt.Errorf("unknown instrument %q", name)
	}
}
