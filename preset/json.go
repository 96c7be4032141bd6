// Package preset loads JSON preset files that override the piano voice's
// default Params, in the same validated-field style as the teacher's own
// preset loader.
package preset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cwbudde/algo-stringband/strike"
)

// File is the JSON schema for piano presets.
type File struct {
	HammerStiffnessScale  *float32 `json:"hammer_stiffness_scale"`
	HammerExponentScale   *float32 `json:"hammer_exponent_scale"`
	HammerDampingScale    *float32 `json:"hammer_damping_scale"`
	UnisonDetuneCents     *float32 `json:"unison_detune_cents"`
	SoftPedalStrikeOffset *float32 `json:"soft_pedal_strike_offset"`
	SoftPedalHardness     *float32 `json:"soft_pedal_hardness"`
	ResonanceEnabled      *bool    `json:"resonance_enabled"`
	ResonanceGain         *float32 `json:"resonance_gain"`
}

// LoadJSON loads a preset JSON file and applies it on top of default params.
func LoadJSON(path string) (*strike.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	p := strike.NewDefaultParams()
	if err := ApplyFile(p, &f); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing params object.
func ApplyFile(dst *strike.Params, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination params")
	}
	if f == nil {
		return nil
	}

	if f.HammerStiffnessScale != nil {
		if *f.HammerStiffnessScale <= 0 {
			return fmt.Errorf("hammer_stiffness_scale must be > 0")
		}
		dst.HammerStiffnessScale = *f.HammerStiffnessScale
	}
	if f.HammerExponentScale != nil {
		if *f.HammerExponentScale <= 0 {
			return fmt.Errorf("hammer_exponent_scale must be > 0")
		}
		dst.HammerExponentScale = *f.HammerExponentScale
	}
	if f.HammerDampingScale != nil {
		if *f.HammerDampingScale <= 0 {
			return fmt.Errorf("hammer_damping_scale must be > 0")
		}
		dst.HammerDampingScale = *f.HammerDampingScale
	}
	if f.UnisonDetuneCents != nil {
		if *f.UnisonDetuneCents < 0 {
			return fmt.Errorf("unison_detune_cents must be >= 0")
		}
		dst.UnisonDetuneCents = *f.UnisonDetuneCents
	}
	if f.SoftPedalStrikeOffset != nil {
		if *f.SoftPedalStrikeOffset < 0 {
			return fmt.Errorf("soft_pedal_strike_offset must be >= 0")
		}
		dst.SoftPedalStrikeOffset = *f.SoftPedalStrikeOffset
	}
	if f.SoftPedalHardness != nil {
		if *f.SoftPedalHardness <= 0 || *f.SoftPedalHardness > 1 {
			return fmt.Errorf("soft_pedal_hardness must be in (0,1]")
		}
		dst.SoftPedalHardness = *f.SoftPedalHardness
	}
	if f.ResonanceEnabled != nil {
		dst.ResonanceEnabled = *f.ResonanceEnabled
	}
	if f.ResonanceGain != nil {
		if *f.ResonanceGain < 0 {
			return fmt.Errorf("resonance_gain must be >= 0")
		}
		dst.ResonanceGain = *f.ResonanceGain
	}
	return nil
}
