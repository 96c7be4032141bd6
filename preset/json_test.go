package preset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJSONAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	presetPath := filepath.Join(dir, "preset.json")
	content := `{
  "resonance_enabled": true,
  "resonance_gain": 0.2,
  "hammer_stiffness_scale": 1.2,
  "hammer_exponent_scale": 0.95,
  "hammer_damping_scale": 1.1,
  "unison_detune_cents": 0.8,
  "soft_pedal_strike_offset": 0.1,
  "soft_pedal_hardness": 0.75
}`
	if err := os.WriteFile(presetPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}

	p, err := LoadJSON(presetPath)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if !p.ResonanceEnabled || p.ResonanceGain != 0.2 {
		t.Fatalf("resonance fields mismatch: %+v", p)
	}
	if p.HammerStiffnessScale != 1.2 ||
		p.HammerExponentScale != 0.95 ||
		p.HammerDampingScale != 1.1 ||
		p.UnisonDetuneCents != 0.8 ||
		p.SoftPedalStrikeOffset != 0.1 ||
		p.SoftPedalHardness != 0.75 {
		t.Fatalf("tuning fields mismatch: %+v", p)
	}
}

func TestLoadJSONRejectsNonPositiveStiffnessScale(t *testing.T) {
	dir := t.TempDir()
	presetPath := filepath.Join(dir, "preset.json")
	content := `{"hammer_stiffness_scale": 0}`
	if err := os.WriteFile(presetPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	if _, err := LoadJSON(presetPath); err == nil {
		t.Fatalf("expected error for non-positive hammer_stiffness_scale")
	}
}

func TestLoadJSONRejectsOutOfRangeSoftPedalHardness(t *testing.T) {
	dir := t.TempDir()
	presetPath := filepath.Join(dir, "preset.json")
	content := `{"soft_pedal_hardness": 1.5}`
	if err := os.WriteFile(presetPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	if _, err := LoadJSON(presetPath); err == nil {
		t.Fatalf("expected error for soft_pedal_hardness above 1")
	}
}

func TestLoadJSONRejectsNegativeResonanceGain(t *testing.T) {
	dir := t.TempDir()
	presetPath := filepath.Join(dir, "preset.json")
	content := `{"resonance_gain": -0.1}`
	if err := os.WriteFile(presetPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	if _, err := LoadJSON(presetPath); err == nil {
		t.Fatalf("expected error for negative resonance_gain")
	}
}

func TestLoadJSONMissingFileReturnsError(t *testing.T) {
	if _, err := LoadJSON(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing preset file")
	}
}
