// presets.go - Veroeffentlichte Standardwerte der Checkpoint-Familien
//
// Dieses Modul enthaelt:
// - Preset: Zeitplan-Shift und Sampling-Defaults einer Familie
// - Presets: die vier bekannten SD3-Familien
//
// Die Werte entsprechen den mit den Checkpoints veroeffentlichten
// Empfehlungen. Die Medium-Variante von 3.5 bringt eine Skip-Layer-
// Konfiguration mit und senkt dafuer die Guidance-Staerke.
package sd35

import (
	"fmt"

	"github.com/7blacky7/sd35-reverse/sampling"
)

// Preset captures the published sampling defaults of one checkpoint
// family.
type Preset struct {
	Name        string
	Shift       float64
	Steps       int
	CFGScale    float32
	Sampler     string
	SkipLayer   sampling.SkipLayerConfig
	CFGWithSkip float32 // guidance scale while the skip-layer pass is kept
}

// Presets maps checkpoint family names to their defaults.
var Presets = map[string]Preset{
	"sd3_medium": {
		Name:     "sd3_medium",
		Shift:    1.0,
		Steps:    50,
		CFGScale: 5,
		Sampler:  "euler",
	},
	"sd3.5_medium": {
		Name:        "sd3.5_medium",
		Shift:       3.0,
		Steps:       50,
		CFGScale:    5,
		Sampler:     "dpmpp_2m",
		SkipLayer:   sampling.SkipLayerConfig{Scale: 2.5, Start: 0.01, End: 0.20, Layers: []int{7, 8, 9}},
		CFGWithSkip: 4,
	},
	"sd3.5_large": {
		Name:     "sd3.5_large",
		Shift:    3.0,
		Steps:    40,
		CFGScale: 4.5,
		Sampler:  "dpmpp_2m",
	},
	"sd3.5_large_turbo": {
		Name:     "sd3.5_large_turbo",
		Shift:    3.0,
		Steps:    4,
		CFGScale: 1,
		Sampler:  "dpmpp_2m",
	},
}

// PresetFor returns the preset of a checkpoint family.
func PresetFor(name string) (Preset, error) {
	p, ok := Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("sd35: unknown model preset %q", name)
	}
	return p, nil
}

// Config builds a generation config from the preset defaults. The
// conditioning and per-run options stay up to the caller.
func (p Preset) Config() GenerateConfig {
	cfg := GenerateConfig{
		Steps:       p.Steps,
		CFGScale:    p.CFGScale,
		SamplerName: p.Sampler,
		SkipLayer:   p.SkipLayer,
	}
	if p.SkipLayer.Scale > 0 && p.CFGWithSkip > 0 {
		cfg.CFGScale = p.CFGWithSkip
	}
	return cfg
}
