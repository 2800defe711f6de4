// config.go - Konfiguration eines Generierungslaufs
//
// Dieses Modul enthaelt:
// - GenerateConfig fuer alle Optionen eines Laufs
// - Defaults und Validierung vor dem Sampling
package sd35

import (
	"fmt"
	"image"

	"github.com/7blacky7/sd35-reverse/mmdit"
	"github.com/7blacky7/sd35-reverse/sampling"
	"github.com/7blacky7/sd35-reverse/tensor"
)

// GenerateConfig holds all options for one image generation run.
type GenerateConfig struct {
	Width       int32   // image width in pixels, multiple of 16 (default: 1024)
	Height      int32   // image height in pixels, multiple of 16 (default: 1024)
	Steps       int     // denoising steps (default: 50)
	CFGScale    float32 // guidance scale (default: 5)
	Seed        uint64  // random seed
	SamplerName string  // "euler" or "dpmpp_2m" (default: "dpmpp_2m")

	Denoise      float64       // img2img strength in (0, 1], 1 means full noise
	InitImage    image.Image   // starting image, nil starts from the neutral latent
	ControlImage *tensor.Array // control latent, needs a configured control pathway

	SkipLayer sampling.SkipLayerConfig // skip-layer guidance, zero value disables

	Cond   mmdit.Conditioning // positive prompt conditioning
	Uncond mmdit.Conditioning // negative prompt conditioning

	Progress  func(step, total int)           // optional progress callback
	OnPreview func(step int, img *image.RGBA) // optional per-step latent preview
}

// applyDefaults fills unset fields with the published defaults.
func (c *GenerateConfig) applyDefaults() {
	if c.Width <= 0 {
		c.Width = 1024
	}
	if c.Height <= 0 {
		c.Height = 1024
	}
	if c.Steps <= 0 {
		c.Steps = 50
	}
	if c.CFGScale <= 0 {
		c.CFGScale = 5
	}
	if c.SamplerName == "" {
		c.SamplerName = "dpmpp_2m"
	}
	if c.Denoise <= 0 {
		c.Denoise = 1
	}
}

// validate rejects configurations the pipeline cannot run.
func (c *GenerateConfig) validate() error {
	if c.Width%16 != 0 || c.Height%16 != 0 {
		return fmt.Errorf("sd35: width and height must be multiples of 16, got %dx%d", c.Width, c.Height)
	}
	if c.Denoise > 1 {
		return fmt.Errorf("sd35: denoise must be in (0, 1], got %v", c.Denoise)
	}
	if c.Cond.Context == nil || c.Uncond.Context == nil {
		return fmt.Errorf("sd35: conditioning for both prompt sides is required")
	}
	if s := c.SkipLayer; s.Scale > 0 && (s.Start < 0 || s.End > 1 || s.Start > s.End) {
		return fmt.Errorf("sd35: skip-layer window [%v, %v] out of range", s.Start, s.End)
	}
	return nil
}
