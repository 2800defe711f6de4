// schedule.go - Diskreter Flow-Matching Noise-Schedule fuer SD3.5
//
// Dieses Modul enthaelt:
// - DiscreteFlow: Sigma/Timestep-Abbildung mit Shift-Reparametrisierung
// - Sigmas/SigmasDenoise: Sigma-Sequenzen fuer den Sampler
// - CalculateDenoised/NoiseScaling: der Flow-Matching Denoising-Vertrag
//
// Der Schedule arbeitet ueber 1000 diskreten Trainings-Timesteps. Der
// Shift verschiebt die Sigma-Kurve in Richtung hoeherer Rauschanteile,
// SD3.5-Modelle sind mit Shift 3.0 trainiert.
package schedule

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/7blacky7/sd35-reverse/tensor"
)

// numTrainTimesteps is the discretization the models were trained with.
const numTrainTimesteps = 1000

// DiscreteFlow maps between noise levels (sigma) and model timesteps.
type DiscreteFlow struct {
	shift    float32
	sigmaMin float32
	sigmaMax float32
}

// New creates a schedule with the given shift. Shift 1 leaves the
// sigma curve linear in the timestep.
func New(shift float64) (*DiscreteFlow, error) {
	if shift <= 0 {
		return nil, fmt.Errorf("schedule: shift must be positive, got %g", shift)
	}
	d := &DiscreteFlow{shift: float32(shift)}
	d.sigmaMin = d.Sigma(1)
	d.sigmaMax = d.Sigma(numTrainTimesteps)
	return d, nil
}

// Sigma returns the noise level for a timestep in [0, 1000].
func (d *DiscreteFlow) Sigma(timestep float32) float32 {
	t := timestep / numTrainTimesteps
	if d.shift == 1 {
		return t
	}
	return d.shift * t / (1 + (d.shift-1)*t)
}

// Timestep returns the model timestep for a noise level.
// The backbone's time embedding is conditioned on sigma*1000 directly,
// not on the inverse of Sigma.
func (d *DiscreteFlow) Timestep(sigma float32) float32 {
	return sigma * numTrainTimesteps
}

// Timesteps applies Timestep elementwise to a sigma vector.
func (d *DiscreteFlow) Timesteps(sigma *tensor.Array) *tensor.Array {
	return tensor.MulScalar(sigma, numTrainTimesteps)
}

// SigmaMin returns the smallest scheduled noise level.
func (d *DiscreteFlow) SigmaMin() float32 {
	return d.sigmaMin
}

// SigmaMax returns the largest scheduled noise level.
func (d *DiscreteFlow) SigmaMax() float32 {
	return d.sigmaMax
}

// CalculateDenoised converts a raw model output into a denoised sample.
// sigma is a per-batch vector [B], broadcast over the trailing dimensions.
func (d *DiscreteFlow) CalculateDenoised(sigma, modelOutput, modelInput *tensor.Array) *tensor.Array {
	shape := make([]int32, modelOutput.Ndim())
	for i := range shape {
		shape[i] = 1
	}
	shape[0] = sigma.Dim(0)
	s := tensor.Reshape(sigma, shape...)
	return tensor.Sub(modelInput, tensor.Mul(modelOutput, s))
}

// NoiseScaling mixes noise into a clean latent for the given noise level:
// sigma*noise + (1-sigma)*latent. At sigma 1 the result is pure noise.
func (d *DiscreteFlow) NoiseScaling(sigma float32, noise, latent *tensor.Array) *tensor.Array {
	return tensor.Add(tensor.MulScalar(noise, sigma), tensor.MulScalar(latent, 1-sigma))
}

// Sigmas returns the descending sigma sequence for a sampling run, with a
// terminal zero appended. The result has steps+1 entries. steps must be
// at least 1.
func (d *DiscreteFlow) Sigmas(steps int) []float32 {
	if steps < 1 {
		return nil
	}
	out := make([]float32, 0, steps+1)
	if steps == 1 {
		out = append(out, d.Sigma(d.Timestep(d.sigmaMax)))
	} else {
		span := make([]float64, steps)
		floats.Span(span, float64(d.Timestep(d.sigmaMax)), float64(d.Timestep(d.sigmaMin)))
		for _, ts := range span {
			out = append(out, d.Sigma(float32(ts)))
		}
	}
	return append(out, 0)
}

// SigmasDenoise returns the sigma suffix for partial denoising (img2img).
// denoise 1 yields the full sequence, smaller values skip the high-noise
// prefix proportionally.
func (d *DiscreteFlow) SigmasDenoise(steps int, denoise float64) []float32 {
	sigmas := d.Sigmas(steps)
	if sigmas == nil || denoise >= 1 {
		return sigmas
	}
	start := int(float64(steps) * (1 - denoise))
	if start < 0 {
		start = 0
	}
	if start > len(sigmas)-1 {
		start = len(sigmas) - 1
	}
	return sigmas[start:]
}
