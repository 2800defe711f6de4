// sampler.go - Euler- und DPM++(2M)-Integratoren ueber Sigma-Folgen
//
// Dieses Modul enthaelt:
// - Denoiser: der Modell-Vertrag der Sampler
// - Options: Fortschritts- und Schritt-Hooks
// - Euler: expliziter Integrator erster Ordnung
// - DPMPP2M: Multistep-Integrator zweiter Ordnung
//
// Beide Sampler laufen ueber eine fallende Sigma-Folge mit Endwert 0 und
// rufen das Modell genau einmal pro Schritt auf. Der letzte Schritt auf
// Sigma 0 gibt die Modellvorhersage unveraendert zurueck.
package sampling

import (
	"context"
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/7blacky7/sd35-reverse/tensor"
)

// Denoiser is the model contract of the samplers: one denoising
// evaluation of the sample at the given noise level.
type Denoiser interface {
	Denoise(x *tensor.Array, sigma float32) (*tensor.Array, error)
}

// Options carries the optional per-run hooks of a sampler. Progress is
// called once before the first step with (0, total) and after every
// step with (step+1, total). OnStep receives the updated sample after
// each step, the array is the live sample and must not be modified.
type Options struct {
	Progress func(step, total int)
	OnStep   func(step int, x *tensor.Array)
}

// ErrBadSigmas reports an unusable sigma sequence.
var ErrBadSigmas = errors.New("sampling: bad sigma sequence")

// Func is the signature shared by the samplers.
type Func func(ctx context.Context, model Denoiser, x *tensor.Array, sigmas []float32, opts Options) (*tensor.Array, error)

// ByName resolves a sampler by its configuration name.
func ByName(name string) (Func, error) {
	switch name {
	case "euler":
		return Euler, nil
	case "dpmpp_2m":
		return DPMPP2M, nil
	}
	return nil, fmt.Errorf("sampling: unknown sampler %q", name)
}

// validateSigmas checks for a strictly decreasing sequence ending in 0.
func validateSigmas(sigmas []float32) error {
	if len(sigmas) < 2 {
		return fmt.Errorf("%w: need at least 2 entries, got %d", ErrBadSigmas, len(sigmas))
	}
	for i := 1; i < len(sigmas); i++ {
		if sigmas[i] >= sigmas[i-1] {
			return fmt.Errorf("%w: not strictly decreasing at index %d (%v >= %v)", ErrBadSigmas, i, sigmas[i], sigmas[i-1])
		}
	}
	if last := sigmas[len(sigmas)-1]; last != 0 {
		return fmt.Errorf("%w: terminal sigma is %v, want 0", ErrBadSigmas, last)
	}
	return nil
}

// Euler integrates the sample along the sigma sequence with explicit
// first-order steps.
func Euler(ctx context.Context, model Denoiser, x *tensor.Array, sigmas []float32, opts Options) (*tensor.Array, error) {
	if err := validateSigmas(sigmas); err != nil {
		return nil, err
	}

	total := len(sigmas) - 1
	if opts.Progress != nil {
		opts.Progress(0, total)
	}
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sigma, sigmaNext := sigmas[i], sigmas[i+1]

		denoised, err := model.Denoise(x, sigma)
		if err != nil {
			return nil, fmt.Errorf("sampling: step %d: %w", i, err)
		}

		// d = (x - denoised) / sigma, dann ein expliziter Schritt entlang d
		d := tensor.DivScalar(tensor.Sub(x, denoised), sigma)
		x = tensor.Add(x, tensor.MulScalar(d, sigmaNext-sigma))

		if opts.OnStep != nil {
			opts.OnStep(i, x)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}
	return x, nil
}

// DPMPP2M integrates the sample with the second-order multistep scheme
// DPM-Solver++(2M). The denoised output of the previous step feeds the
// second-order correction, the first step and the final step to sigma 0
// fall back to first order.
func DPMPP2M(ctx context.Context, model Denoiser, x *tensor.Array, sigmas []float32, opts Options) (*tensor.Array, error) {
	if err := validateSigmas(sigmas); err != nil {
		return nil, err
	}

	// Halblog-Raum t = -ln(sigma), Schrittweite h in t
	tOf := func(sigma float32) float32 { return -math32.Log(sigma) }

	var oldDenoised *tensor.Array
	total := len(sigmas) - 1
	if opts.Progress != nil {
		opts.Progress(0, total)
	}
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sigma, sigmaNext := sigmas[i], sigmas[i+1]

		denoised, err := model.Denoise(x, sigma)
		if err != nil {
			return nil, fmt.Errorf("sampling: step %d: %w", i, err)
		}

		t, tNext := tOf(sigma), tOf(sigmaNext)
		h := tNext - t
		ratio := sigmaNext / sigma

		if oldDenoised == nil || sigmaNext == 0 {
			x = tensor.Sub(tensor.MulScalar(x, ratio), tensor.MulScalar(denoised, math32.Expm1(-h)))
		} else {
			hLast := t - tOf(sigmas[i-1])
			r := hLast / h
			denoisedD := tensor.Sub(
				tensor.MulScalar(denoised, 1+1/(2*r)),
				tensor.MulScalar(oldDenoised, 1/(2*r)),
			)
			x = tensor.Sub(tensor.MulScalar(x, ratio), tensor.MulScalar(denoisedD, math32.Expm1(-h)))
		}
		oldDenoised = denoised

		if opts.OnStep != nil {
			opts.OnStep(i, x)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}
	return x, nil
}
