// denoiser.go - Backbone-Vertrag und Denoising-Wrapper
//
// Dieses Modul enthaelt:
// - Backbone: der Forward-Vertrag des MMDiT-Modells
// - Conditioning: Sequenz- und Pooled-Konditionierung als Paar
// - Denoiser: Sigma-zu-Timestep, Praezisions-Cast, Denoising-Formel
//
// Der Denoiser kapselt den Flow-Matching-Vertrag: das Backbone sagt die
// Stroemung voraus, denoised = input - output*sigma rechnet sie in ein
// sauberes Sample um. Das Backbone selbst ist ein externes Modell hinter
// dem Forward-Interface.
package mmdit

import (
	"fmt"

	"github.com/7blacky7/sd35-reverse/schedule"
	"github.com/7blacky7/sd35-reverse/tensor"
)

// Backbone is the forward contract of an MMDiT model. The output has the
// shape of x. skipLayers names transformer blocks to bypass, controls
// carries per-layer hidden states from a control network, both may be nil.
type Backbone interface {
	Forward(x, timestep, context, y *tensor.Array, controls []*tensor.Array, skipLayers []int) (*tensor.Array, error)
}

// PatchEmbedder is implemented by backbones that expose their patch
// embedding, needed for the embedded-input control pathway.
type PatchEmbedder interface {
	EmbedPatches(x *tensor.Array) (*tensor.Array, error)
}

// PooledEmbedder is implemented by backbones that expose their pooled
// conditioning embedding, needed for the latent-input control pathway.
type PooledEmbedder interface {
	EmbedPooled(y *tensor.Array) (*tensor.Array, error)
}

// Conditioning bundles the two conditioning inputs of the backbone.
type Conditioning struct {
	Context *tensor.Array // sequence conditioning [B, T, D]
	Y       *tensor.Array // pooled conditioning [B, D], may be nil
}

// ApplyOptions carries the per-call extras of Denoiser.Apply.
type ApplyOptions struct {
	SkipLayers []int         // transformer blocks to bypass
	Control    *tensor.Array // control image latent, nil disables the pathway
}

// Denoiser wraps a backbone with the flow-matching denoising contract.
type Denoiser struct {
	Backbone     Backbone
	Schedule     *schedule.DiscreteFlow
	WorkingDtype tensor.Dtype
	Control      *ControlPathway
}

// NewDenoiser creates a denoiser with f16 working precision, matching the
// precision the released checkpoints are shipped in.
func NewDenoiser(backbone Backbone, sched *schedule.DiscreteFlow) *Denoiser {
	return &Denoiser{
		Backbone:     backbone,
		Schedule:     sched,
		WorkingDtype: tensor.DtypeFloat16,
	}
}

// Apply runs one denoising evaluation: x and sigma in, denoised sample out.
// x is [B, C, H, W], sigma is a per-batch vector [B]. The call is a pure
// function of its inputs.
func (d *Denoiser) Apply(x, sigma *tensor.Array, cond Conditioning, opts ApplyOptions) (*tensor.Array, error) {
	if err := d.validate(x, sigma, cond); err != nil {
		return nil, err
	}

	timestep := d.Schedule.Timesteps(sigma)

	var controls []*tensor.Array
	if opts.Control != nil {
		if d.Control == nil {
			return nil, fmt.Errorf("mmdit: control image given but no control pathway configured")
		}
		var err error
		controls, err = d.Control.hiddenStates(d.Backbone, x, opts.Control, cond.Y, sigma)
		if err != nil {
			return nil, fmt.Errorf("mmdit: control pathway: %w", err)
		}
	}

	wx := tensor.AsType(x, d.WorkingDtype)
	wctx := tensor.AsType(cond.Context, d.WorkingDtype)
	var wy *tensor.Array
	if cond.Y != nil {
		wy = tensor.AsType(cond.Y, d.WorkingDtype)
	}

	out, err := d.Backbone.Forward(wx, timestep, wctx, wy, controls, opts.SkipLayers)
	if err != nil {
		return nil, fmt.Errorf("mmdit: backbone: %w", err)
	}
	outShape, xShape := out.Shape(), x.Shape()
	if len(outShape) != len(xShape) {
		return nil, fmt.Errorf("mmdit: backbone output shape %v does not match input %v", outShape, xShape)
	}
	for i := range outShape {
		if outShape[i] != xShape[i] {
			return nil, fmt.Errorf("mmdit: backbone output shape %v does not match input %v", outShape, xShape)
		}
	}

	out = tensor.AsType(out, tensor.DtypeFloat32)
	return d.Schedule.CalculateDenoised(sigma, out, x), nil
}

// validate checks batch consistency between sample, sigma and conditioning.
func (d *Denoiser) validate(x, sigma *tensor.Array, cond Conditioning) error {
	if x.Ndim() != 4 {
		return fmt.Errorf("mmdit: sample must be [B, C, H, W], got %v", x.Shape())
	}
	batch := x.Dim(0)
	if sigma.Ndim() != 1 || sigma.Dim(0) != batch {
		return fmt.Errorf("mmdit: sigma must be a vector of length %d, got %v", batch, sigma.Shape())
	}
	if cond.Context == nil {
		return fmt.Errorf("mmdit: conditioning context is required")
	}
	if cond.Context.Ndim() != 3 || cond.Context.Dim(0) != batch {
		return fmt.Errorf("mmdit: context must be [%d, T, D], got %v", batch, cond.Context.Shape())
	}
	if cond.Y != nil && (cond.Y.Ndim() != 2 || cond.Y.Dim(0) != batch) {
		return fmt.Errorf("mmdit: pooled conditioning must be [%d, D], got %v", batch, cond.Y.Shape())
	}
	return nil
}
