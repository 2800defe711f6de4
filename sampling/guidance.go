// guidance.go - Classifier-Free Guidance und Skip-Layer-Guidance
//
// Dieses Modul enthaelt:
// - ModelApplier: der Denoiser-Vertrag der Guidance-Wrapper
// - CFG: positive und negative Konditionierung in einem Batch
// - SkipLayerCFG: CFG plus Skip-Layer-Korrektur im Schrittfenster
//
// CFG packt beide Konditionierungen in einen doppelten Batch und rechnet
// neg + (pos - neg) * scale aus einer einzigen Modell-Auswertung.
// SkipLayerCFG wertet innerhalb des Fensters zusaetzlich nur die positive
// Konditionierung mit uebersprungenen Bloecken aus und verstaerkt die
// Differenz zur normalen Vorhersage.
package sampling

import (
	"fmt"

	"github.com/7blacky7/sd35-reverse/mmdit"
	"github.com/7blacky7/sd35-reverse/tensor"
)

// ModelApplier is the denoiser contract of the guidance wrappers,
// satisfied by *mmdit.Denoiser.
type ModelApplier interface {
	Apply(x, sigma *tensor.Array, cond mmdit.Conditioning, opts mmdit.ApplyOptions) (*tensor.Array, error)
}

// CFG blends a conditional and an unconditional prediction into
// neg + (pos - neg) * scale. It satisfies Denoiser.
type CFG struct {
	Model   ModelApplier
	Cond    mmdit.Conditioning
	Uncond  mmdit.Conditioning
	Scale   float32
	Control *tensor.Array // control image latent, forwarded to the model
}

// Denoise runs one guided model evaluation.
func (g *CFG) Denoise(x *tensor.Array, sigma float32) (*tensor.Array, error) {
	pos, neg, err := g.evalPair(x, sigma)
	if err != nil {
		return nil, err
	}
	return blend(pos, neg, g.Scale), nil
}

// evalPair batches cond and uncond into a single model evaluation and
// splits the prediction back into its two halves.
func (g *CFG) evalPair(x *tensor.Array, sigma float32) (pos, neg *tensor.Array, err error) {
	batch := x.Dim(0)

	reps := make([]int32, x.Ndim())
	for i := range reps {
		reps[i] = 1
	}
	reps[0] = 2
	xb := tensor.Tile(x, reps)
	sigmas := tensor.Full(sigma, 2*batch)

	cond, err := concatConditioning(g.Cond, g.Uncond)
	if err != nil {
		return nil, nil, err
	}

	out, err := g.Model.Apply(xb, sigmas, cond, mmdit.ApplyOptions{Control: g.Control})
	if err != nil {
		return nil, nil, err
	}

	pos = tensor.SliceAxis(out, 0, 0, batch)
	neg = tensor.SliceAxis(out, 0, batch, 2*batch)
	return pos, neg, nil
}

// blend computes neg + (pos - neg) * scale.
func blend(pos, neg *tensor.Array, scale float32) *tensor.Array {
	return tensor.Add(neg, tensor.MulScalar(tensor.Sub(pos, neg), scale))
}

// concatConditioning stacks the positive conditioning on top of the
// negative one along the batch axis.
func concatConditioning(cond, uncond mmdit.Conditioning) (mmdit.Conditioning, error) {
	if cond.Context == nil || uncond.Context == nil {
		return mmdit.Conditioning{}, fmt.Errorf("sampling: guidance needs both conditionings")
	}
	out := mmdit.Conditioning{
		Context: tensor.Concat(cond.Context, uncond.Context, 0),
	}
	switch {
	case cond.Y == nil && uncond.Y == nil:
	case cond.Y != nil && uncond.Y != nil:
		out.Y = tensor.Concat(cond.Y, uncond.Y, 0)
	default:
		return mmdit.Conditioning{}, fmt.Errorf("sampling: pooled conditioning must be set on both sides or neither")
	}
	return out, nil
}

// SkipLayerConfig parameterizes skip-layer guidance.
type SkipLayerConfig struct {
	Scale  float32 // strength of the correction, 0 disables the pass
	Start  float32 // fraction of total steps where the window opens
	End    float32 // fraction of total steps where the window closes
	Layers []int   // transformer blocks bypassed in the extra pass
}

// SkipLayerCFG extends CFG with a skip-layer correction inside a window
// of steps. The wrapper counts the steps it has seen, so a fresh value
// is needed for every sampling run.
type SkipLayerCFG struct {
	CFG
	SkipLayer  SkipLayerConfig
	TotalSteps int

	step int
}

// Denoise runs one guided model evaluation. Inside the window a second,
// conditional-only evaluation with bypassed blocks sharpens the result.
func (g *SkipLayerCFG) Denoise(x *tensor.Array, sigma float32) (*tensor.Array, error) {
	pos, neg, err := g.evalPair(x, sigma)
	if err != nil {
		return nil, err
	}
	scaled := blend(pos, neg, g.Scale)

	if g.active() {
		// Die Zusatz-Auswertung laeuft ohne Control-Latent.
		skip, err := g.Model.Apply(x, tensor.Full(sigma, x.Dim(0)), g.Cond, mmdit.ApplyOptions{
			SkipLayers: g.SkipLayer.Layers,
		})
		if err != nil {
			return nil, fmt.Errorf("sampling: skip-layer pass: %w", err)
		}
		scaled = tensor.Add(scaled, tensor.MulScalar(tensor.Sub(pos, skip), g.SkipLayer.Scale))
	}

	g.step++
	return scaled, nil
}

// active reports whether the current step lies strictly inside the
// configured window.
func (g *SkipLayerCFG) active() bool {
	if g.SkipLayer.Scale <= 0 {
		return false
	}
	total := float32(g.TotalSteps)
	step := float32(g.step)
	return g.SkipLayer.Start*total < step && step < g.SkipLayer.End*total
}
