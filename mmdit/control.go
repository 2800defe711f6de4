// control.go - ControlNet-Pfad mit zwei Eingabe-Varianten
//
// Dieses Modul enthaelt:
// - ControlEmbedder: der Vertrag des Control-Netzwerks
// - ControlMode: Strategie fuer die Eingabe-Aufbereitung
// - ControlPathway: verdrahtet Embedder, Modus und Staerke
//
// Die beiden Modell-Generationen unterscheiden sich darin, welche Seite
// die Patch-Einbettung uebernimmt: bei den 2B-Modellen bekommt das
// Control-Netz das rohe Latent und das Backbone bettet die Pooled-
// Konditionierung vor, bei den 8B-Modellen ist es genau umgekehrt.
package mmdit

import (
	"fmt"

	"github.com/7blacky7/sd35-reverse/tensor"
)

// ControlEmbedder is the contract of a control network. It maps the
// prepared sample, the control image and the conditioning to per-layer
// hidden states that are injected into the backbone.
type ControlEmbedder interface {
	HiddenStates(x, controlImage, y, sigma *tensor.Array, scale float32) ([]*tensor.Array, error)
}

// ControlMode prepares the sample and pooled conditioning for the
// control network. The set of modes is closed, one per model generation.
type ControlMode interface {
	prepare(b Backbone, x, y *tensor.Array) (xc, yc *tensor.Array, err error)
	String() string
}

var (
	// ControlModeLatent feeds the raw latent to the control network and
	// pre-embeds the pooled conditioning through the backbone (2B models).
	ControlModeLatent ControlMode = latentInputMode{}

	// ControlModeEmbedded patch-embeds the sample through the backbone
	// and passes the pooled conditioning through untouched (8B models).
	ControlModeEmbedded ControlMode = embeddedInputMode{}
)

type latentInputMode struct{}

func (latentInputMode) prepare(b Backbone, x, y *tensor.Array) (*tensor.Array, *tensor.Array, error) {
	if y == nil {
		return x, nil, nil
	}
	pe, ok := b.(PooledEmbedder)
	if !ok {
		return nil, nil, fmt.Errorf("backbone does not expose its pooled embedder")
	}
	yc, err := pe.EmbedPooled(y)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding pooled conditioning: %w", err)
	}
	return x, yc, nil
}

func (latentInputMode) String() string { return "latent" }

type embeddedInputMode struct{}

func (embeddedInputMode) prepare(b Backbone, x, y *tensor.Array) (*tensor.Array, *tensor.Array, error) {
	pe, ok := b.(PatchEmbedder)
	if !ok {
		return nil, nil, fmt.Errorf("backbone does not expose its patch embedder")
	}
	xc, err := pe.EmbedPatches(x)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding patches: %w", err)
	}
	return xc, y, nil
}

func (embeddedInputMode) String() string { return "embedded" }

// ControlPathway wires a control network into the denoiser.
type ControlPathway struct {
	Embedder ControlEmbedder
	Mode     ControlMode
	Scale    float32 // strength of the injected hidden states, 0 means 1
}

// hiddenStates prepares the inputs per mode and runs the control network.
// The control image is tiled to the sample batch.
func (p *ControlPathway) hiddenStates(b Backbone, x, controlImage, y, sigma *tensor.Array) ([]*tensor.Array, error) {
	if p.Embedder == nil {
		return nil, fmt.Errorf("control pathway has no embedder")
	}
	mode := p.Mode
	if mode == nil {
		mode = ControlModeLatent
	}

	xc, yc, err := mode.prepare(b, x, y)
	if err != nil {
		return nil, fmt.Errorf("%s mode: %w", mode, err)
	}

	img := controlImage
	if img.Dim(0) != x.Dim(0) {
		if img.Dim(0) != 1 {
			return nil, fmt.Errorf("control image batch %d does not match sample batch %d", img.Dim(0), x.Dim(0))
		}
		reps := make([]int32, img.Ndim())
		for i := range reps {
			reps[i] = 1
		}
		reps[0] = x.Dim(0)
		img = tensor.Tile(img, reps)
	}

	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	return p.Embedder.HiddenStates(xc, img, yc, sigma, scale)
}
