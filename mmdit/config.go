// config.go - MMDiT-Konfiguration per Shape-Introspektion
//
// Dieses Modul enthaelt:
// - Config: die aus den Gewichten ableitbaren Architektur-Parameter
// - ConfigFromShapes: Introspektion ueber Tensor-Shapes statt Config-Datei
//
// SD3-Checkpoints tragen keine Architektur-Metadaten. Saemtliche
// Parameter lassen sich aber aus den Shapes der Gewichte ablesen.
package mmdit

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/v2/sets/treeset"
)

// ShapeSource provides tensor names and shapes for introspection.
// *safetensors.File satisfies this.
type ShapeSource interface {
	ListTensors() []string
	Shape(name string) ([]int64, error)
	Has(name string) bool
}

// Config holds the architecture parameters of an MMDiT backbone.
type Config struct {
	PatchSize            int    // side length of one latent patch
	Depth                int    // number of joint transformer blocks, also hidden/64
	NumPatches           int    // length of the trained position embedding
	PosEmbedMaxSize      int    // side length of the position embedding grid
	AdmInChannels        int    // width of the pooled conditioning input
	ContextInFeatures    int    // width of the sequence conditioning input
	ContextOutFeatures   int    // hidden width the context is projected to
	QKNorm               string // "rms" when attention uses qk normalization, else ""
	XBlockSelfAttnLayers []int  // blocks with an extra self-attention branch, sorted
}

var xBlockSelfAttnRe = regexp.MustCompile(`joint_blocks\.(\d+)\.x_block\.attn2\.ln_k\.weight$`)

// ConfigFromShapes derives the architecture parameters from weight shapes.
// prefix is prepended to every tensor name, typically
// "model.diffusion_model." for full checkpoints or "" for bare ones.
func ConfigFromShapes(src ShapeSource, prefix string) (Config, error) {
	var cfg Config

	proj, err := src.Shape(prefix + "x_embedder.proj.weight")
	if err != nil {
		return cfg, fmt.Errorf("mmdit: introspecting patch embedder: %w", err)
	}
	if len(proj) < 3 {
		return cfg, fmt.Errorf("mmdit: unexpected patch embedder shape %v", proj)
	}
	cfg.PatchSize = int(proj[2])
	cfg.Depth = int(proj[0]) / 64

	posEmbed, err := src.Shape(prefix + "pos_embed")
	if err != nil {
		return cfg, fmt.Errorf("mmdit: introspecting position embedding: %w", err)
	}
	if len(posEmbed) < 2 {
		return cfg, fmt.Errorf("mmdit: unexpected position embedding shape %v", posEmbed)
	}
	cfg.NumPatches = int(posEmbed[1])
	cfg.PosEmbedMaxSize = int(math.Round(math.Sqrt(float64(posEmbed[1]))))

	yMlp, err := src.Shape(prefix + "y_embedder.mlp.0.weight")
	if err != nil {
		return cfg, fmt.Errorf("mmdit: introspecting pooled embedder: %w", err)
	}
	if len(yMlp) < 2 {
		return cfg, fmt.Errorf("mmdit: unexpected pooled embedder shape %v", yMlp)
	}
	cfg.AdmInChannels = int(yMlp[1])

	ctx, err := src.Shape(prefix + "context_embedder.weight")
	if err != nil {
		return cfg, fmt.Errorf("mmdit: introspecting context embedder: %w", err)
	}
	if len(ctx) < 2 {
		return cfg, fmt.Errorf("mmdit: unexpected context embedder shape %v", ctx)
	}
	cfg.ContextOutFeatures = int(ctx[0])
	cfg.ContextInFeatures = int(ctx[1])

	if src.Has(prefix + "joint_blocks.0.context_block.attn.ln_k.weight") {
		cfg.QKNorm = "rms"
	}

	layers := treeset.New[int]()
	for _, name := range src.ListTensors() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if m := xBlockSelfAttnRe.FindStringSubmatch(name); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			layers.Add(idx)
		}
	}
	if layers.Size() > 0 {
		cfg.XBlockSelfAttnLayers = layers.Values()
	}

	return cfg, nil
}
