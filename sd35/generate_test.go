// generate_test.go - Integrationstests fuer die Sampling-Pipeline
//
// Backbone, Encoder und Decoder sind Fakes, getestet wird die Verdrahtung:
// Aufrufzahlen, Formen, Zeitplan-Kuerzung, Abbruch und Callbacks.
package sd35

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/sd35-reverse/mmdit"
	"github.com/7blacky7/sd35-reverse/sampling"
	"github.com/7blacky7/sd35-reverse/tensor"
)

// pipeBackbone zaehlt Forward-Aufrufe und gibt Nullen zurueck,
// das Modell sagt damit immer das Eingangs-Latent voraus
type pipeBackbone struct {
	calls     int
	skipCalls int
	batches   []int32
	firstTime float32
}

func (b *pipeBackbone) Forward(x, timestep, context, y *tensor.Array, controls []*tensor.Array, skipLayers []int) (*tensor.Array, error) {
	b.calls++
	if len(skipLayers) > 0 {
		b.skipCalls++
	}
	b.batches = append(b.batches, x.Dim(0))
	if b.calls == 1 {
		b.firstTime = timestep.Data()[0]
	}
	return tensor.Zeros(x.Shape()...), nil
}

// pipeEncoder liefert eine Null-Verteilung in Latent-Aufloesung
type pipeEncoder struct {
	calls int
	shape []int32
}

func (e *pipeEncoder) Encode(img *tensor.Array) (*tensor.Array, error) {
	e.calls++
	e.shape = img.Shape()
	return tensor.Zeros(img.Dim(0), 32, img.Dim(2)/8, img.Dim(3)/8), nil
}

// pipeDecoder skaliert nur die Form auf Pixelaufloesung
type pipeDecoder struct {
	calls int
	shape []int32
}

func (d *pipeDecoder) Decode(z *tensor.Array) (*tensor.Array, error) {
	d.calls++
	d.shape = z.Shape()
	return tensor.Zeros(z.Dim(0), 3, z.Dim(2)*8, z.Dim(3)*8), nil
}

func newTestModel(t *testing.T) (*Model, *pipeBackbone, *pipeEncoder, *pipeDecoder) {
	t.Helper()
	backbone := &pipeBackbone{}
	enc := &pipeEncoder{}
	dec := &pipeDecoder{}
	m, err := New(backbone, enc, dec, 3)
	if err != nil {
		t.Fatalf("New-Fehler: %v", err)
	}
	return m, backbone, enc, dec
}

func pipelineConfig() *GenerateConfig {
	return &GenerateConfig{
		Width:       64,
		Height:      48,
		Steps:       4,
		CFGScale:    2,
		Seed:        7,
		SamplerName: "euler",
		Cond:        mmdit.Conditioning{Context: tensor.Full(1, 1, 4, 8)},
		Uncond:      mmdit.Conditioning{Context: tensor.Zeros(1, 4, 8)},
	}
}

// TestGenerateTextToImage testet den kompletten Text-zu-Bild-Ablauf
func TestGenerateTextToImage(t *testing.T) {
	m, backbone, enc, dec := newTestModel(t)
	cfg := pipelineConfig()

	out, err := m.Generate(context.Background(), cfg)
	require.NoError(t, err)

	if diff := cmp.Diff([]int32{1, 3, 48, 64}, out.Shape()); diff != "" {
		t.Errorf("Bildtensor-Form falsch (-want +got):\n%s", diff)
	}
	if backbone.calls != cfg.Steps {
		t.Errorf("Backbone-Aufrufe = %d, erwartet %d", backbone.calls, cfg.Steps)
	}
	for i, b := range backbone.batches {
		if b != 2 {
			t.Errorf("Aufruf %d: Batch = %d, erwartet 2 (Cond und Uncond gestapelt)", i, b)
		}
	}
	if backbone.firstTime != 1000 {
		t.Errorf("erster Zeitschritt = %v, erwartet 1000", backbone.firstTime)
	}
	if enc.calls != 0 {
		t.Errorf("Encoder-Aufrufe = %d, erwartet 0 ohne Init-Bild", enc.calls)
	}
	if dec.calls != 1 {
		t.Errorf("Decoder-Aufrufe = %d, erwartet 1", dec.calls)
	}
	if diff := cmp.Diff([]int32{1, 16, 6, 8}, dec.shape); diff != "" {
		t.Errorf("Latent-Form am Decoder falsch (-want +got):\n%s", diff)
	}
}

// TestGenerateAppliesDefaults testet das Befuellen leerer Felder im Lauf
func TestGenerateAppliesDefaults(t *testing.T) {
	m, backbone, _, _ := newTestModel(t)
	cfg := &GenerateConfig{
		Width:  64,
		Height: 48,
		Cond:   mmdit.Conditioning{Context: tensor.Full(1, 1, 4, 8)},
		Uncond: mmdit.Conditioning{Context: tensor.Zeros(1, 4, 8)},
	}

	_, err := m.Generate(context.Background(), cfg)
	require.NoError(t, err)

	if cfg.Steps != 50 || cfg.CFGScale != 5 || cfg.SamplerName != "dpmpp_2m" {
		t.Errorf("Defaults = %d/%v/%q, erwartet 50/5/dpmpp_2m", cfg.Steps, cfg.CFGScale, cfg.SamplerName)
	}
	if backbone.calls != 50 {
		t.Errorf("Backbone-Aufrufe = %d, erwartet 50", backbone.calls)
	}
}

// TestGenerateImg2Img testet Encoder-Pfad und Zeitplan-Kuerzung
func TestGenerateImg2Img(t *testing.T) {
	m, backbone, enc, _ := newTestModel(t)
	cfg := pipelineConfig()
	cfg.Steps = 10
	cfg.Denoise = 0.5
	cfg.InitImage = image.NewRGBA(image.Rect(0, 0, 64, 48))

	total := -1
	cfg.Progress = func(step, n int) { total = n }

	_, err := m.Generate(context.Background(), cfg)
	require.NoError(t, err)

	if enc.calls != 1 {
		t.Errorf("Encoder-Aufrufe = %d, erwartet 1", enc.calls)
	}
	if diff := cmp.Diff([]int32{1, 3, 48, 64}, enc.shape); diff != "" {
		t.Errorf("Encoder-Eingabe falsch (-want +got):\n%s", diff)
	}
	// Bei halber Staerke bleibt die hintere Haelfte des Zeitplans
	if total != 5 {
		t.Errorf("Sampling-Schritte = %d, erwartet 5", total)
	}
	if backbone.calls != 5 {
		t.Errorf("Backbone-Aufrufe = %d, erwartet 5", backbone.calls)
	}
}

// TestGenerateErrors testet die Ablehnung vor dem ersten Modellaufruf
func TestGenerateErrors(t *testing.T) {
	cases := map[string]struct {
		mutate func(*GenerateConfig)
		want   string
	}{
		"unbekannter Sampler": {
			mutate: func(c *GenerateConfig) { c.SamplerName = "plms" },
			want:   "unknown sampler",
		},
		"Control ohne Pfad": {
			mutate: func(c *GenerateConfig) { c.ControlImage = tensor.Zeros(1, 16, 6, 8) },
			want:   "control pathway",
		},
		"kaputte Aufloesung": {
			mutate: func(c *GenerateConfig) { c.Width = 100 },
			want:   "multiples of 16",
		},
		"Denoise ohne Schritte": {
			// 1 - 1e-20 rundet in float64 auf 1, der Zeitplan schrumpft auf den Endwert
			mutate: func(c *GenerateConfig) { c.Denoise = 1e-20 },
			want:   "no sampling steps",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m, backbone, _, _ := newTestModel(t)
			cfg := pipelineConfig()
			tc.mutate(cfg)

			_, err := m.Generate(context.Background(), cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Fehler = %v, erwartet %q", err, tc.want)
			}
			if backbone.calls != 0 {
				t.Errorf("Backbone-Aufrufe = %d, erwartet 0", backbone.calls)
			}
		})
	}
}

// TestGenerateCancelled testet den Abbruch ueber den Context
func TestGenerateCancelled(t *testing.T) {
	m, backbone, _, _ := newTestModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, pipelineConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fehler = %v, erwartet context.Canceled", err)
	}
	if backbone.calls != 0 {
		t.Errorf("Backbone-Aufrufe = %d, erwartet 0", backbone.calls)
	}
}

// TestGenerateSkipLayerPasses testet die Extra-Passes im Skip-Fenster
func TestGenerateSkipLayerPasses(t *testing.T) {
	m, backbone, _, _ := newTestModel(t)
	cfg := pipelineConfig()
	cfg.Steps = 10
	cfg.SkipLayer = sampling.SkipLayerConfig{Scale: 2.5, Start: 0.1, End: 0.5, Layers: []int{7, 8, 9}}

	_, err := m.Generate(context.Background(), cfg)
	require.NoError(t, err)

	// Fenster (1, 5): Skip-Pass bei Schritt 2, 3 und 4
	if backbone.skipCalls != 3 {
		t.Errorf("Skip-Passes = %d, erwartet 3", backbone.skipCalls)
	}
	if backbone.calls != 13 {
		t.Errorf("Backbone-Aufrufe = %d, erwartet 10 Paar- und 3 Skip-Passes", backbone.calls)
	}
}

// TestGeneratePreview testet den Preview-Callback pro Schritt
func TestGeneratePreview(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	cfg := pipelineConfig()

	var steps []int
	var size image.Point
	cfg.OnPreview = func(step int, img *image.RGBA) {
		steps = append(steps, step)
		size = img.Bounds().Size()
	}

	_, err := m.Generate(context.Background(), cfg)
	require.NoError(t, err)

	if diff := cmp.Diff([]int{0, 1, 2, 3}, steps); diff != "" {
		t.Errorf("Preview-Schritte falsch (-want +got):\n%s", diff)
	}
	if size != image.Pt(8, 6) {
		t.Errorf("Preview-Groesse = %v, erwartet (8, 6)", size)
	}
}

// TestGeneratePreviewInterval testet die Drosselung ueber die Umgebung
func TestGeneratePreviewInterval(t *testing.T) {
	t.Setenv("SD35_PREVIEW_INTERVAL", "2")
	m, _, _, _ := newTestModel(t)
	cfg := pipelineConfig()

	var steps []int
	cfg.OnPreview = func(step int, img *image.RGBA) { steps = append(steps, step) }

	_, err := m.Generate(context.Background(), cfg)
	require.NoError(t, err)

	if diff := cmp.Diff([]int{0, 2}, steps); diff != "" {
		t.Errorf("Preview-Schritte falsch (-want +got):\n%s", diff)
	}
}

// TestGenerateImage testet die 8-Bit-Konvertierung am Ende
func TestGenerateImage(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	img, err := m.GenerateImage(context.Background(), pipelineConfig())
	require.NoError(t, err)

	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("Bildgroesse = %dx%d, erwartet 64x48", b.Dx(), b.Dy())
	}
	// Null-Latent dekodiert zu Mittelgrau
	rgba, ok := img.(*image.RGBA)
	if !ok {
		t.Fatalf("Bildtyp = %T, erwartet *image.RGBA", img)
	}
	if px := rgba.RGBAAt(10, 10); px.R != 128 || px.G != 128 || px.B != 128 || px.A != 255 {
		t.Errorf("Pixel = %v, erwartet RGBA(128, 128, 128, 255)", px)
	}
}
