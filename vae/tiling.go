// tiling.go - Gekacheltes Dekodieren grosser Latents
//
// Dieses Modul enthaelt:
// - TilingConfig: Kachelgroesse und Ueberlappung im Latentraum
// - DecodeTiled: nebenlaeufiges Dekodieren mit linearem Feathering
//
// Grosse Latents sprengen den Speicher des Decoders. DecodeTiled zerlegt
// das Latent in ueberlappende Kacheln, dekodiert sie nebenlaeufig und
// blendet die Pixel im Ueberlappungsbereich linear uebereinander.
package vae

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/sd35-reverse/envconfig"
	"github.com/7blacky7/sd35-reverse/tensor"
)

// TilingConfig controls tiled decoding, both values in latent cells.
type TilingConfig struct {
	TileSize int32
	Overlap  int32
}

// DefaultTilingConfig matches the diffusers defaults: tile size 64 with
// a quarter of it as overlap.
func DefaultTilingConfig() *TilingConfig {
	return &TilingConfig{TileSize: 64, Overlap: 16}
}

// DecodeTiled decodes a latent [B, C, H, W] tile by tile through dec.
// The tiles are decoded concurrently, overlapping pixels are blended
// with a linear ramp.
func DecodeTiled(latent *tensor.Array, cfg *TilingConfig, dec Decoder) (*tensor.Array, error) {
	if cfg.TileSize <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.TileSize {
		return nil, fmt.Errorf("vae: unusable tiling config %+v", *cfg)
	}

	h, w := latent.Dim(2), latent.Dim(3)
	if h <= cfg.TileSize && w <= cfg.TileSize {
		return dec.Decode(latent)
	}

	stride := cfg.TileSize - cfg.Overlap
	rows := tileStarts(h, cfg.TileSize, stride)
	cols := tileStarts(w, cfg.TileSize, stride)

	// tileStarts klemmt den letzten Start an den Rand, daher haben alle
	// Kacheln dieselbe Ausdehnung. Eine Achse unterhalb der Kachelgroesse
	// bleibt schmaler.
	tileH := min(cfg.TileSize, h)
	tileW := min(cfg.TileSize, w)

	type tileJob struct {
		row, col int
		out      *tensor.Array
	}
	jobs := make([]tileJob, 0, len(rows)*len(cols))
	for r := range rows {
		for c := range cols {
			jobs = append(jobs, tileJob{row: r, col: c})
		}
	}

	var g errgroup.Group
	g.SetLimit(envconfig.NumThreads())
	for i := range jobs {
		g.Go(func() error {
			job := &jobs[i]
			r0, c0 := rows[job.row], cols[job.col]
			tile := tensor.Slice(latent,
				[]int32{0, 0, r0, c0},
				[]int32{latent.Dim(0), latent.Dim(1), r0 + tileH, c0 + tileW})
			out, err := dec.Decode(tile)
			if err != nil {
				return fmt.Errorf("tile (%d,%d): %w", job.row, job.col, err)
			}
			job.out = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	first := jobs[0].out
	if first.Dim(2)%tileH != 0 || first.Dim(3) != tileW*(first.Dim(2)/tileH) {
		return nil, fmt.Errorf("vae: decoder output %dx%d is no integral multiple of the %dx%d tile",
			first.Dim(2), first.Dim(3), tileH, tileW)
	}
	scale := first.Dim(2) / tileH
	batch, channels := first.Dim(0), first.Dim(1)
	outH, outW := h*scale, w*scale
	overlapPx := cfg.Overlap * scale

	// Gewichtete Summe aller Kacheln, danach Normierung. Die Gewichtskarte
	// ist fuer alle Batch-Eintraege und Kanaele dieselbe.
	acc := make([]float32, int(batch*channels)*int(outH)*int(outW))
	weight := make([]float32, int(outH)*int(outW))

	for _, job := range jobs {
		r0 := rows[job.row] * scale
		c0 := cols[job.col] * scale
		th, tw := job.out.Dim(2), job.out.Dim(3)
		wr := featherRamp(th, overlapPx, job.row == 0, job.row == len(rows)-1)
		wc := featherRamp(tw, overlapPx, job.col == 0, job.col == len(cols)-1)
		data := job.out.Data()

		for b := int32(0); b < batch; b++ {
			for ch := int32(0); ch < channels; ch++ {
				src := (b*channels + ch) * th * tw
				dst := (b*channels + ch) * outH * outW
				for y := int32(0); y < th; y++ {
					for x := int32(0); x < tw; x++ {
						wv := wr[y] * wc[x]
						acc[dst+(r0+y)*outW+c0+x] += wv * data[src+y*tw+x]
						if b == 0 && ch == 0 {
							weight[(r0+y)*outW+c0+x] += wv
						}
					}
				}
			}
		}
	}

	plane := outH * outW
	for bc := int32(0); bc < batch*channels; bc++ {
		for p := int32(0); p < plane; p++ {
			acc[bc*plane+p] /= weight[p]
		}
	}
	return tensor.NewArray(acc, []int32{batch, channels, outH, outW}), nil
}

// tileStarts places tile origins with the given stride, the last tile
// is clamped so it ends exactly on the edge.
func tileStarts(size, tile, stride int32) []int32 {
	if size <= tile {
		return []int32{0}
	}
	var starts []int32
	for s := int32(0); ; s += stride {
		if s+tile >= size {
			starts = append(starts, size-tile)
			return starts
		}
		starts = append(starts, s)
	}
}

// featherRamp builds the 1D blending weights of one tile edge. Edges
// without a neighbour keep full weight.
func featherRamp(n, overlap int32, first, last bool) []float32 {
	ramp := make([]float32, n)
	for i := range ramp {
		ramp[i] = 1
	}
	for i := int32(0); i < overlap && i < n; i++ {
		v := float32(i+1) / float32(overlap+1)
		if !first {
			ramp[i] = v
		}
		if !last {
			ramp[n-1-i] = v
		}
	}
	return ramp
}
