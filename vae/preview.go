// preview.go - RGB-Schnellvorschau direkt aus dem Latent
//
// Dieses Modul enthaelt:
// - PreviewImage: 16-Kanal-Latent auf RGB projiziert, ohne Decoder
//
// Die Projektionsmatrix ist eine lineare Naeherung des Decoders und
// liefert waehrend des Samplings ein grobes Vorschaubild pro Schritt.
package vae

import (
	"image"
	"image/color"

	"github.com/7blacky7/sd35-reverse/tensor"
)

// previewFactors maps the 16 latent channels to RGB, one row per channel.
var previewFactors = tensor.NewArray([]float32{
	-0.0645, 0.0177, 0.1052,
	0.0028, 0.0312, 0.0650,
	0.1848, 0.0762, 0.0360,
	0.0944, 0.0360, 0.0889,
	0.0897, 0.0506, -0.0364,
	-0.0020, 0.1203, 0.0284,
	0.0855, 0.0118, 0.0283,
	-0.0539, 0.0658, 0.1047,
	-0.0057, 0.0116, 0.0700,
	-0.0412, 0.0281, -0.0039,
	0.1106, 0.1171, 0.1220,
	-0.0248, 0.0682, -0.0481,
	0.0815, 0.0846, 0.1207,
	-0.0120, -0.0055, -0.0867,
	-0.0749, -0.0634, -0.0456,
	-0.1418, -0.1457, -0.1259,
}, []int32{latentChannels, 3})

// PreviewImage renders an approximate RGB preview of the first batch
// element of a sampled latent [B, 16, H, W].
func PreviewImage(latent *tensor.Array) *image.RGBA {
	h, w := latent.Dim(2), latent.Dim(3)

	first := tensor.SliceAxis(latent, 0, 0, 1)
	pixels := tensor.Reshape(tensor.Transpose(first, 0, 2, 3, 1), h*w, -1)
	rgb := tensor.Matmul(pixels, previewFactors).Data()

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	i := 0
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			img.SetRGBA(int(x), int(y), color.RGBA{
				R: previewByte(rgb[i]),
				G: previewByte(rgb[i+1]),
				B: previewByte(rgb[i+2]),
				A: 255,
			})
			i += 3
		}
	}
	return img
}

// previewByte maps a value from [-1, 1] to one 8-bit channel.
func previewByte(v float32) uint8 {
	v = (v + 1) / 2
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v * 255)
}
