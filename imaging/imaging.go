// imaging.go - Konvertierung zwischen Pixelbildern und Tensoren
//
// Dieses Modul enthaelt:
// - Prepare fuer Resize auf die Zielgroesse
// - ToTensor: Bild nach [1, 3, H, W] im Wertebereich [-1, 1]
// - ToImage: Tensor zurueck nach 8-Bit-RGBA
package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/7blacky7/sd35-reverse/tensor"
)

// Prepare resizes an image to the target size using high-quality
// bicubic interpolation. Images already at the target size pass
// through unchanged.
func Prepare(img image.Image, width, height int32) image.Image {
	b := img.Bounds()
	if int32(b.Dx()) == width && int32(b.Dy()) == height {
		return img
	}
	resized := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, b, draw.Over, nil)
	return resized
}

// ToTensor converts an image to a tensor in [-1, 1] range with shape
// [1, 3, H, W].
func ToTensor(img image.Image) *tensor.Array {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA liefert 16 Bit pro Kanal
			data[0*h*w+y*w+x] = float32(r>>8)/127.5 - 1.0
			data[1*h*w+y*w+x] = float32(g>>8)/127.5 - 1.0
			data[2*h*w+y*w+x] = float32(b>>8)/127.5 - 1.0
		}
	}
	return tensor.NewArray(data, []int32{1, 3, int32(h), int32(w)})
}

// ToImage converts the first batch element of a [B, 3, H, W] tensor in
// [-1, 1] range back to an 8-bit RGBA image, values clamped.
func ToImage(t *tensor.Array) *image.RGBA {
	h, w := int(t.Dim(2)), int(t.Dim(3))
	data := t.Data()
	plane := h * w

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			img.SetRGBA(x, y, color.RGBA{
				R: channelByte(data[i]),
				G: channelByte(data[plane+i]),
				B: channelByte(data[2*plane+i]),
				A: 255,
			})
		}
	}
	return img
}

// channelByte maps a value from [-1, 1] to one rounded 8-bit channel.
func channelByte(v float32) uint8 {
	v = (v + 1) / 2
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}
