// format.go - Affines Latent-Format des SD3-Autoencoders
//
// Dieses Modul enthaelt:
// - Format: Scale- und Shift-Faktor des Latentraums
// - DefaultFormat: die SD3-Konstanten
// - EmptyLatent: neutrales Start-Latent fuer Text-zu-Bild-Laeufe
//
// Die Latents des Autoencoders liegen leicht verschoben um den Nullpunkt.
// ProcessIn zieht die Verschiebung vor dem Sampling ab und skaliert auf
// Einheitsvarianz, ProcessOut stellt beides vor dem Dekodieren wieder her.
package vae

import "github.com/7blacky7/sd35-reverse/tensor"

// latentStride is the spatial downsampling factor of the autoencoder.
const latentStride = 8

// latentChannels is the channel count of the SD3 latent space.
const latentChannels = 16

// Format describes the affine mapping between decoder latents and the
// sampling space.
type Format struct {
	ScaleFactor float32
	ShiftFactor float32
}

// DefaultFormat returns the SD3 latent format.
func DefaultFormat() Format {
	return Format{ScaleFactor: 1.5305, ShiftFactor: 0.0609}
}

// ProcessIn maps a decoder latent into the sampling space.
func (f Format) ProcessIn(latent *tensor.Array) *tensor.Array {
	return tensor.MulScalar(tensor.AddScalar(latent, -f.ShiftFactor), f.ScaleFactor)
}

// ProcessOut maps a sampled latent back into the decoder space.
func (f Format) ProcessOut(latent *tensor.Array) *tensor.Array {
	return tensor.AddScalar(tensor.DivScalar(latent, f.ScaleFactor), f.ShiftFactor)
}

// EmptyLatent returns the neutral start latent for a run without init
// image, filled with the shift factor. Height and width are in pixels
// and divided by the autoencoder stride.
func (f Format) EmptyLatent(batch, heightPx, widthPx int32) *tensor.Array {
	return tensor.Full(f.ShiftFactor, batch, latentChannels, heightPx/latentStride, widthPx/latentStride)
}
