// codec.go - Kodieren und Dekodieren ueber den Autoencoder-Vertrag
//
// Dieses Modul enthaelt:
// - Encoder, Decoder: die Vertraege der beiden Autoencoder-Haelften
// - Codec: Posterior-Sampling, Latent-Format und Tiling-Weiche
//
// Der Encoder liefert Mittelwert und Log-Varianz als verdoppelte Kanaele,
// Encode zieht daraus ein Sample und bringt es ins Sampling-Format.
// Die Netze selbst sind externe Modelle hinter den Interfaces.
package vae

import (
	"fmt"

	"github.com/7blacky7/sd35-reverse/tensor"
)

// Encoder is the contract of the encoder half. The result carries mean
// and log-variance stacked along the channel axis.
type Encoder interface {
	Encode(image *tensor.Array) (*tensor.Array, error)
}

// Decoder is the contract of the decoder half. With tiling enabled it
// is called for several tiles concurrently and must be safe for
// concurrent use.
type Decoder interface {
	Decode(latent *tensor.Array) (*tensor.Array, error)
}

// Posterior log-variance clamp range of the trained model.
const (
	logvarMin = -30
	logvarMax = 20
)

// Codec wraps the autoencoder halves with the latent format.
type Codec struct {
	Encoder Encoder
	Decoder Decoder
	Format  Format
	Tiling  *TilingConfig // nil decodes in one piece
}

// Encode maps an image tensor into the sampling space. The posterior is
// sampled with the given seed, equal seeds give equal latents.
func (c *Codec) Encode(image *tensor.Array, seed uint64) (*tensor.Array, error) {
	if c.Encoder == nil {
		return nil, fmt.Errorf("vae: codec has no encoder")
	}
	hidden, err := c.Encoder.Encode(image)
	if err != nil {
		return nil, fmt.Errorf("vae: encoding: %w", err)
	}

	parts := tensor.Chunk(hidden, 2, 1)
	mean, logvar := parts[0], parts[1]
	logvar = tensor.ClipScalar(logvar, logvarMin, logvarMax, true, true)
	std := tensor.Exp(tensor.MulScalar(logvar, 0.5))
	noise := tensor.RandomNormal(mean.Shape(), seed)
	latent := tensor.Add(mean, tensor.Mul(std, noise))

	return c.Format.ProcessIn(latent), nil
}

// Decode maps a sampled latent back to an image tensor in [-1, 1].
func (c *Codec) Decode(latent *tensor.Array) (*tensor.Array, error) {
	if c.Decoder == nil {
		return nil, fmt.Errorf("vae: codec has no decoder")
	}
	z := c.Format.ProcessOut(latent)
	if c.Tiling != nil {
		out, err := DecodeTiled(z, c.Tiling, c.Decoder)
		if err != nil {
			return nil, fmt.Errorf("vae: tiled decoding: %w", err)
		}
		return out, nil
	}
	out, err := c.Decoder.Decode(z)
	if err != nil {
		return nil, fmt.Errorf("vae: decoding: %w", err)
	}
	return out, nil
}
