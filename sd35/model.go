// model.go - Modell-Buendel aus Backbone, Autoencoder und Zeitplan
//
// Dieses Modul enthaelt:
// - Model: die drei Bausteine eines geladenen Checkpoints
// - New: Zusammenbau um die externen Netze herum
//
// Backbone und Autoencoder sind externe Modelle hinter ihren Interfaces,
// das Modell verdrahtet sie mit Zeitplan und Latent-Format. Optionale
// Teile wie Control-Pfad oder Tiling setzen Aufrufer direkt auf den
// Feldern.
package sd35

import (
	"github.com/7blacky7/sd35-reverse/mmdit"
	"github.com/7blacky7/sd35-reverse/schedule"
	"github.com/7blacky7/sd35-reverse/vae"
)

// Model bundles the denoising backbone, the autoencoder and the noise
// schedule of one checkpoint.
type Model struct {
	Denoiser *mmdit.Denoiser
	Codec    *vae.Codec
	Schedule *schedule.DiscreteFlow
}

// New assembles a model around the given collaborators. shift selects
// the noise schedule of the checkpoint family, see Presets.
func New(backbone mmdit.Backbone, encoder vae.Encoder, decoder vae.Decoder, shift float64) (*Model, error) {
	sched, err := schedule.New(shift)
	if err != nil {
		return nil, err
	}
	return &Model{
		Denoiser: mmdit.NewDenoiser(backbone, sched),
		Codec: &vae.Codec{
			Encoder: encoder,
			Decoder: decoder,
			Format:  vae.DefaultFormat(),
		},
		Schedule: sched,
	}, nil
}
