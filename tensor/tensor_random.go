// tensor_random.go - Seeded Zufallszahlen fuer Noise-Initialisierung
package tensor

import "math/rand/v2"

// RandomNormal returns an array of the given shape with standard normal
// values. The same seed always yields the same values.
func RandomNormal(shape []int32, seed uint64) *Array {
	rng := rand.New(rand.NewPCG(seed, 0))
	data := make([]float32, numElements(shape))
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return NewArray(data, shape)
}

// RandomUniform returns an array of the given shape with values in [0, 1).
func RandomUniform(shape []int32, seed uint64) *Array {
	rng := rand.New(rand.NewPCG(seed, 0))
	data := make([]float32, numElements(shape))
	for i := range data {
		data[i] = rng.Float32()
	}
	return NewArray(data, shape)
}
