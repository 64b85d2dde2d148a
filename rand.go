package sonant

import "math/rand/v2"

// noiseSource is the synth's noise oscillator PRNG: a permuted congruential
// generator seeded from a 128-bit value split into two 64-bit halves, as
// required by the Sonant noise contract. math/rand/v2's PCG is used
// directly rather than a third-party PCG package — it is already exactly
// this generator, seeded exactly this way.
type noiseSource struct {
	rng *rand.Rand
}

func newNoiseSource(seed [2]uint64) *noiseSource {
	return &noiseSource{rng: rand.New(rand.NewPCG(seed[0], seed[1]))}
}

// sample draws 32 random bits and maps them onto the closed interval
// [0, 1].
func (n *noiseSource) sample() float32 {
	bits := n.rng.Uint32()
	return float32(bits) / float32(^uint32(0))
}
