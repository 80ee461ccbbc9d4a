// Package noise derives every perturbation and seeded choice of a session
// from a single seed. Nothing here keeps state between calls.
package noise

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Generator is built once per session and reused for every derived value.
type Generator struct {
	seed      float64
	magnitude float64
	entropy   float64
}

// New returns a Generator for seed in [0,1), a small magnitude fraction and
// an entropy string (the device MAC) used for audio and limit jitter.
func New(seed, magnitude float64, entropy string) *Generator {
	return &Generator{
		seed:      seed,
		magnitude: magnitude,
		entropy:   float64(AudioHash(entropy)),
	}
}

// Sign is -1 below 0.5 and +1 otherwise.
func (g *Generator) Sign() float64 {
	if g.seed < 0.5 {
		return -1
	}
	return 1
}

// Factor is the multiplier applied to a perturbed metric.
func (g *Generator) Factor() float64 {
	return 1 + g.Sign()*g.magnitude
}

// Perturb returns v scaled by Factor.
func (g *Generator) Perturb(v float64) float64 {
	return v * g.Factor()
}

// Unit maps (seed, surface) to a float in [0,1).
func (g *Generator) Unit(surface string) float64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(g.seed))

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(surface)

	return float64(d.Sum64()>>11) / (1 << 53)
}

// SelectOne picks one candidate for surface. The choice depends only on the
// seed and the surface name, so it is stable for the whole session and
// independent between surfaces.
func (g *Generator) SelectOne(surface string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	idx := int(g.Unit(surface) * float64(len(candidates)))
	return candidates[min(idx, len(candidates)-1)]
}

// Jitter scales base by a factor in [0.95, 1.05) derived from the entropy
// and salt, truncated to an integer.
func (g *Generator) Jitter(base, salt int) int {
	f := math.Mod(math.Abs(math.Sin(g.entropy+float64(salt))), 1)
	return int(math.Floor(float64(base) * (0.95 + f*0.1)))
}

// AudioHash folds s into a 32-bit value with h = h*31 + c, starting at 5381.
// Arithmetic wraps like a JavaScript 32-bit integer.
func AudioHash(s string) int32 {
	h := int32(5381)
	for _, c := range s {
		h = (h << 5) - h + int32(c)
	}
	return h
}

// OscillatorOffset is the frequency shift in Hz applied to oscillators.
func (g *Generator) OscillatorOffset() float64 {
	return math.Sin(g.entropy*0.001) * 2
}

// AnalyserOffset is the dB shift applied to frequency bin i.
func (g *Generator) AnalyserOffset(i int) float64 {
	return math.Sin((float64(i)+g.entropy)*0.0001) * 0.5
}

// Entropy exposes the hashed entropy value so the page can reproduce
// AnalyserOffset without learning the entropy source.
func (g *Generator) Entropy() float64 {
	return g.entropy
}

// Token is an opaque per-session identifier for the page script.
func (g *Generator) Token() uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(g.seed))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(g.entropy))
	return xxhash.Sum64(buf[:])
}
