package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndFactor(t *testing.T) {
	tests := []struct {
		seed   float64
		sign   float64
		factor float64
	}{
		{seed: 0, sign: -1, factor: 1 - 5e-6},
		{seed: 0.4999, sign: -1, factor: 1 - 5e-6},
		{seed: 0.5, sign: 1, factor: 1 + 5e-6},
		{seed: 0.99, sign: 1, factor: 1 + 5e-6},
	}
	for _, tt := range tests {
		g := New(tt.seed, 5e-6, "00:11:22:33:44:55")
		assert.Equal(t, tt.sign, g.Sign(), "seed %v", tt.seed)
		assert.InDelta(t, tt.factor, g.Factor(), 1e-15, "seed %v", tt.seed)
		assert.InDelta(t, 100*tt.factor, g.Perturb(100), 1e-12, "seed %v", tt.seed)
	}
}

func TestSelectOneIsStablePerSurface(t *testing.T) {
	candidates := []string{"x", "y", "width", "height"}
	g := New(0.42, 5e-6, "")

	first := g.SelectOne("DOMRect", candidates)
	for range 10 {
		assert.Equal(t, first, g.SelectOne("DOMRect", candidates))
	}
	assert.Equal(t, first, New(0.42, 1e-6, "other").SelectOne("DOMRect", candidates))
	assert.Contains(t, candidates, first)
	assert.Empty(t, g.SelectOne("DOMRect", nil))
}

func TestSelectOneCoversCandidates(t *testing.T) {
	candidates := []string{"top", "right", "bottom", "left"}
	seen := map[string]int{}
	for i := range 400 {
		seen[New(float64(i)/400, 5e-6, "").SelectOne("DOMRectReadOnly", candidates)]++
	}
	assert.Len(t, seen, len(candidates))
}

func TestUnitRange(t *testing.T) {
	for i := range 100 {
		u := New(float64(i)/100, 5e-6, "").Unit("canvas")
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)
	}
}

func TestAudioHash(t *testing.T) {
	// 5381*31 + 'a' = 166908
	assert.Equal(t, int32(166908), AudioHash("a"))
	assert.Equal(t, int32(5381), AudioHash(""))

	// Long inputs wrap instead of growing.
	h := AudioHash("AA:BB:CC:DD:EE:FF:AA:BB:CC:DD:EE:FF")
	assert.Equal(t, h, AudioHash("AA:BB:CC:DD:EE:FF:AA:BB:CC:DD:EE:FF"))
	assert.NotEqual(t, h, AudioHash("AA:BB:CC:DD:EE:FF:AA:BB:CC:DD:EE:FE"))
}

func TestJitterBounds(t *testing.T) {
	g := New(0.3, 5e-6, "3C:22:FB:01:02:03")
	for salt := range 40 {
		for _, base := range []int{4, 16, 256, 1000, 16384} {
			v := g.Jitter(base, salt)
			assert.GreaterOrEqual(t, v, int(math.Floor(float64(base)*0.95)), "base %d salt %d", base, salt)
			assert.LessOrEqual(t, v, int(math.Floor(float64(base)*1.05)), "base %d salt %d", base, salt)
			assert.Equal(t, v, g.Jitter(base, salt))
		}
	}
}

func TestAudioOffsets(t *testing.T) {
	g := New(0.3, 5e-6, "3C:22:FB:01:02:03")
	require.Equal(t, float64(AudioHash("3C:22:FB:01:02:03")), g.Entropy())

	assert.InDelta(t, 0, g.OscillatorOffset(), 2)
	for i := range 64 {
		assert.InDelta(t, 0, g.AnalyserOffset(i), 0.5)
	}
	assert.Equal(t, math.Sin(g.Entropy()*0.001)*2, g.OscillatorOffset())
}

func TestToken(t *testing.T) {
	a := New(0.3, 5e-6, "3C:22:FB:01:02:03")
	assert.Equal(t, a.Token(), New(0.3, 9e-6, "3C:22:FB:01:02:03").Token())
	assert.NotEqual(t, a.Token(), New(0.31, 5e-6, "3C:22:FB:01:02:03").Token())
	assert.NotEqual(t, a.Token(), New(0.3, 5e-6, "3C:22:FB:01:02:04").Token())
}
