package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanvasInScope(t *testing.T) {
	c := DefaultCanvas()

	tests := []struct {
		name string
		w, h int
		want bool
	}{
		{"tiny", 16, 16, true},
		{"at threshold", 300, 100, true},
		{"too wide", 301, 100, false},
		{"too tall", 300, 101, false},
		{"page sized", 1280, 720, false},
		{"empty", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.InScope(tt.w, tt.h))
		})
	}
}

func TestFullSurface(t *testing.T) {
	assert.True(t, FullSurface(0, 0, 200, 50, 200, 50))
	assert.False(t, FullSurface(1, 0, 200, 50, 200, 50))
	assert.False(t, FullSurface(0, 0, 10, 10, 200, 50))
}
