// Package policy decides which objects and calls look like fingerprinting
// probes. The page script receives these values and applies the same tests.
package policy

// WebGL identifiers a probe asks for to learn the real adapter.
const (
	DebugRendererInfo = "WEBGL_debug_renderer_info"
	UnmaskedVendor    = 37445
	UnmaskedRenderer  = 37446
)

// ExtraExtensions are appended to getSupportedExtensions when missing.
var ExtraExtensions = []string{
	"EXT_texture_filter_anisotropic",
	"OES_texture_float",
	DebugRendererInfo,
}

// Canvas is the probe-size threshold for canvases.
type Canvas struct {
	MaxWidth  int `koanf:"max_width" json:"maxWidth" validate:"gt=0"`
	MaxHeight int `koanf:"max_height" json:"maxHeight" validate:"gt=0"`
}

// DefaultCanvas is the size class of typical fingerprinting canvases.
func DefaultCanvas() Canvas {
	return Canvas{MaxWidth: 300, MaxHeight: 100}
}

// InScope reports whether a canvas of w×h is small enough to be a probe.
func (c Canvas) InScope(w, h int) bool {
	return w <= c.MaxWidth && h <= c.MaxHeight
}

// FullSurface reports whether a pixel read at (x,y) of size w×h covers the
// whole canvas of cw×ch. Partial reads are left alone.
func FullSurface(x, y, w, h, cw, ch int) bool {
	return x == 0 && y == 0 && w == cw && h == ch
}
