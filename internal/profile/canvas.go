package profile

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"strings"
)

const (
	canvasWidth  = 220
	canvasHeight = 30
)

// RenderCanvasImage draws the default spoofed canvas payload. The picture
// depends only on seed, so a session always hands out the same bytes.
func RenderCanvasImage(seed float64) string {
	img := image.NewNRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))

	phase := seed * 2 * math.Pi
	for y := range canvasHeight {
		for x := range canvasWidth {
			v := math.Sin(float64(x)*0.11+phase) + math.Cos(float64(y)*0.37-phase)
			if v < 0.4 {
				continue
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(102 + int(seed*97)%120),
				G: uint8(204 - x%64),
				B: uint8(y * 7 % 255),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Encoding an in-memory NRGBA never fails.
		panic(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// canvasEntry is one line of a canvas pool file.
type canvasEntry struct {
	Fingerprint string `json:"fingerprint"`
}

// LoadCanvasPool reads a JSON-lines file of harvested canvas payloads.
func LoadCanvasPool(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening canvas pool %s: %w", path, err)
	}
	defer f.Close()

	var pool []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for line := 1; sc.Scan(); line++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e canvasEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("canvas pool line %d: %w", line, err)
		}
		if !strings.HasPrefix(e.Fingerprint, "data:image/") {
			return nil, fmt.Errorf("canvas pool line %d: not an image data URL", line)
		}
		pool = append(pool, e.Fingerprint)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading canvas pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("canvas pool %s is empty", path)
	}
	return pool, nil
}

// WithCanvasFrom returns a copy of p whose canvas payload is taken from pool
// at the position selected by the noise seed.
func (p *Profile) WithCanvasFrom(pool []string) *Profile {
	if len(pool) == 0 {
		return p
	}
	cp := *p
	idx := min(int(p.NoiseSeed*float64(len(pool))), len(pool)-1)
	cp.CanvasImage = pool[idx]
	return &cp
}
