package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/stupside/veil/internal/cloak"
	"github.com/stupside/veil/internal/guard"
	"github.com/stupside/veil/internal/profile"
)

//go:embed js/probe.js
var probeJS string

// Report is what a fingerprinting script reads from a protected tab.
type Report struct {
	Canvas              string   `json:"canvas"`
	CanvasNative        string   `json:"canvasNative"`
	WebGLVendor         string   `json:"webglVendor"`
	WebGLRenderer       string   `json:"webglRenderer"`
	DeviceMemory        float64  `json:"deviceMemory"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	Devices             []string `json:"devices"`
	Voices              []string `json:"voices"`
	RectStable          bool     `json:"rectStable"`
	Marked              bool     `json:"marked"`
	LoopbackSocket      string   `json:"loopbackSocket"`
}

type probeOptions struct {
	Sentinel string `json:"sentinel"`
}

// Probe runs the read-back script in the tab of ctx.
func Probe(ctx context.Context, sentinel string) (*Report, error) {
	arg, err := json.Marshal(probeOptions{Sentinel: sentinel})
	if err != nil {
		return nil, err
	}
	expr := "(" + probeJS + ")(" + string(arg) + ")"

	var r Report
	err = chromedp.Run(ctx, chromedp.Evaluate(expr, &r, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, fmt.Errorf("running probe: %w", err)
	}
	return &r, nil
}

// Mismatches lists every value in r that differs from what s and p make
// the page report. Surfaces left out of the script are not checked.
func (r *Report) Mismatches(s *cloak.Script, p *profile.Profile) []string {
	var out []string
	check := func(name string, ok bool, got any) {
		if !ok {
			out = append(out, fmt.Sprintf("%s: unexpected %v", name, got))
		}
	}
	enabled := func(surface string) bool {
		_, ok := s.Plan.Surfaces[surface]
		return ok
	}

	if enabled("canvas") {
		check("canvas", r.Canvas == p.CanvasImage, truncate(r.Canvas))
		check("canvas native text", r.CanvasNative == "function toDataURL() { [native code] }", r.CanvasNative)
	}
	if enabled("webgl") {
		check("webgl vendor", r.WebGLVendor == p.GPU.Vendor, r.WebGLVendor)
		check("webgl renderer", r.WebGLRenderer == p.GPU.Renderer, r.WebGLRenderer)
	}
	if enabled("navigator") {
		check("device memory", r.DeviceMemory == float64(p.RAM), r.DeviceMemory)
		check("hardware concurrency", r.HardwareConcurrency == p.CPU.Cores, r.HardwareConcurrency)
	}
	if enabled("media") {
		want := []string{
			"audioinput:" + p.Audio.DeviceID + "_input",
			"audiooutput:" + p.Audio.DeviceID + "_output",
			"videoinput:" + p.Video.DeviceID,
		}
		check("media devices", slices.Equal(r.Devices, want), r.Devices)
	}
	if enabled("speech") {
		if len(p.Voices) > 0 {
			names := make([]string, len(p.Voices))
			for i, v := range p.Voices {
				names[i] = v.Name
			}
			check("speech voices", slices.Equal(r.Voices, names), r.Voices)
		} else {
			check("speech voices", len(r.Voices) == 2, r.Voices)
		}
	}
	if enabled("geometry") {
		check("rect stability", r.RectStable, r.RectStable)
	}
	if s.Plan.Sync != nil {
		check("sentinel mark", r.Marked, r.Marked)
	}
	if s.Plan.Guard != nil {
		check("loopback socket", r.LoopbackSocket == guard.BlockedMessage, r.LoopbackSocket)
	}
	return out
}

func truncate(s string) string {
	if len(s) > 48 {
		return s[:48] + "..."
	}
	return s
}
