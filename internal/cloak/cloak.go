// Package cloak renders a profile into the page script that patches a
// realm's fingerprintable surfaces.
package cloak

import (
	"embed"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/stupside/veil/internal/guard"
	"github.com/stupside/veil/internal/noise"
	"github.com/stupside/veil/internal/policy"
	"github.com/stupside/veil/internal/profile"
)

//go:embed js/*.js
var scripts embed.FS

// DefaultSentinel marks documents running the script.
const DefaultSentinel = "clientrects-defender-sandboxed-frame"

// Inputs are the per-session values every surface derives from.
type Inputs struct {
	Profile *profile.Profile
	Noise   *noise.Generator
	Canvas  policy.Canvas
}

// Options tune what Build renders.
type Options struct {
	Canvas   policy.Canvas
	Rules    []guard.Rule
	Disabled []string
	Sentinel string
	NoSync   bool
	NoGuard  bool
}

// Plan is the JSON document the page script is parameterized with.
type Plan struct {
	Token    string         `json:"token"`
	Members  []Member       `json:"members"`
	Surfaces map[string]any `json:"surfaces"`
	Sync     *SyncPlan      `json:"sync,omitempty"`
	Guard    *GuardPlan     `json:"guard,omitempty"`
}

// SyncPlan configures frame synchronization. Sentinel tags the messages and
// the root attribute shared by every realm of one session.
type SyncPlan struct {
	Sentinel string `json:"sentinel"`
}

// GuardPlan is the network rule table the page enforces. Blocked is the
// message of a rejected socket.
type GuardPlan struct {
	Rules   []guard.Rule `json:"rules"`
	Blocked string       `json:"blocked"`
}

// Script is a rendered page script.
type Script struct {
	Source string
	Plan   Plan
}

// Build computes the plan for p once and renders the script. The result is
// compiled before it is returned so a broken script never reaches a page.
func Build(p *profile.Profile, opts Options) (*Script, error) {
	if p == nil {
		return nil, fmt.Errorf("building script: nil profile")
	}
	for _, name := range opts.Disabled {
		if !slices.Contains(SurfaceNames(), name) {
			return nil, fmt.Errorf("building script: unknown surface %q", name)
		}
	}
	if opts.Canvas == (policy.Canvas{}) {
		opts.Canvas = policy.DefaultCanvas()
	}
	if opts.Sentinel == "" {
		opts.Sentinel = DefaultSentinel
	}

	gen := noise.New(p.NoiseSeed, p.NoiseMagnitude, p.Device.MAC)
	in := Inputs{Profile: p, Noise: gen, Canvas: opts.Canvas}

	plan := Plan{
		Token:    strconv.FormatUint(gen.Token(), 36),
		Surfaces: map[string]any{},
	}

	var b strings.Builder
	b.WriteString("(function (plan) {\n'use strict';\n")
	b.WriteString(script("kernel"))

	for _, s := range Surfaces() {
		if slices.Contains(opts.Disabled, s.Name()) {
			continue
		}
		plan.Members = append(plan.Members, s.Members()...)
		plan.Surfaces[s.Name()] = s.Section(in)
		b.WriteString(s.Script())
	}

	if !opts.NoSync {
		plan.Sync = &SyncPlan{Sentinel: opts.Sentinel}
		b.WriteString(script("sync"))
	}
	if !opts.NoGuard {
		plan.Guard = &GuardPlan{Rules: guard.NewTable(opts.Rules).Rules(), Blocked: guard.BlockedMessage}
		b.WriteString(script("guard"))
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}
	b.WriteString("})(")
	b.Write(raw)
	b.WriteString(");\n")

	src := b.String()
	if _, err := goja.Compile("veil.js", src, true); err != nil {
		return nil, fmt.Errorf("compiling script: %w", err)
	}

	return &Script{Source: src, Plan: plan}, nil
}
