// Package guard holds the ordered rule table that keeps pages away from the
// local network and from known telemetry endpoints.
package guard

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind is the class of outbound attempt a rule applies to.
type Kind string

const (
	// KindSocket is a streaming connection (WebSocket).
	KindSocket Kind = "socket"
	// KindRequest is a fetch-style request.
	KindRequest Kind = "request"
)

// Verdict is what happens to a matched attempt.
type Verdict string

const (
	// VerdictReject fails the attempt with "Connection blocked".
	VerdictReject Verdict = "reject"
	// VerdictFulfill answers with an empty 200 without touching the network.
	VerdictFulfill Verdict = "fulfill"
	// VerdictForward lets the attempt through unchanged.
	VerdictForward Verdict = "forward"
)

// BlockedMessage is the error text of a rejected socket.
const BlockedMessage = "Connection blocked"

// Rule matches an attempt kind and a set of hosts.
type Rule struct {
	Kind    Kind     `koanf:"kind" json:"kind" validate:"oneof=socket request"`
	Hosts   []string `koanf:"hosts" json:"hosts" validate:"required,min=1,dive,required"`
	Verdict Verdict  `koanf:"verdict" json:"verdict" validate:"oneof=reject fulfill forward"`
}

// LoopbackHosts are the names that reach the local machine.
var LoopbackHosts = []string{"localhost", "127.0.0.1", "::1", "0.0.0.0"}

// TelemetryHosts are analytics endpoints answered locally.
var TelemetryHosts = []string{"umami.dev"}

// DefaultRules is the built-in table.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: KindSocket, Hosts: LoopbackHosts, Verdict: VerdictReject},
		{Kind: KindRequest, Hosts: LoopbackHosts, Verdict: VerdictFulfill},
		{Kind: KindRequest, Hosts: TelemetryHosts, Verdict: VerdictFulfill},
	}
}

// Table evaluates rules in order; the first match wins.
type Table struct {
	rules []Rule
}

// NewTable copies rules into a Table. A nil slice yields the default rules.
func NewTable(rules []Rule) *Table {
	if rules == nil {
		rules = DefaultRules()
	}
	t := &Table{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		hosts := make([]string, len(r.Hosts))
		for j, h := range r.Hosts {
			hosts[j] = normalizeHost(h)
		}
		t.rules[i] = Rule{Kind: r.Kind, Hosts: hosts, Verdict: r.Verdict}
	}
	return t
}

// Rules returns the normalized rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Evaluate returns the verdict for an attempt of kind to rawURL and the
// index of the matching rule, or -1 when the attempt is forwarded by default.
func (t *Table) Evaluate(kind Kind, rawURL string) (Verdict, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return VerdictForward, -1, fmt.Errorf("parsing %q: %w", rawURL, err)
	}
	host := normalizeHost(u.Hostname())
	if host == "" {
		return VerdictForward, -1, nil
	}

	for i, r := range t.rules {
		if r.Kind != kind {
			continue
		}
		for _, pattern := range r.Hosts {
			if MatchHost(pattern, host) {
				return r.Verdict, i, nil
			}
		}
	}
	return VerdictForward, -1, nil
}

// MatchHost reports whether host equals pattern or is a subdomain of it.
// A leading "*." on the pattern is accepted and means the same thing.
func MatchHost(pattern, host string) bool {
	pattern = strings.TrimPrefix(pattern, "*.")
	if host == pattern {
		return true
	}
	return strings.HasSuffix(host, "."+pattern)
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "[")
	h = strings.TrimSuffix(h, "]")
	return strings.TrimSuffix(h, ".")
}
