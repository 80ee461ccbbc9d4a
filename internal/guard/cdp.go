package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Enforcer applies a Table to every request a tab makes through the
// DevTools Fetch domain. This covers XHR, beacons and worker traffic that the
// page-level guard cannot see.
type Enforcer struct {
	table   *Table
	journal *Journal
	observe func(Decision)
}

// NewEnforcer returns an Enforcer. journal and observe may be nil.
func NewEnforcer(table *Table, journal *Journal, observe func(Decision)) *Enforcer {
	return &Enforcer{table: table, journal: journal, observe: observe}
}

// Enable pauses every request at the request stage.
func (e *Enforcer) Enable() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		return fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		}).Do(ctx)
	}
}

// Listen returns a chromedp.ListenTarget handler bound to the tab in ctx.
// Paused requests are resolved off the event goroutine.
func (e *Enforcer) Listen(ctx context.Context) func(ev any) {
	return func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go e.resolve(ctx, paused)
	}
}

// Decide returns the verdict for a paused request. Top-level documents are
// always forwarded so navigating to a local address still works.
func (e *Enforcer) Decide(resourceType network.ResourceType, rawURL string) Verdict {
	if resourceType == network.ResourceTypeDocument {
		return VerdictForward
	}
	verdict, _, err := e.table.Evaluate(KindRequest, rawURL)
	if err != nil {
		slog.Debug("guard: unparsable request URL", "url", rawURL, "error", err)
	}
	return verdict
}

func (e *Enforcer) resolve(ctx context.Context, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(ctx, c.Target)

	verdict := e.Decide(ev.ResourceType, ev.Request.URL)

	var err error
	switch verdict {
	case VerdictFulfill:
		err = fetch.FulfillRequest(ev.RequestID, 200).
			WithResponseHeaders([]*fetch.HeaderEntry{
				{Name: "Access-Control-Allow-Origin", Value: "*"},
				{Name: "Content-Length", Value: "0"},
			}).
			Do(execCtx)
	case VerdictReject:
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
	default:
		err = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
	}
	if err != nil {
		slog.DebugContext(ctx, "guard: resolving paused request failed", "url", ev.Request.URL, "verdict", verdict, "error", err)
		return
	}

	if verdict == VerdictForward {
		return
	}

	d := Decision{At: time.Now(), Kind: KindRequest, Verdict: verdict, URL: ev.Request.URL}
	if e.journal != nil {
		e.journal.Record(d)
	}
	if e.observe != nil {
		e.observe(d)
	}
	slog.DebugContext(ctx, "guard: request intercepted", "url", d.URL, "verdict", d.Verdict)
}
