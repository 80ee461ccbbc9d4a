package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veil_guard_decisions_total",
		Help: "Requests decided by the network guard, by kind and verdict",
	}, []string{"kind", "verdict"})

	FramesPatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veil_frames_patched_total",
		Help: "Out-of-process frames that received the countermeasure script",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veil_active_sessions",
		Help: "Browser tabs currently protected",
	})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veil_session_duration_seconds",
		Help:    "Lifetime of protected browser tabs",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1s to ~4.5h
	})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.InfoContext(ctx, "metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
