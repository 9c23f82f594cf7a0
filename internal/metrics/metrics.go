// Package metrics exposes Prometheus instrumentation for the bot.
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
	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tomcat_messages_total",
			Help: "Inbound messages by routing outcome",
		},
		[]string{"outcome"},
	)

	IntentsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tomcat_intents_classified_total",
			Help: "Classified intents by kind",
		},
		[]string{"intent"},
	)

	DispatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tomcat_dispatch_errors_total",
			Help: "Handler failures by intent kind",
		},
		[]string{"intent"},
	)

	ClarifyPrompts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tomcat_clarify_prompts_total",
			Help: "Clarification prompts by resolution",
		},
		[]string{"result"},
	)

	VisionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tomcat_vision_latency_seconds",
			Help:    "Vision service call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		},
		[]string{"op"},
	)

	PaymentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tomcat_payments_ingested_total",
			Help: "Dues payments ingested by provider",
		},
		[]string{"provider"},
	)

	SilentMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tomcat_silent_mode",
			Help: "1 while silent mode is on",
		},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
