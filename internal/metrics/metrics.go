// Package metrics exposes the platform's Prometheus collectors and a side
// server for /metrics and /healthz.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UsersRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedz_users_registered_total",
		Help: "accounts created",
	})
	BetsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedz_bets_created_total",
		Help: "bets created",
	})
	BetsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedz_bets_closed_total",
		Help: "bets closed, manually or by the deadline sweeper",
	})
	BetsResolved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedz_bets_resolved_total",
		Help: "bets resolved",
	})
	PredictionsPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedz_predictions_placed_total",
		Help: "predictions placed",
	})
	ReedzDistributed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reedz_distributed_total",
		Help: "reedz credited by resolutions",
	})
)

// MustRegister installs every collector on the default registry.
// Call once from main.
func MustRegister() {
	prometheus.MustRegister(
		UsersRegistered, BetsCreated, BetsClosed, BetsResolved,
		PredictionsPlaced, ReedzDistributed,
	)
}

type HealthFunc func(ctx context.Context) error

// StartServer runs a lightweight HTTP server for /metrics and /healthz on its
// own port, in a goroutine owned by the returned server.
func StartServer(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy: " + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
