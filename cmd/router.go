package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angeloszaimis/server-selector/internal/loadbalancer"
	"github.com/angeloszaimis/server-selector/internal/metrics"
)

func setupRouter(lb *loadbalancer.LoadBalancer, metricsCollector *metrics.Collector, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /stats", metricsCollector.Handler())
	mux.HandleFunc("GET /servers", serversHandler(lb))

	return mux
}

type serverView struct {
	ID                string  `json:"id"`
	Weight            int     `json:"weight"`
	ActiveConnections int     `json:"active_connections"`
	LastResponseMs    float64 `json:"last_response_ms"`
	LastBandwidth     float64 `json:"last_bandwidth"`
}

func serversHandler(lb *loadbalancer.LoadBalancer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		servers := lb.Servers()

		views := make([]serverView, 0, len(servers))
		for _, s := range servers {
			views = append(views, serverView{
				ID:                s.ID,
				Weight:            s.Weight,
				ActiveConnections: s.ActiveConnections,
				LastResponseMs:    s.ResponseTimeMs(),
				LastBandwidth:     s.LastBandwidth,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"strategy": lb.Strategy(),
			"servers":  views,
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
