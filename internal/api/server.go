package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"FlowSentry/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the diagnostics surface on its own listener: a JSON status
// snapshot and the prometheus scrape endpoint. It never touches the data
// channel, so diagnostics can never interleave with record output.
type Server struct {
	srv     *http.Server
	pipe    *metrics.Pipeline
	started time.Time
}

// NewServer builds the router and HTTP server.
func NewServer(listenAddr string, pipe *metrics.Pipeline, reg *prometheus.Registry) *Server {
	s := &Server{
		pipe:    pipe,
		started: time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/status", s.statusHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")

	s.srv = &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("Diagnostics server starting on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Diagnostics server error: %v", err)
		}
	}()
}

// Shutdown stops the server, waiting up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type statusResponse struct {
	UptimeSeconds float64          `json:"uptime_seconds"`
	Pipeline      metrics.Snapshot `json:"pipeline"`
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Pipeline:      s.pipe.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
