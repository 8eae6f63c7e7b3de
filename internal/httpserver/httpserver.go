// Package httpserver is the thin health/readiness/metrics skeleton
// SPEC_FULL §4.8 carries alongside the indexer core; the watchlist CRUD
// surface itself is an external collaborator's responsibility (spec.md §1
// non-goal) and has no routes here.
//
// Grounded on the teacher's go.mod, which already carries
// julienschmidt/httprouter and prometheus/client_golang; no file in the
// retrieval pack exercises either directly (see DESIGN.md), so this
// follows httprouter's documented minimal-router usage and
// promhttp.Handler's documented wiring.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Prober is the subset of app.State the health checks need: liveness of
// the two required backing stores, and the election/readiness flags.
type Prober interface {
	PingWarehouse(ctx context.Context) error
	PingConfigStore(ctx context.Context) error
	IsPrimary() bool
	IsReady() bool
}

// Server is an httprouter-based HTTP listener exposing exactly the three
// routes SPEC_FULL §4.8 names.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// New builds a Server bound to addr. Call ListenAndServe to run it and
// Shutdown to stop it; both are safe to call from a supervisor goroutine.
func New(addr string, prober Prober, log *zap.Logger) *Server {
	router := httprouter.New()
	router.GET("/healthz", healthzHandler(prober))
	router.GET("/readyz", readyzHandler(prober))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{Addr: addr, Handler: router},
		log: log,
	}
}

// ListenAndServe blocks serving HTTP until the server is shut down; it
// returns http.ErrServerClosed on a clean Shutdown, never an error the
// caller needs to treat as fatal.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests within timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func healthzHandler(p Prober) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ok"
		code := http.StatusOK

		if err := p.PingWarehouse(ctx); err != nil {
			status, code = "warehouse unreachable", http.StatusServiceUnavailable
		} else if err := p.PingConfigStore(ctx); err != nil {
			status, code = "config store unreachable", http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]string{"status": status})
	}
}

func readyzHandler(p Prober) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := http.StatusOK
		if !p.IsReady() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{
			"ready":      p.IsReady(),
			"is_primary": p.IsPrimary(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
