// Package main provides a debug HTTP server exposing computer metrics and
// synthetic workloads that drive them.
package main

import (
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/joho/godotenv"

	"github.com/flowgraph/gremlin/internal/infrastructure/metrics"
)

func main() {
	_ = godotenv.Load()

	addr := ":8080"
	if v := os.Getenv("GREMLIN_ADDR"); v != "" {
		addr = v
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	logger.Info("starting gremlin server", "addr", addr)
	if err := http.ListenAndServe(addr, newMux(newWorkloadManager(logger))); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newMux(wm *workloadManager) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprintln(w, "gremlin server is running. See /healthz, /metrics, /debug/vars, /debug/pprof/")
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		if err := metrics.WritePrometheus(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("POST /workload/{kind}/start", wm.start)
	mux.HandleFunc("POST /workload/{kind}/stop", wm.stop)
	return mux
}
