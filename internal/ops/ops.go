// Package ops exposes the operational HTTP surface: prometheus metrics, a
// liveness probe, and pprof. It is meant to listen on a local or cluster
// internal address, not on the public internet.
package ops

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configure the debug server.
type Options struct {
	// Addr is the TCP address the server listens on, e.g. "127.0.0.1:6060".
	Addr string
	// MetricsPath is where prometheus metrics are served.
	MetricsPath string
	// ReadTimeout, ReadHeaderTimeout, WriteTimeout and IdleTimeout configure
	// the usual net/http server timeouts; zero keeps the net/http defaults.
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// NewServer wires up and returns the debug *http.Server: metrics, healthz and
// pprof behind an access-logging middleware.
func NewServer(opts Options) *http.Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(opts.MetricsPath, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/debug/pprof/", pprofMux())

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           withLogger(mux),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
}

// pprofMux registers the net/http/pprof handlers on a fresh mux under their
// full /debug/pprof/ paths; the outer mux does not strip the prefix.
func pprofMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}
