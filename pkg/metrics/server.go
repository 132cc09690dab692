// Package metrics exposes the collectors registered by the other fxarchive
// packages over HTTP in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"fxarchive/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /metrics and a trivial /health probe.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Server runs Handler on its own listener for the lifetime of a command.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger logger.Logger
}

// Start listens on addr and serves in the background. Use ":0" to pick a
// free port; Addr reports the one chosen.
func Start(addr string, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &Server{
		srv: &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: log.WithField("component", "metrics"),
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("metrics server stopped")
		}
	}()

	s.logger.InfoWithFields("serving metrics", map[string]interface{}{
		"address": s.Addr(),
	})
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
