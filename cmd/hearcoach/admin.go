package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/hearcoach/internal/health"
	"github.com/MrWong99/hearcoach/internal/observe"
)

// adminServer serves /healthz, /readyz and /metrics.
type adminServer struct {
	srv *http.Server
	ln  net.Listener
}

// adminHandler builds the admin mux wrapped in the observability middleware.
func adminHandler(h *health.Handler, m *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(m)(mux)
}

// startAdminServer listens on addr and serves in the background.
func startAdminServer(addr string, h *health.Handler, m *observe.Metrics) (*adminServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &adminServer{
		ln: ln,
		srv: &http.Server{
			Handler:           adminHandler(h, m),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server stopped", "err", err)
		}
	}()
	return s, nil
}

// Addr returns the bound address, useful when addr used port 0.
func (s *adminServer) Addr() string { return s.ln.Addr().String() }

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *adminServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
