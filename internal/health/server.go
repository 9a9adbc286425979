package health

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/john/commander/internal/logging"
)

// Server provides the HTTP health check and metrics endpoints
type Server struct {
	server *http.Server
}

// New creates a new health check server. ready reports whether the chat
// session is up; a nil ready always reports healthy.
func New(addr string, ready func() bool) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(ready),
		},
	}
}

// Handler returns the mux served by the health server.
func Handler(ready func() bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT CONNECTED"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	logging.Component("health").Info().Str("addr", s.server.Addr).Msg("Health check server listening")
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Component("health").Info().Msg("Shutting down health check server...")
	return s.server.Shutdown(ctx)
}
