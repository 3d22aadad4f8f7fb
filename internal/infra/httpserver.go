package infra

import (
	"context"
	"net"
	"net/http"
	"time"
)

// readHeaderTimeout caps how long a client may dribble request headers.
// Slow-header connections would otherwise hold sockets without ever
// producing a request the rate limiter can count.
const readHeaderTimeout = 5 * time.Second

// HTTPServer owns the API listener lifecycle: Start blocks serving
// requests, Shutdown stops accepting and drains in-flight handlers until
// the passed context expires. Poll workers live in the worker binary and
// are unaffected by either.
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer builds the listener from the config's port and timeouts.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              net.JoinHostPort("", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
	}
}

// Start serves until the listener closes; it returns http.ErrServerClosed
// after a Shutdown.
func (s *HTTPServer) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests, giving up when ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
