// Package rest exposes the sync service over HTTP/JSON.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/finkeeper/internal/logging"
	"github.com/dmitrijs2005/finkeeper/internal/server/records"
)

type HTTPServer struct {
	address   string
	records   *records.Service
	logger    logging.Logger
	jwtSecret []byte
}

// NewHTTPServer builds the HTTP front-end. An empty secretKey disables token
// checks; the caller's device is then taken from the X-Device-Id header.
func NewHTTPServer(a string, l logging.Logger, rs *records.Service, secretKey string) *HTTPServer {
	return &HTTPServer{
		address:   a,
		records:   rs,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
}

// Handler returns the routed API.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.wrap("Ping", s.ping))
	mux.HandleFunc("GET /sync/pull", s.wrap("Pull", s.authenticated(s.pull)))
	mux.HandleFunc("POST /sync/push", s.wrap("Push", s.authenticated(s.push)))
	return mux
}

func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve handles requests on lis until ctx is cancelled.
func (s *HTTPServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
