package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

// SweepConfig controls the disposal of idle widgets.
type SweepConfig struct {
	Idle     time.Duration // widgets without input for longer are disposed
	Interval time.Duration // 0 disables the sweep
}

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	sweep    SweepConfig
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, deps Deps, sweep SweepConfig) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	return &Server{
		addr:     addr,
		handlers: NewHandlers(deps, subFS),
		sweep:    sweep,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	return routes(s.handlers)
}

// routes registers h. HTML and JSON routes are gzip-compressed; the SSE,
// websocket and WebP routes are not.
func routes(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	gz := func(fn http.HandlerFunc) http.Handler { return gzhttp.GzipHandler(fn) }

	mux.Handle("GET /{$}", gz(h.ServeIndex)) // exact match for root only
	mux.Handle("GET /config", gz(h.HandleConfig))
	mux.Handle("GET /spinners", gz(h.HandleSpinners))
	mux.HandleFunc("GET /frames/{spinner}/{n}", h.HandleFrame)

	mux.Handle("POST /spinners/{spinner}/instances", gz(h.HandleCreateInstance))
	mux.Handle("GET /instances", gz(h.HandleInstances))
	mux.Handle("GET /instances/{id}", gz(h.HandleInstance))
	mux.HandleFunc("DELETE /instances/{id}", h.HandleDispose)
	mux.Handle("POST /instances/{id}/events", gz(h.HandleEvents))
	mux.Handle("PUT /instances/{id}/position", gz(h.HandlePosition))
	mux.HandleFunc("GET /instances/{id}/ws", h.HandleWS)

	mux.HandleFunc("POST /capture", h.HandleCapture)
	mux.HandleFunc("GET /status/stream", h.HandleStatusStream)
	mux.Handle("/static/", http.StripPrefix("/static/", gz(http.FileServer(http.FS(h.staticFS)).ServeHTTP)))

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.runSweep(sweepCtx)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// runSweep disposes idle widgets until ctx is cancelled.
func (s *Server) runSweep(ctx context.Context) {
	if s.sweep.Interval <= 0 || s.handlers.Registry == nil {
		return
	}
	ticker := time.NewTicker(s.sweep.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.handlers.Registry.Sweep(s.sweep.Idle)
		}
	}
}
