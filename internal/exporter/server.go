package exporter

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/errors"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/logger"
)

const readHeaderTimeout = 5 * time.Second

// Server serves the metrics exposition endpoint. Every scrape is handed to
// the collection loop and held until the loop finished a full sampling pass,
// so the response never reflects a stale earlier-iteration snapshot.
type Server struct {
	httpServer *http.Server
	scrapes    chan chan<- struct{}

	// serializes concurrent scrapes through the gate
	mu sync.Mutex
}

// New assembles a Server for the given listen address and registry.
func New(listen string, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		scrapes: make(chan chan<- struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.gated(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Scrapes implements the collection loop's gate: one value per pending
// scrape request, closed by the loop once the sampling pass is done.
func (s *Server) Scrapes() <-chan chan<- struct{} {
	return s.scrapes
}

func (s *Server) gated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		done := make(chan struct{})

		select {
		case s.scrapes <- done:
		case <-r.Context().Done():
			http.Error(w, "scrape aborted", http.StatusServiceUnavailable)
			return
		}

		select {
		case <-done:
		case <-r.Context().Done():
			http.Error(w, "scrape aborted", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start begins serving HTTP until shutdown is requested.
func (s *Server) Start() error {
	errFactory := errors.New()

	logger.Info().Str("listen", s.httpServer.Addr).Msg("Serving metrics")

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errFactory.Wrap(errors.ErrServeFailed, err)
	}

	return nil
}

// Shutdown attempts a graceful shutdown within the supplied context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
