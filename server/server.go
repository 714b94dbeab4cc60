// Package server implements the REST surface of the deep search service:
// query dispatch, health and configuration endpoints with JSON bodies, plus
// request-scoped middleware (request IDs, logging, an in-flight limiter) and
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openagents/deepsearch"
	"github.com/openagents/deepsearch/config"
	"github.com/openagents/deepsearch/logging"
)

// Options configure the Server.
type Options struct {
	// Logger used for request logging.
	Logger logging.Logger
	// MaxInFlight caps concurrently handled requests; 0 disables the limit.
	MaxInFlight int
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Server is the HTTP front-end around a deepsearch.Service.
type Server struct {
	svc    *deepsearch.Service
	cfg    *config.Config
	logger logging.Logger
	opts   Options

	httpSrv  *http.Server
	inFlight chan struct{}
}

// New creates a Server for the given service and configuration.
func New(svc *deepsearch.Service, cfg *config.Config, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		MaxInFlight:     cfg.MaxInFlight,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: opts.Logger,
		opts:   opts,
	}
	if opts.MaxInFlight > 0 {
		s.inFlight = make(chan struct{}, opts.MaxInFlight)
	}
	return s
}

// Handler builds the route table wrapped with the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /configure-agent", s.handleConfigureAgent)

	var h http.Handler = mux
	h = s.limitInFlight(h)
	h = s.logRequests(h)
	h = requestID(h)
	return h
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDFromContext returns the request id assigned by the middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID assigns a unique id to every request, echoed in the
// X-Request-ID response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests emits one structured log line per handled request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// limitInFlight rejects requests above the concurrency cap with 503 instead
// of queueing them behind slow agent calls.
func (s *Server) limitInFlight(next http.Handler) http.Handler {
	if s.inFlight == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.inFlight <- struct{}{}:
			defer func() { <-s.inFlight }()
			next.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusServiceUnavailable, "too many in-flight requests")
		}
	})
}
