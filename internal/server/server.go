// Package server exposes the HTTP trigger API served alongside the worker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/customer-pipeline/internal/metrics"
	"github.com/sells-group/customer-pipeline/internal/orchestrator"
	"github.com/sells-group/customer-pipeline/internal/pipeline"
)

// Trigger starts flow runs.
type Trigger interface {
	Start(ctx context.Context, flow, partition, sourceKey string) (orchestrator.RunRef, error)
}

// RunRequest is the body of POST /flows/{flow}/runs. Both fields are optional.
type RunRequest struct {
	Partition string `json:"partition,omitempty"`
	SourceKey string `json:"source_key,omitempty"`
}

// Server is the trigger API.
type Server struct {
	trigger Trigger
	origins []string
	limiter *rate.Limiter
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allowed origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithTriggerLimit caps run triggers at perSecond with the given burst.
// A non-positive rate disables the cap.
func WithTriggerLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a Server.
func New(trigger Trigger, opts ...Option) *Server {
	s := &Server{trigger: trigger, origins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.With(s.limit).Post("/flows/{flow}/runs", s.startRun)

	return r
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many run requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	flow := chi.URLParam(r, "flow")
	if !orchestrator.KnownFlow(flow) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown flow %q", flow))
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ref, err := s.trigger.Start(r.Context(), flow, req.Partition, req.SourceKey)
	if err != nil {
		if pipeline.KindOf(err) == pipeline.KindConfig {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("server: start run failed", zap.String("flow", flow), zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not start run")
		return
	}

	writeJSON(w, http.StatusAccepted, ref)
}

// ListenAndServe serves h on port until ctx is done, then shuts down.
func ListenAndServe(ctx context.Context, port int, h http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
