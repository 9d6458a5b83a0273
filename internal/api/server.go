package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
	"github.com/JakeFAU/storefront-crawler/internal/metrics"
)

// StatusSource reports live crawl progress. *crawler.Engine satisfies it.
type StatusSource interface {
	Summary() crawler.Summary
	Frontier() *crawler.Frontier
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	RunID    string                `json:"run_id"`
	Started  time.Time             `json:"started"`
	Frontier crawler.FrontierStats `json:"frontier"`
	Summary  crawler.Summary       `json:"summary"`
}

// HistoryResponse is the /v1/products/history payload.
type HistoryResponse struct {
	Product crawler.Product            `json:"product"`
	Prices  []crawler.PriceObservation `json:"prices"`
}

// Server wires HTTP handlers to the running engine and store.
type Server struct {
	router  chi.Router
	status  StatusSource
	history crawler.HistoryReader
	runID   string
	started time.Time
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. history may be nil
// when the storage backend cannot serve lookups.
func NewServer(
	status StatusSource,
	history crawler.HistoryReader,
	runID string,
	clock crawler.Clock,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	started := time.Now().UTC()
	if clock != nil {
		started = clock.Now()
	}
	metrics.Init()
	s := &Server{
		status:  status,
		history: history,
		runID:   runID,
		started: started,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/status", s.getStatus)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/products/history", s.getHistory)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	s.logger.Info("status server stopped")
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "crawl not started")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "crawl not started")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		RunID:    s.runID,
		Started:  s.started,
		Frontier: s.status.Frontier().Stats(),
		Summary:  s.status.Summary(),
	})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "storage backend does not support price history")
		return
	}
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	productURL, err := crawler.NormalizeURL(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, prices, err := s.history.PriceHistory(r.Context(), productURL)
	switch {
	case errors.Is(err, crawler.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
		return
	case err != nil:
		s.logger.Error("price history lookup failed", zap.String("url", productURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	if prices == nil {
		prices = []crawler.PriceObservation{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Product: product, Prices: prices})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
