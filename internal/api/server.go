package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/metrics"
	"github.com/JakeFAU/match-crawler/internal/worker"
)

const defaultQueryTimeout = 5 * time.Second

// Controller is the crawl lifecycle surface. *worker.Orchestrator satisfies it.
type Controller interface {
	Status() worker.Status
	Pause() error
	Resume() error
	Stop()
}

// Options configures a Server.
type Options struct {
	// APIKey, when set, is required in the X-API-Key header on /v1 routes.
	APIKey string
	// Control enables the /v1/crawler routes.
	Control Controller
	// QueryTimeout bounds non-streaming storage queries.
	QueryTimeout time.Duration
}

// Server wires HTTP handlers to the match store and the optional crawler controller.
type Server struct {
	router  chi.Router
	reader  crawler.MatchReader
	control Controller
	timeout time.Duration
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(reader crawler.MatchReader, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	s := &Server{
		reader:  reader,
		control: opts.Control,
		timeout: opts.QueryTimeout,
		logger:  logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Get("/stats", s.statistics)
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.streamMatches)
			r.Get("/count", s.countMatches)
			r.Get("/{match_id}/exists", s.matchExists)
		})
		if s.control != nil {
			r.Route("/crawler", func(r chi.Router) {
				r.Get("/state", s.crawlerState)
				r.Post("/pause", s.pauseCrawler)
				r.Post("/resume", s.resumeCrawler)
				r.Post("/stop", s.stopCrawler)
			})
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.reader.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) crawlerState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.control.Status())
}

func (s *Server) pauseCrawler(w http.ResponseWriter, _ *http.Request) {
	s.applyControl(w, "pause", s.control.Pause)
}

func (s *Server) resumeCrawler(w http.ResponseWriter, _ *http.Request) {
	s.applyControl(w, "resume", s.control.Resume)
}

func (s *Server) stopCrawler(w http.ResponseWriter, _ *http.Request) {
	s.control.Stop()
	s.logger.Info("crawler stop requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(s.control.Status().State)})
}

func (s *Server) applyControl(w http.ResponseWriter, action string, fn func() error) {
	if err := fn(); err != nil {
		if errors.Is(err, worker.ErrNotRunning) || errors.Is(err, worker.ErrNotPaused) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("crawler control failed", zap.String("action", action), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("crawler control applied", zap.String("action", action))
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.control.Status().State)})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("panic", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
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

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
