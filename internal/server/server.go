package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reup-planner-backend/internal/analytics"
	"reup-planner-backend/internal/auth"
	"reup-planner-backend/internal/goals"
	"reup-planner-backend/internal/version"
)

const (
	Name            = "reup-planner-backend"
	shutdownTimeout = 10 * time.Second
)

type Options struct {
	Goals       *goals.Handlers
	Analytics   *analytics.Handlers
	Auth        auth.Middleware
	CORSOrigins []string
	Logger      *zap.Logger
	Now         func() time.Time
}

var endpoints = []string{
	"GET /",
	"GET /health",
	"POST /api/breakdown",
	"POST /api/observations",
	"GET /api/profile",
	"GET /api/preferences",
	"PUT /api/preferences",
}

// NewHandler builds the routed, CORS-wrapped and request-logged handler.
func NewHandler(o Options) http.Handler {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":      Name,
			"version":   version.Version,
			"endpoints": endpoints,
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"version":   version.Version,
			"timestamp": o.Now().UTC().Format(time.RFC3339),
		})
	})

	// ----- PLANNING -----
	mux.HandleFunc("/api/breakdown", o.Auth.Optional(o.Goals.Breakdown))
	mux.HandleFunc("/api/preferences", o.Auth.Wrap(o.Goals.Preferences))

	// ----- BEHAVIOR -----
	if o.Analytics != nil {
		mux.HandleFunc("/api/observations", o.Auth.Wrap(o.Analytics.Observations))
		mux.HandleFunc("/api/profile", o.Auth.Wrap(o.Analytics.Profile))
	}

	origins := o.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Source-Event-Key"},
		AllowCredentials: true,
	})

	return c.Handler(logRequests(mux, o.Logger))
}

// New returns an http.Server with the timeouts used in every environment.
// WriteTimeout leaves room for a slow backend call on top of backendTimeout.
func New(addr string, h http.Handler, backendTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      backendTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run serves on srv.Addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", srv.Addr, err)
	}
	return Serve(ctx, srv, ln, logger)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server is running", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
