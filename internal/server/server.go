// Package server serves built features over HTTP from the layer stores.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contours-admin/internal/config"
	"github.com/sells-group/contours-admin/internal/contours"
	"github.com/sells-group/contours-admin/internal/kvstore"
	"github.com/sells-group/contours-admin/internal/metrics"
	"github.com/sells-group/contours-admin/internal/output"
)

// Server answers feature lookups. Stores are opened on first use and kept
// until Close.
type Server struct {
	opener   kvstore.Opener
	cache    *lru.Cache[string, json.RawMessage]
	metrics  *metrics.Server
	manifest *output.Manifest
	origins  []string

	mu     sync.Mutex
	stores map[string]kvstore.Store
}

// New creates a Server. When distDir holds a build manifest, only the
// namespaces it lists are served.
func New(opener kvstore.Opener, distDir string, cfg config.ServerConfig, m *metrics.Server) (*Server, error) {
	cache, err := lru.New[string, json.RawMessage](max(cfg.CacheSize, 1))
	if err != nil {
		return nil, eris.Wrap(err, "server: create cache")
	}

	manifest, err := output.ReadManifest(distDir)
	if err != nil {
		zap.L().Warn("server: no build manifest, serving every namespace", zap.Error(err))
		manifest = nil
	}

	return &Server{
		opener:   opener,
		cache:    cache,
		metrics:  m,
		manifest: manifest,
		origins:  cfg.CORSOrigins,
		stores:   make(map[string]kvstore.Store),
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:         300,
	}))
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Get("/layers/{layer}/{interval}/{code}", s.handleFeature)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// observe logs and counts each request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, status, elapsed)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.manifest != nil {
		body["run_id"] = s.manifest.RunID
		body["built_at"] = s.manifest.FinishedAt
		body["layers"] = len(s.manifest.Layers)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	layer, err := contours.ParseLayer(chi.URLParam(r, "layer"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	interval, err := strconv.Atoi(chi.URLParam(r, "interval"))
	if err != nil || interval <= 0 {
		writeError(w, http.StatusBadRequest, "interval must be a positive integer")
		return
	}
	ns := contours.Namespace(layer, interval)
	if !s.serves(ns) {
		writeError(w, http.StatusNotFound, "layer "+ns+" was not built")
		return
	}

	code := chi.URLParam(r, "code")
	feature, err := s.lookup(r.Context(), ns, code)
	switch {
	case eris.Is(err, kvstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "no feature "+code+" in "+ns)
	case err != nil:
		zap.L().Error("server: lookup failed", zap.String("namespace", ns), zap.String("code", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
	default:
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(feature)
	}
}

// serves reports whether ns belongs to the current build.
func (s *Server) serves(ns string) bool {
	if s.manifest == nil {
		return true
	}
	for _, l := range s.manifest.Layers {
		if strings.TrimSuffix(l.File, ".geojson") == ns {
			return true
		}
	}
	return false
}

func (s *Server) lookup(ctx context.Context, ns, code string) (json.RawMessage, error) {
	key := ns + "/" + code
	if v, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookup(true)
		return v, nil
	}
	s.metrics.CacheLookup(false)

	store, err := s.store(ctx, ns)
	if err != nil {
		return nil, err
	}
	v, err := store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, v)
	return v, nil
}

func (s *Server) store(ctx context.Context, ns string) (kvstore.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[ns]; ok {
		return st, nil
	}
	st, err := s.opener.Open(ctx, ns)
	if err != nil {
		return nil, err
	}
	s.stores[ns] = st
	return st, nil
}

// Close closes every opened store.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for ns, st := range s.stores {
		if err := st.Close(); err != nil {
			errs = append(errs, eris.Wrapf(err, "server: close %s", ns))
		}
		delete(s.stores, ns)
	}
	return errors.Join(errs...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server: shutdown")
	case err := <-errCh:
		return eris.Wrap(err, "server: listen")
	}
}
