// Package server exposes diagnostic HTTP endpoints: health, metrics, genre
// and segmentation lookups, warning kinds, and run history.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/address"
	"github.com/goto-eat-map/csv2geojson/internal/genre"
	"github.com/goto-eat-map/csv2geojson/internal/metrics"
	"github.com/goto-eat-map/csv2geojson/internal/model"
	"github.com/goto-eat-map/csv2geojson/internal/store"
	"github.com/goto-eat-map/csv2geojson/internal/validate"
)

const shutdownTimeout = 10 * time.Second

// RunReader reads run history.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Deps are the components the endpoints serve. Metrics and Runs are optional.
type Deps struct {
	Classifier     *genre.Classifier
	Segmenter      *address.Segmenter
	Metrics        *metrics.Registry
	Runs           RunReader
	AllowedOrigins []string
}

// GenreResponse is the body of GET /v1/genre.
type GenreResponse struct {
	Label string     `json:"label"`
	Code  genre.Code `json:"code"`
	Name  string     `json:"name"`
	Rule  string     `json:"rule,omitempty"`
	Known bool       `json:"known"`
}

// SegmentResponse is the body of GET /v1/segment.
type SegmentResponse struct {
	Address    string `json:"address"`
	Region     string `json:"region"`
	Normalized string `json:"normalized"`
}

type handler struct {
	deps Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(deps.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/genre", h.genre)
		r.Get("/segment", h.segment)
		r.Get("/warning-kinds", h.warningKinds)
		if deps.Runs != nil {
			r.Get("/runs", h.listRuns)
			r.Get("/runs/{runID}", h.getRun)
		}
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) genre(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	resp := GenreResponse{Label: label, Code: h.deps.Classifier.Classify(label)}
	resp.Name = resp.Code.String()
	if rule, ok := h.deps.Classifier.Match(label); ok {
		resp.Rule = rule.Name
	}
	resp.Known = h.deps.Classifier.Known(label)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) warningKinds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]validate.Kind{"kinds": validate.Kinds()})
}

func (h *handler) segment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	region, addr := q.Get("region"), q.Get("address")
	if region == "" {
		writeError(w, http.StatusBadRequest, "region is required")
		return
	}

	normalized, err := h.deps.Segmenter.Segment(addr, region)
	switch {
	case errors.Is(err, address.ErrUnknownRegion):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case address.IsNormalizeError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SegmentResponse{Address: addr, Region: region, Normalized: normalized})
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Source: q.Get("source"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, v))
			return
		}
		*dst = n
	}

	runs, err := h.deps.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("server: get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ResolvePort returns flagPort if set, otherwise cfgPort.
func ResolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// Serve listens on port until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
