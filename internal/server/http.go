package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/export"
	"github.com/joseph-ayodele/doc-intake/internal/metrics"
	"github.com/joseph-ayodele/doc-intake/internal/repository"
)

// Pinger reports database liveness; *repository.DB implements it.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// NewHTTPHandler builds the side-port router: /metrics, /healthz, /readyz and /export.xlsx.
// db and exporter may be nil.
func NewHTTPHandler(db Pinger, exporter *export.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(countRequests)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			if err := db.HealthCheck(req.Context(), 2*time.Second); err != nil {
				logger.Warn("http.readyz.failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if exporter != nil {
		r.Get("/export.xlsx", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			filter := repository.ListFilter{
				DocumentType:    constants.DocumentType(q.Get("type")),
				NeedsReviewOnly: q.Get("review") == "1" || q.Get("review") == "true",
			}
			if filter.DocumentType != "" && constants.ParseDocumentType(string(filter.DocumentType)) != filter.DocumentType {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown type"})
				return
			}
			if l := q.Get("limit"); l != "" {
				n, err := strconv.Atoi(l)
				if err != nil || n < 0 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
					return
				}
				filter.Limit = n
			}
			b, err := exporter.ExportXLSX(req.Context(), filter)
			if err != nil {
				logger.Error("http.export.failed", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
				return
			}
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename="review.xlsx"`)
			_, _ = w.Write(b)
		})
	}
	return r
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = "unknown"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
