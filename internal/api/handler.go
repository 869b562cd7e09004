// Package api is the local operator HTTP surface: enqueue events, read
// queue stats and resurrect failed events.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SirClappington/pdagent/internal/domain"
	"github.com/SirClappington/pdagent/internal/enqueuer"
	"github.com/SirClappington/pdagent/internal/queue"
)

// Queue is the subset of the store the API reads and administers.
type Queue interface {
	Stats(destinationID string) (queue.Snapshot, error)
	Resurrect(ctx context.Context, destinationID string) (int, error)
}

// Enqueuer accepts new events.
type Enqueuer interface {
	Enqueue(ctx context.Context, evt domain.Event) (enqueuer.Receipt, error)
}

type Handler struct {
	queue    Queue
	enqueuer Enqueuer
	logger   *zap.Logger
}

func NewHandler(q Queue, enq Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{queue: q, enqueuer: enq, logger: logger}
}

// Router mounts every route.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/events", h.enqueue)
	r.Get("/v1/stats", h.stats)
	r.Post("/v1/resurrect", h.resurrect)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	var evt domain.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	receipt, err := h.enqueuer.Enqueue(r.Context(), evt)
	if err != nil {
		if isValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("enqueue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not queue event")
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.queue.Stats(r.URL.Query().Get("service_key"))
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) resurrect(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("service_key")
	n, err := h.queue.Resurrect(r.Context(), key)
	if err != nil {
		h.logger.Error("resurrect failed", zap.String("service_key", key), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "could not resurrect events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"resurrected": n})
}

func isValidation(err error) bool {
	for _, target := range []error{
		domain.ErrServiceKeyRequired,
		domain.ErrUnknownEventType,
		domain.ErrIncidentKeyRequired,
		domain.ErrDescriptionRequired,
		queue.ErrInvalidDestination,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
