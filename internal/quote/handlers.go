package quote

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andeantrade/cotiza-api/internal/common"
)

// Handler exposes the quote rendering endpoints. All three read surfaces go
// through the same engine; they differ only in projection.
type Handler struct {
	engine *Engine
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Engine *Engine
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{engine: cfg.Engine}
}

// Detail handles GET /api/v1/quotes/{quoteID}.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.SnapshotByID(r.Context(), id, SurfaceDetail)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewDetailView(snap))
}

// Print handles GET /api/v1/quotes/{quoteID}/print.
func (h *Handler) Print(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.SnapshotByID(r.Context(), id, SurfacePrint)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewPrintView(snap))
}

// Public handles GET /api/v1/public/quotes/{token}. Unknown and revoked
// tokens are indistinguishable in the response.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote engine not configured", nil)
		return
	}
	token := chi.URLParam(r, "token")
	if token == "" {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote not found", nil)
		return
	}
	snap, err := h.engine.SnapshotByToken(r.Context(), token, SurfacePublic)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewPublicView(snap))
}

// Recalculate handles POST /api/v1/quotes/{quoteID}/recalculate. It persists
// the recomputed totals and returns the fresh detail view.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	snap, err := h.engine.Recalculate(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewDetailView(snap))
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote engine not configured", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "quoteID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid quote id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote not found", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.Status(), appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
