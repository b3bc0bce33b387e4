package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/common"
	"github.com/andeantrade/cotiza-api/internal/numeric"
)

// Handler exposes the cart aggregation and mutation endpoints.
type Handler struct {
	manager  *Manager
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Manager  *Manager
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{manager: cfg.Manager, validate: v}
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100000"`
}

// LineItemView is one rendered cart line.
type LineItemView struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	PromoPrice  decimal.Decimal `json:"promoPrice,omitempty"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	// Pending marks a line whose mutation is still in flight; its controls
	// stay disabled until the mutation settles.
	Pending bool `json:"pending,omitempty"`
}

// GroupView is one company's section of the cart.
type GroupView struct {
	CompanyID   string          `json:"companyId"`
	CompanyName string          `json:"companyName"`
	Items       []LineItemView  `json:"items"`
	Total       decimal.Decimal `json:"total"`
}

// SummaryView is the full cart aggregation response.
type SummaryView struct {
	CartID           string          `json:"cartId"`
	Groups           []GroupView     `json:"groups"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
	GrandTotalTarget decimal.Decimal `json:"grandTotalTarget"`
	RateValue        decimal.Decimal `json:"rateValue"`
	RateStale        bool            `json:"rateStale,omitempty"`
	GeneratedAt      time.Time       `json:"generatedAt"`
}

// Summary handles GET /api/v1/carts/{cartID}.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r, "cartID")
	if !ok {
		return
	}
	c, summary, err := h.manager.Summary(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newSummaryView(c, summary))
}

// UpdateQuantity handles PATCH /api/v1/carts/{cartID}/items/{itemID}.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r, "cartID")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "quantity must be a positive integer", nil)
		return
	}
	state, err := h.manager.SetQuantity(r.Context(), cartID, itemID, req.Quantity)
	if err != nil {
		h.writeMutationError(w, state, err)
		return
	}
	common.Data(w, http.StatusOK, stateView(itemID, state))
}

// RemoveItem handles DELETE /api/v1/carts/{cartID}/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r, "cartID")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}
	state, err := h.manager.Remove(r.Context(), cartID, itemID)
	if err != nil {
		h.writeMutationError(w, state, err)
		return
	}
	common.Data(w, http.StatusOK, stateView(itemID, state))
}

func newSummaryView(c Cart, s Summary) SummaryView {
	groups := make([]GroupView, 0, len(s.Groups))
	for _, g := range s.Groups {
		items := make([]LineItemView, 0, len(g.Lines))
		for _, line := range g.Lines {
			items = append(items, LineItemView{
				ID:          line.Item.ID.String(),
				Description: line.Item.Description,
				Quantity:    line.DisplayedQty,
				UnitPrice:   numeric.Round2(line.Item.UnitPrice),
				PromoPrice:  numeric.Round2(line.Item.PromoPrice),
				LineTotal:   numeric.Round2(line.LineTotal),
				Pending:     line.InFlight,
			})
		}
		groups = append(groups, GroupView{
			CompanyID:   g.CompanyID.String(),
			CompanyName: g.CompanyName,
			Items:       items,
			Total:       numeric.Round2(g.Total),
		})
	}
	return SummaryView{
		CartID:           c.ID.String(),
		Groups:           groups,
		GrandTotal:       numeric.Round2(s.GrandTotal),
		GrandTotalTarget: numeric.Round2(s.GrandTotalTarget),
		RateValue:        s.Rate.Value,
		RateStale:        s.Rate.Fallback,
		GeneratedAt:      time.Now(),
	}
}

func stateView(itemID uuid.UUID, s State) map[string]any {
	return map[string]any{
		"itemId":   itemID.String(),
		"phase":    string(s.Phase),
		"quantity": s.DisplayedQty(),
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	if h.manager == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart manager not configured", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeMutationError(w http.ResponseWriter, state State, err error) {
	switch {
	case errors.Is(err, ErrMutationInFlight):
		common.JSONError(w, http.StatusConflict, "MUTATION_IN_FLIGHT", "another change for this item is still in flight", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid quantity", nil)
	default:
		// Rejected mutation: the item has already been reverted; surface
		// the reverted quantity alongside the error notification.
		common.JSONError(w, http.StatusUnprocessableEntity, "MUTATION_REJECTED", "change rejected, item reverted", map[string]any{
			"revertedQuantity": state.DisplayedQty(),
		})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.Status(), appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
