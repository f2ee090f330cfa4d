package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/example/cart-sync/internal/api/middleware"
	"github.com/example/cart-sync/internal/cart"
	"github.com/example/cart-sync/internal/catalog"
	"github.com/example/cart-sync/internal/session"
	"github.com/shopspring/decimal"
)

const maxRequestBody = 1 << 20 // 1MB

// Sessions resolves the cart session of a device
type Sessions interface {
	Get(ctx context.Context, deviceID string) (*session.Controller, error)
}

type Handlers struct {
	sessions Sessions
}

func NewHandlers(sessions Sessions) *Handlers {
	return &Handlers{sessions: sessions}
}

type cartResponse struct {
	SessionID       string            `json:"session_id"`
	State           string            `json:"state"`
	UserID          string            `json:"user_id,omitempty"`
	Items           []cart.LineItem   `json:"items"`
	Summary         cart.Summary      `json:"summary"`
	PendingRemovals []catalog.Removal `json:"pending_removals"`
}

type loginResponse struct {
	cartResponse
	GuestLines   int `json:"guest_lines"`
	AccountLines int `json:"account_lines"`
}

type validateResponse struct {
	Items     []cart.LineItem   `json:"items"`
	Removed   []catalog.Removal `json:"removed"`
	Warnings  []string          `json:"warnings"`
	Summary   cart.Summary      `json:"summary"`
	Abandoned bool              `json:"abandoned"`
}

type itemRequest struct {
	ProductID     string          `json:"product_id"`
	VariantWeight string          `json:"variant_weight"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

// controller resolves the device's session. A session signed in to an
// account is only served to requests carrying that user's token.
func (h *Handlers) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	c, err := h.sessions.Get(r.Context(), middleware.GetDeviceID(r.Context()))
	if err != nil {
		log.Printf("[API] Failed to open session: %v", err)
		respondError(w, "cart storage unavailable, please retry", http.StatusServiceUnavailable)
		return nil, false
	}

	owner, ok := c.Identity()
	if !ok {
		return c, true
	}
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, "authentication required", http.StatusUnauthorized)
		return nil, false
	}
	if claims.Identity("").UserID != owner.UserID {
		respondError(w, "session belongs to another user", http.StatusForbidden)
		return nil, false
	}
	return c, true
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, view(c))
}

func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	item := cart.LineItem{
		ProductID:     req.ProductID,
		VariantWeight: req.VariantWeight,
		Quantity:      req.Quantity,
		Price:         req.Price,
	}
	if err := c.AddItem(r.Context(), item); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, view(c))
}

func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	key := cart.Key{ProductID: req.ProductID, VariantWeight: req.VariantWeight}
	if err := c.SetQuantity(r.Context(), key, req.Quantity); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view(c))
}

func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key := cart.Key{
		ProductID:     r.URL.Query().Get("product_id"),
		VariantWeight: r.URL.Query().Get("variant_weight"),
	}
	if key.ProductID == "" || key.VariantWeight == "" {
		respondError(w, "product_id and variant_weight are required", http.StatusBadRequest)
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.RemoveItem(r.Context(), key); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view(c))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.Clear(r.Context())
	respondJSON(w, http.StatusOK, view(c))
}

func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	report := c.Validate(r.Context())
	respondJSON(w, http.StatusOK, validateResponse{
		Items:     report.Items,
		Removed:   report.Removed,
		Warnings:  report.Warnings,
		Summary:   report.Summary,
		Abandoned: report.Abandoned,
	})
}

func (h *Handlers) AcknowledgeRemovals(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	c.AcknowledgeRemovals()
	respondJSON(w, http.StatusOK, view(c))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	result, err := c.Login(r.Context(), claims.Identity(middleware.GetToken(r.Context())))
	if err != nil {
		respondSessionError(w, err)
		return
	}

	log.Printf("[API] Session %s logged in as %s", c.SessionID(), claims.UserID)
	respondJSON(w, http.StatusOK, loginResponse{
		cartResponse: view(c),
		GuestLines:   result.GuestLines,
		AccountLines: result.AccountLines,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := c.Logout(r.Context()); err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view(c))
}

func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func view(c *session.Controller) cartResponse {
	items := c.Items()
	resp := cartResponse{
		SessionID:       c.SessionID(),
		State:           c.State().String(),
		Items:           items,
		Summary:         cart.Summarize(items),
		PendingRemovals: c.PendingRemovals(),
	}
	if id, ok := c.Identity(); ok {
		resp.UserID = id.UserID
	}
	return resp
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrItemNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrAlreadyAuthenticated), errors.Is(err, session.ErrNotAuthenticated):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrAccountUnavailable):
		respondError(w, "account cart unavailable, please retry", http.StatusBadGateway)
	default:
		log.Printf("[API] Unexpected session error: %v", err)
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}
