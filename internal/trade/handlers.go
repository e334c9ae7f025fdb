package trade

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventdesk/desk-engine/internal/kalshi"
	"github.com/eventdesk/desk-engine/internal/model"
)

// orderBody is the JSON body for POST /api/order/{buy,sell}.
type orderBody struct {
	Ticker   string `json:"ticker"`
	Side     string `json:"side"`     // "yes" (default) or "no"
	Quantity *int64 `json:"quantity"` // default 1
}

// Routes mounts the desk API on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/status", s.GetStatus)
	r.Post("/order/buy", s.Buy)
	r.Post("/order/sell", s.Sell)
	r.Get("/orders/resting", s.GetRestingOrders)
	r.Delete("/orders/cancel/{orderID}", s.Cancel)
}

// GetStatus handles GET /api/status
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

// Buy handles POST /api/order/buy
// Prices at the effective ask of the requested side.
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	s.placeOrder(w, r, model.ActionBuy)
}

// Sell handles POST /api/order/sell
// Prices at the effective bid of the requested side.
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	s.placeOrder(w, r, model.ActionSell)
}

func (s *Service) placeOrder(w http.ResponseWriter, r *http.Request, action model.Action) {
	var body orderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req := OrderRequest{
		Ticker:   body.Ticker,
		Side:     body.Side,
		Action:   string(action),
		Quantity: 1,
	}
	if req.Side == "" {
		req.Side = "yes"
	}
	if body.Quantity != nil {
		req.Quantity = *body.Quantity
	}

	result, err := s.PlaceOrder(r.Context(), req)
	switch {
	case errors.Is(err, ErrInvalidOrderParameters):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrStaleOrMissingQuote):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if result.Outcome == model.OutcomeRejected {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

// GetRestingOrders handles GET /api/orders/resting
func (s *Service) GetRestingOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]model.RestingOrder{
		"resting_orders": s.RestingOrders(),
	})
}

// Cancel handles DELETE /api/orders/cancel/{orderID}
func (s *Service) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	resp, err := s.CancelOrder(r.Context(), orderID)
	switch {
	case errors.Is(err, ErrInvalidOrderParameters):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrNotCancelable):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, kalshi.ErrTransport):
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
