package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/ordercore/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{domain.ErrCartNotFound, http.StatusNotFound, "cart_not_found"},
	{domain.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrUnknownEnum, http.StatusBadRequest, "invalid_value"},
	{domain.ErrAdvanceNotCompleted, http.StatusBadRequest, "advance_not_completed"},
	{domain.ErrPaymentIncomplete, http.StatusBadRequest, "payment_incomplete"},
	{domain.ErrPaymentAlreadyCompleted, http.StatusConflict, "payment_already_completed"},
	{domain.ErrSignatureInvalid, http.StatusBadRequest, "signature_invalid"},
	{domain.ErrPaymentNotFound, http.StatusNotFound, "payment_not_found"},
	{domain.ErrNoActiveTaxConfig, http.StatusUnprocessableEntity, "no_active_tax_config"},
	{domain.ErrAlreadyConsumed, http.StatusConflict, "already_consumed"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrGateway, http.StatusBadGateway, "gateway_error"},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to a status and stable code. Anything
// unrecognised is logged and answered with a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stock *domain.InsufficientStockError
	if errors.As(err, &stock) {
		writeJSON(w, http.StatusConflict, errorBody{Error: "insufficient stock", Code: "insufficient_stock", Details: stock.Shortages})
		return
	}
	var materials *domain.InsufficientMaterialsError
	if errors.As(err, &materials) {
		writeJSON(w, http.StatusConflict, errorBody{Error: "insufficient materials", Code: "insufficient_materials", Details: materials.Shortages})
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= 500 {
				log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("upstream failure")
			}
			writeJSON(w, m.status, errorBody{Error: err.Error(), Code: m.code})
			return
		}
	}
	log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}
