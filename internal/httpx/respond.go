package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-checkout.git/internal/checkout"
	"github.com/google/uuid"
)

const (
	headerUserID       = "X-User-ID"       // set by the auth layer upstream
	headerSessionToken = "X-Session-Token" // anonymous cart binding
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errStatus(err), map[string]string{"error": err.Error()})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrDuplicateIdempotencyKey),
		errors.Is(err, checkout.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, checkout.ErrWebhookVerification):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrOutOfStock),
		errors.Is(err, checkout.ErrInsufficientStock),
		errors.Is(err, checkout.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrInvalidIdentity),
		errors.Is(err, checkout.ErrInvalidRefundTarget),
		errors.Is(err, checkout.ErrUnsupportedPaymentMethod):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// identity resolves the caller: an upstream-authenticated user id, an
// existing session token, or a freshly minted token echoed back to the
// client so the anonymous cart sticks.
func identity(w http.ResponseWriter, r *http.Request) checkout.Identity {
	if uid := r.Header.Get(headerUserID); uid != "" {
		return checkout.Identity{UserID: uid}
	}
	tok := r.Header.Get(headerSessionToken)
	if tok == "" {
		tok = uuid.NewString()
	}
	w.Header().Set(headerSessionToken, tok)
	return checkout.Identity{SessionToken: tok}
}
