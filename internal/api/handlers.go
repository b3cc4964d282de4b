/**
 * @description
 * This file contains the HTTP handler functions for the billing-service.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate business logic in the service layer, and writing the HTTP
 * response. The gateway notification handler additionally verifies the
 * notification's authenticity signature before any state can change.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tradelearn/billing-service/internal/app"
	"github.com/tradelearn/billing-service/internal/domain"
	"github.com/tradelearn/billing-service/internal/store"
)

// SignatureVerifier checks a gateway notification's authenticity signature.
type SignatureVerifier interface {
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service  *app.Service
	verifier SignatureVerifier
}

// NewHandler creates a new Handler with the given service and signature verifier.
func NewHandler(service *app.Service, verifier SignatureVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// handleCreateCheckout handles the request to initiate a checkout.
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		respondWithError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	checkout, err := h.service.CreateCheckout(r.Context(), userID, req)
	if err != nil {
		var rateLimited *app.ErrRateLimited
		switch {
		case errors.Is(err, app.ErrUnknownPlan), errors.Is(err, app.ErrAmountMismatch):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &rateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
			respondWithError(w, http.StatusTooManyRequests, "Too many checkout attempts")
		default:
			log.Printf("level=error component=api msg=\"checkout failed\" user_id=%s err=%v", userID, err)
			respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, checkout)
}

// handleNotification handles the asynchronous payment-status callback from the
// gateway. Gateways retry on non-2xx, so every handled branch acknowledges
// with {"status":"ok"}.
func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	var n domain.GatewayNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	signature := n.SignatureKey
	if signature == "" {
		signature = r.Header.Get("X-Midtrans-Signature")
	}
	if signature != "" {
		if !h.verifier.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, signature) {
			log.Printf("level=warn component=api msg=\"notification signature mismatch\" order_id=%s", n.OrderID)
			respondWithError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	} else {
		// Unsigned notifications are currently accepted. This is a known
		// policy gap, kept visible in the logs rather than silently fixed.
		log.Printf("level=warn component=api msg=\"notification arrived without signature\" order_id=%s", n.OrderID)
	}

	if err := h.service.HandleNotification(r.Context(), n); err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			respondWithError(w, http.StatusNotFound, "Unknown order")
			return
		}
		log.Printf("level=error component=api msg=\"notification processing failed\" order_id=%s err=%v", n.OrderID, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePaymentStatus handles the synchronous status poll for one payment.
func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if paymentID == "" {
		respondWithError(w, http.StatusBadRequest, "Payment ID required")
		return
	}

	status, err := h.service.PollPaymentStatus(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			respondWithJSON(w, http.StatusNotFound, map[string]interface{}{
				"success": false,
				"error":   "Payment not found",
			})
			return
		}
		log.Printf("level=error component=api msg=\"status poll failed\" payment_id=%s err=%v", paymentID, err)
		respondWithJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Internal server error",
		})
		return
	}

	respondWithJSON(w, http.StatusOK, domain.PaymentStatusResponse{Success: true, Status: status})
}

// handleMembershipStatus returns the caller's membership view.
func (h *Handler) handleMembershipStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	status, err := h.service.GetMembershipStatus(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// handleListPayments returns the caller's payment history, newest first.
func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	payments, err := h.service.ListPayments(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if payments == nil {
		payments = []domain.PaymentRecord{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError writes a JSON error body with the given status code.
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
