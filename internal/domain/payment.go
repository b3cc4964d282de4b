/**
 * @description
 * This file defines the payment domain models for the billing-service.
 * A PaymentRecord tracks one attempted checkout against the payment gateway
 * from creation (`pending`) to exactly one terminal state.
 *
 * @notes
 * - The record id doubles as the externally-visible gateway order id
 *   (`ORDER-<timestamp>-<random>`), so a webhook lookup is a primary-key read.
 * - Amounts are stored as `int64` in the smallest currency unit to avoid
 *   floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses. `pending` is the only non-terminal state; once a record
// reaches `paid`, `failed` or `expired` it never changes again.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
	PaymentExpired = "expired"
)

// IsTerminalPaymentStatus reports whether status admits no further transition.
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentPaid || status == PaymentFailed || status == PaymentExpired
}

// PaymentRecord represents one attempted payment. It maps to the `payments`
// table. The record outlives plan changes for audit purposes; user_id is a
// weak reference with no cascading ownership.
type PaymentRecord struct {
	ID            string     `json:"id"` // gateway order id
	UserID        uuid.UUID  `json:"user_id"`
	Amount        int64      `json:"amount"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CheckoutRequest is the DTO for initiating a checkout. PaymentMethod is
// normally empty (the gateway's hosted page picks the channel); the value
// "demo" requests a simulated checkout that never reaches the gateway.
type CheckoutRequest struct {
	Amount        int64  `json:"amount"`
	Plan          string `json:"plan"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Description   string `json:"description"`
	PaymentMethod string `json:"payment_method"`
}

// CheckoutResponse carries the Snap token the frontend redirects with.
type CheckoutResponse struct {
	Token   string `json:"token"`
	OrderID string `json:"order_id"`
}

// GatewayNotification is the asynchronous payment-status callback body posted
// by the gateway. SignatureKey is SHA-512 of
// order_id + status_code + gross_amount + server key.
type GatewayNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
}

// PaymentStatusResponse is returned by the status poller endpoint.
type PaymentStatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}
