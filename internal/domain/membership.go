/**
 * @description
 * This file defines the membership domain models for the billing-service.
 * A Profile holds a user's current membership tier and subscription window;
 * it is the row the activation flow upgrades and the expiry sweep downgrades.
 *
 * @notes
 * - `subscription_start`/`subscription_end` are pointers: both are NULL for
 *   free members, so nil maps directly onto the database representation.
 * - Plan keys are the canonical identifiers stored on the profile; the
 *   human-readable labels live in the plan catalog in internal/app.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Membership tiers.
const (
	MembershipFree    = "free"
	MembershipPremium = "premium"
)

// Canonical subscription plan keys.
const (
	Plan1Month  = "1month"
	Plan3Months = "3months"
	Plan1Year   = "1year"
)

// Profile represents a user's membership record. It maps to the `profiles`
// table and has a 1:1 relationship with the auth subsystem's user id.
type Profile struct {
	UserID            uuid.UUID  `json:"user_id"`
	MembershipType    string     `json:"membership_type"` // 'free' or 'premium'
	SubscriptionPlan  *string    `json:"subscription_plan,omitempty"`
	SubscriptionStart *time.Time `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscription_end,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsLapsedPremium reports whether the profile claims premium access past its
// paid-for window. Such profiles are downgraded by the sweeper or by the
// per-request membership guard, whichever observes them first.
func (p *Profile) IsLapsedPremium(now time.Time) bool {
	return p.MembershipType == MembershipPremium &&
		p.SubscriptionEnd != nil &&
		p.SubscriptionEnd.Before(now)
}

// MembershipStatus is the DTO returned to clients asking about their own
// membership. IsActive folds the tier and the period end into one flag so the
// frontend never has to re-derive it.
type MembershipStatus struct {
	MembershipType   string     `json:"membership_type"`
	SubscriptionPlan *string    `json:"subscription_plan,omitempty"`
	SubscriptionEnd  *time.Time `json:"subscription_end,omitempty"`
	IsActive         bool       `json:"is_active"`
}

// MembershipActivatedEvent is published to RabbitMQ after a successful
// activation so downstream consumers (e.g. email notifications) can react.
type MembershipActivatedEvent struct {
	UserID          uuid.UUID `json:"user_id"`
	OrderID         string    `json:"order_id"`
	Plan            string    `json:"plan"`
	SubscriptionEnd time.Time `json:"subscription_end"`
	Timestamp       time.Time `json:"timestamp"`
}

// MembershipExpiredEvent is published for every profile the sweeper downgrades.
type MembershipExpiredEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentFailedEvent is published when a payment reaches the failed state.
type PaymentFailedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
