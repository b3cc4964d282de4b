/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the billing-service. Defining an
 * interface decouples the business logic from the PostgreSQL implementation and
 * lets tests substitute lightweight stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For user identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tradelearn/billing-service/internal/domain"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Payment methods. Status updates are compare-and-set against 'pending'
	// at the store level so concurrent writers (webhook vs. poller) cannot
	// overwrite a terminal state.
	CreatePayment(ctx context.Context, p *domain.PaymentRecord) error
	FindPaymentByID(ctx context.Context, id string) (*domain.PaymentRecord, error)
	FindPaymentsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentRecord, error)
	// MarkPaymentPaid transitions a pending record to 'paid' and stamps
	// paid_at. It reports whether this caller won the transition.
	MarkPaymentPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
	// SettlePaymentStatus transitions a pending record to the given terminal
	// status ('failed' or 'expired'). It reports whether a row changed.
	SettlePaymentStatus(ctx context.Context, id, status string) (bool, error)
	// RecordPaymentMethod stores the payment channel the gateway reported,
	// for records whose method is still unknown. Write-once: a method already
	// on the record is never overwritten.
	RecordPaymentMethod(ctx context.Context, id, method string) error

	// Profile methods.
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	// ActivateMembership upgrades a profile to premium for the given plan and
	// period, creating the profile row if registration never did.
	ActivateMembership(ctx context.Context, userID uuid.UUID, plan string, start, end time.Time) error
	// DowngradeProfile resets a profile to the free tier and clears both
	// subscription timestamps.
	DowngradeProfile(ctx context.Context, userID uuid.UUID) error
	// FindLapsedPremiumProfiles returns premium profiles whose subscription
	// window closed before now.
	FindLapsedPremiumProfiles(ctx context.Context, now time.Time) ([]domain.Profile, error)
}
