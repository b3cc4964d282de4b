/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL queries for the `payments` and `profiles` tables.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradelearn/billing-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreatePayment inserts a new payment record. The caller supplies the id
// (gateway order id), status and expiry window.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *domain.PaymentRecord) error {
	query := `
        INSERT INTO payments (id, user_id, amount, description, status, payment_method, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `
	return r.db.QueryRow(ctx, query,
		p.ID,
		p.UserID,
		p.Amount,
		p.Description,
		p.Status,
		p.PaymentMethod,
		p.ExpiresAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// FindPaymentByID retrieves a payment record by its order id.
func (r *PostgresRepository) FindPaymentByID(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	query := `
        SELECT id, user_id, amount, description, status, payment_method, expires_at, paid_at, created_at, updated_at
        FROM payments
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Amount,
		&p.Description,
		&p.Status,
		&p.PaymentMethod,
		&p.ExpiresAt,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindPaymentsByUserID lists a user's payment records, newest first.
func (r *PostgresRepository) FindPaymentsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `
        SELECT id, user_id, amount, description, status, payment_method, expires_at, paid_at, created_at, updated_at
        FROM payments
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		var p domain.PaymentRecord
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Amount,
			&p.Description,
			&p.Status,
			&p.PaymentMethod,
			&p.ExpiresAt,
			&p.PaidAt,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkPaymentPaid transitions a pending payment to 'paid'. The WHERE clause
// makes the transition a compare-and-set: a record that already reached a
// terminal state is left untouched and the caller is told it lost the race.
func (r *PostgresRepository) MarkPaymentPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	query := `
        UPDATE payments
        SET status = 'paid',
            paid_at = $2,
            updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, id, paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SettlePaymentStatus transitions a pending payment to 'failed' or 'expired'.
func (r *PostgresRepository) SettlePaymentStatus(ctx context.Context, id, status string) (bool, error) {
	query := `
        UPDATE payments
        SET status = $2,
            updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordPaymentMethod stores the payment channel the gateway reported. The
// NULL guard makes the write idempotent across webhook retries and polls.
func (r *PostgresRepository) RecordPaymentMethod(ctx context.Context, id, method string) error {
	query := `
        UPDATE payments
        SET payment_method = $2,
            updated_at = NOW()
        WHERE id = $1 AND payment_method IS NULL
    `
	_, err := r.db.Exec(ctx, query, id, method)
	return err
}

// FindProfileByUserID retrieves a membership profile by user id.
func (r *PostgresRepository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	query := `
        SELECT user_id, membership_type, subscription_plan, subscription_start, subscription_end, updated_at
        FROM profiles
        WHERE user_id = $1
    `
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.MembershipType,
		&p.SubscriptionPlan,
		&p.SubscriptionStart,
		&p.SubscriptionEnd,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ActivateMembership upgrades a profile to premium for the given plan and
// period. Registration normally creates the profile row; the upsert covers
// accounts that predate the profiles table.
func (r *PostgresRepository) ActivateMembership(ctx context.Context, userID uuid.UUID, plan string, start, end time.Time) error {
	query := `
        INSERT INTO profiles (user_id, membership_type, subscription_plan, subscription_start, subscription_end)
        VALUES ($1, 'premium', $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE SET
            membership_type = 'premium',
            subscription_plan = EXCLUDED.subscription_plan,
            subscription_start = EXCLUDED.subscription_start,
            subscription_end = EXCLUDED.subscription_end,
            updated_at = NOW()
    `
	_, err := r.db.Exec(ctx, query, userID, plan, start, end)
	return err
}

// DowngradeProfile resets a profile to the free tier and clears the
// subscription window. Running it against an already-free profile is a no-op.
func (r *PostgresRepository) DowngradeProfile(ctx context.Context, userID uuid.UUID) error {
	query := `
        UPDATE profiles
        SET membership_type = 'free',
            subscription_plan = NULL,
            subscription_start = NULL,
            subscription_end = NULL,
            updated_at = NOW()
        WHERE user_id = $1
    `
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

// FindLapsedPremiumProfiles returns all premium profiles whose subscription
// window closed before the given instant.
func (r *PostgresRepository) FindLapsedPremiumProfiles(ctx context.Context, now time.Time) ([]domain.Profile, error) {
	query := `
        SELECT user_id, membership_type, subscription_plan, subscription_start, subscription_end, updated_at
        FROM profiles
        WHERE membership_type = 'premium'
          AND subscription_end IS NOT NULL
          AND subscription_end < $1
    `
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(
			&p.UserID,
			&p.MembershipType,
			&p.SubscriptionPlan,
			&p.SubscriptionStart,
			&p.SubscriptionEnd,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
