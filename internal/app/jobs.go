/**
 * @description
 * Expiry sweep job for the billing-service. The sweep is a periodic correction
 * pass independent of the payment flow: it downgrades premium profiles whose
 * subscription window has lapsed. It never touches payment records.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tradelearn/billing-service/internal/domain"
	"github.com/tradelearn/billing-service/pkg/rabbitmq"
)

// SweepRepository defines the database operations the sweep needs.
type SweepRepository interface {
	FindLapsedPremiumProfiles(ctx context.Context, now time.Time) ([]domain.Profile, error)
	DowngradeProfile(ctx context.Context, userID uuid.UUID) error
}

// Jobs contains the logic for the scheduled billing tasks.
type Jobs struct {
	repo     SweepRepository
	producer rabbitmq.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo SweepRepository, producer rabbitmq.Publisher, logger *slog.Logger) *Jobs {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &Jobs{
		repo:     repo,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessExpiredMemberships downgrades every premium profile whose
// subscription lapsed. The sweep is idempotent: re-running it with no newly
// expired rows is a no-op. A query error aborts the batch (the next scheduled
// run retries); a per-profile downgrade error is logged and the batch
// continues.
func (j *Jobs) ProcessExpiredMemberships(ctx context.Context) error {
	j.logger.Info("starting membership expiry sweep")
	now := j.now()

	profiles, err := j.repo.FindLapsedPremiumProfiles(ctx, now)
	if err != nil {
		j.logger.Error("failed to query lapsed premium profiles", "error", err)
		return fmt.Errorf("query lapsed profiles: %w", err)
	}

	if len(profiles) == 0 {
		j.logger.Info("no lapsed premium profiles to downgrade")
		return nil
	}

	j.logger.Info("found lapsed premium profiles", "count", len(profiles))

	downgraded := 0
	for _, profile := range profiles {
		if err := j.repo.DowngradeProfile(ctx, profile.UserID); err != nil {
			j.logger.Error("failed to downgrade profile", "user_id", profile.UserID, "error", err)
			continue
		}
		downgraded++

		event := domain.MembershipExpiredEvent{
			UserID:    profile.UserID,
			Timestamp: now,
		}
		if profile.SubscriptionEnd != nil {
			event.ExpiredAt = *profile.SubscriptionEnd
		}
		if err := j.producer.Publish(ctx, rabbitmq.BillingEventsExchange, "billing.membership.expired", event); err != nil {
			j.logger.Warn("expired event publish failed", "user_id", profile.UserID, "error", err)
		}
	}

	j.logger.Info("membership expiry sweep finished", "downgraded", downgraded)
	return nil
}
