/**
 * @description
 * This file contains the core business logic for the billing-service: checkout
 * creation against the payment gateway, processing of asynchronous status
 * notifications, synchronous status polling, and the shared membership
 * activation procedure both paths converge on.
 *
 * @notes
 * - Payment Record and Profile live in independent tables with no cross-table
 *   transaction. Activation writes the payment first, then the profile; a
 *   failure between the two writes is logged under the `activation_partial`
 *   marker so it can be reconciled manually.
 * - The webhook and the poller can race on the same pending record. The store
 *   transitions are compare-and-set, so exactly one caller wins and the
 *   record never leaves a terminal state.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tradelearn/billing-service/internal/domain"
	"github.com/tradelearn/billing-service/internal/store"
	"github.com/tradelearn/billing-service/pkg/midtransclient"
	"github.com/tradelearn/billing-service/pkg/rabbitmq"
)

var (
	// ErrUnknownPlan is returned when a checkout names a plan outside the catalog.
	ErrUnknownPlan = errors.New("unknown subscription plan")
	// ErrAmountMismatch is returned when the checkout amount does not match the plan price.
	ErrAmountMismatch = errors.New("amount does not match plan price")
)

// ErrRateLimited is returned when a user exceeds the checkout rate limit.
type ErrRateLimited struct {
	RetryAfterSeconds int
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfterSeconds)
}

// Gateway defines the payment-gateway operations the service needs.
type Gateway interface {
	CreateSnapTransaction(ctx context.Context, req midtransclient.SnapTransactionRequest) (*midtransclient.SnapTransactionResponse, error)
	GetTransactionStatus(ctx context.Context, orderID string) (*midtransclient.TransactionStatusResponse, error)
}

// RateLimitDecision is a rate limiter's verdict on one checkout attempt.
type RateLimitDecision struct {
	Allowed           bool
	Remaining         int
	RetryAfterSeconds int
}

// RateLimiter gates checkout creation per user.
type RateLimiter interface {
	AllowCheckout(ctx context.Context, userID uuid.UUID) (RateLimitDecision, error)
}

// demoPaymentMethod marks simulated payments that never reach the gateway.
const demoPaymentMethod = "demo"

// Service provides the billing business logic.
type Service struct {
	repo          store.Repository
	gateway       Gateway
	producer      rabbitmq.Publisher
	pendingWindow time.Duration
	finishURL     string

	rateLimiter RateLimiter

	// Injectable clocks/randomness for tests.
	now      func() time.Time
	randFunc func() float64
}

// NewService creates a new billing service. pendingWindow is how long a newly
// created payment stays payable before the poller expires it.
func NewService(repo store.Repository, gateway Gateway, producer rabbitmq.Publisher, pendingWindow time.Duration, finishURL string) *Service {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	if pendingWindow <= 0 {
		pendingWindow = 15 * time.Minute
	}
	return &Service{
		repo:          repo,
		gateway:       gateway,
		producer:      producer,
		pendingWindow: pendingWindow,
		finishURL:     finishURL,
		now:           time.Now,
		randFunc:      rand.Float64,
	}
}

// SetCheckoutRateLimiter wires a distributed rate limiter for checkout creation.
func (s *Service) SetCheckoutRateLimiter(limiter RateLimiter) {
	s.rateLimiter = limiter
}

// NewOrderID generates a globally-unique, externally-visible order id for
// gateway-backed checkouts.
func NewOrderID(now time.Time) string {
	random := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("ORDER-%d-%s", now.UnixMilli(), random)
}

// NewDemoOrderID generates the id variant for simulated checkouts. The
// distinct prefix keeps demo records recognizable in the payments table.
func NewDemoOrderID(now time.Time) string {
	random := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("PAY_%d-%s", now.UnixMilli(), random)
}

// CreateCheckout validates the requested plan, creates a Snap transaction with
// the gateway and records a pending payment. The returned token is what the
// frontend redirects the user to hosted checkout with.
func (s *Service) CreateCheckout(ctx context.Context, userID uuid.UUID, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	plan, ok := LookupPlan(req.Plan)
	if !ok {
		return nil, ErrUnknownPlan
	}
	if req.Amount != plan.Price {
		return nil, ErrAmountMismatch
	}

	if s.rateLimiter != nil {
		decision, err := s.rateLimiter.AllowCheckout(ctx, userID)
		if err != nil {
			// Rate limiting is advisory; a limiter outage must not block checkouts.
			log.Printf("level=warn component=billing msg=\"rate limiter unavailable\" user_id=%s err=%v", userID, err)
		} else if !decision.Allowed {
			return nil, &ErrRateLimited{RetryAfterSeconds: decision.RetryAfterSeconds}
		}
	}

	now := s.now()

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = plan.Label + " Premium Subscription"
	}

	// Demo checkouts skip the gateway entirely: the record carries the
	// 'demo' method and the PAY_ id variant, and settles through the
	// poller's simulated branch.
	if strings.EqualFold(strings.TrimSpace(req.PaymentMethod), demoPaymentMethod) {
		orderID := NewDemoOrderID(now)
		method := demoPaymentMethod
		payment := &domain.PaymentRecord{
			ID:            orderID,
			UserID:        userID,
			Amount:        req.Amount,
			Description:   description,
			Status:        domain.PaymentPending,
			PaymentMethod: &method,
			ExpiresAt:     now.Add(s.pendingWindow),
		}
		if err := s.repo.CreatePayment(ctx, payment); err != nil {
			return nil, fmt.Errorf("record payment: %w", err)
		}
		return &domain.CheckoutResponse{OrderID: orderID}, nil
	}

	orderID := NewOrderID(now)

	snapReq := midtransclient.SnapTransactionRequest{}
	snapReq.TransactionDetails.OrderID = orderID
	snapReq.TransactionDetails.GrossAmount = req.Amount
	snapReq.ItemDetails = []midtransclient.ItemDetail{
		{ID: plan.Key, Price: req.Amount, Quantity: 1, Name: description},
	}
	snapReq.CustomerDetails.FirstName = req.Name
	snapReq.CustomerDetails.Email = req.Email
	snapReq.Callbacks.Finish = s.finishURL

	snapResp, err := s.gateway.CreateSnapTransaction(ctx, snapReq)
	if err != nil {
		return nil, fmt.Errorf("create gateway transaction: %w", err)
	}

	payment := &domain.PaymentRecord{
		ID:          orderID,
		UserID:      userID,
		Amount:      req.Amount,
		Description: description,
		Status:      domain.PaymentPending,
		ExpiresAt:   now.Add(s.pendingWindow),
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		// The gateway transaction already exists at this point; the record
		// insert failing leaves an orphaned gateway order. Log it under its
		// own marker so the window can be reconciled manually.
		log.Printf("level=error component=billing msg=\"checkout_orphan: gateway transaction created but payment insert failed\" order_id=%s user_id=%s err=%v", orderID, userID, err)
		return nil, fmt.Errorf("record payment: %w", err)
	}

	return &domain.CheckoutResponse{Token: snapResp.Token, OrderID: orderID}, nil
}

// HandleNotification applies a verified gateway status callback to the
// referenced payment. Unknown orders surface store.ErrPaymentNotFound;
// everything else resolves through the shared transition table.
func (s *Service) HandleNotification(ctx context.Context, n domain.GatewayNotification) error {
	payment, err := s.repo.FindPaymentByID(ctx, n.OrderID)
	if err != nil {
		return err
	}
	s.recordPaymentMethod(ctx, payment, n.PaymentType)

	switch ResolveNotification(n.TransactionStatus, n.FraudStatus) {
	case OutcomeActivate:
		return s.activate(ctx, payment)
	case OutcomeFail:
		return s.failPayment(ctx, payment, n.TransactionStatus)
	case OutcomeHold:
		// Record stays (or already is) pending; nothing to write.
		return nil
	default:
		log.Printf("level=info component=billing msg=\"ignoring unhandled transaction status\" order_id=%s transaction_status=%s", n.OrderID, n.TransactionStatus)
		return nil
	}
}

// PollPaymentStatus synchronously re-checks a payment, covering the case where
// the webhook has not arrived yet. It returns the payment's status after any
// transition it applied.
func (s *Service) PollPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return "", err
	}

	if domain.IsTerminalPaymentStatus(payment.Status) {
		return payment.Status, nil
	}

	// Expiry check comes first: a stale pending record expires without
	// consulting the gateway.
	if s.now().After(payment.ExpiresAt) {
		if _, err := s.repo.SettlePaymentStatus(ctx, payment.ID, domain.PaymentExpired); err != nil {
			return "", fmt.Errorf("expire payment: %w", err)
		}
		return s.currentStatus(ctx, payment.ID, domain.PaymentExpired)
	}

	// Demo payments never reach the real gateway; they settle probabilistically
	// so the checkout flow can be exercised without gateway credentials.
	if payment.PaymentMethod != nil && *payment.PaymentMethod == demoPaymentMethod {
		if s.randFunc() < 0.7 {
			if err := s.activate(ctx, payment); err != nil {
				return "", err
			}
			return s.currentStatus(ctx, payment.ID, domain.PaymentPaid)
		}
		return domain.PaymentPending, nil
	}

	status, err := s.gateway.GetTransactionStatus(ctx, payment.ID)
	if err != nil {
		return "", fmt.Errorf("query gateway status: %w", err)
	}
	s.recordPaymentMethod(ctx, payment, status.PaymentType)

	switch ResolveNotification(status.TransactionStatus, status.FraudStatus) {
	case OutcomeActivate:
		if err := s.activate(ctx, payment); err != nil {
			return "", err
		}
		return s.currentStatus(ctx, payment.ID, domain.PaymentPaid)
	case OutcomeFail:
		if err := s.failPayment(ctx, payment, status.TransactionStatus); err != nil {
			return "", err
		}
		return s.currentStatus(ctx, payment.ID, domain.PaymentFailed)
	default:
		return domain.PaymentPending, nil
	}
}

// recordPaymentMethod persists the payment channel the gateway reported,
// once. Best effort: the method is informational and must never block a
// status transition.
func (s *Service) recordPaymentMethod(ctx context.Context, payment *domain.PaymentRecord, paymentType string) {
	method := strings.TrimSpace(paymentType)
	if method == "" || payment.PaymentMethod != nil {
		return
	}
	if err := s.repo.RecordPaymentMethod(ctx, payment.ID, method); err != nil {
		log.Printf("level=warn component=billing msg=\"payment method update failed\" order_id=%s err=%v", payment.ID, err)
		return
	}
	payment.PaymentMethod = &method
}

// currentStatus re-reads the record after a compare-and-set so a caller that
// lost a race still reports the state the winner left behind.
func (s *Service) currentStatus(ctx context.Context, paymentID, fallback string) (string, error) {
	payment, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return fallback, nil
	}
	return payment.Status, nil
}

// activate runs the shared activation procedure: mark the payment paid, derive
// the plan from the stored description, and upgrade the profile. Only the
// caller that wins the pending->paid transition touches the profile.
func (s *Service) activate(ctx context.Context, payment *domain.PaymentRecord) error {
	if payment.Status != domain.PaymentPending {
		return nil
	}

	paidAt := s.now()
	won, err := s.repo.MarkPaymentPaid(ctx, payment.ID, paidAt)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	if !won {
		// A concurrent webhook/poller already transitioned the record; the
		// winner owns the profile update.
		return nil
	}

	days := DurationDaysFromDescription(payment.Description)
	planKey := PlanKeyFromDescription(payment.Description)
	subscriptionEnd := paidAt.AddDate(0, 0, days)

	if err := s.repo.ActivateMembership(ctx, payment.UserID, planKey, paidAt, subscriptionEnd); err != nil {
		// The payment is already marked paid but the profile upgrade did not
		// land. There is no compensating transaction; flag the window under
		// its own marker for manual reconciliation.
		log.Printf("level=error component=billing msg=\"activation_partial: payment marked paid but profile upgrade failed\" order_id=%s user_id=%s plan=%s err=%v", payment.ID, payment.UserID, planKey, err)
		return fmt.Errorf("upgrade profile: %w", err)
	}

	event := domain.MembershipActivatedEvent{
		UserID:          payment.UserID,
		OrderID:         payment.ID,
		Plan:            planKey,
		SubscriptionEnd: subscriptionEnd,
		Timestamp:       paidAt,
	}
	if err := s.producer.Publish(ctx, rabbitmq.BillingEventsExchange, "billing.membership.activated", event); err != nil {
		log.Printf("level=warn component=billing msg=\"activated event publish failed\" order_id=%s err=%v", payment.ID, err)
	}

	return nil
}

// failPayment transitions a pending payment to failed. Losing the
// compare-and-set means another path already settled the record.
func (s *Service) failPayment(ctx context.Context, payment *domain.PaymentRecord, reason string) error {
	if payment.Status != domain.PaymentPending {
		return nil
	}

	won, err := s.repo.SettlePaymentStatus(ctx, payment.ID, domain.PaymentFailed)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if !won {
		return nil
	}

	event := domain.PaymentFailedEvent{
		UserID:    payment.UserID,
		OrderID:   payment.ID,
		Reason:    reason,
		Timestamp: s.now(),
	}
	if err := s.producer.Publish(ctx, rabbitmq.BillingEventsExchange, "billing.payment.failed", event); err != nil {
		log.Printf("level=warn component=billing msg=\"failed event publish failed\" order_id=%s err=%v", payment.ID, err)
	}

	return nil
}

// GetMembershipStatus returns the caller's membership view. Users without a
// profile row read as free members rather than erroring.
func (s *Service) GetMembershipStatus(ctx context.Context, userID uuid.UUID) (*domain.MembershipStatus, error) {
	profile, err := s.repo.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return &domain.MembershipStatus{MembershipType: domain.MembershipFree}, nil
		}
		return nil, err
	}

	status := &domain.MembershipStatus{
		MembershipType:   profile.MembershipType,
		SubscriptionPlan: profile.SubscriptionPlan,
		SubscriptionEnd:  profile.SubscriptionEnd,
	}
	status.IsActive = profile.MembershipType == domain.MembershipPremium &&
		profile.SubscriptionEnd != nil &&
		profile.SubscriptionEnd.After(s.now())
	return status, nil
}

// ListPayments returns the caller's payment history, newest first.
func (s *Service) ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentRecord, error) {
	return s.repo.FindPaymentsByUserID(ctx, userID, limit, offset)
}
