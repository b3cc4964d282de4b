package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tradelearn/billing-service/internal/app"
	"github.com/tradelearn/billing-service/internal/domain"
	"github.com/tradelearn/billing-service/internal/store"
	"github.com/tradelearn/billing-service/pkg/midtransclient"
)

// fakeRepo is an in-memory store.Repository for handler tests.
type fakeRepo struct {
	payments map[string]*domain.PaymentRecord
	profiles map[uuid.UUID]*domain.Profile

	downgraded []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments: make(map[string]*domain.PaymentRecord),
		profiles: make(map[uuid.UUID]*domain.Profile),
	}
}

func (f *fakeRepo) CreatePayment(_ context.Context, p *domain.PaymentRecord) error {
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeRepo) FindPaymentByID(_ context.Context, id string) (*domain.PaymentRecord, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, store.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) FindPaymentsByUserID(_ context.Context, userID uuid.UUID, _, _ int) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, p := range f.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkPaymentPaid(_ context.Context, id string, paidAt time.Time) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = domain.PaymentPaid
	p.PaidAt = &paidAt
	return true, nil
}

func (f *fakeRepo) RecordPaymentMethod(_ context.Context, id, method string) error {
	p, ok := f.payments[id]
	if !ok || p.PaymentMethod != nil {
		return nil
	}
	m := method
	p.PaymentMethod = &m
	return nil
}

func (f *fakeRepo) SettlePaymentStatus(_ context.Context, id, status string) (bool, error) {
	p, ok := f.payments[id]
	if !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (f *fakeRepo) FindProfileByUserID(_ context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) ActivateMembership(_ context.Context, userID uuid.UUID, plan string, start, end time.Time) error {
	f.profiles[userID] = &domain.Profile{
		UserID:            userID,
		MembershipType:    domain.MembershipPremium,
		SubscriptionPlan:  &plan,
		SubscriptionStart: &start,
		SubscriptionEnd:   &end,
	}
	return nil
}

func (f *fakeRepo) DowngradeProfile(_ context.Context, userID uuid.UUID) error {
	f.downgraded = append(f.downgraded, userID)
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrProfileNotFound
	}
	p.MembershipType = domain.MembershipFree
	p.SubscriptionPlan = nil
	p.SubscriptionStart = nil
	p.SubscriptionEnd = nil
	return nil
}

func (f *fakeRepo) FindLapsedPremiumProfiles(_ context.Context, now time.Time) ([]domain.Profile, error) {
	var out []domain.Profile
	for _, p := range f.profiles {
		if p.IsLapsedPremium(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeGateway satisfies app.Gateway with canned responses.
type fakeGateway struct {
	statusResp *midtransclient.TransactionStatusResponse
}

func (g *fakeGateway) CreateSnapTransaction(_ context.Context, _ midtransclient.SnapTransactionRequest) (*midtransclient.SnapTransactionResponse, error) {
	return &midtransclient.SnapTransactionResponse{Token: "snap-token"}, nil
}

func (g *fakeGateway) GetTransactionStatus(_ context.Context, _ string) (*midtransclient.TransactionStatusResponse, error) {
	if g.statusResp != nil {
		return g.statusResp, nil
	}
	return &midtransclient.TransactionStatusResponse{TransactionStatus: "pending"}, nil
}

// fakeVerifier accepts exactly one signature value.
type fakeVerifier struct {
	accepted string
}

func (v *fakeVerifier) VerifySignature(_, _, _, signature string) bool {
	return signature == v.accepted
}

func newTestHandler(repo *fakeRepo, verifier SignatureVerifier) *Handler {
	service := app.NewService(repo, &fakeGateway{}, nil, 15*time.Minute, "")
	return NewHandler(service, verifier)
}

func seedPendingPayment(repo *fakeRepo, userID uuid.UUID) *domain.PaymentRecord {
	payment := &domain.PaymentRecord{
		ID:          "ORDER-1700000000000-abcd1234",
		UserID:      userID,
		Amount:      50000,
		Description: "1 Month Premium Subscription",
		Status:      domain.PaymentPending,
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}
	repo.payments[payment.ID] = payment
	return payment
}

func postNotification(t *testing.T, h *Handler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal notification: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/billing/notification", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	h.handleNotification(rr, req)
	return rr
}

func TestHandleNotification_RejectsInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	payment := seedPendingPayment(repo, userID)
	h := newTestHandler(repo, &fakeVerifier{accepted: "good-signature"})

	rr := postNotification(t, h, map[string]string{
		"order_id":           payment.ID,
		"transaction_status": "settlement",
		"fraud_status":       "accept",
		"status_code":        "200",
		"gross_amount":       "50000.00",
		"signature_key":      "forged-signature",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a forged signature, got %d", rr.Code)
	}
	if got := repo.payments[payment.ID].Status; got != domain.PaymentPending {
		t.Fatalf("forged notification must not change the record, got %q", got)
	}
	if _, ok := repo.profiles[userID]; ok {
		t.Fatal("forged notification must not touch the profile")
	}
}

func TestHandleNotification_ValidSignatureSettles(t *testing.T) {
	repo := newFakeRepo()
	userID := uuid.New()
	payment := seedPendingPayment(repo, userID)
	h := newTestHandler(repo, &fakeVerifier{accepted: "good-signature"})

	rr := postNotification(t, h, map[string]string{
		"order_id":           payment.ID,
		"transaction_status": "settlement",
		"fraud_status":       "accept",
		"status_code":        "200",
		"gross_amount":       "50000.00",
		"signature_key":      "good-signature",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok acknowledgment, got %v", body)
	}
	if got := repo.payments[payment.ID].Status; got != domain.PaymentPaid {
		t.Fatalf("expected paid record, got %q", got)
	}
	if profile := repo.profiles[userID]; profile == nil || profile.MembershipType != domain.MembershipPremium {
		t.Fatal("expected premium profile after settlement")
	}
}

func TestHandleNotification_UnsignedProceeds(t *testing.T) {
	repo := newFakeRepo()
	payment := seedPendingPayment(repo, uuid.New())
	h := newTestHandler(repo, &fakeVerifier{accepted: "good-signature"})

	rr := postNotification(t, h, map[string]string{
		"order_id":           payment.ID,
		"transaction_status": "settlement",
		"fraud_status":       "accept",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unsigned notification, got %d", rr.Code)
	}
	if got := repo.payments[payment.ID].Status; got != domain.PaymentPaid {
		t.Fatalf("expected paid record, got %q", got)
	}
}

func TestHandleNotification_UnknownOrder(t *testing.T) {
	h := newTestHandler(newFakeRepo(), &fakeVerifier{accepted: "good-signature"})

	rr := postNotification(t, h, map[string]string{
		"order_id":           "ORDER-missing",
		"transaction_status": "settlement",
		"signature_key":      "good-signature",
	})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", rr.Code)
	}
}

func TestHandleNotification_DenyAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	payment := seedPendingPayment(repo, uuid.New())
	h := newTestHandler(repo, &fakeVerifier{accepted: "good-signature"})

	rr := postNotification(t, h, map[string]string{
		"order_id":           payment.ID,
		"transaction_status": "deny",
		"signature_key":      "good-signature",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 acknowledgment for deny, got %d", rr.Code)
	}
	if got := repo.payments[payment.ID].Status; got != domain.PaymentFailed {
		t.Fatalf("expected failed record, got %q", got)
	}
}

func TestHandlePaymentStatus(t *testing.T) {
	repo := newFakeRepo()
	payment := seedPendingPayment(repo, uuid.New())
	payment.Status = domain.PaymentPaid
	h := newTestHandler(repo, &fakeVerifier{})

	rr := getWithURLParam(t, h.handlePaymentStatus, "paymentID", payment.ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body domain.PaymentStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !body.Success || body.Status != domain.PaymentPaid {
		t.Fatalf("expected success with paid status, got %+v", body)
	}
}

func TestHandlePaymentStatus_NotFound(t *testing.T) {
	h := newTestHandler(newFakeRepo(), &fakeVerifier{})

	rr := getWithURLParam(t, h.handlePaymentStatus, "paymentID", "ORDER-missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if success, _ := body["success"].(bool); success {
		t.Fatal("expected success=false for an unknown payment")
	}
}

func TestHandleMembershipStatus_NoProfileReadsFree(t *testing.T) {
	h := newTestHandler(newFakeRepo(), &fakeVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/billing/membership", nil)
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, uuid.New()))
	rr := httptest.NewRecorder()
	h.handleMembershipStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body domain.MembershipStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.MembershipType != domain.MembershipFree {
		t.Fatalf("expected free membership, got %q", body.MembershipType)
	}
}

func TestHandleListPayments_EmptyHistory(t *testing.T) {
	h := newTestHandler(newFakeRepo(), &fakeVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/billing/payments", nil)
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, uuid.New()))
	rr := httptest.NewRecorder()
	h.handleListPayments(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Payments []domain.PaymentRecord `json:"payments"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Payments == nil {
		t.Fatal("expected an empty array, not null")
	}
}

func TestHandleCreateCheckout_BadPlan(t *testing.T) {
	h := newTestHandler(newFakeRepo(), &fakeVerifier{})

	payload, _ := json.Marshal(domain.CheckoutRequest{Amount: 50000, Plan: "lifetime"})
	req := httptest.NewRequest(http.MethodPost, "/billing/checkout", bytes.NewReader(payload))
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, uuid.New()))
	rr := httptest.NewRecorder()
	h.handleCreateCheckout(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown plan, got %d", rr.Code)
	}
}

func TestHandleCreateCheckout_Success(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, &fakeVerifier{})

	payload, _ := json.Marshal(domain.CheckoutRequest{
		Amount: 120000,
		Plan:   domain.Plan3Months,
		Name:   "Ayu",
		Email:  "ayu@example.com",
	})
	req := httptest.NewRequest(http.MethodPost, "/billing/checkout", bytes.NewReader(payload))
	req = req.WithContext(context.WithValue(req.Context(), userIDKey, uuid.New()))
	rr := httptest.NewRecorder()
	h.handleCreateCheckout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body domain.CheckoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.Token != "snap-token" {
		t.Fatalf("expected snap token, got %q", body.Token)
	}
	if _, err := repo.FindPaymentByID(context.Background(), body.OrderID); err != nil {
		t.Fatalf("expected stored pending payment: %v", err)
	}
}

// getWithURLParam invokes a handler with a chi route parameter injected.
func getWithURLParam(t *testing.T, handler http.HandlerFunc, key, value string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}
