package payment

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OshadiJayananda/lms-backend/internal/borrow"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/policy"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubPolicies struct{ p policy.Policy }

func (s stubPolicies) Current(context.Context) (policy.Policy, error) { return s.p, nil }

type fakeNotifier struct {
	admin []notification.Input
}

func (f *fakeNotifier) Notify(_ context.Context, _ notification.Input)        {}
func (f *fakeNotifier) NotifyAdmins(_ context.Context, in notification.Input) { f.admin = append(f.admin, in) }

type fakeLoans struct{ d *borrow.Detail }

func (f *fakeLoans) GetBorrow(_ context.Context, _ int64) (*borrow.Detail, error) {
	if f.d == nil {
		return nil, apperr.ErrNotFound("borrow record not found")
	}
	return f.d, nil
}

type fakePaymentStore struct {
	recorded []Payment
	seen     map[string]bool
}

func (f *fakePaymentStore) ExecRecordCompleted(_ context.Context, p *Payment) error {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[p.ExternalTransactionID] {
		return apperr.ErrDuplicateRequest("payment already recorded for this transaction")
	}
	f.seen[p.ExternalTransactionID] = true
	p.ID = int64(len(f.recorded) + 1)
	p.Status = StatusCompleted
	f.recorded = append(f.recorded, *p)
	return nil
}

func (f *fakePaymentStore) ListByUser(_ context.Context, _ int64) ([]Payment, error) {
	return f.recorded, nil
}

type fakeGateway struct {
	session *CheckoutSession
	event   *WebhookEvent
	err     error

	gotParams CheckoutParams
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, params CheckoutParams) (*CheckoutSession, error) {
	f.gotParams = params
	return f.session, f.err
}

func (f *fakeGateway) VerifyWebhook(_ []byte, _ string) (*WebhookEvent, error) {
	return f.event, f.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func overdueLoan(userID int64, finePaid bool) *borrow.Detail {
	return &borrow.Detail{
		Borrow: borrow.Borrow{
			ID:       7,
			UserID:   userID,
			BookID:   9,
			Status:   borrow.StatusOverdue,
			DueDate:  sql.NullTime{Time: day(2025, 1, 1), Valid: true},
			FinePaid: finePaid,
		},
		UserName:  "Alice",
		UserEmail: "alice@example.com",
		BookName:  "The Go Programming Language",
	}
}

func newTestService(store PaymentStore, gw Gateway, loans LoanReader, finePerDay float64, now time.Time) *Service {
	p := policy.Policy{
		BorrowLimit:        5,
		BorrowDurationDays: 14,
		FinePerDay:         decimal.NewFromFloat(finePerDay),
	}
	return NewServiceWithDeps(store, gw, loans, stubPolicies{p: p}, &fakeNotifier{},
		decimal.RequireFromString("0.50"), "usd", fixedClock{t: now})
}

func Test_SettlementAmount_TenDaysAtFifty(t *testing.T) {
	svc := newTestService(&fakePaymentStore{}, &fakeGateway{}, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2025, 1, 11))

	amount, d, err := svc.SettlementAmount(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, "500.00", amount.StringFixed(2))
	assert.Equal(t, "The Go Programming Language", d.BookName)
}

func Test_SettlementAmount_WrongUserLooksMissing(t *testing.T) {
	svc := newTestService(&fakePaymentStore{}, &fakeGateway{}, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2025, 1, 11))

	_, _, err := svc.SettlementAmount(context.Background(), 999, 7)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func Test_SettlementAmount_AlreadyPaid(t *testing.T) {
	svc := newTestService(&fakePaymentStore{}, &fakeGateway{}, &fakeLoans{d: overdueLoan(42, true)}, 50, day(2025, 1, 11))

	_, _, err := svc.SettlementAmount(context.Background(), 42, 7)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidState))
}

func Test_SettlementAmount_NothingDueBeforeDueDate(t *testing.T) {
	svc := newTestService(&fakePaymentStore{}, &fakeGateway{}, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2024, 12, 20))

	_, _, err := svc.SettlementAmount(context.Background(), 42, 7)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidState))
}

func Test_SettlementAmount_BelowMinimum(t *testing.T) {
	// 3 days x 0.10 = 0.30, under the 0.50 floor.
	svc := newTestService(&fakePaymentStore{}, &fakeGateway{}, &fakeLoans{d: overdueLoan(42, false)}, 0.10, day(2025, 1, 4))

	_, _, err := svc.SettlementAmount(context.Background(), 42, 7)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeBelowMinimum))
}

func Test_CreateCheckout_PassesAmountAndMetadata(t *testing.T) {
	gw := &fakeGateway{session: &CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}}
	svc := newTestService(&fakePaymentStore{}, gw, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2025, 1, 11))

	session, err := svc.CreateCheckout(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "500.00", gw.gotParams.Amount.StringFixed(2))
	assert.Equal(t, int64(7), gw.gotParams.BorrowID)
	assert.Equal(t, int64(42), gw.gotParams.UserID)
}

func Test_RecordPayment_IdempotentOnReplay(t *testing.T) {
	store := &fakePaymentStore{}
	svc := newTestService(store, &fakeGateway{}, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2025, 1, 11))

	amount := decimal.RequireFromString("500.00")
	require.NoError(t, svc.RecordPayment(context.Background(), 42, 7, amount, "txn_abc"))
	require.NoError(t, svc.RecordPayment(context.Background(), 42, 7, amount, "txn_abc"))

	assert.Len(t, store.recorded, 1)
	assert.Equal(t, "txn_abc", store.recorded[0].ExternalTransactionID)
	assert.Equal(t, StatusCompleted, store.recorded[0].Status)
}

func Test_RecordPayment_RequiresExternalID(t *testing.T) {
	svc := newTestService(&fakePaymentStore{}, &fakeGateway{}, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2025, 1, 11))

	err := svc.RecordPayment(context.Background(), 42, 7, decimal.NewFromInt(10), "")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func Test_HandleWebhook_IgnoresNonCompleted(t *testing.T) {
	store := &fakePaymentStore{}
	gw := &fakeGateway{event: &WebhookEvent{
		TransactionID: "txn_x",
		UserID:        42,
		BorrowID:      7,
		Amount:        decimal.NewFromInt(500),
		Status:        "failed",
	}}
	svc := newTestService(store, gw, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2025, 1, 11))

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	assert.Empty(t, store.recorded)
}

func Test_HandleWebhook_RecordsCompleted(t *testing.T) {
	store := &fakePaymentStore{}
	gw := &fakeGateway{event: &WebhookEvent{
		TransactionID: "txn_y",
		UserID:        42,
		BorrowID:      7,
		Amount:        decimal.RequireFromString("500.00"),
		Status:        "completed",
	}}
	svc := newTestService(store, gw, &fakeLoans{d: overdueLoan(42, false)}, 50, day(2025, 1, 11))

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	require.Len(t, store.recorded, 1)
	assert.Equal(t, "txn_y", store.recorded[0].ExternalTransactionID)
}
