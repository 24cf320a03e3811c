package payment

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/OshadiJayananda/lms-backend/internal/borrow"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
	"github.com/OshadiJayananda/lms-backend/internal/policy"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// LoanReader is the slice of the borrow service the settlement flow needs.
type LoanReader interface {
	GetBorrow(ctx context.Context, id int64) (*borrow.Detail, error)
}

// Gateways refuse charges under this amount, so fines below it wait until
// they grow.
var defaultMinimumCharge = decimal.RequireFromString("0.50")

type Service struct {
	store    PaymentStore
	gateway  Gateway
	loans    LoanReader
	policies policy.Provider
	notifier notification.Notifier
	minimum  decimal.Decimal
	currency string
	clock    Clock
}

func NewService(dbc *sql.DB, cfg db.GatewayConfig, gateway Gateway, loans LoanReader, policies policy.Provider, notifier notification.Notifier) *Service {
	minimum := defaultMinimumCharge
	if cfg.MinimumAmount != "" {
		if m, err := decimal.NewFromString(cfg.MinimumAmount); err == nil && m.IsPositive() {
			minimum = m
		}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		store:    NewStore(dbc),
		gateway:  gateway,
		loans:    loans,
		policies: policies,
		notifier: notifier,
		minimum:  minimum,
		currency: currency,
		clock:    realClock{},
	}
}

func NewServiceWithDeps(store PaymentStore, gateway Gateway, loans LoanReader, policies policy.Provider, notifier notification.Notifier, minimum decimal.Decimal, currency string, clock Clock) *Service {
	return &Service{
		store:    store,
		gateway:  gateway,
		loans:    loans,
		policies: policies,
		notifier: notifier,
		minimum:  minimum,
		currency: currency,
		clock:    clock,
	}
}

// SettlementAmount computes what the member owes on a loan right now.
// Returns BELOW_MINIMUM when the fine exists but is too small to charge.
func (s *Service) SettlementAmount(ctx context.Context, userID, borrowID int64) (decimal.Decimal, *borrow.Detail, error) {
	d, err := s.loans.GetBorrow(ctx, borrowID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if d.UserID != userID {
		return decimal.Zero, nil, apperr.ErrNotFound("borrow record not found")
	}
	if d.FinePaid {
		return decimal.Zero, nil, apperr.ErrInvalidState("fine for this loan is already settled")
	}

	p, err := s.policies.Current(ctx)
	if err != nil {
		return decimal.Zero, nil, err
	}

	fine := borrow.CalculateFine(d.Borrow, p, s.clock.Now())
	if !fine.IsPositive() {
		return decimal.Zero, nil, apperr.ErrInvalidState("no fine is due on this loan")
	}
	if fine.LessThan(s.minimum) {
		return decimal.Zero, nil, apperr.ErrBelowMinimum(
			fmt.Sprintf("fine %s is below the minimum chargeable amount %s", fine.StringFixed(2), s.minimum.StringFixed(2)))
	}
	return fine, d, nil
}

// CreateCheckout opens a hosted payment page for the loan's outstanding fine.
func (s *Service) CreateCheckout(ctx context.Context, userID, borrowID int64) (*CheckoutSession, error) {
	amount, d, err := s.SettlementAmount(ctx, userID, borrowID)
	if err != nil {
		return nil, err
	}

	return s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		UserID:      userID,
		BorrowID:    borrowID,
		Amount:      amount,
		Currency:    s.currency,
		Description: fmt.Sprintf("Overdue fine for '%s'", d.BookName),
	})
}

// HandleWebhook applies a verified settlement callback. Replayed deliveries
// are acknowledged without side effects.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.gateway.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		return err
	}
	if event.Status != string(StatusCompleted) {
		log.Printf("[INFO] ignoring webhook for transaction %s with status %s", event.TransactionID, event.Status)
		return nil
	}
	return s.RecordPayment(ctx, event.UserID, event.BorrowID, event.Amount, event.TransactionID)
}

// RecordPayment stores a completed settlement and marks the fine paid.
// Calling it twice with the same external transaction id is a no-op.
func (s *Service) RecordPayment(ctx context.Context, userID, borrowID int64, amount decimal.Decimal, externalID string) error {
	if externalID == "" {
		return apperr.ErrInvalid("external transaction id is required")
	}
	if !amount.IsPositive() {
		return apperr.ErrInvalid("payment amount must be positive")
	}

	p := &Payment{
		UserID:                userID,
		BorrowID:              borrowID,
		Amount:                amount,
		Currency:              s.currency,
		ExternalTransactionID: externalID,
	}
	err := s.store.ExecRecordCompleted(ctx, p)
	if apperr.HasCode(err, apperr.CodeDuplicateRequest) {
		log.Printf("[INFO] payment %s already recorded, skipping", externalID)
		return nil
	}
	if err != nil {
		return err
	}

	s.notifier.NotifyAdmins(ctx, notification.Input{
		Title:   "Fine Payment Received",
		Message: fmt.Sprintf("Payment of %s %s received for borrow #%d (transaction %s).", amount.StringFixed(2), s.currency, borrowID, externalID),
		Type:    notification.TypeAdminAlert,
	})

	return nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Payment, error) {
	return s.store.ListByUser(ctx, userID)
}
