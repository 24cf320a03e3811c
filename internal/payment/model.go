package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// Payment is a settled fine. ExternalTransactionID carries the gateway's
// transaction reference and is unique, which is what makes webhook retries
// idempotent.
type Payment struct {
	ID                    int64
	UserID                int64
	BorrowID              int64
	Amount                decimal.Decimal
	Currency              string
	ExternalTransactionID string
	Status                PaymentStatus
	CreatedAt             time.Time
}
