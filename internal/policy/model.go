package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is the single borrowing-policy record. Every duration and fine
// calculation reads the current row; there is exactly one.
type Policy struct {
	ID                 int64
	BorrowLimit        int
	BorrowDurationDays int
	FinePerDay         decimal.Decimal
	UpdatedAt          time.Time
}

// Defaults applied when no policy row exists yet, and on reset.
var defaultPolicy = Policy{
	BorrowLimit:        5,
	BorrowDurationDays: 14,
	FinePerDay:         decimal.NewFromFloat(50.00),
}
