package borrow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/OshadiJayananda/lms-backend/internal/policy"
)

// IsOverdue reports whether the loan carries an unpaid overdue fine as of
// now. A loan is overdue when it is still out past its due date, or was
// returned after it.
func IsOverdue(b Borrow, now time.Time) bool {
	if _, ok := overdueEligible[b.Status]; !ok {
		return false
	}
	if !b.DueDate.Valid {
		return false
	}
	if b.FinePaid {
		return false
	}

	if !b.ReturnedDate.Valid {
		return now.After(b.DueDate.Time)
	}
	return b.ReturnedDate.Time.After(b.DueDate.Time)
}

// DaysOverdue counts whole calendar days between the due date and the
// settlement point: the return date once returned, today otherwise. Never
// negative.
func DaysOverdue(b Borrow, now time.Time) int {
	if !b.DueDate.Valid {
		return 0
	}

	end := now
	if b.ReturnedDate.Valid {
		end = b.ReturnedDate.Time
	}

	days := int(dateOnly(end).Sub(dateOnly(b.DueDate.Time)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// CalculateFine returns the accrued fine, rounded to 2 decimals. Zero unless
// the loan is overdue.
func CalculateFine(b Borrow, p policy.Policy, now time.Time) decimal.Decimal {
	if !IsOverdue(b, now) {
		return decimal.Zero.Round(2)
	}
	return p.FinePerDay.Mul(decimal.NewFromInt(int64(DaysOverdue(b, now)))).Round(2)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
