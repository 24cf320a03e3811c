package borrow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Property checks over the fine engine: whatever the loan looks like, the
// fine is never negative, is exactly days x rate, and never shrinks as time
// passes on an unreturned loan.
func Test_Fine_Properties(t *testing.T) {
	statuses := []Status{
		StatusPending, StatusApproved, StatusRejected, StatusIssued,
		StatusOverdue, StatusReturned, StatusConfirmed, StatusRenewed,
	}
	base := day(2025, 1, 1)

	rapid.Check(t, func(t *rapid.T) {
		b := Borrow{
			Status:   rapid.SampledFrom(statuses).Draw(t, "status"),
			FinePaid: rapid.Bool().Draw(t, "finePaid"),
		}
		if rapid.Bool().Draw(t, "hasDue") {
			b.DueDate = nt(base.AddDate(0, 0, rapid.IntRange(-60, 60).Draw(t, "dueOffset")))
		}
		if rapid.Bool().Draw(t, "hasReturned") {
			b.ReturnedDate = nt(base.AddDate(0, 0, rapid.IntRange(-60, 60).Draw(t, "retOffset")))
		}
		now := base.AddDate(0, 0, rapid.IntRange(-60, 120).Draw(t, "nowOffset"))
		p := testPolicy(float64(rapid.IntRange(1, 500).Draw(t, "rate")))

		fine := CalculateFine(b, p, now)
		if fine.IsNegative() {
			t.Fatalf("negative fine %s", fine)
		}

		if IsOverdue(b, now) {
			want := p.FinePerDay.Mul(decimal.NewFromInt(int64(DaysOverdue(b, now)))).Round(2)
			if !fine.Equal(want) {
				t.Fatalf("fine %s, want days x rate = %s", fine, want)
			}
		} else if !fine.IsZero() {
			t.Fatalf("fine %s on a loan that is not overdue", fine)
		}

		// Monotone while the book stays out.
		if !b.ReturnedDate.Valid {
			later := CalculateFine(b, p, now.Add(24*time.Hour))
			if later.LessThan(fine) {
				t.Fatalf("fine shrank from %s to %s", fine, later)
			}
		}
	})
}
