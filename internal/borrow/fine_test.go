package borrow

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/OshadiJayananda/lms-backend/internal/policy"
)

func nt(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testPolicy(finePerDay float64) policy.Policy {
	return policy.Policy{
		BorrowLimit:        5,
		BorrowDurationDays: 14,
		FinePerDay:         decimal.NewFromFloat(finePerDay),
	}
}

func Test_CalculateFine_TenDaysLate(t *testing.T) {
	b := Borrow{
		Status:  StatusIssued,
		DueDate: nt(day(2025, 1, 1)),
	}
	now := day(2025, 1, 11)

	got := CalculateFine(b, testPolicy(50), now)
	assert.Equal(t, "500.00", got.StringFixed(2))
	assert.Equal(t, 10, DaysOverdue(b, now))
}

func Test_IsOverdue(t *testing.T) {
	due := day(2025, 1, 1)

	tests := []struct {
		name string
		b    Borrow
		now  time.Time
		want bool
	}{
		{
			name: "issued_past_due",
			b:    Borrow{Status: StatusIssued, DueDate: nt(due)},
			now:  day(2025, 1, 2),
			want: true,
		},
		{
			name: "issued_before_due",
			b:    Borrow{Status: StatusIssued, DueDate: nt(due)},
			now:  day(2024, 12, 31),
			want: false,
		},
		{
			name: "renewed_past_due",
			b:    Borrow{Status: StatusRenewed, DueDate: nt(due)},
			now:  day(2025, 1, 5),
			want: true,
		},
		{
			name: "pending_never_overdue",
			b:    Borrow{Status: StatusPending, DueDate: nt(due)},
			now:  day(2025, 2, 1),
			want: false,
		},
		{
			name: "rejected_never_overdue",
			b:    Borrow{Status: StatusRejected, DueDate: nt(due)},
			now:  day(2025, 2, 1),
			want: false,
		},
		{
			name: "paid_fine_not_overdue",
			b:    Borrow{Status: StatusOverdue, DueDate: nt(due), FinePaid: true},
			now:  day(2025, 2, 1),
			want: false,
		},
		{
			name: "no_due_date",
			b:    Borrow{Status: StatusIssued},
			now:  day(2025, 2, 1),
			want: false,
		},
		{
			name: "returned_late_still_owes",
			b:    Borrow{Status: StatusReturned, DueDate: nt(due), ReturnedDate: nt(day(2025, 1, 6))},
			now:  day(2025, 3, 1),
			want: true,
		},
		{
			name: "returned_on_time",
			b:    Borrow{Status: StatusReturned, DueDate: nt(due), ReturnedDate: nt(day(2024, 12, 30))},
			now:  day(2025, 3, 1),
			want: false,
		},
		{
			name: "confirmed_late_return_still_owes",
			b:    Borrow{Status: StatusConfirmed, DueDate: nt(due), ReturnedDate: nt(day(2025, 1, 3))},
			now:  day(2025, 3, 1),
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsOverdue(tc.b, tc.now))
		})
	}
}

func Test_DaysOverdue_FreezesAtReturnDate(t *testing.T) {
	b := Borrow{
		Status:       StatusReturned,
		DueDate:      nt(day(2025, 1, 1)),
		ReturnedDate: nt(day(2025, 1, 4)),
	}

	// Months later the fine is still based on the 3-day gap.
	assert.Equal(t, 3, DaysOverdue(b, day(2025, 6, 1)))
	assert.Equal(t, "150.00", CalculateFine(b, testPolicy(50), day(2025, 6, 1)).StringFixed(2))
}

func Test_DaysOverdue_NeverNegative(t *testing.T) {
	b := Borrow{
		Status:       StatusReturned,
		DueDate:      nt(day(2025, 1, 10)),
		ReturnedDate: nt(day(2025, 1, 2)),
	}
	assert.Equal(t, 0, DaysOverdue(b, day(2025, 1, 20)))
}

func Test_DaysOverdue_IgnoresTimeOfDay(t *testing.T) {
	b := Borrow{
		Status:  StatusIssued,
		DueDate: nt(time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC)),
	}
	now := time.Date(2025, 1, 2, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysOverdue(b, now))
}

func Test_CalculateFine_ZeroWhenNotOverdue(t *testing.T) {
	b := Borrow{Status: StatusIssued, DueDate: nt(day(2025, 1, 1))}
	got := CalculateFine(b, testPolicy(50), day(2024, 12, 20))
	assert.True(t, got.IsZero())
}
