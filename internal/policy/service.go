package policy

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

// Provider is what the loan, renewal and payment services depend on. The
// policy is read per operation rather than held as a global.
type Provider interface {
	Current(ctx context.Context) (Policy, error)
}

type Service struct {
	store PolicyStore
}

func NewService(db *sql.DB) *Service { return &Service{store: NewStore(db)} }

func NewServiceWithStore(store PolicyStore) *Service { return &Service{store: store} }

// Current returns the policy row, creating it with defaults on first use.
func (s *Service) Current(ctx context.Context) (Policy, error) {
	p, err := s.store.Get(ctx)
	if err != nil {
		return Policy{}, err
	}
	if p != nil {
		return *p, nil
	}

	created := defaultPolicy
	if err := s.store.Insert(ctx, &created); err != nil {
		return Policy{}, err
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, in UpdatePolicyRequest) (Policy, error) {
	if in.BorrowLimit < 1 {
		return Policy{}, apperr.ErrInvalid("borrow_limit must be at least 1")
	}
	if in.BorrowDurationDays < 1 {
		return Policy{}, apperr.ErrInvalid("borrow_duration_days must be at least 1")
	}
	finePerDay, err := decimal.NewFromString(in.FinePerDay)
	if err != nil || finePerDay.IsNegative() {
		return Policy{}, apperr.ErrInvalid("fine_per_day must be a non-negative amount")
	}

	p, err := s.Current(ctx)
	if err != nil {
		return Policy{}, err
	}

	p.BorrowLimit = in.BorrowLimit
	p.BorrowDurationDays = in.BorrowDurationDays
	p.FinePerDay = finePerDay
	if err := s.store.Update(ctx, &p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Reset restores default values. The row itself is never deleted.
func (s *Service) Reset(ctx context.Context) (Policy, error) {
	p, err := s.Current(ctx)
	if err != nil {
		return Policy{}, err
	}

	p.BorrowLimit = defaultPolicy.BorrowLimit
	p.BorrowDurationDays = defaultPolicy.BorrowDurationDays
	p.FinePerDay = defaultPolicy.FinePerDay
	if err := s.store.Update(ctx, &p); err != nil {
		return Policy{}, err
	}
	return p, nil
}
