package policy

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
)

type PolicyStore interface {
	Get(ctx context.Context) (*Policy, error)
	Insert(ctx context.Context, p *Policy) error
	Update(ctx context.Context, p *Policy) error
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) PolicyStore { return &Store{db: db} }

func (s *Store) Get(ctx context.Context) (*Policy, error) {
	const q = `
SELECT id, borrow_limit, borrow_duration_days, fine_per_day, updated_at
FROM borrowing_policies
ORDER BY id
LIMIT 1
`
	var p Policy
	var fine string
	err := s.db.QueryRowContext(ctx, q).Scan(
		&p.ID,
		&p.BorrowLimit,
		&p.BorrowDurationDays,
		&fine,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.FinePerDay, err = decimal.NewFromString(fine)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Insert(ctx context.Context, p *Policy) error {
	const q = `
INSERT INTO borrowing_policies (borrow_limit, borrow_duration_days, fine_per_day, created_at, updated_at)
VALUES (?, ?, ?, NOW(6), NOW(6))
`
	res, err := s.db.ExecContext(ctx, q, p.BorrowLimit, p.BorrowDurationDays, p.FinePerDay.StringFixed(2))
	if err != nil {
		return err
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) Update(ctx context.Context, p *Policy) error {
	const q = `
UPDATE borrowing_policies
SET borrow_limit = ?, borrow_duration_days = ?, fine_per_day = ?, updated_at = NOW(6)
WHERE id = ?
`
	_, err := s.db.ExecContext(ctx, q, p.BorrowLimit, p.BorrowDurationDays, p.FinePerDay.StringFixed(2), p.ID)
	return err
}
