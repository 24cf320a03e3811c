package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type PaymentStore interface {
	ExecRecordCompleted(ctx context.Context, p *Payment) error
	ListByUser(ctx context.Context, userID int64) ([]Payment, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) PaymentStore { return &Store{db: db} }

// ExecRecordCompleted inserts the completed payment and flips the loan's
// fine_paid flag in the same transaction. A replayed external transaction id
// trips the unique key and surfaces as DUPLICATE_REQUEST.
func (s *Store) ExecRecordCompleted(ctx context.Context, p *Payment) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insQ = `
INSERT INTO payments (user_id, borrow_id, amount, currency, external_transaction_id, status, created_at)
VALUES (?, ?, ?, ?, ?, 'completed', NOW(6))
`
	res, err := tx.ExecContext(ctx, insQ,
		p.UserID, p.BorrowID, p.Amount.StringFixed(2), p.Currency, p.ExternalTransactionID)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			err = apperr.ErrDuplicateRequest("payment already recorded for this transaction")
		}
		return err
	}
	p.ID, _ = res.LastInsertId()
	p.Status = StatusCompleted

	const updQ = `UPDATE borrows SET fine_paid = 1, updated_at = NOW(6) WHERE id = ?`
	if _, err = tx.ExecContext(ctx, updQ, p.BorrowID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Payment, error) {
	const q = `
SELECT id, user_id, borrow_id, amount, currency, external_transaction_id, status, created_at
FROM payments
WHERE user_id = ?
ORDER BY created_at DESC
`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var amount string
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.BorrowID, &amount, &p.Currency,
			&p.ExternalTransactionID, &status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		p.Status = PaymentStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}
