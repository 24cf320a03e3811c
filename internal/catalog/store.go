package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
)

type BookStore interface {
	GetByID(ctx context.Context, id int64) (*Book, error)
}

type Store struct{ db *sql.DB }

func NewStore(sqlDB *sql.DB) *Store { return &Store{db: sqlDB} }

func (s *Store) GetByID(ctx context.Context, id int64) (*Book, error) {
	const q = `
SELECT id, name, isbn, no_of_copies, category_id, created_at, updated_at
FROM books
WHERE id = ?
LIMIT 1
`
	var b Book
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.Name, &b.ISBN, &b.CopyCount, &b.CategoryID, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("book not found")
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ---- ledger primitives ----
//
// Copy-count mutations always happen inside a caller-owned transaction:
// lock the row, decide, then adjust. The borrow and reservation stores use
// these from their own transaction flows.

// LockBook locks the book row for the duration of the transaction and
// returns its id, name and current copy count.
func LockBook(ctx context.Context, tx db.DBTX, bookID int64) (name string, copies int, err error) {
	const q = `SELECT name, no_of_copies FROM books WHERE id = ? FOR UPDATE`
	if err = tx.QueryRowContext(ctx, q, bookID).Scan(&name, &copies); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, apperr.ErrNotFound("book not found")
		}
		return "", 0, err
	}
	return name, copies, nil
}

// AdjustCopies applies a copy-count delta to a locked book row. The WHERE
// clause keeps the count from ever going negative even if a caller skipped
// the availability check.
func AdjustCopies(ctx context.Context, tx db.DBTX, bookID int64, delta int) error {
	const q = `
UPDATE books
SET no_of_copies = no_of_copies + ?, updated_at = NOW(6)
WHERE id = ? AND no_of_copies + ? >= 0
`
	res, err := tx.ExecContext(ctx, q, delta, bookID, delta)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff != 1 {
		return apperr.ErrNoCopies("no copies available")
	}
	return nil
}
