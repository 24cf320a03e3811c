package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OshadiJayananda/lms-backend/internal/catalog"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type ReservationStore interface {
	GetByID(ctx context.Context, id int64) (*Detail, error)
	ExecCreate(ctx context.Context, userID, bookID int64, reservationDate, expiryDate time.Time) (*Detail, error)
	ExecApprove(ctx context.Context, id int64) (*Detail, error)
	ExecReject(ctx context.Context, id int64) (*Detail, bool, error)
	ExecIssue(ctx context.Context, id int64, issuedDate, dueDate time.Time) (*Detail, int64, error)
	ExecDecline(ctx context.Context, id int64) (*Detail, bool, error)
	ExecDestroy(ctx context.Context, id int64) error
	CountPendingByBook(ctx context.Context, bookID int64) (int, error)
	ListAll(ctx context.Context, limit, offset int) ([]Detail, error)
	ListByUser(ctx context.Context, userID int64) ([]Detail, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) ReservationStore { return &Store{db: db} }

const detailCols = `
r.id, r.user_id, r.book_id, r.reservation_date, r.expiry_date, r.status,
r.created_at, r.updated_at, u.name, u.email, bk.name
`

const detailFrom = `
FROM book_reservations r
JOIN users u ON u.id = r.user_id
JOIN books bk ON bk.id = r.book_id
`

func (s *Store) GetByID(ctx context.Context, id int64) (*Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE r.id = ? LIMIT 1`
	d, err := scanDetail(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("reservation not found")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ExecCreate inserts a pending reservation after verifying the member has no
// other active claim on the book. The duplicate check runs in the same
// transaction as the insert.
func (s *Store) ExecCreate(ctx context.Context, userID, bookID int64, reservationDate, expiryDate time.Time) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Serialize concurrent reservations on the same book.
	if _, _, err = catalog.LockBook(ctx, tx, bookID); err != nil {
		return nil, err
	}

	var active int
	const dupQ = `
SELECT COUNT(*) FROM book_reservations
WHERE user_id = ? AND book_id = ? AND status IN ('pending','approved')
`
	if err = tx.QueryRowContext(ctx, dupQ, userID, bookID).Scan(&active); err != nil {
		return nil, err
	}
	if active > 0 {
		err = apperr.ErrDuplicateRequest("you already have an active reservation for this book")
		return nil, err
	}

	const insQ = `
INSERT INTO book_reservations (user_id, book_id, reservation_date, expiry_date, status, created_at, updated_at)
VALUES (?, ?, ?, ?, 'pending', NOW(6), NOW(6))
`
	res, err := tx.ExecContext(ctx, insQ, userID, bookID, reservationDate, expiryDate)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()

	d, err := getDetailTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}

// ExecApprove moves pending -> approved, verifying under lock that a copy
// still exists to promise.
func (s *Store) ExecApprove(ctx context.Context, id int64) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current ReservationStatus
	var bookID int64
	if current, bookID, err = lockReservation(ctx, tx, id); err != nil {
		return nil, err
	}
	if current != StatusPending {
		err = apperr.ErrInvalidState(fmt.Sprintf("cannot approve a %s reservation", current))
		return nil, err
	}

	_, copies, err := catalog.LockBook(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if copies <= 0 {
		err = apperr.ErrNoCopies("cannot approve reservation - no copies available")
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE book_reservations SET status = 'approved', updated_at = NOW(6) WHERE id = ?`, id); err != nil {
		return nil, err
	}

	d, err := getDetailTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}

// ExecReject marks the reservation rejected and reports whether other
// pending reservations remain on the book.
func (s *Store) ExecReject(ctx context.Context, id int64) (*Detail, bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var bookID int64
	if _, bookID, err = lockReservation(ctx, tx, id); err != nil {
		return nil, false, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE book_reservations SET status = 'rejected', updated_at = NOW(6) WHERE id = ?`, id); err != nil {
		return nil, false, err
	}

	morePending, err := hasPendingTx(ctx, tx, bookID, id)
	if err != nil {
		return nil, false, err
	}

	d, err := getDetailTx(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}
	return d, morePending, nil
}

// ExecIssue converts an approved reservation straight into an Issued loan:
// take a copy, insert the borrow, drop the reservation. One transaction.
func (s *Store) ExecIssue(ctx context.Context, id int64, issuedDate, dueDate time.Time) (*Detail, int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current ReservationStatus
	var bookID int64
	if current, bookID, err = lockReservation(ctx, tx, id); err != nil {
		return nil, 0, err
	}
	if current != StatusApproved {
		err = apperr.ErrInvalidState("reservation must be approved first")
		return nil, 0, err
	}

	d, err := getDetailTx(ctx, tx, id)
	if err != nil {
		return nil, 0, err
	}

	_, copies, err := catalog.LockBook(ctx, tx, bookID)
	if err != nil {
		return nil, 0, err
	}
	if copies <= 0 {
		err = apperr.ErrNoCopies("no copies available")
		return nil, 0, err
	}
	if err = catalog.AdjustCopies(ctx, tx, bookID, -1); err != nil {
		return nil, 0, err
	}

	const insQ = `
INSERT INTO borrows (user_id, book_id, status, issued_date, due_date, fine_paid, created_at, updated_at)
VALUES (?, ?, 'Issued', ?, ?, 0, NOW(6), NOW(6))
`
	res, err := tx.ExecContext(ctx, insQ, d.UserID, bookID, issuedDate, dueDate)
	if err != nil {
		return nil, 0, err
	}
	borrowID, _ := res.LastInsertId()

	if err = deleteReservationTx(ctx, tx, id); err != nil {
		return nil, 0, err
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, err
	}
	return d, borrowID, nil
}

// ExecDecline removes the reservation after the member turned it down and
// reports whether other pending reservations remain on the book.
func (s *Store) ExecDecline(ctx context.Context, id int64) (*Detail, bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var bookID int64
	if _, bookID, err = lockReservation(ctx, tx, id); err != nil {
		return nil, false, err
	}

	d, err := getDetailTx(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}

	if err = deleteReservationTx(ctx, tx, id); err != nil {
		return nil, false, err
	}

	morePending, err := hasPendingTx(ctx, tx, bookID, id)
	if err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}
	return d, morePending, nil
}

// ExecDestroy deletes a rejected reservation and its dependent
// notifications.
func (s *Store) ExecDestroy(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current ReservationStatus
	if current, _, err = lockReservation(ctx, tx, id); err != nil {
		return err
	}
	if current != StatusRejected {
		err = apperr.ErrInvalidState("only rejected reservations can be deleted")
		return err
	}

	if err = deleteReservationTx(ctx, tx, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) CountPendingByBook(ctx context.Context, bookID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM book_reservations WHERE book_id = ? AND status = 'pending'`
	var n int
	err := s.db.QueryRowContext(ctx, q, bookID).Scan(&n)
	return n, err
}

func (s *Store) ListAll(ctx context.Context, limit, offset int) ([]Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` ORDER BY r.created_at DESC LIMIT ? OFFSET ?`
	return s.queryDetails(ctx, q, limit, offset)
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE r.user_id = ? ORDER BY r.created_at DESC`
	return s.queryDetails(ctx, q, userID)
}

// ---- helpers ----

func lockReservation(ctx context.Context, tx *sql.Tx, id int64) (ReservationStatus, int64, error) {
	const q = `SELECT status, book_id FROM book_reservations WHERE id = ? FOR UPDATE`
	var status string
	var bookID int64
	err := tx.QueryRowContext(ctx, q, id).Scan(&status, &bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, apperr.ErrNotFound("reservation not found")
	}
	if err != nil {
		return "", 0, err
	}
	return ReservationStatus(status), bookID, nil
}

func deleteReservationTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE reservation_id = ?`, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM book_reservations WHERE id = ?`, id)
	return err
}

func hasPendingTx(ctx context.Context, tx *sql.Tx, bookID, excludeID int64) (bool, error) {
	const q = `SELECT COUNT(*) FROM book_reservations WHERE book_id = ? AND status = 'pending' AND id <> ?`
	var n int
	if err := tx.QueryRowContext(ctx, q, bookID, excludeID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func getDetailTx(ctx context.Context, tx *sql.Tx, id int64) (*Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE r.id = ? LIMIT 1`
	return scanDetail(tx.QueryRowContext(ctx, q, id))
}

func (s *Store) queryDetails(ctx context.Context, q string, args ...any) ([]Detail, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetail(row rowScanner) (*Detail, error) {
	var d Detail
	var status string
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.BookID,
		&d.ReservationDate,
		&d.ExpiryDate,
		&status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.UserName,
		&d.UserEmail,
		&d.BookName,
	)
	if err != nil {
		return nil, err
	}
	d.Status = ReservationStatus(status)
	return &d, nil
}
