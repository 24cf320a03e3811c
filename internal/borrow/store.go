package borrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OshadiJayananda/lms-backend/internal/catalog"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type BorrowStore interface {
	GetByID(ctx context.Context, id int64) (*Detail, error)
	ExecCreateRequest(ctx context.Context, userID, bookID int64, borrowLimit int, now time.Time) (*Detail, error)
	ExecTransition(ctx context.Context, id int64, from []Status, to Status, set transitionSet) (*Detail, error)
	ExecReturn(ctx context.Context, userID, bookID int64, returnedAt time.Time) (*Detail, error)
	ExecConfirmReturn(ctx context.Context, id int64) (*Detail, []PendingReservation, error)
	ExecDestroy(ctx context.Context, id int64) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID int64, search string, status Status, limit, offset int) ([]Detail, error)
	ListAll(ctx context.Context, search string) ([]Detail, error)
	ListByStatuses(ctx context.Context, statuses []Status, limit, offset int) ([]Detail, error)
	ListOverdueByUser(ctx context.Context, userID int64, now time.Time) ([]Detail, error)
	ListDueOn(ctx context.Context, due time.Time) ([]ReminderRow, error)
}

// transitionSet carries the optional columns a status transition writes.
type transitionSet struct {
	IssuedDate   *time.Time
	DueDate      *time.Time
	ReturnedDate *time.Time
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) BorrowStore { return &Store{db: db} }

const detailCols = `
b.id, b.user_id, b.book_id, b.status, b.issued_date, b.due_date, b.returned_date,
b.fine_paid, b.created_at, b.updated_at, u.name, u.email, bk.name
`

const detailFrom = `
FROM borrows b
JOIN users u ON u.id = b.user_id
JOIN books bk ON bk.id = b.book_id
`

func (s *Store) GetByID(ctx context.Context, id int64) (*Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE b.id = ? LIMIT 1`
	d, err := scanDetail(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("borrow record not found")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ExecCreateRequest runs the full request-book transaction: lock the book
// row, apply the eligibility guards, take one copy, insert the Pending
// borrow. Guards evaluate inside the transaction so two concurrent requests
// for the last copy cannot both succeed.
func (s *Store) ExecCreateRequest(ctx context.Context, userID, bookID int64, borrowLimit int, now time.Time) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// 1. Lock the inventory row first; it serializes competing requests.
	_, copies, err := catalog.LockBook(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}

	// 2. Overdue block
	var overdueCount int
	const overdueQ = `
SELECT COUNT(*)
FROM borrows
WHERE user_id = ?
  AND fine_paid = 0
  AND (
    (status IN ('Issued','Renewed','Overdue') AND returned_date IS NULL AND due_date < ?)
    OR
    (status IN ('Returned','Confirmed') AND returned_date IS NOT NULL AND returned_date > due_date)
  )
`
	if err = tx.QueryRowContext(ctx, overdueQ, userID, now).Scan(&overdueCount); err != nil {
		return nil, err
	}
	if overdueCount > 0 {
		err = apperr.ErrInvalidState("you have overdue books; return them before borrowing new ones")
		return nil, err
	}

	// 3. Borrowing limit
	var activeCount int
	const activeQ = `SELECT COUNT(*) FROM borrows WHERE user_id = ? AND status IN ('Pending','Issued')`
	if err = tx.QueryRowContext(ctx, activeQ, userID).Scan(&activeCount); err != nil {
		return nil, err
	}
	if activeCount >= borrowLimit {
		err = apperr.ErrLimitExceeded("you have reached your borrowing limit")
		return nil, err
	}

	// 4. Duplicate pending request
	var dup int
	const dupQ = `SELECT COUNT(*) FROM borrows WHERE user_id = ? AND book_id = ? AND status = 'Pending'`
	if err = tx.QueryRowContext(ctx, dupQ, userID, bookID).Scan(&dup); err != nil {
		return nil, err
	}
	if dup > 0 {
		err = apperr.ErrDuplicateRequest("you already have a pending request for this book")
		return nil, err
	}

	// 5. Stock check and decrement
	if copies <= 0 {
		err = apperr.ErrNoCopies("no copies available")
		return nil, err
	}
	if err = catalog.AdjustCopies(ctx, tx, bookID, -1); err != nil {
		return nil, err
	}

	// 6. Insert the Pending borrow
	const insQ = `
INSERT INTO borrows (user_id, book_id, status, fine_paid, created_at, updated_at)
VALUES (?, ?, 'Pending', 0, NOW(6), NOW(6))
`
	res, err := tx.ExecContext(ctx, insQ, userID, bookID)
	if err != nil {
		return nil, err
	}
	borrowID, _ := res.LastInsertId()

	d, err := getDetailTx(ctx, tx, borrowID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}

// ExecTransition moves a borrow from one of the allowed source statuses to
// the target status, writing any date columns supplied. The row is locked so
// concurrent admin actions cannot double-apply a transition.
func (s *Store) ExecTransition(ctx context.Context, id int64, from []Status, to Status, set transitionSet) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current Status
	var bookID int64
	const lockQ = `SELECT status, book_id FROM borrows WHERE id = ? FOR UPDATE`
	if err = tx.QueryRowContext(ctx, lockQ, id).Scan(&current, &bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = apperr.ErrNotFound("borrow record not found")
		}
		return nil, err
	}
	if !statusIn(current, from) {
		err = apperr.ErrInvalidState(fmt.Sprintf("cannot move borrow from %s to %s", current, to))
		return nil, err
	}

	sets := []string{"status = ?", "updated_at = NOW(6)"}
	args := []any{string(to)}
	if set.IssuedDate != nil {
		sets = append(sets, "issued_date = ?")
		args = append(args, *set.IssuedDate)
	}
	if set.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *set.DueDate)
	}
	if set.ReturnedDate != nil {
		sets = append(sets, "returned_date = ?")
		args = append(args, *set.ReturnedDate)
	}
	args = append(args, id)

	updQ := `UPDATE borrows SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err = tx.ExecContext(ctx, updQ, args...); err != nil {
		return nil, err
	}

	// A rejected request hands its copy back.
	if to == StatusRejected {
		if err = relockAndRestore(ctx, tx, bookID); err != nil {
			return nil, err
		}
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

// ExecReturn marks the member's latest outstanding loan of the book as
// Returned. The copy is not restored until an admin confirms the return.
func (s *Store) ExecReturn(ctx context.Context, userID, bookID int64, returnedAt time.Time) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	const findQ = `
SELECT id FROM borrows
WHERE user_id = ? AND book_id = ? AND status IN ('Issued','Renewed','Overdue')
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE
`
	if err = tx.QueryRowContext(ctx, findQ, userID, bookID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = apperr.ErrNotFound("no outstanding loan for this book")
		}
		return nil, err
	}

	const updQ = `
UPDATE borrows
SET status = 'Returned', returned_date = ?, updated_at = NOW(6)
WHERE id = ?
`
	if _, err = tx.ExecContext(ctx, updQ, returnedAt, id); err != nil {
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

// ExecConfirmReturn closes out a Returned loan: Confirmed status, copy back
// on the shelf, plus a snapshot of the book's pending reservations so the
// service can alert waiting members after commit.
func (s *Store) ExecConfirmReturn(ctx context.Context, id int64) (*Detail, []PendingReservation, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current Status
	var bookID int64
	const lockQ = `SELECT status, book_id FROM borrows WHERE id = ? FOR UPDATE`
	if err = tx.QueryRowContext(ctx, lockQ, id).Scan(&current, &bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = apperr.ErrNotFound("borrow record not found")
		}
		return nil, nil, err
	}
	if current != StatusReturned {
		err = apperr.ErrInvalidState("this book has not been returned")
		return nil, nil, err
	}

	const updQ = `UPDATE borrows SET status = 'Confirmed', updated_at = NOW(6) WHERE id = ?`
	if _, err = tx.ExecContext(ctx, updQ, id); err != nil {
		return nil, nil, err
	}

	if err = relockAndRestore(ctx, tx, bookID); err != nil {
		return nil, nil, err
	}

	const resQ = `
		SELECT r.id, r.user_id, u.email, u.name
		FROM book_reservations r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = ? AND r.status = 'pending'
		ORDER BY r.created_at`
	rows, err := tx.QueryContext(ctx, resQ, bookID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var pending []PendingReservation
	for rows.Next() {
		var p PendingReservation
		if err = rows.Scan(&p.ID, &p.UserID, &p.UserEmail, &p.UserName); err != nil {
			return nil, nil, err
		}
		pending = append(pending, p)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	d, err := getDetailTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}
	return d, pending, nil
}

// ExecDestroy deletes a borrow record. An outstanding loan hands its copy
// back first, so abandoning a record never leaks inventory.
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

	var current Status
	var bookID int64
	const lockQ = `SELECT status, book_id FROM borrows WHERE id = ? FOR UPDATE`
	if err = tx.QueryRowContext(ctx, lockQ, id).Scan(&current, &bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = apperr.ErrNotFound("borrow record not found")
		}
		return err
	}

	if statusIn(current, []Status{StatusIssued, StatusRenewed, StatusOverdue}) {
		if err = relockAndRestore(ctx, tx, bookID); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM borrows WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkOverdue is a single bulk update and therefore naturally idempotent:
// rows already Overdue no longer match the predicate.
func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE borrows
SET status = 'Overdue', updated_at = NOW(6)
WHERE status IN ('Issued','Renewed')
  AND due_date < ?
  AND fine_paid = 0
`
	res, err := s.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListByUser(ctx context.Context, userID int64, search string, status Status, limit, offset int) ([]Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE b.user_id = ?`
	args := []any{userID}
	if search != "" {
		q += ` AND (bk.name LIKE ? OR bk.id LIKE ?)`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	if status != "" {
		q += ` AND b.status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY b.created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryDetails(ctx, q, args...)
}

func (s *Store) ListAll(ctx context.Context, search string) ([]Detail, error) {
	q := `SELECT ` + detailCols + detailFrom
	var args []any
	if search != "" {
		q += ` WHERE bk.name LIKE ? OR bk.id LIKE ? OR u.name LIKE ? OR u.id LIKE ?`
		like := "%" + search + "%"
		args = append(args, like, like, like, like)
	}
	q += ` ORDER BY b.created_at DESC`

	return s.queryDetails(ctx, q, args...)
}

func (s *Store) ListByStatuses(ctx context.Context, statuses []Status, limit, offset int) ([]Detail, error) {
	placeholders := strings.TrimRight(strings.Repeat("?,", len(statuses)), ",")
	q := `SELECT ` + detailCols + detailFrom + ` WHERE b.status IN (` + placeholders + `)
ORDER BY b.created_at DESC LIMIT ? OFFSET ?`

	args := make([]any, 0, len(statuses)+2)
	for _, st := range statuses {
		args = append(args, string(st))
	}
	args = append(args, limit, offset)

	return s.queryDetails(ctx, q, args...)
}

func (s *Store) ListOverdueByUser(ctx context.Context, userID int64, now time.Time) ([]Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + `
WHERE b.user_id = ?
  AND b.fine_paid = 0
  AND (
    (b.status IN ('Issued','Renewed','Overdue') AND b.returned_date IS NULL AND b.due_date < ?)
    OR
    (b.status IN ('Returned','Confirmed') AND b.returned_date IS NOT NULL AND b.returned_date > b.due_date)
  )
ORDER BY b.due_date
`
	return s.queryDetails(ctx, q, userID, now)
}

// ListDueOn returns loans whose due date falls on the given calendar day.
func (s *Store) ListDueOn(ctx context.Context, due time.Time) ([]ReminderRow, error) {
	const q = `
SELECT b.id, u.email, u.name, bk.name, b.due_date
` + detailFrom + `
WHERE b.status IN ('Issued','Renewed')
  AND DATE(b.due_date) = ?
`
	rows, err := s.db.QueryContext(ctx, q, due.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderRow
	for rows.Next() {
		var r ReminderRow
		if err := rows.Scan(&r.BorrowID, &r.UserEmail, &r.UserName, &r.BookName, &r.DueDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- helpers ----

func relockAndRestore(ctx context.Context, tx *sql.Tx, bookID int64) error {
	if _, _, err := catalog.LockBook(ctx, tx, bookID); err != nil {
		return err
	}
	return catalog.AdjustCopies(ctx, tx, bookID, +1)
}

func getDetailTx(ctx context.Context, tx *sql.Tx, id int64) (*Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE b.id = ? LIMIT 1`
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
	var finePaid int
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.BookID,
		&status,
		&d.IssuedDate,
		&d.DueDate,
		&d.ReturnedDate,
		&finePaid,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.UserName,
		&d.UserEmail,
		&d.BookName,
	)
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	d.FinePaid = finePaid != 0
	return &d, nil
}

func statusIn(s Status, in []Status) bool {
	for _, v := range in {
		if s == v {
			return true
		}
	}
	return false
}
