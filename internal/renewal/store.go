package renewal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type RenewStore interface {
	GetByID(ctx context.Context, id int64) (*Detail, error)
	ExecCreate(ctx context.Context, userID, borrowID int64, requestedDate time.Time) (*Detail, error)
	ExecApprove(ctx context.Context, id int64, proposedDate *time.Time, now time.Time) (*Detail, error)
	ExecReject(ctx context.Context, id int64, note string, now time.Time) (*Detail, error)
	ExecConfirm(ctx context.Context, id, userID int64, accepted bool, now time.Time) (*Detail, error)
	ExecExpireStale(ctx context.Context, cutoff time.Time, note string) ([]Detail, error)
	ExecDestroy(ctx context.Context, id int64) error
	ListAll(ctx context.Context, limit, offset int) ([]Detail, error)
	ListByUser(ctx context.Context, userID int64) ([]Detail, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) RenewStore { return &Store{db: db} }

const detailCols = `
rr.id, rr.borrow_id, rr.user_id, rr.requested_date, rr.admin_proposed_date,
rr.status, rr.admin_notes, rr.processed_at, rr.created_at, rr.updated_at,
b.book_id, b.due_date, u.name, u.email, bk.name
`

const detailFrom = `
FROM renew_requests rr
JOIN borrows b ON b.id = rr.borrow_id
JOIN users u ON u.id = rr.user_id
JOIN books bk ON bk.id = b.book_id
`

func (s *Store) GetByID(ctx context.Context, id int64) (*Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE rr.id = ? LIMIT 1`
	d, err := scanDetail(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("renewal request not found")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ExecCreate inserts a pending renewal request. The loan must belong to the
// member, be currently Issued, and have no open renewal request already.
func (s *Store) ExecCreate(ctx context.Context, userID, borrowID int64, requestedDate time.Time) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status string
	var ownerID int64
	const lockQ = `SELECT status, user_id FROM borrows WHERE id = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, lockQ, borrowID).Scan(&status, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		err = apperr.ErrNotFound("borrow record not found")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		err = apperr.ErrNotFound("borrow record not found")
		return nil, err
	}
	if status != "Issued" {
		err = apperr.ErrInvalidState(fmt.Sprintf("only issued books can be renewed, current status is %s", status))
		return nil, err
	}

	var open int
	const dupQ = `
SELECT COUNT(*) FROM renew_requests
WHERE borrow_id = ? AND status IN ('pending','pending_user_confirmation')
`
	if err = tx.QueryRowContext(ctx, dupQ, borrowID).Scan(&open); err != nil {
		return nil, err
	}
	if open > 0 {
		err = apperr.ErrDuplicateRequest("a renewal request for this book is already open")
		return nil, err
	}

	const insQ = `
INSERT INTO renew_requests (borrow_id, user_id, requested_date, status, created_at, updated_at)
VALUES (?, ?, ?, 'pending', NOW(6), NOW(6))
`
	res, err := tx.ExecContext(ctx, insQ, borrowID, userID, requestedDate)
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

// ExecApprove resolves a pending request. With no counter-date (or a counter
// matching the member's ask) the request is approved outright and the loan is
// renewed to the requested date. A differing counter-date parks the request
// in pending_user_confirmation instead; nothing on the loan changes yet.
func (s *Store) ExecApprove(ctx context.Context, id int64, proposedDate *time.Time, now time.Time) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var req *Detail
	if req, err = lockRequest(ctx, tx, id); err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		err = apperr.ErrInvalidState(fmt.Sprintf("cannot approve a %s renewal request", req.Status))
		return nil, err
	}

	counter := proposedDate != nil && !sameDate(*proposedDate, req.RequestedDate)
	if counter {
		const q = `
UPDATE renew_requests
SET status = 'pending_user_confirmation', admin_proposed_date = ?, updated_at = NOW(6)
WHERE id = ?
`
		if _, err = tx.ExecContext(ctx, q, *proposedDate, id); err != nil {
			return nil, err
		}
	} else {
		if err = renewLoanTx(ctx, tx, req.BorrowID, req.RequestedDate); err != nil {
			return nil, err
		}
		const q = `
UPDATE renew_requests
SET status = 'approved', processed_at = ?, updated_at = NOW(6)
WHERE id = ?
`
		if _, err = tx.ExecContext(ctx, q, now, id); err != nil {
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

// ExecReject closes the request with an admin note. The loan is untouched.
func (s *Store) ExecReject(ctx context.Context, id int64, note string, now time.Time) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var req *Detail
	if req, err = lockRequest(ctx, tx, id); err != nil {
		return nil, err
	}
	if req.Status != StatusPending && req.Status != StatusPendingUserReply {
		err = apperr.ErrInvalidState(fmt.Sprintf("cannot reject a %s renewal request", req.Status))
		return nil, err
	}

	const q = `
UPDATE renew_requests
SET status = 'rejected', admin_notes = ?, processed_at = ?, updated_at = NOW(6)
WHERE id = ?
`
	if _, err = tx.ExecContext(ctx, q, note, now, id); err != nil {
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

// ExecConfirm records the member's answer to a counter-proposed date. On
// acceptance the loan's due date moves to the admin's date (falling back to
// the member's ask) and the loan becomes Renewed; the request update and the
// loan update commit together or not at all.
func (s *Store) ExecConfirm(ctx context.Context, id, userID int64, accepted bool, now time.Time) (*Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var req *Detail
	if req, err = lockRequest(ctx, tx, id); err != nil {
		return nil, err
	}
	if req.UserID != userID {
		err = apperr.ErrNotFound("renewal request not found")
		return nil, err
	}
	if req.Status != StatusPendingUserReply {
		err = apperr.ErrInvalidState("renewal request is not awaiting your confirmation")
		return nil, err
	}

	if accepted {
		newDue := req.RequestedDate
		if req.AdminProposedDate.Valid {
			newDue = req.AdminProposedDate.Time
		}
		if err = renewLoanTx(ctx, tx, req.BorrowID, newDue); err != nil {
			return nil, err
		}
		const q = `
UPDATE renew_requests SET status = 'approved', processed_at = ?, updated_at = NOW(6) WHERE id = ?
`
		if _, err = tx.ExecContext(ctx, q, now, id); err != nil {
			return nil, err
		}
	} else {
		const q = `
UPDATE renew_requests SET status = 'rejected', processed_at = ?, updated_at = NOW(6) WHERE id = ?
`
		if _, err = tx.ExecContext(ctx, q, now, id); err != nil {
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

// ExecExpireStale rejects counter-proposals the member never answered. The
// cutoff compares against updated_at so a fresh counter-date restarts the
// clock.
func (s *Store) ExecExpireStale(ctx context.Context, cutoff time.Time, note string) ([]Detail, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const selQ = `
SELECT id FROM renew_requests
WHERE status = 'pending_user_confirmation' AND updated_at < ?
FOR UPDATE
`
	rows, err := tx.QueryContext(ctx, selQ, cutoff)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		err = tx.Commit()
		return nil, err
	}

	var expired []Detail
	for _, id := range ids {
		const updQ = `
UPDATE renew_requests
SET status = 'rejected', admin_notes = ?, processed_at = NOW(6), updated_at = NOW(6)
WHERE id = ?
`
		if _, err = tx.ExecContext(ctx, updQ, note, id); err != nil {
			return nil, err
		}
		var d *Detail
		if d, err = getDetailTx(ctx, tx, id); err != nil {
			return nil, err
		}
		expired = append(expired, *d)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

// ExecDestroy deletes a settled request and its dependent notifications.
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

	var req *Detail
	if req, err = lockRequest(ctx, tx, id); err != nil {
		return err
	}
	if req.Status != StatusApproved && req.Status != StatusRejected {
		err = apperr.ErrInvalidState("only settled renewal requests can be deleted")
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM notifications WHERE renew_request_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM renew_requests WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ListAll(ctx context.Context, limit, offset int) ([]Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` ORDER BY rr.created_at DESC LIMIT ? OFFSET ?`
	return s.queryDetails(ctx, q, limit, offset)
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE rr.user_id = ? ORDER BY rr.created_at DESC`
	return s.queryDetails(ctx, q, userID)
}

// ---- helpers ----

// renewLoanTx moves the loan's due date and flips it to Renewed.
func renewLoanTx(ctx context.Context, tx *sql.Tx, borrowID int64, newDue time.Time) error {
	const q = `
UPDATE borrows
SET due_date = ?, status = 'Renewed', updated_at = NOW(6)
WHERE id = ? AND status IN ('Issued','Renewed')
`
	res, err := tx.ExecContext(ctx, q, newDue, borrowID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrInvalidState("loan is no longer renewable")
	}
	return nil
}

func lockRequest(ctx context.Context, tx *sql.Tx, id int64) (*Detail, error) {
	const lockQ = `SELECT id FROM renew_requests WHERE id = ? FOR UPDATE`
	var got int64
	err := tx.QueryRowContext(ctx, lockQ, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("renewal request not found")
	}
	if err != nil {
		return nil, err
	}
	return getDetailTx(ctx, tx, id)
}

func getDetailTx(ctx context.Context, tx *sql.Tx, id int64) (*Detail, error) {
	q := `SELECT ` + detailCols + detailFrom + ` WHERE rr.id = ? LIMIT 1`
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
		&d.BorrowID,
		&d.UserID,
		&d.RequestedDate,
		&d.AdminProposedDate,
		&status,
		&d.AdminNotes,
		&d.ProcessedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.BookID,
		&d.CurrentDueDate,
		&d.UserName,
		&d.UserEmail,
		&d.BookName,
	)
	if err != nil {
		return nil, err
	}
	d.Status = RenewStatus(status)
	return &d, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
