package notification

import (
	"context"
	"database/sql"
	"errors"
)

type NotificationStore interface {
	Insert(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Notification, error)
	ListAll(ctx context.Context, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID int64) (int64, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	InsertWatch(ctx context.Context, w *Watch) error
	ListWatches(ctx context.Context, onlyPending bool) ([]Watch, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) NotificationStore { return &Store{db: db} }

const notificationCols = `
id, ulid, user_id, book_id, reservation_id, renew_request_id,
title, message, type, is_read, read_at, metadata, created_at
`

func (s *Store) Insert(ctx context.Context, n *Notification) error {
	const q = `
INSERT INTO notifications
(ulid, user_id, book_id, reservation_id, renew_request_id, title, message, type, is_read, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, NOW(6))
`
	res, err := s.db.ExecContext(ctx, q,
		n.ULID,
		n.UserID,
		n.BookID,
		n.ReservationID,
		n.RenewRequestID,
		n.Title,
		n.Message,
		string(n.Type),
		nullBytes(n.Metadata),
	)
	if err != nil {
		return err
	}
	n.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*Notification, error) {
	q := `SELECT ` + notificationCols + ` FROM notifications WHERE id = ? LIMIT 1`
	row := s.db.QueryRowContext(ctx, q, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Store) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Notification, error) {
	q := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND is_read = 0`
	}
	q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (s *Store) ListAll(ctx context.Context, limit, offset int) ([]Notification, error) {
	q := `SELECT ` + notificationCols + ` FROM notifications ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func (s *Store) MarkRead(ctx context.Context, id, userID int64) (int64, error) {
	const q = `
UPDATE notifications
SET is_read = 1, read_at = NOW(6)
WHERE id = ? AND user_id = ? AND is_read = 0
`
	res, err := s.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	const q = `
UPDATE notifications
SET is_read = 1, read_at = NOW(6)
WHERE user_id = ? AND is_read = 0
`
	res, err := s.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) InsertWatch(ctx context.Context, w *Watch) error {
	const q = `
INSERT INTO book_availability_notifications (user_id, book_id, requested_date, notified, created_at)
VALUES (?, ?, ?, 0, NOW(6))
`
	res, err := s.db.ExecContext(ctx, q, w.UserID, w.BookID, w.RequestedDate.Format("2006-01-02"))
	if err != nil {
		return err
	}
	w.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) ListWatches(ctx context.Context, onlyPending bool) ([]Watch, error) {
	q := `
SELECT id, user_id, book_id, requested_date, notified, created_at
FROM book_availability_notifications
`
	if onlyPending {
		q += ` WHERE notified = 0`
	}
	q += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Watch
	for rows.Next() {
		var w Watch
		var notified int
		if err := rows.Scan(&w.ID, &w.UserID, &w.BookID, &w.RequestedDate, &notified, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Notified = notified != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var isRead int
	var typ string
	var metadata sql.NullString
	err := row.Scan(
		&n.ID,
		&n.ULID,
		&n.UserID,
		&n.BookID,
		&n.ReservationID,
		&n.RenewRequestID,
		&n.Title,
		&n.Message,
		&typ,
		&isRead,
		&n.ReadAt,
		&metadata,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	n.IsRead = isRead != 0
	if metadata.Valid {
		n.Metadata = []byte(metadata.String)
	}
	return &n, nil
}

func collectNotifications(rows *sql.Rows) ([]Notification, error) {
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
