package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsDisabled   bool
	CreatedAt    time.Time
}

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u *User) error
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) UserStore {
	return &Store{db: db}
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
SELECT id, name, email, password_hash, role, is_disabled, created_at
FROM users
WHERE email = ?
LIMIT 1
`
	return s.scanOne(s.db.QueryRowContext(ctx, q, email))
}

func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	const q = `
SELECT id, name, email, password_hash, role, is_disabled, created_at
FROM users
WHERE id = ?
LIMIT 1
`
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) scanOne(row *sql.Row) (*User, error) {
	var u User
	var isDisabledInt int
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&isDisabledInt,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.IsDisabled = isDisabledInt != 0
	return &u, nil
}

func (s *Store) Create(ctx context.Context, u *User) error {
	const q = `
INSERT INTO users (name, email, password_hash, role, is_disabled, created_at)
VALUES (?, ?, ?, ?, 0, NOW(6))
`
	res, err := s.db.ExecContext(ctx, q, u.Name, u.Email, u.PasswordHash, u.Role)
	if err != nil {
		return err
	}
	u.ID, _ = res.LastInsertId()
	return nil
}
