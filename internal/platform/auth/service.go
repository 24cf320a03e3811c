package auth

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrAuthFailed    = errors.New("authentication failed")
)

type Service struct {
	store    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(db *sql.DB, secret []byte, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{store: NewStore(db), secret: secret, tokenTTL: tokenTTL}
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *User, error)
	Register(ctx context.Context, name, email, password, role string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if u == nil || u.IsDisabled {
		return "", nil, ErrAuthFailed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthFailed
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(u.ID, 10),
		"role": u.Role,
		"exp":  time.Now().Add(s.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, u, nil
}

func (s *Service) Register(ctx context.Context, name, email, password, role string) (*User, error) {
	exists, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}
