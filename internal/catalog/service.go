package catalog

import (
	"context"
	"database/sql"
)

type Service struct {
	store BookStore
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db)}
}

func NewServiceWithStore(store BookStore) *Service {
	return &Service{store: store}
}

func (s *Service) GetBook(ctx context.Context, id int64) (*Book, error) {
	return s.store.GetByID(ctx, id)
}

// Availability reports the current copy count for a book.
func (s *Service) Availability(ctx context.Context, id int64) (int, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return b.CopyCount, nil
}
