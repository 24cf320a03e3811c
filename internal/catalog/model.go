package catalog

import (
	"database/sql"
	"time"
)

// Book carries the catalog fields the circulation core needs. Full catalog
// CRUD (categories, authors, cover images) lives outside this service.
type Book struct {
	ID         int64
	Name       string
	ISBN       string
	CopyCount  int
	CategoryID sql.NullInt64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
