package borrow

import "time"

type BorrowResponse struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	UserName     string     `json:"user_name,omitempty"`
	BookID       int64      `json:"book_id"`
	BookName     string     `json:"book_name,omitempty"`
	Status       Status     `json:"status"`
	IssuedDate   *time.Time `json:"issued_date,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ReturnedDate *time.Time `json:"returned_date,omitempty"`
	FinePaid     bool       `json:"fine_paid"`
	CreatedAt    time.Time  `json:"created_at"`
}

// OverdueItem is a borrow with its fine already computed.
type OverdueItem struct {
	Detail
	Fine string
}

type OverdueResponse struct {
	BorrowResponse
	IsOverdue bool   `json:"is_overdue"`
	Fine      string `json:"fine_amount"`
}

func toResponse(d Detail) BorrowResponse {
	resp := BorrowResponse{
		ID:        d.ID,
		UserID:    d.UserID,
		UserName:  d.UserName,
		BookID:    d.BookID,
		BookName:  d.BookName,
		Status:    d.Status,
		FinePaid:  d.FinePaid,
		CreatedAt: d.CreatedAt,
	}
	if d.IssuedDate.Valid {
		v := d.IssuedDate.Time
		resp.IssuedDate = &v
	}
	if d.DueDate.Valid {
		v := d.DueDate.Time
		resp.DueDate = &v
	}
	if d.ReturnedDate.Valid {
		v := d.ReturnedDate.Time
		resp.ReturnedDate = &v
	}
	return resp
}

func toResponses(ds []Detail) []BorrowResponse {
	out := make([]BorrowResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toResponse(d))
	}
	return out
}
