package policy

import "time"

type UpdatePolicyRequest struct {
	BorrowLimit        int    `json:"borrow_limit" binding:"required"`
	BorrowDurationDays int    `json:"borrow_duration_days" binding:"required"`
	FinePerDay         string `json:"fine_per_day" binding:"required"`
}

type PolicyResponse struct {
	ID                 int64     `json:"id"`
	BorrowLimit        int       `json:"borrow_limit"`
	BorrowDurationDays int       `json:"borrow_duration_days"`
	FinePerDay         string    `json:"fine_per_day"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toResponse(p Policy) PolicyResponse {
	return PolicyResponse{
		ID:                 p.ID,
		BorrowLimit:        p.BorrowLimit,
		BorrowDurationDays: p.BorrowDurationDays,
		FinePerDay:         p.FinePerDay.StringFixed(2),
		UpdatedAt:          p.UpdatedAt,
	}
}
