package renewal

import "time"

type RenewalRequestBody struct {
	RequestedDate string `json:"requested_date" binding:"required"`
}

type ApproveRequestBody struct {
	ProposedDate string `json:"proposed_date"`
}

type RejectRequestBody struct {
	Note string `json:"note"`
}

type ConfirmRequestBody struct {
	Accepted *bool `json:"accepted" binding:"required"`
}

type RenewalResponse struct {
	ID                int64       `json:"id"`
	BorrowID          int64       `json:"borrow_id"`
	UserID            int64       `json:"user_id"`
	UserName          string      `json:"user_name,omitempty"`
	BookID            int64       `json:"book_id"`
	BookName          string      `json:"book_name,omitempty"`
	RequestedDate     string      `json:"requested_date"`
	AdminProposedDate string      `json:"admin_proposed_date,omitempty"`
	CurrentDueDate    string      `json:"current_due_date,omitempty"`
	Status            RenewStatus `json:"status"`
	AdminNotes        string      `json:"admin_notes,omitempty"`
	ProcessedAt       *time.Time  `json:"processed_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

func toResponse(d Detail) RenewalResponse {
	resp := RenewalResponse{
		ID:            d.ID,
		BorrowID:      d.BorrowID,
		UserID:        d.UserID,
		UserName:      d.UserName,
		BookID:        d.BookID,
		BookName:      d.BookName,
		RequestedDate: d.RequestedDate.Format("2006-01-02"),
		Status:        d.Status,
		CreatedAt:     d.CreatedAt,
	}
	if d.AdminProposedDate.Valid {
		resp.AdminProposedDate = d.AdminProposedDate.Time.Format("2006-01-02")
	}
	if d.CurrentDueDate.Valid {
		resp.CurrentDueDate = d.CurrentDueDate.Time.Format("2006-01-02")
	}
	if d.AdminNotes.Valid {
		resp.AdminNotes = d.AdminNotes.String
	}
	if d.ProcessedAt.Valid {
		v := d.ProcessedAt.Time
		resp.ProcessedAt = &v
	}
	return resp
}

func toResponses(ds []Detail) []RenewalResponse {
	out := make([]RenewalResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toResponse(d))
	}
	return out
}
