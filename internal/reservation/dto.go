package reservation

import "time"

type ReserveRequest struct {
	ReservationDate string `json:"reservation_date" binding:"required"`
}

type RespondRequest struct {
	Confirmed *bool `json:"confirmed" binding:"required"`
}

type ReservationResponse struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"user_id"`
	UserName        string            `json:"user_name,omitempty"`
	BookID          int64             `json:"book_id"`
	BookName        string            `json:"book_name,omitempty"`
	ReservationDate string            `json:"reservation_date"`
	ExpiryDate      string            `json:"expiry_date"`
	Status          ReservationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

func toResponse(d Detail) ReservationResponse {
	return ReservationResponse{
		ID:              d.ID,
		UserID:          d.UserID,
		UserName:        d.UserName,
		BookID:          d.BookID,
		BookName:        d.BookName,
		ReservationDate: d.ReservationDate.Format("2006-01-02"),
		ExpiryDate:      d.ExpiryDate.Format("2006-01-02"),
		Status:          d.Status,
		CreatedAt:       d.CreatedAt,
	}
}

func toResponses(ds []Detail) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toResponse(d))
	}
	return out
}
