package notification

import (
	"encoding/json"
	"time"
)

type NotificationResponse struct {
	ID             int64           `json:"id"`
	ULID           string          `json:"ulid"`
	UserID         int64           `json:"user_id"`
	BookID         *int64          `json:"book_id,omitempty"`
	ReservationID  *int64          `json:"reservation_id,omitempty"`
	RenewRequestID *int64          `json:"renew_request_id,omitempty"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Type           Type            `json:"type"`
	IsRead         bool            `json:"is_read"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toResponse(n Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID,
		ULID:      n.ULID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if n.BookID.Valid {
		v := n.BookID.Int64
		resp.BookID = &v
	}
	if n.ReservationID.Valid {
		v := n.ReservationID.Int64
		resp.ReservationID = &v
	}
	if n.RenewRequestID.Valid {
		v := n.RenewRequestID.Int64
		resp.RenewRequestID = &v
	}
	if n.ReadAt.Valid {
		v := n.ReadAt.Time
		resp.ReadAt = &v
	}
	if len(n.Metadata) > 0 {
		resp.Metadata = json.RawMessage(n.Metadata)
	}
	return resp
}

func toResponses(ns []Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, toResponse(n))
	}
	return out
}

type CreateWatchRequest struct {
	RequestedDate string `json:"requested_date" binding:"required"`
}

type WatchResponse struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	BookID        int64     `json:"book_id"`
	RequestedDate string    `json:"requested_date"`
	Notified      bool      `json:"notified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toWatchResponse(w Watch) WatchResponse {
	return WatchResponse{
		ID:            w.ID,
		UserID:        w.UserID,
		BookID:        w.BookID,
		RequestedDate: w.RequestedDate.Format("2006-01-02"),
		Notified:      w.Notified,
		CreatedAt:     w.CreatedAt,
	}
}
