package reservation

import "time"

// ReservationStatus values. A reservation disappears (is deleted) once it
// converts into a loan or the member declines it, so "completed" only shows
// up in historical exports.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusRejected  ReservationStatus = "rejected"
	StatusCompleted ReservationStatus = "completed"
)

// How long a reservation stays valid once placed.
const expiryDays = 7

// Reservation is a member's hold on a book ahead of a loan.
type Reservation struct {
	ID              int64
	UserID          int64
	BookID          int64
	ReservationDate time.Time
	ExpiryDate      time.Time
	Status          ReservationStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Detail joins the reservation with user and book names for notifications.
type Detail struct {
	Reservation
	UserName  string
	UserEmail string
	BookName  string
}
