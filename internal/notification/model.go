package notification

import (
	"database/sql"
	"time"
)

// Type is the closed set of notification kinds. Free-form strings are not
// accepted; handlers switch over these exhaustively.
type Type string

const (
	TypeReservationPending  Type = "reservation_pending"
	TypeReservationApproved Type = "reservation_approved"
	TypeReservationRejected Type = "reservation_rejected"
	TypeBookAvailable       Type = "book_available"
	TypeBookReady           Type = "book_ready_for_pickup"
	TypeAdminAlert          Type = "admin_alert"
	TypeRenewalRequest      Type = "renewal_request"
	TypeRenewalDateChanged  Type = "renewal_date_changed"
	TypeRenewalConfirmed    Type = "renewal_confirmed"
	TypeRenewalDeclined     Type = "renewal_declined"
	TypeRenewalApproved     Type = "renewal_approved"
	TypeRenewalExpired      Type = "renewal_expired"
	TypeBookApproved        Type = "book_approved"
	TypeBookRejected        Type = "book_rejected"
	TypeBookIssued          Type = "book_issued"
)

var knownTypes = map[Type]struct{}{
	TypeReservationPending:  {},
	TypeReservationApproved: {},
	TypeReservationRejected: {},
	TypeBookAvailable:       {},
	TypeBookReady:           {},
	TypeAdminAlert:          {},
	TypeRenewalRequest:      {},
	TypeRenewalDateChanged:  {},
	TypeRenewalConfirmed:    {},
	TypeRenewalDeclined:     {},
	TypeRenewalApproved:     {},
	TypeRenewalExpired:      {},
	TypeBookApproved:        {},
	TypeBookRejected:        {},
	TypeBookIssued:          {},
}

// Valid reports whether t is one of the declared notification types.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Notification is a persisted in-app message for one user.
type Notification struct {
	ID             int64
	ULID           string
	UserID         int64
	BookID         sql.NullInt64
	ReservationID  sql.NullInt64
	RenewRequestID sql.NullInt64
	Title          string
	Message        string
	Type           Type
	IsRead         bool
	ReadAt         sql.NullTime
	Metadata       []byte
	CreatedAt      time.Time
}

// Watch records a member's interest in a book that has no copies left.
type Watch struct {
	ID            int64
	UserID        int64
	BookID        int64
	RequestedDate time.Time
	Notified      bool
	CreatedAt     time.Time
}
