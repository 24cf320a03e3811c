package renewal

import (
	"database/sql"
	"time"
)

// RenewStatus tracks a renewal request through its negotiation. A request
// with a counter-proposed date parks in pending_user_confirmation until the
// member answers or the request goes stale.
type RenewStatus string

const (
	StatusPending          RenewStatus = "pending"
	StatusPendingUserReply RenewStatus = "pending_user_confirmation"
	StatusApproved         RenewStatus = "approved"
	StatusRejected         RenewStatus = "rejected"
)

// Counter-proposals left unanswered this long are auto-expired.
const staleAfter = 14 * 24 * time.Hour

type RenewRequest struct {
	ID                int64
	BorrowID          int64
	UserID            int64
	RequestedDate     time.Time
	AdminProposedDate sql.NullTime
	Status            RenewStatus
	AdminNotes        sql.NullString
	ProcessedAt       sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Detail joins the request with its loan, member and book.
type Detail struct {
	RenewRequest
	BookID         int64
	CurrentDueDate sql.NullTime
	UserName       string
	UserEmail      string
	BookName       string
}
