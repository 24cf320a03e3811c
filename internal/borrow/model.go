package borrow

import (
	"database/sql"
	"time"
)

// Status is the loan lifecycle state.
//
//	Pending -> Approved -> Issued -> Returned -> Confirmed
//	Pending -> Rejected
//	Issued/Renewed -> Overdue -> Returned
//	Issued -> Renewed (via an approved renewal)
//
// Rejected and Confirmed are terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusIssued    Status = "Issued"
	StatusOverdue   Status = "Overdue"
	StatusReturned  Status = "Returned"
	StatusConfirmed Status = "Confirmed"
	StatusRenewed   Status = "Renewed"
)

// Statuses that participate in due-date-driven overdue semantics.
var overdueEligible = map[Status]struct{}{
	StatusIssued:    {},
	StatusRenewed:   {},
	StatusOverdue:   {},
	StatusReturned:  {},
	StatusConfirmed: {},
}

// Borrow is one checkout record of one book copy to one user.
type Borrow struct {
	ID           int64
	UserID       int64
	BookID       int64
	Status       Status
	IssuedDate   sql.NullTime
	DueDate      sql.NullTime
	ReturnedDate sql.NullTime
	FinePaid     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Detail is a borrow joined with the names the notification and mail texts
// interpolate.
type Detail struct {
	Borrow
	UserName  string
	UserEmail string
	BookName  string
}

// PendingReservation is the slice of reservation data ConfirmReturn needs to
// alert waiting members.
type PendingReservation struct {
	ID        int64
	UserID    int64
	UserEmail string
	UserName  string
}

// ReminderRow is one loan due soon, with the addressing fields for the
// reminder mail.
type ReminderRow struct {
	BorrowID  int64
	UserEmail string
	UserName  string
	BookName  string
	DueDate   time.Time
}
