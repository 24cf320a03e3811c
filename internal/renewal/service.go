package renewal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/OshadiJayananda/lms-backend/internal/mail"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	store    RenewStore
	notifier notification.Notifier
	mailer   mail.Mailer
	clock    Clock
}

func NewService(db *sql.DB, notifier notification.Notifier, mailer mail.Mailer) *Service {
	return &Service{
		store:    NewStore(db),
		notifier: notifier,
		mailer:   mailer,
		clock:    realClock{},
	}
}

func NewServiceWithDeps(store RenewStore, notifier notification.Notifier, mailer mail.Mailer, clock Clock) *Service {
	return &Service{store: store, notifier: notifier, mailer: mailer, clock: clock}
}

// Request opens a renewal negotiation on an issued loan.
func (s *Service) Request(ctx context.Context, userID, borrowID int64, requestedDate time.Time) (*Detail, error) {
	today := dateOnly(s.clock.Now())
	want := dateOnly(requestedDate)
	if want.Before(today) {
		return nil, apperr.ErrInvalid("requested renewal date cannot be in the past")
	}

	d, err := s.store.ExecCreate(ctx, userID, borrowID, want)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyAdmins(ctx, notification.Input{
		BookID:         d.BookID,
		RenewRequestID: d.ID,
		Title:          "New Renewal Request",
		Message:        fmt.Sprintf("%s requested to renew '%s' until %s.", d.UserName, d.BookName, d.RequestedDate.Format("2006-01-02")),
		Type:           notification.TypeRenewalRequest,
		Metadata: map[string]any{
			"borrow_id":      d.BorrowID,
			"requested_date": d.RequestedDate.Format("2006-01-02"),
		},
	})

	return d, nil
}

// Approve settles a pending request. Passing a proposedDate different from
// the member's ask counter-proposes instead of approving, and the member must
// confirm before the loan changes.
func (s *Service) Approve(ctx context.Context, renewID int64, proposedDate *time.Time) (*Detail, error) {
	var want *time.Time
	if proposedDate != nil {
		v := dateOnly(*proposedDate)
		if v.Before(dateOnly(s.clock.Now())) {
			return nil, apperr.ErrInvalid("proposed renewal date cannot be in the past")
		}
		want = &v
	}

	d, err := s.store.ExecApprove(ctx, renewID, want, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if d.Status == StatusPendingUserReply {
		s.notifier.Notify(ctx, notification.Input{
			UserID:         d.UserID,
			BookID:         d.BookID,
			RenewRequestID: d.ID,
			Title:          "Renewal Date Changed",
			Message: fmt.Sprintf("The librarian proposed %s instead of %s for renewing '%s'. Please confirm or decline the new date.",
				d.AdminProposedDate.Time.Format("2006-01-02"), d.RequestedDate.Format("2006-01-02"), d.BookName),
			Type: notification.TypeRenewalDateChanged,
		})
		return d, nil
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:         d.UserID,
		BookID:         d.BookID,
		RenewRequestID: d.ID,
		Title:          "Renewal Approved",
		Message:        fmt.Sprintf("Your renewal of '%s' has been approved. The new due date is %s.", d.BookName, d.RequestedDate.Format("2006-01-02")),
		Type:           notification.TypeRenewalApproved,
	})
	s.sendMail(ctx, d, mail.KindRenewalApproved)

	return d, nil
}

// Reject closes the request with a note explaining why.
func (s *Service) Reject(ctx context.Context, renewID int64, note string) (*Detail, error) {
	if note == "" {
		note = "Renewal request rejected by the librarian."
	}

	d, err := s.store.ExecReject(ctx, renewID, note, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:         d.UserID,
		BookID:         d.BookID,
		RenewRequestID: d.ID,
		Title:          "Renewal Rejected",
		Message:        fmt.Sprintf("Your renewal of '%s' has been rejected: %s", d.BookName, note),
		Type:           notification.TypeRenewalDeclined,
	})
	s.sendMail(ctx, d, mail.KindRenewalRejected)

	return d, nil
}

// Confirm records the member's answer to a counter-proposed date. Accepting
// moves the loan's due date and marks it Renewed in one transaction.
func (s *Service) Confirm(ctx context.Context, userID, renewID int64, accepted bool) (*Detail, error) {
	d, err := s.store.ExecConfirm(ctx, renewID, userID, accepted, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if accepted {
		s.notifier.NotifyAdmins(ctx, notification.Input{
			BookID:         d.BookID,
			RenewRequestID: d.ID,
			Title:          "Renewal Date Confirmed",
			Message:        fmt.Sprintf("%s accepted the proposed renewal date for '%s'.", d.UserName, d.BookName),
			Type:           notification.TypeRenewalConfirmed,
		})
		s.sendMail(ctx, d, mail.KindRenewalApproved)
	} else {
		s.notifier.NotifyAdmins(ctx, notification.Input{
			BookID:         d.BookID,
			RenewRequestID: d.ID,
			Title:          "Renewal Date Declined",
			Message:        fmt.Sprintf("%s declined the proposed renewal date for '%s'.", d.UserName, d.BookName),
			Type:           notification.TypeRenewalDeclined,
		})
	}

	return d, nil
}

// ExpireStale auto-rejects counter-proposals the member has ignored for two
// weeks. Both the member and the admins hear about each one.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-staleAfter)
	note := "Automatically canceled - renewal confirmation expired after 2 weeks without a response."

	expired, err := s.store.ExecExpireStale(ctx, cutoff, note)
	if err != nil {
		return 0, err
	}

	for _, d := range expired {
		s.notifier.Notify(ctx, notification.Input{
			UserID:         d.UserID,
			BookID:         d.BookID,
			RenewRequestID: d.ID,
			Title:          "Renewal Request Expired",
			Message:        fmt.Sprintf("Your renewal request for '%s' expired because the proposed date was never confirmed.", d.BookName),
			Type:           notification.TypeRenewalExpired,
		})
		s.notifier.NotifyAdmins(ctx, notification.Input{
			BookID:         d.BookID,
			RenewRequestID: d.ID,
			Title:          "Renewal Request Expired",
			Message:        fmt.Sprintf("Renewal request #%d for '%s' by %s expired unanswered.", d.ID, d.BookName, d.UserName),
			Type:           notification.TypeRenewalExpired,
		})
	}

	return len(expired), nil
}

// Destroy removes a settled (approved or rejected) request from the list.
func (s *Service) Destroy(ctx context.Context, renewID int64) error {
	return s.store.ExecDestroy(ctx, renewID)
}

func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]Detail, error) {
	return s.store.ListAll(ctx, limit, offset)
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Detail, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) sendMail(ctx context.Context, d *Detail, kind mail.Kind) {
	p := mail.Payload{
		UserName:      d.UserName,
		BookName:      d.BookName,
		RequestedDate: d.RequestedDate.Format("2006-01-02"),
	}
	switch {
	case kind == mail.KindRenewalRejected && d.CurrentDueDate.Valid:
		// The loan keeps its original due date.
		p.DueDate = d.CurrentDueDate.Time.Format("2006-01-02")
	case d.AdminProposedDate.Valid:
		p.DueDate = d.AdminProposedDate.Time.Format("2006-01-02")
	default:
		p.DueDate = d.RequestedDate.Format("2006-01-02")
	}
	if d.AdminNotes.Valid {
		p.AdminNote = d.AdminNotes.String
	}
	if err := s.mailer.Send(ctx, d.UserEmail, kind, p); err != nil {
		log.Printf("[WARN] mail (%s) for renewal %d not sent: %v", kind, d.ID, err)
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
