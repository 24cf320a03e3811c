package borrow

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/OshadiJayananda/lms-backend/internal/mail"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/policy"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	store    BorrowStore
	policies policy.Provider
	notifier notification.Notifier
	mailer   mail.Mailer
	clock    Clock
}

func NewService(db *sql.DB, policies policy.Provider, notifier notification.Notifier, mailer mail.Mailer) *Service {
	return &Service{
		store:    NewStore(db),
		policies: policies,
		notifier: notifier,
		mailer:   mailer,
		clock:    realClock{},
	}
}

func NewServiceWithDeps(store BorrowStore, policies policy.Provider, notifier notification.Notifier, mailer mail.Mailer, clock Clock) *Service {
	return &Service{store: store, policies: policies, notifier: notifier, mailer: mailer, clock: clock}
}

// RequestBook places a Pending request and takes one copy. All eligibility
// guards run inside the store transaction.
func (s *Service) RequestBook(ctx context.Context, userID, bookID int64) (*Detail, error) {
	p, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ExecCreateRequest(ctx, userID, bookID, p.BorrowLimit, s.clock.Now())
}

// ApproveRequest moves Pending -> Approved and tells the member to come
// collect the book.
func (s *Service) ApproveRequest(ctx context.Context, borrowID int64) (*Detail, error) {
	d, err := s.store.ExecTransition(ctx, borrowID, []Status{StatusPending}, StatusApproved, transitionSet{})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:  d.UserID,
		BookID:  d.BookID,
		Title:   "Book Request Approved",
		Message: fmt.Sprintf("Your request for '%s' has been approved. You can now collect the book from the library.", d.BookName),
		Type:    notification.TypeBookApproved,
	})
	s.sendMail(ctx, d, mail.KindBookApproved)

	return d, nil
}

// RejectRequest moves Pending -> Rejected; the held copy goes back on the
// shelf inside the same transaction.
func (s *Service) RejectRequest(ctx context.Context, borrowID int64) (*Detail, error) {
	d, err := s.store.ExecTransition(ctx, borrowID, []Status{StatusPending}, StatusRejected, transitionSet{})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:  d.UserID,
		BookID:  d.BookID,
		Title:   "Book Request Rejected",
		Message: fmt.Sprintf("Your request for '%s' has been rejected. Try to borrow the book next time.", d.BookName),
		Type:    notification.TypeBookRejected,
	})

	return d, nil
}

// ConfirmIssuance moves Approved -> Issued and stamps the issue and due
// dates from the current policy.
func (s *Service) ConfirmIssuance(ctx context.Context, borrowID int64) (*Detail, error) {
	p, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	due := now.AddDate(0, 0, p.BorrowDurationDays)
	d, err := s.store.ExecTransition(ctx, borrowID, []Status{StatusApproved}, StatusIssued, transitionSet{
		IssuedDate: &now,
		DueDate:    &due,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:  d.UserID,
		BookID:  d.BookID,
		Title:   "Book Issued",
		Message: fmt.Sprintf("The book '%s' has been issued to you. Please return it by %s.", d.BookName, due.Format("2006-01-02")),
		Type:    notification.TypeBookIssued,
	})
	s.sendMail(ctx, d, mail.KindBookIssued)

	return d, nil
}

// ReturnBook marks the member's outstanding loan of the book as Returned.
// The copy stays off the shelf until an admin confirms.
func (s *Service) ReturnBook(ctx context.Context, userID, bookID int64) (*Detail, error) {
	return s.store.ExecReturn(ctx, userID, bookID, s.clock.Now())
}

// ConfirmReturn closes the loan and restores the copy. Members waiting on a
// reservation get notified, and every waiting reservation also raises an
// admin alert.
func (s *Service) ConfirmReturn(ctx context.Context, borrowID int64) (*Detail, error) {
	d, pending, err := s.store.ExecConfirmReturn(ctx, borrowID)
	if err != nil {
		return nil, err
	}

	for _, r := range pending {
		s.notifier.Notify(ctx, notification.Input{
			UserID:        r.UserID,
			BookID:        d.BookID,
			ReservationID: r.ID,
			Title:         fmt.Sprintf("Book Now Available: %s", d.BookName),
			Message:       fmt.Sprintf("The book '%s' is now available. You have a pending reservation for this book.", d.BookName),
			Type:          notification.TypeBookAvailable,
		})
		if err := s.mailer.Send(ctx, r.UserEmail, mail.KindBookAvailable, mail.Payload{
			UserName: r.UserName,
			BookName: d.BookName,
		}); err != nil {
			log.Printf("[WARN] mail (%s) for reservation %d not sent: %v", mail.KindBookAvailable, r.ID, err)
		}
		s.notifier.NotifyAdmins(ctx, notification.Input{
			BookID:        d.BookID,
			ReservationID: r.ID,
			Title:         "Book Available with Pending Reservation",
			Message:       fmt.Sprintf("Book '%s' is now available with %d pending reservation(s).", d.BookName, len(pending)),
			Type:          notification.TypeAdminAlert,
		})
	}

	return d, nil
}

// MarkOverdue flips past-due unpaid loans to Overdue. One bulk statement;
// safe to run on any schedule.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	return s.store.MarkOverdue(ctx, s.clock.Now())
}

// DestroyBorrow removes a borrow record, compensating the inventory if the
// loan was still out.
func (s *Service) DestroyBorrow(ctx context.Context, borrowID int64) error {
	return s.store.ExecDestroy(ctx, borrowID)
}

// Fine returns the loan's current fine under the active policy.
func (s *Service) Fine(ctx context.Context, b Borrow) (string, bool, error) {
	p, err := s.policies.Current(ctx)
	if err != nil {
		return "", false, err
	}
	now := s.clock.Now()
	return CalculateFine(b, p, now).StringFixed(2), IsOverdue(b, now), nil
}

// SendReturnReminders mails every member whose loan is due in exactly two
// days. Per-row failures are logged and skipped.
func (s *Service) SendReturnReminders(ctx context.Context) (int, error) {
	due := s.clock.Now().AddDate(0, 0, 2)
	rows, err := s.store.ListDueOn(ctx, due)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range rows {
		err := s.mailer.Send(ctx, r.UserEmail, mail.KindReturnReminder, mail.Payload{
			UserName: r.UserName,
			BookName: r.BookName,
			DueDate:  r.DueDate.Format("2006-01-02"),
		})
		if err != nil {
			log.Printf("[WARN] return reminder for borrow %d not sent: %v", r.BorrowID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// ---- queries ----

func (s *Service) GetBorrow(ctx context.Context, id int64) (*Detail, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) ListBorrowed(ctx context.Context, userID int64, search string, status Status, limit, offset int) ([]Detail, error) {
	return s.store.ListByUser(ctx, userID, search, status, limit, offset)
}

func (s *Service) ListAllBorrowed(ctx context.Context, search string) ([]Detail, error) {
	return s.store.ListAll(ctx, search)
}

func (s *Service) ListPendingRequests(ctx context.Context, limit, offset int) ([]Detail, error) {
	return s.store.ListByStatuses(ctx, []Status{StatusPending, StatusApproved}, limit, offset)
}

func (s *Service) ListReturned(ctx context.Context, limit, offset int) ([]Detail, error) {
	return s.store.ListByStatuses(ctx, []Status{StatusReturned}, limit, offset)
}

// ListOverdue returns the member's overdue loans with their accrued fines.
func (s *Service) ListOverdue(ctx context.Context, userID int64) ([]OverdueItem, error) {
	p, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	rows, err := s.store.ListOverdueByUser(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	out := make([]OverdueItem, 0, len(rows))
	for _, d := range rows {
		out = append(out, OverdueItem{
			Detail: d,
			Fine:   CalculateFine(d.Borrow, p, now).StringFixed(2),
		})
	}
	return out, nil
}

func (s *Service) sendMail(ctx context.Context, d *Detail, kind mail.Kind) {
	p := mail.Payload{
		UserName: d.UserName,
		BookName: d.BookName,
	}
	if d.DueDate.Valid {
		p.DueDate = d.DueDate.Time.Format("2006-01-02")
	}
	if d.IssuedDate.Valid {
		p.IssuedDate = d.IssuedDate.Time.Format("2006-01-02")
	}
	if err := s.mailer.Send(ctx, d.UserEmail, kind, p); err != nil {
		log.Printf("[WARN] mail (%s) for borrow %d not sent: %v", kind, d.ID, err)
	}
}
