package reservation

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/OshadiJayananda/lms-backend/internal/mail"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/policy"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	store    ReservationStore
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

func NewServiceWithDeps(store ReservationStore, policies policy.Provider, notifier notification.Notifier, mailer mail.Mailer, clock Clock) *Service {
	return &Service{store: store, policies: policies, notifier: notifier, mailer: mailer, clock: clock}
}

// Reserve places a hold on a book for a future pickup date. A member may
// hold at most one active (pending or approved) reservation per book; the
// store enforces that under the book row lock.
func (s *Service) Reserve(ctx context.Context, userID, bookID int64, reservationDate time.Time) (*Detail, error) {
	today := dateOnly(s.clock.Now())
	want := dateOnly(reservationDate)
	if want.Before(today) {
		return nil, apperr.ErrInvalid("reservation date cannot be in the past")
	}

	expiry := want.AddDate(0, 0, expiryDays)
	d, err := s.store.ExecCreate(ctx, userID, bookID, want, expiry)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyAdmins(ctx, notification.Input{
		BookID:        d.BookID,
		ReservationID: d.ID,
		Title:         "New Book Reservation",
		Message:       fmt.Sprintf("%s reserved '%s' for %s.", d.UserName, d.BookName, d.ReservationDate.Format("2006-01-02")),
		Type:          notification.TypeReservationPending,
	})

	return d, nil
}

// Approve confirms a copy will be held for the member. Fails with NO_COPIES
// when the last copy disappeared since the reservation was placed.
func (s *Service) Approve(ctx context.Context, reservationID int64) (*Detail, error) {
	d, err := s.store.ExecApprove(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:        d.UserID,
		BookID:        d.BookID,
		ReservationID: d.ID,
		Title:         "Reservation Approved",
		Message:       fmt.Sprintf("Your reservation for '%s' has been approved. Please confirm whether you still want the book.", d.BookName),
		Type:          notification.TypeReservationApproved,
	})

	return d, nil
}

// Reject turns down the reservation. When other members are still waiting on
// the same book an admin alert is raised so the next one in line gets looked
// at.
func (s *Service) Reject(ctx context.Context, reservationID int64) (*Detail, error) {
	d, morePending, err := s.store.ExecReject(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:        d.UserID,
		BookID:        d.BookID,
		ReservationID: d.ID,
		Title:         "Reservation Rejected",
		Message:       fmt.Sprintf("Your reservation for '%s' has been rejected.", d.BookName),
		Type:          notification.TypeReservationRejected,
	})

	if morePending {
		s.notifier.NotifyAdmins(ctx, notification.Input{
			BookID:  d.BookID,
			Title:   "Pending Reservations Waiting",
			Message: fmt.Sprintf("'%s' still has pending reservations after one was rejected.", d.BookName),
			Type:    notification.TypeAdminAlert,
		})
	}

	return d, nil
}

// Respond handles the member's answer to an approved reservation. Confirming
// converts the hold straight into an Issued loan with the policy due date and
// removes the reservation; declining frees the promised copy for the next
// member in line.
func (s *Service) Respond(ctx context.Context, userID, reservationID int64, confirmed bool) (*Detail, error) {
	d, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, apperr.ErrNotFound("reservation not found")
	}
	if d.Status != StatusApproved {
		return nil, apperr.ErrInvalidState("reservation is not awaiting your response")
	}

	if !confirmed {
		return s.decline(ctx, reservationID)
	}
	return s.confirm(ctx, reservationID)
}

func (s *Service) confirm(ctx context.Context, reservationID int64) (*Detail, error) {
	p, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	due := now.AddDate(0, 0, p.BorrowDurationDays)
	d, borrowID, err := s.store.ExecIssue(ctx, reservationID, now, due)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Input{
		UserID:  d.UserID,
		BookID:  d.BookID,
		Title:   "Book Ready for Pickup",
		Message: fmt.Sprintf("'%s' has been issued to you from your reservation. It is due on %s.", d.BookName, due.Format("2006-01-02")),
		Type:    notification.TypeBookReady,
	})
	s.notifier.NotifyAdmins(ctx, notification.Input{
		BookID:  d.BookID,
		Title:   "Reserved Book Issued",
		Message: fmt.Sprintf("%s confirmed their reservation for '%s'; borrow #%d created.", d.UserName, d.BookName, borrowID),
		Type:    notification.TypeBookIssued,
	})

	if err := s.mailer.Send(ctx, d.UserEmail, mail.KindBookIssued, mail.Payload{
		UserName:   d.UserName,
		BookName:   d.BookName,
		IssuedDate: now.Format("2006-01-02"),
		DueDate:    due.Format("2006-01-02"),
	}); err != nil {
		log.Printf("[WARN] mail (%s) for reservation %d not sent: %v", mail.KindBookIssued, d.ID, err)
	}

	return d, nil
}

func (s *Service) decline(ctx context.Context, reservationID int64) (*Detail, error) {
	d, morePending, err := s.store.ExecDecline(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyAdmins(ctx, notification.Input{
		BookID:  d.BookID,
		Title:   "Reservation Declined",
		Message: fmt.Sprintf("%s declined their approved reservation for '%s'.", d.UserName, d.BookName),
		Type:    notification.TypeAdminAlert,
	})
	if morePending {
		s.notifier.NotifyAdmins(ctx, notification.Input{
			BookID:  d.BookID,
			Title:   "Pending Reservations Waiting",
			Message: fmt.Sprintf("'%s' still has pending reservations after one was declined.", d.BookName),
			Type:    notification.TypeAdminAlert,
		})
	}

	return d, nil
}

// Destroy removes a rejected reservation from the list. Active reservations
// cannot be deleted.
func (s *Service) Destroy(ctx context.Context, reservationID int64) error {
	return s.store.ExecDestroy(ctx, reservationID)
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

func (s *Service) CountPending(ctx context.Context, bookID int64) (int, error) {
	return s.store.CountPendingByBook(ctx, bookID)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
