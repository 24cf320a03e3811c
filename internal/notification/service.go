package notification

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Input describes a notification to be delivered. Zero-valued reference ids
// are stored as NULL.
type Input struct {
	UserID         int64
	BookID         int64
	ReservationID  int64
	RenewRequestID int64
	Title          string
	Message        string
	Type           Type
	Metadata       map[string]any
}

// Notifier is the sink consumed by the borrow, reservation, renewal and
// payment services. Delivery is fire-and-forget: state transitions never fail
// because a notification could not be written.
type Notifier interface {
	Notify(ctx context.Context, in Input)
	NotifyAdmins(ctx context.Context, in Input)
}

type Service struct {
	store  NotificationStore
	admins []int64
	clock  Clock
	id     IDGen
}

func NewService(db *sql.DB, adminUserIDs []int64) *Service {
	return &Service{
		store:  NewStore(db),
		admins: adminUserIDs,
		clock:  realClock{},
		id:     ulidGen{},
	}
}

func NewServiceWithStore(store NotificationStore, adminUserIDs []int64, clock Clock, id IDGen) *Service {
	return &Service{store: store, admins: adminUserIDs, clock: clock, id: id}
}

// Notify writes an in-app notification for one user. Failures are logged and
// swallowed.
func (s *Service) Notify(ctx context.Context, in Input) {
	if err := s.create(ctx, in.UserID, in); err != nil {
		log.Printf("[WARN] notification dropped (user=%d type=%s): %v", in.UserID, in.Type, err)
	}
}

// NotifyAdmins broadcasts to every configured admin recipient.
func (s *Service) NotifyAdmins(ctx context.Context, in Input) {
	if len(s.admins) == 0 {
		log.Printf("[WARN] admin notification dropped (type=%s): no admin recipients configured", in.Type)
		return
	}
	for _, adminID := range s.admins {
		if err := s.create(ctx, adminID, in); err != nil {
			log.Printf("[WARN] admin notification dropped (admin=%d type=%s): %v", adminID, in.Type, err)
		}
	}
}

func (s *Service) create(ctx context.Context, userID int64, in Input) error {
	if !in.Type.Valid() {
		return apperr.ErrInvalid("unknown notification type " + string(in.Type))
	}

	idStr, err := s.id.New()
	if err != nil {
		return err
	}

	var metadata []byte
	if len(in.Metadata) > 0 {
		metadata, err = json.Marshal(in.Metadata)
		if err != nil {
			return err
		}
	}

	n := &Notification{
		ULID:           idStr,
		UserID:         userID,
		BookID:         nullInt64(in.BookID),
		ReservationID:  nullInt64(in.ReservationID),
		RenewRequestID: nullInt64(in.RenewRequestID),
		Title:          in.Title,
		Message:        in.Message,
		Type:           in.Type,
		Metadata:       metadata,
	}
	return s.store.Insert(ctx, n)
}

// ---- query / mutation API used by the handlers ----

func (s *Service) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListByUser(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]Notification, error) {
	return s.store.ListAll(ctx, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, id, userID int64) error {
	n, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing, someone else's, or already read. Re-reading an
		// already-read notification is not an error.
		existing, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil || existing.UserID != userID {
			return apperr.ErrNotFound("notification not found")
		}
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// CreateWatch records that a user wants to hear when a book is back in stock.
func (s *Service) CreateWatch(ctx context.Context, userID, bookID int64, requestedDate time.Time) (*Watch, error) {
	if bookID <= 0 {
		return nil, apperr.ErrInvalid("book id is required")
	}
	w := &Watch{
		UserID:        userID,
		BookID:        bookID,
		RequestedDate: requestedDate,
	}
	if err := s.store.InsertWatch(ctx, w); err != nil {
		return nil, err
	}

	s.NotifyAdmins(ctx, Input{
		BookID:  bookID,
		Title:   "Book Requested While Out of Stock",
		Message: fmt.Sprintf("A member asked to be notified when book #%d is back. Requested by %s.", bookID, requestedDate.Format("2006-01-02")),
		Type:    TypeAdminAlert,
		Metadata: map[string]any{
			"requested_by": userID,
		},
	})
	return w, nil
}

func (s *Service) ListWatches(ctx context.Context, onlyPending bool) ([]Watch, error) {
	return s.store.ListWatches(ctx, onlyPending)
}

func nullInt64(v int64) sql.NullInt64 {
	if v <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
