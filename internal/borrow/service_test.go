package borrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OshadiJayananda/lms-backend/internal/mail"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
	"github.com/OshadiJayananda/lms-backend/internal/policy"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubPolicies struct{ p policy.Policy }

func (s stubPolicies) Current(context.Context) (policy.Policy, error) { return s.p, nil }

type fakeNotifier struct {
	user  []notification.Input
	admin []notification.Input
}

func (f *fakeNotifier) Notify(_ context.Context, in notification.Input)      { f.user = append(f.user, in) }
func (f *fakeNotifier) NotifyAdmins(_ context.Context, in notification.Input) { f.admin = append(f.admin, in) }

type fakeMailer struct {
	sent     []mail.Kind
	to       []string
	failAddr string
}

func (f *fakeMailer) Send(_ context.Context, to string, kind mail.Kind, _ mail.Payload) error {
	if to == f.failAddr {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, kind)
	f.to = append(f.to, to)
	return nil
}

// fakeStore scripts store responses and captures the arguments the service
// passes down.
type fakeStore struct {
	BorrowStore

	detail      *Detail
	pending     []PendingReservation
	overdueRows []Detail
	reminders   []ReminderRow
	err         error

	gotLimit  int
	gotFrom   []Status
	gotTo     Status
	gotSet    transitionSet
	gotDueOn  time.Time
	gotMarkAt time.Time
}

func (f *fakeStore) ExecCreateRequest(_ context.Context, _, _ int64, borrowLimit int, _ time.Time) (*Detail, error) {
	f.gotLimit = borrowLimit
	return f.detail, f.err
}

func (f *fakeStore) ExecTransition(_ context.Context, _ int64, from []Status, to Status, set transitionSet) (*Detail, error) {
	f.gotFrom, f.gotTo, f.gotSet = from, to, set
	return f.detail, f.err
}

func (f *fakeStore) ExecConfirmReturn(_ context.Context, _ int64) (*Detail, []PendingReservation, error) {
	return f.detail, f.pending, f.err
}

func (f *fakeStore) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	f.gotMarkAt = now
	return 3, f.err
}

func (f *fakeStore) ListOverdueByUser(_ context.Context, _ int64, _ time.Time) ([]Detail, error) {
	return f.overdueRows, f.err
}

func (f *fakeStore) ListDueOn(_ context.Context, due time.Time) ([]ReminderRow, error) {
	f.gotDueOn = due
	return f.reminders, f.err
}

func newTestService(store *fakeStore, n *fakeNotifier, m *fakeMailer, now time.Time) *Service {
	return NewServiceWithDeps(store, stubPolicies{p: testPolicy(50)}, n, m, fixedClock{t: now})
}

func sampleDetail() *Detail {
	return &Detail{
		Borrow: Borrow{
			ID:     7,
			UserID: 42,
			BookID: 9,
			Status: StatusApproved,
		},
		UserName:  "Alice",
		UserEmail: "alice@example.com",
		BookName:  "The Go Programming Language",
	}
}

func Test_RequestBook_UsesPolicyLimit(t *testing.T) {
	store := &fakeStore{detail: sampleDetail()}
	svc := newTestService(store, &fakeNotifier{}, &fakeMailer{}, day(2025, 1, 1))

	_, err := svc.RequestBook(context.Background(), 42, 9)
	require.NoError(t, err)
	assert.Equal(t, 5, store.gotLimit)
}

func Test_ConfirmIssuance_SetsPolicyDueDate(t *testing.T) {
	now := day(2025, 3, 1)
	store := &fakeStore{detail: sampleDetail()}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := newTestService(store, notifier, mailer, now)

	_, err := svc.ConfirmIssuance(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusApproved}, store.gotFrom)
	assert.Equal(t, StatusIssued, store.gotTo)
	require.NotNil(t, store.gotSet.IssuedDate)
	require.NotNil(t, store.gotSet.DueDate)
	assert.Equal(t, now, *store.gotSet.IssuedDate)
	assert.Equal(t, day(2025, 3, 15), *store.gotSet.DueDate)

	require.Len(t, notifier.user, 1)
	assert.Equal(t, notification.TypeBookIssued, notifier.user[0].Type)
	assert.Equal(t, int64(42), notifier.user[0].UserID)
	assert.Equal(t, []mail.Kind{mail.KindBookIssued}, mailer.sent)
}

func Test_ConfirmReturn_NotifiesEveryWaitingReservation(t *testing.T) {
	d := sampleDetail()
	d.Status = StatusConfirmed
	store := &fakeStore{
		detail: d,
		pending: []PendingReservation{
			{ID: 101, UserID: 201, UserEmail: "a@example.com", UserName: "Anna"},
			{ID: 102, UserID: 202, UserEmail: "b@example.com", UserName: "Ben"},
		},
	}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := newTestService(store, notifier, mailer, day(2025, 3, 1))

	_, err := svc.ConfirmReturn(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, notifier.user, 2)
	assert.Equal(t, int64(201), notifier.user[0].UserID)
	assert.Equal(t, int64(202), notifier.user[1].UserID)
	for _, in := range notifier.user {
		assert.Equal(t, notification.TypeBookAvailable, in.Type)
	}
	assert.Equal(t, []mail.Kind{mail.KindBookAvailable, mail.KindBookAvailable}, mailer.sent)

	require.Len(t, notifier.admin, 2)
	assert.Contains(t, notifier.admin[0].Message, "2 pending reservation")
}

func Test_ApproveRequest_StoreErrorSkipsNotifications(t *testing.T) {
	store := &fakeStore{err: apperr.ErrInvalidState("cannot approve")}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := newTestService(store, notifier, mailer, day(2025, 3, 1))

	_, err := svc.ApproveRequest(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidState))
	assert.Empty(t, notifier.user)
	assert.Empty(t, mailer.sent)
}

func Test_MarkOverdue_UsesClock(t *testing.T) {
	now := day(2025, 4, 1)
	store := &fakeStore{}
	svc := newTestService(store, &fakeNotifier{}, &fakeMailer{}, now)

	n, err := svc.MarkOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, now, store.gotMarkAt)
}

func Test_ListOverdue_ComputesFines(t *testing.T) {
	row := Detail{
		Borrow: Borrow{
			ID:      1,
			UserID:  42,
			Status:  StatusOverdue,
			DueDate: nt(day(2025, 1, 1)),
		},
		BookName: "Some Book",
	}
	store := &fakeStore{overdueRows: []Detail{row}}
	svc := newTestService(store, &fakeNotifier{}, &fakeMailer{}, day(2025, 1, 11))

	items, err := svc.ListOverdue(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "500.00", items[0].Fine)
}

func Test_SendReturnReminders_SkipsFailedDeliveries(t *testing.T) {
	now := day(2025, 5, 1)
	store := &fakeStore{reminders: []ReminderRow{
		{BorrowID: 1, UserEmail: "a@example.com", UserName: "A", BookName: "X", DueDate: day(2025, 5, 3)},
		{BorrowID: 2, UserEmail: "broken@example.com", UserName: "B", BookName: "Y", DueDate: day(2025, 5, 3)},
		{BorrowID: 3, UserEmail: "c@example.com", UserName: "C", BookName: "Z", DueDate: day(2025, 5, 3)},
	}}
	mailer := &fakeMailer{failAddr: "broken@example.com"}
	svc := newTestService(store, &fakeNotifier{}, mailer, now)

	sent, err := svc.SendReturnReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, day(2025, 5, 3), store.gotDueOn)
	assert.Equal(t, []mail.Kind{mail.KindReturnReminder, mail.KindReturnReminder}, mailer.sent)
}
