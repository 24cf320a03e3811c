package reservation

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

type fakeMailer struct{ sent []mail.Kind }

func (f *fakeMailer) Send(_ context.Context, _ string, kind mail.Kind, _ mail.Payload) error {
	f.sent = append(f.sent, kind)
	return nil
}

type fakeStore struct {
	ReservationStore

	detail      *Detail
	morePending bool
	err         error

	createCalled  bool
	gotResDate    time.Time
	gotExpiry     time.Time
	gotIssuedDate time.Time
	gotDueDate    time.Time
	declined      bool
	issued        bool
}

func (f *fakeStore) GetByID(_ context.Context, _ int64) (*Detail, error) {
	return f.detail, f.err
}

func (f *fakeStore) ExecCreate(_ context.Context, _, _ int64, reservationDate, expiryDate time.Time) (*Detail, error) {
	f.createCalled = true
	f.gotResDate, f.gotExpiry = reservationDate, expiryDate
	return f.detail, f.err
}

func (f *fakeStore) ExecIssue(_ context.Context, _ int64, issuedDate, dueDate time.Time) (*Detail, int64, error) {
	f.issued = true
	f.gotIssuedDate, f.gotDueDate = issuedDate, dueDate
	return f.detail, 55, f.err
}

func (f *fakeStore) ExecDecline(_ context.Context, _ int64) (*Detail, bool, error) {
	f.declined = true
	return f.detail, f.morePending, f.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(store *fakeStore, n *fakeNotifier, m *fakeMailer, now time.Time) *Service {
	p := policy.Policy{BorrowLimit: 5, BorrowDurationDays: 14}
	return NewServiceWithDeps(store, stubPolicies{p: p}, n, m, fixedClock{t: now})
}

func sampleDetail(status ReservationStatus) *Detail {
	return &Detail{
		Reservation: Reservation{
			ID:              11,
			UserID:          42,
			BookID:          9,
			ReservationDate: day(2025, 6, 1),
			ExpiryDate:      day(2025, 6, 8),
			Status:          status,
		},
		UserName:  "Alice",
		UserEmail: "alice@example.com",
		BookName:  "The Go Programming Language",
	}
}

func Test_Reserve_RejectsPastDate(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusPending)}
	svc := newTestService(store, &fakeNotifier{}, &fakeMailer{}, day(2025, 6, 10))

	_, err := svc.Reserve(context.Background(), 42, 9, day(2025, 6, 9))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	assert.False(t, store.createCalled)
}

func Test_Reserve_SetsSevenDayExpiry(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusPending)}
	notifier := &fakeNotifier{}
	svc := newTestService(store, notifier, &fakeMailer{}, day(2025, 6, 1))

	_, err := svc.Reserve(context.Background(), 42, 9, day(2025, 6, 1))
	require.NoError(t, err)

	assert.Equal(t, day(2025, 6, 1), store.gotResDate)
	assert.Equal(t, day(2025, 6, 8), store.gotExpiry)

	require.Len(t, notifier.admin, 1)
	assert.Equal(t, notification.TypeReservationPending, notifier.admin[0].Type)
}

func Test_Respond_WrongUserLooksMissing(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusApproved)}
	svc := newTestService(store, &fakeNotifier{}, &fakeMailer{}, day(2025, 6, 2))

	_, err := svc.Respond(context.Background(), 999, 11, true)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	assert.False(t, store.issued)
}

func Test_Respond_RequiresApprovedState(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusPending)}
	svc := newTestService(store, &fakeNotifier{}, &fakeMailer{}, day(2025, 6, 2))

	_, err := svc.Respond(context.Background(), 42, 11, true)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidState))
}

func Test_Respond_ConfirmIssuesWithPolicyDueDate(t *testing.T) {
	now := day(2025, 6, 2)
	store := &fakeStore{detail: sampleDetail(StatusApproved)}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := newTestService(store, notifier, mailer, now)

	_, err := svc.Respond(context.Background(), 42, 11, true)
	require.NoError(t, err)

	assert.True(t, store.issued)
	assert.Equal(t, now, store.gotIssuedDate)
	assert.Equal(t, day(2025, 6, 16), store.gotDueDate)

	require.Len(t, notifier.user, 1)
	assert.Equal(t, notification.TypeBookReady, notifier.user[0].Type)
	require.Len(t, notifier.admin, 1)
	assert.Equal(t, notification.TypeBookIssued, notifier.admin[0].Type)
	assert.Equal(t, []mail.Kind{mail.KindBookIssued}, mailer.sent)
}

func Test_Respond_DeclineAlertsAdmins(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusApproved), morePending: true}
	notifier := &fakeNotifier{}
	svc := newTestService(store, notifier, &fakeMailer{}, day(2025, 6, 2))

	_, err := svc.Respond(context.Background(), 42, 11, false)
	require.NoError(t, err)

	assert.True(t, store.declined)
	assert.False(t, store.issued)
	require.Len(t, notifier.admin, 2)
	assert.Contains(t, notifier.admin[1].Message, "still has pending reservations")
}

func Test_Respond_StoreErrorPropagates(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusApproved), err: errors.New("db gone")}
	svc := newTestService(store, &fakeNotifier{}, &fakeMailer{}, day(2025, 6, 2))

	_, err := svc.Respond(context.Background(), 42, 11, true)
	require.Error(t, err)
}
