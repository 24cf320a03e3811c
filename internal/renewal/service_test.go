package renewal

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OshadiJayananda/lms-backend/internal/mail"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

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
	RenewStore

	detail  *Detail
	expired []Detail
	err     error

	createCalled bool
	gotRequested time.Time
	gotProposed  *time.Time
	gotNote      string
	gotAccepted  bool
	gotCutoff    time.Time
}

func (f *fakeStore) ExecCreate(_ context.Context, _, _ int64, requestedDate time.Time) (*Detail, error) {
	f.createCalled = true
	f.gotRequested = requestedDate
	return f.detail, f.err
}

func (f *fakeStore) ExecApprove(_ context.Context, _ int64, proposedDate *time.Time, _ time.Time) (*Detail, error) {
	f.gotProposed = proposedDate
	return f.detail, f.err
}

func (f *fakeStore) ExecReject(_ context.Context, _ int64, note string, _ time.Time) (*Detail, error) {
	f.gotNote = note
	return f.detail, f.err
}

func (f *fakeStore) ExecConfirm(_ context.Context, _, _ int64, accepted bool, _ time.Time) (*Detail, error) {
	f.gotAccepted = accepted
	return f.detail, f.err
}

func (f *fakeStore) ExecExpireStale(_ context.Context, cutoff time.Time, note string) ([]Detail, error) {
	f.gotCutoff = cutoff
	f.gotNote = note
	return f.expired, f.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleDetail(status RenewStatus) *Detail {
	return &Detail{
		RenewRequest: RenewRequest{
			ID:            31,
			BorrowID:      7,
			UserID:        42,
			RequestedDate: day(2025, 7, 20),
			Status:        status,
		},
		BookID:    9,
		UserName:  "Alice",
		UserEmail: "alice@example.com",
		BookName:  "The Go Programming Language",
	}
}

func Test_Request_RejectsPastDate(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusPending)}
	svc := NewServiceWithDeps(store, &fakeNotifier{}, &fakeMailer{}, fixedClock{t: day(2025, 7, 10)})

	_, err := svc.Request(context.Background(), 42, 7, day(2025, 7, 9))
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	assert.False(t, store.createCalled)
}

func Test_Request_NotifiesAdminsWithRequestedDate(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusPending)}
	notifier := &fakeNotifier{}
	svc := NewServiceWithDeps(store, notifier, &fakeMailer{}, fixedClock{t: day(2025, 7, 10)})

	_, err := svc.Request(context.Background(), 42, 7, day(2025, 7, 20))
	require.NoError(t, err)

	assert.Equal(t, day(2025, 7, 20), store.gotRequested)
	require.Len(t, notifier.admin, 1)
	assert.Equal(t, notification.TypeRenewalRequest, notifier.admin[0].Type)
	assert.Equal(t, "2025-07-20", notifier.admin[0].Metadata["requested_date"])
}

func Test_Approve_DirectApproval(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusApproved)}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := NewServiceWithDeps(store, notifier, mailer, fixedClock{t: day(2025, 7, 10)})

	d, err := svc.Approve(context.Background(), 31, nil)
	require.NoError(t, err)

	assert.Nil(t, store.gotProposed)
	assert.Equal(t, StatusApproved, d.Status)
	require.Len(t, notifier.user, 1)
	assert.Equal(t, notification.TypeRenewalApproved, notifier.user[0].Type)
	assert.Equal(t, []mail.Kind{mail.KindRenewalApproved}, mailer.sent)
}

func Test_Approve_CounterDateAwaitsConfirmation(t *testing.T) {
	d := sampleDetail(StatusPendingUserReply)
	d.AdminProposedDate = sql.NullTime{Time: day(2025, 7, 25), Valid: true}
	store := &fakeStore{detail: d}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := NewServiceWithDeps(store, notifier, mailer, fixedClock{t: day(2025, 7, 10)})

	proposed := day(2025, 7, 25)
	_, err := svc.Approve(context.Background(), 31, &proposed)
	require.NoError(t, err)

	require.NotNil(t, store.gotProposed)
	assert.Equal(t, day(2025, 7, 25), *store.gotProposed)
	require.Len(t, notifier.user, 1)
	assert.Equal(t, notification.TypeRenewalDateChanged, notifier.user[0].Type)
	assert.Empty(t, mailer.sent)
}

func Test_Approve_RejectsPastProposedDate(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusPending)}
	svc := NewServiceWithDeps(store, &fakeNotifier{}, &fakeMailer{}, fixedClock{t: day(2025, 7, 10)})

	proposed := day(2025, 7, 1)
	_, err := svc.Approve(context.Background(), 31, &proposed)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func Test_Confirm_AcceptNotifiesAdminsAndMailsMember(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusApproved)}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := NewServiceWithDeps(store, notifier, mailer, fixedClock{t: day(2025, 7, 10)})

	_, err := svc.Confirm(context.Background(), 42, 31, true)
	require.NoError(t, err)

	assert.True(t, store.gotAccepted)
	require.Len(t, notifier.admin, 1)
	assert.Equal(t, notification.TypeRenewalConfirmed, notifier.admin[0].Type)
	assert.Equal(t, []mail.Kind{mail.KindRenewalApproved}, mailer.sent)
}

func Test_Confirm_DeclineSkipsMail(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusRejected)}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := NewServiceWithDeps(store, notifier, mailer, fixedClock{t: day(2025, 7, 10)})

	_, err := svc.Confirm(context.Background(), 42, 31, false)
	require.NoError(t, err)

	assert.False(t, store.gotAccepted)
	require.Len(t, notifier.admin, 1)
	assert.Equal(t, notification.TypeRenewalDeclined, notifier.admin[0].Type)
	assert.Empty(t, mailer.sent)
}

func Test_Reject_DefaultsNote(t *testing.T) {
	store := &fakeStore{detail: sampleDetail(StatusRejected)}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}
	svc := NewServiceWithDeps(store, notifier, mailer, fixedClock{t: day(2025, 7, 10)})

	_, err := svc.Reject(context.Background(), 31, "")
	require.NoError(t, err)

	assert.NotEmpty(t, store.gotNote)
	require.Len(t, notifier.user, 1)
	assert.Equal(t, notification.TypeRenewalDeclined, notifier.user[0].Type)
	assert.Equal(t, []mail.Kind{mail.KindRenewalRejected}, mailer.sent)
}

func Test_ExpireStale_NotifiesBothSides(t *testing.T) {
	now := day(2025, 8, 1)
	store := &fakeStore{expired: []Detail{
		*sampleDetail(StatusRejected),
		*sampleDetail(StatusRejected),
	}}
	notifier := &fakeNotifier{}
	svc := NewServiceWithDeps(store, notifier, &fakeMailer{}, fixedClock{t: now})

	n, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, now.Add(-14*24*time.Hour), store.gotCutoff)
	assert.True(t, strings.Contains(store.gotNote, "expired"), "note %q should mention expiry", store.gotNote)

	require.Len(t, notifier.user, 2)
	require.Len(t, notifier.admin, 2)
	for _, in := range notifier.user {
		assert.Equal(t, notification.TypeRenewalExpired, in.Type)
	}
}
