package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OshadiJayananda/lms-backend/internal/platform/apperr"
)

type fakePolicyStore struct {
	p       *Policy
	inserts int
	updates int
}

func (f *fakePolicyStore) Get(_ context.Context) (*Policy, error) { return f.p, nil }

func (f *fakePolicyStore) Insert(_ context.Context, p *Policy) error {
	f.inserts++
	cp := *p
	cp.ID = 1
	f.p = &cp
	return nil
}

func (f *fakePolicyStore) Update(_ context.Context, p *Policy) error {
	f.updates++
	cp := *p
	f.p = &cp
	return nil
}

func Test_Current_CreatesDefaultsOnFirstUse(t *testing.T) {
	store := &fakePolicyStore{}
	svc := NewServiceWithStore(store)

	p, err := svc.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, p.BorrowLimit)
	assert.Equal(t, 14, p.BorrowDurationDays)
	assert.Equal(t, "50.00", p.FinePerDay.StringFixed(2))
	assert.Equal(t, 1, store.inserts)

	// Second read hits the stored row, no second insert.
	_, err = svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.inserts)
}

func Test_Update_ValidatesInput(t *testing.T) {
	svc := NewServiceWithStore(&fakePolicyStore{})

	tests := []struct {
		name string
		in   UpdatePolicyRequest
	}{
		{"zero_limit", UpdatePolicyRequest{BorrowLimit: 0, BorrowDurationDays: 14, FinePerDay: "50.00"}},
		{"zero_duration", UpdatePolicyRequest{BorrowLimit: 5, BorrowDurationDays: 0, FinePerDay: "50.00"}},
		{"negative_fine", UpdatePolicyRequest{BorrowLimit: 5, BorrowDurationDays: 14, FinePerDay: "-1"}},
		{"garbage_fine", UpdatePolicyRequest{BorrowLimit: 5, BorrowDurationDays: 14, FinePerDay: "fifty"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), tc.in)
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
		})
	}
}

func Test_Update_PersistsNewValues(t *testing.T) {
	store := &fakePolicyStore{}
	svc := NewServiceWithStore(store)

	p, err := svc.Update(context.Background(), UpdatePolicyRequest{
		BorrowLimit:        3,
		BorrowDurationDays: 21,
		FinePerDay:         "25.50",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, p.BorrowLimit)
	assert.Equal(t, 21, p.BorrowDurationDays)
	assert.Equal(t, "25.50", p.FinePerDay.StringFixed(2))
	assert.Equal(t, 1, store.updates)
}

func Test_Reset_RestoresDefaults(t *testing.T) {
	store := &fakePolicyStore{}
	svc := NewServiceWithStore(store)

	_, err := svc.Update(context.Background(), UpdatePolicyRequest{
		BorrowLimit:        2,
		BorrowDurationDays: 7,
		FinePerDay:         "10.00",
	})
	require.NoError(t, err)

	p, err := svc.Reset(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, p.BorrowLimit)
	assert.Equal(t, 14, p.BorrowDurationDays)
	assert.Equal(t, "50.00", p.FinePerDay.StringFixed(2))
}
