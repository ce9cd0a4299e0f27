package coupon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	byCode map[string]*Coupon
	byID   map[int64]*Coupon
	err    error
}

func newMockRepo(coupons ...*Coupon) *mockCouponRepo {
	m := &mockCouponRepo{
		byCode: make(map[string]*Coupon),
		byID:   make(map[int64]*Coupon),
	}
	for _, c := range coupons {
		m.byCode[strings.ToUpper(c.Code)] = c
		m.byID[c.ID] = c
	}
	return m
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) GetByID(_ context.Context, id int64) (*Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func TestIsUsable(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	c := &Coupon{Code: "JUNE", ValidFrom: from, ValidTo: to, Percent: decimal.NewFromInt(10), Active: true}

	tests := []struct {
		name   string
		coupon *Coupon
		now    time.Time
		want   bool
	}{
		{name: "inside window", coupon: c, now: from.Add(48 * time.Hour), want: true},
		{name: "exactly valid_from is inclusive", coupon: c, now: from, want: true},
		{name: "exactly valid_to is inclusive", coupon: c, now: to, want: true},
		{name: "one second before window", coupon: c, now: from.Add(-time.Second), want: false},
		{name: "one second after window", coupon: c, now: to.Add(time.Second), want: false},
		{
			name:   "inactive inside window",
			coupon: &Coupon{Code: "OFF", ValidFrom: from, ValidTo: to, Active: false},
			now:    from.Add(time.Hour),
			want:   false,
		},
		{name: "nil coupon", coupon: nil, now: from, want: false},
		{
			name:   "non-UTC now compares the same instant",
			coupon: c,
			now:    to.In(time.FixedZone("UTC+3", 3*60*60)),
			want:   true,
		},
		{
			name:   "non-UTC now past the window",
			coupon: c,
			now:    to.Add(time.Second).In(time.FixedZone("UTC-8", -8*60*60)),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUsable(tt.coupon, tt.now))
		})
	}
}

func TestIsUsable_DeactivationWins(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c := &Coupon{
		Code:      "SALE",
		ValidFrom: now.Add(-time.Hour),
		ValidTo:   now.Add(time.Hour),
		Active:    true,
	}
	require.True(t, IsUsable(c, now))

	c.Active = false
	assert.False(t, IsUsable(c, now))
}

func TestValidator_Resolve(t *testing.T) {
	save10 := &Coupon{ID: 1, Code: "Save10", Percent: decimal.NewFromInt(10), Active: true}

	tests := []struct {
		name     string
		repo     *mockCouponRepo
		code     string
		wantCode string
		wantErr  error
	}{
		{name: "exact match", repo: newMockRepo(save10), code: "Save10", wantCode: "Save10"},
		{name: "lower case match", repo: newMockRepo(save10), code: "save10", wantCode: "Save10"},
		{name: "surrounding spaces trimmed", repo: newMockRepo(save10), code: "  SAVE10 ", wantCode: "Save10"},
		{name: "unknown code", repo: newMockRepo(save10), code: "NOPE", wantErr: ErrNotFound},
		{name: "empty code", repo: newMockRepo(save10), code: "   ", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.repo)

			got, err := v.Resolve(context.Background(), tt.code)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestValidator_ResolveRepoError(t *testing.T) {
	v := NewValidator(&mockCouponRepo{err: errors.New("connection reset")})

	_, err := v.Resolve(context.Background(), "SAVE10")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestValidator_ResolveUsable(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	live := &Coupon{
		ID: 1, Code: "LIVE", Active: true, Percent: decimal.NewFromInt(10),
		ValidFrom: fixedNow.Add(-24 * time.Hour), ValidTo: fixedNow.Add(24 * time.Hour),
	}
	expired := &Coupon{
		ID: 2, Code: "OLD", Active: true, Percent: decimal.NewFromInt(10),
		ValidFrom: fixedNow.Add(-48 * time.Hour), ValidTo: fixedNow.Add(-24 * time.Hour),
	}
	inactive := &Coupon{
		ID: 3, Code: "PAUSED", Active: false, Percent: decimal.NewFromInt(10),
		ValidFrom: fixedNow.Add(-24 * time.Hour), ValidTo: fixedNow.Add(24 * time.Hour),
	}

	v := NewValidator(newMockRepo(live, expired, inactive))
	v.now = func() time.Time { return fixedNow }

	got, err := v.ResolveUsable(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	_, err = v.ResolveUsable(context.Background(), "OLD")
	require.ErrorIs(t, err, ErrNotUsable)

	_, err = v.ResolveUsable(context.Background(), "PAUSED")
	require.ErrorIs(t, err, ErrNotUsable)

	_, err = v.ResolveUsable(context.Background(), "GHOST")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidator_Current(t *testing.T) {
	c := &Coupon{ID: 7, Code: "SEVEN", Active: false}
	v := NewValidator(newMockRepo(c))

	got, err := v.Current(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	id := int64(7)
	got, err = v.Current(context.Background(), &id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SEVEN", got.Code, "inactive coupons are still returned, pricing decides usability")

	missing := int64(99)
	got, err = v.Current(context.Background(), &missing)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidator_CurrentRepoError(t *testing.T) {
	v := NewValidator(&mockCouponRepo{err: errors.New("db down")})

	id := int64(1)
	_, err := v.Current(context.Background(), &id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get coupon 1")
}
