package affiliate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbsidehq/curbside-golang/internal/models"
)

// fakeStore is an in-memory Store mirroring the conditional-write semantics
// of the MySQL implementation.
type fakeStore struct {
	cafe        *models.Cafe
	affiliates  map[string]*models.Affiliate // keyed by lowercase referral code
	commissions map[int64]*models.CommissionRecord
	referred    map[int64]map[int64]bool // affiliateID -> set of cafeIDs

	getCafeErr error
}

func newFakeStore(cafe *models.Cafe) *fakeStore {
	return &fakeStore{
		cafe:        cafe,
		affiliates:  map[string]*models.Affiliate{},
		commissions: map[int64]*models.CommissionRecord{},
		referred:    map[int64]map[int64]bool{},
	}
}

func (f *fakeStore) addAffiliate(code string, a *models.Affiliate) {
	f.affiliates[code] = a
}

func (f *fakeStore) GetCafe(ctx context.Context, id int64) (*models.Cafe, error) {
	if f.getCafeErr != nil {
		return nil, f.getCafeErr
	}
	if f.cafe == nil || f.cafe.ID != id {
		return nil, ErrNotFound
	}
	c := *f.cafe
	return &c, nil
}

func (f *fakeStore) InitAffiliateWindow(ctx context.Context, cafeID int64, start, end time.Time) (bool, error) {
	if f.cafe.AffiliateWindowStart.Valid {
		return false, nil
	}
	f.cafe.AffiliateWindowStart = sql.NullTime{Time: start, Valid: true}
	f.cafe.AffiliateWindowEnd = sql.NullTime{Time: end, Valid: true}
	f.cafe.AffiliatePeriodOrders = 1
	return true, nil
}

func (f *fakeStore) IncrementPeriodOrders(ctx context.Context, cafeID int64) error {
	f.cafe.AffiliatePeriodOrders++
	return nil
}

func (f *fakeStore) FindActiveAffiliateByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	a, ok := f.affiliates[code]
	if !ok || a.Status != models.AffiliateStatusActive {
		return nil, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) CacheAffiliateID(ctx context.Context, cafeID, affiliateID int64) error {
	if !f.cafe.AffiliateID.Valid {
		f.cafe.AffiliateID = sql.NullInt64{Int64: affiliateID, Valid: true}
	}
	return nil
}

func (f *fakeStore) AddReferredCafe(ctx context.Context, affiliateID, cafeID int64) (bool, error) {
	set, ok := f.referred[affiliateID]
	if !ok {
		set = map[int64]bool{}
		f.referred[affiliateID] = set
	}
	if set[cafeID] {
		return false, nil
	}
	set[cafeID] = true
	for _, a := range f.affiliates {
		if a.ID == affiliateID {
			a.TotalReferrals++
		}
	}
	return true, nil
}

func (f *fakeStore) HasCommissionForOrder(ctx context.Context, orderID int64) (bool, error) {
	_, ok := f.commissions[orderID]
	return ok, nil
}

func (f *fakeStore) CreateCommissionRecord(ctx context.Context, rec *models.CommissionRecord) (bool, error) {
	if _, ok := f.commissions[rec.OrderID]; ok {
		return false, nil
	}
	f.commissions[rec.OrderID] = rec
	return true, nil
}

func (f *fakeStore) AddCommission(ctx context.Context, affiliateID, amountCents int64) error {
	for _, a := range f.affiliates {
		if a.ID == affiliateID {
			a.TotalCommissionCents += amountCents
		}
	}
	return nil
}

func referredCafe() *models.Cafe {
	return &models.Cafe{
		ID:         7,
		Name:       "Corner Roasters",
		Status:     models.CafeStatusApproved,
		ReferredBy: sql.NullString{String: "LATTE10", Valid: true},
	}
}

func activeAffiliate() *models.Affiliate {
	return &models.Affiliate{ID: 3, ReferralCode: "LATTE10", Status: models.AffiliateStatusActive}
}

func engineAt(store Store, now time.Time) *Engine {
	e := NewEngine(store)
	e.now = func() time.Time { return now }
	return e
}

func TestFirstOrderCreatesWindowAndCommission(t *testing.T) {
	store := newFakeStore(referredCafe())
	aff := activeAffiliate()
	store.addAffiliate("latte10", aff)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := engineAt(store, now)

	res := e.Attribute(context.Background(), Input{
		CafeID: 7, OrderID: 100, OrderAmountCents: 699, PlatformFeeCents: 99,
	})

	require.True(t, res.Tracked)
	assert.Equal(t, int64(25), res.CommissionCents)
	assert.Equal(t, int64(3), res.AffiliateID)

	// Window created: end is exactly 30 days after start, counter starts at 1.
	require.True(t, store.cafe.AffiliateWindowStart.Valid)
	assert.Equal(t, now, store.cafe.AffiliateWindowStart.Time)
	assert.Equal(t, now.AddDate(0, 0, 30), store.cafe.AffiliateWindowEnd.Time)
	assert.Equal(t, 1, store.cafe.AffiliatePeriodOrders)

	// Resolved id cached back onto the cafe, referral conversion recorded.
	assert.Equal(t, int64(3), store.cafe.AffiliateID.Int64)
	assert.Equal(t, 1, aff.TotalReferrals)
	assert.Equal(t, int64(25), aff.TotalCommissionCents)

	rec := store.commissions[100]
	require.NotNil(t, rec)
	assert.Equal(t, models.CommissionStatusPending, rec.Status)
	assert.Equal(t, int64(99), rec.PlatformFeeCents)
	assert.Equal(t, int64(699), rec.OrderAmountCents)
}

func TestCommissionRounding(t *testing.T) {
	cases := []struct {
		feeCents int64
		want     int64
	}{
		{99, 25},  // 24.75 rounds up
		{100, 25}, // exact
		{10, 3},   // 2.5 rounds away from zero
		{6, 2},    // 1.5 rounds away from zero
	}
	for _, tc := range cases {
		store := newFakeStore(referredCafe())
		store.addAffiliate("latte10", activeAffiliate())
		e := engineAt(store, time.Now())

		res := e.Attribute(context.Background(), Input{
			CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: tc.feeCents,
		})
		require.True(t, res.Tracked, "fee %d", tc.feeCents)
		assert.Equal(t, tc.want, res.CommissionCents, "fee %d", tc.feeCents)
	}
}

func TestWindowSetExactlyOnce(t *testing.T) {
	store := newFakeStore(referredCafe())
	store.addAffiliate("latte10", activeAffiliate())

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := engineAt(store, start)

	e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: 99})

	// Two more orders a week later: window must not move.
	e.now = func() time.Time { return start.AddDate(0, 0, 7) }
	e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 2, OrderAmountCents: 500, PlatformFeeCents: 99})
	e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 3, OrderAmountCents: 800, PlatformFeeCents: 99})

	assert.Equal(t, start, store.cafe.AffiliateWindowStart.Time)
	assert.Equal(t, start.AddDate(0, 0, 30), store.cafe.AffiliateWindowEnd.Time)
	assert.Equal(t, 3, store.cafe.AffiliatePeriodOrders)
	assert.Len(t, store.commissions, 3)
}

func TestOrderAfterWindowEndNotTracked(t *testing.T) {
	cafe := referredCafe()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cafe.AffiliateID = sql.NullInt64{Int64: 3, Valid: true}
	cafe.AffiliateWindowStart = sql.NullTime{Time: start, Valid: true}
	cafe.AffiliateWindowEnd = sql.NullTime{Time: start.AddDate(0, 0, 30), Valid: true}
	cafe.AffiliatePeriodOrders = 12

	store := newFakeStore(cafe)
	aff := activeAffiliate()
	aff.TotalCommissionCents = 300
	store.addAffiliate("latte10", aff)

	e := engineAt(store, start.AddDate(0, 0, 31))
	res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 50, OrderAmountCents: 699, PlatformFeeCents: 99})

	assert.False(t, res.Tracked)
	assert.Equal(t, ReasonWindowExpired, res.Reason)
	assert.Empty(t, store.commissions)
	assert.Equal(t, int64(300), aff.TotalCommissionCents)
}

func TestDuplicateDeliveryIsNoOp(t *testing.T) {
	store := newFakeStore(referredCafe())
	aff := activeAffiliate()
	store.addAffiliate("latte10", aff)
	e := engineAt(store, time.Now())

	in := Input{CafeID: 7, OrderID: 100, OrderAmountCents: 699, PlatformFeeCents: 99}

	first := e.Attribute(context.Background(), in)
	require.True(t, first.Tracked)

	second := e.Attribute(context.Background(), in)
	assert.False(t, second.Tracked)
	assert.Equal(t, ReasonDuplicate, second.Reason)

	// Nothing double-counted, not even the period order counter.
	assert.Equal(t, int64(25), aff.TotalCommissionCents)
	assert.Equal(t, 1, store.cafe.AffiliatePeriodOrders)
	assert.Len(t, store.commissions, 1)
}

func TestCafeWithoutAffiliateLink(t *testing.T) {
	cafe := referredCafe()
	cafe.ReferredBy = sql.NullString{}
	store := newFakeStore(cafe)
	e := engineAt(store, time.Now())

	res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: 99})

	assert.False(t, res.Tracked)
	assert.Equal(t, ReasonNoLink, res.Reason)
	assert.False(t, store.cafe.AffiliateWindowStart.Valid)
}

func TestUnknownReferralCodeIsSilentNoOp(t *testing.T) {
	store := newFakeStore(referredCafe()) // no affiliates registered
	e := engineAt(store, time.Now())

	res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: 99})

	assert.False(t, res.Tracked)
	assert.Equal(t, ReasonUnknownCode, res.Reason)
	assert.Empty(t, store.commissions)
}

func TestInactiveAffiliateNotMatched(t *testing.T) {
	store := newFakeStore(referredCafe())
	aff := activeAffiliate()
	aff.Status = models.AffiliateStatusInactive
	store.addAffiliate("latte10", aff)
	e := engineAt(store, time.Now())

	res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: 99})

	assert.False(t, res.Tracked)
	assert.Equal(t, ReasonUnknownCode, res.Reason)
}

func TestReferralCodeCaseNormalized(t *testing.T) {
	cafe := referredCafe()
	cafe.ReferredBy = sql.NullString{String: "  Latte10 ", Valid: true}
	store := newFakeStore(cafe)
	store.addAffiliate("latte10", activeAffiliate())
	e := engineAt(store, time.Now())

	res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: 99})
	assert.True(t, res.Tracked)
}

func TestCachedAffiliateIDSkipsLookup(t *testing.T) {
	cafe := referredCafe()
	cafe.AffiliateID = sql.NullInt64{Int64: 3, Valid: true}
	store := newFakeStore(cafe) // lookup would fail: no affiliates registered
	e := engineAt(store, time.Now())

	res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: 99})
	require.True(t, res.Tracked)
	assert.Equal(t, int64(3), res.AffiliateID)
}

func TestZeroCommissionNotTracked(t *testing.T) {
	for _, fee := range []int64{0, 1} { // round(1*0.25) == 0
		store := newFakeStore(referredCafe())
		store.addAffiliate("latte10", activeAffiliate())
		e := engineAt(store, time.Now())

		res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: fee})
		assert.False(t, res.Tracked, "fee %d", fee)
		assert.Equal(t, ReasonZeroCommission, res.Reason)
	}
}

func TestStoreErrorDowngradedToNotTracked(t *testing.T) {
	store := newFakeStore(referredCafe())
	store.getCafeErr = errors.New("connection reset")
	e := engineAt(store, time.Now())

	res := e.Attribute(context.Background(), Input{CafeID: 7, OrderID: 1, OrderAmountCents: 699, PlatformFeeCents: 99})

	assert.False(t, res.Tracked)
	assert.Equal(t, ReasonError, res.Reason)
}
