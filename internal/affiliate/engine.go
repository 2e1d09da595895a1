package affiliate

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/curbsidehq/curbside-golang/internal/models"
)

// Commission policy: 25% of the flat platform fee, for 30 calendar days after
// the referred cafe's first order.
const (
	commissionRate = 0.25
	windowDays     = 30
)

// ErrNotFound is returned by Store lookups when the record does not exist.
var ErrNotFound = errors.New("affiliate: record not found")

// Reasons reported on an untracked attribution. Callers can tell
// "not applicable" apart from "failed" without parsing errors.
const (
	ReasonDuplicate      = "duplicate delivery"
	ReasonNoLink         = "no affiliate link"
	ReasonWindowExpired  = "window expired"
	ReasonUnknownCode    = "unknown referral code"
	ReasonZeroCommission = "zero commission"
	ReasonError          = "internal error"
)

// Input is what the payment flow hands the engine after a successful capture.
type Input struct {
	CafeID           int64
	OrderID          int64
	OrderAmountCents int64
	PlatformFeeCents int64
}

// Result is the explicit outcome of an attribution run.
type Result struct {
	Tracked         bool
	Reason          string
	AffiliateID     int64
	CommissionCents int64
}

// Store is the document-store surface the engine needs. Every write is a
// single-record conditional update; there are no multi-record transactions.
type Store interface {
	GetCafe(ctx context.Context, id int64) (*models.Cafe, error)

	// InitAffiliateWindow sets the commission window and resets the period
	// order counter to 1, but only if the window has never been set. Returns
	// whether this call was the one that set it.
	InitAffiliateWindow(ctx context.Context, cafeID int64, start, end time.Time) (bool, error)

	IncrementPeriodOrders(ctx context.Context, cafeID int64) error

	// FindActiveAffiliateByCode matches a case-normalized referral code
	// against active affiliates only. Returns ErrNotFound on no match.
	FindActiveAffiliateByCode(ctx context.Context, code string) (*models.Affiliate, error)

	// CacheAffiliateID writes the resolved affiliate id onto the cafe record.
	// Write-through cache, never invalidated once set.
	CacheAffiliateID(ctx context.Context, cafeID, affiliateID int64) error

	// AddReferredCafe records the cafe in the affiliate's referred set.
	// Returns whether the cafe was newly added.
	AddReferredCafe(ctx context.Context, affiliateID, cafeID int64) (bool, error)

	HasCommissionForOrder(ctx context.Context, orderID int64) (bool, error)

	// CreateCommissionRecord inserts the record unless one already exists for
	// the same order (unique key on order_id). Returns whether it was created.
	CreateCommissionRecord(ctx context.Context, rec *models.CommissionRecord) (bool, error)

	AddCommission(ctx context.Context, affiliateID, amountCents int64) error
}

// Engine computes and records affiliate commissions. It is invoked once per
// order after capture succeeds and must never fail the payment flow: every
// internal error is downgraded to an untracked result.
type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Attribute runs the commission algorithm for one captured order.
func (e *Engine) Attribute(ctx context.Context, in Input) Result {
	res, err := e.attribute(ctx, in)
	if err != nil {
		// The capture has already committed funds; attribution must not
		// surface a failure into that flow.
		log.Printf("affiliate: attribution for order %d failed: %v", in.OrderID, err)
		return Result{Tracked: false, Reason: ReasonError}
	}
	return res
}

func (e *Engine) attribute(ctx context.Context, in Input) (Result, error) {
	// Delivery idempotency guard: a redelivered capture event for an order
	// that already earned commission must not double-count anything, not
	// even the period order counter.
	dup, err := e.store.HasCommissionForOrder(ctx, in.OrderID)
	if err != nil {
		return Result{}, err
	}
	if dup {
		return Result{Tracked: false, Reason: ReasonDuplicate}, nil
	}

	cafe, err := e.store.GetCafe(ctx, in.CafeID)
	if err != nil {
		return Result{}, err
	}

	if !cafe.AffiliateID.Valid && !cafe.ReferredBy.Valid {
		return Result{Tracked: false, Reason: ReasonNoLink}, nil
	}

	now := e.now()

	// The window is set exactly once, on the cafe's first order after having
	// an affiliate link, and never recomputed afterward.
	if !cafe.AffiliateWindowStart.Valid {
		start := now
		end := now.AddDate(0, 0, windowDays)
		set, err := e.store.InitAffiliateWindow(ctx, cafe.ID, start, end)
		if err != nil {
			return Result{}, err
		}
		if set {
			cafe.AffiliateWindowStart.Time, cafe.AffiliateWindowStart.Valid = start, true
			cafe.AffiliateWindowEnd.Time, cafe.AffiliateWindowEnd.Valid = end, true
			cafe.AffiliatePeriodOrders = 1
		} else {
			// Lost a concurrent first-order race; the window exists now.
			cafe, err = e.store.GetCafe(ctx, in.CafeID)
			if err != nil {
				return Result{}, err
			}
			if err := e.store.IncrementPeriodOrders(ctx, cafe.ID); err != nil {
				return Result{}, err
			}
		}
	} else {
		if err := e.store.IncrementPeriodOrders(ctx, cafe.ID); err != nil {
			return Result{}, err
		}
	}

	if now.After(cafe.AffiliateWindowEnd.Time) {
		return Result{Tracked: false, Reason: ReasonWindowExpired}, nil
	}

	affiliateID := cafe.AffiliateID.Int64
	if !cafe.AffiliateID.Valid {
		code := strings.ToLower(strings.TrimSpace(cafe.ReferredBy.String))
		aff, err := e.store.FindActiveAffiliateByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			// A code matching no active affiliate is a silent no-op.
			log.Printf("affiliate: cafe %d carries unknown referral code %q", cafe.ID, code)
			return Result{Tracked: false, Reason: ReasonUnknownCode}, nil
		}
		if err != nil {
			return Result{}, err
		}
		affiliateID = aff.ID

		if err := e.store.CacheAffiliateID(ctx, cafe.ID, affiliateID); err != nil {
			return Result{}, err
		}
		if _, err := e.store.AddReferredCafe(ctx, affiliateID, cafe.ID); err != nil {
			return Result{}, err
		}
	}

	commission := int64(math.Round(float64(in.PlatformFeeCents) * commissionRate))
	if commission <= 0 {
		return Result{Tracked: false, Reason: ReasonZeroCommission}, nil
	}

	rec := &models.CommissionRecord{
		AffiliateID:      affiliateID,
		CafeID:           cafe.ID,
		OrderID:          in.OrderID,
		OrderAmountCents: in.OrderAmountCents,
		PlatformFeeCents: in.PlatformFeeCents,
		CommissionCents:  commission,
		Status:           models.CommissionStatusPending,
		CreatedAt:        now,
	}
	created, err := e.store.CreateCommissionRecord(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !created {
		// A concurrent duplicate delivery won the insert.
		return Result{Tracked: false, Reason: ReasonDuplicate}, nil
	}

	if err := e.store.AddCommission(ctx, affiliateID, commission); err != nil {
		return Result{}, err
	}

	return Result{Tracked: true, AffiliateID: affiliateID, CommissionCents: commission}, nil
}
