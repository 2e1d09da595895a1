package models

import (
	"database/sql"
	"time"
)

// Cafe status values (manager approval flow).
const (
	CafeStatusPending  = "pending"
	CafeStatusApproved = "approved"
	CafeStatusRejected = "rejected"
)

// Cafe is the model for the 'cafes' table.
//
// The affiliate fields follow a strict lifecycle: ReferredBy is set at signup
// (and suppressed by the anti-resignup guard at approval time), the commission
// window is set exactly once on the cafe's first order after having an
// affiliate link, and AffiliateID is a write-through cache of the referral
// code lookup that is never invalidated once set.
type Cafe struct {
	ID     int64  `json:"id" db:"id"`
	UserID int64  `json:"userId" db:"user_id"` // The owning merchant account
	Name   string `json:"name" db:"name"`
	Status string `json:"status" db:"status"`

	// Business registration number, the anti-resignup guard key. A cafe whose
	// number matches a previously-approved cafe gets its referral linkage
	// suppressed at approval time.
	BusinessRegNo   string       `json:"businessRegNo" db:"business_reg_no"`
	FirstApprovedAt sql.NullTime `json:"firstApprovedAt,omitempty" db:"first_approved_at"`

	// Fixed pickup coordinates used by the proximity tracker.
	Lat float64 `json:"lat" db:"lat"`
	Lng float64 `json:"lng" db:"lng"`

	// Per-order fee paid entirely to the merchant.
	CurbsideFeeCents int64 `json:"curbsideFeeCents" db:"curbside_fee_cents"`

	// Set by a manager when the signup is rejected.
	RejectionReason sql.NullString `json:"rejectionReason,omitempty" db:"rejection_reason"`

	// Affiliate linkage and the 30-day commission window.
	ReferredBy            sql.NullString `json:"referredBy,omitempty" db:"referred_by"`
	AffiliateID           sql.NullInt64  `json:"affiliateId,omitempty" db:"affiliate_id"`
	AffiliateWindowStart  sql.NullTime   `json:"affiliateWindowStart,omitempty" db:"affiliate_window_start"`
	AffiliateWindowEnd    sql.NullTime   `json:"affiliateWindowEnd,omitempty" db:"affiliate_window_end"`
	AffiliatePeriodOrders int            `json:"affiliatePeriodOrders" db:"affiliate_period_orders"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
