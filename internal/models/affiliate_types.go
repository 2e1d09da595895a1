package models

import "time"

// Affiliate status values.
const (
	AffiliateStatusActive   = "active"
	AffiliateStatusInactive = "inactive"
)

// Commission record status values. A record is created 'pending' and only
// its status is ever mutated afterward, by the payout flow.
const (
	CommissionStatusPending = "pending"
	CommissionStatusPaid    = "paid"
)

// Affiliate is the model for the 'affiliates' table, one row per referral
// partner. Referred cafes live in the 'affiliate_referred_cafes' join table
// so the set semantics are enforced by a unique key.
type Affiliate struct {
	ID                   int64     `json:"id" db:"id"`
	UserID               int64     `json:"userId" db:"user_id"`
	ReferralCode         string    `json:"referralCode" db:"referral_code"`
	Status               string    `json:"status" db:"status"`
	TotalCommissionCents int64     `json:"totalCommissionCents" db:"total_commission_cents"`
	TotalReferrals       int       `json:"totalReferrals" db:"total_referrals"`
	CreatedAt            time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time `json:"updatedAt" db:"updated_at"`
}

// CommissionRecord is the model for the 'commission_records' table.
// At most one record exists per order (unique key on order_id); that unique
// key is also the delivery-idempotency guard for attribution retries.
type CommissionRecord struct {
	ID               int64     `json:"id" db:"id"`
	AffiliateID      int64     `json:"affiliateId" db:"affiliate_id"`
	CafeID           int64     `json:"cafeId" db:"cafe_id"`
	OrderID          int64     `json:"orderId" db:"order_id"`
	OrderAmountCents int64     `json:"orderAmountCents" db:"order_amount_cents"`
	PlatformFeeCents int64     `json:"platformFeeCents" db:"platform_fee_cents"`
	CommissionCents  int64     `json:"commissionCents" db:"commission_cents"`
	Status           string    `json:"status" db:"status"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}
