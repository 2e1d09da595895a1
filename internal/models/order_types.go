package models

import (
	"database/sql"
	"time"
)

// Order status values. Transitions only move forward through
// pending -> preparing -> ready -> completed, with pending -> rejected
// as the only alternate exit. A terminal status never reverts.
const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusRejected  = "rejected"
)

// Payment states for the two-phase card hold.
const (
	PaymentAuthorizationPending = "authorization_pending"
	PaymentAuthorized           = "authorized"
	PaymentCaptured             = "captured"
	PaymentCanceled             = "canceled"
)

// Approach states written by the proximity tracker.
const (
	ApproachNone        = "none"
	ApproachApproaching = "approaching"
	ApproachArrived     = "arrived"
)

// Order is the model for the 'orders' table. One row per checkout attempt.
// The row is mutated by merchant actions and by the proximity tracker, which
// touch disjoint fields, and becomes immutable once the status is terminal.
type Order struct {
	ID         int64 `json:"id" db:"id"`
	CafeID     int64 `json:"cafeId" db:"cafe_id"`
	CustomerID int64 `json:"customerId" db:"customer_id"`

	Status       string `json:"status" db:"status"`
	PaymentState string `json:"paymentState" db:"payment_state"`
	// PaymentIntentID is NULL for donation-style orders that never touched
	// the gateway. Transitions on those orders always succeed locally.
	PaymentIntentID sql.NullString `json:"paymentIntentId,omitempty" db:"payment_intent_id"`

	CurbsideFeeCents int64 `json:"curbsideFeeCents" db:"curbside_fee_cents"`
	PlatformFeeCents int64 `json:"platformFeeCents" db:"platform_fee_cents"`
	TotalCents       int64 `json:"totalCents" db:"total_cents"`

	// Live proximity fields, written only by the tracker (or the manual
	// "I'm here" override) and read by the merchant view.
	GPSEnabled        bool            `json:"gpsEnabled" db:"gps_enabled"`
	CustomerLat       sql.NullFloat64 `json:"customerLat,omitempty" db:"customer_lat"`
	CustomerLng       sql.NullFloat64 `json:"customerLng,omitempty" db:"customer_lng"`
	LocationUpdatedAt sql.NullTime    `json:"locationUpdatedAt,omitempty" db:"location_updated_at"`
	DistanceMeters    sql.NullFloat64 `json:"customerLocationDistanceMeters,omitempty" db:"distance_meters"`
	EtaSeconds        sql.NullInt64   `json:"customerEtaSeconds,omitempty" db:"eta_seconds"`
	ApproachState     string          `json:"approachState" db:"approach_state"`
	IsArriving        bool            `json:"isArriving" db:"is_arriving"`

	StatusNote      sql.NullString `json:"statusNote,omitempty" db:"status_note"`
	RejectionReason sql.NullString `json:"rejectionReason,omitempty" db:"rejection_reason"`
	StatusUpdatedAt time.Time      `json:"statusUpdatedAt" db:"status_updated_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// OrderItem is the model for the 'order_items' table. Items are snapshotted
// at checkout time so later menu edits never change a placed order.
type OrderItem struct {
	ID             int64          `json:"id" db:"id"`
	OrderID        int64          `json:"orderId" db:"order_id"`
	Name           string         `json:"name" db:"name"`
	Size           sql.NullString `json:"size,omitempty" db:"size"`
	Milk           sql.NullString `json:"milk,omitempty" db:"milk"`
	UnitPriceCents int64          `json:"unitPriceCents" db:"unit_price_cents"`
	Quantity       int            `json:"quantity" db:"quantity"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
}
