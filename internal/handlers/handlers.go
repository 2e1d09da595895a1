package handlers

import (
	"database/sql"
	"os"
	"strconv"

	"github.com/curbsidehq/curbside-golang/internal/affiliate"
	"github.com/curbsidehq/curbside-golang/internal/alerts"
	"github.com/curbsidehq/curbside-golang/internal/notify"
	"github.com/curbsidehq/curbside-golang/internal/payments"
	"github.com/curbsidehq/curbside-golang/internal/tracking"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB          *sql.DB
	Gateway     payments.Gateway
	Notifier    notify.Dispatcher
	Alerts      *alerts.Repeater
	Attribution *affiliate.Engine
	Trackers    *tracking.Registry
}

// Querier is the common interface for QueryRow, implemented by both *sql.DB
// and *sql.Tx, so helpers can run in or out of a transaction.
type Querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// PlatformFeeCents is the flat per-order fee retained by the platform, and
// the base for affiliate commission. Overridable via the environment.
func PlatformFeeCents() int64 {
	if v := os.Getenv("PLATFORM_FEE_CENTS"); v != "" {
		if cents, err := strconv.ParseInt(v, 10, 64); err == nil && cents >= 0 {
			return cents
		}
	}
	return 99
}
