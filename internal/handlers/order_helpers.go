package handlers

import (
	"database/sql"

	"github.com/curbsidehq/curbside-golang/internal/models"
)

// orderColumns is the shared column list for scanning full order rows.
const orderColumns = `
	id, cafe_id, customer_id, status, payment_state, payment_intent_id,
	curbside_fee_cents, platform_fee_cents, total_cents,
	gps_enabled, customer_lat, customer_lng, location_updated_at,
	distance_meters, eta_seconds, approach_state, is_arriving,
	status_note, rejection_reason, status_updated_at, created_at, updated_at`

func scanOrder(row *sql.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.CafeID, &o.CustomerID, &o.Status, &o.PaymentState, &o.PaymentIntentID,
		&o.CurbsideFeeCents, &o.PlatformFeeCents, &o.TotalCents,
		&o.GPSEnabled, &o.CustomerLat, &o.CustomerLng, &o.LocationUpdatedAt,
		&o.DistanceMeters, &o.EtaSeconds, &o.ApproachState, &o.IsArriving,
		&o.StatusNote, &o.RejectionReason, &o.StatusUpdatedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// getOrderForCafe loads an order and verifies it belongs to the given cafe.
// Pass a *sql.Tx with forUpdate=true to lock the row for a transition.
func getOrderForCafe(q Querier, orderID, cafeID int64, forUpdate bool) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = ? AND cafe_id = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return scanOrder(q.QueryRow(query, orderID, cafeID))
}

// getOrderForCustomer loads an order and verifies ownership by the customer.
func getOrderForCustomer(q Querier, orderID, customerID int64) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = ? AND customer_id = ?"
	return scanOrder(q.QueryRow(query, orderID, customerID))
}

// getCafeIDForUser resolves the cafe owned by a merchant account.
func getCafeIDForUser(q Querier, userID int64) (int64, error) {
	var cafeID int64
	err := q.QueryRow("SELECT id FROM cafes WHERE user_id = ?", userID).Scan(&cafeID)
	return cafeID, err
}
