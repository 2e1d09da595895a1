package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/affiliate"
	"github.com/curbsidehq/curbside-golang/internal/models"
	"github.com/curbsidehq/curbside-golang/internal/notify"
	"github.com/curbsidehq/curbside-golang/internal/orders"
)

// authHoldWindow is how long an unactioned authorization hold survives
// before the sweep releases it.
const authHoldWindow = 72 * time.Hour

//
// --- Merchant Order Transitions ---
//

// AcceptOrder is the handler for PATCH /v1/cafe/orders/:id/accept
// It captures the payment hold and moves the order to preparing. A failed
// capture leaves the order exactly as it was; the merchant retries visibly.
func (h *Handlers) AcceptOrder(c *gin.Context) {
	cafeUserID := c.MustGet("userID").(int64)
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	cafeID, err := getCafeIDForUser(h.DB, cafeUserID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No cafe registered for this account"})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	// Lock the row so a double-tapped accept cannot race itself.
	o, err := getOrderForCafe(tx, orderID, cafeID, true)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	tr, err := orders.Accept(c, h.Gateway, o)
	if err != nil {
		h.respondTransitionError(c, err)
		return
	}

	if err := h.applyTransition(tx, o.ID, tr, "", ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	// The hold is captured: stop the new-order alerts and run attribution.
	// Attribution must never fail the accept; it reports, at most, a log line.
	h.Alerts.Stop(o.ID)
	res := h.Attribution.Attribute(c, affiliate.Input{
		CafeID:           o.CafeID,
		OrderID:          o.ID,
		OrderAmountCents: o.TotalCents,
		PlatformFeeCents: o.PlatformFeeCents,
	})
	if !res.Tracked {
		log.Printf("orders: order %d commission not tracked (%s)", o.ID, res.Reason)
	}

	h.Notifier.Dispatch(notify.Message{
		UserID:   o.CustomerID,
		Template: notify.TemplateOrderAccepted,
		Message:  "Your order has been accepted and is being prepared.",
		OrderID:  o.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"orderId":      o.ID,
		"status":       tr.Status,
		"paymentState": tr.PaymentState,
	})
}

// DeclineOrderInput is the JSON for declining an order.
type DeclineOrderInput struct {
	Reason string `json:"reason" binding:"required"`
}

// DeclineOrder is the handler for PATCH /v1/cafe/orders/:id/decline
// It cancels the hold and rejects the order. Only pending orders can be
// declined; once accepted there is no way back.
func (h *Handlers) DeclineOrder(c *gin.Context) {
	cafeUserID := c.MustGet("userID").(int64)
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var input DeclineOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cafeID, err := getCafeIDForUser(h.DB, cafeUserID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No cafe registered for this account"})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	o, err := getOrderForCafe(tx, orderID, cafeID, true)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	tr, err := orders.Decline(c, h.Gateway, o)
	if err != nil {
		h.respondTransitionError(c, err)
		return
	}

	if err := h.applyTransition(tx, o.ID, tr, "", input.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	h.Alerts.Stop(o.ID)
	h.Trackers.Remove(o.ID)

	h.Notifier.Dispatch(notify.Message{
		UserID:   o.CustomerID,
		Template: notify.TemplateOrderDeclined,
		Message:  fmt.Sprintf("Your order was declined: %s", input.Reason),
		OrderID:  o.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"orderId":      o.ID,
		"status":       tr.Status,
		"paymentState": tr.PaymentState,
	})
}

// MarkOrderReady is the handler for PATCH /v1/cafe/orders/:id/ready
func (h *Handlers) MarkOrderReady(c *gin.Context) {
	h.simpleTransition(c, notify.TemplateOrderReady, "Your order is ready for pickup.",
		func(o *models.Order) (orders.Transition, error) { return orders.MarkReady(o) })
}

// CompleteOrder is the handler for PATCH /v1/cafe/orders/:id/complete
func (h *Handlers) CompleteOrder(c *gin.Context) {
	h.simpleTransition(c, notify.TemplateOrderCompleted, "Order completed. Enjoy!",
		func(o *models.Order) (orders.Transition, error) { return orders.Complete(o) })
}

// TransitionNoteInput is the optional JSON body on ready/complete, a short
// merchant note shown to the customer ("parked pickups use the side door").
type TransitionNoteInput struct {
	Note string `json:"note"`
}

// simpleTransition handles the ready/complete moves, which never touch the
// payment gateway.
func (h *Handlers) simpleTransition(c *gin.Context, template, message string, move func(*models.Order) (orders.Transition, error)) {
	cafeUserID := c.MustGet("userID").(int64)
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	// The note body is optional; an empty request is fine.
	var input TransitionNoteInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cafeID, err := getCafeIDForUser(h.DB, cafeUserID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No cafe registered for this account"})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	o, err := getOrderForCafe(tx, orderID, cafeID, true)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	tr, err := move(o)
	if err != nil {
		h.respondTransitionError(c, err)
		return
	}

	if err := h.applyTransition(tx, o.ID, tr, input.Note, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit transaction"})
		return
	}

	// Terminal state: tear the proximity tracker down so no further
	// location writes can land on this order.
	if tr.Status == models.OrderStatusCompleted {
		h.Trackers.Remove(o.ID)
	}

	if input.Note != "" {
		message = fmt.Sprintf("%s (%s)", message, input.Note)
	}
	h.Notifier.Dispatch(notify.Message{
		UserID:   o.CustomerID,
		Template: template,
		Message:  message,
		OrderID:  o.ID,
	})

	response := gin.H{"orderId": o.ID, "status": tr.Status}
	if input.Note != "" {
		response["statusNote"] = input.Note
	}
	c.JSON(http.StatusOK, response)
}

// applyTransition persists the new status/payment state inside the caller's
// transaction. An empty note or reason leaves the stored column untouched.
func (h *Handlers) applyTransition(tx *sql.Tx, orderID int64, tr orders.Transition, statusNote, rejectionReason string) error {
	now := time.Now()
	var note, reason sql.NullString
	if statusNote != "" {
		note = sql.NullString{String: statusNote, Valid: true}
	}
	if rejectionReason != "" {
		reason = sql.NullString{String: rejectionReason, Valid: true}
	}

	query := `
		UPDATE orders
		SET status = ?, payment_state = ?,
		    status_note = COALESCE(?, status_note),
		    rejection_reason = COALESCE(?, rejection_reason),
		    status_updated_at = ?, updated_at = ?
		WHERE id = ?`

	if _, err := tx.Exec(query, tr.Status, tr.PaymentState, note, reason, now, now, orderID); err != nil {
		return fmt.Errorf("failed to apply transition: %w", err)
	}
	return nil
}

func (h *Handlers) respondTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrNotCaptureEligible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		// Gateway failure: the order is untouched and the merchant must
		// retry the action explicitly.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

//
// --- Order Retrieval ---
//

// GetCafeOrders is the handler for GET /v1/cafe/orders
// It returns the cafe's live orders with the proximity fields the merchant
// screen renders (distance, ETA, approach state).
func (h *Handlers) GetCafeOrders(c *gin.Context) {
	cafeUserID := c.MustGet("userID").(int64)

	cafeID, err := getCafeIDForUser(h.DB, cafeUserID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "No cafe registered for this account"})
		return
	}

	query := "SELECT " + orderColumns + ` FROM orders
		WHERE cafe_id = ? AND status IN (?, ?, ?)
		ORDER BY created_at ASC`

	rows, err := h.DB.Query(query, cafeID,
		models.OrderStatusPending, models.OrderStatusPreparing, models.OrderStatusReady)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	orderList := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.ID, &o.CafeID, &o.CustomerID, &o.Status, &o.PaymentState, &o.PaymentIntentID,
			&o.CurbsideFeeCents, &o.PlatformFeeCents, &o.TotalCents,
			&o.GPSEnabled, &o.CustomerLat, &o.CustomerLng, &o.LocationUpdatedAt,
			&o.DistanceMeters, &o.EtaSeconds, &o.ApproachState, &o.IsArriving,
			&o.StatusNote, &o.RejectionReason, &o.StatusUpdatedAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orderList = append(orderList, o)
	}

	c.JSON(http.StatusOK, gin.H{"orders": orderList})
}

// GetMyOrders is the handler for GET /v1/customer/orders
func (h *Handlers) GetMyOrders(c *gin.Context) {
	customerID := c.MustGet("userID").(int64)

	query := "SELECT " + orderColumns + ` FROM orders
		WHERE customer_id = ?
		ORDER BY created_at DESC
		LIMIT 50`

	rows, err := h.DB.Query(query, customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}
	defer rows.Close()

	orderList := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(
			&o.ID, &o.CafeID, &o.CustomerID, &o.Status, &o.PaymentState, &o.PaymentIntentID,
			&o.CurbsideFeeCents, &o.PlatformFeeCents, &o.TotalCents,
			&o.GPSEnabled, &o.CustomerLat, &o.CustomerLng, &o.LocationUpdatedAt,
			&o.DistanceMeters, &o.EtaSeconds, &o.ApproachState, &o.IsArriving,
			&o.StatusNote, &o.RejectionReason, &o.StatusUpdatedAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan order"})
			return
		}
		orderList = append(orderList, o)
	}

	c.JSON(http.StatusOK, gin.H{"orders": orderList})
}

//
// --- Authorization Expiry Sweep ---
//

// ProcessExpiredAuthorizations releases holds on orders that sat pending for
// longer than the hold window. Runs from the background worker in main.
// A failed cancel is skipped and retried on the next pass.
func (h *Handlers) ProcessExpiredAuthorizations() {
	cutoff := time.Now().Add(-authHoldWindow)

	query := `
		SELECT id, customer_id, payment_intent_id
		FROM orders
		WHERE status = ? AND payment_state IN (?, ?) AND created_at < ?`

	rows, err := h.DB.Query(query, models.OrderStatusPending,
		models.PaymentAuthorizationPending, models.PaymentAuthorized, cutoff)
	if err != nil {
		log.Printf("sweep: failed to list expired orders: %v", err)
		return
	}
	defer rows.Close()

	type expired struct {
		id         int64
		customerID int64
		intentID   sql.NullString
	}
	var stale []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.customerID, &e.intentID); err != nil {
			log.Printf("sweep: failed to scan expired order: %v", err)
			return
		}
		stale = append(stale, e)
	}

	for _, e := range stale {
		if e.intentID.Valid {
			if err := h.Gateway.Cancel(context.Background(), e.intentID.String); err != nil {
				log.Printf("sweep: failed to cancel hold for order %d: %v", e.id, err)
				continue
			}
		}

		update := `
			UPDATE orders
			SET status = ?, payment_state = ?, rejection_reason = ?,
			    status_updated_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`
		now := time.Now()
		if _, err := h.DB.Exec(update,
			models.OrderStatusRejected, models.PaymentCanceled, "authorization hold expired",
			now, now, e.id, models.OrderStatusPending,
		); err != nil {
			log.Printf("sweep: failed to expire order %d: %v", e.id, err)
			continue
		}

		h.Alerts.Stop(e.id)
		h.Notifier.Dispatch(notify.Message{
			UserID:   e.customerID,
			Template: notify.TemplateOrderExpired,
			Message:  "Your order expired before the cafe could respond. The hold on your card has been released.",
			OrderID:  e.id,
		})
		log.Printf("sweep: released expired hold for order %d", e.id)
	}
}
