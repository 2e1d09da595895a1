package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/models"
)

// CheckoutItemInput is one drink line in the checkout request.
type CheckoutItemInput struct {
	Name           string `json:"name" binding:"required"`
	Size           string `json:"size"`
	Milk           string `json:"milk"`
	UnitPriceCents int64  `json:"unitPriceCents" binding:"required,gt=0"`
	Quantity       int    `json:"quantity" binding:"required,gt=0"`
}

// CheckoutInput is the JSON for POST /v1/customer/checkout
type CheckoutInput struct {
	CafeID     int64               `json:"cafeId" binding:"required"`
	GPSEnabled bool                `json:"gpsEnabled"`
	Items      []CheckoutItemInput `json:"items" binding:"required,min=1,dive"`
}

// Checkout is the handler for POST /v1/customer/checkout
// It places the authorization hold first, then creates the order as
// pending / authorization_pending. The hold turns into a transfer only when
// the merchant accepts; unactioned holds are swept after 72 hours.
func (h *Handlers) Checkout(c *gin.Context) {
	// 1. --- Get Customer ID ---
	customerID := c.MustGet("userID").(int64)

	// 2. --- Bind & Validate JSON ---
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 3. --- Load the Cafe (must be approved) ---
	var cafeStatus string
	var curbsideFeeCents int64
	err := h.DB.QueryRow(
		"SELECT status, curbside_fee_cents FROM cafes WHERE id = ?", input.CafeID,
	).Scan(&cafeStatus, &curbsideFeeCents)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cafe not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cafe"})
		return
	}
	if cafeStatus != models.CafeStatusApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "Cafe is not accepting orders"})
		return
	}

	// 4. --- Compute Totals ---
	platformFeeCents := PlatformFeeCents()
	var itemsTotalCents int64
	for _, item := range input.Items {
		itemsTotalCents += item.UnitPriceCents * int64(item.Quantity)
	}
	totalCents := itemsTotalCents + curbsideFeeCents + platformFeeCents

	// 5. --- Authorize the Hold ---
	// Funds are reserved, not transferred; capture happens on accept.
	authz, err := h.Gateway.Authorize(c, totalCents, "usd", map[string]string{
		"cafeId": strconv.FormatInt(input.CafeID, 10),
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("Payment authorization failed: %v", err)})
		return
	}

	// 6. --- Create the Order & Snapshot Items ---
	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	now := time.Now()
	orderQuery := `
		INSERT INTO orders
		(cafe_id, customer_id, status, payment_state, payment_intent_id,
		 curbside_fee_cents, platform_fee_cents, total_cents,
		 gps_enabled, approach_state, is_arriving,
		 status_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`

	result, err := tx.Exec(orderQuery,
		input.CafeID, customerID, models.OrderStatusPending, models.PaymentAuthorizationPending,
		authz.PaymentIntentID, curbsideFeeCents, platformFeeCents, totalCents,
		input.GPSEnabled, models.ApproachNone, now, now, now,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get new order ID"})
		return
	}

	itemQuery := `
		INSERT INTO order_items (order_id, name, size, milk, unit_price_cents, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, item := range input.Items {
		var size, milk sql.NullString
		if item.Size != "" {
			size = sql.NullString{String: item.Size, Valid: true}
		}
		if item.Milk != "" {
			milk = sql.NullString{String: item.Milk, Valid: true}
		}
		if _, err := tx.Exec(itemQuery, orderID, item.Name, size, milk, item.UnitPriceCents, item.Quantity, now); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save order item"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit order"})
		return
	}

	// 7. --- Send Success Response ---
	// The cafe is alerted once the gateway confirms the hold (webhook).
	c.JSON(http.StatusCreated, gin.H{
		"orderId":         orderID,
		"status":          models.OrderStatusPending,
		"paymentState":    models.PaymentAuthorizationPending,
		"paymentIntentId": authz.PaymentIntentID,
		"totalCents":      totalCents,
	})
}
