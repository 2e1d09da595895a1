package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/models"
	"github.com/curbsidehq/curbside-golang/internal/notify"
	"github.com/curbsidehq/curbside-golang/internal/tracking"
)

//
// --- Live Location Handlers ---
//

// ShareLocation is the handler for POST /v1/customer/orders/:id/location
// The device posts raw GPS samples at its own cadence; the tracker decides
// which ones are worth writing to the order record. Samples outside the
// auto-share envelope and throttled samples are computed but not persisted.
func (h *Handlers) ShareLocation(c *gin.Context) {
	customerID := c.MustGet("userID").(int64)
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var sample tracking.Sample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	o, err := getOrderForCustomer(h.DB, orderID, customerID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	// Location only flows while the cafe is working on the order. Anything
	// else is a stale stream that should tear itself down.
	if o.Status != models.OrderStatusPreparing && o.Status != models.OrderStatusReady {
		h.Trackers.Remove(o.ID)
		c.JSON(http.StatusOK, gin.H{"shared": false, "reason": "order is not active"})
		return
	}
	if !o.GPSEnabled {
		// GPS off or permission denied: manual arrival is still available.
		c.JSON(http.StatusOK, gin.H{"shared": false, "reason": "gps not enabled for this order"})
		return
	}

	var cafeLat, cafeLng float64
	if err := h.DB.QueryRow("SELECT lat, lng FROM cafes WHERE id = ?", o.CafeID).Scan(&cafeLat, &cafeLng); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cafe location"})
		return
	}

	tracker := h.Trackers.GetOrCreate(o.ID, cafeLat, cafeLng)
	upd, persist := tracker.Observe(sample)
	if !persist {
		c.JSON(http.StatusOK, gin.H{
			"shared":         false,
			"distanceMeters": upd.DistanceMeters,
			"approachState":  upd.ApproachState,
		})
		return
	}

	var eta sql.NullInt64
	if upd.HasEta {
		eta = sql.NullInt64{Int64: upd.EtaSeconds, Valid: true}
	}
	// is_arriving only ever latches on: a fresh tracker (post-restart, or
	// created after a manual "I'm here") must not clear a confirmed arrival.
	query := `
		UPDATE orders
		SET customer_lat = ?, customer_lng = ?, location_updated_at = ?,
		    distance_meters = ?, eta_seconds = ?, approach_state = ?,
		    is_arriving = (is_arriving OR ?), updated_at = ?
		WHERE id = ? AND status IN (?, ?)`

	_, err = h.DB.Exec(query,
		upd.Lat, upd.Lng, upd.Timestamp,
		upd.DistanceMeters, eta, upd.ApproachState,
		upd.IsArriving, time.Now(),
		o.ID, models.OrderStatusPreparing, models.OrderStatusReady,
	)
	if err != nil {
		// Degrade to "distance unknown"; never fail the order flow over a
		// location write.
		c.JSON(http.StatusOK, gin.H{"shared": false, "reason": "location update not saved"})
		return
	}

	// First transition into arrived alerts the cafe.
	if upd.ApproachState == models.ApproachArrived && o.ApproachState != models.ApproachArrived {
		h.notifyCafeArrival(o)
	}

	c.JSON(http.StatusOK, gin.H{
		"shared":         true,
		"distanceMeters": upd.DistanceMeters,
		"etaSeconds":     eta.Int64,
		"approachState":  upd.ApproachState,
		"isArriving":     upd.IsArriving || o.IsArriving,
	})
}

// ConfirmArrival is the handler for POST /v1/customer/orders/:id/arrived
// The manual "I'm here" override: always available, regardless of GPS
// availability or accuracy.
func (h *Handlers) ConfirmArrival(c *gin.Context) {
	customerID := c.MustGet("userID").(int64)
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	o, err := getOrderForCustomer(h.DB, orderID, customerID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}
	if o.Status != models.OrderStatusPreparing && o.Status != models.OrderStatusReady {
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not active"})
		return
	}

	now := time.Now()
	query := `
		UPDATE orders
		SET approach_state = ?, is_arriving = 1, updated_at = ?
		WHERE id = ? AND is_arriving = 0`

	result, err := h.DB.Exec(query, models.ApproachArrived, now, o.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm arrival"})
		return
	}

	// Alert the cafe only on the first confirmation; pressing the button
	// again is a harmless no-op.
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		h.notifyCafeArrival(o)
	}

	c.JSON(http.StatusOK, gin.H{"orderId": o.ID, "isArriving": true})
}

func (h *Handlers) notifyCafeArrival(o *models.Order) {
	var cafeUserID int64
	if err := h.DB.QueryRow("SELECT user_id FROM cafes WHERE id = ?", o.CafeID).Scan(&cafeUserID); err != nil {
		return
	}
	h.Notifier.Dispatch(notify.Message{
		UserID:   cafeUserID,
		Template: notify.TemplateCustomerArrived,
		Message:  "Your customer has arrived outside.",
		OrderID:  o.ID,
	})
}
