package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/models"
)

//
// --- Affiliate Dashboard ---
//

// GetAffiliateDashboard is the handler for GET /v1/affiliate/dashboard
// Returns running totals plus the commission history, newest first.
func (h *Handlers) GetAffiliateDashboard(c *gin.Context) {
	userID := c.MustGet("userID").(int64)

	var affiliate models.Affiliate
	err := h.DB.QueryRow(`
		SELECT id, referral_code, status, total_commission_cents, total_referrals
		FROM affiliates WHERE user_id = ?`, userID,
	).Scan(&affiliate.ID, &affiliate.ReferralCode, &affiliate.Status,
		&affiliate.TotalCommissionCents, &affiliate.TotalReferrals)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Affiliate profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch affiliate profile"})
		return
	}

	rows, err := h.DB.Query(`
		SELECT cr.id, cr.order_id, cr.cafe_id, cf.name, cr.commission_cents, cr.status, cr.created_at
		FROM commission_records cr
		JOIN cafes cf ON cf.id = cr.cafe_id
		WHERE cr.affiliate_id = ?
		ORDER BY cr.created_at DESC
		LIMIT 100`, affiliate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch commission history"})
		return
	}
	defer rows.Close()

	type commissionEntry struct {
		ID              int64     `json:"id"`
		OrderID         int64     `json:"orderId"`
		CafeID          int64     `json:"cafeId"`
		CafeName        string    `json:"cafeName"`
		CommissionCents int64     `json:"commissionCents"`
		Status          string    `json:"status"`
		CreatedAt       time.Time `json:"createdAt"`
	}

	var pendingCents int64
	history := []commissionEntry{}
	for rows.Next() {
		var e commissionEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.CafeID, &e.CafeName,
			&e.CommissionCents, &e.Status, &e.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan commission data"})
			return
		}
		if e.Status == models.CommissionStatusPending {
			pendingCents += e.CommissionCents
		}
		history = append(history, e)
	}

	c.JSON(http.StatusOK, gin.H{
		"referralCode":         affiliate.ReferralCode,
		"status":               affiliate.Status,
		"totalCommissionCents": affiliate.TotalCommissionCents,
		"pendingPayoutCents":   pendingCents,
		"totalReferrals":       affiliate.TotalReferrals,
		"commissions":          history,
	})
}

// GetReferredCafes is the handler for GET /v1/affiliate/cafes
func (h *Handlers) GetReferredCafes(c *gin.Context) {
	userID := c.MustGet("userID").(int64)

	var affiliateID int64
	err := h.DB.QueryRow("SELECT id FROM affiliates WHERE user_id = ?", userID).Scan(&affiliateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Affiliate profile not found"})
		return
	}

	rows, err := h.DB.Query(`
		SELECT c.id, c.name, c.affiliate_window_start, c.affiliate_window_end, c.affiliate_period_orders
		FROM affiliate_referred_cafes arc
		JOIN cafes c ON c.id = arc.cafe_id
		WHERE arc.affiliate_id = ?
		ORDER BY arc.created_at DESC`, affiliateID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch referred cafes"})
		return
	}
	defer rows.Close()

	type referredCafe struct {
		ID           int64      `json:"id"`
		Name         string     `json:"name"`
		WindowStart  *time.Time `json:"windowStart,omitempty"`
		WindowEnd    *time.Time `json:"windowEnd,omitempty"`
		WindowActive bool       `json:"windowActive"`
		PeriodOrders int64      `json:"periodOrders"`
	}

	now := time.Now()
	cafes := []referredCafe{}
	for rows.Next() {
		var rc referredCafe
		var start, end sql.NullTime
		if err := rows.Scan(&rc.ID, &rc.Name, &start, &end, &rc.PeriodOrders); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cafe data"})
			return
		}
		if start.Valid {
			rc.WindowStart = &start.Time
		}
		if end.Valid {
			rc.WindowEnd = &end.Time
			rc.WindowActive = now.Before(end.Time)
		}
		cafes = append(cafes, rc)
	}

	c.JSON(http.StatusOK, cafes)
}

//
// --- Manager: Commission Payouts ---
//

// MarkCommissionPaid is the handler for PATCH /v1/manager/commissions/:id/paid
func (h *Handlers) MarkCommissionPaid(c *gin.Context) {
	commissionID := c.Param("id")

	result, err := h.DB.Exec(`
		UPDATE commission_records
		SET status = ?, paid_at = ?
		WHERE id = ? AND status = ?`,
		models.CommissionStatusPaid, time.Now(), commissionID, models.CommissionStatusPending)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update commission"})
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Commission not found or already paid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Commission marked as paid"})
}
