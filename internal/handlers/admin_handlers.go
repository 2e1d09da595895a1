package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/models"
)

//
// --- Manager: Cafe Approval ---
//

// GetPendingCafes is the handler for GET /v1/manager/cafes/pending
func (h *Handlers) GetPendingCafes(c *gin.Context) {
	rows, err := h.DB.Query(`
		SELECT c.id, c.user_id, c.name, c.status, c.business_reg_no, c.lat, c.lng,
		       c.curbside_fee_cents, c.referred_by, c.created_at, u.email, u.full_name
		FROM cafes c
		JOIN users u ON u.id = c.user_id
		WHERE c.status = ?
		ORDER BY c.created_at ASC`, models.CafeStatusPending)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pending cafes"})
		return
	}
	defer rows.Close()

	type pendingCafe struct {
		ID               int64      `json:"id"`
		UserID           int64      `json:"userId"`
		Name             string     `json:"name"`
		Status           string     `json:"status"`
		BusinessRegNo    string     `json:"businessRegNo"`
		Lat              float64    `json:"lat"`
		Lng              float64    `json:"lng"`
		CurbsideFeeCents int64      `json:"curbsideFeeCents"`
		ReferredBy       *string    `json:"referredBy,omitempty"`
		CreatedAt        time.Time  `json:"createdAt"`
		OwnerEmail       string     `json:"ownerEmail"`
		OwnerName        string     `json:"ownerName"`
	}

	cafes := []pendingCafe{}
	for rows.Next() {
		var pc pendingCafe
		var referredBy sql.NullString
		if err := rows.Scan(&pc.ID, &pc.UserID, &pc.Name, &pc.Status, &pc.BusinessRegNo,
			&pc.Lat, &pc.Lng, &pc.CurbsideFeeCents, &referredBy, &pc.CreatedAt,
			&pc.OwnerEmail, &pc.OwnerName); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cafe data"})
			return
		}
		if referredBy.Valid {
			pc.ReferredBy = &referredBy.String
		}
		cafes = append(cafes, pc)
	}

	c.JSON(http.StatusOK, cafes)
}

// ApproveCafe is the handler for PATCH /v1/manager/cafes/:id/approve
// If the same business registration number was previously approved on
// another cafe, the referral code is cleared before approval so a shop
// cannot re-sign under a new account to restart an affiliate window.
func (h *Handlers) ApproveCafe(c *gin.Context) {
	cafeID := c.Param("id")

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	// 1. --- Lock the cafe row ---
	var status, businessRegNo string
	err = tx.QueryRow(
		"SELECT status, business_reg_no FROM cafes WHERE id = ? FOR UPDATE",
		cafeID,
	).Scan(&status, &businessRegNo)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cafe not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cafe"})
		return
	}
	if status != models.CafeStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Cafe is not pending approval"})
		return
	}

	// 2. --- Anti-resignup guard ---
	var previouslyApproved bool
	err = tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM cafes
			WHERE business_reg_no = ? AND id != ? AND first_approved_at IS NOT NULL
		)`, businessRegNo, cafeID).Scan(&previouslyApproved)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check registration history"})
		return
	}
	if previouslyApproved {
		if _, err := tx.Exec("UPDATE cafes SET referred_by = NULL WHERE id = ?", cafeID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear referral"})
			return
		}
	}

	// 3. --- Approve; first_approved_at is set once and never rewritten ---
	now := time.Now()
	_, err = tx.Exec(`
		UPDATE cafes
		SET status = ?, first_approved_at = COALESCE(first_approved_at, ?), updated_at = ?
		WHERE id = ?`,
		models.CafeStatusApproved, now, now, cafeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve cafe"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit approval"})
		return
	}

	response := gin.H{"message": "Cafe approved"}
	if previouslyApproved {
		response["referralCleared"] = true
	}
	c.JSON(http.StatusOK, response)
}

// RejectCafeInput is the JSON for PATCH /v1/manager/cafes/:id/reject
type RejectCafeInput struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectCafe is the handler for PATCH /v1/manager/cafes/:id/reject
func (h *Handlers) RejectCafe(c *gin.Context) {
	cafeID := c.Param("id")

	var input RejectCafeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.DB.Exec(`
		UPDATE cafes
		SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		models.CafeStatusRejected, input.Reason, time.Now(), cafeID, models.CafeStatusPending)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject cafe"})
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Cafe not found or not pending"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cafe rejected"})
}
