package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetMyNotifications is the handler for GET /v1/notifications
func (h *Handlers) GetMyNotifications(c *gin.Context) {
	userID := c.MustGet("userID").(int64)

	rows, err := h.DB.Query(`
		SELECT id, template, message, order_id, link, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT 50`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}
	defer rows.Close()

	type notificationView struct {
		ID        int64     `json:"id"`
		Template  string    `json:"template"`
		Message   string    `json:"message"`
		OrderID   *int64    `json:"orderId,omitempty"`
		Link      *string   `json:"link,omitempty"`
		IsRead    bool      `json:"isRead"`
		CreatedAt time.Time `json:"createdAt"`
	}

	notifications := []notificationView{}
	for rows.Next() {
		var n notificationView
		var orderID sql.NullInt64
		var link sql.NullString
		if err := rows.Scan(&n.ID, &n.Template, &n.Message, &orderID, &link, &n.IsRead, &n.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan notification"})
			return
		}
		if orderID.Valid {
			n.OrderID = &orderID.Int64
		}
		if link.Valid {
			n.Link = &link.String
		}
		notifications = append(notifications, n)
	}

	c.JSON(http.StatusOK, notifications)
}

// MarkNotificationAsRead is the handler for PATCH /v1/notifications/:id/read
func (h *Handlers) MarkNotificationAsRead(c *gin.Context) {
	userID := c.MustGet("userID").(int64)
	notificationID := c.Param("id")

	result, err := h.DB.Exec(
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?",
		notificationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
