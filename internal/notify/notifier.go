package notify

import (
	"database/sql"
	"log"
	"time"
)

// Notification templates consumed by the SMS/email renderer downstream.
const (
	TemplateOrderPlaced     = "order_placed"
	TemplateOrderAccepted   = "order_accepted"
	TemplateOrderDeclined   = "order_declined"
	TemplateOrderReady      = "order_ready"
	TemplateOrderCompleted  = "order_completed"
	TemplateOrderExpired    = "order_expired"
	TemplateCustomerArrived = "customer_arrived"
	TemplateOrderReminder   = "order_reminder"
)

// Message is one notification to a user about an order.
type Message struct {
	UserID   int64
	Template string
	Message  string
	OrderID  int64
	Link     string
}

// Dispatcher delivers notifications triggered by order transitions and
// arrival signals. Delivery is fire-and-forget: failures are logged and
// never block or roll back the transition that triggered them.
type Dispatcher interface {
	Dispatch(msg Message)
}

// StoreDispatcher writes notifications to the 'notifications' table, where
// the merchant and customer views (and the SMS/email sender) pick them up.
type StoreDispatcher struct {
	DB *sql.DB
}

func NewStoreDispatcher(db *sql.DB) *StoreDispatcher {
	return &StoreDispatcher{DB: db}
}

func (d *StoreDispatcher) Dispatch(msg Message) {
	var orderID sql.NullInt64
	if msg.OrderID != 0 {
		orderID = sql.NullInt64{Int64: msg.OrderID, Valid: true}
	}
	var link sql.NullString
	if msg.Link != "" {
		link = sql.NullString{String: msg.Link, Valid: true}
	}

	query := `
		INSERT INTO notifications
		(user_id, template, message, order_id, link, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`

	_, err := d.DB.Exec(query, msg.UserID, msg.Template, msg.Message, orderID, link, time.Now())
	if err != nil {
		// Logged for visibility only; the triggering transition has already
		// committed and must not notice.
		log.Printf("notify: failed to dispatch %q to user %d: %v", msg.Template, msg.UserID, err)
	}
}
