package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/curbsidehq/curbside-golang/internal/affiliate"
	"github.com/curbsidehq/curbside-golang/internal/alerts"
	"github.com/curbsidehq/curbside-golang/internal/database"
	"github.com/curbsidehq/curbside-golang/internal/handlers"
	"github.com/curbsidehq/curbside-golang/internal/notify"
	"github.com/curbsidehq/curbside-golang/internal/payments"
	"github.com/curbsidehq/curbside-golang/internal/routes"
	"github.com/curbsidehq/curbside-golang/internal/tracking"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	// 1. --- Database Connection ---
	db, err := database.OpenDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 2. --- Payment Gateway ---
	gateway := payments.NewStripeGateway()

	// 3. --- Notifications & New-Order Alerts ---
	notifier := notify.NewStoreDispatcher(db)

	// The repeater re-pings the cafe about an unanswered order until the
	// cafe accepts or declines it.
	reminders := alerts.NewRepeater(alertInterval(), func(orderID int64) {
		var cafeUserID int64
		err := db.QueryRow(`
			SELECT u.id FROM users u
			JOIN cafes c ON c.user_id = u.id
			JOIN orders o ON o.cafe_id = c.id
			WHERE o.id = ?`, orderID).Scan(&cafeUserID)
		if err != nil {
			log.Printf("alerts: could not resolve cafe for order %d: %v", orderID, err)
			return
		}
		notifier.Dispatch(notify.Message{
			UserID:   cafeUserID,
			Template: notify.TemplateOrderReminder,
			Message:  fmt.Sprintf("Order #%d is still waiting for a response.", orderID),
			OrderID:  orderID,
		})
	})
	defer reminders.StopAll()

	// --- Application Setup ---
	app := &handlers.Handlers{
		DB:          db,
		Gateway:     gateway,
		Notifier:    notifier,
		Alerts:      reminders,
		Attribution: affiliate.NewEngine(affiliate.NewMySQLStore(db)),
		Trackers:    tracking.NewRegistry(),
	}

	// --- Background Worker: Expired Authorization Sweep ---
	// Card authorizations lapse after 72 hours. Orders the cafe never
	// answered get canceled and rejected before the hold expires.
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()

		log.Println("Background worker started: sweeping expired authorizations...")

		for range ticker.C {
			app.ProcessExpiredAuthorizations()
		}
	}()

	// --- Router Setup ---
	router := routes.SetupRouter(app)

	// --- Start Server ---
	log.Println("Starting Curbside API server on port 8080...")
	if err := router.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// alertInterval returns how often an unanswered order re-alerts the cafe.
func alertInterval() time.Duration {
	if v := os.Getenv("ORDER_ALERT_INTERVAL_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}
