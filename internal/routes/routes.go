package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/handlers"
	"github.com/curbsidehq/curbside-golang/internal/middleware"
)

// CORSMiddleware allows the web frontends to talk to the API with JWT
// Authorization headers. Must be the first middleware on the router.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// Preflight OPTIONS requests get an empty 204 reply.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(CORSMiddleware())

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register/customer", h.RegisterCustomer)
		v1.POST("/register/cafe", h.RegisterCafe)
		v1.POST("/register/affiliate", h.RegisterAffiliate)
		v1.POST("/login", h.Login)

		// --- Payment Gateway Webhook (Public) ---
		v1.POST("/webhooks/payments", h.HandlePaymentEvent)

		// --- Customer-Only Routes ---
		customer := v1.Group("/customer")
		customer.Use(middleware.AuthMiddleware(h.DB))
		customer.Use(middleware.CustomerMiddleware())
		{
			customer.POST("/checkout", h.Checkout)
			customer.GET("/orders", h.GetMyOrders)
			customer.POST("/orders/:id/location", h.ShareLocation)
			customer.POST("/orders/:id/arrived", h.ConfirmArrival)
		}

		// --- Cafe-Only Routes ---
		cafe := v1.Group("/cafe")
		cafe.Use(middleware.AuthMiddleware(h.DB))
		cafe.Use(middleware.CafeMiddleware())
		{
			cafe.GET("/orders", h.GetCafeOrders)
			cafe.PATCH("/orders/:id/accept", h.AcceptOrder)
			cafe.PATCH("/orders/:id/decline", h.DeclineOrder)
			cafe.PATCH("/orders/:id/ready", h.MarkOrderReady)
			cafe.PATCH("/orders/:id/complete", h.CompleteOrder)
		}

		// --- Affiliate-Only Routes ---
		affiliate := v1.Group("/affiliate")
		affiliate.Use(middleware.AuthMiddleware(h.DB))
		affiliate.Use(middleware.AffiliateMiddleware())
		{
			affiliate.GET("/dashboard", h.GetAffiliateDashboard)
			affiliate.GET("/cafes", h.GetReferredCafes)
		}

		// --- Manager-Only Routes ---
		manager := v1.Group("/manager")
		manager.Use(middleware.AuthMiddleware(h.DB))
		manager.Use(middleware.ManagerMiddleware())
		{
			manager.GET("/cafes/pending", h.GetPendingCafes)
			manager.PATCH("/cafes/:id/approve", h.ApproveCafe)
			manager.PATCH("/cafes/:id/reject", h.RejectCafe)

			manager.PATCH("/commissions/:id/paid", h.MarkCommissionPaid)
		}

		// --- Shared Protected Routes (Any Logged-In Role) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(h.DB))
		{
			auth.GET("/notifications", h.GetMyNotifications)
			auth.PATCH("/notifications/:id/read", h.MarkNotificationAsRead)
		}
	}

	return router
}
