package middleware

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/auth"
	"github.com/curbsidehq/curbside-golang/internal/models"
)

// AuthMiddleware validates the bearer token and loads the user's role so the
// role gates below don't each hit the database again.
func AuthMiddleware(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			c.Abort()
			return
		}

		userID, err := auth.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		var role string
		if err := db.QueryRow("SELECT role FROM users WHERE id = ?", userID).Scan(&role); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Set("userRole", role)
		c.Next()
	}
}

// requireRole gates a route group to one role. Must run after AuthMiddleware.
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, _ := c.Get("userRole")
		if got != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func CustomerMiddleware() gin.HandlerFunc  { return requireRole(models.RoleCustomer) }
func CafeMiddleware() gin.HandlerFunc      { return requireRole(models.RoleCafe) }
func AffiliateMiddleware() gin.HandlerFunc { return requireRole(models.RoleAffiliate) }
func ManagerMiddleware() gin.HandlerFunc   { return requireRole(models.RoleManager) }
