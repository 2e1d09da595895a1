package handlers

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/curbsidehq/curbside-golang/internal/auth"
	"github.com/curbsidehq/curbside-golang/internal/models"
)

//
// --- Registration & Login ---
//

// RegisterCustomerInput is the JSON for POST /v1/register/customer
type RegisterCustomerInput struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	FullName    string `json:"fullName" binding:"required"`
	PhoneNumber string `json:"phoneNumber"`
}

// RegisterCustomer is the handler for POST /v1/register/customer
func (h *Handlers) RegisterCustomer(c *gin.Context) {
	var input RegisterCustomerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.insertUser(input.Email, input.Password, input.FullName, input.PhoneNumber, models.RoleCustomer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Account created", "userId": userID})
}

// RegisterCafeInput is the JSON for POST /v1/register/cafe
type RegisterCafeInput struct {
	Email            string  `json:"email" binding:"required,email"`
	Password         string  `json:"password" binding:"required,min=8"`
	FullName         string  `json:"fullName" binding:"required"`
	CafeName         string  `json:"cafeName" binding:"required"`
	BusinessRegNo    string  `json:"businessRegNo" binding:"required"`
	Lat              float64 `json:"lat" binding:"required"`
	Lng              float64 `json:"lng" binding:"required"`
	CurbsideFeeCents int64   `json:"curbsideFeeCents" binding:"gte=0"`
	ReferralCode     string  `json:"referralCode"`
}

// RegisterCafe is the handler for POST /v1/register/cafe
// The cafe starts as 'pending' and cannot take orders until a manager
// approves it. The referral code is recorded as-is here; the anti-resignup
// guard runs at approval time.
func (h *Handlers) RegisterCafe(c *gin.Context) {
	var input RegisterCafeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	now := time.Now()
	userResult, err := tx.Exec(`
		INSERT INTO users (role, email, password_hash, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		models.RoleCafe, strings.ToLower(input.Email), mustHash(input.Password), input.FullName, now, now)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
		return
	}
	userID, _ := userResult.LastInsertId()

	var referredBy sql.NullString
	if input.ReferralCode != "" {
		referredBy = sql.NullString{String: strings.TrimSpace(input.ReferralCode), Valid: true}
	}

	cafeResult, err := tx.Exec(`
		INSERT INTO cafes
		(user_id, name, status, business_reg_no, lat, lng, curbside_fee_cents,
		 referred_by, affiliate_period_orders, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		userID, input.CafeName, models.CafeStatusPending, input.BusinessRegNo,
		input.Lat, input.Lng, input.CurbsideFeeCents, referredBy, now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create cafe"})
		return
	}
	cafeID, _ := cafeResult.LastInsertId()

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit registration"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Cafe registered and awaiting approval",
		"userId":  userID,
		"cafeId":  cafeID,
	})
}

// RegisterAffiliateInput is the JSON for POST /v1/register/affiliate
type RegisterAffiliateInput struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"fullName" binding:"required"`
	ReferralCode string `json:"referralCode"`
}

// RegisterAffiliate is the handler for POST /v1/register/affiliate
func (h *Handlers) RegisterAffiliate(c *gin.Context) {
	var input RegisterAffiliateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	code := strings.ToUpper(strings.TrimSpace(input.ReferralCode))
	if code == "" {
		// Short random code from a UUID; collisions bounce off the unique
		// index and surface as a conflict.
		code = strings.ToUpper(uuid.NewString()[:8])
	}

	tx, err := h.DB.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	defer tx.Rollback()

	now := time.Now()
	userResult, err := tx.Exec(`
		INSERT INTO users (role, email, password_hash, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		models.RoleAffiliate, strings.ToLower(input.Email), mustHash(input.Password), input.FullName, now, now)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email is already registered"})
		return
	}
	userID, _ := userResult.LastInsertId()

	_, err = tx.Exec(`
		INSERT INTO affiliates
		(user_id, referral_code, status, total_commission_cents, total_referrals, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, ?)`,
		userID, code, models.AffiliateStatusActive, now, now)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Referral code is already taken"})
		return
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit registration"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Affiliate account created",
		"userId":       userID,
		"referralCode": code,
	})
}

// LoginInput is the JSON for POST /v1/login
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login is the handler for POST /v1/login
func (h *Handlers) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := h.DB.QueryRow(
		"SELECT id, role, password_hash FROM users WHERE email = ?",
		strings.ToLower(input.Email),
	).Scan(&user.ID, &user.Role, &user.PasswordHash)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil || !match {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "role": user.Role})
}

// insertUser creates a user row outside a transaction (customer signup).
func (h *Handlers) insertUser(email, plaintext, fullName, phone, role string) (int64, error) {
	var phoneNumber sql.NullString
	if phone != "" {
		phoneNumber = sql.NullString{String: phone, Valid: true}
	}
	now := time.Now()
	result, err := h.DB.Exec(`
		INSERT INTO users (role, email, password_hash, full_name, phone_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		role, strings.ToLower(email), mustHash(plaintext), fullName, phoneNumber, now, now)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// mustHash hashes a password that already passed binding validation.
func mustHash(plaintext string) string {
	var p models.Password
	if err := p.Set(plaintext); err != nil {
		// bcrypt only fails on absurd input lengths; validation caps those.
		return ""
	}
	return p.Hash
}
