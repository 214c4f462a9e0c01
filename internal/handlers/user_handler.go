package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adrewards/backend/internal/services/ledger"
	"github.com/adrewards/backend/internal/services/referral"
	"github.com/adrewards/backend/internal/services/user"
	"github.com/adrewards/backend/internal/utils"
)

// UserHandler handles registration and user-facing reads
type UserHandler struct {
	users     *user.UserService
	referrals *referral.ReferralService
	ledger    *ledger.LedgerService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *user.UserService, referrals *referral.ReferralService, ledgerSvc *ledger.LedgerService) *UserHandler {
	return &UserHandler{
		users:     users,
		referrals: referrals,
		ledger:    ledgerSvc,
	}
}

// RegisterRequest is the first-contact payload from the transport
type RegisterRequest struct {
	UserID       int64  `json:"user_id" binding:"required"`
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code"`
}

// Register creates the user on first contact and returns their assigned
// referral code. Re-registering returns the existing record unchanged.
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	u, err := h.users.Register(c.Request.Context(), req.UserID, req.Username, req.ReferralCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       u.ID,
		"username":      u.Username,
		"referral_code": u.ReferralCode,
		"balance_kobo":  u.BalanceKobo,
		"balance":       utils.FormatKobo(u.BalanceKobo),
	})
}

// GetUser returns a user's profile and balance
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	u, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       u.ID,
		"username":      u.Username,
		"referral_code": u.ReferralCode,
		"balance_kobo":  u.BalanceKobo,
		"balance":       utils.FormatKobo(u.BalanceKobo),
	})
}

// GetEarnings returns the user's earnings log
func (h *UserHandler) GetEarnings(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	earnings, err := h.ledger.Earnings(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get earnings"})
		return
	}

	c.JSON(http.StatusOK, earnings)
}

// GetReferrals returns the user's referral count and bonus earnings
func (h *UserHandler) GetReferrals(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	stats, err := h.referrals.StatsFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// parseUserID reads the user id path parameter, writing the error response
// itself when the value is malformed
func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return 0, false
	}
	return userID, true
}
