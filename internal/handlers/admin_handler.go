package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adrewards/backend/internal/config"
	"github.com/adrewards/backend/internal/services/ledger"
	"github.com/adrewards/backend/internal/services/task"
	"github.com/adrewards/backend/internal/utils"
)

// AdminHandler serves the operator surface: login, manual adjustments,
// balance resets and visibility into outstanding tasks
type AdminHandler struct {
	cfg      *config.Config
	ledger   *ledger.LedgerService
	registry *task.Registry
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cfg *config.Config, ledgerSvc *ledger.LedgerService, registry *task.Registry) *AdminHandler {
	return &AdminHandler{
		cfg:      cfg,
		ledger:   ledgerSvc,
		registry: registry,
	}
}

// LoginRequest carries the admin credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges admin credentials for a JWT
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if h.cfg.Admin.PasswordHash == "" ||
		req.Username != h.cfg.Admin.Username ||
		!utils.CheckPasswordHash(req.Password, h.cfg.Admin.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	expiration := time.Duration(h.cfg.JWT.Expiration) * time.Hour
	token, err := utils.GenerateAdminToken(req.Username, h.cfg.JWT.Secret, expiration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int64(expiration.Seconds()),
	})
}

// AdjustmentRequest carries a manual balance change
type AdjustmentRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	AmountKobo int64  `json:"amount_kobo" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
}

// CreateAdjustment applies a signed manual balance change, recorded in the
// adjustment log
func (h *AdminHandler) CreateAdjustment(c *gin.Context) {
	var req AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	adjustment, err := h.ledger.Adjust(c.Request.Context(), req.UserID, req.AmountKobo, req.Reason)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "debit exceeds current balance"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply adjustment"})
		return
	}

	c.JSON(http.StatusCreated, adjustment)
}

// ResetUser zeroes a user's balance. The identity and earning history are
// retained; the reset shows up as a compensating adjustment.
func (h *AdminHandler) ResetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	adjustment, err := h.ledger.Reset(c.Request.Context(), userID, "admin reset")
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset balance"})
		return
	}

	if adjustment == nil {
		c.JSON(http.StatusOK, gin.H{"message": "balance already zero"})
		return
	}
	c.JSON(http.StatusOK, adjustment)
}

// ListTasks returns every live task registration, for reconciliation
func (h *AdminHandler) ListTasks(c *gin.Context) {
	tasks, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// ReconcileUser recomputes a user's balance from the ledger logs and
// reports it next to the stored figure
func (h *AdminHandler) ReconcileUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	stored, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
		return
	}

	computed, err := h.ledger.Reconcile(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reconcile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       userID,
		"stored_kobo":   stored,
		"computed_kobo": computed,
		"consistent":    stored == computed,
	})
}
