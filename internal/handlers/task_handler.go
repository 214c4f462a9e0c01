package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/adrewards/backend/internal/ads"
	"github.com/adrewards/backend/internal/services/task"
	"github.com/adrewards/backend/internal/services/verify"
)

// TaskHandler is the inbound half of the transport boundary: ad selection
// and cancellation arrive here and drive the verification engine
type TaskHandler struct {
	catalog  *ads.Catalog
	verifier *verify.Manager
	registry *task.Registry
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(catalog *ads.Catalog, verifier *verify.Manager, registry *task.Registry) *TaskHandler {
	return &TaskHandler{
		catalog:  catalog,
		verifier: verifier,
		registry: registry,
	}
}

// ListAds returns the ads shown in one earning cycle
func (h *TaskHandler) ListAds(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Cycle())
}

// StartTaskRequest is the ad-selected payload from the transport
type StartTaskRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	AdID   string `json:"ad_id" binding:"required"`
}

// StartTask begins a verification for the user. A second attempt while one
// is live gets 409 and changes nothing.
func (h *TaskHandler) StartTask(c *gin.Context) {
	var req StartTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ad, err := h.catalog.Get(req.AdID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ad not found"})
		return
	}

	t, err := h.verifier.Begin(c.Request.Context(), req.UserID, ad)
	if err != nil {
		if errors.Is(err, task.ErrAlreadyActive) {
			c.JSON(http.StatusConflict, gin.H{"error": "you already have an active ad task, finish it first"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start task"})
		return
	}

	c.JSON(http.StatusAccepted, t)
}

// CancelTask aborts the user's live verification. Cancelling when nothing
// is running still clears any orphaned registration, so the call is
// idempotent.
func (h *TaskHandler) CancelTask(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	interrupted := h.verifier.Cancel(userID)
	c.JSON(http.StatusOK, gin.H{"cancelled": interrupted})
}

// GetTask returns the user's live task, if any
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	t, err := h.registry.Active(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get task"})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active task"})
		return
	}

	c.JSON(http.StatusOK, t)
}
