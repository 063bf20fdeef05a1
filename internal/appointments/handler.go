package appointments

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callcoach/backend/internal/middleware"
	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/pkg/response"
)

// CreateRequest is the body for POST /appointments.
type CreateRequest struct {
	Title        string    `json:"title" binding:"required"`
	CustomerName string    `json:"customerName"`
	ScheduledAt  time.Time `json:"scheduledAt" binding:"required"`
}

// Handler handles appointment HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /appointments.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	a := &models.Appointment{
		UserID:       userID,
		Title:        req.Title,
		CustomerName: req.CustomerName,
		ScheduledAt:  req.ScheduledAt,
	}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		h.logger.Error("create appointment failed", zap.Error(err))
		response.Internal(c, "failed to create appointment")
		return
	}
	response.Created(c, "Appointment created successfully", a)
}

// List handles GET /appointments.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list appointments failed", zap.Error(err))
		response.Internal(c, "failed to list appointments")
		return
	}
	response.OK(c, list)
}
