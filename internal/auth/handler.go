package auth

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callcoach/backend/internal/models"
	"github.com/callcoach/backend/pkg/response"
)

// SessionStore records issued sessions so the periodic sweep can expire them.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo     *Repository
	sessions SessionStore
	jwt      *JWTService
	logger   *zap.Logger
}

// NewHandler creates an auth handler. sessions may be nil to skip session
// bookkeeping.
func NewHandler(repo *Repository, sessions SessionStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, sessions: sessions, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	existing, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	if existing != nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.FullName)
	if err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.issueToken(c.Request.Context(), user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, "Account created successfully", TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup user failed", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	if user == nil || !verifyPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.issueToken(c.Request.Context(), user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

func (h *Handler) issueToken(ctx context.Context, user *models.User) (string, error) {
	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return "", err
	}
	if h.sessions != nil {
		if err := h.sessions.Create(ctx, user.ID, token, time.Now().Add(h.jwt.Expiry())); err != nil {
			h.logger.Warn("record session failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		}
	}
	return token, nil
}
