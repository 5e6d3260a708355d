package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/pkg/response"
	"github.com/centre-social/backend/pkg/utils"
)

// AdminStore is the read side of Repository used by the handler.
type AdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Administrator, error)
	GetByEmail(ctx context.Context, email string) (*models.Administrator, error)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string                     `json:"token"`
	Admin models.AdministratorPublic `json:"admin"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   AdminStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo AdminStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	admin, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.logger.Error("login lookup failed", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, admin.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(admin.ID, admin.Email, string(admin.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("administrator logged in", zap.String("admin_id", admin.ID.String()))
	response.OK(c, TokenResponse{Token: token, Admin: admin.ToPublic()})
}

// Me handles GET /auth/me for the authenticated administrator.
// The ID is read from the key set by middleware.JWT.
func (h *Handler) Me(c *gin.Context) {
	v, _ := c.Get("user_id")
	id, ok := v.(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	admin, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "administrator not found")
		return
	}
	if err != nil {
		h.logger.Error("load administrator failed", zap.Error(err))
		response.Internal(c, "failed to load administrator")
		return
	}
	response.OK(c, admin.ToPublic())
}
