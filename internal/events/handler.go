package events

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/pkg/response"
)

// Directory is the read side of events used by handlers and the registration workflow.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListPublished(ctx context.Context, from time.Time) ([]models.Event, error)
}

// Handler handles public event endpoints.
type Handler struct {
	repo   Directory
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an events handler.
func NewHandler(repo Directory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger, now: time.Now}
}

// List handles GET /events. Past events are included with ?past=true.
func (h *Handler) List(c *gin.Context) {
	var from time.Time
	if c.Query("past") != "true" {
		y, m, d := h.now().Date()
		from = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	list, err := h.repo.ListPublished(c.Request.Context(), from)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id. Unpublished events are hidden.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil || !e.Published {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}
