package registrations

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centre-social/backend/internal/middleware"
	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/pkg/response"
)

// Confirmation outcomes passed to the public confirmation page.
const (
	OutcomeSuccess          = "success"
	OutcomeAlreadyConfirmed = "already-confirmed"
	OutcomeInvalid          = "invalid"
	OutcomeExpired          = "expired"
)

// SubmitRequest is the body for POST /events/:id/registrations.
type SubmitRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required"`
	Message   string `json:"message" binding:"max=2000"`
}

// ConfirmRequest is the body for POST /registrations/confirm.
type ConfirmRequest struct {
	Token string `json:"token" binding:"required"`
}

// StatusRequest is the body for PATCH /admin/registrations/:id/status.
type StatusRequest struct {
	Status models.RegistrationStatus `json:"status" binding:"required"`
}

// StatusResponse is the minimal workflow result returned to public callers.
type StatusResponse struct {
	ID     uuid.UUID                 `json:"id"`
	Status models.RegistrationStatus `json:"status"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc         *Service
	redirectURL string // public confirmation page; outcome is appended as ?status=
	logger      *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, redirectURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, redirectURL: redirectURL, logger: logger}
}

// Submit handles POST /events/:id/registrations.
func (h *Handler) Submit(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, string(KindValidation), "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.Submit(c.Request.Context(), SubmitInput{
		EventID:   eventID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, StatusResponse{ID: reg.ID, Status: reg.Status})
}

// ConfirmLink handles GET /registrations/confirm?token=... from the email and redirects
// to the public confirmation page with a coarse outcome.
func (h *Handler) ConfirmLink(c *gin.Context) {
	_, already, err := h.svc.ConfirmEmail(c.Request.Context(), c.Query("token"))
	outcome := OutcomeSuccess
	switch {
	case err == nil && already:
		outcome = OutcomeAlreadyConfirmed
	case errors.Is(err, ErrTokenExpired):
		outcome = OutcomeExpired
	case err != nil:
		if KindOf(err) == "" {
			h.logger.Error("confirm email failed", zap.Error(err))
		}
		outcome = OutcomeInvalid
	}
	c.Redirect(http.StatusFound, h.redirectURL+"?status="+outcome)
}

// Confirm handles POST /registrations/confirm for clients that confirm over the API.
func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, string(KindValidation), "token required")
		return
	}
	reg, _, err := h.svc.ConfirmEmail(c.Request.Context(), req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, StatusResponse{ID: reg.ID, Status: reg.Status})
}

// List handles GET /admin/registrations?event_id=&status=.
func (h *Handler) List(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.CurrentActor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /admin/registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reg, err := h.svc.Get(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// Stats handles GET /admin/registrations/stats?event_id=.
func (h *Handler) Stats(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	counts, err := h.svc.Stats(c.Request.Context(), middleware.CurrentActor(c), f.EventID)
	if err != nil {
		h.fail(c, err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	response.OK(c, gin.H{"total": total, "by_status": counts})
}

// Export handles GET /admin/registrations/export.csv?event_id=&status=.
func (h *Handler) Export(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), middleware.CurrentActor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}

	filename := fmt.Sprintf("inscriptions-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"id", "event_id", "first_name", "last_name", "email", "phone", "message", "status", "email_confirmed_at", "admin_approved_at", "created_at"})
	for _, r := range list {
		_ = w.Write([]string{
			r.ID.String(), r.EventID.String(), r.FirstName, r.LastName, r.Email, r.Phone, r.Message,
			string(r.Status), formatTime(r.EmailConfirmedAt), formatTime(r.AdminApprovedAt), r.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Error("csv export write failed", zap.Error(err))
	}
}

// Approve handles POST /admin/registrations/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reg, err := h.svc.Approve(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// Reject handles POST /admin/registrations/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	reg, err := h.svc.Reject(c.Request.Context(), id, middleware.CurrentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// ChangeStatus handles PATCH /admin/registrations/:id/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, string(KindValidation), "status required")
		return
	}
	reg, err := h.svc.ChangeStatus(c.Request.Context(), id, middleware.CurrentActor(c), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, reg)
}

// Delete handles DELETE /admin/registrations/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, middleware.CurrentActor(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

var kindStatus = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindEventNotFound:     http.StatusNotFound,
	KindNotFound:          http.StatusNotFound,
	KindDuplicateActive:   http.StatusConflict,
	KindTokenNotFound:     http.StatusNotFound,
	KindTokenExpired:      http.StatusGone,
	KindInvalidTransition: http.StatusConflict,
	KindPermissionDenied:  http.StatusForbidden,
}

func (h *Handler) fail(c *gin.Context, err error) {
	var e *Error
	if errors.As(err, &e) {
		response.Fail(c, kindStatus[e.Kind], string(e.Kind), e.Message)
		return
	}
	h.logger.Error("registration request failed", zap.Error(err), zap.String("path", c.FullPath()))
	response.Internal(c, "internal error")
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (Filter, bool) {
	var f Filter
	if v := c.Query("event_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return f, false
		}
		f.EventID = &id
	}
	f.Status = models.RegistrationStatus(c.Query("status"))
	return f, true
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
