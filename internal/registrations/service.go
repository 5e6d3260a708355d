package registrations

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centre-social/backend/internal/metrics"
	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/internal/notifications"
	"github.com/centre-social/backend/pkg/utils"
)

const (
	maxNameLength    = 100
	maxMessageLength = 2000
)

// EventLookup resolves the event a registration targets. A nil event means it does not exist.
type EventLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Links holds what the workflow needs to address and link its notifications.
type Links struct {
	AppName     string
	ConfirmURL  string // absolute URL of GET /registrations/confirm
	AdminURL    string // absolute URL of the dashboard registration list
	AdminEmails []string
}

// SubmitInput is a public registration request after transport decoding.
type SubmitInput struct {
	EventID   uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Message   string
}

// Service runs the registration confirmation workflow:
// PENDING -> EMAIL_CONFIRMED -> CONFIRMED, with CANCELLED reachable from any non-terminal state.
// State changes commit before notifications are attempted, and notification failures never undo them.
type Service struct {
	store    Store
	events   EventLookup
	tokens   *Tokens
	notifier notifications.Notifier
	links    Links
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the workflow. notifier and m may be nil.
func NewService(store Store, events EventLookup, notifier notifications.Notifier, links Links, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		events:   events,
		notifier: notifier,
		links:    links,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
	s.tokens = NewTokens(store, func() time.Time { return s.now() })
	return s
}

// Submit creates a PENDING registration with a fresh confirmation token and emails the link.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Registration, error) {
	reg, err := s.submit(ctx, in)
	s.observe("submit", err)
	return reg, err
}

func (s *Service) submit(ctx context.Context, in SubmitInput) (*models.Registration, error) {
	reg, err := normalize(in)
	if err != nil {
		return nil, err
	}
	ev, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("lookup event: %w", err)
	}
	if ev == nil || !ev.Published {
		return nil, ErrEventNotFound
	}

	token, expiry, err := s.tokens.Issue()
	if err != nil {
		return nil, err
	}
	reg.Status = models.StatusPending
	reg.EmailToken = &token
	reg.EmailTokenExpiry = &expiry
	err = s.store.Create(ctx, reg)
	if errors.Is(err, ErrDuplicateActiveRegistration) && s.supersedeExpired(ctx, reg.EventID, reg.Email) {
		err = s.store.Create(ctx, reg)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(models.StatusPending))
	s.logger.Info("registration submitted",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", ev.ID.String()))

	data := s.notificationData(reg, ev)
	data.Link = s.links.ConfirmURL + "?token=" + url.QueryEscape(token)
	s.notify(ctx, notifications.KindUserConfirmRequest, []string{reg.Email}, reg, data)
	return reg, nil
}

// supersedeExpired cancels the active registration for (eventID, email) when it is still
// PENDING and its link has expired, so that a new submission can replace it. It reports
// whether the caller should retry the insert.
func (s *Service) supersedeExpired(ctx context.Context, eventID uuid.UUID, email string) bool {
	old, err := s.store.GetActive(ctx, eventID, email)
	if err != nil {
		return false
	}
	if old.Status != models.StatusPending || old.EmailToken == nil || old.EmailTokenExpiry == nil || !s.now().After(*old.EmailTokenExpiry) {
		return false
	}
	_, err = s.store.Update(ctx, old.ID, Update{
		From:  []models.RegistrationStatus{models.StatusPending},
		To:    models.StatusCancelled,
		Token: *old.EmailToken,
		At:    s.now(),
	})
	if err != nil && !errors.Is(err, errNoMatch) {
		s.logger.Warn("cancel expired registration failed", zap.Error(err), zap.String("registration_id", old.ID.String()))
		return false
	}
	if err == nil {
		s.metrics.Transition(string(models.StatusCancelled))
		s.logger.Info("expired pending registration superseded", zap.String("registration_id", old.ID.String()))
	}
	return true
}

// ConfirmEmail consumes a confirmation token and moves its registration to EMAIL_CONFIRMED.
// already is true when the registration had left PENDING before this call; nothing changes then.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (reg *models.Registration, already bool, err error) {
	reg, already, err = s.confirmEmail(ctx, token)
	s.observe("confirm_email", err)
	return reg, already, err
}

func (s *Service) confirmEmail(ctx context.Context, token string) (*models.Registration, bool, error) {
	reg, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return nil, false, err
	}
	switch reg.Status {
	case models.StatusEmailConfirmed, models.StatusConfirmed:
		return reg, true, nil
	case models.StatusCancelled:
		return nil, false, ErrTokenNotFound
	}

	updated, err := s.store.Update(ctx, reg.ID, Update{
		From:         []models.RegistrationStatus{models.StatusPending},
		To:           models.StatusEmailConfirmed,
		Token:        token,
		At:           s.now(),
		ConfirmEmail: true,
	})
	if errors.Is(err, errNoMatch) {
		// Consumed by a concurrent request between Verify and Update.
		return nil, false, ErrTokenNotFound
	}
	if err != nil {
		return nil, false, err
	}
	s.metrics.Transition(string(models.StatusEmailConfirmed))
	s.logger.Info("registration email confirmed", zap.String("registration_id", updated.ID.String()))

	ev := s.eventFor(ctx, updated)
	data := s.notificationData(updated, ev)
	data.Link = s.links.AdminURL + "/" + updated.ID.String()
	s.notify(ctx, notifications.KindAdminReviewRequest, s.links.AdminEmails, updated, data)
	return updated, false, nil
}

// Approve moves an EMAIL_CONFIRMED registration to CONFIRMED and tells the attendee.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Registration, error) {
	reg, err := s.approve(ctx, id, actor)
	s.observe("approve", err)
	return reg, err
}

func (s *Service) approve(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Registration, error) {
	if !models.HasPermission(actor.Role, models.WorkflowRoles...) {
		return nil, ErrPermissionDenied
	}
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.StatusEmailConfirmed {
		return nil, transitionError("email must be confirmed before approval")
	}
	adminID := actor.ID
	updated, err := s.store.Update(ctx, id, Update{
		From:       []models.RegistrationStatus{models.StatusEmailConfirmed},
		To:         models.StatusConfirmed,
		At:         s.now(),
		ApprovedBy: &adminID,
	})
	if errors.Is(err, errNoMatch) {
		return nil, transitionError("registration changed while being approved")
	}
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(models.StatusConfirmed))
	s.logger.Info("registration approved",
		zap.String("registration_id", id.String()),
		zap.String("admin_id", adminID.String()))

	ev := s.eventFor(ctx, updated)
	s.notify(ctx, notifications.KindUserFinalConfirmation, []string{updated.Email}, updated, s.notificationData(updated, ev))
	return updated, nil
}

// Reject cancels a PENDING or EMAIL_CONFIRMED registration. Rejecting a cancelled registration is a no-op.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Registration, error) {
	reg, err := s.reject(ctx, id, actor)
	s.observe("reject", err)
	return reg, err
}

func (s *Service) reject(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Registration, error) {
	if !models.HasPermission(actor.Role, models.WorkflowRoles...) {
		return nil, ErrPermissionDenied
	}
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch reg.Status {
	case models.StatusCancelled:
		return reg, nil
	case models.StatusConfirmed:
		return nil, transitionError("confirmed registrations can only be changed with a status override")
	}
	updated, err := s.store.Update(ctx, id, Update{
		From: []models.RegistrationStatus{models.StatusPending, models.StatusEmailConfirmed},
		To:   models.StatusCancelled,
		At:   s.now(),
	})
	if errors.Is(err, errNoMatch) {
		current, gerr := s.store.GetByID(ctx, id)
		if gerr == nil && current.Status == models.StatusCancelled {
			return current, nil
		}
		return nil, transitionError("registration changed while being rejected")
	}
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(models.StatusCancelled))
	s.logger.Info("registration rejected",
		zap.String("registration_id", id.String()),
		zap.String("admin_id", actor.ID.String()))
	return updated, nil
}

// ChangeStatus is the administrative override: any non-cancelled registration may be set to any status.
// No notification is sent.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, actor models.Actor, status models.RegistrationStatus) (*models.Registration, error) {
	reg, err := s.changeStatus(ctx, id, actor, status)
	s.observe("change_status", err)
	return reg, err
}

func (s *Service) changeStatus(ctx context.Context, id uuid.UUID, actor models.Actor, status models.RegistrationStatus) (*models.Registration, error) {
	if !models.HasPermission(actor.Role, models.WorkflowRoles...) {
		return nil, ErrPermissionDenied
	}
	if !status.Valid() {
		return nil, transitionError(fmt.Sprintf("unknown status %q", status))
	}
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Status == models.StatusCancelled {
		return nil, transitionError("cancelled registrations cannot change status")
	}
	if reg.Status == status {
		return reg, nil
	}

	u := Update{
		From: []models.RegistrationStatus{reg.Status},
		To:   status,
		At:   s.now(),
	}
	if status == models.StatusConfirmed {
		adminID := actor.ID
		u.ApprovedBy = &adminID
	}
	if status == models.StatusEmailConfirmed && reg.EmailConfirmedAt == nil {
		u.ConfirmEmail = true
	}
	updated, err := s.store.Update(ctx, id, u)
	if errors.Is(err, errNoMatch) {
		return nil, transitionError("registration changed while updating its status")
	}
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(status))
	s.logger.Info("registration status overridden",
		zap.String("registration_id", id.String()),
		zap.String("from", string(reg.Status)),
		zap.String("to", string(status)),
		zap.String("admin_id", actor.ID.String()))
	return updated, nil
}

// Get returns one registration for the dashboard.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Registration, error) {
	if !models.HasPermission(actor.Role, models.ReadRoles...) {
		return nil, ErrPermissionDenied
	}
	return s.store.GetByID(ctx, id)
}

// List returns registrations for the dashboard.
func (s *Service) List(ctx context.Context, actor models.Actor, f Filter) ([]models.Registration, error) {
	if !models.HasPermission(actor.Role, models.ReadRoles...) {
		return nil, ErrPermissionDenied
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, validationError(fmt.Sprintf("unknown status %q", f.Status))
	}
	return s.store.List(ctx, f)
}

// Stats returns registration counts per status, optionally for one event.
func (s *Service) Stats(ctx context.Context, actor models.Actor, eventID *uuid.UUID) (map[models.RegistrationStatus]int, error) {
	if !models.HasPermission(actor.Role, models.ReadRoles...) {
		return nil, ErrPermissionDenied
	}
	return s.store.CountByStatus(ctx, eventID)
}

// Delete permanently removes a registration. It is not part of the workflow and sends nothing.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	if !models.HasPermission(actor.Role, models.WorkflowRoles...) {
		return ErrPermissionDenied
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("registration deleted",
		zap.String("registration_id", id.String()),
		zap.String("admin_id", actor.ID.String()))
	return nil
}

func (s *Service) observe(operation string, err error) {
	if kind := KindOf(err); kind != "" {
		s.metrics.Refused(operation, string(kind))
	}
}

func (s *Service) eventFor(ctx context.Context, reg *models.Registration) *models.Event {
	ev, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		s.logger.Warn("event lookup for notification failed", zap.Error(err), zap.String("event_id", reg.EventID.String()))
		return nil
	}
	return ev
}

func (s *Service) notificationData(reg *models.Registration, ev *models.Event) notifications.Data {
	d := notifications.Data{
		AppName:   s.links.AppName,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Email:     reg.Email,
		Phone:     reg.Phone,
		Message:   reg.Message,
	}
	if ev != nil {
		d.EventTitle = ev.Title
		d.EventDate = ev.Date.Format("02/01/2006")
		d.EventTime = ev.Time
		d.EventLocation = ev.Location
	}
	return d
}

func (s *Service) notify(ctx context.Context, kind notifications.Kind, to []string, reg *models.Registration, data notifications.Data) {
	if s.notifier == nil {
		return
	}
	n := notifications.Notification{
		Kind:           kind,
		To:             to,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		Data:           data,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("notification failed",
			zap.Error(err),
			zap.String("email_type", string(kind)),
			zap.String("registration_id", reg.ID.String()))
	}
}

func normalize(in SubmitInput) (*models.Registration, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	message := strings.TrimSpace(in.Message)

	if in.EventID == uuid.Nil {
		return nil, validationError("event is required")
	}
	if first == "" || last == "" {
		return nil, validationError("first name and last name are required")
	}
	if utf8.RuneCountInString(first) > maxNameLength || utf8.RuneCountInString(last) > maxNameLength {
		return nil, validationError("name is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, validationError("invalid email address")
	}
	phone, err := utils.NormalizePhoneNumber(in.Phone)
	if err != nil {
		return nil, validationError("invalid phone number")
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, validationError("message is too long")
	}
	return &models.Registration{
		EventID:   in.EventID,
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     phone,
		Message:   message,
	}, nil
}
