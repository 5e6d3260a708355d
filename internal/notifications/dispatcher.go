package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centre-social/backend/internal/metrics"
	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/pkg/queue"
)

// DefaultSendTimeout bounds a single delivery attempt.
const DefaultSendTimeout = 12 * time.Second

// Dispatcher renders notifications and sends them synchronously through a Sender.
type Dispatcher struct {
	sender  Sender
	logs    LogStore
	metrics *metrics.Metrics
	timeout time.Duration
	logger  *zap.Logger
}

// NewDispatcher creates a synchronous dispatcher. logs and m may be nil.
func NewDispatcher(sender Sender, logs LogStore, m *metrics.Metrics, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{sender: sender, logs: logs, metrics: m, timeout: timeout, logger: logger}
}

// Notify sends n to every recipient. The returned error joins all per-recipient failures.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	if len(n.To) == 0 {
		d.metrics.Notification(string(n.Kind), metrics.ResultSkipped)
		return fmt.Errorf("%s: no recipients", n.Kind)
	}
	subject, html, text, err := Render(n.Kind, n.Data)
	if err != nil {
		d.metrics.Notification(string(n.Kind), metrics.ResultFailed)
		return err
	}

	// The triggering transition is already committed; a client hanging up must not abort delivery.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, to := range n.To {
		email := Email{To: to, Subject: subject, HTML: html, Text: text}
		logID := d.recordAttempt(ctx, n, email)
		if err := d.send(ctx, email); err != nil {
			d.metrics.Notification(string(n.Kind), metrics.ResultFailed)
			d.markFailed(ctx, logID, err)
			errs = append(errs, fmt.Errorf("send %s to %s: %w", n.Kind, to, err))
			continue
		}
		d.metrics.Notification(string(n.Kind), metrics.ResultSent)
		d.markSent(ctx, logID)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, email Email) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.sender.Send(sendCtx, email)
}

func (d *Dispatcher) recordAttempt(ctx context.Context, n Notification, email Email) *uuid.UUID {
	if d.logs == nil {
		return nil
	}
	l := newLog(n, email)
	if err := d.logs.Create(ctx, l); err != nil {
		d.logger.Warn("email log insert failed", zap.Error(err), zap.String("email_type", l.EmailType))
		return nil
	}
	return &l.ID
}

func (d *Dispatcher) markSent(ctx context.Context, id *uuid.UUID) {
	if d.logs == nil || id == nil {
		return
	}
	if err := d.logs.MarkSent(ctx, *id); err != nil {
		d.logger.Warn("email log update failed", zap.Error(err), zap.String("log_id", id.String()))
	}
}

func (d *Dispatcher) markFailed(ctx context.Context, id *uuid.UUID, cause error) {
	if d.logs == nil || id == nil {
		return
	}
	if err := d.logs.MarkFailed(ctx, *id, cause.Error()); err != nil {
		d.logger.Warn("email log update failed", zap.Error(err), zap.String("log_id", id.String()))
	}
}

func newLog(n Notification, email Email) *models.EmailLog {
	l := &models.EmailLog{
		EmailType:      string(n.Kind),
		RecipientEmail: email.To,
		Subject:        email.Subject,
		Status:         models.EmailLogStatusPending,
	}
	if n.EventID != uuid.Nil {
		id := n.EventID
		l.EventID = &id
	}
	if n.RegistrationID != uuid.Nil {
		id := n.RegistrationID
		l.RegistrationID = &id
	}
	return l
}

// Enqueuer is the part of queue.Queue used for asynchronous delivery.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// QueueDispatcher renders notifications and pushes them to the email queue for cmd/worker.
type QueueDispatcher struct {
	queue   Enqueuer
	logs    LogStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewQueueDispatcher creates an asynchronous dispatcher. logs and m may be nil.
func NewQueueDispatcher(q Enqueuer, logs LogStore, m *metrics.Metrics, logger *zap.Logger) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{queue: q, logs: logs, metrics: m, logger: logger}
}

// Notify enqueues one job per recipient. Enqueue failures are returned joined.
func (d *QueueDispatcher) Notify(ctx context.Context, n Notification) error {
	if len(n.To) == 0 {
		d.metrics.Notification(string(n.Kind), metrics.ResultSkipped)
		return fmt.Errorf("%s: no recipients", n.Kind)
	}
	subject, html, text, err := Render(n.Kind, n.Data)
	if err != nil {
		d.metrics.Notification(string(n.Kind), metrics.ResultFailed)
		return err
	}
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, to := range n.To {
		email := Email{To: to, Subject: subject, HTML: html, Text: text}
		l := newLog(n, email)
		if d.logs != nil {
			if err := d.logs.Create(ctx, l); err != nil {
				d.logger.Warn("email log insert failed", zap.Error(err), zap.String("email_type", l.EmailType))
			}
		}
		payload := queue.EmailPayload{
			EmailType:      l.EmailType,
			EventID:        l.EventID,
			RegistrationID: l.RegistrationID,
			RecipientEmail: to,
			Subject:        subject,
			BodyHTML:       html,
			BodyText:       text,
		}
		if l.ID != uuid.Nil {
			id := l.ID
			payload.LogID = &id
		}
		if err := d.queue.EnqueueEmail(ctx, payload); err != nil {
			d.metrics.Notification(string(n.Kind), metrics.ResultFailed)
			if d.logs != nil && l.ID != uuid.Nil {
				_ = d.logs.MarkFailed(ctx, l.ID, "enqueue: "+err.Error())
			}
			errs = append(errs, fmt.Errorf("enqueue %s to %s: %w", n.Kind, to, err))
			continue
		}
		d.metrics.Notification(string(n.Kind), metrics.ResultQueued)
	}
	return errors.Join(errs...)
}
