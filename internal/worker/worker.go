package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centre-social/backend/internal/metrics"
	"github.com/centre-social/backend/internal/notifications"
	"github.com/centre-social/backend/pkg/queue"
)

// JobSource is the part of queue.Queue the worker consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// LogUpdater records the outcome of a queued email on its email_logs row.
type LogUpdater interface {
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ErrorBackoff is how long Run waits after the queue itself fails.
const ErrorBackoff = 2 * time.Second

// EmailProcessor sends queued notification emails. Failed jobs are parked on the
// dead-letter list; there is no automatic retry.
type EmailProcessor struct {
	source  JobSource
	sender  notifications.Sender
	logs    LogUpdater
	metrics *metrics.Metrics
	timeout time.Duration
	logger  *zap.Logger
}

// NewEmailProcessor creates an email job processor. logs and m may be nil.
func NewEmailProcessor(source JobSource, sender notifications.Sender, logs LogUpdater, m *metrics.Metrics, timeout time.Duration, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = notifications.DefaultSendTimeout
	}
	return &EmailProcessor{source: source, sender: sender, logs: logs, metrics: m, timeout: timeout, logger: logger}
}

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	payload, err := job.EmailPayload()
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.sender.Send(sendCtx, notifications.Email{
		To:      payload.RecipientEmail,
		Subject: payload.Subject,
		HTML:    payload.BodyHTML,
		Text:    payload.BodyText,
	})
	if err != nil {
		p.metrics.Notification(payload.EmailType, metrics.ResultFailed)
		p.mark(ctx, payload.LogID, err)
		return fmt.Errorf("send %s: %w", payload.EmailType, err)
	}
	p.metrics.Notification(payload.EmailType, metrics.ResultSent)
	p.mark(ctx, payload.LogID, nil)
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType))
	return nil
}

func (p *EmailProcessor) mark(ctx context.Context, id *uuid.UUID, cause error) {
	if p.logs == nil || id == nil {
		return
	}
	var err error
	if cause != nil {
		err = p.logs.MarkFailed(ctx, *id, cause.Error())
	} else {
		err = p.logs.MarkSent(ctx, *id)
	}
	if err != nil {
		p.logger.Warn("email log update failed", zap.Error(err), zap.String("log_id", id.String()))
	}
}

// Run starts the worker loop: dequeue, process, dead-letter on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, ErrorBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if dlqErr := p.source.DeadLetter(context.WithoutCancel(ctx), job, err); dlqErr != nil {
				p.logger.Error("dead-letter push failed", zap.String("job_id", job.ID), zap.Error(dlqErr))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
