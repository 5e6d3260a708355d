// Package notifications renders workflow emails and hands them to a mail transport.
// Delivery is best-effort: callers log a returned error and carry on.
package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/centre-social/backend/internal/models"
)

// Kind identifies which workflow email is sent.
type Kind string

const (
	KindUserConfirmRequest    Kind = models.EmailTypeUserConfirmRequest
	KindAdminReviewRequest    Kind = models.EmailTypeAdminReviewRequest
	KindUserFinalConfirmation Kind = models.EmailTypeUserFinalConfirmation
)

// Data is the template input shared by every kind.
type Data struct {
	AppName       string
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	Message       string
	EventTitle    string
	EventDate     string
	EventTime     string
	EventLocation string
	Link          string
}

// Notification is one workflow email addressed to one or more recipients.
type Notification struct {
	Kind           Kind
	To             []string
	EventID        uuid.UUID
	RegistrationID uuid.UUID
	Data           Data
}

// Email is a rendered message for a single recipient.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered email. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Notifier is what the registration workflow depends on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogStore records delivery attempts. Implemented by emaillogs.Repository.
type LogStore interface {
	Create(ctx context.Context, l *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
