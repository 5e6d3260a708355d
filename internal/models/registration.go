package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the confirmation workflow state of a registration.
type RegistrationStatus string

const (
	StatusPending        RegistrationStatus = "PENDING"
	StatusEmailConfirmed RegistrationStatus = "EMAIL_CONFIRMED"
	StatusConfirmed      RegistrationStatus = "CONFIRMED"
	StatusCancelled      RegistrationStatus = "CANCELLED"
)

// RegistrationStatuses lists every status in workflow order.
var RegistrationStatuses = []RegistrationStatus{StatusPending, StatusEmailConfirmed, StatusConfirmed, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusEmailConfirmed, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further workflow transition leaves s.
func (s RegistrationStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Registration is a person's intent to attend an event.
type Registration struct {
	ID               uuid.UUID          `json:"id"`
	EventID          uuid.UUID          `json:"event_id"`
	FirstName        string             `json:"first_name"`
	LastName         string             `json:"last_name"`
	Email            string             `json:"email"`
	Phone            string             `json:"phone"`
	Message          string             `json:"message,omitempty"`
	Status           RegistrationStatus `json:"status"`
	EmailToken       *string            `json:"-"`
	EmailTokenExpiry *time.Time         `json:"-"`
	EmailConfirmedAt *time.Time         `json:"email_confirmed_at,omitempty"`
	AdminApprovedAt  *time.Time         `json:"admin_approved_at,omitempty"`
	AdminApprovedBy  *uuid.UUID         `json:"admin_approved_by,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// FullName returns "First Last".
func (r *Registration) FullName() string {
	return r.FirstName + " " + r.LastName
}
