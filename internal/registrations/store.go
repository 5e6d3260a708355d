package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/centre-social/backend/internal/models"
)

// errNoMatch is returned by Store.Update when no row satisfied the update guard.
var errNoMatch = errors.New("registration not in expected state")

// Store persists registrations. Implementations must make Create fail with
// ErrDuplicateActiveRegistration when a non-cancelled row exists for the same
// (event, email), and must apply Update as a single conditional write.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByToken(ctx context.Context, token string) (*models.Registration, error)
	GetActive(ctx context.Context, eventID uuid.UUID, email string) (*models.Registration, error)
	Update(ctx context.Context, id uuid.UUID, u Update) (*models.Registration, error)
	List(ctx context.Context, f Filter) ([]models.Registration, error)
	CountByStatus(ctx context.Context, eventID *uuid.UUID) (map[models.RegistrationStatus]int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Update is a guarded status change. It applies only when the row's status is in From
// and, if Token is set, the row still holds that token. Moving to any status other than
// PENDING clears the token.
type Update struct {
	From         []models.RegistrationStatus
	To           models.RegistrationStatus
	Token        string
	At           time.Time
	ConfirmEmail bool       // stamp email_confirmed_at
	ApprovedBy   *uuid.UUID // stamp admin_approved_at / admin_approved_by
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	EventID *uuid.UUID
	Status  models.RegistrationStatus
}

func (u Update) allows(s models.RegistrationStatus) bool {
	for _, f := range u.From {
		if f == s {
			return true
		}
	}
	return false
}

// apply mutates reg the way the SQL update does. Used by MemoryStore.
func (u Update) apply(reg *models.Registration) {
	reg.Status = u.To
	if u.To != models.StatusPending {
		reg.EmailToken = nil
		reg.EmailTokenExpiry = nil
	}
	at := u.At
	if u.ConfirmEmail {
		reg.EmailConfirmedAt = &at
	}
	if u.ApprovedBy != nil {
		by := *u.ApprovedBy
		reg.AdminApprovedAt = &at
		reg.AdminApprovedBy = &by
	}
	reg.UpdatedAt = at
}
