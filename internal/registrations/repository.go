package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/pkg/database"
)

// activeEmailConstraint is the partial unique index over (event_id, email) excluding cancelled rows.
const activeEmailConstraint = "registrations_event_email_active_key"

const returningColumns = `id, event_id, first_name, last_name, email, phone, COALESCE(message, ''), status,
	email_token, email_token_expiry, email_confirmed_at, admin_approved_at, admin_approved_by, created_at, updated_at`

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a PENDING registration. The partial unique index enforces one active row per (event, email).
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (event_id, first_name, last_name, email, phone, message, status, email_token, email_token_expiry)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, reg.EventID, reg.FirstName, reg.LastName, reg.Email, reg.Phone, reg.Message,
		string(reg.Status), reg.EmailToken, reg.EmailTokenExpiry).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if database.IsUniqueViolation(err, activeEmailConstraint) {
		return ErrDuplicateActiveRegistration
	}
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+returningColumns+` FROM registrations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// GetByToken returns the registration holding token.
func (r *Repository) GetByToken(ctx context.Context, token string) (*models.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `SELECT `+returningColumns+` FROM registrations WHERE email_token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration by token: %w", err)
	}
	return reg, nil
}

// GetActive returns the non-cancelled registration for (eventID, email).
func (r *Repository) GetActive(ctx context.Context, eventID uuid.UUID, email string) (*models.Registration, error) {
	const q = `SELECT ` + returningColumns + ` FROM registrations WHERE event_id = $1 AND email = $2 AND status <> 'CANCELLED'`
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, eventID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active registration: %w", err)
	}
	return reg, nil
}

// Update applies a guarded status change in a single statement and returns the new row.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, u Update) (*models.Registration, error) {
	const q = `UPDATE registrations SET
		status = $2::text,
		email_token = CASE WHEN $2::text = 'PENDING' THEN email_token END,
		email_token_expiry = CASE WHEN $2::text = 'PENDING' THEN email_token_expiry END,
		email_confirmed_at = CASE WHEN $4::bool THEN $3::timestamptz ELSE email_confirmed_at END,
		admin_approved_at = CASE WHEN $5::uuid IS NOT NULL THEN $3::timestamptz ELSE admin_approved_at END,
		admin_approved_by = COALESCE($5::uuid, admin_approved_by),
		updated_at = $3::timestamptz
		WHERE id = $1 AND status = ANY($6::text[]) AND ($7::text = '' OR email_token = $7::text)
		RETURNING ` + returningColumns
	from := make([]string, len(u.From))
	for i, s := range u.From {
		from[i] = string(s)
	}
	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, id, string(u.To), u.At, u.ConfirmEmail, u.ApprovedBy, from, u.Token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoMatch
	}
	if database.IsUniqueViolation(err, activeEmailConstraint) {
		return nil, ErrDuplicateActiveRegistration
	}
	if err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return reg, nil
}

// List returns registrations matching f, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Registration, error) {
	q := `SELECT ` + returningColumns + ` FROM registrations WHERE TRUE`
	var args []interface{}
	if f.EventID != nil {
		args = append(args, *f.EventID)
		q += fmt.Sprintf(" AND event_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, q+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	list := []models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// CountByStatus returns the number of registrations per status, optionally for one event.
func (r *Repository) CountByStatus(ctx context.Context, eventID *uuid.UUID) (map[models.RegistrationStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM registrations WHERE ($1::uuid IS NULL OR event_id = $1) GROUP BY status`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.RegistrationStatus]int, len(models.RegistrationStatuses))
	for _, s := range models.RegistrationStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.RegistrationStatus(status)] = n
	}
	return counts, rows.Err()
}

// Delete removes a registration permanently.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var status string
	err := row.Scan(&reg.ID, &reg.EventID, &reg.FirstName, &reg.LastName, &reg.Email, &reg.Phone, &reg.Message, &status,
		&reg.EmailToken, &reg.EmailTokenExpiry, &reg.EmailConfirmedAt, &reg.AdminApprovedAt, &reg.AdminApprovedBy,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Status = models.RegistrationStatus(status)
	return &reg, nil
}
