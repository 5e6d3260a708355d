package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centre-social/backend/internal/models"
)

// ErrNotFound is returned when no administrator matches.
var ErrNotFound = errors.New("administrator not found")

const adminColumns = `id, email, password_hash, full_name, role, created_at, updated_at`

// Repository handles administrator persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns an administrator by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Administrator, error) {
	return r.get(ctx, `SELECT `+adminColumns+` FROM administrators WHERE id = $1`, id)
}

// GetByEmail returns an administrator by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Administrator, error) {
	return r.get(ctx, `SELECT `+adminColumns+` FROM administrators WHERE lower(email) = lower($1)`, email)
}

func (r *Repository) get(ctx context.Context, q string, arg interface{}) (*models.Administrator, error) {
	var a models.Administrator
	err := r.pool.QueryRow(ctx, q, arg).Scan(&a.ID, &a.Email, &a.Password, &a.FullName, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get administrator: %w", err)
	}
	return &a, nil
}

// Create inserts a new administrator. Existing emails are left untouched and reported as created=false.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (a *models.Administrator, created bool, err error) {
	const q = `INSERT INTO administrators (email, password_hash, full_name, role)
		VALUES (lower($1), $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING ` + adminColumns
	var adm models.Administrator
	err = r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)).
		Scan(&adm.ID, &adm.Email, &adm.Password, &adm.FullName, &adm.Role, &adm.CreatedAt, &adm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, gerr := r.GetByEmail(ctx, email)
		return existing, false, gerr
	}
	if err != nil {
		return nil, false, fmt.Errorf("create administrator: %w", err)
	}
	return &adm, true, nil
}
