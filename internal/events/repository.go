package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centre-social/backend/internal/models"
)

const selectColumns = `SELECT id, title, date, time, location, description, published, created_at, updated_at FROM events`

// Repository reads events. Event management itself lives in the dashboard CRUD layer.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns an event by ID, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListPublished returns published events from the given day onwards, soonest first.
// A zero from lists every published event.
func (r *Repository) ListPublished(ctx context.Context, from time.Time) ([]models.Event, error) {
	q := selectColumns + ` WHERE published`
	var args []interface{}
	if !from.IsZero() {
		q += ` AND date >= $1`
		args = append(args, from)
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY date, time`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	if err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.Location, &e.Description, &e.Published, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
