package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a public event of the center that people can register for.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"` // free text, e.g. "14h00 - 16h00"
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
