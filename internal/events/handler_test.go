package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centre-social/backend/internal/models"
)

type stubDirectory struct {
	events   map[uuid.UUID]*models.Event
	lastFrom time.Time
}

func (s *stubDirectory) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return s.events[id], nil
}

func (s *stubDirectory) ListPublished(_ context.Context, from time.Time) ([]models.Event, error) {
	s.lastFrom = from
	var out []models.Event
	for _, e := range s.events {
		if e.Published && (from.IsZero() || !e.Date.Before(from)) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func setupRouter(dir *stubDirectory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(dir, nil)
	h.now = func() time.Time { return time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC) }
	r := gin.New()
	r.GET("/events", h.List)
	r.GET("/events/:id", h.GetByID)
	return r
}

func TestListHidesPastEvents(t *testing.T) {
	upcoming := &models.Event{ID: uuid.New(), Title: "Atelier Seniors", Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Published: true}
	past := &models.Event{ID: uuid.New(), Title: "Loto", Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Published: true}
	dir := &stubDirectory{events: map[uuid.UUID]*models.Event{upcoming.ID: upcoming, past.ID: past}}
	r := setupRouter(dir)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/events", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Atelier Seniors", body.Data[0].Title)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/events?past=true", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, dir.lastFrom.IsZero())
}

func TestGetByIDHidesUnpublished(t *testing.T) {
	draft := &models.Event{ID: uuid.New(), Title: "Brouillon", Published: false}
	r := setupRouter(&stubDirectory{events: map[uuid.UUID]*models.Event{draft.ID: draft}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/events/"+draft.ID.String(), nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/events/not-a-uuid", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
