package registrations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centre-social/backend/internal/metrics"
	"github.com/centre-social/backend/internal/models"
	"github.com/centre-social/backend/internal/notifications"
)

type stubEvents map[uuid.UUID]*models.Event

func (s stubEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return s[id], nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notifications.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last() notifications.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var (
	admin  = models.Actor{ID: uuid.New(), Role: models.RoleAdmin}
	editor = models.Actor{ID: uuid.New(), Role: models.RoleEditor}
)

type fixture struct {
	svc      *Service
	store    *MemoryStore
	notifier *recordingNotifier
	event    *models.Event
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ev := &models.Event{
		ID:        uuid.New(),
		Title:     "Atelier Seniors",
		Date:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Time:      "14:00",
		Location:  "Salle polyvalente",
		Published: true,
	}
	f := &fixture{
		store:    NewMemoryStore(),
		notifier: &recordingNotifier{},
		event:    ev,
		clock:    time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC),
	}
	links := Links{
		AppName:     "Centre Social",
		ConfirmURL:  "https://api.example.org/registrations/confirm",
		AdminURL:    "https://example.org/admin/inscriptions",
		AdminEmails: []string{"accueil@example.org"},
	}
	f.svc = NewService(f.store, stubEvents{ev.ID: ev}, f.notifier, links, metrics.New(), nil)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) input(email string) SubmitInput {
	return SubmitInput{
		EventID:   f.event.ID,
		FirstName: "Ana",
		LastName:  "Martin",
		Email:     email,
		Phone:     "06 12 34 56 78",
	}
}

func (f *fixture) submit(t *testing.T, email string) (*models.Registration, string) {
	t.Helper()
	reg, err := f.svc.Submit(context.Background(), f.input(email))
	require.NoError(t, err)
	require.NotNil(t, reg.EmailToken)
	return reg, *reg.EmailToken
}

func TestSubmitCreatesPendingRegistration(t *testing.T) {
	f := newFixture(t)
	reg, token := f.submit(t, "  A@B.com ")

	assert.Equal(t, models.StatusPending, reg.Status)
	assert.Equal(t, "a@b.com", reg.Email)
	assert.Equal(t, "+33612345678", reg.Phone)
	assert.GreaterOrEqual(t, len(token), 32)
	require.NotNil(t, reg.EmailTokenExpiry)
	assert.Equal(t, f.clock.Add(TokenTTL), *reg.EmailTokenExpiry)

	require.Equal(t, 1, f.notifier.count())
	n := f.notifier.last()
	assert.Equal(t, notifications.KindUserConfirmRequest, n.Kind)
	assert.Equal(t, []string{"a@b.com"}, n.To)
	assert.Equal(t, reg.ID, n.RegistrationID)
	assert.Equal(t, "Atelier Seniors", n.Data.EventTitle)
	assert.Equal(t, "01/03/2025", n.Data.EventDate)
	assert.True(t, strings.HasSuffix(n.Data.Link, "?token="+token))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*SubmitInput){
		"missing first name": func(in *SubmitInput) { in.FirstName = "  " },
		"bad email":          func(in *SubmitInput) { in.Email = "not-an-email" },
		"display name email": func(in *SubmitInput) { in.Email = "Ana <a@b.com>" },
		"bad phone":          func(in *SubmitInput) { in.Phone = "12" },
		"long message":       func(in *SubmitInput) { in.Message = strings.Repeat("x", maxMessageLength+1) },
		"long name":          func(in *SubmitInput) { in.LastName = strings.Repeat("é", maxNameLength+1) },
		"nil event":          func(in *SubmitInput) { in.EventID = uuid.Nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := f.input("a@b.com")
			mutate(&in)
			_, err := f.svc.Submit(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, 0, f.notifier.count())
}

func TestSubmitUnknownOrUnpublishedEvent(t *testing.T) {
	f := newFixture(t)
	in := f.input("a@b.com")
	in.EventID = uuid.New()
	_, err := f.svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrEventNotFound)

	f.event.Published = false
	_, err = f.svc.Submit(context.Background(), f.input("a@b.com"))
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestSubmitDuplicateActiveRegistration(t *testing.T) {
	f := newFixture(t)
	first, _ := f.submit(t, "a@b.com")

	_, err := f.svc.Submit(context.Background(), f.input("A@B.COM"))
	assert.ErrorIs(t, err, ErrDuplicateActiveRegistration)

	_, err = f.svc.Reject(context.Background(), first.ID, admin)
	require.NoError(t, err)

	again, _ := f.submit(t, "a@b.com")
	assert.NotEqual(t, first.ID, again.ID)
	assert.Equal(t, models.StatusPending, again.Status)
}

func TestConfirmEmailRoundTrip(t *testing.T) {
	f := newFixture(t)
	reg, token := f.submit(t, "a@b.com")

	f.clock = f.clock.Add(time.Hour)
	confirmed, already, err := f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, models.StatusEmailConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.EmailToken)
	assert.Nil(t, confirmed.EmailTokenExpiry)
	require.NotNil(t, confirmed.EmailConfirmedAt)
	assert.Equal(t, f.clock, *confirmed.EmailConfirmedAt)

	n := f.notifier.last()
	assert.Equal(t, notifications.KindAdminReviewRequest, n.Kind)
	assert.Equal(t, []string{"accueil@example.org"}, n.To)
	assert.Equal(t, "https://example.org/admin/inscriptions/"+reg.ID.String(), n.Data.Link)

	approved, err := f.svc.Approve(context.Background(), reg.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, approved.Status)
	assert.Nil(t, approved.EmailToken)
	require.NotNil(t, approved.EmailConfirmedAt)
	require.NotNil(t, approved.AdminApprovedAt)
	require.NotNil(t, approved.AdminApprovedBy)
	assert.Equal(t, admin.ID, *approved.AdminApprovedBy)

	n = f.notifier.last()
	assert.Equal(t, notifications.KindUserFinalConfirmation, n.Kind)
	assert.Equal(t, []string{"a@b.com"}, n.To)
	assert.Equal(t, 3, f.notifier.count())
}

func TestConfirmEmailTokenIsSingleUse(t *testing.T) {
	f := newFixture(t)
	_, token := f.submit(t, "a@b.com")

	_, _, err := f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
	_, _, err = f.svc.ConfirmEmail(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestConfirmEmailUnknownAndMalformedTokens(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "a@b.com")
	for _, token := range []string{"", "short", strings.Repeat("z", 2*TokenBytes), strings.Repeat("ab", TokenBytes)} {
		_, _, err := f.svc.ConfirmEmail(context.Background(), token)
		assert.ErrorIs(t, err, ErrTokenNotFound, token)
	}
}

func TestConfirmEmailExpiredTokenLeavesRowPending(t *testing.T) {
	f := newFixture(t)
	reg, token := f.submit(t, "a@b.com")

	f.clock = f.clock.Add(TokenTTL + time.Minute)
	_, _, err := f.svc.ConfirmEmail(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	current, err := f.store.GetByID(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, current.Status)
	require.NotNil(t, current.EmailToken)
	assert.Equal(t, token, *current.EmailToken)
	assert.Nil(t, current.EmailConfirmedAt)
	assert.Equal(t, 1, f.notifier.count())
}

func TestConfirmEmailConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	_, token := f.submit(t, "a@b.com")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.svc.ConfirmEmail(context.Background(), token)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrTokenNotFound)
	}
	assert.Equal(t, 1, wins)
}

func TestApproveRequiresConfirmedEmail(t *testing.T) {
	f := newFixture(t)
	reg, _ := f.submit(t, "a@b.com")

	_, err := f.svc.Approve(context.Background(), reg.ID, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	current, _ := f.store.GetByID(context.Background(), reg.ID)
	assert.Equal(t, models.StatusPending, current.Status)
}

func TestApproveUnknownRegistration(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Approve(context.Background(), uuid.New(), admin)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestWorkflowRequiresPermission(t *testing.T) {
	f := newFixture(t)
	reg, token := f.submit(t, "a@b.com")
	_, _, err := f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), reg.ID, editor)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Reject(context.Background(), reg.ID, editor)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.ChangeStatus(context.Background(), reg.ID, editor, models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), reg.ID, editor), ErrPermissionDenied)
	_, err = f.svc.List(context.Background(), models.Actor{}, Filter{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	current, _ := f.svc.Get(context.Background(), reg.ID, editor)
	assert.Equal(t, models.StatusEmailConfirmed, current.Status)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp: connection refused")

	reg, token := f.submit(t, "a@b.com")
	assert.Equal(t, models.StatusPending, reg.Status)

	confirmed, _, err := f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmailConfirmed, confirmed.Status)

	approved, err := f.svc.Approve(context.Background(), reg.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, approved.Status)
	assert.Equal(t, 3, f.notifier.count())
}

func TestRejectFromEachState(t *testing.T) {
	f := newFixture(t)
	pending, _ := f.submit(t, "p@b.com")
	rejected, err := f.svc.Reject(context.Background(), pending.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, rejected.Status)
	assert.Nil(t, rejected.EmailToken)

	again, err := f.svc.Reject(context.Background(), pending.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, again.Status)

	reg, token := f.submit(t, "c@b.com")
	_, _, err = f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), reg.ID, admin)
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), reg.ID, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	before := f.notifier.count()
	confirmedEmail, token2 := f.submit(t, "e@b.com")
	_, _, err = f.svc.ConfirmEmail(context.Background(), token2)
	require.NoError(t, err)
	rejected, err = f.svc.Reject(context.Background(), confirmedEmail.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, rejected.Status)
	// submit + confirm only; reject is silent.
	assert.Equal(t, before+2, f.notifier.count())
}

func TestRejectedTokenCannotConfirm(t *testing.T) {
	f := newFixture(t)
	reg, token := f.submit(t, "a@b.com")
	_, err := f.svc.Reject(context.Background(), reg.ID, admin)
	require.NoError(t, err)

	_, _, err = f.svc.ConfirmEmail(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	reg, _ := f.submit(t, "a@b.com")
	sent := f.notifier.count()

	_, err := f.svc.ChangeStatus(context.Background(), reg.ID, admin, "ARCHIVED")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	confirmed, err := f.svc.ChangeStatus(context.Background(), reg.ID, admin, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.EmailToken)
	require.NotNil(t, confirmed.AdminApprovedBy)
	assert.Equal(t, admin.ID, *confirmed.AdminApprovedBy)

	back, err := f.svc.ChangeStatus(context.Background(), reg.ID, admin, models.StatusEmailConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEmailConfirmed, back.Status)
	assert.NotNil(t, back.EmailConfirmedAt)

	same, err := f.svc.ChangeStatus(context.Background(), reg.ID, admin, models.StatusEmailConfirmed)
	require.NoError(t, err)
	assert.Equal(t, back.UpdatedAt, same.UpdatedAt)

	cancelled, err := f.svc.ChangeStatus(context.Background(), reg.ID, admin, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = f.svc.ChangeStatus(context.Background(), reg.ID, admin, models.StatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, sent, f.notifier.count())
}

func TestStatsAndListAndDelete(t *testing.T) {
	f := newFixture(t)
	a, _ := f.submit(t, "a@b.com")
	_, tokenB := f.submit(t, "b@b.com")
	_, _, err := f.svc.ConfirmEmail(context.Background(), tokenB)
	require.NoError(t, err)

	counts, err := f.svc.Stats(context.Background(), editor, &f.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusPending])
	assert.Equal(t, 1, counts[models.StatusEmailConfirmed])
	assert.Equal(t, 0, counts[models.StatusConfirmed])

	list, err := f.svc.List(context.Background(), editor, Filter{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	_, err = f.svc.List(context.Background(), editor, Filter{Status: "nope"})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.svc.Delete(context.Background(), a.ID, admin))
	_, err = f.svc.Get(context.Background(), a.ID, admin)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), a.ID, admin), ErrRegistrationNotFound)
}

func TestResubmitAfterExpiryReplacesPendingRegistration(t *testing.T) {
	f := newFixture(t)
	old, oldToken := f.submit(t, "a@b.com")

	f.clock = f.clock.Add(time.Hour)
	_, err := f.svc.Submit(context.Background(), f.input("a@b.com"))
	require.ErrorIs(t, err, ErrDuplicateActiveRegistration)

	f.clock = f.clock.Add(TokenTTL)
	fresh, freshToken := f.submit(t, "a@b.com")
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.NotEqual(t, oldToken, freshToken)

	previous, err := f.store.GetByID(context.Background(), old.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, previous.Status)
	assert.Nil(t, previous.EmailToken)

	_, _, err = f.svc.ConfirmEmail(context.Background(), oldToken)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	confirmed, _, err := f.svc.ConfirmEmail(context.Background(), freshToken)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, confirmed.ID)
}

func TestResubmitDoesNotReplaceConfirmedEmail(t *testing.T) {
	f := newFixture(t)
	_, token := f.submit(t, "a@b.com")
	_, _, err := f.svc.ConfirmEmail(context.Background(), token)
	require.NoError(t, err)

	f.clock = f.clock.Add(2 * TokenTTL)
	_, err = f.svc.Submit(context.Background(), f.input("a@b.com"))
	assert.ErrorIs(t, err, ErrDuplicateActiveRegistration)
}
