package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setupClientWithGoal(t *testing.T, e *testEnv, tier domain.Tier) (*domain.User, *domain.Client, *domain.Goal) {
	t.Helper()
	ctx := context.Background()
	th := e.therapist(tier)
	client, err := e.clientSvc.Create(ctx, th.ID, ClientInput{FirstName: "Sam", LastName: "Lee"})
	require.NoError(t, err)
	goal, err := e.clientSvc.AddGoal(ctx, th.ID, client.ID, GoalInput{Description: "Request a break"})
	require.NoError(t, err)
	return th, client, goal
}

func TestSessionService_GoalProgressUpdatesClient(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, client, goal := setupClientWithGoal(t, e, domain.TierFree)

	_, err := e.sessionSvc.Create(ctx, th.ID, SessionInput{
		ClientID:     client.ID,
		Date:         e.clock.Now(),
		Activities:   []domain.Activity{{Name: "Break card", Trials: 10, Successes: 6}},
		GoalProgress: []domain.GoalProgress{{GoalID: goal.ID, Progress: 60}},
	})
	require.NoError(t, err)

	stored, _ := e.clients.get(client.ID)
	g, _ := stored.Goal(goal.ID)
	assert.Equal(t, 60, g.Progress)
	assert.Equal(t, domain.GoalInProgress, g.Status)

	_, err = e.sessionSvc.Create(ctx, th.ID, SessionInput{
		ClientID:     client.ID,
		Date:         e.clock.Now(),
		GoalProgress: []domain.GoalProgress{{GoalID: goal.ID, Progress: 100}},
	})
	require.NoError(t, err)

	stored, _ = e.clients.get(client.ID)
	g, _ = stored.Goal(goal.ID)
	assert.Equal(t, domain.GoalAchieved, g.Status)
	assert.Equal(t, 2, e.users.get(th.ID).Usage.SessionsThisMonth)
}

func TestSessionService_RejectsForeignGoal(t *testing.T) {
	e := newTestEnv(t)
	th, client, _ := setupClientWithGoal(t, e, domain.TierFree)

	_, err := e.sessionSvc.Create(context.Background(), th.ID, SessionInput{
		ClientID:     client.ID,
		Date:         e.clock.Now(),
		GoalProgress: []domain.GoalProgress{{GoalID: primitive.NewObjectID(), Progress: 10}},
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, e.users.get(th.ID).Usage.SessionsThisMonth)
}

func TestSessionService_MonthlyLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, client, _ := setupClientWithGoal(t, e, domain.TierFree)

	for i := 0; i < 30; i++ {
		_, err := e.sessionSvc.Create(ctx, th.ID, SessionInput{ClientID: client.ID, Date: e.clock.Now()})
		require.NoError(t, err)
	}
	_, err := e.sessionSvc.Create(ctx, th.ID, SessionInput{ClientID: client.ID, Date: e.clock.Now()})
	var limitErr *LimitExceededError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, domain.ResourceSessions, limitErr.Resource)

	e.clock.Advance(31 * 24 * time.Hour)
	_, err = e.sessionSvc.Create(ctx, th.ID, SessionInput{ClientID: client.ID, Date: e.clock.Now()})
	assert.NoError(t, err)
}

func TestSessionService_CreateFromTemplate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, client, _ := setupClientWithGoal(t, e, domain.TierFree)

	tmpl, err := e.templateSvc.Create(ctx, th.ID, TemplateInput{
		Name:       "Warm-up",
		Activities: []domain.Activity{{Name: "Greeting"}, {Name: "Turn taking"}},
	})
	require.NoError(t, err)

	session, err := e.sessionSvc.CreateFromTemplate(ctx, th.ID, tmpl.ID, client.ID, e.clock.Now())
	require.NoError(t, err)
	require.Len(t, session.Activities, 2)
	assert.Equal(t, "Greeting", session.Activities[0].Name)

	other := e.therapist(domain.TierFree)
	_, err = e.sessionSvc.CreateFromTemplate(ctx, other.ID, tmpl.ID, client.ID, e.clock.Now())
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestSessionService_UpdateListDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	th, client, _ := setupClientWithGoal(t, e, domain.TierFree)

	older, err := e.sessionSvc.Create(ctx, th.ID, SessionInput{ClientID: client.ID, Date: e.clock.Now().AddDate(0, 0, -7)})
	require.NoError(t, err)
	newer, err := e.sessionSvc.Create(ctx, th.ID, SessionInput{ClientID: client.ID, Date: e.clock.Now()})
	require.NoError(t, err)

	updated, err := e.sessionSvc.Update(ctx, th.ID, older.ID, SessionInput{
		ClientID:          primitive.NewObjectID(), // ignored
		Date:              older.Date,
		DurationMinutes:   50,
		Observations:      "Calm",
		SharedWithParents: true,
	})
	require.NoError(t, err)
	assert.Equal(t, client.ID, updated.ClientID)
	assert.Equal(t, 50, updated.DurationMinutes)

	page, err := e.sessionSvc.List(ctx, repository.SessionFilter{TherapistID: th.ID, ClientID: client.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, newer.ID, page.Items[0].ID)

	from := e.clock.Now().AddDate(0, 0, -1)
	page, err = e.sessionSvc.List(ctx, repository.SessionFilter{TherapistID: th.ID, From: &from})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	intruder := e.therapist(domain.TierFree)
	assert.ErrorIs(t, e.sessionSvc.Delete(ctx, intruder.ID, newer.ID), ErrSessionNotFound)
	require.NoError(t, e.sessionSvc.Delete(ctx, th.ID, newer.ID))
	_, err = e.sessionSvc.Get(ctx, th.ID, newer.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProgressStatus(t *testing.T) {
	assert.Equal(t, domain.GoalAchieved, progressStatus(domain.GoalInProgress, 100))
	assert.Equal(t, domain.GoalInProgress, progressStatus(domain.GoalNotStarted, 10))
	assert.Equal(t, domain.GoalNotStarted, progressStatus(domain.GoalNotStarted, 0))
	assert.Equal(t, domain.GoalDiscontinued, progressStatus(domain.GoalDiscontinued, 50))
	assert.Equal(t, domain.GoalInProgress, progressStatus(domain.GoalAchieved, 80))
}
