package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionInput holds the editable fields of a session note.
type SessionInput struct {
	ClientID          primitive.ObjectID
	Date              time.Time
	DurationMinutes   int
	Activities        []domain.Activity
	Observations      string
	Notes             string
	GoalProgress      []domain.GoalProgress
	SharedWithParents bool
}

type SessionPage struct {
	Items []domain.Session `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type SessionService interface {
	Create(ctx context.Context, therapistID primitive.ObjectID, input SessionInput) (*domain.Session, error)
	CreateFromTemplate(ctx context.Context, therapistID, templateID, clientID primitive.ObjectID, date time.Time) (*domain.Session, error)
	Get(ctx context.Context, therapistID, sessionID primitive.ObjectID) (*domain.Session, error)
	List(ctx context.Context, filter repository.SessionFilter) (*SessionPage, error)
	Update(ctx context.Context, therapistID, sessionID primitive.ObjectID, input SessionInput) (*domain.Session, error)
	Delete(ctx context.Context, therapistID, sessionID primitive.ObjectID) error
}

type sessionService struct {
	sessionRepo  repository.SessionRepository
	clientRepo   repository.ClientRepository
	templateRepo repository.TemplateRepository
	media        MediaService
	usage        UsageService
	logger       *slog.Logger
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	clientRepo repository.ClientRepository,
	templateRepo repository.TemplateRepository,
	media MediaService,
	usage UsageService,
	logger *slog.Logger,
) SessionService {
	return &sessionService{
		sessionRepo:  sessionRepo,
		clientRepo:   clientRepo,
		templateRepo: templateRepo,
		media:        media,
		usage:        usage,
		logger:       logger,
	}
}

func validateActivities(activities []domain.Activity) error {
	for i := range activities {
		a := &activities[i]
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			return validationError("activity %d: name is required", i+1)
		}
		if a.Trials < 0 || a.Successes < 0 || a.Successes > a.Trials {
			return validationError("activity %q: successes must be between 0 and trials", a.Name)
		}
	}
	return nil
}

func (in *SessionInput) validate(client *domain.Client) error {
	if in.Date.IsZero() {
		return validationError("date is required")
	}
	if in.DurationMinutes < 0 {
		return validationError("durationMinutes cannot be negative")
	}
	if err := validateActivities(in.Activities); err != nil {
		return err
	}
	for _, gp := range in.GoalProgress {
		if _, ok := client.Goal(gp.GoalID); !ok {
			return validationError("goal %s does not belong to this client", gp.GoalID.Hex())
		}
		if gp.Progress < 0 || gp.Progress > 100 {
			return validationError("goal progress must be between 0 and 100")
		}
	}
	return nil
}

func (s *sessionService) ownedClient(ctx context.Context, therapistID, clientID primitive.ObjectID) (*domain.Client, error) {
	client, err := s.clientRepo.GetOwned(ctx, clientID, therapistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

// Create records a session after reserving one unit of the monthly session limit.
func (s *sessionService) Create(ctx context.Context, therapistID primitive.ObjectID, input SessionInput) (*domain.Session, error) {
	client, err := s.ownedClient(ctx, therapistID, input.ClientID)
	if err != nil {
		return nil, err
	}
	if err := input.validate(client); err != nil {
		return nil, err
	}
	if err := s.usage.Reserve(ctx, therapistID, domain.ResourceSessions); err != nil {
		return nil, err
	}

	session := &domain.Session{
		ClientID:          client.ID,
		TherapistID:       therapistID,
		Date:              input.Date,
		DurationMinutes:   input.DurationMinutes,
		Activities:        input.Activities,
		Observations:      input.Observations,
		Notes:             input.Notes,
		GoalProgress:      input.GoalProgress,
		SharedWithParents: input.SharedWithParents,
	}
	id, err := s.sessionRepo.Create(ctx, session)
	if err != nil {
		s.usage.Release(ctx, therapistID, domain.ResourceSessions)
		return nil, err
	}
	session.ID = id

	s.applyGoalProgress(ctx, client, session.GoalProgress)
	return session, nil
}

// CreateFromTemplate starts a session whose activities are copied from a template.
func (s *sessionService) CreateFromTemplate(ctx context.Context, therapistID, templateID, clientID primitive.ObjectID, date time.Time) (*domain.Session, error) {
	tmpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if tmpl.TherapistID != therapistID {
		return nil, ErrTemplateNotFound
	}

	activities := make([]domain.Activity, len(tmpl.Activities))
	copy(activities, tmpl.Activities)
	return s.Create(ctx, therapistID, SessionInput{
		ClientID:   clientID,
		Date:       date,
		Activities: activities,
	})
}

func (s *sessionService) Get(ctx context.Context, therapistID, sessionID primitive.ObjectID) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.TherapistID != therapistID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionService) List(ctx context.Context, filter repository.SessionFilter) (*SessionPage, error) {
	if filter.TherapistID.IsZero() {
		return nil, ErrForbidden
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, validationError("'to' must not be before 'from'")
	}
	filter.Page = filter.Page.Normalize()

	items, total, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SessionPage{Items: items, Total: total, Page: filter.Page.Page, Limit: filter.Page.Limit}, nil
}

func (s *sessionService) Update(ctx context.Context, therapistID, sessionID primitive.ObjectID, input SessionInput) (*domain.Session, error) {
	session, err := s.Get(ctx, therapistID, sessionID)
	if err != nil {
		return nil, err
	}
	// A session cannot be moved to another client.
	client, err := s.ownedClient(ctx, therapistID, session.ClientID)
	if err != nil {
		return nil, err
	}
	if err := input.validate(client); err != nil {
		return nil, err
	}

	session.Date = input.Date
	session.DurationMinutes = input.DurationMinutes
	session.Activities = input.Activities
	session.Observations = input.Observations
	session.Notes = input.Notes
	session.GoalProgress = input.GoalProgress
	session.SharedWithParents = input.SharedWithParents
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.applyGoalProgress(ctx, client, session.GoalProgress)
	return session, nil
}

// Delete removes the session and its media. The monthly session count is not refunded.
func (s *sessionService) Delete(ctx context.Context, therapistID, sessionID primitive.ObjectID) error {
	if _, err := s.Get(ctx, therapistID, sessionID); err != nil {
		return err
	}
	if err := s.media.DeleteForSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.Delete(ctx, sessionID, therapistID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// applyGoalProgress copies session progress onto the client's goals.
func (s *sessionService) applyGoalProgress(ctx context.Context, client *domain.Client, entries []domain.GoalProgress) {
	for _, gp := range entries {
		goal, ok := client.Goal(gp.GoalID)
		if !ok {
			continue
		}
		status := progressStatus(goal.Status, gp.Progress)
		if err := s.clientRepo.SetGoalProgress(ctx, client.ID, gp.GoalID, gp.Progress, status); err != nil {
			s.logger.ErrorContext(ctx, "failed to update goal progress",
				"client_id", client.ID.Hex(), "goal_id", gp.GoalID.Hex(), "error", err)
			continue
		}
		goal.Progress = gp.Progress
		goal.Status = status
	}
}

// progressStatus derives a goal's status from newly recorded progress.
func progressStatus(current domain.GoalStatus, progress int) domain.GoalStatus {
	switch {
	case progress >= 100:
		return domain.GoalAchieved
	case current == domain.GoalDiscontinued:
		return current
	case progress > 0 || current == domain.GoalAchieved:
		return domain.GoalInProgress
	}
	return current
}
