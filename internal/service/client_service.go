package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientInput holds the editable fields of a client.
type ClientInput struct {
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Diagnosis   string
	Notes       string
	Status      domain.ClientStatus
}

// GoalInput holds the editable fields of a goal. A nil Progress leaves it unchanged.
type GoalInput struct {
	Description string
	Category    string
	TargetDate  *time.Time
	Status      domain.GoalStatus
	Progress    *int
}

// ClientPage is one page of a client listing.
type ClientPage struct {
	Items []domain.Client `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

type ClientService interface {
	Create(ctx context.Context, therapistID primitive.ObjectID, input ClientInput) (*domain.Client, error)
	Get(ctx context.Context, therapistID, clientID primitive.ObjectID) (*domain.Client, error)
	List(ctx context.Context, filter repository.ClientFilter) (*ClientPage, error)
	Update(ctx context.Context, therapistID, clientID primitive.ObjectID, input ClientInput) (*domain.Client, error)
	Delete(ctx context.Context, therapistID, clientID primitive.ObjectID) error

	AddGoal(ctx context.Context, therapistID, clientID primitive.ObjectID, input GoalInput) (*domain.Goal, error)
	UpdateGoal(ctx context.Context, therapistID, clientID, goalID primitive.ObjectID, input GoalInput) (*domain.Goal, error)
	DeleteGoal(ctx context.Context, therapistID, clientID, goalID primitive.ObjectID) error

	ListParents(ctx context.Context, therapistID, clientID primitive.ObjectID) ([]domain.User, error)
	UnlinkParent(ctx context.Context, therapistID, clientID, parentID primitive.ObjectID) error
}

type clientService struct {
	clientRepo  repository.ClientRepository
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	media       MediaService
	usage       UsageService
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewClientService(
	clientRepo repository.ClientRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	media MediaService,
	usage UsageService,
	clock clockwork.Clock,
	logger *slog.Logger,
) ClientService {
	return &clientService{
		clientRepo:  clientRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		media:       media,
		usage:       usage,
		clock:       clock,
		logger:      logger,
	}
}

func (in *ClientInput) normalize() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" {
		return validationError("firstName is required")
	}
	if in.Status == "" {
		in.Status = domain.ClientActive
	}
	if in.Status != domain.ClientActive && in.Status != domain.ClientArchived {
		return validationError("status must be active or archived")
	}
	return nil
}

// Create adds a client after reserving a slot under the therapist's client limit.
func (s *clientService) Create(ctx context.Context, therapistID primitive.ObjectID, input ClientInput) (*domain.Client, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	if err := s.usage.Reserve(ctx, therapistID, domain.ResourceClients); err != nil {
		return nil, err
	}

	client := &domain.Client{
		TherapistID: therapistID,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		DateOfBirth: input.DateOfBirth,
		Diagnosis:   input.Diagnosis,
		Notes:       input.Notes,
		Status:      input.Status,
	}
	id, err := s.clientRepo.Create(ctx, client)
	if err != nil {
		s.usage.Release(ctx, therapistID, domain.ResourceClients)
		return nil, err
	}
	client.ID = id
	return client, nil
}

func (s *clientService) Get(ctx context.Context, therapistID, clientID primitive.ObjectID) (*domain.Client, error) {
	client, err := s.clientRepo.GetOwned(ctx, clientID, therapistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

func (s *clientService) List(ctx context.Context, filter repository.ClientFilter) (*ClientPage, error) {
	if filter.TherapistID.IsZero() && filter.ParentID.IsZero() {
		return nil, ErrForbidden
	}
	if filter.GoalStatus != "" && !filter.GoalStatus.Valid() {
		return nil, validationError("unknown goal status %q", filter.GoalStatus)
	}
	filter.Page = filter.Page.Normalize()

	items, total, err := s.clientRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ClientPage{Items: items, Total: total, Page: filter.Page.Page, Limit: filter.Page.Limit}, nil
}

func (s *clientService) Update(ctx context.Context, therapistID, clientID primitive.ObjectID, input ClientInput) (*domain.Client, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	client, err := s.Get(ctx, therapistID, clientID)
	if err != nil {
		return nil, err
	}

	client.FirstName = input.FirstName
	client.LastName = input.LastName
	client.DateOfBirth = input.DateOfBirth
	client.Diagnosis = input.Diagnosis
	client.Notes = input.Notes
	client.Status = input.Status
	if err := s.clientRepo.Update(ctx, client); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

// Delete removes the client, frees its slot and then removes its sessions and media.
// Cleanup failures after the client is gone are logged, not returned.
func (s *clientService) Delete(ctx context.Context, therapistID, clientID primitive.ObjectID) error {
	if err := s.clientRepo.Delete(ctx, clientID, therapistID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	s.usage.Release(ctx, therapistID, domain.ResourceClients)

	if err := s.media.DeleteForClient(ctx, clientID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete client media", "client_id", clientID.Hex(), "error", err)
	}
	if n, err := s.sessionRepo.DeleteByClientID(ctx, clientID); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete client sessions", "client_id", clientID.Hex(), "error", err)
	} else {
		s.logger.InfoContext(ctx, "client deleted", "client_id", clientID.Hex(), "sessions_deleted", n)
	}
	return nil
}

// === Goals ===

func (in *GoalInput) validate() error {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return validationError("goal description is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return validationError("unknown goal status %q", in.Status)
	}
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > 100) {
		return validationError("progress must be between 0 and 100")
	}
	return nil
}

func (s *clientService) AddGoal(ctx context.Context, therapistID, clientID primitive.ObjectID, input GoalInput) (*domain.Goal, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	goal := domain.Goal{
		ID:          primitive.NewObjectID(),
		Description: input.Description,
		Category:    input.Category,
		TargetDate:  input.TargetDate,
		Status:      input.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if goal.Status == "" {
		goal.Status = domain.GoalNotStarted
	}
	if input.Progress != nil {
		goal.Progress = *input.Progress
	}

	if err := s.clientRepo.AddGoal(ctx, clientID, therapistID, goal); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &goal, nil
}

// UpdateGoal replaces a goal's editable fields; applying the same input twice is a no-op.
func (s *clientService) UpdateGoal(ctx context.Context, therapistID, clientID, goalID primitive.ObjectID, input GoalInput) (*domain.Goal, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	client, err := s.Get(ctx, therapistID, clientID)
	if err != nil {
		return nil, err
	}
	existing, ok := client.Goal(goalID)
	if !ok {
		return nil, ErrGoalNotFound
	}

	goal := *existing
	goal.Description = input.Description
	goal.Category = input.Category
	goal.TargetDate = input.TargetDate
	if input.Status != "" {
		goal.Status = input.Status
	}
	if input.Progress != nil {
		goal.Progress = *input.Progress
	}
	goal.UpdatedAt = s.clock.Now().UTC()

	if err := s.clientRepo.UpdateGoal(ctx, clientID, therapistID, goal); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return &goal, nil
}

func (s *clientService) DeleteGoal(ctx context.Context, therapistID, clientID, goalID primitive.ObjectID) error {
	if _, err := s.Get(ctx, therapistID, clientID); err != nil {
		return err
	}
	if err := s.clientRepo.DeleteGoal(ctx, clientID, therapistID, goalID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGoalNotFound
		}
		return err
	}
	return nil
}

// === Parent links ===

func (s *clientService) ListParents(ctx context.Context, therapistID, clientID primitive.ObjectID) ([]domain.User, error) {
	client, err := s.Get(ctx, therapistID, clientID)
	if err != nil {
		return nil, err
	}
	parents, err := s.userRepo.GetByIDs(ctx, client.ParentIDs)
	if err != nil {
		return nil, err
	}
	for i := range parents {
		parents[i].PasswordHash = ""
	}
	return parents, nil
}

func (s *clientService) UnlinkParent(ctx context.Context, therapistID, clientID, parentID primitive.ObjectID) error {
	client, err := s.Get(ctx, therapistID, clientID)
	if err != nil {
		return err
	}
	if !client.HasParent(parentID) {
		return ErrParentNotLinked
	}
	if err := s.clientRepo.RemoveParent(ctx, clientID, therapistID, parentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParentNotLinked
		}
		return err
	}
	return nil
}
