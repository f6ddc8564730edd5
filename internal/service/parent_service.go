package service

import (
	"context"
	"errors"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParentService is the read-only view of linked clients for parents.
type ParentService interface {
	ListClients(ctx context.Context, parentID primitive.ObjectID, page repository.Page) (*ClientPage, error)
	GetClient(ctx context.Context, parentID, clientID primitive.ObjectID) (*domain.Client, error)
	ListSharedSessions(ctx context.Context, parentID, clientID primitive.ObjectID, page repository.Page) (*SessionPage, error)
}

type parentService struct {
	clientRepo  repository.ClientRepository
	sessionRepo repository.SessionRepository
}

func NewParentService(clientRepo repository.ClientRepository, sessionRepo repository.SessionRepository) ParentService {
	return &parentService{clientRepo: clientRepo, sessionRepo: sessionRepo}
}

func (s *parentService) ListClients(ctx context.Context, parentID primitive.ObjectID, page repository.Page) (*ClientPage, error) {
	filter := repository.ClientFilter{ParentID: parentID, Page: page.Normalize()}
	items, total, err := s.clientRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ClientPage{Items: items, Total: total, Page: filter.Page.Page, Limit: filter.Page.Limit}, nil
}

// GetClient returns the client only if parentID is linked to it.
func (s *parentService) GetClient(ctx context.Context, parentID, clientID primitive.ObjectID) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !client.HasParent(parentID) {
		return nil, ErrClientNotFound
	}
	return client, nil
}

func (s *parentService) ListSharedSessions(ctx context.Context, parentID, clientID primitive.ObjectID, page repository.Page) (*SessionPage, error) {
	client, err := s.GetClient(ctx, parentID, clientID)
	if err != nil {
		return nil, err
	}
	filter := repository.SessionFilter{
		TherapistID: client.TherapistID,
		ClientID:    client.ID,
		SharedOnly:  true,
		Page:        page.Normalize(),
	}
	items, total, err := s.sessionRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SessionPage{Items: items, Total: total, Page: filter.Page.Page, Limit: filter.Page.Limit}, nil
}
