package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/email"
	"regulie/therapy-app/internal/repository"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrTherapistNotFound = errors.New("no therapist with this email")
	ErrDuplicateRequest  = errors.New("a pending request for this child already exists")
	ErrRequestNotPending = errors.New("access request has already been answered")
)

type AccessRequestService interface {
	// Parent side
	Create(ctx context.Context, parentID primitive.ObjectID, therapistEmail, childName, message string) (*domain.AccessRequest, error)
	ListForParent(ctx context.Context, parentID primitive.ObjectID) ([]domain.AccessRequest, error)
	Cancel(ctx context.Context, parentID, requestID primitive.ObjectID) error

	// Therapist side
	ListForTherapist(ctx context.Context, therapistID primitive.ObjectID, status domain.AccessRequestStatus) ([]domain.AccessRequest, error)
	Approve(ctx context.Context, therapistID, requestID, clientID primitive.ObjectID) (*domain.AccessRequest, error)
	Reject(ctx context.Context, therapistID, requestID primitive.ObjectID) (*domain.AccessRequest, error)
}

type accessRequestService struct {
	requestRepo repository.AccessRequestRepository
	userRepo    repository.UserRepository
	clientRepo  repository.ClientRepository
	mailer      email.Sender
	templates   email.Templates
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewAccessRequestService(
	requestRepo repository.AccessRequestRepository,
	userRepo repository.UserRepository,
	clientRepo repository.ClientRepository,
	mailer email.Sender,
	templates email.Templates,
	clock clockwork.Clock,
	logger *slog.Logger,
) AccessRequestService {
	return &accessRequestService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		clientRepo:  clientRepo,
		mailer:      mailer,
		templates:   templates,
		clock:       clock,
		logger:      logger,
	}
}

func (s *accessRequestService) Create(ctx context.Context, parentID primitive.ObjectID, therapistEmail, childName, message string) (*domain.AccessRequest, error) {
	childName = strings.TrimSpace(childName)
	if childName == "" {
		return nil, validationError("childName is required")
	}

	parent, err := s.userRepo.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	therapist, err := s.userRepo.GetByEmail(ctx, normalizeEmail(therapistEmail))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}
	if !therapist.IsTherapist() {
		return nil, ErrTherapistNotFound
	}

	exists, err := s.requestRepo.ExistsPending(ctx, parentID, therapist.ID, childName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateRequest
	}

	req := &domain.AccessRequest{
		ParentID:    parentID,
		TherapistID: therapist.ID,
		ChildName:   childName,
		Message:     strings.TrimSpace(message),
		Status:      domain.AccessPending,
	}
	id, err := s.requestRepo.Create(ctx, req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}
	req.ID = id

	s.notify(ctx, s.templates.AccessRequestReceived(therapist.Email, therapist.Name, parent.Name, childName))
	return req, nil
}

func (s *accessRequestService) ListForParent(ctx context.Context, parentID primitive.ObjectID) ([]domain.AccessRequest, error) {
	return s.requestRepo.GetByParentID(ctx, parentID)
}

func (s *accessRequestService) Cancel(ctx context.Context, parentID, requestID primitive.ObjectID) error {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccessRequestNotFound
		}
		return err
	}
	if req.ParentID != parentID {
		return ErrAccessRequestNotFound
	}
	if req.Status != domain.AccessPending {
		return ErrRequestNotPending
	}
	if err := s.requestRepo.DeletePending(ctx, requestID, parentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRequestNotPending
		}
		return err
	}
	return nil
}

func (s *accessRequestService) ListForTherapist(ctx context.Context, therapistID primitive.ObjectID, status domain.AccessRequestStatus) ([]domain.AccessRequest, error) {
	if status != "" && !status.Valid() {
		return nil, validationError("unknown status %q", status)
	}
	return s.requestRepo.GetByTherapistID(ctx, therapistID, status)
}

// pending loads a request addressed to therapistID that can still be answered.
func (s *accessRequestService) pending(ctx context.Context, therapistID, requestID primitive.ObjectID) (*domain.AccessRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccessRequestNotFound
		}
		return nil, err
	}
	if req.TherapistID != therapistID {
		return nil, ErrAccessRequestNotFound
	}
	if req.Status != domain.AccessPending {
		return nil, ErrRequestNotPending
	}
	return req, nil
}

// Approve links the requesting parent to clientID. The status transition happens
// first so two concurrent approvals cannot both link.
func (s *accessRequestService) Approve(ctx context.Context, therapistID, requestID, clientID primitive.ObjectID) (*domain.AccessRequest, error) {
	req, err := s.pending(ctx, therapistID, requestID)
	if err != nil {
		return nil, err
	}
	client, err := s.clientRepo.GetOwned(ctx, clientID, therapistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	if err := s.requestRepo.Respond(ctx, requestID, domain.AccessApproved, &clientID, now); err != nil {
		return nil, s.mapRespondErr(err)
	}
	if err := s.clientRepo.AddParent(ctx, client.ID, req.ParentID); err != nil {
		return nil, err
	}

	req.Status = domain.AccessApproved
	req.ClientID = &clientID
	req.RespondedAt = &now
	s.notifyParent(ctx, req, true)
	return req, nil
}

func (s *accessRequestService) Reject(ctx context.Context, therapistID, requestID primitive.ObjectID) (*domain.AccessRequest, error) {
	req, err := s.pending(ctx, therapistID, requestID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if err := s.requestRepo.Respond(ctx, requestID, domain.AccessRejected, nil, now); err != nil {
		return nil, s.mapRespondErr(err)
	}
	req.Status = domain.AccessRejected
	req.RespondedAt = &now
	s.notifyParent(ctx, req, false)
	return req, nil
}

func (s *accessRequestService) mapRespondErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrRequestNotPending
	case errors.Is(err, repository.ErrNotFound):
		return ErrAccessRequestNotFound
	}
	return err
}

func (s *accessRequestService) notifyParent(ctx context.Context, req *domain.AccessRequest, approved bool) {
	parent, err := s.userRepo.GetByID(ctx, req.ParentID)
	if err != nil {
		s.logger.WarnContext(ctx, "could not load parent for notification", "parent_id", req.ParentID.Hex(), "error", err)
		return
	}
	s.notify(ctx, s.templates.AccessRequestAnswered(parent.Email, parent.Name, req.ChildName, approved))
}

// notify sends best-effort; the request state is already committed.
func (s *accessRequestService) notify(ctx context.Context, msg email.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to send notification", "template", msg.Template, "error", err)
	}
}
