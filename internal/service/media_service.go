package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"
	"regulie/therapy-app/internal/storage"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrUnsupportedContentType = errors.New("file type is not allowed")
	ErrFileTooLarge           = errors.New("file exceeds the upload size allowed for your plan")
	ErrInvalidObjectKey       = errors.New("object key does not belong to this session")
	ErrUploadNotFound         = errors.New("uploaded file not found in storage")
)

// UploadTicket tells the client where to PUT a file.
type UploadTicket struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UploadRequest struct {
	SessionID   primitive.ObjectID
	FileName    string
	ContentType string
	Size        int64
}

type ConfirmUpload struct {
	SessionID   primitive.ObjectID
	ObjectKey   string
	FileName    string
	ContentType string
}

// Viewer identifies who is asking for a download URL.
type Viewer struct {
	UserID primitive.ObjectID
	Role   domain.Role
}

type MediaService interface {
	RequestUpload(ctx context.Context, therapistID primitive.ObjectID, req UploadRequest) (*UploadTicket, error)
	Confirm(ctx context.Context, therapistID primitive.ObjectID, req ConfirmUpload) (*domain.Media, error)
	ListForSession(ctx context.Context, therapistID, sessionID primitive.ObjectID) ([]domain.Media, error)
	DownloadURL(ctx context.Context, viewer Viewer, mediaID primitive.ObjectID) (string, error)
	Delete(ctx context.Context, therapistID, mediaID primitive.ObjectID) error

	DeleteForSession(ctx context.Context, sessionID primitive.ObjectID) error
	DeleteForClient(ctx context.Context, clientID primitive.ObjectID) error
}

type mediaService struct {
	mediaRepo   repository.MediaRepository
	sessionRepo repository.SessionRepository
	clientRepo  repository.ClientRepository
	storage     storage.FileStorage
	usage       UsageService
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewMediaService(
	mediaRepo repository.MediaRepository,
	sessionRepo repository.SessionRepository,
	clientRepo repository.ClientRepository,
	fileStorage storage.FileStorage,
	usage UsageService,
	clock clockwork.Clock,
	logger *slog.Logger,
) MediaService {
	return &mediaService{
		mediaRepo:   mediaRepo,
		sessionRepo: sessionRepo,
		clientRepo:  clientRepo,
		storage:     fileStorage,
		usage:       usage,
		clock:       clock,
		logger:      logger,
	}
}

// AllowedContentType reports whether files of type ct may be attached to sessions.
func AllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"), strings.HasPrefix(ct, "video/"), strings.HasPrefix(ct, "audio/"):
		return len(ct) > strings.IndexByte(ct, '/')+1
	case ct == "application/pdf":
		return true
	}
	return false
}

func sessionKeyPrefix(therapistID, sessionID primitive.ObjectID) string {
	return fmt.Sprintf("therapists/%s/sessions/%s/", therapistID.Hex(), sessionID.Hex())
}

func (s *mediaService) ownedSession(ctx context.Context, therapistID, sessionID primitive.ObjectID) (*domain.Session, error) {
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

func (s *mediaService) checkSize(ctx context.Context, therapistID primitive.ObjectID, size int64) error {
	limit, err := s.usage.MaxUploadBytes(ctx, therapistID)
	if err != nil {
		return err
	}
	if size > limit {
		return ErrFileTooLarge
	}
	return nil
}

// RequestUpload returns a presigned PUT URL under the session's key prefix.
func (s *mediaService) RequestUpload(ctx context.Context, therapistID primitive.ObjectID, req UploadRequest) (*UploadTicket, error) {
	if !AllowedContentType(req.ContentType) {
		return nil, ErrUnsupportedContentType
	}
	if req.Size <= 0 {
		return nil, validationError("size must be positive")
	}
	if _, err := s.ownedSession(ctx, therapistID, req.SessionID); err != nil {
		return nil, err
	}
	if err := s.checkSize(ctx, therapistID, req.Size); err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(req.FileName))
	objectKey := sessionKeyPrefix(therapistID, req.SessionID) + uuid.NewString() + ext

	url, err := s.storage.GeneratePresignedUploadURL(ctx, objectKey, req.ContentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{
		UploadURL: url,
		ObjectKey: objectKey,
		ExpiresAt: s.clock.Now().Add(storage.DefaultPresignedURLExpiry).UTC(),
	}, nil
}

// Confirm records a completed upload. Size and type are taken from the stored object.
func (s *mediaService) Confirm(ctx context.Context, therapistID primitive.ObjectID, req ConfirmUpload) (*domain.Media, error) {
	session, err := s.ownedSession(ctx, therapistID, req.SessionID)
	if err != nil {
		return nil, err
	}
	prefix := sessionKeyPrefix(therapistID, req.SessionID)
	if !strings.HasPrefix(req.ObjectKey, prefix) || strings.Contains(req.ObjectKey[len(prefix):], "/") {
		return nil, ErrInvalidObjectKey
	}

	meta, err := s.storage.GetObjectMetadata(ctx, req.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = req.ContentType
	}
	if !AllowedContentType(contentType) {
		s.discardObject(ctx, req.ObjectKey)
		return nil, ErrUnsupportedContentType
	}
	if err := s.checkSize(ctx, therapistID, meta.Size); err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			s.discardObject(ctx, req.ObjectKey)
		}
		return nil, err
	}

	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = path.Base(req.ObjectKey)
	}
	media := &domain.Media{
		SessionID:   session.ID,
		ClientID:    session.ClientID,
		TherapistID: therapistID,
		ObjectKey:   req.ObjectKey,
		FileName:    fileName,
		ContentType: contentType,
		Size:        meta.Size,
		UploadedAt:  s.clock.Now().UTC(),
	}
	id, err := s.mediaRepo.Create(ctx, media)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvalidObjectKey
		}
		return nil, err
	}
	media.ID = id

	if err := s.sessionRepo.AddMedia(ctx, session.ID, id); err != nil {
		return nil, err
	}
	return media, nil
}

func (s *mediaService) discardObject(ctx context.Context, objectKey string) {
	if err := s.storage.DeleteObject(ctx, objectKey); err != nil {
		s.logger.WarnContext(ctx, "failed to discard rejected upload", "object_key", objectKey, "error", err)
	}
}

func (s *mediaService) ListForSession(ctx context.Context, therapistID, sessionID primitive.ObjectID) ([]domain.Media, error) {
	if _, err := s.ownedSession(ctx, therapistID, sessionID); err != nil {
		return nil, err
	}
	return s.mediaRepo.GetBySessionID(ctx, sessionID)
}

func (s *mediaService) getMedia(ctx context.Context, mediaID primitive.ObjectID) (*domain.Media, error) {
	media, err := s.mediaRepo.GetByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return media, nil
}

// DownloadURL is granted to the owning therapist, or to a linked parent when the
// session is shared.
func (s *mediaService) DownloadURL(ctx context.Context, viewer Viewer, mediaID primitive.ObjectID) (string, error) {
	media, err := s.getMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}

	switch viewer.Role {
	case domain.RoleTherapist:
		if media.TherapistID != viewer.UserID {
			return "", ErrMediaNotFound
		}
	case domain.RoleParent:
		if err := s.checkParentAccess(ctx, viewer.UserID, media); err != nil {
			return "", err
		}
	default:
		return "", ErrMediaNotFound
	}

	return s.storage.GeneratePresignedDownloadURL(ctx, media.ObjectKey, storage.DefaultPresignedURLExpiry)
}

func (s *mediaService) checkParentAccess(ctx context.Context, parentID primitive.ObjectID, media *domain.Media) error {
	session, err := s.sessionRepo.GetByID(ctx, media.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMediaNotFound
		}
		return err
	}
	if !session.SharedWithParents {
		return ErrMediaNotFound
	}
	client, err := s.clientRepo.GetByID(ctx, media.ClientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMediaNotFound
		}
		return err
	}
	if !client.HasParent(parentID) {
		return ErrMediaNotFound
	}
	return nil
}

func (s *mediaService) Delete(ctx context.Context, therapistID, mediaID primitive.ObjectID) error {
	media, err := s.getMedia(ctx, mediaID)
	if err != nil {
		return err
	}
	if media.TherapistID != therapistID {
		return ErrMediaNotFound
	}
	if err := s.deleteObject(ctx, media.ObjectKey); err != nil {
		return err
	}
	if err := s.mediaRepo.Delete(ctx, media.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := s.sessionRepo.RemoveMedia(ctx, media.SessionID, media.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

// deleteObject treats an already missing object as deleted.
func (s *mediaService) deleteObject(ctx context.Context, objectKey string) error {
	err := s.storage.DeleteObject(ctx, objectKey)
	if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	return nil
}

func (s *mediaService) DeleteForSession(ctx context.Context, sessionID primitive.ObjectID) error {
	items, err := s.mediaRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, m := range items {
		if err := s.deleteObject(ctx, m.ObjectKey); err != nil {
			return err
		}
		if err := s.mediaRepo.Delete(ctx, m.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *mediaService) DeleteForClient(ctx context.Context, clientID primitive.ObjectID) error {
	items, err := s.mediaRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range items {
		if err := s.deleteObject(ctx, m.ObjectKey); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", m.ObjectKey, err))
		}
	}
	if _, err := s.mediaRepo.DeleteByClientID(ctx, clientID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
