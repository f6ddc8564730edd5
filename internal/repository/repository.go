package repository

import (
	"context"
	"math"
	"time"

	"regulie/therapy-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrConflict     = RepositoryError("document is not in the expected state")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Skip within int32 on every platform.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Page describes a 1-based page of results.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit to valid values.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Skip returns the number of documents before this page.
func (p Page) Skip() int64 {
	return int64(p.Page-1) * int64(p.Limit)
}

// ClientFilter narrows client listings. TherapistID or ParentID must be set.
type ClientFilter struct {
	TherapistID primitive.ObjectID
	ParentID    primitive.ObjectID
	Search      string
	Status      domain.ClientStatus
	GoalStatus  domain.GoalStatus
	HasParent   *bool
	Page
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	TherapistID primitive.ObjectID
	ClientID    primitive.ObjectID
	From        *time.Time
	To          *time.Time
	Activity    string
	SharedOnly  bool
	Page
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	SetGoogleID(ctx context.Context, id primitive.ObjectID, googleID string) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	SetPasswordReset(ctx context.Context, id primitive.ObjectID, reset *domain.PasswordReset) error
	UpdateMFA(ctx context.Context, id primitive.ObjectID, mfa domain.MFASettings) error
	SetStripeCustomer(ctx context.Context, id primitive.ObjectID, customerID string) error
	UpdateSubscription(ctx context.Context, id primitive.ObjectID, tier domain.Tier, sub domain.Subscription) error

	// ResetMonthlyUsage zeroes the monthly counters if the stored period started before periodStart.
	ResetMonthlyUsage(ctx context.Context, id primitive.ObjectID, periodStart time.Time) error
	// IncrementUsage atomically increments the counter for resource if it is below limit.
	// A negative limit means unlimited. Returns false when the limit was reached.
	IncrementUsage(ctx context.Context, id primitive.ObjectID, resource domain.Resource, limit int) (bool, error)
	DecrementUsage(ctx context.Context, id primitive.ObjectID, resource domain.Resource) error
}

// ClientRepository defines the interface for interacting with client records.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error)
	// GetOwned returns the client only when it belongs to therapistID.
	GetOwned(ctx context.Context, id, therapistID primitive.ObjectID) (*domain.Client, error)
	List(ctx context.Context, filter ClientFilter) ([]domain.Client, int64, error)
	Update(ctx context.Context, client *domain.Client) error
	Delete(ctx context.Context, id, therapistID primitive.ObjectID) error

	AddGoal(ctx context.Context, clientID, therapistID primitive.ObjectID, goal domain.Goal) error
	UpdateGoal(ctx context.Context, clientID, therapistID primitive.ObjectID, goal domain.Goal) error
	DeleteGoal(ctx context.Context, clientID, therapistID, goalID primitive.ObjectID) error
	SetGoalProgress(ctx context.Context, clientID, goalID primitive.ObjectID, progress int, status domain.GoalStatus) error

	AddParent(ctx context.Context, clientID, parentID primitive.ObjectID) error
	RemoveParent(ctx context.Context, clientID, therapistID, parentID primitive.ObjectID) error
}

// SessionRepository defines the interface for interacting with session notes.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.Session, int64, error)
	Update(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id, therapistID primitive.ObjectID) error
	DeleteByClientID(ctx context.Context, clientID primitive.ObjectID) (int64, error)
	AddMedia(ctx context.Context, sessionID, mediaID primitive.ObjectID) error
	RemoveMedia(ctx context.Context, sessionID, mediaID primitive.ObjectID) error
}

// TemplateRepository defines the interface for interacting with activity templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *domain.Template) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Template, error)
	GetByTherapistID(ctx context.Context, therapistID primitive.ObjectID) ([]domain.Template, error)
	Update(ctx context.Context, template *domain.Template) error
	Delete(ctx context.Context, id, therapistID primitive.ObjectID) error
}

// AccessRequestRepository defines the interface for the parent linking workflow.
type AccessRequestRepository interface {
	Create(ctx context.Context, req *domain.AccessRequest) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.AccessRequest, error)
	GetByParentID(ctx context.Context, parentID primitive.ObjectID) ([]domain.AccessRequest, error)
	GetByTherapistID(ctx context.Context, therapistID primitive.ObjectID, status domain.AccessRequestStatus) ([]domain.AccessRequest, error)
	ExistsPending(ctx context.Context, parentID, therapistID primitive.ObjectID, childName string) (bool, error)
	// Respond moves a pending request to status. Returns ErrConflict if it is no longer pending.
	Respond(ctx context.Context, id primitive.ObjectID, status domain.AccessRequestStatus, clientID *primitive.ObjectID, respondedAt time.Time) error
	// DeletePending removes a parent's own pending request.
	DeletePending(ctx context.Context, id, parentID primitive.ObjectID) error
}

// MediaRepository defines the interface for interacting with media metadata.
type MediaRepository interface {
	Create(ctx context.Context, media *domain.Media) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Media, error)
	GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.Media, error)
	GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.Media, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByClientID(ctx context.Context, clientID primitive.ObjectID) (int64, error)
}
