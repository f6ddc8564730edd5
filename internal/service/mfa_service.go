package service

import (
	"context"
	"errors"
	"fmt"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrMFAAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrMFANotEnabled     = errors.New("two-factor authentication is not enabled")
	ErrMFANotPending     = errors.New("two-factor setup has not been started")
	ErrInvalidMFACode    = errors.New("invalid two-factor code")
)

// One 30 second step of drift is accepted on either side.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// MFASetup is returned to the client to enrol an authenticator app.
type MFASetup struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauthUrl"`
}

type MFAService interface {
	Setup(ctx context.Context, userID primitive.ObjectID) (*MFASetup, error)
	Enable(ctx context.Context, userID primitive.ObjectID, code string) error
	Disable(ctx context.Context, userID primitive.ObjectID, code string) error
	// Verify checks code against the user's active secret.
	Verify(user *domain.User, code string) bool
}

type mfaService struct {
	userRepo repository.UserRepository
	issuer   string
	clock    clockwork.Clock
}

func NewMFAService(userRepo repository.UserRepository, issuer string, clock clockwork.Clock) MFAService {
	return &mfaService{userRepo: userRepo, issuer: issuer, clock: clock}
}

func (s *mfaService) loadUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Setup generates a new secret and stores it as pending until Enable confirms it.
func (s *mfaService) Setup(ctx context.Context, userID primitive.ObjectID) (*MFASetup, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFA.Enabled {
		return nil, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Email,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	user.MFA.PendingSecret = key.Secret()
	if err := s.userRepo.UpdateMFA(ctx, userID, user.MFA); err != nil {
		return nil, err
	}
	return &MFASetup{Secret: key.Secret(), OtpauthURL: key.URL()}, nil
}

func (s *mfaService) Enable(ctx context.Context, userID primitive.ObjectID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFA.Enabled {
		return ErrMFAAlreadyEnabled
	}
	if user.MFA.PendingSecret == "" {
		return ErrMFANotPending
	}
	if !s.validate(code, user.MFA.PendingSecret) {
		return ErrInvalidMFACode
	}

	return s.userRepo.UpdateMFA(ctx, userID, domain.MFASettings{
		Enabled: true,
		Secret:  user.MFA.PendingSecret,
	})
}

func (s *mfaService) Disable(ctx context.Context, userID primitive.ObjectID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFA.Enabled {
		return ErrMFANotEnabled
	}
	if !s.validate(code, user.MFA.Secret) {
		return ErrInvalidMFACode
	}
	return s.userRepo.UpdateMFA(ctx, userID, domain.MFASettings{})
}

func (s *mfaService) Verify(user *domain.User, code string) bool {
	if !user.MFA.Enabled || user.MFA.Secret == "" {
		return false
	}
	return s.validate(code, user.MFA.Secret)
}

func (s *mfaService) validate(code, secret string) bool {
	if code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.clock.Now().UTC(), totpOpts)
	return err == nil && ok
}
