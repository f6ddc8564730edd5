package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/email"
	"regulie/therapy-app/internal/metrics"
	"regulie/therapy-app/internal/oauth"
	"regulie/therapy-app/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrInvalidResetToken    = errors.New("password reset link is invalid or has expired")
)

const (
	MinPasswordLength = 8
	resetTokenTTL     = time.Hour
)

// LoginResult is either a full session or an MFA challenge.
type LoginResult struct {
	Token       string       `json:"token,omitempty"`
	User        *domain.User `json:"user,omitempty"`
	MFARequired bool         `json:"mfaRequired,omitempty"`
	MFAToken    string       `json:"mfaToken,omitempty"`
}

type AuthService interface {
	Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	LoginMFA(ctx context.Context, mfaToken, code string) (*LoginResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID primitive.ObjectID, currentPassword, newPassword string) error
	GetUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
}

// authService implements the AuthService interface.
type authService struct {
	userRepo  repository.UserRepository
	tokens    *TokenManager
	mfa       MFAService
	google    oauth.GoogleVerifier
	mailer    email.Sender
	templates email.Templates
	clock     clockwork.Clock
	logger    *slog.Logger
}

type AuthDeps struct {
	UserRepo  repository.UserRepository
	Tokens    *TokenManager
	MFA       MFAService
	Google    oauth.GoogleVerifier
	Mailer    email.Sender
	Templates email.Templates
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

func NewAuthService(d AuthDeps) AuthService {
	return &authService{
		userRepo:  d.UserRepo,
		tokens:    d.Tokens,
		mfa:       d.MFA,
		google:    d.Google,
		mailer:    d.Mailer,
		templates: d.Templates,
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return validationError("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Register handles new user registration.
func (s *authService) Register(ctx context.Context, name, emailAddr, password string, role domain.Role) (*domain.User, error) {
	name = strings.TrimSpace(name)
	emailAddr = normalizeEmail(emailAddr)
	if name == "" {
		return nil, validationError("name is required")
	}
	if _, err := mail.ParseAddress(emailAddr); err != nil {
		return nil, validationError("email address is invalid")
	}
	if role != domain.RoleTherapist && role != domain.RoleParent {
		return nil, validationError("role must be therapist or parent")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	user := s.newUser(name, emailAddr, role)
	user.PasswordHash = string(hashedPassword)

	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		// The unique index catches a concurrent registration of the same email.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	user.ID = userID
	metrics.RegistrationsTotal.WithLabelValues(string(role)).Inc()

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) newUser(name, emailAddr string, role domain.Role) *domain.User {
	user := &domain.User{Name: name, Email: emailAddr, Role: role}
	if role == domain.RoleTherapist {
		user.Tier = domain.TierFree
		user.Usage.PeriodStart = domain.MonthStart(s.clock.Now())
	}
	return user
}

// Login checks credentials and either issues a token or an MFA challenge.
func (s *authService) Login(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}

	// Accounts created through Google have no password hash.
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.LoginsTotal.WithLabelValues("password", "failure").Inc()
		return nil, ErrAuthenticationFailed
	}
	return s.completeLogin(user, "password")
}

func (s *authService) completeLogin(user *domain.User, method string) (*LoginResult, error) {
	if user.MFA.Enabled {
		mfaToken, err := s.tokens.IssueMFA(user)
		if err != nil {
			return nil, err
		}
		metrics.LoginsTotal.WithLabelValues(method, "mfa_required").Inc()
		return &LoginResult{MFARequired: true, MFAToken: mfaToken}, nil
	}

	token, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues(method, "success").Inc()
	user.PasswordHash = ""
	return &LoginResult{Token: token, User: user}, nil
}

// LoginMFA exchanges an MFA challenge token and a TOTP code for an access token.
func (s *authService) LoginMFA(ctx context.Context, mfaToken, code string) (*LoginResult, error) {
	claims, err := s.tokens.Parse(mfaToken, PurposeMFA)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if !s.mfa.Verify(user, code) {
		metrics.LoginsTotal.WithLabelValues("mfa", "failure").Inc()
		return nil, ErrAuthenticationFailed
	}

	token, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("mfa", "success").Inc()
	user.PasswordHash = ""
	return &LoginResult{Token: token, User: user}, nil
}

// GoogleLogin signs in with a Google ID token, linking or creating the account.
func (s *authService) GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error) {
	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("google", "failure").Inc()
		return nil, err
	}

	user, err := s.userRepo.GetByGoogleID(ctx, identity.Subject)
	if err == nil {
		return s.completeLogin(user, "google")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	emailAddr := normalizeEmail(identity.Email)
	user, err = s.userRepo.GetByEmail(ctx, emailAddr)
	switch {
	case err == nil:
		if err := s.userRepo.SetGoogleID(ctx, user.ID, identity.Subject); err != nil {
			return nil, err
		}
		user.GoogleID = identity.Subject
	case errors.Is(err, repository.ErrNotFound):
		name := identity.Name
		if name == "" {
			name = emailAddr
		}
		user = s.newUser(name, emailAddr, domain.RoleTherapist)
		user.GoogleID = identity.Subject
		id, err := s.userRepo.Create(ctx, user)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, ErrUserAlreadyExists
			}
			return nil, err
		}
		user.ID = id
		metrics.RegistrationsTotal.WithLabelValues(string(user.Role)).Inc()
	default:
		return nil, err
	}
	return s.completeLogin(user, "google")
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ForgotPassword emails a reset link. Unknown addresses succeed silently.
func (s *authService) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	reset := &domain.PasswordReset{
		TokenHash: hashToken(token),
		ExpiresAt: s.clock.Now().Add(resetTokenTTL).UTC(),
	}
	if err := s.userRepo.SetPasswordReset(ctx, user.ID, reset); err != nil {
		return err
	}

	msg := s.templates.PasswordReset(user.Email, user.Name, token)
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email", "user_id", user.ID.Hex(), "error", err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetByResetTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if user.PasswordReset == nil || !s.clock.Now().Before(user.PasswordReset.ExpiresAt) {
		return ErrInvalidResetToken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrHashingFailed
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, string(hashed))
}

func (s *authService) ChangePassword(ctx context.Context, userID primitive.ObjectID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	// Google-only accounts may set a first password without one.
	if user.PasswordHash != "" && bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrAuthenticationFailed
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrHashingFailed
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, string(hashed))
}

func (s *authService) GetUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}
