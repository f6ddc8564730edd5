package service

import (
	"errors"
	"fmt"
	"time"

	"regulie/therapy-app/internal/domain"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrTokenGeneration = errors.New("failed to generate authentication token")
)

// Token purposes. Access tokens carry no purpose claim.
const (
	PurposeAccess = ""
	PurposeMFA    = "mfa"
)

// Claims defines the structure of the JWT payload.
type Claims struct {
	UserID  string      `json:"uid"`
	Role    domain.Role `json:"role"`
	Purpose string      `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	mfaTTL    time.Duration
	clock     clockwork.Clock
}

func NewTokenManager(secret, issuer string, accessTTL, mfaTTL time.Duration, clock clockwork.Clock) *TokenManager {
	if secret == "" {
		panic("JWT secret cannot be empty")
	}
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if mfaTTL <= 0 {
		mfaTTL = 5 * time.Minute
	}
	return &TokenManager{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
		mfaTTL:    mfaTTL,
		clock:     clock,
	}
}

// IssueAccess returns a bearer token for API access.
func (m *TokenManager) IssueAccess(user *domain.User) (string, error) {
	return m.issue(user, PurposeAccess, m.accessTTL)
}

// IssueMFA returns a short-lived token that only LoginMFA accepts.
func (m *TokenManager) IssueMFA(user *domain.User) (string, error) {
	return m.issue(user, PurposeMFA, m.mfaTTL)
}

func (m *TokenManager) issue(user *domain.User, purpose string, ttl time.Duration) (string, error) {
	now := m.clock.Now()
	claims := &Claims{
		UserID:  user.ID.Hex(),
		Role:    user.Role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// Parse validates signature, expiry and purpose and returns the claims.
func (m *TokenManager) Parse(tokenString, purpose string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Time-based checks use the injected clock rather than the library's wall clock.
	now := m.clock.Now()
	if claims.ExpiresAt == nil || !claims.VerifyExpiresAt(now, true) {
		return nil, ErrInvalidToken
	}
	if m.issuer != "" && !claims.VerifyIssuer(m.issuer, true) {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
