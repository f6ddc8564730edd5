// Package oauth verifies third-party identity tokens.
package oauth

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

var (
	ErrInvalidToken     = errors.New("invalid identity token")
	ErrEmailNotVerified = errors.New("google account email is not verified")
	ErrNotConfigured    = errors.New("google sign-in is not configured")
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier checks Google ID tokens issued for this application.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
}

type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

type googleVerifier struct {
	clientID string
	validate validateFunc
}

// NewGoogleVerifier returns a verifier for tokens whose audience is clientID.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleVerifier{clientID: clientID, validate: idtoken.Validate}
}

func (v *googleVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	if v.clientID == "" {
		return nil, ErrNotConfigured
	}
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	if verified, _ := payload.Claims["email_verified"].(bool); !verified {
		return nil, ErrEmailNotVerified
	}
	name, _ := payload.Claims["name"].(string)

	return &GoogleIdentity{Subject: payload.Subject, Email: email, Name: name}, nil
}
