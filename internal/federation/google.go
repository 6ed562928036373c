// Package federation verifies identity assertions issued by third-party
// providers.
package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

const ProviderGoogle = "google"

var (
	ErrFederationDisabled  = errors.New("federated sign-in is not configured")
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	ErrInvalidAssertion    = errors.New("invalid identity assertion")
)

type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Firstname     string
	Lastname      string
	PhotoURL      string
}

type Verifier interface {
	Verify(ctx context.Context, provider string, assertion string) (Identity, error)
}

type validateFunc func(ctx context.Context, token string, audience string) (*idtoken.Payload, error)

// GoogleVerifier checks Google ID tokens against the configured OAuth client.
type GoogleVerifier struct {
	clientID string
	validate validateFunc
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: strings.TrimSpace(clientID), validate: idtoken.Validate}
}

func (v *GoogleVerifier) Verify(ctx context.Context, provider string, assertion string) (Identity, error) {
	if provider != ProviderGoogle {
		return Identity{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	if v.clientID == "" {
		return Identity{}, ErrFederationDisabled
	}
	if strings.TrimSpace(assertion) == "" {
		return Identity{}, ErrInvalidAssertion
	}

	payload, err := v.validate(ctx, assertion, v.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	return identityFromClaims(payload.Subject, payload.Claims)
}

func identityFromClaims(subject string, claims map[string]any) (Identity, error) {
	email, _ := claims["email"].(string)
	if email == "" {
		return Identity{}, fmt.Errorf("%w: email claim missing", ErrInvalidAssertion)
	}
	verified, _ := claims["email_verified"].(bool)
	if !verified {
		return Identity{}, fmt.Errorf("%w: email not verified by provider", ErrInvalidAssertion)
	}

	firstname, _ := claims["given_name"].(string)
	lastname, _ := claims["family_name"].(string)
	picture, _ := claims["picture"].(string)

	return Identity{
		Provider:      ProviderGoogle,
		Subject:       subject,
		Email:         strings.ToLower(email),
		EmailVerified: verified,
		Firstname:     firstname,
		Lastname:      lastname,
		PhotoURL:      picture,
	}, nil
}
