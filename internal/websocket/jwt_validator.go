package websocket

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// ErrInvalidToken is returned when JWT validation fails
var ErrInvalidToken = errors.New("invalid token")

// CustomClaims contains the custom claims from Auth0 JWT
type CustomClaims struct {
	Roles []string `json:"https://velora.app/roles"`
}

// Validate implements validator.CustomClaims
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// IsAdmin reports whether the token carries the admin role
func (c CustomClaims) IsAdmin() bool {
	for _, r := range c.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// Auth0JWTValidator validates Auth0 JWT tokens for WebSocket connections
type Auth0JWTValidator struct {
	validator *validator.Validator
}

// NewAuth0JWTValidator creates a new Auth0JWTValidator
func NewAuth0JWTValidator(domain, audience string) (*Auth0JWTValidator, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &Auth0JWTValidator{validator: jwtValidator}, nil
}

// ValidateToken validates a JWT token and returns the subject and custom claims
func (v *Auth0JWTValidator) ValidateToken(token string) (subject string, claims *CustomClaims, err error) {
	ctx := context.Background()

	validated, err := v.validator.ValidateToken(ctx, token)
	if err != nil {
		return "", nil, ErrInvalidToken
	}

	validatedClaims, ok := validated.(*validator.ValidatedClaims)
	if !ok {
		return "", nil, ErrInvalidToken
	}

	custom, ok := validatedClaims.CustomClaims.(*CustomClaims)
	if !ok {
		custom = &CustomClaims{}
	}

	return validatedClaims.RegisteredClaims.Subject, custom, nil
}
