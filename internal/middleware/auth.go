package middleware

import (
	"context"
	"strings"

	"vinotheque/internal/apperror"
	"vinotheque/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Principal identifies the caller behind a verified bearer token.
type Principal struct {
	UserID string
	Email  string
}

type principalKey struct{}

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// Authenticate resolves an Authorization header value into a Principal.
// Both "Bearer <token>" and a bare token are accepted. Failures are
// 401 APIErrors.
func Authenticate(v TokenValidator, authHeader string) (Principal, error) {
	if strings.TrimSpace(authHeader) == "" {
		return Principal{}, apperror.Unauthorized("Token manquant - Veuillez vous connecter")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := v.ValidateToken(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

// AuthRequired is a Fiber middleware rejecting requests without a valid
// bearer token. The Principal is attached to the request's user context.
func AuthRequired(v TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := Authenticate(v, c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		c.SetUserContext(WithPrincipal(c.UserContext(), principal))
		return c.Next()
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the Principal stored in ctx by AuthRequired.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
