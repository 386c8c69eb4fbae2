package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"n8n-ingest/backend/internal/repository"
	"n8n-ingest/backend/pkg/models"
)

// ErrUnauthenticated is returned for a missing or malformed Authorization
// header and for unknown or inactive tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth verifies ingest tokens. The organization bound to the token is the
// only tenant boundary in the system.
type Auth struct {
	tokens repository.TokenStore
	logger Logger
}

// New creates a new Auth backed by the given token store.
func New(tokens repository.TokenStore, logger Logger) *Auth {
	return &Auth{tokens: tokens, logger: logger}
}

// Verify resolves the raw Authorization header value to an identity. The
// header must be exactly "<scheme> <token>" with a case-insensitive "Bearer"
// scheme.
func (a *Auth) Verify(ctx context.Context, header string) (models.Identity, error) {
	if header == "" {
		return models.Identity{}, fmt.Errorf("%w: missing Authorization header", ErrUnauthenticated)
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return models.Identity{}, fmt.Errorf("%w: invalid Authorization header format, expected: Bearer <token>", ErrUnauthenticated)
	}

	token := parts[1]
	if token == "" {
		return models.Identity{}, fmt.Errorf("%w: invalid or inactive token", ErrUnauthenticated)
	}

	t, err := a.tokens.LookupActiveToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Identity{}, fmt.Errorf("%w: invalid or inactive token", ErrUnauthenticated)
	}
	if err != nil {
		return models.Identity{}, err
	}

	return models.Identity{OrgID: t.OrgID, TokenName: t.Name}, nil
}

// RequireAuth is echo middleware that rejects requests without a valid
// ingest token. On success the identity is stored both in the echo context
// and in the request's context.Context, so wrapped net/http handlers see it
// too.
func (a *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		id, err := a.Verify(req.Context(), req.Header.Get(echo.HeaderAuthorization))
		if err != nil {
			if a.logger != nil {
				if errors.Is(err, ErrUnauthenticated) {
					a.logger.Debug("rejected request", "path", req.URL.Path, "reason", err.Error())
				} else {
					a.logger.Error("token lookup failed", "path", req.URL.Path, "error", err)
				}
			}
			return err
		}

		c.Set(identityKey, id)
		c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
		return next(c)
	}
}

const identityKey = "ingest_identity"

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by RequireAuth, if any.
func FromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(models.Identity)
	return id, ok
}

// IdentityFrom returns the identity stored on the echo context by RequireAuth.
func IdentityFrom(c echo.Context) (models.Identity, bool) {
	id, ok := c.Get(identityKey).(models.Identity)
	return id, ok
}
