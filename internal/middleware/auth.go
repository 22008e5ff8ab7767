package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"civilregistry/internal/apperr"
	"civilregistry/internal/auth"
	"civilregistry/internal/models"
	"civilregistry/internal/respond"
)

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// AuthMiddleware resolves the acting user from a bearer token, falling back
// to the session cookie.
type AuthMiddleware struct {
	tokens   *auth.TokenManager
	sessions *auth.SessionManager
	revoked  auth.RevocationList
	users    UserLookup
	logger   *zap.Logger
}

func NewAuthMiddleware(tokens *auth.TokenManager, sessions *auth.SessionManager, revoked auth.RevocationList, users UserLookup, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		sessions: sessions,
		revoked:  revoked,
		users:    users,
		logger:   logger.Named("auth"),
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			token, _ = m.sessions.Token(r)
		}
		if token == "" {
			respond.Error(w, m.logger, apperr.New(apperr.CodeUnauthenticated, apperr.MsgUnauthenticated))
			return
		}

		identity, err := m.resolve(r.Context(), token)
		if err != nil {
			respond.Error(w, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func (m *AuthMiddleware) resolve(ctx context.Context, token string) (auth.Identity, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return auth.Identity{}, err
	}

	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return auth.Identity{}, err
	}
	if revoked {
		return auth.Identity{}, apperr.New(apperr.CodeUnauthenticated, apperr.MsgUnauthenticated)
	}

	userID, err := claims.UserID()
	if err != nil {
		return auth.Identity{}, apperr.New(apperr.CodeUnauthenticated, apperr.MsgUnauthenticated)
	}
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return auth.Identity{}, apperr.New(apperr.CodeUnauthenticated, apperr.MsgUnauthenticated)
		}
		return auth.Identity{}, err
	}
	if !user.IsActive {
		return auth.Identity{}, apperr.New(apperr.CodeAccountInactive, apperr.MsgAccountInactive)
	}

	return auth.NewIdentity(user, claims), nil
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFrom(r.Context())
		if !ok {
			respond.Error(w, m.logger, apperr.New(apperr.CodeUnauthenticated, apperr.MsgUnauthenticated))
			return
		}
		if !identity.IsAdmin {
			respond.Error(w, m.logger, apperr.New(apperr.CodeForbidden, apperr.MsgForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// GetIdentity returns the identity RequireAuth placed on the request.
func GetIdentity(r *http.Request) (auth.Identity, bool) {
	return auth.IdentityFrom(r.Context())
}
