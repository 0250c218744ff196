package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/studio-engine/studio"
)

// =============================================================================
// AUTHENTICATION - Bearer JWT -> studio.Actor
// =============================================================================

type actorKey struct{}

// Authenticator resolves the current user from an HS256 bearer token.
// The "sub" claim is the auth user id, "role" is "member" or "admin".
type Authenticator struct {
	Secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{Secret: []byte(secret)}
}

// Actor parses the request's bearer token. A missing or invalid token
// yields the zero Actor.
func (a *Authenticator) Actor(r *http.Request) studio.Actor {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || len(a.Secret) == 0 {
		return studio.Actor{}
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return studio.Actor{}
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return studio.Actor{}
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	actor := studio.Actor{UserID: sub, Role: studio.RoleMember}
	if role == string(studio.RoleAdmin) {
		actor.Role = studio.RoleAdmin
	}
	return actor
}

// Authenticate stores the actor (possibly zero) in the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), actorKey{}, a.Actor(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests without an authenticated actor.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFrom(r.Context()).Authenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin actors.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFrom(r.Context())
		if !actor.Authenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		if !actor.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(ctx context.Context) studio.Actor {
	actor, _ := ctx.Value(actorKey{}).(studio.Actor)
	return actor
}

// IssueToken signs a token for userID. Used by tests and local tooling;
// production tokens come from the identity provider.
func IssueToken(secret, userID string, role studio.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
