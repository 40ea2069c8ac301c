package http

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tjper/arkctl/internal/session"
)

// AuthMiddleware parses the bearer token on every request, validates it
// against secret, and injects the resulting session.User into the request
// context. Issuing tokens is out of scope (§1); this only consumes one.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates an AuthMiddleware keyed on the JWT_SECRET
// environment value.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

type claims struct {
	jwt.RegisteredClaims
	Email string       `json:"email"`
	Role  session.Role `json:"role"`
}

// Authenticate rejects requests without a valid bearer token and injects the
// authenticated session.User into the request context on success.
func (m *AuthMiddleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				ErrUnauthorized(w)
				return
			}

			var c claims
			_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
				return m.secret, nil
			})
			if err != nil {
				ErrUnauthorized(w)
				return
			}

			id, err := uuid.Parse(c.Subject)
			if err != nil {
				ErrUnauthorized(w)
				return
			}

			user := &session.User{ID: id, Email: c.Email, Role: c.Role}
			ctx := session.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HasRole creates middleware that rejects requests whose authenticated user
// does not satisfy the required role, per the role gates in §6.
func (m *AuthMiddleware) HasRole(required session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := session.FromContext(r.Context())
			if !ok {
				ErrUnauthorized(w)
				return
			}
			if !user.Role.Satisfies(required) {
				ErrForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
