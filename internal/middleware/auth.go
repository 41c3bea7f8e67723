package middleware

import (
	"context"
	"net/http"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/session"
)

// Key to store the session user in the request context
type key int

const userContextKey key = 0

// Auth holds dependencies for session middleware
type Auth struct {
	sessions session.Service
}

func NewAuth(sessions session.Service) *Auth {
	return &Auth{sessions: sessions}
}

// RequireUser redirects anonymous visitors to the login page.
func (a *Auth) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.sessions.UserFromRequest(r)
			if err != nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireAdmin responds 404 for non-admins so admin routes are not
// discoverable.
func (a *Auth) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.sessions.UserFromRequest(r)
			if err != nil || !user.Admin {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// OptionalUser populates the request context when a valid session exists
// but never blocks the request.
func (a *Auth) OptionalUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := a.sessions.UserFromRequest(r); err == nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the session user or nil.
func GetUserFromContext(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userContextKey).(*domain.User)
	return user
}
