package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gopolls-dev/gopolls/internal/middleware/ratelimiter"
)

// RateLimit throttles requests per identity extracted by keyFn. Admins are
// exempt.
func RateLimit(l *ratelimiter.Limiter, keyFn func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := GetUserFromContext(r); user != nil && user.Admin {
				next.ServeHTTP(w, r)
				return
			}

			key, err := keyFn(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !l.Allow(key) {
				http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys rate limiting by the TCP peer address. X-Forwarded-For and
// friends are resolved earlier by the RealIP middleware, which rewrites
// RemoteAddr.
func ClientIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid client address: %s", ip)
	}
	return ip, nil
}

// FormField keys rate limiting by a submitted form value, so mail-sending
// endpoints are throttled per target address rather than per caller.
func FormField(field string) func(r *http.Request) (string, error) {
	return func(r *http.Request) (string, error) {
		if err := r.ParseForm(); err != nil {
			return "", errors.New("failed to parse form")
		}
		value := r.FormValue(field)
		if value == "" {
			return "", fmt.Errorf("%s field is required", field)
		}
		return value, nil
	}
}
