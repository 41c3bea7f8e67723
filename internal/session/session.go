package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gopolls-dev/gopolls/internal/domain"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
)

const CookieName = "sessionToken"

// Service establishes and reads authenticated sessions. Attach must rotate
// the session identifier so a pre-auth cookie value never survives login.
type Service interface {
	Attach(w http.ResponseWriter, user domain.User) error
	Clear(w http.ResponseWriter)
	UserFromRequest(r *http.Request) (*domain.User, error)
}

type Sessions struct {
	secretKey     string
	ttl           time.Duration
	secureCookies bool
}

func New(secretKey string, ttl time.Duration, secureCookies bool) *Sessions {
	return &Sessions{secretKey: secretKey, ttl: ttl, secureCookies: secureCookies}
}

// Attach issues a fresh signed session token for the user and sets the
// session cookie. Every call mints a new token (the sid claim is a new
// UUID), so a successful verification always rotates the session.
func (s *Sessions) Attach(w http.ResponseWriter, user domain.User) error {
	claims := jwt.MapClaims{}
	claims["sid"] = uuid.NewString()
	claims["uid"] = user.Id
	claims["username"] = user.Username
	claims["email"] = user.Email
	claims["admin"] = user.Admin
	claims["exp"] = time.Now().Add(s.ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return fmt.Errorf("failed to sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     CookieName,
		Value:    tokenString,
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     CookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserFromRequest decodes the session cookie into a user reference. A
// missing or invalid cookie yields a 401-kind error, not a fatal one.
func (s *Sessions) UserFromRequest(r *http.Request) (*domain.User, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "No session", StatusCode: http.StatusUnauthorized}
	}

	token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &internal_errors.ErrorWithStatusCode{Message: fmt.Sprintf("Unexpected signing method: %v", token.Header["alg"]), StatusCode: http.StatusUnauthorized}
		}
		return []byte(s.secretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid session token", StatusCode: http.StatusUnauthorized}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &internal_errors.ErrorWithStatusCode{Message: "Invalid session claims", StatusCode: http.StatusUnauthorized}
	}

	user := &domain.User{}
	if uid, ok := claims["uid"].(float64); ok {
		user.Id = int64(uid)
	}
	if username, ok := claims["username"].(string); ok {
		user.Username = username
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if admin, ok := claims["admin"].(bool); ok {
		user.Admin = admin
	}
	return user, nil
}
