package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gopolls-dev/gopolls/internal/domain"
)

// flash messages travel in per-kind cookies, consumed on the next render
const flashCookiePrefix = "flash_"

var flashKinds = []domain.FlashKind{
	domain.FlashSuccess,
	domain.FlashInfo,
	domain.FlashWarning,
	domain.FlashDanger,
}

func (h *Handler) setFlash(w http.ResponseWriter, kind domain.FlashKind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookiePrefix + string(kind),
		Value:    base64.URLEncoding.EncodeToString([]byte(message)),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Public.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
}

// readFlash returns the pending flash, if any, and clears its cookie.
func (h *Handler) readFlash(w http.ResponseWriter, r *http.Request) *domain.Flash {
	for _, kind := range flashKinds {
		name := flashCookiePrefix + string(kind)
		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value == "" {
			continue
		}

		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})

		message, err := base64.URLEncoding.DecodeString(cookie.Value)
		if err != nil {
			continue
		}
		return &domain.Flash{Kind: kind, Message: string(message)}
	}
	return nil
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, targetURL string, kind domain.FlashKind, message string) {
	h.setFlash(w, kind, message)
	http.Redirect(w, r, targetURL, http.StatusSeeOther)
}
