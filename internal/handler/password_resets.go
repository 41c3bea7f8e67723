package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/middleware/metrics"
	"github.com/gopolls-dev/gopolls/internal/service"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
)

type resetRequestFormData struct {
	Email string
}

type resetEditFormData struct {
	Email string
	Token string
}

func (h *Handler) ResetNewHandler(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, "password_reset_new.html", resetRequestFormData{})
}

func (h *Handler) ResetCreateHandler(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")

	err := h.Auth.BeginReset(domain.Email(email))
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderTemplateWithErrors(w, r, "password_reset_new.html", resetRequestFormData{Email: email}, verr.Fields)
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, "/", domain.FlashInfo, "Email sent with password reset instructions.")
}

// ResetEditHandler shows the new-password form, but only for a link that
// still verifies. Expired links point back at the request form so the user
// can start over.
func (h *Handler) ResetEditHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	email := r.URL.Query().Get("email")

	_, err := h.Auth.CheckReset(domain.Email(email), token)
	if err != nil {
		h.resetDenied(w, r, err)
		return
	}

	h.renderTemplate(w, r, "password_reset_edit.html", resetEditFormData{Email: email, Token: token})
}

func (h *Handler) ResetUpdateHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	email := r.FormValue("email")

	user, err := h.Auth.CompleteReset(service.ResetParams{
		Email:                domain.Email(email),
		Token:                token,
		Password:             r.FormValue("password"),
		PasswordConfirmation: r.FormValue("passwordConfirmation"),
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderTemplateWithErrors(w, r, "password_reset_edit.html", resetEditFormData{Email: email, Token: token}, verr.Fields)
			return
		}
		h.resetDenied(w, r, err)
		return
	}

	if err := h.Sessions.Attach(w, user); err != nil {
		h.serverError(w, r, err)
		return
	}

	metrics.PasswordResetsCompleted.Inc()
	h.redirectWithFlash(w, r, fmt.Sprintf("/users/%s", user.Username), domain.FlashSuccess, "Password has been changed.")
}

func (h *Handler) resetDenied(w http.ResponseWriter, r *http.Request, err error) {
	switch internal_errors.StatusCode(err) {
	case http.StatusGone:
		h.redirectWithFlash(w, r, "/passwordResets/new", domain.FlashDanger, err.Error())
	case http.StatusInternalServerError:
		h.serverError(w, r, err)
	default:
		h.redirectWithFlash(w, r, "/", domain.FlashDanger, err.Error())
	}
}
