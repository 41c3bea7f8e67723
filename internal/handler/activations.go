package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/middleware/metrics"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
)

type activationResendFormData struct {
	Email string
}

// ActivationEditHandler consumes an activation link from email. Any
// verification failure gets the same generic denial regardless of cause.
func (h *Handler) ActivationEditHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	email := domain.Email(r.URL.Query().Get("email"))

	user, err := h.Auth.Activate(email, token)
	if err != nil {
		if internal_errors.StatusCode(err) < http.StatusInternalServerError {
			h.redirectWithFlash(w, r, "/", domain.FlashDanger, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	if err := h.Sessions.Attach(w, user); err != nil {
		h.serverError(w, r, err)
		return
	}

	metrics.ActivationsConsumed.Inc()
	h.redirectWithFlash(w, r, fmt.Sprintf("/users/%s", user.Username), domain.FlashSuccess, "Account activated!")
}

func (h *Handler) ActivationNewHandler(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, "activation_resend.html", activationResendFormData{})
}

// ActivationCreateHandler mails a fresh activation link, superseding the one
// sent at signup.
func (h *Handler) ActivationCreateHandler(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")

	err := h.Auth.ResendActivation(domain.Email(email))
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderTemplateWithErrors(w, r, "activation_resend.html", activationResendFormData{Email: email}, verr.Fields)
			return
		}
		if internal_errors.StatusCode(err) < http.StatusInternalServerError {
			h.redirectWithFlash(w, r, "/login", domain.FlashInfo, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, "/", domain.FlashInfo, "Please check your email to activate account.")
}
