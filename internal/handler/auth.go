package handler

import (
	"errors"
	"net/http"

	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/service"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
)

type signupFormData struct {
	Username string
	Email    string
}

func (h *Handler) SignupGetHandler(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, "signup.html", signupFormData{})
}

func (h *Handler) SignupPostHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, "/signup", domain.FlashDanger, "Invalid form data.")
		return
	}

	params := service.SignupParams{
		Username:             r.FormValue("username"),
		Email:                domain.Email(r.FormValue("email")),
		Password:             r.FormValue("password"),
		PasswordConfirmation: r.FormValue("passwordConfirmation"),
		Protected:            r.FormValue("emailProtected") == "on",
	}

	_, err := h.Auth.Signup(params)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderTemplateWithErrors(w, r, "signup.html", signupFormData{
				Username: params.Username,
				Email:    params.Email,
			}, verr.Fields)
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, "/", domain.FlashInfo, "Please check your email to activate account.")
}

type loginFormData struct {
	Login string
}

func (h *Handler) LoginGetHandler(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, "login.html", loginFormData{})
}

func (h *Handler) LoginPostHandler(w http.ResponseWriter, r *http.Request) {
	login := r.FormValue("login")
	password := r.FormValue("password")

	user, err := h.Auth.Login(domain.Credentials{Login: login, Password: password})
	if err != nil {
		if internal_errors.StatusCode(err) < http.StatusInternalServerError {
			h.setFlash(w, domain.FlashDanger, err.Error())
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.serverError(w, r, err)
		return
	}

	if err := h.Sessions.Attach(w, user); err != nil {
		h.serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
