package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/middleware"
	"github.com/gopolls-dev/gopolls/internal/service"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
)

type directoryData struct {
	Users      []domain.User
	Search     string
	SortBy     string
	SortAsc    bool
	Page       int
	TotalPages int
}

func (h *Handler) UsersIndexHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageParam(q.Get("page"))
	sortBy := q.Get("sort")
	sortAsc := q.Get("order") == "asc"

	perPage := h.Public.UsersPerPage
	if perPage <= 0 {
		perPage = 25
	}

	users, total, err := h.Users.Directory(service.DirectoryParams{
		Search:  q.Get("q"),
		SortBy:  sortBy,
		SortAsc: sortAsc,
		Page:    page,
		PerPage: perPage,
		Viewer:  middleware.GetUserFromContext(r),
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.renderTemplate(w, r, "users.html", directoryData{
		Users:      users,
		Search:     q.Get("q"),
		SortBy:     sortBy,
		SortAsc:    sortAsc,
		Page:       page,
		TotalPages: totalPages(total, perPage),
	})
}

func totalPages(total, perPage int) int {
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	return pages
}

type profileData struct {
	Profile domain.User
	Polls   []domain.Poll
	IsSelf  bool
}

func (h *Handler) UserShowHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	viewer := middleware.GetUserFromContext(r)

	user, polls, err := h.Users.Profile(username, viewer)
	if err != nil {
		if internal_errors.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.renderTemplate(w, r, "user.html", profileData{
		Profile: user,
		Polls:   polls,
		IsSelf:  viewer != nil && viewer.Id == user.Id,
	})
}

type settingsFormData struct {
	Username  string
	Email     string
	Protected bool
}

func (h *Handler) SettingsGetHandler(w http.ResponseWriter, r *http.Request) {
	current, err := h.currentUser(r)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.renderTemplate(w, r, "settings.html", settingsFormData{
		Username:  current.Username,
		Email:     string(current.Email),
		Protected: current.Protected,
	})
}

func (h *Handler) SettingsPostHandler(w http.ResponseWriter, r *http.Request) {
	current, err := h.currentUser(r)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	upd := domain.ProfileUpdate{
		Username:             r.FormValue("username"),
		Email:                domain.Email(r.FormValue("email")),
		Password:             r.FormValue("password"),
		PasswordConfirmation: r.FormValue("passwordConfirmation"),
		Protected:            r.FormValue("emailProtected") == "on",
	}

	updated, err := h.Auth.UpdateProfile(current, upd)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderTemplateWithErrors(w, r, "settings.html", settingsFormData{
				Username:  upd.Username,
				Email:     string(upd.Email),
				Protected: upd.Protected,
			}, verr.Fields)
			return
		}
		h.serverError(w, r, err)
		return
	}

	// Username or email may have changed, so the session claims are stale.
	if err := h.Sessions.Attach(w, updated); err != nil {
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, "/settings", domain.FlashSuccess, "Profile updated.")
}

func (h *Handler) UserDeleteHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	actor := middleware.GetUserFromContext(r)
	if actor == nil {
		http.NotFound(w, r)
		return
	}

	if err := h.Users.Delete(username, *actor); err != nil {
		if code := internal_errors.StatusCode(err); code < http.StatusInternalServerError {
			h.redirectWithFlash(w, r, "/users", domain.FlashDanger, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, "/users", domain.FlashSuccess, "User deleted.")
}

// currentUser reloads the session user from storage so mutations operate on
// fresh data rather than on possibly stale session claims.
func (h *Handler) currentUser(r *http.Request) (domain.User, error) {
	sessionUser := middleware.GetUserFromContext(r)
	if sessionUser == nil {
		return domain.User{}, &internal_errors.ErrorWithStatusCode{Message: "Not authenticated", StatusCode: http.StatusUnauthorized}
	}
	user, _, err := h.Users.Profile(sessionUser.Username, sessionUser)
	return user, err
}

func pageParam(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
