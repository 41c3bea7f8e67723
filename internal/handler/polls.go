package handler

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gopolls-dev/gopolls/internal/domain"
	"github.com/gopolls-dev/gopolls/internal/middleware"
	"github.com/gopolls-dev/gopolls/internal/middleware/metrics"
	"github.com/gopolls-dev/gopolls/internal/service"
	internal_errors "github.com/gopolls-dev/gopolls/shared/errors"
)

type pollListData struct {
	Polls      []domain.Poll
	Search     string
	SortBy     string
	SortAsc    bool
	Page       int
	TotalPages int
}

func (h *Handler) PollsIndexHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pageParam(q.Get("page"))
	sortBy := q.Get("sort")
	sortAsc := q.Get("order") == "asc"

	perPage := h.Public.PollsPerPage
	if perPage <= 0 {
		perPage = 25
	}

	polls, total, err := h.Polls.List(service.ListParams{
		Search:  q.Get("q"),
		SortBy:  sortBy,
		SortAsc: sortAsc,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.renderTemplate(w, r, "polls.html", pollListData{
		Polls:      polls,
		Search:     q.Get("q"),
		SortBy:     sortBy,
		SortAsc:    sortAsc,
		Page:       page,
		TotalPages: totalPages(total, perPage),
	})
}

type pollFormData struct {
	Name        string
	Description string
	Options     []string
}

func (h *Handler) PollNewHandler(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, "poll_new.html", pollFormData{Options: []string{"", ""}})
}

func (h *Handler) PollCreateHandler(w http.ResponseWriter, r *http.Request) {
	author := middleware.GetUserFromContext(r)
	if author == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, "/polls/new", domain.FlashDanger, "Invalid form data.")
		return
	}

	name := r.FormValue("name")
	description := r.FormValue("description")
	options := nonEmpty(r.Form["option"])

	poll, err := h.Polls.Create(*author, name, description, options)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderTemplateWithErrors(w, r, "poll_new.html", pollFormData{
				Name:        name,
				Description: description,
				Options:     options,
			}, verr.Fields)
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, pollPath(poll.Author, poll.Name), domain.FlashSuccess, "Poll created.")
}

type pollShowData struct {
	Poll        domain.Poll
	Description template.HTML
	Voted       bool
	IsOwner     bool
	IsAdmin     bool
}

func (h *Handler) PollShowHandler(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	name := chi.URLParam(r, "name")
	viewer := middleware.GetUserFromContext(r)

	poll, voted, err := h.Polls.Get(author, name, viewer)
	if err != nil {
		if internal_errors.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.renderTemplate(w, r, "poll.html", pollShowData{
		Poll:        poll,
		Description: h.TextProcessor.Render(poll.Description),
		Voted:       voted,
		IsOwner:     viewer != nil && viewer.Id == poll.AuthorId,
		IsAdmin:     viewer != nil && viewer.Admin,
	})
}

func (h *Handler) PollVoteHandler(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	name := chi.URLParam(r, "name")
	voter := middleware.GetUserFromContext(r)
	if voter == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	optionId, err := strconv.ParseInt(r.FormValue("optionId"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, pollPath(author, name), domain.FlashDanger, "Invalid option.")
		return
	}

	if err := h.Polls.Vote(author, name, optionId, *voter); err != nil {
		if code := internal_errors.StatusCode(err); code < http.StatusInternalServerError {
			kind := domain.FlashDanger
			if code == http.StatusConflict {
				kind = domain.FlashWarning
			}
			h.redirectWithFlash(w, r, pollPath(author, name), kind, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	metrics.VotesCast.Inc()
	h.redirectWithFlash(w, r, pollPath(author, name), domain.FlashSuccess, "Vote counted.")
}

type pollSettingsData struct {
	Author      string
	Name        string
	NewName     string
	Description string
}

func (h *Handler) PollSettingsGetHandler(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	name := chi.URLParam(r, "name")

	poll, _, err := h.Polls.Get(author, name, middleware.GetUserFromContext(r))
	if err != nil {
		if internal_errors.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.renderTemplate(w, r, "poll_settings.html", pollSettingsData{
		Author:      author,
		Name:        poll.Name,
		NewName:     poll.Name,
		Description: poll.Description,
	})
}

func (h *Handler) PollSettingsPostHandler(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	name := chi.URLParam(r, "name")
	actor := middleware.GetUserFromContext(r)
	if actor == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	newName := r.FormValue("name")
	description := r.FormValue("description")

	if err := h.Polls.UpdateSettings(author, name, newName, description, *actor); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.renderTemplateWithErrors(w, r, "poll_settings.html", pollSettingsData{
				Author:      author,
				Name:        name,
				NewName:     newName,
				Description: description,
			}, verr.Fields)
			return
		}
		if internal_errors.StatusCode(err) < http.StatusInternalServerError {
			h.redirectWithFlash(w, r, pollPath(author, name), domain.FlashDanger, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, pollPath(author, newName), domain.FlashSuccess, "Poll updated.")
}

func (h *Handler) PollOptionHandler(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	name := chi.URLParam(r, "name")
	actor := middleware.GetUserFromContext(r)
	if actor == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	text := r.FormValue("option")
	if err := h.Polls.AddOption(author, name, text, *actor); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			for _, msg := range verr.Fields {
				h.redirectWithFlash(w, r, pollPath(author, name), domain.FlashDanger, msg)
				return
			}
		}
		if internal_errors.StatusCode(err) < http.StatusInternalServerError {
			h.redirectWithFlash(w, r, pollPath(author, name), domain.FlashDanger, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, pollPath(author, name), domain.FlashSuccess, "Option added.")
}

func (h *Handler) PollDeleteHandler(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	name := chi.URLParam(r, "name")
	actor := middleware.GetUserFromContext(r)
	if actor == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := h.Polls.Delete(author, name, *actor); err != nil {
		if internal_errors.StatusCode(err) < http.StatusInternalServerError {
			h.redirectWithFlash(w, r, pollPath(author, name), domain.FlashDanger, err.Error())
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.redirectWithFlash(w, r, "/polls", domain.FlashSuccess, "Poll deleted.")
}

func pollPath(author, name string) string {
	return fmt.Sprintf("/polls/%s/%s", url.PathEscape(author), url.PathEscape(name))
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
