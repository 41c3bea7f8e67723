package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gopolls-dev/gopolls/internal/handler"
	"github.com/gopolls-dev/gopolls/internal/middleware"
	"github.com/gopolls-dev/gopolls/internal/middleware/metrics"
	"github.com/gopolls-dev/gopolls/internal/middleware/ratelimiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const csp = "default-src 'self'; style-src 'self' 'unsafe-inline'"

// New wires the full route table. Every form-handling route sits behind
// CSRF validation; session state is optional except where noted.
func New(h *handler.Handler, auth *middleware.Auth, secureCookies bool) chi.Router {
	r := chi.NewRouter()

	// Credential endpoints are throttled per client IP, mail-sending
	// endpoints per target email address.
	credentialLimit := ratelimiter.New(1.0/3, 10, time.Hour)
	mailLimit := ratelimiter.New(1.0/60, 3, time.Hour)

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders(secureCookies, csp))

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	r.Group(func(r chi.Router) {
		r.Use(middleware.GenerateCSRFToken(middleware.CSRFConfig{SecureCookies: secureCookies}))
		r.Use(middleware.ValidateCSRFToken())
		r.Use(auth.OptionalUser())

		r.Get("/", h.PollsIndexHandler)

		r.Get("/signup", h.SignupGetHandler)
		r.With(middleware.RateLimit(credentialLimit, middleware.ClientIP)).Post("/signup", h.SignupPostHandler)
		r.Get("/login", h.LoginGetHandler)
		r.With(middleware.RateLimit(credentialLimit, middleware.ClientIP)).Post("/login", h.LoginPostHandler)
		r.Post("/logout", h.LogoutHandler)

		// Emailed verification links. Both are GETs because they arrive as
		// plain anchors in mail clients.
		r.Get("/accountActivations/{token}/edit", h.ActivationEditHandler)
		r.Get("/accountActivations/new", h.ActivationNewHandler)
		r.With(middleware.RateLimit(mailLimit, middleware.FormField("email"))).Post("/accountActivations", h.ActivationCreateHandler)
		r.Get("/passwordResets/new", h.ResetNewHandler)
		r.With(middleware.RateLimit(mailLimit, middleware.FormField("email"))).Post("/passwordResets", h.ResetCreateHandler)
		r.Get("/passwordResets/{token}/edit", h.ResetEditHandler)
		r.Post("/passwordResets/{token}", h.ResetUpdateHandler)

		r.Get("/users", h.UsersIndexHandler)
		r.Get("/users/{username}", h.UserShowHandler)

		r.Get("/polls", h.PollsIndexHandler)
		r.Get("/polls/{author}/{name}", h.PollShowHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.GenerateCSRFToken(middleware.CSRFConfig{SecureCookies: secureCookies}))
		r.Use(middleware.ValidateCSRFToken())
		r.Use(auth.RequireUser())

		r.Get("/settings", h.SettingsGetHandler)
		r.Post("/settings", h.SettingsPostHandler)

		r.Get("/polls/new", h.PollNewHandler)
		r.Post("/polls", h.PollCreateHandler)
		r.Post("/polls/{author}/{name}/vote", h.PollVoteHandler)
		r.Get("/polls/{author}/{name}/settings", h.PollSettingsGetHandler)
		r.Post("/polls/{author}/{name}/settings", h.PollSettingsPostHandler)
		r.Post("/polls/{author}/{name}/options", h.PollOptionHandler)
		r.Post("/polls/{author}/{name}/delete", h.PollDeleteHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.GenerateCSRFToken(middleware.CSRFConfig{SecureCookies: secureCookies}))
		r.Use(middleware.ValidateCSRFToken())
		r.Use(auth.RequireAdmin())

		r.Post("/users/{username}/delete", h.UserDeleteHandler)
	})

	return r
}
