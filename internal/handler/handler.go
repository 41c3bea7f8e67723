package handler

import (
	"html/template"

	"github.com/gopolls-dev/gopolls/internal/handler/markdown"
	"github.com/gopolls-dev/gopolls/internal/service"
	"github.com/gopolls-dev/gopolls/internal/session"
	"github.com/gopolls-dev/gopolls/shared/config"
)

type Handler struct {
	Templates     map[string]*template.Template
	Public        config.Public
	Auth          service.AuthService
	Users         service.UserService
	Polls         service.PollService
	Sessions      session.Service
	TextProcessor *markdown.TextProcessor
}

func New(
	templates map[string]*template.Template,
	publicCfg config.Public,
	auth service.AuthService,
	users service.UserService,
	polls service.PollService,
	sessions session.Service,
	textProcessor *markdown.TextProcessor,
) *Handler {
	return &Handler{
		Templates:     templates,
		Public:        publicCfg,
		Auth:          auth,
		Users:         users,
		Polls:         polls,
		Sessions:      sessions,
		TextProcessor: textProcessor,
	}
}
