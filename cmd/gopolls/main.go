package main

import (
	"flag"
	"html/template"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gopolls-dev/gopolls/internal/handler"
	"github.com/gopolls-dev/gopolls/internal/handler/markdown"
	"github.com/gopolls-dev/gopolls/internal/middleware"
	"github.com/gopolls-dev/gopolls/internal/router"
	"github.com/gopolls-dev/gopolls/internal/service"
	"github.com/gopolls-dev/gopolls/internal/session"
	"github.com/gopolls-dev/gopolls/internal/storage/pg"
	"github.com/gopolls-dev/gopolls/internal/utils"
	"github.com/gopolls-dev/gopolls/internal/utils/email"
	"github.com/gopolls-dev/gopolls/shared/config"
	"github.com/gopolls-dev/gopolls/shared/logger"
)

const (
	defaultPort  = "8080"
	baseTemplate = "base.html"
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

func main() {
	var configFolder, tmplFolder, logLevel string
	flag.StringVar(&configFolder, "config_folder", "config", "path to folder with configs")
	flag.StringVar(&tmplFolder, "templates", "templates", "path to folder with html templates")
	flag.StringVar(&logLevel, "log_level", "info", "debug, info, warn or error")
	flag.Parse()

	logger.Initialize(logLevel, os.Getenv("ENV") != "development")
	cfg := config.MustLoad(configFolder)

	storage, err := pg.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer storage.Cleanup()

	mailer := email.New(cfg.EmailConfig())
	sessions := session.New(cfg.SessionKey(), cfg.SessionTTL(), cfg.Public.SecureCookies)

	auth := service.NewAuth(storage, mailer, cfg)
	users := service.NewUsers(storage)
	polls := service.NewPolls(storage)

	h := handler.New(
		mustLoadTemplates(tmplFolder),
		cfg.Public,
		auth,
		users,
		polls,
		sessions,
		markdown.New(),
	)

	authMw := middleware.NewAuth(sessions)
	r := router.New(h, authMw, cfg.Public.SecureCookies)

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	logger.Log.Info("server starting", "port", port)
	log.Fatal(server.ListenAndServe())
}

func sub(a, b int) int { return a - b }
func add(a, b int) int { return a + b }

func mustLoadTemplates(tmplPath string) map[string]*template.Template {
	templates := make(map[string]*template.Template)
	files, err := os.ReadDir(tmplPath)
	if err != nil {
		log.Fatal(err)
	}

	funcs := template.FuncMap{
		"sub":            sub,
		"add":            add,
		"usernameMaxLen": func() int { return utils.UsernameMaxLen },
		"passwordMinLen": func() int { return utils.PasswordMinLen },
	}

	for _, f := range files {
		if filepath.Ext(f.Name()) != ".html" || f.Name() == baseTemplate {
			continue
		}
		templates[f.Name()] = template.Must(template.New(baseTemplate).Funcs(funcs).ParseFiles(
			path.Join(tmplPath, baseTemplate),
			path.Join(tmplPath, f.Name()),
		))
	}
	return templates
}
