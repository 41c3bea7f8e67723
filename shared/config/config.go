package config

import (
	"os"
	"path"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	private Private
}

type Public struct {
	Pg            Pg            `yaml:"pg" envPrefix:"PG_"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SESSION_TTL" validate:"required"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl" env:"RESET_TOKEN_TTL"` // validity window of a password reset token
	UsersPerPage  int           `yaml:"users_per_page" env:"USERS_PER_PAGE"`
	PollsPerPage  int           `yaml:"polls_per_page" env:"POLLS_PER_PAGE"`
	BaseURL       string        `yaml:"base_url" env:"BASE_URL" validate:"required,url"` // prefix for activation/reset links in emails
	SecureCookies bool          `yaml:"secure_cookies" env:"SECURE_COOKIES"`
}

type Pg struct {
	Host     string `yaml:"host" env:"HOST" validate:"required"`
	Port     int    `yaml:"port" env:"PORT" validate:"required"`
	User     string `yaml:"user" env:"USER" validate:"required"`
	Password string `yaml:"password" env:"PASSWORD"`
	Dbname   string `yaml:"dbname" env:"DBNAME" validate:"required"`
}

type Private struct {
	SessionKey string `yaml:"session_key" env:"SESSION_KEY" validate:"required"`
	Email      Email  `yaml:"email" envPrefix:"EMAIL_"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server" env:"SMTP_SERVER"`
	SMTPPort   int    `yaml:"smtp_port" env:"SMTP_PORT"`
	Username   string `yaml:"username" env:"USERNAME"`
	Password   string `yaml:"password" env:"PASSWORD"`
	SenderName string `yaml:"sender_name" env:"SENDER_NAME"`
	Timeout    int    `yaml:"timeout" env:"TIMEOUT"` // seconds
}

func (s *Config) SessionKey() string {
	return s.private.SessionKey
}

func (s *Config) SessionTTL() time.Duration {
	return s.Public.SessionTTL
}

func (s *Config) ResetTokenTTL() time.Duration {
	if s.Public.ResetTokenTTL == 0 {
		return 2 * time.Hour
	}
	return s.Public.ResetTokenTTL
}

func (s *Config) EmailConfig() *Email {
	return &s.private.Email
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)

	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

// MustLoad reads public.yaml and private.yaml from configFolder, then lets
// environment variables override file values (deploy-time secrets).
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)
	if err := env.Parse(&public); err != nil {
		panic("can't parse env overrides: " + err.Error())
	}

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)
	if err := env.ParseWithOptions(&private, env.Options{Prefix: "GOPOLLS_"}); err != nil {
		panic("can't parse env overrides: " + err.Error())
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&public); err != nil {
		panic("invalid public config: " + err.Error())
	}
	if err := validate.Struct(&private); err != nil {
		panic("invalid private config: " + err.Error())
	}

	return &Config{public, private}
}
