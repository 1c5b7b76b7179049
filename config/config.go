package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/juju/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	ServerDNS      string `env:"SERVER_DNS" envDefault:"http://localhost:8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`
	CatalogPath    string `env:"CATALOG_PATH"`

	Database struct {
		Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
		DSN    string `env:"DATABASE_DSN" envDefault:"versionwatch.sqlite"`
	}

	Poll struct {
		Interval    time.Duration `env:"POLL_INTERVAL" envDefault:"6h"`
		Concurrency int           `env:"POLL_CONCURRENCY" envDefault:"5"`
	}

	Email struct {
		Backend   string   `env:"EMAIL_BACKEND" envDefault:"log"`
		From      string   `env:"EMAIL_FROM" envDefault:"Versionwatch <noreply@versionwatch.local>"`
		Operators []string `env:"OPERATORS_EMAIL" envSeparator:","`
	}

	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		EU          bool   `env:"MAILGUN_EU"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	SMTP struct {
		Host     string `env:"SMTP_HOST"`
		Port     int    `env:"SMTP_PORT" envDefault:"587"`
		Username string `env:"SMTP_USERNAME"`
		Password string `env:"SMTP_PASSWORD"`
	}

	AWS struct {
		Region string `env:"AWS_REGION" envDefault:"us-east-1"`
	}

	GCP struct {
		Project         string `env:"GCP_PROJECT"`
		Location        string `env:"GCP_LOCATION" envDefault:"us-central1"`
		CredentialsJSON string `env:"GOOGLE_APPLICATION_CREDENTIALS_JSON"`
	}

	Retry struct {
		Attempts    int           `env:"RETRY_ATTEMPTS" envDefault:"5"`
		Delay       time.Duration `env:"RETRY_DELAY" envDefault:"1s"`
		MaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
		MaxDuration time.Duration `env:"RETRY_MAX_DURATION" envDefault:"2m"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) (*Config, error) {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Annotate(err, "parsing environment")
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		if cfg.Env == "production" {
			return nil, err
		}
		cfg.log.Sugar().Infof("%s (credentials will be set to default outside production)", err)
		creds = map[string]string{"admin": "password"}
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, errors.NotValidf("empty BASIC_AUTH_CREDS")
	}

	creds := strings.Split(cfg.BasicAuthCreds, ",")

	result := make(map[string]string)
	for _, cred := range creds {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, errors.NotValidf("credential %q (expected user1:pass1,user2:pass2)", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
