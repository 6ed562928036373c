package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	MailLog      = "log"
	MailSMTP     = "smtp"
	MailPostmark = "postmark"
)

type Config struct {
	ServerPort              string        `env:"SERVER_PORT" envDefault:"8080"`
	ServerReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ServerWriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ServerIdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"pretty"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"1"`

	JWTSecret       string        `env:"JWT_SECRET,required"`
	AccessTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	RememberMeTTL   time.Duration `env:"REMEMBER_ME_TTL" envDefault:"720h"`
	VerificationTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h"`
	ResetTTL        time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	FlowCooldown    time.Duration `env:"FLOW_COOLDOWN" envDefault:"2m"`
	PendingWindow   time.Duration `env:"PENDING_WINDOW" envDefault:"168h"`
	SignoutTimeout  time.Duration `env:"SIGNOUT_TIMEOUT" envDefault:"5s"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`

	CookieBasePath string `env:"COOKIE_BASE_PATH" envDefault:"/api/v1"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"true"`

	AppName      string   `env:"APP_NAME" envDefault:"Account"`
	ClientOrigin string   `env:"CLIENT_ORIGIN" envDefault:"http://localhost:3000"`
	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	RateLimitRPM     int  `env:"RATE_LIMIT_RPM" envDefault:"100"`
	AuthRateLimitRPM int  `env:"AUTH_RATE_LIMIT_RPM" envDefault:"10"`
	TrustProxy       bool `env:"TRUST_PROXY" envDefault:"false"`

	MailDriver           string        `env:"MAIL_DRIVER" envDefault:"log"`
	MailFrom             string        `env:"MAIL_FROM" envDefault:"no-reply@localhost"`
	MailTimeout          time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`
	SMTPHost             string        `env:"SMTP_HOST"`
	SMTPPort             int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername         string        `env:"SMTP_USERNAME"`
	SMTPPassword         string        `env:"SMTP_PASSWORD"`
	PostmarkServerToken  string        `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string        `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkTag          string        `env:"POSTMARK_TAG" envDefault:"account"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes")
	}

	if c.ServerPort == "" {
		return errors.New("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}

	for name, d := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":       c.AccessTTL,
		"REFRESH_TOKEN_TTL":      c.RefreshTTL,
		"REMEMBER_ME_TTL":        c.RememberMeTTL,
		"VERIFICATION_TOKEN_TTL": c.VerificationTTL,
		"RESET_TOKEN_TTL":        c.ResetTTL,
		"FLOW_COOLDOWN":          c.FlowCooldown,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.FlowCooldown >= c.VerificationTTL || c.FlowCooldown >= c.ResetTTL {
		return errors.New("FLOW_COOLDOWN must be shorter than the token TTLs")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.MailDriver {
	case MailLog:
	case MailSMTP:
		if strings.TrimSpace(c.SMTPHost) == "" {
			return errors.New("SMTP_HOST is required for the smtp mail driver")
		}
	case MailPostmark:
		if strings.TrimSpace(c.PostmarkServerToken) == "" {
			return errors.New("POSTMARK_SERVER_TOKEN is required for the postmark mail driver")
		}
	default:
		return fmt.Errorf("unknown MAIL_DRIVER %q", c.MailDriver)
	}

	switch c.LogFormat {
	case "pretty", "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}

	return nil
}
