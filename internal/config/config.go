// Package config loads server settings from PREPPR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dukerupert/preppr/internal/token"
)

const minSecretLen = 32

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DBPath      string `env:"DB_PATH" envDefault:"preppr.db"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	JWTSecret string `env:"JWT_SECRET,required,unset"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"preppr"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	PostmarkToken string `env:"POSTMARK_SERVER_TOKEN,unset"`
	FromEmail     string `env:"FROM_EMAIL" envDefault:"noreply@preppr.local"`

	SuperAdminEmail    string `env:"SUPERADMIN_EMAIL"`
	SuperAdminPassword string `env:"SUPERADMIN_PASSWORD,unset"`

	BcryptCost     int      `env:"BCRYPT_COST" envDefault:"10"`
	SecureCookie   bool     `env:"SECURE_COOKIE" envDefault:"true"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	RateLimit      int      `env:"RATE_LIMIT" envDefault:"10"`

	// TrustedProxies lists the CIDRs whose forwarding headers are believed.
	TrustedProxies []netip.Prefix `env:"TRUSTED_PROXIES" envSeparator:","`

	TTL TTLConfig `envPrefix:"TTL_"`
}

// TTLConfig overrides token lifetimes.
type TTLConfig struct {
	Auth              time.Duration `env:"AUTH" envDefault:"24h"`
	EmailVerification time.Duration `env:"EMAIL_VERIFICATION" envDefault:"24h"`
	PasswordReset     time.Duration `env:"PASSWORD_RESET" envDefault:"15m"`
	TwoFactor         time.Duration `env:"TWO_FACTOR" envDefault:"5m"`
	HouseholdInvite   time.Duration `env:"HOUSEHOLD_INVITE" envDefault:"24h"`
	AdminInvite       time.Duration `env:"ADMIN_INVITE" envDefault:"24h"`
}

// TokenTTLs converts the overrides for the token codec.
func (t TTLConfig) TokenTTLs() token.TTLs {
	return token.TTLs{
		token.KindAuth:              t.Auth,
		token.KindEmailVerification: t.EmailVerification,
		token.KindPasswordReset:     t.PasswordReset,
		token.KindTwoFactor:         t.TwoFactor,
		token.KindHouseholdInvite:   t.HouseholdInvite,
		token.KindAdminInvite:       t.AdminInvite,
	}
}

// Load reads the environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: "PREPPR_"})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("PREPPR_JWT_SECRET must be at least %d bytes", minSecretLen))
	}
	if c.JWTIssuer == "" {
		errs = append(errs, errors.New("PREPPR_JWT_ISSUER must not be empty"))
	}
	if u, err := url.Parse(c.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PREPPR_FRONTEND_URL %q is not an absolute URL", c.FrontendURL))
	}
	for kind, d := range c.TTL.TokenTTLs() {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("ttl for %s must be positive", kind))
		}
	}
	if (c.SuperAdminEmail == "") != (c.SuperAdminPassword == "") {
		errs = append(errs, errors.New("PREPPR_SUPERADMIN_EMAIL and PREPPR_SUPERADMIN_PASSWORD must be set together"))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("PREPPR_RATE_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}
