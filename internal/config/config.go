package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env; a local .env file may seed variables that are not already set.
// Components receive the sections they need at construction and never read env themselves.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	GHL     GHLConfig
	Maps    MapsConfig
	Routing RoutingConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// GHLConfig configures the CRM/calendar REST API (LeadConnector).
type GHLConfig struct {
	BaseURL          string
	Token            string
	ContactsVersion  string
	CalendarsVersion string
}

// MapsConfig configures the distance provider.
type MapsConfig struct {
	APIKey string
	// BaseURL overrides the Google Maps API host (tests, proxies).
	BaseURL string
}

type RoutingConfig struct {
	// UpstreamTimeout bounds every single external call made by the routing workflow.
	UpstreamTimeout time.Duration
	// CallGuardTTL bounds how long a per-call in-flight lock may live if a process dies.
	CallGuardTTL time.Duration
}

const (
	defaultGHLBaseURL          = "https://services.leadconnectorhq.com"
	defaultGHLContactsVersion  = "2021-07-28"
	defaultGHLCalendarsVersion = "2021-04-15"
	defaultUpstreamTimeout     = 10 * time.Second
	defaultCallGuardTTL        = 2 * time.Minute
)

func Load() (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")

	c.GHL.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("GHL_BASE_URL")), "/")
	c.GHL.Token = strings.TrimSpace(os.Getenv("GHL_TOKEN"))
	c.GHL.ContactsVersion = strings.TrimSpace(os.Getenv("GHL_CONTACTS_VERSION"))
	c.GHL.CalendarsVersion = strings.TrimSpace(os.Getenv("GHL_CALENDARS_VERSION"))

	c.Maps.APIKey = strings.TrimSpace(os.Getenv("MAPS_API_KEY"))
	c.Maps.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("MAPS_BASE_URL")), "/")

	c.Routing.UpstreamTimeout, parseErrs = optionalDuration(parseErrs, "ROUTING_UPSTREAM_TIMEOUT")
	c.Routing.CallGuardTTL, parseErrs = optionalDuration(parseErrs, "ROUTING_CALL_GUARD_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required settings and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.GHL.Token == "" {
		errs = append(errs, errors.New("GHL_TOKEN is required"))
	}
	if c.GHL.BaseURL == "" {
		c.GHL.BaseURL = defaultGHLBaseURL
	}
	if c.GHL.ContactsVersion == "" {
		c.GHL.ContactsVersion = defaultGHLContactsVersion
	}
	if c.GHL.CalendarsVersion == "" {
		c.GHL.CalendarsVersion = defaultGHLCalendarsVersion
	}

	if c.Maps.APIKey == "" {
		errs = append(errs, errors.New("MAPS_API_KEY is required"))
	}

	if c.Routing.UpstreamTimeout <= 0 {
		c.Routing.UpstreamTimeout = defaultUpstreamTimeout
	}
	if c.Routing.UpstreamTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("ROUTING_UPSTREAM_TIMEOUT must be at most 1m, got %s", c.Routing.UpstreamTimeout))
	}
	if c.Routing.CallGuardTTL <= 0 {
		c.Routing.CallGuardTTL = defaultCallGuardTTL
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Contains the password; never log it.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optionalDuration returns 0 when unset so Validate can apply the default.
func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
