// Package config loads the service configuration from the environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
)

const (
	defaultBaseURL          = "https://www.strava.com/api/v3/"
	defaultAuthURL          = "https://www.strava.com/oauth/authorize"
	defaultTokenURL         = "https://www.strava.com/oauth/token"
	defaultTokenStore       = "file"
	defaultTokenFile        = "access_token.json"
	defaultDaysToQuery      = 7
	defaultBeforeOffset     = 2 * time.Hour
	defaultInitialLoadDelay = 4250 * time.Millisecond
	defaultUpdateInterval   = 15 * time.Minute
	defaultHTTPTimeout      = 10 * time.Second
	defaultUnits            = "imperial"
	defaultLocale           = "en-GB"
	defaultPort             = 8080
	defaultLogLevel         = "info"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration. The env tag names the environment
// variable each field is read from and is used in validation errors.
type Config struct {
	ClientID     string `env:"STRAVA_CLIENT_ID" validate:"required"`
	ClientSecret string `env:"STRAVA_CLIENT_SECRET" validate:"required"`
	// Used until a token has been persisted, e.g. from the Strava API settings page.
	RefreshToken string `env:"STRAVA_REFRESH_TOKEN"`
	RedirectURL  string `env:"STRAVA_REDIRECT_URI" validate:"omitempty,url"`
	StateToken   string `env:"STATE_TOKEN"`
	// Signs the OAuth session cookie. A random key is used when unset.
	SessionKey string `env:"SESSION_KEY" validate:"omitempty,min=32"`

	BaseURL  string `env:"STRAVA_BASE_URL" validate:"required,url"`
	AuthURL  string `env:"STRAVA_AUTH_URL" validate:"required,url"`
	TokenURL string `env:"STRAVA_TOKEN_URL" validate:"required,url"`

	TokenStore  string `env:"TOKEN_STORE" validate:"oneof=file redis database"`
	TokenFile   string `env:"TOKEN_FILE" validate:"required_if=TokenStore file"`
	RedisURL    string `env:"REDIS_URL" validate:"required_if=TokenStore redis"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=TokenStore database"`

	DaysToQuery      int           `env:"DAYS_TO_QUERY" validate:"gte=1,lte=365"`
	BeforeOffset     time.Duration `env:"BEFORE_OFFSET" validate:"gte=0"`
	InitialLoadDelay time.Duration `env:"INITIAL_LOAD_DELAY" validate:"gte=0"`
	UpdateInterval   time.Duration `env:"UPDATE_INTERVAL" validate:"gt=0"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" validate:"gt=0"`

	Units  string `env:"UNITS" validate:"oneof=imperial metric"`
	Locale string `env:"LOCALE" validate:"required,bcp47_language_tag"`

	Port     int    `env:"PORT" validate:"gte=1,lte=65535"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
	Env      string `env:"ENV"`
}

func NewConfig() *Config {
	return &Config{
		BaseURL:          defaultBaseURL,
		AuthURL:          defaultAuthURL,
		TokenURL:         defaultTokenURL,
		TokenStore:       defaultTokenStore,
		TokenFile:        defaultTokenFile,
		DaysToQuery:      defaultDaysToQuery,
		BeforeOffset:     defaultBeforeOffset,
		InitialLoadDelay: defaultInitialLoadDelay,
		UpdateInterval:   defaultUpdateInterval,
		HTTPTimeout:      defaultHTTPTimeout,
		Units:            defaultUnits,
		Locale:           defaultLocale,
		Port:             defaultPort,
		LogLevel:         defaultLogLevel,
	}
}

// Load builds a validated Config from defaults, then the environment, then flags.
func Load(getenv func(string) string, args []string) (*Config, error) {
	c := NewConfig()
	if err := c.LoadEnv(getenv); err != nil {
		return nil, err
	}
	if err := c.ParseFlags(args); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadEnv overrides fields with any non-empty environment variables.
func (c *Config) LoadEnv(getenv func(string) string) error {
	setString := func(o *string) func(string) error {
		return func(value string) error {
			*o = value
			return nil
		}
	}
	setInt := func(o *int) func(string) error {
		return func(value string) error {
			n, err := strconv.Atoi(value)
			if err != nil {
				return errors.New("must be a valid integer")
			}
			*o = n
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(string) error {
		return func(value string) error {
			d, err := time.ParseDuration(value)
			if err != nil {
				return errors.New("must be a duration such as 90s or 15m")
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"STRAVA_CLIENT_ID":     setString(&c.ClientID),
		"STRAVA_CLIENT_SECRET": setString(&c.ClientSecret),
		"STRAVA_REFRESH_TOKEN": setString(&c.RefreshToken),
		"STRAVA_REDIRECT_URI":  setString(&c.RedirectURL),
		"STATE_TOKEN":          setString(&c.StateToken),
		"SESSION_KEY":          setString(&c.SessionKey),
		"STRAVA_BASE_URL":      setString(&c.BaseURL),
		"STRAVA_AUTH_URL":      setString(&c.AuthURL),
		"STRAVA_TOKEN_URL":     setString(&c.TokenURL),
		"TOKEN_STORE":          setString(&c.TokenStore),
		"TOKEN_FILE":           setString(&c.TokenFile),
		"REDIS_URL":            setString(&c.RedisURL),
		"DATABASE_URL":         setString(&c.DatabaseURL),
		"DAYS_TO_QUERY":        setInt(&c.DaysToQuery),
		"BEFORE_OFFSET":        setDuration(&c.BeforeOffset),
		"INITIAL_LOAD_DELAY":   setDuration(&c.InitialLoadDelay),
		"UPDATE_INTERVAL":      setDuration(&c.UpdateInterval),
		"HTTP_TIMEOUT":         setDuration(&c.HTTPTimeout),
		"UNITS":                setString(&c.Units),
		"LOCALE":               setString(&c.Locale),
		"PORT":                 setInt(&c.Port),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENV":                  setString(&c.Env),
	}

	var errs []error
	for key, parseFn := range envMap {
		value := getenv(key)
		if value == "" {
			continue
		}
		if err := parseFn(value); err != nil {
			errs = append(errs, &ConfigError{Field: key, Message: err.Error()})
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("lastactivity", pflag.ContinueOnError)

	fs.StringVar(&c.ClientID, "client-id", c.ClientID, "Strava API client ID")
	fs.StringVar(&c.ClientSecret, "client-secret", c.ClientSecret, "Strava API client secret")
	fs.StringVar(&c.RefreshToken, "refresh-token", c.RefreshToken, "Strava refresh token used until one is stored")
	fs.StringVarP(&c.TokenStore, "token-store", "s", c.TokenStore, "Token store (file, redis, database)")
	fs.StringVarP(&c.TokenFile, "token-file", "f", c.TokenFile, "Token file used by the file store")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Redis URL used by the redis store")
	fs.StringVarP(&c.DatabaseURL, "database", "d", c.DatabaseURL, "Database DSN used by the database store")
	fs.IntVarP(&c.DaysToQuery, "days", "n", c.DaysToQuery, "Number of days of activities to query")
	fs.DurationVar(&c.BeforeOffset, "before-offset", c.BeforeOffset, "Ignore activities newer than this")
	fs.DurationVar(&c.InitialLoadDelay, "initial-delay", c.InitialLoadDelay, "Delay before the first fetch")
	fs.DurationVarP(&c.UpdateInterval, "interval", "i", c.UpdateInterval, "Interval between fetches")
	fs.DurationVar(&c.HTTPTimeout, "http-timeout", c.HTTPTimeout, "Timeout for Strava API calls")
	fs.StringVarP(&c.Units, "units", "u", c.Units, "Distance units (imperial, metric)")
	fs.StringVar(&c.Locale, "locale", c.Locale, "Locale used to format numbers")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "HTTP listen port")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")

	return fs.Parse(args)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks every field and reports all failures as joined *ConfigError values.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &ConfigError{Field: fe.Field(), Message: message(fe)})
	}
	return errors.Join(errs...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "required but not set"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be a valid URL"
	case "bcp47_language_tag":
		return "must be a language tag such as en-GB"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "gt", "gte", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	}
	return "failed " + fe.Tag() + " validation"
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}
