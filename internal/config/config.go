// Package config resolves application settings from layered sources.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/newsletter/internal/domain"
	"github.com/bissquit/newsletter/internal/pkg/secret"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/text/cases"
)

const (
	// EnvironmentVariable selects the per-environment config file.
	EnvironmentVariable = "APP_ENVIRONMENT"

	envPrefix    = "APP_"
	envSeparator = "__"
	configDir    = "config"
	fileExt      = ".yaml"
)

const (
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultMaxConnections  = 10
	defaultConnectAttempts = 3
)

// presenceRequiredKeys must be set explicitly; their zero value is valid, so
// struct validation cannot tell them apart from an omission.
var presenceRequiredKeys = []string{"database.require_ssl"}

// ErrInvalidEnvironment is returned for unsupported APP_ENVIRONMENT values.
var ErrInvalidEnvironment = errors.New("unsupported environment")

// Environment is the runtime environment the process is deployed to.
type Environment string

const (
	EnvironmentLocal      Environment = "local"
	EnvironmentCI         Environment = "ci"
	EnvironmentProduction Environment = "production"
)

// ParseEnvironment matches raw case-insensitively against known environments.
func ParseEnvironment(raw string) (Environment, error) {
	folded := cases.Fold().String(raw)
	for _, e := range []Environment{EnvironmentLocal, EnvironmentCI, EnvironmentProduction} {
		if folded == string(e) {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q (use one of local, ci, production)", ErrInvalidEnvironment, raw)
}

// Settings is the resolved application configuration.
type Settings struct {
	Application ApplicationSettings `koanf:"application"`
	Database    DatabaseSettings    `koanf:"database"`
	EmailClient EmailClientSettings `koanf:"email_client"`
	Log         LogSettings         `koanf:"log"`
}

// ApplicationSettings configures the HTTP listener.
type ApplicationSettings struct {
	Host    string `koanf:"host" validate:"required"`
	Port    int    `koanf:"port" validate:"min=0,max=65535"`
	BaseURL string `koanf:"base_url" validate:"required"`
}

// Address returns host:port for net.Listen.
func (a ApplicationSettings) Address() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// DatabaseSettings configures the PostgreSQL connection.
type DatabaseSettings struct {
	Username        string        `koanf:"username" validate:"required"`
	Password        secret.Secret `koanf:"password" validate:"required"`
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required,min=1,max=65535"`
	DatabaseName    string        `koanf:"database_name" validate:"required"`
	RequireSSL      bool          `koanf:"require_ssl"`
	MaxConnections  int           `koanf:"max_connections" validate:"min=0,max=10000"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"min=0"`
}

// SSLMode returns the libpq sslmode for the RequireSSL flag.
func (d DatabaseSettings) SSLMode() string {
	if d.RequireSSL {
		return "require"
	}
	return "prefer"
}

// WithoutDB returns a connection URL that does not select a database.
// Used to create databases before connecting to them.
func (d DatabaseSettings) WithoutDB() secret.Secret {
	return secret.New(d.connURL("").String())
}

// WithDB returns a connection URL for the configured database.
func (d DatabaseSettings) WithDB() secret.Secret {
	return secret.New(d.connURL(d.DatabaseName).String())
}

func (d DatabaseSettings) connURL(database string) *url.URL {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password.Expose()),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		RawQuery: url.Values{"sslmode": []string{d.SSLMode()}}.Encode(),
	}
	if database != "" {
		u.Path = "/" + database
	}
	return u
}

// EmailClientSettings configures the email delivery API client.
type EmailClientSettings struct {
	BaseURL             string        `koanf:"base_url" validate:"required,url"`
	SenderEmail         string        `koanf:"sender_email" validate:"required"`
	AuthorizationToken  secret.Secret `koanf:"authorization_token" validate:"required"`
	TimeoutMilliseconds int64         `koanf:"timeout_milliseconds" validate:"required,min=1"`
}

// Sender parses the configured sender address.
func (e EmailClientSettings) Sender() (domain.SubscriberEmail, error) {
	return domain.ParseSubscriberEmail(e.SenderEmail)
}

// Timeout returns the per-request timeout.
func (e EmailClientSettings) Timeout() time.Duration {
	return time.Duration(e.TimeoutMilliseconds) * time.Millisecond
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json text"`
}

// WithTestOverrides returns a copy of s pointed at an isolated listener,
// database and email API.
func (s Settings) WithTestOverrides(port int, databaseName, emailBaseURL string) Settings {
	s.Application.Port = port
	s.Database.DatabaseName = databaseName
	s.EmailClient.BaseURL = emailBaseURL
	return s
}

// Load resolves settings from the config directory under the working directory.
func Load() (*Settings, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	return LoadFrom(filepath.Join(wd, configDir))
}

// LoadFrom resolves settings from dir. Sources are applied in order, later
// ones overriding earlier ones per field:
//
//  1. dir/base.yaml
//  2. dir/<APP_ENVIRONMENT>.yaml (local when unset)
//  3. APP_<SECTION>__<FIELD> environment variables
func LoadFrom(dir string) (*Settings, error) {
	rawEnv, ok := os.LookupEnv(EnvironmentVariable)
	if !ok {
		rawEnv = string(EnvironmentLocal)
	}
	environment, err := ParseEnvironment(rawEnv)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", EnvironmentVariable, err)
	}

	k := koanf.New(".")

	for _, name := range []string{"base", string(environment)} {
		path := filepath.Join(dir, name+fileExt)
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	missing := missingKeys(k, presenceRequiredKeys...)

	var settings Settings
	if err := k.UnmarshalWithConf("", &settings, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
			TagName:          "koanf",
			Result:           &settings,
		},
	}); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	settings.applyDefaults()

	if err := validate(&settings, missing); err != nil {
		return nil, err
	}

	return &settings, nil
}

// envKey maps APP_EMAIL_CLIENT__BASE_URL to email_client.base_url.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), envSeparator, ".")
}

func (s *Settings) applyDefaults() {
	if s.Log.Level == "" {
		s.Log.Level = defaultLogLevel
	}
	if s.Log.Format == "" {
		s.Log.Format = defaultLogFormat
	}
	if s.Database.MaxConnections == 0 {
		s.Database.MaxConnections = defaultMaxConnections
	}
	if s.Database.ConnectAttempts == 0 {
		s.Database.ConnectAttempts = defaultConnectAttempts
	}
}

// missingKeys returns the keys absent from every loaded layer.
func missingKeys(k *koanf.Koanf, keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if !k.Exists(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// validate reports struct-tag violations together with keys that had to be
// present but were not.
func validate(s *Settings, missing []string) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("koanf")
	})

	msgs := make([]string, 0, len(missing))
	for _, key := range missing {
		msgs = append(msgs, key+" (required)")
	}

	var validationErrs validator.ValidationErrors
	if err := v.Struct(s); err != nil && !errors.As(err, &validationErrs) {
		return fmt.Errorf("validate settings: %w", err)
	}

	for _, fe := range validationErrs {
		field := fe.Namespace()
		if _, rest, found := strings.Cut(field, "."); found {
			field = rest
		}
		msgs = append(msgs, fmt.Sprintf("%s (%s)", field, fe.Tag()))
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, ", "))
}
