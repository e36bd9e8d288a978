// Package config reads the server settings from flags, FIREFLY_ environment
// variables and an optional config.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

type HTTPConfig struct {
	Port int
}

type DatastoreConfig struct {
	Engine string
	URI    string
}

type SessionConfig struct {
	Secret string
}

type LogConfig struct {
	Format string
	Level  string
}

type ProviderConfig struct {
	Key    string
	Secret string
}

type OAuthConfig struct {
	GitHub ProviderConfig
	Google ProviderConfig
	// CallbackBase is the public URL the providers redirect back to.
	CallbackBase string
}

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	MaxSize  int64
}

type NotificationsConfig struct {
	// Retention is how long read notifications are kept.
	Retention time.Duration
	// CleanupSchedule is a cron spec for the retention job.
	CleanupSchedule string
}

type TasksConfig struct {
	PerPage int
}

type Config struct {
	HTTP          HTTPConfig
	Datastore     DatastoreConfig
	Session       SessionConfig
	FrontendURL   string
	Log           LogConfig
	OAuth         OAuthConfig
	S3            S3Config
	Notifications NotificationsConfig
	Tasks         TasksConfig
}

func DefaultConfig() *Config {
	return &Config{
		HTTP:      HTTPConfig{Port: 8080},
		Datastore: DatastoreConfig{Engine: EngineSQLite, URI: "firefly.db?_foreign_keys=on&_busy_timeout=5000"},
		Log:       LogConfig{Format: "text", Level: "info"},
		OAuth:     OAuthConfig{CallbackBase: "http://localhost:8080"},
		S3:        S3Config{Region: "us-east-1", MaxSize: 10 << 20},
		Notifications: NotificationsConfig{
			Retention:       30 * 24 * time.Hour,
			CleanupSchedule: "@every 1h",
		},
		Tasks: TasksConfig{PerPage: 12},
	}
}

// New returns a viper instance reading FIREFLY_ variables and config.yaml
// from the working directory or $HOME/.firefly.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.firefly")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIREFLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

type binding struct {
	key, flag string
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

// BindFlags declares the server flags on flags and binds them to v.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	d := DefaultConfig()

	flags.Int("http-port", d.HTTP.Port, "the port to serve HTTP on")
	flags.String("datastore-engine", d.Datastore.Engine, "the datastore engine, sqlite or postgres")
	flags.String("datastore-uri", d.Datastore.URI, "the connection uri of the datastore")
	flags.String("session-secret", "", "(required) the key signing session cookies")
	flags.String("frontend-url", "", "where to send the browser after login")
	flags.String("log-format", d.Log.Format, "the log format, text or json")
	flags.String("log-level", d.Log.Level, "the log level: none, debug, info, warn or error")
	flags.String("oauth-github-key", "", "GitHub OAuth client id")
	flags.String("oauth-github-secret", "", "GitHub OAuth client secret")
	flags.String("oauth-google-key", "", "Google OAuth client id")
	flags.String("oauth-google-secret", "", "Google OAuth client secret")
	flags.String("oauth-callback-base", d.OAuth.CallbackBase, "the public base URL of OAuth callbacks")
	flags.String("s3-bucket", "", "the bucket storing task attachments; attachments are disabled when empty")
	flags.String("s3-region", d.S3.Region, "the region of the attachment bucket")
	flags.String("s3-endpoint", "", "a custom S3 endpoint, e.g. MinIO")
	flags.Int64("s3-max-size", d.S3.MaxSize, "the largest accepted attachment in bytes")
	flags.Duration("notifications-retention", d.Notifications.Retention, "how long read notifications are kept")
	flags.String("notifications-cleanup-interval", d.Notifications.CleanupSchedule, "cron spec of the notification cleanup job")
	flags.Int("tasks-per-page", d.Tasks.PerPage, "page size of member task lists")

	for _, b := range []binding{
		{key: "http.port", flag: "http-port"},
		{key: "datastore.engine", flag: "datastore-engine"},
		{key: "datastore.uri", flag: "datastore-uri"},
		{key: "session.secret", flag: "session-secret"},
		{key: "frontend.url", flag: "frontend-url"},
		{key: "log.format", flag: "log-format"},
		{key: "log.level", flag: "log-level"},
		{key: "oauth.github.key", flag: "oauth-github-key"},
		{key: "oauth.github.secret", flag: "oauth-github-secret"},
		{key: "oauth.google.key", flag: "oauth-google-key"},
		{key: "oauth.google.secret", flag: "oauth-google-secret"},
		{key: "oauth.callback-base", flag: "oauth-callback-base"},
		{key: "s3.bucket", flag: "s3-bucket"},
		{key: "s3.region", flag: "s3-region"},
		{key: "s3.endpoint", flag: "s3-endpoint"},
		{key: "s3.max-size", flag: "s3-max-size"},
		{key: "notifications.retention", flag: "notifications-retention"},
		{key: "notifications.cleanup-interval", flag: "notifications-cleanup-interval"},
		{key: "tasks.per-page", flag: "tasks-per-page"},
	} {
		mustBindPFlag(v, b.key, flags.Lookup(b.flag))
	}
}

// ReadInConfig reads config.yaml into v. A missing file is not an error.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Load reads the optional config file and returns the validated settings.
func Load(v *viper.Viper) (*Config, error) {
	if err := ReadInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTP:        HTTPConfig{Port: v.GetInt("http.port")},
		Datastore:   DatastoreConfig{Engine: v.GetString("datastore.engine"), URI: v.GetString("datastore.uri")},
		Session:     SessionConfig{Secret: v.GetString("session.secret")},
		FrontendURL: v.GetString("frontend.url"),
		Log:         LogConfig{Format: v.GetString("log.format"), Level: v.GetString("log.level")},
		OAuth: OAuthConfig{
			GitHub:       ProviderConfig{Key: v.GetString("oauth.github.key"), Secret: v.GetString("oauth.github.secret")},
			Google:       ProviderConfig{Key: v.GetString("oauth.google.key"), Secret: v.GetString("oauth.google.secret")},
			CallbackBase: strings.TrimRight(v.GetString("oauth.callback-base"), "/"),
		},
		S3: S3Config{
			Bucket:   v.GetString("s3.bucket"),
			Region:   v.GetString("s3.region"),
			Endpoint: v.GetString("s3.endpoint"),
			MaxSize:  v.GetInt64("s3.max-size"),
		},
		Notifications: NotificationsConfig{
			Retention:       v.GetDuration("notifications.retention"),
			CleanupSchedule: v.GetString("notifications.cleanup-interval"),
		},
		Tasks: TasksConfig{PerPage: v.GetInt("tasks.per-page")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Datastore.Engine {
	case EngineSQLite, EnginePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown datastore engine %q", c.Datastore.Engine))
	}
	if c.Datastore.URI == "" {
		errs = append(errs, errors.New("datastore uri is required"))
	}
	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("session secret must be at least 32 bytes"))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.HTTP.Port))
	}
	if c.Notifications.Retention <= 0 {
		errs = append(errs, errors.New("notification retention must be positive"))
	}
	if c.Tasks.PerPage <= 0 {
		errs = append(errs, errors.New("tasks per page must be positive"))
	}
	return errors.Join(errs...)
}
