package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries every tunable for the quota process. Load hands it back
// fully resolved and nothing mutates it afterwards, so concurrent reads
// are safe.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Stores   StoresConfig   `yaml:"stores"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Engine   EngineConfig   `yaml:"engine"`
	Notify   NotifyConfig   `yaml:"notify"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`
	Sentry   SentryConfig   `yaml:"sentry"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	APIKey          string   `yaml:"-"` // env-only, never in YAML
}

// StoresConfig contains per-scope data root settings.
type StoresConfig struct {
	RootPath string `yaml:"root_path"`
	// Bootstrap lists scopes provisioned at startup if missing.
	Bootstrap []string `yaml:"bootstrap"`
}

// UpstreamConfig contains retail-platform API settings.
type UpstreamConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"-"` // env-only, never in YAML
	Timeout Duration `yaml:"timeout"`
}

// EngineConfig contains goal engine settings.
type EngineConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
}

// NotifyConfig contains notification delivery settings.
type NotifyConfig struct {
	// Backend selects the delivery mechanism: noop, webhook, or email.
	Backend string        `yaml:"backend"`
	Webhook WebhookConfig `yaml:"webhook"`
	Email   EmailConfig   `yaml:"email"`
}

// WebhookConfig contains webhook delivery settings.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"-"` // env-only, never in YAML
}

// EmailConfig contains email delivery settings.
type EmailConfig struct {
	From   string   `yaml:"from"`
	To     []string `yaml:"to"`
	APIKey string   `yaml:"-"` // env-only, never in YAML
}

// ArchiveConfig contains audit event archive settings.
// An empty bucket disables archiving.
type ArchiveConfig struct {
	Interval  Duration `yaml:"interval"`
	BatchSize int      `yaml:"batch_size"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	Bucket    string   `yaml:"bucket"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
}

// LogConfig holds log output settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SentryConfig contains error reporting settings.
// An empty DSN disables Sentry.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Duration lets YAML carry values like "30s" or "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// DevMode reports whether the process runs with relaxed validation and
// auth bypass. Controlled by QUOTA_DEV_MODE=true.
func DevMode() bool {
	return os.Getenv("QUOTA_DEV_MODE") == "true"
}

// Load resolves configuration in precedence order: shipped defaults, then
// the YAML file named by QUOTA_CONFIG, then QUOTA_* environment variables.
func Load() (*Config, error) {
	// Pull a local .env into the environment first; missing file is fine.
	_ = godotenv.Load()

	cfg := newDefaults()
	if err := loadYAMLFile(cfg, getEnv("QUOTA_CONFIG", "quota.yaml")); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStoresConfig loads only the stores section, skipping validation.
// Offline scope management needs the data root but no credentials.
func LoadStoresConfig() (StoresConfig, error) {
	_ = godotenv.Load()

	cfg := newDefaults()
	configPath := getEnv("QUOTA_CONFIG", "quota.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return StoresConfig{}, err
	}
	applyEnvOverrides(cfg)
	return cfg.Stores, nil
}

// LoadFromFile loads configuration from a specific path. Unlike Load, the
// file must exist. Environment overrides and validation still apply.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := newDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults seeds every tunable with its shipped default.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Stores: StoresConfig{
			RootPath: "~/.quota/scopes",
		},
		Upstream: UpstreamConfig{
			Timeout: Duration(30 * time.Second),
		},
		Engine: EngineConfig{
			RefreshInterval: Duration(15 * time.Minute),
		},
		Notify: NotifyConfig{
			Backend: "noop",
		},
		Archive: ArchiveConfig{
			Interval:  Duration(1 * time.Hour),
			BatchSize: 500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
	}
}

// loadYAMLFile merges a YAML file into cfg. A missing file leaves the
// defaults in place.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides layers environment variables over cfg. Empty variables
// leave the current value alone; unparseable numbers and durations are
// ignored rather than fatal.
func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(dst *Duration, key string) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}
	setList := func(dst *[]string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	setInt(&cfg.Server.Port, "QUOTA_PORT")
	setDuration(&cfg.Server.ReadTimeout, "QUOTA_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "QUOTA_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "QUOTA_SHUTDOWN_TIMEOUT")
	setString(&cfg.Server.APIKey, "QUOTA_API_KEY")

	setString(&cfg.Stores.RootPath, "QUOTA_STORES_ROOT")
	setList(&cfg.Stores.Bootstrap, "QUOTA_BOOTSTRAP_SCOPES")

	setString(&cfg.Upstream.BaseURL, "QUOTA_UPSTREAM_URL")
	setString(&cfg.Upstream.APIKey, "QUOTA_UPSTREAM_API_KEY")
	setDuration(&cfg.Upstream.Timeout, "QUOTA_UPSTREAM_TIMEOUT")

	setDuration(&cfg.Engine.RefreshInterval, "QUOTA_REFRESH_INTERVAL")

	setString(&cfg.Notify.Backend, "QUOTA_NOTIFY_BACKEND")
	setString(&cfg.Notify.Webhook.URL, "QUOTA_WEBHOOK_URL")
	setString(&cfg.Notify.Webhook.Secret, "QUOTA_WEBHOOK_SECRET")
	// RESEND_API_KEY is the provider's own convention.
	setString(&cfg.Notify.Email.APIKey, "RESEND_API_KEY")
	setString(&cfg.Notify.Email.From, "QUOTA_EMAIL_FROM")
	setList(&cfg.Notify.Email.To, "QUOTA_EMAIL_TO")

	setDuration(&cfg.Archive.Interval, "QUOTA_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.BatchSize, "QUOTA_ARCHIVE_BATCH_SIZE")
	setString(&cfg.Archive.Endpoint, "QUOTA_ARCHIVE_ENDPOINT")
	setString(&cfg.Archive.Region, "QUOTA_ARCHIVE_REGION")
	setString(&cfg.Archive.Bucket, "QUOTA_ARCHIVE_BUCKET")
	setString(&cfg.Archive.AccessKey, "QUOTA_ARCHIVE_ACCESS_KEY")
	setString(&cfg.Archive.SecretKey, "QUOTA_ARCHIVE_SECRET_KEY")
	if v := os.Getenv("QUOTA_ARCHIVE_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Archive.UseSSL = &useSSL
	}

	setString(&cfg.Log.Level, "QUOTA_LOG_LEVEL")
	setString(&cfg.Log.Format, "QUOTA_LOG_FORMAT")

	// SENTRY_DSN is the SDK's own convention.
	setString(&cfg.Sentry.DSN, "SENTRY_DSN")
	setString(&cfg.Sentry.Environment, "QUOTA_SENTRY_ENVIRONMENT")
}

// validate checks configuration invariants. Structural checks always run;
// required credentials are skipped in dev mode (QUOTA_DEV_MODE=true).
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port)
	}
	if time.Duration(c.Engine.RefreshInterval) < time.Minute {
		return errors.New("engine.refresh_interval must be at least 1m")
	}
	if time.Duration(c.Archive.Interval) < time.Minute {
		return errors.New("archive.interval must be at least 1m")
	}

	switch c.Notify.Backend {
	case "noop", "webhook", "email":
	default:
		return fmt.Errorf("notify.backend %q must be one of noop, webhook, email", c.Notify.Backend)
	}

	// Dev mode bypasses credential validation
	if DevMode() {
		return nil
	}

	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required (QUOTA_UPSTREAM_URL)")
	}
	if c.Upstream.APIKey == "" {
		return errors.New("QUOTA_UPSTREAM_API_KEY is required")
	}
	if c.Server.APIKey == "" {
		return errors.New("QUOTA_API_KEY is required")
	}

	switch c.Notify.Backend {
	case "webhook":
		if c.Notify.Webhook.URL == "" {
			return errors.New("notify.webhook.url is required for the webhook backend")
		}
		if c.Notify.Webhook.Secret == "" {
			return errors.New("QUOTA_WEBHOOK_SECRET is required for the webhook backend")
		}
	case "email":
		if c.Notify.Email.APIKey == "" {
			return errors.New("RESEND_API_KEY is required for the email backend")
		}
		if c.Notify.Email.From == "" || len(c.Notify.Email.To) == 0 {
			return errors.New("notify.email.from and notify.email.to are required for the email backend")
		}
	}

	return nil
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnv reads key from the environment, falling back when unset or empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
