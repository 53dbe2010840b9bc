package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "DAILYFRAME"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabaseDSN   = "dailyframe.db"
	defaultLogLevel      = "info"
	defaultSessionTTL    = 60
	defaultImageDir      = "uploads"
	defaultSessionIssuer = "dailyframe-auth"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDSN       string
	LogLevel          string
	SessionSigningKey string
	SessionIssuer     string
	SessionTTL        time.Duration
	ProviderAudience  string
	ProviderJWKSURL   string
	ProviderIssuers   []string
	CronSecret        string
	AdminSecret       string
	ImageDirectory    string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTL)
	configViper.SetDefault("images.directory", defaultImageDir)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		LogLevel:          configViper.GetString("log.level"),
		SessionSigningKey: configViper.GetString("session.signing_secret"),
		SessionIssuer:     configViper.GetString("session.issuer"),
		SessionTTL:        time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		ProviderAudience:  configViper.GetString("provider.audience"),
		ProviderJWKSURL:   configViper.GetString("provider.jwks_url"),
		ProviderIssuers:   configViper.GetStringSlice("provider.issuers"),
		CronSecret:        configViper.GetString("cron.secret"),
		AdminSecret:       configViper.GetString("admin.secret"),
		ImageDirectory:    configViper.GetString("images.directory"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if strings.TrimSpace(c.CronSecret) == "" {
		return fmt.Errorf("cron.secret is required")
	}
	if strings.TrimSpace(c.AdminSecret) == "" {
		return fmt.Errorf("admin.secret is required")
	}
	if strings.TrimSpace(c.ImageDirectory) == "" {
		return fmt.Errorf("images.directory is required")
	}
	return nil
}

// IsPostgres reports whether the configured DSN targets PostgreSQL rather than a SQLite file.
func (c AppConfig) IsPostgres() bool {
	dsn := strings.TrimSpace(c.DatabaseDSN)
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}
