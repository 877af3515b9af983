package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "HYPESHELF"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "hypeshelf.db"
	defaultLogLevel     = "info"
	defaultTokenTTL     = 30
	defaultTMDbBaseURL  = "https://api.themoviedb.org/3"
	defaultIssuerName   = "hypeshelf-auth"
	defaultAudienceName = "hypeshelf-api"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	DatabaseSeed bool
	LogLevel     string

	// Backend token issuance.
	AuthSigningSecret string
	TokenIssuer       string
	TokenAudience     string
	TokenTTLMinutes   int

	// Identity provider verification.
	ProviderIssuer   string
	ProviderAudience string
	ProviderJWKSURL  string

	// Provider webhook signature verification.
	WebhookSigningSecret string

	// Emails granted the admin role on sync.
	AdminEmails []string

	// Movie metadata lookups; empty key disables the integration.
	TMDbAPIKey  string
	TMDbBaseURL string
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.seed", false)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.issuer", defaultIssuerName)
	configViper.SetDefault("token.audience", defaultAudienceName)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("tmdb.base_url", defaultTMDbBaseURL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		DatabaseSeed:         configViper.GetBool("database.seed"),
		LogLevel:             configViper.GetString("log.level"),
		AuthSigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenIssuer:          configViper.GetString("token.issuer"),
		TokenAudience:        configViper.GetString("token.audience"),
		TokenTTLMinutes:      configViper.GetInt("token.ttl_minutes"),
		ProviderIssuer:       configViper.GetString("provider.issuer"),
		ProviderAudience:     configViper.GetString("provider.audience"),
		ProviderJWKSURL:      configViper.GetString("provider.jwks_url"),
		WebhookSigningSecret: configViper.GetString("webhook.signing_secret"),
		AdminEmails:          splitList(configViper.GetString("admin.emails")),
		TMDbAPIKey:           configViper.GetString("tmdb.api_key"),
		TMDbBaseURL:          configViper.GetString("tmdb.base_url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.ProviderIssuer) == "" {
		return fmt.Errorf("provider.issuer is required")
	}
	if strings.TrimSpace(c.ProviderAudience) == "" {
		return fmt.Errorf("provider.audience is required")
	}
	if strings.TrimSpace(c.ProviderJWKSURL) == "" {
		return fmt.Errorf("provider.jwks_url is required")
	}
	if strings.TrimSpace(c.WebhookSigningSecret) == "" {
		return fmt.Errorf("webhook.signing_secret is required")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	entries := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		entries = append(entries, trimmed)
	}
	return entries
}
