package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hypeshelf/backend/internal/auth"
	"github.com/hypeshelf/backend/internal/config"
	"github.com/hypeshelf/backend/internal/database"
	"github.com/hypeshelf/backend/internal/logging"
	"github.com/hypeshelf/backend/internal/recommendations"
	"github.com/hypeshelf/backend/internal/server"
	"github.com/hypeshelf/backend/internal/tmdb"
	"github.com/hypeshelf/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hypeshelf-api",
		Short: "HypeShelf movie recommendation board backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Bool("database-seed", defaults.GetBool("database.seed"), "Seed sample recommendations on startup")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("provider-issuer", defaults.GetString("provider.issuer"), "Identity provider issuer URL")
	cmd.PersistentFlags().String("provider-audience", defaults.GetString("provider.audience"), "Identity provider token audience")
	cmd.PersistentFlags().String("provider-jwks-url", defaults.GetString("provider.jwks_url"), "Identity provider JWKS URL")
	cmd.PersistentFlags().String("webhook-signing-secret", "", "Identity webhook signing secret (overrides env)")
	cmd.PersistentFlags().String("admin-emails", defaults.GetString("admin.emails"), "Comma-separated admin email allow-list")
	cmd.PersistentFlags().String("tmdb-api-key", "", "TMDb API key (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.seed", "database-seed")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "provider.issuer", "provider-issuer")
	bindFlag(cmd, "provider.audience", "provider-audience")
	bindFlag(cmd, "provider.jwks_url", "provider-jwks-url")
	bindFlag(cmd, "webhook.signing_secret", "webhook-signing-secret")
	bindFlag(cmd, "admin.emails", "admin-emails")
	bindFlag(cmd, "tmdb.api_key", "tmdb-api-key")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if appConfig.DatabaseSeed {
		if err := database.SeedSampleData(db, logger); err != nil {
			return err
		}
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      time.Duration(appConfig.TokenTTLMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}

	providerVerifier, err := auth.NewProviderVerifier(auth.ProviderVerifierConfig{
		Audience:       appConfig.ProviderAudience,
		JWKSURL:        appConfig.ProviderJWKSURL,
		AllowedIssuers: []string{appConfig.ProviderIssuer},
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	webhookVerifier, err := auth.NewWebhookVerifier(auth.WebhookVerifierConfig{
		SigningSecret: appConfig.WebhookSigningSecret,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Database:    db,
		Clock:       time.Now,
		AdminEmails: appConfig.AdminEmails,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	recommendationService, err := recommendations.NewService(recommendations.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: recommendations.NewUUIDProvider(),
		Directory:  userService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	movieCatalog := tmdb.NewClient(tmdb.ClientConfig{
		APIKey:  appConfig.TMDbAPIKey,
		BaseURL: appConfig.TMDbBaseURL,
		Logger:  logger,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		ProviderVerifier: providerVerifier,
		TokenManager:     tokenManager,
		WebhookVerifier:  webhookVerifier,
		Users:            userService,
		Recommendations:  recommendationService,
		Movies:           movieCatalog,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
