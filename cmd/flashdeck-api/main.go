package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/auth"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/cards"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/config"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/database"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/decks"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/logging"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/model"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/records"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/server"
	"github.com/MarcoPoloResearchLab/flashdeck/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "flashdeck-api",
		Short: "Flashcard deck API service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations()
		},
	})

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString(config.KeyHTTPAddress), "HTTP listen address")
	flags.String("database-driver", defaults.GetString(config.KeyDatabaseDriver), "Database driver (sqlite, postgres)")
	flags.String("database-dsn", defaults.GetString(config.KeyDatabaseDSN), "Database DSN or SQLite path")
	flags.String("log-level", defaults.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.GetString(config.KeyLogFormat), "Log format (json, console)")
	flags.String("signing-secret", "", "Token signing secret (overrides env)")
	flags.Int("access-ttl-minutes", defaults.GetInt(config.KeyAccessTTLMinutes), "Access token TTL in minutes")
	flags.Int("refresh-ttl-minutes", defaults.GetInt(config.KeyRefreshTTLMinutes), "Refresh token TTL in minutes")
	flags.StringSlice("allowed-origins", []string{defaults.GetString(config.KeyAllowedOrigins)}, "CORS allowed origins")

	bindFlag(cmd, config.KeyHTTPAddress, "http-address")
	bindFlag(cmd, config.KeyDatabaseDriver, "database-driver")
	bindFlag(cmd, config.KeyDatabaseDSN, "database-dsn")
	bindFlag(cmd, config.KeyLogLevel, "log-level")
	bindFlag(cmd, config.KeyLogFormat, "log-format")
	bindFlag(cmd, config.KeyAuthSigningSecret, "signing-secret")
	bindFlag(cmd, config.KeyAccessTTLMinutes, "access-ttl-minutes")
	bindFlag(cmd, config.KeyRefreshTTLMinutes, "refresh-ttl-minutes")
	bindFlag(cmd, config.KeyAllowedOrigins, "allowed-origins")
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

func loadRuntime() (config.AppConfig, *zap.Logger, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return appConfig, logger, nil
}

func runMigrations() error {
	appConfig, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runServer(ctx context.Context) error {
	appConfig, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	handler, err := buildHandler(db, appConfig, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
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
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildHandler(db *gorm.DB, appConfig config.AppConfig, logger *zap.Logger) (http.Handler, error) {
	accessorConfig := records.AccessorConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: records.NewUUIDProvider(),
		Logger:     logger,
	}
	deckRecords, err := records.NewAccessor[model.Deck](accessorConfig)
	if err != nil {
		return nil, err
	}
	cardRecords, err := records.NewAccessor[model.Card](accessorConfig)
	if err != nil {
		return nil, err
	}

	cardService, err := cards.NewService(cards.ServiceConfig{
		Records: cardRecords,
		Decks:   deckRecords,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	deckService, err := decks.NewService(decks.ServiceConfig{
		Records: deckRecords,
		Cards:   cardService,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	accounts, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: records.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		Audience:      appConfig.AuthAudience,
		AccessTTL:     appConfig.AccessTokenTTL,
		RefreshTTL:    appConfig.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}
	revocations, err := auth.NewRevocationStore(auth.RevocationStoreConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	authenticator, err := auth.NewAuthenticator(auth.AuthenticatorConfig{
		Accounts:    accounts,
		Tokens:      tokenIssuer,
		Revocations: revocations,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return server.NewHTTPHandler(server.Dependencies{
		Authenticator:  authenticator,
		Decks:          deckService,
		Cards:          cardService,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	})
}
