package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sevasetu/portal/internal/config"
	"github.com/sevasetu/portal/internal/database"
	"github.com/sevasetu/portal/internal/identity"
	"github.com/sevasetu/portal/internal/llm"
	"github.com/sevasetu/portal/internal/logging"
	"github.com/sevasetu/portal/internal/server"
	"github.com/sevasetu/portal/internal/transcribe"
	"github.com/sevasetu/portal/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sevasetu-api",
		Short: "SevaSetu government-services portal API server",
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
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Postgres DSN or SQLite path")
	cmd.PersistentFlags().String("identity-url", "", "Identity provider base URL")
	cmd.PersistentFlags().String("identity-anon-key", "", "Identity provider anon key (overrides env)")
	cmd.PersistentFlags().String("identity-jwt-secret", "", "Identity provider JWT secret for offline validation")
	cmd.PersistentFlags().String("genai-api-key", "", "Generative model API key (overrides env)")
	cmd.PersistentFlags().String("genai-model", defaults.GetString("genai.model"), "Generative model name")
	cmd.PersistentFlags().String("transcribe-url", defaults.GetString("transcribe.base_url"), "Transcription API base URL")
	cmd.PersistentFlags().String("transcribe-api-key", "", "Transcription API key (overrides env)")
	cmd.PersistentFlags().String("redis-address", "", "Redis address for rate limiting (empty disables)")
	cmd.PersistentFlags().Int("rate-limit", defaults.GetInt("ratelimit.per_second"), "Per-IP request cap per second on AI routes")
	cmd.PersistentFlags().String("client-url", defaults.GetString("client.url"), "Browser client base URL")
	cmd.PersistentFlags().String("server-url", defaults.GetString("server.url"), "Externally visible server base URL")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "identity.base_url", "identity-url")
	bindFlag(cmd, "identity.anon_key", "identity-anon-key")
	bindFlag(cmd, "identity.jwt_secret", "identity-jwt-secret")
	bindFlag(cmd, "genai.api_key", "genai-api-key")
	bindFlag(cmd, "genai.model", "genai-model")
	bindFlag(cmd, "transcribe.base_url", "transcribe-url")
	bindFlag(cmd, "transcribe.api_key", "transcribe-api-key")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "ratelimit.per_second", "rate-limit")
	bindFlag(cmd, "client.url", "client-url")
	bindFlag(cmd, "server.url", "server-url")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	// A local .env is a convenience for development; absence is not an error.
	_ = godotenv.Load()

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

	db, err := database.Open(appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	identityClient, err := identity.NewClient(identity.ClientConfig{
		BaseURL: appConfig.IdentityBaseURL,
		AnonKey: appConfig.IdentityAnonKey,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	var tokenValidator server.AccessTokenValidator
	if appConfig.IdentityJWTSecret != "" {
		validator, err := identity.NewTokenValidator(identity.TokenValidatorConfig{
			SigningSecret: []byte(appConfig.IdentityJWTSecret),
		})
		if err != nil {
			return err
		}
		tokenValidator = validator
	}

	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	llmClient, err := llm.NewClient(ctx, llm.ClientConfig{
		APIKey: appConfig.GeminiAPIKey,
		Model:  appConfig.GeminiModel,
	})
	if err != nil {
		return err
	}
	defer llmClient.Close() //nolint:errcheck

	transcribeClient, err := transcribe.NewClient(transcribe.ClientConfig{
		BaseURL: appConfig.TranscribeBaseURL,
		APIKey:  appConfig.TranscribeAPIKey,
		Model:   appConfig.TranscribeModel,
	})
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if appConfig.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     appConfig.RedisAddress,
			Password: appConfig.RedisPassword,
		})
		defer redisClient.Close()
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Identity:       identityClient,
		Users:          usersService,
		Generator:      llmClient,
		Transcriber:    transcribeClient,
		TokenValidator: tokenValidator,
		RedisClient:    redisClient,
		RateLimit:      appConfig.RateLimitPerSec,
		ClientURL:      appConfig.ClientURL,
		ServerURL:      appConfig.ServerURL,
		Logger:         logger,
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
