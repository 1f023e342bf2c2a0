package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BHSajuu/Note-Taking-web-applications/idm"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/config"
	"github.com/BHSajuu/Note-Taking-web-applications/internal/notification"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/auth"
	"github.com/BHSajuu/Note-Taking-web-applications/pkg/repository"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open identity store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore.Close()

	emailService := notification.NewEmailService(notification.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		AppName:  cfg.SMTPFromName,
		Timeout:  cfg.SMTPTimeout,
	})

	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("connected to redis")
	}

	idmConfig := idm.Config{
		Store:                 store,
		Dispatcher:            emailService,
		JWTSecret:             cfg.JWTSecret,
		JWTIssuer:             cfg.JWTIssuer,
		SessionTTL:            cfg.SessionTTL,
		ExtendedSessionTTL:    cfg.ExtendedSessionTTL,
		CodeTTL:               cfg.OTPTTL,
		BcryptCost:            cfg.BcryptCost,
		StrictEmailValidation: cfg.StrictEmailValidation,
		BlockDisposableEmail:  cfg.BlockDisposableEmail,
		LinkByEmail:           cfg.OAuthLinkByEmail,
		ClientURL:             cfg.ClientURL,
		MaxRequestBodyBytes:   cfg.MaxRequestBodyBytes,
		RateLimit:             cfg.RateLimit,
		SecurityHeaders:       cfg.SecurityHeaders,
		Logger:                logger,
	}
	if redisClient != nil {
		idmConfig.Redis = redisClient
	}
	if cfg.HasGoogleOAuth() {
		idmConfig.Google = &idm.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURI:  cfg.GoogleRedirectURI,
		}
		logger.Info("Google OAuth enabled")
	}

	authn, err := idm.New(ctx, idmConfig)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		os.Exit(1)
	}
	defer authn.Close()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      authn.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the identity store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.IdentityStore, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := repository.NewDB(ctx, repository.DBConfig{
			URL:             cfg.DatabaseURL(),
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to database")

		if cfg.AutoMigrate {
			if err := repository.Migrate(db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
			logger.Info("database migrations applied")
		}
		return repository.NewIdentitiesRepository(db), db, nil

	case config.StoreDriverDynamoDB:
		client, err := repository.NewDynamoClient(ctx, repository.DynamoConfig{
			Region:    cfg.DynamoRegion,
			Endpoint:  cfg.DynamoEndpoint,
			TableName: cfg.DynamoTable,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := repository.CreateDynamoTable(ctx, client, cfg.DynamoTable); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("using DynamoDB identity store", "table", cfg.DynamoTable)
		return repository.NewDynamoIdentityStore(client, cfg.DynamoTable), nopCloser{}, nil

	default:
		logger.Warn("using in-memory identity store; identities are lost on restart")
		return repository.NewMemoryIdentityStore(), nopCloser{}, nil
	}
}
