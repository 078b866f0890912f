package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medicore/medicore/internal/config"
	"github.com/medicore/medicore/internal/domain/directory"
	"github.com/medicore/medicore/internal/domain/documents"
	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/db"
	"github.com/medicore/medicore/internal/platform/filestore"
	"github.com/medicore/medicore/internal/platform/middleware"
	"github.com/medicore/medicore/internal/platform/notification"
	"github.com/medicore/medicore/internal/platform/seal"
)

// documentNotifier adapts the notification dispatcher to the
// documents.Notifier interface, keeping the notification platform free of
// domain imports.
type documentNotifier struct {
	dispatcher *notification.Dispatcher
}

func (n *documentNotifier) DocumentSent(ctx context.Context, patient *directory.Patient, doc *documents.Record) error {
	data := map[string]string{
		"patient_name":   patient.FullName,
		"document_type":  string(doc.Type),
		"document_title": doc.Title,
	}

	if patient.Email != nil && *patient.Email != "" {
		if _, err := n.dispatcher.DeliverTemplate(ctx, "document-ready", data, *patient.Email); err != nil {
			return fmt.Errorf("email notification: %w", err)
		}
	}
	if patient.Phone != nil && *patient.Phone != "" {
		if _, err := n.dispatcher.DeliverTemplate(ctx, "document-ready-sms", data, *patient.Phone); err != nil {
			return fmt.Errorf("sms notification: %w", err)
		}
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "medicore-server",
		Short: "MediCore document lifecycle API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(keygenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a database backup instead.")
			return nil
		},
	})

	return cmd
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a DOCS_ENCRYPTION_KEY value",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := make([]byte, seal.KeySize)
			if _, err := crypto_rand.Read(key); err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			fmt.Println(hex.EncodeToString(key))
			return nil
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Content sealer. Development falls back to a throwaway key so the server
	// boots without configuration; sealed records do not survive a restart.
	var sealKey []byte
	if cfg.DocsEncryptionKey != "" {
		sealKey, err = cfg.EncryptionKey()
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid DOCS_ENCRYPTION_KEY")
		}
	} else {
		sealKey = make([]byte, seal.KeySize)
		if _, err := crypto_rand.Read(sealKey); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate development encryption key")
		}
		logger.Warn().Msg("DOCS_ENCRYPTION_KEY not set; using an ephemeral key")
	}
	sealer, err := seal.New(sealKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create content sealer")
	}

	// Artifact store
	files, err := filestore.NewDiskStore(cfg.FileStorageDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	// Notifications. Log senders stand in until a real provider is configured.
	dispatcher := notification.NewDispatcher(
		&notification.LogEmailSender{Logger: logger},
		&notification.LogSMSSender{Logger: logger},
		notification.NewCatalog(),
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.MaxUploadSize))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// Auth middleware
	switch cfg.ResolvedAuthMode() {
	case "development":
		e.Use(auth.DevAuthMiddleware())
	case "hmac":
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	case "jwks":
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Documents domain
	docRepo := documents.NewRepoPG(pool)
	dirRepo := directory.NewRepoPG(pool)
	docSvc := documents.NewService(docRepo, dirRepo, files, sealer, &documentNotifier{dispatcher: dispatcher}, logger)
	docHandler := documents.NewHandler(docSvc)
	docHandler.RegisterRoutes(apiV1)

	// Notification admin endpoints
	notifyHandler := notification.NewHandler(dispatcher)
	notifyHandler.RegisterRoutes(apiV1.Group("", auth.RequireRole(auth.RoleAdmin)))

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("server starting")

		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	return nil
}
