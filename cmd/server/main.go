package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"carepath/internal/archive"
	"carepath/internal/auth"
	"carepath/internal/config"
	"carepath/internal/content"
	"carepath/internal/core"
	"carepath/internal/db"
	"carepath/internal/events"
	httpserver "carepath/internal/http"
	"carepath/internal/llm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carepath",
		Short: "CRPS CarePath API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedDemoCmd())
	rootCmd.AddCommand(hashPasscodeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
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
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			conn, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(ctx, conn); err != nil {
				return err
			}
			fmt.Println("Schema applied.")
			return nil
		},
	}
}

func seedDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo",
		Short: "Create the demo patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()
			conn, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(ctx, conn); err != nil {
				return err
			}
			svc, pub, err := buildService(ctx, cfg, conn, logger)
			if err != nil {
				return err
			}
			defer pub.Close()
			ids, err := svc.SeedDemo(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func hashPasscodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passcode <passcode>",
		Short: "Print the bcrypt hash to use as CLINICIAN_PASSCODE_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPasscode(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

// buildService wires the model backend, events, archive and notifier around
// the repositories.
func buildService(ctx context.Context, cfg *config.Config, conn *sql.DB, logger zerolog.Logger) (*core.Service, events.Publisher, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	now := func() time.Time { return time.Now().In(loc) }

	model, err := llm.New(cfg.LLMProvider,
		llm.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			ChatModel:    cfg.OpenAIChatModel,
			SummaryModel: cfg.OpenAISummaryModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Timeout:      cfg.LLMTimeout,
		},
		llm.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.LLMTimeout,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	store, err := archive.New(ctx, cfg.ArchiveBucket)
	if err != nil {
		return nil, nil, err
	}
	pub := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)

	persona := core.NewPersona(model, content.Default(), logger, cfg.ResponseLanguage, now)
	svc := core.NewService(
		db.NewProfileRepo(conn),
		db.NewSessionRepo(conn),
		persona,
		core.WithEvents(pub),
		core.WithArchive(store),
		core.WithNotifier(db.NewNotifier(conn, cfg.DatabaseURL, cfg.NotifyChannel, logger)),
		core.WithLogger(logger),
		core.WithClock(now),
		core.WithMessageCap(cfg.MessageCap),
	)
	return svc, pub, nil
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}
	logger.Info().Msg("connected to database")

	svc, pub, err := buildService(ctx, cfg, conn, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build service")
	}
	defer pub.Close()
	if cfg.ClinicianHash == "" {
		logger.Warn().Msg("CLINICIAN_PASSCODE_HASH is not set; clinician login is disabled")
	}

	issuer := auth.NewIssuer([]byte(cfg.JWTSigningKey), cfg.TokenTTL)
	updates := db.NewNotifier(conn, cfg.DatabaseURL, cfg.NotifyChannel, logger)
	srv := httpserver.NewServer(svc, content.Default(), issuer, cfg.ClinicianHash, updates, logger)
	e := httpserver.NewEcho(srv, httpserver.EchoConfig{
		CORSOrigins: cfg.CORSOrigins,
		AIRate:      cfg.PublicAIRate,
		AIBurst:     cfg.PublicAIBurst,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
