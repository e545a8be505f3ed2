package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ehr/careagent/internal/config"
	"github.com/ehr/careagent/internal/domain/terminology"
	"github.com/ehr/careagent/internal/domain/turn"
	"github.com/ehr/careagent/internal/llm"
	"github.com/ehr/careagent/internal/pipeline"
	"github.com/ehr/careagent/internal/platform/auth"
	"github.com/ehr/careagent/internal/platform/db"
	"github.com/ehr/careagent/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agent-server",
		Short:        "Clinical triage agent API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(turnCmd())
	rootCmd.AddCommand(codesCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func loadCodeTable(cfg *config.Config) (*terminology.Table, error) {
	if cfg.CodingTablePath == "" {
		return terminology.DefaultTable(), nil
	}
	return terminology.LoadTable(cfg.CodingTablePath)
}

// newOrchestrators builds one orchestrator per pipeline mode with shared options.
func newOrchestrators(cfg *config.Config, table *terminology.Table, logger zerolog.Logger) (map[string]pipeline.TurnHandler, error) {
	policy, err := cfg.HITLPolicy()
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithPolicy(policy),
		pipeline.WithCodeTable(table),
		pipeline.WithAdapterTimeout(cfg.LLMTimeout),
	}
	return map[string]pipeline.TurnHandler{
		pipeline.ModeBase:     pipeline.New(pipeline.ModeBase, opts...),
		pipeline.ModeExtended: pipeline.New(pipeline.ModeExtended, opts...),
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the agent API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: requests without a token run as dev-user")
	}

	ctx := context.Background()
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set; turns are kept in memory")
	}

	adapter, err := llm.New(ctx, cfg.LLM(), logger)
	if err != nil {
		return fmt.Errorf("create llm adapter: %w", err)
	}
	logger.Info().Str("provider", cfg.LLMProvider).Str("adapter", adapter.Name()).Msg("language model configured")

	e, err := newServer(cfg, logger, pool, adapter)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("mode", cfg.PipelineMode).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
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
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires routes and middleware. A nil pool selects the in-memory
// turn repository.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, adapter llm.Adapter) (*echo.Echo, error) {
	table, err := loadCodeTable(cfg)
	if err != nil {
		return nil, err
	}
	handlers, err := newOrchestrators(cfg, table, logger)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.PublicPathSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	var pinger db.Pinger
	var repo turn.Repository
	if pool != nil {
		pinger = pool
		repo = turn.NewRepoPG(pool)
	} else {
		repo = turn.NewRepoMemory()
	}
	e.GET("/health/db", db.HealthHandler(pinger))

	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	turnSvc := turn.NewService(handlers, cfg.PipelineMode, adapter, repo, logger)
	turn.NewHandler(turnSvc).RegisterRoutes(apiV1, middleware.RateLimit(rateLimitCfg))

	termSvc := terminology.NewTableService(table)
	terminology.NewHandler(termSvc).RegisterRoutes(apiV1, fhirGroup)

	return e, nil
}

func turnCmd() *cobra.Command {
	var (
		region      string
		mode        string
		userID      string
		conditions  []string
		medications []string
	)
	cmd := &cobra.Command{
		Use:   "turn [utterance]",
		Short: "Run one utterance through the pipeline and print the output as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if mode == "" {
				mode = cfg.PipelineMode
			}
			logger := zerolog.New(cmd.ErrOrStderr()).Level(zerolog.WarnLevel)

			table, err := loadCodeTable(cfg)
			if err != nil {
				return err
			}
			handlers, err := newOrchestrators(cfg, table, logger)
			if err != nil {
				return err
			}
			handler, ok := handlers[mode]
			if !ok {
				return turn.ErrUnknownMode
			}
			adapter, err := llm.New(cmd.Context(), cfg.LLM(), logger)
			if err != nil {
				return fmt.Errorf("create llm adapter: %w", err)
			}

			tc := &pipeline.TurnContext{UserID: userID, Region: region}
			if len(conditions) > 0 || len(medications) > 0 {
				tc.Memory = &pipeline.Memory{Conditions: conditions, Medications: medications}
			}
			out, err := handler.HandleTurn(cmd.Context(), strings.Join(args, " "), tc, adapter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Caller region for emergency services (uk, us, ie)")
	cmd.Flags().StringVar(&mode, "mode", "", "Pipeline mode: base or extended (default PIPELINE_MODE)")
	cmd.Flags().StringVar(&userID, "user", "cli-user", "User id recorded on the turn")
	cmd.Flags().StringSliceVar(&conditions, "condition", nil, "Known condition from earlier turns (repeatable)")
	cmd.Flags().StringSliceVar(&medications, "medication", nil, "Known medication from earlier turns (repeatable)")
	return cmd
}

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes [entity]",
		Short: "Print the coding table, or the codes for one entity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			table, err := loadCodeTable(cfg)
			if err != nil {
				return err
			}

			var doc interface{}
			if len(args) == 1 {
				entry, ok := table.Lookup(args[0])
				if !ok {
					return fmt.Errorf("no codes mapped for entity: %s", args[0])
				}
				doc = entry
			} else {
				doc = map[string]interface{}{
					"version": table.Version(),
					"entries": table.Entries(),
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			return fn(ctx, db.NewMigrator(pool, db.Migrations()))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
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
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		}),
	})
	return cmd
}
