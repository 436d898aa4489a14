package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carehub/hms/internal/config"
	"github.com/carehub/hms/internal/domain/admission"
	"github.com/carehub/hms/internal/domain/bed"
	"github.com/carehub/hms/internal/domain/catalog"
	"github.com/carehub/hms/internal/domain/doctor"
	"github.com/carehub/hms/internal/domain/investigation"
	"github.com/carehub/hms/internal/domain/medicine"
	"github.com/carehub/hms/internal/domain/medreturn"
	"github.com/carehub/hms/internal/domain/patient"
	"github.com/carehub/hms/internal/domain/report"
	"github.com/carehub/hms/internal/domain/sale"
	"github.com/carehub/hms/internal/platform/auth"
	"github.com/carehub/hms/internal/platform/db"
	"github.com/carehub/hms/internal/platform/middleware"
	"github.com/carehub/hms/internal/platform/scheduler"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

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

// openMigrator loads the config and connects a migrator for the schema named
// by --schema, or the configured schema when the flag is empty.
func openMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if schema == "" {
		schema = cfg.DBSchema
	}

	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, "", cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir, schema), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.PersistentFlags().String("dir", "./migrations", "Path to migrations directory")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("to")

			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Printf("Running migrations on schema: %s\n", migrator.Schema())
			var count int
			if target > 0 {
				count, err = migrator.UpTo(cmd.Context(), target)
			} else {
				count, err = migrator.Up(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", migrator.Schema())
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, statusLabel(s), appliedAt(s))
			}
			return nil
		},
	})

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")

			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Down(cmd.Context(), steps)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Printf("Reverted %d migration(s) on schema %s.\n", count, migrator.Schema())
			return nil
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migrations to revert")
	cmd.AddCommand(downCmd)

	return cmd
}

func statusLabel(s db.MigrationStatus) string {
	switch {
	case !s.Applied:
		return "pending"
	case s.Modified:
		return "modified"
	default:
		return "applied"
	}
}

func appliedAt(s db.MigrationStatus) string {
	if s.AppliedAt == nil {
		return ""
	}
	return s.AppliedAt.Format("2006-01-02 15:04:05")
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// resolveSigningKey decodes the hex-encoded HS256 secret. An empty value
// disables HS256 verification.
func resolveSigningKey(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_SIGNING_KEY hex value: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(key))
	}
	return key, nil
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}
	return rl
}

func returnPolicy(cfg *config.Config) medicine.ReturnPolicy {
	p := medicine.DefaultReturnPolicy()
	if cfg.ReturnBatchSuffix != "" {
		p.Suffix = cfg.ReturnBatchSuffix
	}
	if cfg.ReturnShelfLifeDays > 0 {
		p.ShelfLife = cfg.ReturnShelfLife()
	}
	return p
}

// services is the wired domain layer. The scheduler and the HTTP routes both
// draw from it.
type services struct {
	patients       *patient.Service
	doctors        *doctor.Service
	catalog        *catalog.Service
	beds           *bed.Service
	medicines      *medicine.Service
	admissions     *admission.Service
	investigations *investigation.Service
	sales          *sale.Service
	returns        *medreturn.Service
	reports        *report.Service
}

func newServices(pool *pgxpool.Pool, cfg *config.Config) *services {
	tx := db.NewTransactor(pool)

	catalogSvc := catalog.NewService(catalog.NewRepoPG(pool))
	bedSvc := bed.NewService(bed.NewRepoPG(pool), tx)
	medicineSvc := medicine.NewService(medicine.NewRepoPG(pool), tx, returnPolicy(cfg))
	admissionSvc := admission.NewService(admission.NewRepoPG(pool), tx, bedSvc, medicineSvc, catalogSvc)
	saleSvc := sale.NewService(sale.NewRepoPG(pool), tx, medicineSvc)

	return &services{
		patients:       patient.NewService(patient.NewRepoPG(pool), tx),
		doctors:        doctor.NewService(doctor.NewRepoPG(pool)),
		catalog:        catalogSvc,
		beds:           bedSvc,
		medicines:      medicineSvc,
		admissions:     admissionSvc,
		investigations: investigation.NewService(investigation.NewRepoPG(pool), tx, catalogSvc),
		sales:          saleSvc,
		returns:        medreturn.NewService(medreturn.NewRepoPG(pool), tx, saleSvc, admissionSvc, medicineSvc),
		reports:        report.NewService(medicineSvc, cfg.ExpiryWarningDays),
	}
}

// newServer builds the echo instance with the full middleware chain and every
// route registered.
func newServer(cfg *config.Config, pool *pgxpool.Pool, svcs *services, logger zerolog.Logger) (*echo.Echo, error) {
	signingKey, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{HSTS: !cfg.IsDev()}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: signingKey,
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}
	e.Use(auth.ResolveCapabilities())
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, cfg.DBSchema))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	apiV1.Use(middleware.RequestTimeout(requestTimeout))

	patient.NewHandler(svcs.patients).RegisterRoutes(apiV1)
	doctor.NewHandler(svcs.doctors).RegisterRoutes(apiV1)
	catalog.NewHandler(svcs.catalog).RegisterRoutes(apiV1)
	bed.NewHandler(svcs.beds).RegisterRoutes(apiV1)
	medicine.NewHandler(svcs.medicines).RegisterRoutes(apiV1)
	admission.NewHandler(svcs.admissions).RegisterRoutes(apiV1)
	investigation.NewHandler(svcs.investigations).RegisterRoutes(apiV1)
	sale.NewHandler(svcs.sales).RegisterRoutes(apiV1)
	medreturn.NewHandler(svcs.returns).RegisterRoutes(apiV1)
	report.NewHandler(svcs.reports).RegisterRoutes(apiV1)

	return e, nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	svcs := newServices(pool, cfg)

	e, err := newServer(cfg, pool, svcs, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	sched := scheduler.New(logger)
	if cfg.StockAlertInterval > 0 {
		job := report.AlertJob(svcs.medicines, cfg.ExpiryWarning(), logger.With().Str("job", "stock-alert").Logger())
		if err := sched.Every("stock-alert", cfg.StockAlertInterval, job); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule stock alerts")
		}
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Strs("jobs", sched.Jobs()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
