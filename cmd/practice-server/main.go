package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medoffice/practice/internal/config"
	"github.com/medoffice/practice/internal/domain/clinical"
	"github.com/medoffice/practice/internal/domain/patient"
	"github.com/medoffice/practice/internal/domain/reference"
	"github.com/medoffice/practice/internal/domain/scheduling"
	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/auth"
	"github.com/medoffice/practice/internal/platform/db"
	"github.com/medoffice/practice/internal/platform/middleware"
	"github.com/medoffice/practice/internal/platform/openapi"
	"github.com/medoffice/practice/internal/platform/sandbox"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "practice-server",
		Short: "Medical office practice management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(adminCmd())

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

// openPool loads the configuration and connects to the database.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			if !db.ValidSchemaName(schema) {
				return fmt.Errorf("invalid --schema %q", schema)
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			if !db.ValidSchemaName(schema) {
				return fmt.Errorf("invalid --schema %q", schema)
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-8s %-40s %-8s %s\n", "Version", "Name", "Applied", "AppliedAt")
			for _, s := range statuses {
				appliedAt := "-"
				if s.AppliedAt != nil {
					appliedAt = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-8d %-40s %-8t %s\n", s.Version, s.Name, s.Applied, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore the schema from a backup or write a forward migration instead.")
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd, downCmd)
	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for a staff user",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			tenant, _ := cmd.Flags().GetString("tenant")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.AuthTokenTTL
			}

			tok, err := auth.IssueToken(jwtConfig(cfg), subject, tenant, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issueCmd.Flags().String("subject", "", "User the token identifies")
	issueCmd.Flags().String("tenant", "", "Tenant claim (defaults to DEFAULT_TENANT at request time)")
	issueCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to AUTH_TOKEN_TTL)")

	cmd.AddCommand(issueCmd)
	return cmd
}

// adminCmd exposes the deletes that have no HTTP route, both of which
// cascade, and demo data seeding.
func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Store-level maintenance",
	}
	cmd.PersistentFlags().String("tenant", "", "Tenant identifier (defaults to DEFAULT_TENANT)")

	deletePatient := &cobra.Command{
		Use:   "delete-patient <id>",
		Short: "Delete a patient with their appointments and progress notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, args[0], func(ctx context.Context, s *services, id int64) error {
				return s.patients.Delete(ctx, id)
			})
		},
	}

	deleteProvider := &cobra.Command{
		Use:   "delete-insurance-provider <id>",
		Short: "Delete an insurance provider, clearing it on every patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, args[0], func(ctx context.Context, s *services, id int64) error {
				return s.references[reference.InsuranceProvider.Table].Delete(ctx, id)
			})
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the tenant with demo lookups, patients, appointments and notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sandbox.DefaultSeedConfig()
			cfg.PatientCount, _ = cmd.Flags().GetInt("patients")
			cfg.AppointmentsPerPatient, _ = cmd.Flags().GetInt("appointments")
			cfg.NotesPerPatient, _ = cmd.Flags().GetInt("notes")
			cfg.Seed, _ = cmd.Flags().GetInt64("seed")

			return withAdminServices(cmd, func(ctx context.Context, s *services) error {
				result, err := sandbox.NewSeeder(cfg, s.seedTargets()).Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patient(s), %d appointment(s), %d progress note(s) in %s.\n",
					result.Patients, result.Appointments, result.Notes, result.Duration)
				return nil
			})
		},
	}
	seedCmd.Flags().Int("patients", 20, "Number of patients to create")
	seedCmd.Flags().Int("appointments", 2, "Appointments per patient")
	seedCmd.Flags().Int("notes", 1, "Progress notes per patient")
	seedCmd.Flags().Int64("seed", 0, "Random seed (0 picks one from the clock)")

	cmd.AddCommand(deletePatient, deleteProvider, seedCmd)
	return cmd
}

func runAdmin(cmd *cobra.Command, rawID string, fn func(ctx context.Context, s *services, id int64) error) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", rawID)
	}

	err = withAdminServices(cmd, func(ctx context.Context, s *services) error {
		return fn(ctx, s, id)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d.\n", id)
	return nil
}

// withAdminServices runs fn against the tenant named by --tenant, or the
// default tenant, on a connection scoped to its schema.
func withAdminServices(cmd *cobra.Command, fn func(ctx context.Context, s *services) error) error {
	ctx := context.Background()
	cfg, pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		tenant = cfg.DefaultTenant
	}

	s := newServices(pool)
	return db.WithTenantConn(ctx, pool, tenant, func(ctx context.Context) error {
		return fn(ctx, s)
	})
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
}

// services holds one instance of every domain service, sharing a single
// transactor so a request's writes commit together.
type services struct {
	references map[string]*reference.Service
	patients   *patient.Service
	scheduling *scheduling.Service
	clinical   *clinical.Service
}

func (s *services) seedTargets() sandbox.Targets {
	t := sandbox.Targets{Patients: s.patients, Appointments: s.scheduling, Notes: s.clinical}
	for _, kind := range reference.Kinds() {
		t.References = append(t.References, s.references[kind.Table])
	}
	return t
}

func newServices(pool *pgxpool.Pool) *services {
	tx := db.NewTransactor(pool)

	refs := make(map[string]*reference.Service, len(reference.Kinds()))
	for _, kind := range reference.Kinds() {
		refs[kind.Table] = reference.NewService(kind, reference.NewRepoPG(pool, kind), tx)
	}

	patients := patient.NewService(patient.NewRepoPG(pool), refs[reference.InsuranceProvider.Table], tx)
	items := map[string]clinical.ItemLookup{
		clinical.AllergyLink.Field:    refs[reference.Allergy.Table],
		clinical.MedicationLink.Field: refs[reference.Medication.Table],
		clinical.DiagnosisLink.Field:  refs[reference.Diagnosis.Table],
	}

	return &services{
		references: refs,
		patients:   patients,
		scheduling: scheduling.NewService(scheduling.NewRepoPG(pool), patients, tx),
		clinical:   clinical.NewService(clinical.NewRepoPG(pool), patients, items, tx),
	}
}

// newServer builds the echo instance with the full middleware chain and every
// route. It does not touch the database until a request needs it.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger, reg *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierror.Handler(logger)

	metrics := middleware.NewMetrics(reg)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(metrics.Middleware())

	// Auth middleware
	if cfg.DevAuth() {
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	// Tenant middleware
	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant, auth.AuthSkipper))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	api := e.Group("/api")
	api.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "pong"})
	})

	s := newServices(pool)
	refs := make([]*reference.Service, 0, len(s.references))
	for _, kind := range reference.Kinds() {
		refs = append(refs, s.references[kind.Table])
	}
	reference.NewHandler(refs...).RegisterRoutes(api)
	patient.NewHandler(s.patients).RegisterRoutes(api)
	scheduling.NewHandler(s.scheduling).RegisterRoutes(api)
	clinical.NewHandler(s.clinical).RegisterRoutes(api)
	openapi.NewGenerator(version, e.Routes, auth.IsPublicPath).RegisterRoutes(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.NewMigrator(pool, cfg.MigrationsDir), cfg.DefaultTenant))
	e.GET("/metrics", middleware.MetricsHandler(reg))

	return e
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
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.DevAuth() {
		logger.Warn().Msg("development auth enabled: every request is admitted as " + auth.DevUser)
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if cfg.AutoMigrate {
		if err := db.CreateTenantSchema(ctx, pool, cfg.DefaultTenant, cfg.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("auto-migrate failed")
		}
		logger.Info().Str("schema", db.SchemaName(cfg.DefaultTenant)).Msg("migrations applied")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	e := newServer(cfg, pool, logger, reg)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
