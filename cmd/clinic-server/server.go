package main

import (
	"context"
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

	"github.com/clinic/interchange/internal/config"
	"github.com/clinic/interchange/internal/domain/consultation"
	"github.com/clinic/interchange/internal/domain/interchange"
	"github.com/clinic/interchange/internal/domain/patient"
	"github.com/clinic/interchange/internal/platform/auth"
	"github.com/clinic/interchange/internal/platform/db"
	"github.com/clinic/interchange/internal/platform/middleware"
)

const shutdownTimeout = 10 * time.Second

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	logger := newLogger(cfg.Env, os.Stdout)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e, err := buildServer(cfg, pool, logger)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting clinic interchange server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// buildServer wires middleware and routes onto a new echo instance.
func buildServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, error) {
	authMW, err := authMiddleware(cfg)
	if err != nil {
		return nil, err
	}
	defaultFormat, err := interchange.ParseFormat(cfg.ExportDefaultFormat)
	if err != nil {
		return nil, err
	}
	dialect, err := interchange.LoadDialect(cfg.ImportDialectFile)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "X-Clinic-ID", middleware.RequestIDHeader},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))
	e.Use(middleware.BodyLimit("1M", cfg.ImportMaxBody))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	api := e.Group("/api")
	api.Use(authMW)
	api.Use(db.ClinicMiddleware(pool, cfg.DefaultClinic))
	apiV1 := api.Group("/v1")

	patientRepo := patient.NewPatientRepoPG(pool)
	consultationRepo := consultation.NewConsultationRepoPG(pool)

	patient.NewHandler(patient.NewService(patientRepo)).RegisterRoutes(apiV1)

	importer := interchange.NewImporter(patientRepo, consultationRepo,
		interchange.WithClassifier(interchange.NewClassifier(dialect)),
		interchange.WithLogger(logger),
	)
	exporter := interchange.NewExporter(patientRepo)
	interchange.NewHandler(importer, exporter, defaultFormat).RegisterRoutes(apiV1)

	return e, nil
}

// authMiddleware selects the dev bypass or JWT validation by auth mode.
func authMiddleware(cfg *config.Config) (echo.MiddlewareFunc, error) {
	if cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware(), nil
	}
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: key,
	}), nil
}
