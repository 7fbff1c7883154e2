// Package main provides the entry point of the home care follow-up service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/homecare-hr/app/bootstrap"
	"github.com/amirphl/homecare-hr/app/handlers"
	"github.com/amirphl/homecare-hr/app/logger"
	"github.com/amirphl/homecare-hr/app/middleware"
	"github.com/amirphl/homecare-hr/app/router"
	"github.com/amirphl/homecare-hr/app/scheduler"
	"github.com/amirphl/homecare-hr/config"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	container *bootstrap.Container
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logCloser := logger.Init(cfg.Logging, cfg.Deployment.Environment)
	defer logCloser.Close()
	log := logger.Get().WithFields(logrus.Fields{
		"service": "homecare-followup",
		"version": cfg.Deployment.Version,
	})

	log.WithField("environment", cfg.Deployment.Environment).Info("Starting home care follow-up service")

	app, err := initializeApplication(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutting down gracefully...")
	case err := <-serverErr:
		log.WithError(err).Error("Server stopped unexpectedly")
	}

	// Stop background workers before the server so no job starts mid-shutdown
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during shutdown")
	}
	if err := app.container.Close(); err != nil {
		log.WithError(err).Error("Error releasing resources")
	}

	log.Info("Server stopped")
}

func initializeApplication(ctx context.Context, cfg *config.ProductionConfig, log logrus.FieldLogger) (*Application, error) {
	var stopFuncs []func()

	c, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	healthChecks := map[string]router.HealthCheck{"database": c.PingDatabase}
	if c.Redis != nil {
		healthChecks["cache"] = c.PingCache
	}

	followUpHandler := handlers.NewFollowUpHandler(c.FollowUps, cfg.FollowUp.RunTimeout, log)
	reportHandler := handlers.NewReportHandler(c.Reports, log)
	authMiddleware := middleware.NewAuthMiddleware(c.Tokens, cfg.Security.CronSecret)

	appRouter := router.NewFiberRouter(cfg, followUpHandler, reportHandler, authMiddleware, healthChecks, log)

	if cfg.Scheduler.Enabled {
		location, err := time.LoadLocation(cfg.Scheduler.TimeZone)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("invalid scheduler time zone %q: %w", cfg.Scheduler.TimeZone, err)
		}
		sched := scheduler.NewFollowUpScheduler(c.FollowUps, log, cfg.Scheduler.NurtureSpec, cfg.Scheduler.SMSSpec, location, cfg.FollowUp.RunTimeout)
		if err := sched.Start(); err != nil {
			_ = c.Close()
			return nil, err
		}
		stopFuncs = append(stopFuncs, sched.Stop)
	}

	if cfg.FollowUp.MailDispatcherEnabled {
		dispatcher := scheduler.NewMailDispatcher(
			c.MailRepo,
			c.Tx,
			c.Notifier,
			log,
			cfg.FollowUp.MailDispatcherInterval,
			cfg.FollowUp.MailDispatcherBatchSize,
			cfg.FollowUp.MailMaxAttempts,
		)
		stopFuncs = append(stopFuncs, dispatcher.Start(context.Background()))
		log.Info("Mail dispatcher started")
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		container: c,
		stopFuncs: stopFuncs,
	}, nil
}
