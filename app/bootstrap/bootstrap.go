// Package bootstrap wires configuration, storage and services into the follow-up flows.
// The API server and the operator CLI share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/homecare-hr/app/services"
	businessflow "github.com/amirphl/homecare-hr/business_flow"
	"github.com/amirphl/homecare-hr/config"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container holds the long-lived dependencies of the process
type Container struct {
	Config *config.ProductionConfig
	DB     *gorm.DB
	Redis  *redis.Client

	Tx       repository.Transactor
	MailRepo repository.OutboundMailRepository

	Notifier  services.NotificationService
	Publisher services.MailPublisher
	Tokens    services.TokenService

	FollowUps businessflow.FollowUpRunFlow
	Reports   businessflow.ReportFlow

	closers []func() error
	log     logrus.FieldLogger
}

// New connects to the database, the cache and the queue and builds every flow
func New(ctx context.Context, cfg *config.ProductionConfig, log logrus.FieldLogger) (*Container, error) {
	c := &Container{Config: cfg, log: log}

	db, err := InitializeDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	c.DB = db
	c.closers = append(c.closers, repository.Close)

	rc, err := InitializeCache(ctx, cfg.Cache, log)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	var lock services.RunLock = services.NoopRunLock{}
	if rc != nil {
		c.Redis = rc
		c.closers = append(c.closers, rc.Close)
		lock = services.NewRedisRunLock(rc, cfg.Cache.RedisPrefix)
	}

	c.Publisher = InitializePublisher(cfg.Queue, log)
	c.closers = append(c.closers, c.Publisher.Close)

	c.Notifier = InitializeNotificationService(cfg, log)

	tokens, err := services.NewTokenService(cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SecretKey)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	c.Tokens = tokens

	contactRepo := repository.NewContactRepository(db)
	signupRepo := repository.NewSignupRepository(db)
	templateRepo := repository.NewCampaignTemplateRepository(db)
	sentSMSRepo := repository.NewSentSMSRepository(db)
	jobRunRepo := repository.NewJobRunRepository(db)
	c.MailRepo = repository.NewOutboundMailRepository(db)
	c.Tx = repository.NewTransactor(db)

	nurture := businessflow.NewLeadNurtureFlow(contactRepo, signupRepo, templateRepo, c.MailRepo, c.Tx, c.Publisher, log)
	reminders := businessflow.NewSignatureReminderFlow(signupRepo, c.MailRepo, c.Tx, c.Publisher,
		cfg.FollowUp.LoginURL, cfg.FollowUp.SignupPathFormat, log)
	sms := businessflow.NewSMSFollowUpFlow(contactRepo, signupRepo, templateRepo, sentSMSRepo, c.Tx, c.Notifier, log)
	immediate := businessflow.NewImmediateFollowUpFlow(contactRepo, templateRepo, c.MailRepo, c.Tx, c.Publisher, log)

	c.FollowUps = businessflow.NewFollowUpRunFlow(nurture, reminders, sms, immediate, jobRunRepo, lock, cfg.FollowUp.RunLockTTL, log)
	c.Reports = businessflow.NewReportFlow(contactRepo, templateRepo, jobRunRepo, sentSMSRepo, log)

	return c, nil
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// PingDatabase is the database health check
func (c *Container) PingDatabase(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PingCache is the redis health check
func (c *Container) PingCache(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

// InitializeDatabase opens the shared connection and applies pending migrations when enabled
func InitializeDatabase(ctx context.Context, cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	if cfg.AutoMigrate {
		applied, err := repository.RunMigrations(ctx, cfg.DSN(), cfg.MigrationsDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.WithField("applied", len(applied)).Info("Database migrations checked")
	}

	db, err := repository.Connect(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("Database connection established")
	return db, nil
}

// InitializeCache returns nil when the cache is disabled
func InitializeCache(ctx context.Context, cfg config.CacheConfig, log logrus.FieldLogger) (*redis.Client, error) {
	if !cfg.Enabled {
		log.Info("Cache disabled, run locking is off")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.WithField("redis_db", cfg.RedisDB).Info("Redis connection established")
	return rc, nil
}

// InitializePublisher falls back to the no-op publisher when the queue is disabled or unreachable.
// The outbound_mails table stays the source of truth either way.
func InitializePublisher(cfg config.QueueConfig, log logrus.FieldLogger) services.MailPublisher {
	if !cfg.Enabled {
		return services.NoopMailPublisher{}
	}
	publisher, err := services.NewRabbitMQMailPublisher(cfg)
	if err != nil {
		log.WithError(err).Warn("Mail queue unavailable, mail events will not be published")
		return services.NoopMailPublisher{}
	}
	log.WithField("exchange", cfg.Exchange).Info("Mail publisher connected")
	return publisher
}

func InitializeNotificationService(cfg *config.ProductionConfig, log logrus.FieldLogger) services.NotificationService {
	var smsService services.SMSService
	if cfg.SMS.IsMock() {
		smsService = services.NewMockSMSService()
		log.Warn("Using mock SMS provider")
	} else {
		smsService = services.NewSMSService(&cfg.SMS)
	}

	var emailProvider services.EmailProvider
	if cfg.Email.Host == "" {
		emailProvider = services.NewMockEmailProvider(log)
	} else {
		emailProvider = services.NewSMTPEmailProvider(cfg.Email)
	}

	return services.NewNotificationService(smsService, emailProvider)
}
