package repository

import (
	"errors"
	"fmt"
	"sync"

	"github.com/amirphl/homecare-hr/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	connOnce sync.Once
	connMu   sync.Mutex
	conn     *gorm.DB
	connErr  error
)

// ErrNotConnected is returned by DB before Connect succeeded
var ErrNotConnected = errors.New("database not connected")

// Connect opens the process-wide database handle. Later calls return the first result.
func Connect(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	connOnce.Do(func() {
		db, err := open(cfg, log)
		connMu.Lock()
		conn, connErr = db, err
		connMu.Unlock()
	})
	connMu.Lock()
	defer connMu.Unlock()
	return conn, connErr
}

// DB returns the handle opened by Connect
func DB() (*gorm.DB, error) {
	connMu.Lock()
	defer connMu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// Close releases the process-wide handle. Connect may be called again afterwards.
func Close() error {
	connMu.Lock()
	defer connMu.Unlock()

	var err error
	if conn != nil {
		if sqlDB, dbErr := conn.DB(); dbErr == nil {
			err = sqlDB.Close()
		}
	}
	conn, connErr = nil, nil
	connOnce = sync.Once{}
	return err
}

func open(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: NewGormLogger(log, cfg.SlowQueryTime, cfg.SlowQueryLog),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"max_open_conns": cfg.MaxOpenConns,
		"max_idle_conns": cfg.MaxIdleConns,
	}).Info("Database connection established")

	return db, nil
}
