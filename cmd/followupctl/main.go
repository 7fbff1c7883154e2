// Command followupctl runs the follow-up jobs and reports from the command line
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amirphl/homecare-hr/app/bootstrap"
	"github.com/amirphl/homecare-hr/app/logger"
	"github.com/amirphl/homecare-hr/app/services"
	businessflow "github.com/amirphl/homecare-hr/business_flow"
	"github.com/amirphl/homecare-hr/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg *config.ProductionConfig
	log logrus.FieldLogger
)

// runtime is what the job commands need from the wired application
type runtime struct {
	followUps businessflow.FollowUpRunFlow
	reports   businessflow.ReportFlow
	close     func() error
}

// Overridden in tests
var (
	loadConfig  = config.LoadProductionConfig
	openRuntime = func(ctx context.Context, cfg *config.ProductionConfig, log logrus.FieldLogger) (*runtime, error) {
		c, err := bootstrap.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &runtime{followUps: c.FollowUps, reports: c.Reports, close: c.Close}, nil
	}
	newTokenService = func(cfg config.JWTConfig) (services.TokenService, error) {
		return services.NewTokenService(cfg.AccessTokenTTL, cfg.Issuer, cfg.Audience, cfg.SecretKey)
	}
)

var rootCmd = &cobra.Command{
	Use:   "followupctl",
	Short: "Operate the home care follow-up jobs",
	Long: `followupctl runs the follow-up jobs outside the HTTP API.

Each job command prints its JSON summary to stdout. Configuration is read
from the environment and an optional .env file, like the API server.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg = loaded

	logger.Init(cfg.Logging, cfg.Deployment.Environment)
	// stdout carries the JSON summaries
	logger.Get().SetOutput(cmd.ErrOrStderr())
	log = logger.Get().WithField("component", "followupctl")
	return nil
}

func init() {
	exportCmd.Flags().String("from", "", "include history sent at or after this RFC3339 time")
	exportCmd.Flags().String("to", "", "include history sent at or before this RFC3339 time")
	exportCmd.Flags().String("out", "", "output file (defaults to the generated file name)")

	migrateCmd.Flags().String("dir", "", "migrations directory (defaults to DB_MIGRATIONS_DIR)")

	tokenCmd.Flags().String("subject", "", "operator the token is issued to")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(nurtureCmd, smsCmd, immediateCmd, exportCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
