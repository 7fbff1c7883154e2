package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/amirphl/homecare-hr/app/dto"
	businessflow "github.com/amirphl/homecare-hr/business_flow"
	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var nurtureCmd = &cobra.Command{
	Use:   "nurture",
	Short: "Run lead nurture and signature reminders",
	Args:  cobra.NoArgs,
	RunE:  runNurture,
}

var smsCmd = &cobra.Command{
	Use:   "sms",
	Short: "Run the SMS follow-up for new Google Ads leads",
	Args:  cobra.NoArgs,
	RunE:  runSMS,
}

var immediateCmd = &cobra.Command{
	Use:   "immediate <contact-uuid>",
	Short: "Send the immediate follow-up emails of one contact",
	Args:  cobra.ExactArgs(1),
	RunE:  runImmediate,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export follow-up history to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator token for the reports API",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

// withRuntime opens the application, bounded by the run timeout, and closes it after fn
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.FollowUp.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.FollowUp.RunTimeout)
		defer cancel()
	}

	rt, err := openRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			log.WithError(err).Warn("Failed to release resources")
		}
	}()

	return fn(ctx, rt)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runNurture(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		summary, runErr := rt.followUps.RunNurture(ctx, models.JobTriggerCLI)
		if summary == nil {
			summary = &businessflow.NurtureRunSummary{}
		}
		resp := dto.NurtureRunResponse{
			Success:                    runErr == nil,
			NewLeadsProcessed:          summary.NewLeadsProcessed,
			NewLeadEmailsSent:          summary.NewLeadEmailsSent,
			PendingSignaturesProcessed: summary.PendingSignaturesProcessed,
			SignatureRemindersSent:     summary.SignatureRemindersSent,
			Errors:                     summary.Errors,
		}
		if runErr != nil {
			resp.Error = runErr.Error()
		}
		if err := printJSON(cmd, resp); err != nil {
			return err
		}
		return runErr
	})
}

func runSMS(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		result, runErr := rt.followUps.RunSMSFollowUp(ctx, models.JobTriggerCLI)
		if runErr != nil {
			_ = printJSON(cmd, dto.SMSRunResponse{Success: false, Error: runErr.Error()})
			return runErr
		}
		if !result.TemplateConfigured {
			return printJSON(cmd, dto.SMSRunResponse{Success: true, Message: result.Message})
		}
		return printJSON(cmd, dto.SMSRunResponse{
			Success:      true,
			LeadsChecked: &result.LeadsChecked,
			SMSSent:      &result.SMSSent,
			Errors:       &result.Errors,
		})
	})
}

func runImmediate(cmd *cobra.Command, args []string) error {
	contactUUID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid contact uuid %q: %w", args[0], err)
	}

	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		result, err := rt.followUps.TriggerImmediate(ctx, contactUUID, models.JobTriggerCLI)
		if err != nil {
			return err
		}
		return printJSON(cmd, dto.ImmediateFollowUpResponse{
			ContactUUID:      result.ContactUUID.String(),
			TemplatesMatched: result.TemplatesMatched,
			EmailsSent:       result.EmailsSent,
			Errors:           result.Errors,
			SkippedReason:    result.SkippedReason,
		})
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	out, _ := cmd.Flags().GetString("out")

	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		filename, data, err := rt.reports.ExportFollowUpHistory(ctx, dto.ExportFollowUpHistoryRequest{From: from, To: to})
		if err != nil {
			return err
		}
		if out == "" {
			out = filename
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		return printJSON(cmd, map[string]any{"file": out, "bytes": len(data)})
	})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Database.MigrationsDir
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	applied, err := repository.RunMigrations(ctx, cfg.Database.DSN(), dir, log)
	if err != nil {
		return err
	}
	if applied == nil {
		applied = []string{}
	}
	return printJSON(cmd, map[string]any{"applied": applied})
}

func runToken(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")

	tokens, err := newTokenService(cfg.JWT)
	if err != nil {
		return err
	}
	token, err := tokens.GenerateOperatorToken(subject)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]any{
		"subject":    subject,
		"token":      token,
		"expires_in": int64(cfg.JWT.AccessTokenTTL.Seconds()),
	})
}
