// Package scheduler runs the follow-up jobs and the mail dispatcher inside the API process
package scheduler

import (
	"context"
	"fmt"
	"time"

	businessflow "github.com/amirphl/homecare-hr/business_flow"
	"github.com/amirphl/homecare-hr/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// FollowUpRunner is the part of FollowUpRunFlow the scheduler triggers
type FollowUpRunner interface {
	RunNurture(ctx context.Context, trigger string) (*businessflow.NurtureRunSummary, error)
	RunSMSFollowUp(ctx context.Context, trigger string) (*businessflow.SMSFollowUpResult, error)
}

// FollowUpScheduler triggers the nurture and SMS runs on cron specs
type FollowUpScheduler struct {
	cronEngine  *cron.Cron
	runner      FollowUpRunner
	log         logrus.FieldLogger
	nurtureSpec string
	smsSpec     string
	runTimeout  time.Duration
}

func NewFollowUpScheduler(
	runner FollowUpRunner,
	log logrus.FieldLogger,
	nurtureSpec string, // e.g. "0 9 * * *"
	smsSpec string, // e.g. "*/15 * * * *"
	location *time.Location,
	runTimeout time.Duration,
) *FollowUpScheduler {
	if location == nil {
		location = time.UTC
	}
	if runTimeout <= 0 {
		runTimeout = 4 * time.Minute
	}

	cronLog := cronLogger{log: log.WithField("component", "cron")}
	return &FollowUpScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runner:      runner,
		log:         log,
		nurtureSpec: nurtureSpec,
		smsSpec:     smsSpec,
		runTimeout:  runTimeout,
	}
}

// Start registers both jobs and starts the cron engine
func (s *FollowUpScheduler) Start() error {
	s.log.Info("Starting follow-up scheduler")

	if _, err := s.cronEngine.AddFunc(s.nurtureSpec, s.runNurture); err != nil {
		return fmt.Errorf("add nurture job %q: %w", s.nurtureSpec, err)
	}
	if _, err := s.cronEngine.AddFunc(s.smsSpec, s.runSMSFollowUp); err != nil {
		return fmt.Errorf("add sms follow-up job %q: %w", s.smsSpec, err)
	}

	s.cronEngine.Start()
	s.log.WithFields(logrus.Fields{
		"nurture_spec": s.nurtureSpec,
		"sms_spec":     s.smsSpec,
	}).Info("Follow-up scheduler started")
	return nil
}

// Stop stops the engine and waits for running jobs
func (s *FollowUpScheduler) Stop() {
	s.log.Info("Stopping follow-up scheduler")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.log.Info("Follow-up scheduler stopped")
}

func (s *FollowUpScheduler) runNurture() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	summary, err := s.runner.RunNurture(ctx, models.JobTriggerCron)
	if err != nil {
		s.log.WithError(err).WithField("job", models.JobNurture).Error("Scheduled nurture run failed")
		return
	}
	s.log.WithField("job", models.JobNurture).WithFields(countFields(summary.Counts())).Info("Scheduled nurture run finished")
}

func (s *FollowUpScheduler) runSMSFollowUp() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	result, err := s.runner.RunSMSFollowUp(ctx, models.JobTriggerCron)
	if err != nil {
		s.log.WithError(err).WithField("job", models.JobSMSFollowUp).Error("Scheduled SMS follow-up run failed")
		return
	}
	if !result.TemplateConfigured {
		s.log.WithField("job", models.JobSMSFollowUp).Info(result.Message)
		return
	}
	s.log.WithFields(logrus.Fields{
		"job":           models.JobSMSFollowUp,
		"leads_checked": result.LeadsChecked,
		"sms_sent":      result.SMSSent,
		"errors":        result.Errors,
	}).Info("Scheduled SMS follow-up run finished")
}

func countFields(counts models.JobCounts) logrus.Fields {
	fields := make(logrus.Fields, len(counts))
	for k, v := range counts {
		fields[k] = v
	}
	return fields
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(keysAndValues []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
