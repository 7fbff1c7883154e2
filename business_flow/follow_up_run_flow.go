package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/homecare-hr/app/services"
	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FollowUpRunFlow wraps the runners with the run lock, job_runs bookkeeping and metrics
type FollowUpRunFlow interface {
	RunNurture(ctx context.Context, trigger string) (*NurtureRunSummary, error)
	RunSMSFollowUp(ctx context.Context, trigger string) (*SMSFollowUpResult, error)
	TriggerImmediate(ctx context.Context, contactUUID uuid.UUID, trigger string) (*ImmediateFollowUpResult, error)
}

// NurtureRunSummary combines the lead nurture and signature reminder passes.
// On failure it carries whatever was counted before the failure.
type NurtureRunSummary struct {
	NewLeadsProcessed          int
	NewLeadEmailsSent          int
	PendingSignaturesProcessed int
	SignatureRemindersSent     int
	Errors                     int
}

// Counts returns the summary as job_runs counts
func (s *NurtureRunSummary) Counts() models.JobCounts {
	return models.JobCounts{
		"newLeadsProcessed":          s.NewLeadsProcessed,
		"newLeadEmailsSent":          s.NewLeadEmailsSent,
		"pendingSignaturesProcessed": s.PendingSignaturesProcessed,
		"signatureRemindersSent":     s.SignatureRemindersSent,
		"errors":                     s.Errors,
	}
}

// FollowUpRunFlowImpl implements FollowUpRunFlow
type FollowUpRunFlowImpl struct {
	nurture    LeadNurtureFlow
	reminders  SignatureReminderFlow
	sms        SMSFollowUpFlow
	immediate  ImmediateFollowUpFlow
	jobRunRepo repository.JobRunRepository
	lock       services.RunLock
	lockTTL    time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewFollowUpRunFlow creates a new follow-up run flow. A nil lock disables run locking.
func NewFollowUpRunFlow(
	nurture LeadNurtureFlow,
	reminders SignatureReminderFlow,
	sms SMSFollowUpFlow,
	immediate ImmediateFollowUpFlow,
	jobRunRepo repository.JobRunRepository,
	lock services.RunLock,
	lockTTL time.Duration,
	log logrus.FieldLogger,
) *FollowUpRunFlowImpl {
	if lock == nil {
		lock = services.NoopRunLock{}
	}
	return &FollowUpRunFlowImpl{
		nurture:    nurture,
		reminders:  reminders,
		sms:        sms,
		immediate:  immediate,
		jobRunRepo: jobRunRepo,
		lock:       lock,
		lockTTL:    lockTTL,
		log:        log,
		now:        utils.UTCNow,
	}
}

func (f *FollowUpRunFlowImpl) RunNurture(ctx context.Context, trigger string) (*NurtureRunSummary, error) {
	summary := &NurtureRunSummary{}

	err := f.execute(ctx, models.JobNurture, trigger, true, func(ctx context.Context) (models.JobCounts, error) {
		leads, err := f.nurture.Run(ctx)
		if leads != nil {
			summary.NewLeadsProcessed = leads.ContactsProcessed
			summary.NewLeadEmailsSent = leads.EmailsSent
			summary.Errors += leads.Errors
		}
		if err != nil {
			return summary.Counts(), err
		}

		reminders, err := f.reminders.Run(ctx)
		if reminders != nil {
			summary.PendingSignaturesProcessed = reminders.PendingProcessed
			summary.SignatureRemindersSent = reminders.RemindersSent
			summary.Errors += reminders.Errors
		}
		return summary.Counts(), err
	})

	return summary, err
}

func (f *FollowUpRunFlowImpl) RunSMSFollowUp(ctx context.Context, trigger string) (*SMSFollowUpResult, error) {
	result := &SMSFollowUpResult{}

	err := f.execute(ctx, models.JobSMSFollowUp, trigger, true, func(ctx context.Context) (models.JobCounts, error) {
		res, err := f.sms.Run(ctx)
		if res != nil {
			result = res
		}
		return models.JobCounts{
			"leadsChecked": result.LeadsChecked,
			"smsSent":      result.SMSSent,
			"errors":       result.Errors,
		}, err
	})

	return result, err
}

func (f *FollowUpRunFlowImpl) TriggerImmediate(ctx context.Context, contactUUID uuid.UUID, trigger string) (*ImmediateFollowUpResult, error) {
	result := &ImmediateFollowUpResult{ContactUUID: contactUUID}

	// Immediate sends are per contact and rely on the history claim alone
	err := f.execute(ctx, models.JobImmediateFollowUp, trigger, false, func(ctx context.Context) (models.JobCounts, error) {
		res, err := f.immediate.Trigger(ctx, contactUUID)
		if res != nil {
			result = res
		}
		return models.JobCounts{
			"templatesMatched": result.TemplatesMatched,
			"emailsSent":       result.EmailsSent,
			"errors":           result.Errors,
		}, err
	})

	return result, err
}

// execute runs fn under the job's run lock and records the run in job_runs.
// Bookkeeping failures are logged and never fail the run.
func (f *FollowUpRunFlowImpl) execute(ctx context.Context, job, trigger string, locked bool, fn func(context.Context) (models.JobCounts, error)) error {
	log := f.log.WithFields(logrus.Fields{"job": job, "trigger": trigger})
	if id := requestIDFrom(ctx); id != nil {
		log = log.WithField("request_id", *id)
	}

	if locked {
		release, acquired, err := f.lock.TryAcquire(ctx, job, f.lockTTL)
		switch {
		case err != nil:
			log.WithError(err).Warn("Run lock unavailable, continuing without it")
		case !acquired:
			log.Info("Another run of this job is in progress")
			return NewBusinessError("RUN_IN_PROGRESS", "A run of this job is already in progress", ErrRunInProgress)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.WithError(err).Warn("Failed to release run lock")
				}
			}()
		}
	}

	started := f.now()
	run := &models.JobRun{
		Job:       job,
		Trigger:   trigger,
		RequestID: requestIDFrom(ctx),
		StartedAt: started,
	}
	if err := f.jobRunRepo.Save(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to record job run start")
		run = nil
	}

	counts, runErr := fn(ctx)

	finished := f.now()
	observeRun(job, finished.Sub(started))

	entry := log.WithField("duration", finished.Sub(started).String())
	if runErr != nil {
		entry.WithError(runErr).Error("Follow-up run failed")
	} else {
		entry.Info("Follow-up run completed")
	}

	if run == nil {
		return runErr
	}
	run.FinishedAt = &finished
	run.Counts = counts
	run.Success = utils.ToPtr(runErr == nil)
	if runErr != nil {
		run.ErrorMessage = utils.ToPtr(runErr.Error())
	}
	if err := f.jobRunRepo.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Warn("Failed to record job run result")
	}

	return runErr
}
