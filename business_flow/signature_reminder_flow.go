package businessflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/homecare-hr/app/services"
	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/sirupsen/logrus"
)

// Reminder content. Tokens are filled by utils.Interpolate.
const (
	signatureReminderSubject = "Reminder: your home care agreement is waiting for your signature"
	signatureReminderBody    = `<p>Hi {{clientName}},</p>
<p>Your home care service agreement is ready and waiting for your signature.</p>
<p><a href="{{signupLink}}">Log in to review and sign your documents</a></p>
<p>If you have any questions, simply reply to this email and our team will help.</p>
<p>Thank you,<br>The Care Team</p>`
)

// SignatureReminderFlow reminds clients idle in the signing pipeline, once
type SignatureReminderFlow interface {
	Run(ctx context.Context) (*SignatureReminderResult, error)
}

// SignatureReminderResult tallies one reminder pass
type SignatureReminderResult struct {
	PendingProcessed int
	RemindersSent    int
	Errors           int
}

// SignatureReminderFlowImpl implements SignatureReminderFlow
type SignatureReminderFlowImpl struct {
	signupRepo       repository.SignupRepository
	tx               repository.Transactor
	mails            *mailQueue
	loginURL         string
	signupPathFormat string
	log              logrus.FieldLogger
	now              func() time.Time
}

// NewSignatureReminderFlow creates a new signature reminder flow
func NewSignatureReminderFlow(
	signupRepo repository.SignupRepository,
	mailRepo repository.OutboundMailRepository,
	tx repository.Transactor,
	publisher services.MailPublisher,
	loginURL, signupPathFormat string,
	log logrus.FieldLogger,
) *SignatureReminderFlowImpl {
	log = log.WithField("job", models.JobSignatureReminder)
	return &SignatureReminderFlowImpl{
		signupRepo:       signupRepo,
		tx:               tx,
		mails:            newMailQueue(mailRepo, publisher, log),
		loginURL:         loginURL,
		signupPathFormat: signupPathFormat,
		log:              log,
		now:              utils.UTCNow,
	}
}

func (f *SignatureReminderFlowImpl) Run(ctx context.Context) (*SignatureReminderResult, error) {
	result := &SignatureReminderResult{}
	now := f.now()
	cutoff := now.Add(-utils.SignatureReminderIdle)

	status := models.SignupStatusPendingClientSignatures
	signups, err := f.signupRepo.ByFilter(ctx, models.SignupFilter{
		Status:          &status,
		ReminderNotSent: true,
		UpdatedBefore:   &cutoff,
	}, "id ASC", 0, 0)
	if err != nil {
		return result, NewBusinessError("LIST_SIGNUPS_FAILED", "Failed to load pending signups", err)
	}

	for _, signup := range signups {
		if utils.IsTrue(signup.SignatureReminderSent) || !signup.LastUpdatedAt.Before(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, NewBusinessError("RUN_CANCELLED", "Signature reminder run cancelled", err)
		}
		result.PendingProcessed++

		log := f.log.WithField("signup_id", signup.ID)
		email := strings.TrimSpace(signup.FormData.ClientEmail)
		if email == "" {
			log.Warn("Skipping signup without a client email")
			recordSkip(models.JobSignatureReminder, skipMissingEmail)
			continue
		}

		err := f.remind(ctx, signup, email, now)
		switch {
		case err == nil:
			result.RemindersSent++
			recordSent(models.JobSignatureReminder, string(models.TemplateTypeEmail))
		case errors.Is(err, errClaimLost):
			log.Info("Reminder already sent by another run, skipping")
			recordSkip(models.JobSignatureReminder, skipClaimLost)
		default:
			log.WithError(err).Error("Failed to send signature reminder")
			result.Errors++
			recordSendError(models.JobSignatureReminder)
		}
	}

	f.log.WithFields(logrus.Fields{
		"pending_processed": result.PendingProcessed,
		"reminders_sent":    result.RemindersSent,
		"errors":            result.Errors,
	}).Info("Signature reminder pass finished")

	return result, nil
}

func (f *SignatureReminderFlowImpl) remind(ctx context.Context, signup *models.Signup, email string, now time.Time) error {
	link, err := BuildSignupLink(f.loginURL, f.signupPathFormat, signup.UUID)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(signup.FormData.ClientName)
	if name == "" {
		name = utils.DefaultClientName
	}
	values := map[string]string{
		"clientName":      name,
		"clientFirstName": utils.FirstName(name),
		"clientEmail":     email,
		"clientPhone":     signup.FormData.ClientPhone,
		"signupLink":      link,
	}

	var mail *models.OutboundMail
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		flipped, err := f.signupRepo.MarkReminderSent(txCtx, signup.ID)
		if err != nil {
			return err
		}
		if !flipped {
			return errClaimLost
		}

		mail, err = f.mails.enqueue(txCtx, mailSpec{
			to:       email,
			subject:  utils.Interpolate(signatureReminderSubject, values),
			html:     utils.Interpolate(signatureReminderBody, values),
			source:   models.OutboundMailSourceSignatureReminder,
			signupID: &signup.ID,
		}, now)
		return err
	})
	if err != nil {
		return err
	}

	signup.SignatureReminderSent = utils.ToPtr(true)
	f.mails.announce(ctx, mail)
	return nil
}
