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
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// LeadNurtureFlow sends day-interval email templates to new leads
type LeadNurtureFlow interface {
	Run(ctx context.Context) (*LeadNurtureResult, error)
}

// LeadNurtureResult tallies one lead nurture pass
type LeadNurtureResult struct {
	ContactsProcessed int
	EmailsSent        int
	Errors            int
}

// LeadNurtureFlowImpl implements LeadNurtureFlow
type LeadNurtureFlowImpl struct {
	contactRepo  repository.ContactRepository
	signupRepo   repository.SignupRepository
	templateRepo repository.CampaignTemplateRepository
	tx           repository.Transactor
	mails        *mailQueue
	validator    *validator.Validate
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewLeadNurtureFlow creates a new lead nurture flow
func NewLeadNurtureFlow(
	contactRepo repository.ContactRepository,
	signupRepo repository.SignupRepository,
	templateRepo repository.CampaignTemplateRepository,
	mailRepo repository.OutboundMailRepository,
	tx repository.Transactor,
	publisher services.MailPublisher,
	log logrus.FieldLogger,
) *LeadNurtureFlowImpl {
	log = log.WithField("job", models.JobLeadNurture)
	return &LeadNurtureFlowImpl{
		contactRepo:  contactRepo,
		signupRepo:   signupRepo,
		templateRepo: templateRepo,
		tx:           tx,
		mails:        newMailQueue(mailRepo, publisher, log),
		validator:    validator.New(),
		log:          log,
		now:          utils.UTCNow,
	}
}

func (f *LeadNurtureFlowImpl) Run(ctx context.Context) (*LeadNurtureResult, error) {
	result := &LeadNurtureResult{}
	now := f.now()

	allTemplates, err := f.templateRepo.ListActiveByType(ctx, models.TemplateTypeEmail)
	if err != nil {
		return result, NewBusinessError("LIST_TEMPLATES_FAILED", "Failed to load email templates", err)
	}
	// Interval 0 templates belong to the immediate-send path
	templates := usableTemplates(f.validator, f.log, models.JobLeadNurture, allTemplates, func(t *models.CampaignTemplate) bool {
		return t.Interval() > 0
	})

	status := utils.LeadStatusNew
	contacts, err := f.contactRepo.ByFilter(ctx, models.ContactFilter{Status: &status, NotOptedOut: true}, "id ASC", 0, 0)
	if err != nil {
		return result, NewBusinessError("LIST_CONTACTS_FAILED", "Failed to load new contacts", err)
	}

	progressed, err := progressedSet(ctx, f.signupRepo)
	if err != nil {
		return result, NewBusinessError("LIST_SIGNUPS_FAILED", "Failed to load signup contact ids", err)
	}

	for _, contact := range contacts {
		if _, ok := progressed[contact.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, NewBusinessError("RUN_CANCELLED", "Lead nurture run cancelled", err)
		}
		result.ContactsProcessed++

		log := f.log.WithField("contact_id", contact.ID)
		if !utils.HasTimestamp(contact.CreatedAt) {
			log.Warn("Skipping contact without a valid creation timestamp")
			recordSkip(models.JobLeadNurture, skipMissingCreatedAt)
			continue
		}
		if strings.TrimSpace(contact.Email) == "" {
			log.Warn("Skipping contact without an email address")
			recordSkip(models.JobLeadNurture, skipMissingEmail)
			continue
		}

		for _, tpl := range templates {
			templateID := tpl.TemplateID()
			if contact.FollowUpHistory.Has(templateID) {
				continue
			}
			if !utils.AtOrBefore(*contact.CreatedAt, now.Add(-tpl.Interval())) {
				continue
			}

			err := f.send(ctx, contact, tpl, now)
			switch {
			case err == nil:
				result.EmailsSent++
				recordSent(models.JobLeadNurture, string(models.TemplateTypeEmail))
			case errors.Is(err, errClaimLost):
				log.WithField("template_id", templateID).Info("Follow-up already recorded, skipping")
				recordSkip(models.JobLeadNurture, skipClaimLost)
			default:
				log.WithError(err).WithField("template_id", templateID).Error("Failed to send nurture email")
				result.Errors++
				recordSendError(models.JobLeadNurture)
			}
		}
	}

	f.log.WithFields(logrus.Fields{
		"contacts_processed": result.ContactsProcessed,
		"emails_sent":        result.EmailsSent,
		"errors":             result.Errors,
	}).Info("Lead nurture pass finished")

	return result, nil
}

// send records the history entry and queues the email in one transaction
func (f *LeadNurtureFlowImpl) send(ctx context.Context, contact *models.Contact, tpl *models.CampaignTemplate, now time.Time) error {
	values := contactValues(contact)
	templateID := tpl.TemplateID()

	var mail *models.OutboundMail
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		claimed, err := f.contactRepo.AppendFollowUp(txCtx, contact.ID, models.FollowUpEntry{TemplateID: templateID, SentAt: now})
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}

		mail, err = f.mails.enqueue(txCtx, mailSpec{
			to:           strings.TrimSpace(contact.Email),
			subject:      utils.Interpolate(tpl.Subject, values),
			html:         utils.Interpolate(tpl.Body, values),
			source:       models.OutboundMailSourceLeadNurture,
			contactID:    &contact.ID,
			templateUUID: &templateID,
		}, now)
		return err
	})
	if err != nil {
		return err
	}

	contact.FollowUpHistory = append(contact.FollowUpHistory, models.FollowUpEntry{TemplateID: templateID, SentAt: now})
	f.mails.announce(ctx, mail)
	return nil
}
