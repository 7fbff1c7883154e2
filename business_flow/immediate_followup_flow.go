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
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ImmediateFollowUpFlow sends the interval-0 templates whose statuses match a contact
type ImmediateFollowUpFlow interface {
	Trigger(ctx context.Context, contactUUID uuid.UUID) (*ImmediateFollowUpResult, error)
}

// ImmediateFollowUpResult reports one immediate trigger
type ImmediateFollowUpResult struct {
	ContactUUID      uuid.UUID
	TemplatesMatched int
	EmailsSent       int
	Errors           int
	SkippedReason    string
}

// ImmediateFollowUpFlowImpl implements ImmediateFollowUpFlow
type ImmediateFollowUpFlowImpl struct {
	contactRepo  repository.ContactRepository
	templateRepo repository.CampaignTemplateRepository
	tx           repository.Transactor
	mails        *mailQueue
	validator    *validator.Validate
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewImmediateFollowUpFlow creates a new immediate follow-up flow
func NewImmediateFollowUpFlow(
	contactRepo repository.ContactRepository,
	templateRepo repository.CampaignTemplateRepository,
	mailRepo repository.OutboundMailRepository,
	tx repository.Transactor,
	publisher services.MailPublisher,
	log logrus.FieldLogger,
) *ImmediateFollowUpFlowImpl {
	log = log.WithField("job", models.JobImmediateFollowUp)
	return &ImmediateFollowUpFlowImpl{
		contactRepo:  contactRepo,
		templateRepo: templateRepo,
		tx:           tx,
		mails:        newMailQueue(mailRepo, publisher, log),
		validator:    validator.New(),
		log:          log,
		now:          utils.UTCNow,
	}
}

func (f *ImmediateFollowUpFlowImpl) Trigger(ctx context.Context, contactUUID uuid.UUID) (*ImmediateFollowUpResult, error) {
	result := &ImmediateFollowUpResult{ContactUUID: contactUUID}
	now := f.now()

	contact, err := f.contactRepo.ByUUID(ctx, contactUUID)
	if err != nil {
		return result, NewBusinessError("CONTACT_LOOKUP_FAILED", "Failed to load contact", err)
	}
	if contact == nil {
		return result, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}

	log := f.log.WithField("contact_id", contact.ID)
	if utils.IsFalse(contact.SendFollowUpCampaigns) {
		result.SkippedReason = skipOptedOut
		recordSkip(models.JobImmediateFollowUp, skipOptedOut)
		return result, nil
	}
	email := strings.TrimSpace(contact.Email)
	if email == "" {
		log.Warn("Skipping immediate follow-up for contact without an email address")
		result.SkippedReason = skipMissingEmail
		recordSkip(models.JobImmediateFollowUp, skipMissingEmail)
		return result, nil
	}

	all, err := f.templateRepo.ListActiveByType(ctx, models.TemplateTypeEmail)
	if err != nil {
		return result, NewBusinessError("LIST_TEMPLATES_FAILED", "Failed to load email templates", err)
	}
	templates := usableTemplates(f.validator, f.log, models.JobImmediateFollowUp, all, func(t *models.CampaignTemplate) bool {
		return t.FiresImmediatelyFor(contact.Status)
	})
	result.TemplatesMatched = len(templates)

	values := contactValues(contact)
	for _, tpl := range templates {
		templateID := tpl.TemplateID()
		if contact.FollowUpHistory.Has(templateID) {
			recordSkip(models.JobImmediateFollowUp, skipAlreadySent)
			continue
		}

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
				to:           email,
				subject:      utils.Interpolate(tpl.Subject, values),
				html:         utils.Interpolate(tpl.Body, values),
				source:       models.OutboundMailSourceImmediate,
				contactID:    &contact.ID,
				templateUUID: &templateID,
			}, now)
			return err
		})

		switch {
		case err == nil:
			result.EmailsSent++
			recordSent(models.JobImmediateFollowUp, string(models.TemplateTypeEmail))
			contact.FollowUpHistory = append(contact.FollowUpHistory, models.FollowUpEntry{TemplateID: templateID, SentAt: now})
			f.mails.announce(ctx, mail)
		case errors.Is(err, errClaimLost):
			recordSkip(models.JobImmediateFollowUp, skipClaimLost)
		default:
			log.WithError(err).WithField("template_id", templateID).Error("Failed to send immediate follow-up")
			result.Errors++
			recordSendError(models.JobImmediateFollowUp)
		}
	}

	return result, nil
}
