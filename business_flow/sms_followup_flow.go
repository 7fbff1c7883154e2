package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/homecare-hr/app/services"
	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// SMSFollowUpFlow sends the 1-hour SMS template to fresh Google Ads leads
type SMSFollowUpFlow interface {
	Run(ctx context.Context) (*SMSFollowUpResult, error)
}

// SMSFollowUpResult tallies one SMS pass. TemplateConfigured is false when the
// pass was a no-op because no 1-hour SMS template is active.
type SMSFollowUpResult struct {
	TemplateConfigured bool
	Message            string
	LeadsChecked       int
	SMSSent            int
	Errors             int
}

// SMSFollowUpFlowImpl implements SMSFollowUpFlow
type SMSFollowUpFlowImpl struct {
	contactRepo  repository.ContactRepository
	signupRepo   repository.SignupRepository
	templateRepo repository.CampaignTemplateRepository
	sentSMSRepo  repository.SentSMSRepository
	tx           repository.Transactor
	notifier     services.NotificationService
	validator    *validator.Validate
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewSMSFollowUpFlow creates a new SMS follow-up flow
func NewSMSFollowUpFlow(
	contactRepo repository.ContactRepository,
	signupRepo repository.SignupRepository,
	templateRepo repository.CampaignTemplateRepository,
	sentSMSRepo repository.SentSMSRepository,
	tx repository.Transactor,
	notifier services.NotificationService,
	log logrus.FieldLogger,
) *SMSFollowUpFlowImpl {
	return &SMSFollowUpFlowImpl{
		contactRepo:  contactRepo,
		signupRepo:   signupRepo,
		templateRepo: templateRepo,
		sentSMSRepo:  sentSMSRepo,
		tx:           tx,
		notifier:     notifier,
		validator:    validator.New(),
		log:          log.WithField("job", models.JobSMSFollowUp),
		now:          utils.UTCNow,
	}
}

func (f *SMSFollowUpFlowImpl) Run(ctx context.Context) (*SMSFollowUpResult, error) {
	result := &SMSFollowUpResult{}
	now := f.now()

	tpl, err := f.template(ctx)
	if err != nil {
		return result, NewBusinessError("LIST_TEMPLATES_FAILED", "Failed to load SMS templates", err)
	}
	if tpl == nil {
		f.log.Info(utils.NoSMSTemplateMessage)
		result.Message = utils.NoSMSTemplateMessage
		return result, nil
	}
	result.TemplateConfigured = true
	templateID := tpl.TemplateID()

	status := utils.LeadStatusNew
	source := utils.GoogleAdsLeadSource
	lookback := now.Add(-utils.SMSFollowUpLookback)
	contacts, err := f.contactRepo.ByFilter(ctx, models.ContactFilter{
		Status:       &status,
		LeadSource:   &source,
		NotOptedOut:  true,
		CreatedAfter: &lookback,
	}, "id ASC", 0, 0)
	if err != nil {
		return result, NewBusinessError("LIST_CONTACTS_FAILED", "Failed to load new Google Ads leads", err)
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
			return result, NewBusinessError("RUN_CANCELLED", "SMS follow-up run cancelled", err)
		}
		result.LeadsChecked++

		log := f.log.WithFields(logrus.Fields{"contact_id": contact.ID, "template_id": templateID})
		if !utils.HasTimestamp(contact.CreatedAt) {
			log.Warn("Skipping lead without a valid creation timestamp")
			recordSkip(models.JobSMSFollowUp, skipMissingCreatedAt)
			continue
		}
		if now.Sub(*contact.CreatedAt) < utils.SMSFollowUpMinAge {
			recordSkip(models.JobSMSFollowUp, skipNotDue)
			continue
		}
		phone := strings.TrimSpace(contact.Phone)
		if phone == "" {
			log.Warn("Skipping lead without a phone number")
			recordSkip(models.JobSMSFollowUp, skipMissingPhone)
			continue
		}
		if contact.FollowUpHistory.Has(templateID) {
			recordSkip(models.JobSMSFollowUp, skipAlreadySent)
			continue
		}

		err := f.send(ctx, contact, tpl, phone, now)
		switch {
		case err == nil:
			result.SMSSent++
			recordSent(models.JobSMSFollowUp, string(models.TemplateTypeSMS))
		case errors.Is(err, errClaimLost):
			log.Info("SMS follow-up already recorded, skipping")
			recordSkip(models.JobSMSFollowUp, skipClaimLost)
		default:
			log.WithError(err).Error("Failed to send SMS follow-up")
			result.Errors++
			recordSendError(models.JobSMSFollowUp)
		}
	}

	f.log.WithFields(logrus.Fields{
		"leads_checked": result.LeadsChecked,
		"sms_sent":      result.SMSSent,
		"errors":        result.Errors,
	}).Info("SMS follow-up pass finished")

	return result, nil
}

// template returns the active 1-hour SMS template with the lowest id, or nil
func (f *SMSFollowUpFlowImpl) template(ctx context.Context) (*models.CampaignTemplate, error) {
	smsType := models.TemplateTypeSMS
	active := true
	hours := utils.SMSFollowUpIntervalHours
	templates, err := f.templateRepo.ByFilter(ctx, models.CampaignTemplateFilter{
		Type:          &smsType,
		IsActive:      &active,
		IntervalHours: &hours,
	}, "id ASC", 0, 0)
	if err != nil {
		return nil, err
	}

	usable := usableTemplates(f.validator, f.log, models.JobSMSFollowUp, templates, func(*models.CampaignTemplate) bool { return true })
	if len(usable) == 0 {
		return nil, nil
	}
	return usable[0], nil
}

// send claims the history entry, calls the provider and records the SMS in one transaction.
// A provider error rolls the claim back so the next run retries the lead.
func (f *SMSFollowUpFlowImpl) send(ctx context.Context, contact *models.Contact, tpl *models.CampaignTemplate, phone string, now time.Time) error {
	templateID := tpl.TemplateID()
	body := utils.Interpolate(tpl.Body, contactValues(contact))

	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		claimed, err := f.contactRepo.AppendFollowUp(txCtx, contact.ID, models.FollowUpEntry{TemplateID: templateID, SentAt: now})
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}

		messageID, err := f.notifier.SendSMS(txCtx, phone, body)
		if err != nil {
			return fmt.Errorf("sms provider: %w", err)
		}

		record := &models.SentSMS{
			ContactID:    contact.ID,
			TemplateUUID: templateID,
			PhoneNumber:  phone,
			Status:       models.SMSSendStatusAccepted,
			CreatedAt:    now,
		}
		if messageID != "" {
			record.ProviderMessageID = &messageID
		}
		return f.sentSMSRepo.Save(txCtx, record)
	})
	if err != nil {
		return err
	}

	contact.FollowUpHistory = append(contact.FollowUpHistory, models.FollowUpEntry{TemplateID: templateID, SentAt: now})
	return nil
}
