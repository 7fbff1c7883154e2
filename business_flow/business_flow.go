// Package businessflow contains the follow-up campaign use cases
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
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

const RequestIDKey = "X-Request-ID"

// errClaimLost marks a send skipped because another run recorded it first
var errClaimLost = errors.New("follow-up already recorded by another run")

// Skip reasons reported on followup_records_skipped_total
const (
	skipMissingCreatedAt = "missing_created_at"
	skipMissingEmail     = "missing_email"
	skipMissingPhone     = "missing_phone"
	skipAlreadySent      = "already_sent"
	skipNotDue           = "not_due"
	skipClaimLost        = "claim_lost"
	skipInvalidTemplate  = "invalid_template"
	skipOptedOut         = "opted_out"
)

// contactValues returns the interpolation values of a contact
func contactValues(c *models.Contact) map[string]string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = utils.DefaultClientName
	}
	return map[string]string{
		"clientName":      name,
		"clientFirstName": utils.FirstName(name),
		"clientEmail":     c.Email,
		"clientPhone":     c.Phone,
		"leadSource":      c.LeadSource,
	}
}

// requestIDFrom returns the request id carried by ctx, if any
func requestIDFrom(ctx context.Context) *string {
	if v, ok := ctx.Value(utils.RequestIDKey).(string); ok && v != "" {
		return &v
	}
	return nil
}

// progressedSet loads the ids of contacts that already have a signup
func progressedSet(ctx context.Context, signupRepo repository.SignupRepository) (map[uint]struct{}, error) {
	ids, err := signupRepo.InitialContactIDs(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// mailQueue writes outbound mail rows and announces them once committed
type mailQueue struct {
	mailRepo  repository.OutboundMailRepository
	publisher services.MailPublisher
	log       logrus.FieldLogger
}

// newMailQueue requires a non-nil publisher; services.NoopMailPublisher disables announcements.
func newMailQueue(mailRepo repository.OutboundMailRepository, publisher services.MailPublisher, log logrus.FieldLogger) *mailQueue {
	return &mailQueue{mailRepo: mailRepo, publisher: publisher, log: log}
}

type mailSpec struct {
	to           string
	subject      string
	html         string
	source       models.OutboundMailSource
	contactID    *uint
	signupID     *uint
	templateUUID *string
}

// enqueue inserts the mail row. It must run inside the caller's transaction.
func (q *mailQueue) enqueue(ctx context.Context, spec mailSpec, now time.Time) (*models.OutboundMail, error) {
	mail := &models.OutboundMail{
		UUID:         uuid.New(),
		To:           []string{spec.to},
		Subject:      spec.subject,
		HTML:         spec.html,
		Source:       spec.source,
		ContactID:    spec.contactID,
		SignupID:     spec.signupID,
		TemplateUUID: spec.templateUUID,
		Status:       models.OutboundMailStatusPending,
		CreatedAt:    now,
	}
	if err := q.mailRepo.Save(ctx, mail); err != nil {
		return nil, fmt.Errorf("failed to enqueue mail: %w", err)
	}
	return mail, nil
}

// announce publishes a committed mail. Failures are logged only.
func (q *mailQueue) announce(ctx context.Context, mail *models.OutboundMail) {
	if err := q.publisher.PublishMail(ctx, mail); err != nil {
		q.log.WithError(err).WithField("mail_uuid", mail.UUID.String()).Warn("Failed to publish queued mail")
	}
}

// usableTemplates validates templates and keeps those accepted by keep
func usableTemplates(v *validator.Validate, log logrus.FieldLogger, job string, templates []*models.CampaignTemplate, keep func(*models.CampaignTemplate) bool) []*models.CampaignTemplate {
	out := make([]*models.CampaignTemplate, 0, len(templates))
	for _, t := range templates {
		if err := v.Struct(t); err != nil {
			log.WithError(err).WithField("template_id", t.TemplateID()).Warn("Skipping invalid template")
			recordSkip(job, skipInvalidTemplate)
			continue
		}
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// BuildSignupLink returns the login page URL that redirects to the signup
func BuildSignupLink(loginURL, signupPathFormat string, signupUUID uuid.UUID) (string, error) {
	u, err := url.Parse(loginURL)
	if err != nil {
		return "", fmt.Errorf("invalid login url: %w", err)
	}
	q := u.Query()
	q.Set("redirect", fmt.Sprintf(signupPathFormat, signupUUID.String()))
	q.Set("signupId", signupUUID.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
