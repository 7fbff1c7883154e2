// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ContactRepository defines operations for leads/contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	// AppendFollowUp appends entry to the contact's history unless an entry for the same
	// template already exists. It reports whether the entry was appended.
	AppendFollowUp(ctx context.Context, contactID uint, entry models.FollowUpEntry) (bool, error)
	ListWithFollowUpHistory(ctx context.Context, limit, offset int) ([]*models.Contact, error)
}

// SignupRepository defines operations for signups
type SignupRepository interface {
	Repository[models.Signup, models.SignupFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Signup, error)
	InitialContactIDs(ctx context.Context) ([]uint, error)
	// MarkReminderSent flips signature_reminder_sent to true if it is not already true.
	// It reports whether this call performed the flip.
	MarkReminderSent(ctx context.Context, signupID uint) (bool, error)
}

// CampaignTemplateRepository defines operations for campaign templates
type CampaignTemplateRepository interface {
	Repository[models.CampaignTemplate, models.CampaignTemplateFilter]
	ListActiveByType(ctx context.Context, templateType models.TemplateType) ([]*models.CampaignTemplate, error)
}

// OutboundMailRepository defines operations for the outbound mail queue
type OutboundMailRepository interface {
	Repository[models.OutboundMail, models.OutboundMailFilter]
	// ClaimPending locks up to limit pending mails for the calling transaction
	ClaimPending(ctx context.Context, limit int) ([]*models.OutboundMail, error)
	MarkSent(ctx context.Context, id uint, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string, maxAttempts int) error
}

// SentSMSRepository defines operations for sent SMS records
type SentSMSRepository interface {
	Repository[models.SentSMS, models.SentSMSFilter]
	ListSentBetween(ctx context.Context, from, to *time.Time, limit int) ([]*models.SentSMS, error)
}

// JobRunRepository defines operations for job run records
type JobRunRepository interface {
	Repository[models.JobRun, models.JobRunFilter]
	Finish(ctx context.Context, run *models.JobRun) error
}
