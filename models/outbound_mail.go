package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OutboundMailStatus enumerates delivery states of a queued mail
type OutboundMailStatus string

const (
	OutboundMailStatusPending OutboundMailStatus = "pending"
	OutboundMailStatusSent    OutboundMailStatus = "sent"
	OutboundMailStatusFailed  OutboundMailStatus = "failed"
)

// OutboundMailSource names the job that queued a mail
type OutboundMailSource string

const (
	OutboundMailSourceLeadNurture       OutboundMailSource = "lead_nurture"
	OutboundMailSourceSignatureReminder OutboundMailSource = "signature_reminder"
	OutboundMailSourceImmediate         OutboundMailSource = "immediate"
)

// OutboundMail is a queued email consumed by the mail sender
type OutboundMail struct {
	ID      uint               `gorm:"primaryKey" json:"id"`
	UUID    uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uk_outbound_mails_uuid" json:"uuid"`
	To      pq.StringArray     `gorm:"type:text[];not null" json:"to"`
	Subject string             `gorm:"size:512;not null" json:"subject"`
	HTML    string             `gorm:"column:html;type:text;not null" json:"html"`
	Source  OutboundMailSource `gorm:"size:32;not null;index:idx_outbound_mails_source" json:"source"`

	ContactID    *uint   `gorm:"index:idx_outbound_mails_contact_id" json:"contact_id,omitempty"`
	SignupID     *uint   `gorm:"index:idx_outbound_mails_signup_id" json:"signup_id,omitempty"`
	TemplateUUID *string `gorm:"size:64" json:"template_uuid,omitempty"`

	Status    OutboundMailStatus `gorm:"size:16;not null;default:'pending';index:idx_outbound_mails_status" json:"status"`
	Attempts  int                `gorm:"not null;default:0" json:"attempts"`
	LastError *string            `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_outbound_mails_created_at" json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

func (OutboundMail) TableName() string { return "outbound_mails" }

// MailMessage is the message part of the queue document
type MailMessage struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// MailDocument is the wire shape consumed by the external mail sender
type MailDocument struct {
	To      []string    `json:"to"`
	Message MailMessage `json:"message"`
}

// Document renders the queue document of the mail
func (m *OutboundMail) Document() MailDocument {
	return MailDocument{
		To:      []string(m.To),
		Message: MailMessage{Subject: m.Subject, HTML: m.HTML},
	}
}

// OutboundMailFilter provides filter fields for repository queries
type OutboundMailFilter struct {
	ID            *uint
	Status        *OutboundMailStatus
	Source        *OutboundMailSource
	ContactID     *uint
	SignupID      *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
