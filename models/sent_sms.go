package models

import "time"

// SMSSendStatus enumerates status of a sent SMS record
type SMSSendStatus string

const (
	SMSSendStatusAccepted SMSSendStatus = "accepted"
	SMSSendStatusFailed   SMSSendStatus = "failed"
)

// SentSMS records one SMS follow-up handed to the provider
type SentSMS struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	ContactID         uint          `gorm:"not null;index:idx_sent_sms_contact_id" json:"contact_id"`
	TemplateUUID      string        `gorm:"size:64;not null;index:idx_sent_sms_template_uuid" json:"template_uuid"`
	PhoneNumber       string        `gorm:"size:32;not null;index:idx_sent_sms_phone_number" json:"phone_number"`
	ProviderMessageID *string       `gorm:"size:64" json:"provider_message_id,omitempty"`
	Status            SMSSendStatus `gorm:"size:16;not null;default:'accepted';index:idx_sent_sms_status" json:"status"`
	CreatedAt         time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_sent_sms_created_at" json:"created_at"`
}

func (SentSMS) TableName() string { return "sent_sms" }

// SentSMSFilter provides filter fields for repository queries
type SentSMSFilter struct {
	ID            *uint
	ContactID     *uint
	TemplateUUID  *string
	PhoneNumber   *string
	Status        *SMSSendStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
