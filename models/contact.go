// Package models contains domain entities for contacts, signups, campaign templates and the outbound queues
package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is an inbound lead captured by the intake form or webhook
type Contact struct {
	ID    uint      `gorm:"primaryKey" json:"id"`
	UUID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_contacts_uuid" json:"uuid"`
	Name  string    `gorm:"size:255" json:"name"`
	Email string    `gorm:"size:255;index:idx_contacts_email" json:"email"`
	Phone string    `gorm:"size:32" json:"phone"`

	// Status is free-form; the runners only look for "New"
	Status     string `gorm:"size:64;not null;index:idx_contacts_status" json:"status"`
	LeadSource string `gorm:"size:128;index:idx_contacts_lead_source" json:"lead_source"`

	// SendFollowUpCampaigns is tri-state: nil and true both allow campaign sends
	SendFollowUpCampaigns *bool `gorm:"column:send_follow_up_campaigns" json:"send_follow_up_campaigns,omitempty"`

	FollowUpHistory FollowUpHistory `gorm:"type:jsonb;not null;default:'[]'" json:"follow_up_history"`

	// CreatedAt is nullable: imported leads may carry no usable creation time
	CreatedAt *time.Time `gorm:"index:idx_contacts_created_at" json:"created_at,omitempty"`
	UpdatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }

// ContactFilter provides filter fields for repository queries
type ContactFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Status        *string
	LeadSource    *string
	NotOptedOut   bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
