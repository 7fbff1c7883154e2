package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TemplateType is the delivery channel of a campaign template
type TemplateType string

const (
	TemplateTypeEmail TemplateType = "email"
	TemplateTypeSMS   TemplateType = "sms"
)

// CampaignTemplate is a follow-up message definition. The runners only read it.
type CampaignTemplate struct {
	ID   uint         `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_campaign_templates_uuid" json:"uuid"`
	Name string       `gorm:"size:255;not null" json:"name" validate:"required"`
	Type TemplateType `gorm:"size:16;not null;index:idx_campaign_templates_type" json:"type" validate:"required,oneof=email sms"`

	// IntervalDays applies to email templates, IntervalHours to sms templates
	IntervalDays  *int `json:"interval_days,omitempty" validate:"omitempty,gte=0"`
	IntervalHours *int `json:"interval_hours,omitempty" validate:"omitempty,gte=0"`

	Subject string `gorm:"size:255" json:"subject" validate:"required_if=Type email"`
	Body    string `gorm:"type:text;not null" json:"body" validate:"required"`

	// ImmediateStatuses lists contact statuses that fire this template right away (interval 0)
	ImmediateStatuses pq.StringArray `gorm:"type:text[]" json:"immediate_statuses,omitempty"`

	IsActive  *bool     `gorm:"default:true;index:idx_campaign_templates_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CampaignTemplate) TableName() string { return "campaign_templates" }

// TemplateID is the identifier written into a contact's follow-up history
func (t *CampaignTemplate) TemplateID() string {
	return t.UUID.String()
}

// Interval returns the send delay of the template for its channel
func (t *CampaignTemplate) Interval() time.Duration {
	switch t.Type {
	case TemplateTypeEmail:
		if t.IntervalDays != nil {
			return time.Duration(*t.IntervalDays) * 24 * time.Hour
		}
	case TemplateTypeSMS:
		if t.IntervalHours != nil {
			return time.Duration(*t.IntervalHours) * time.Hour
		}
	}
	return 0
}

// FiresImmediatelyFor reports whether the template is an immediate template for status
func (t *CampaignTemplate) FiresImmediatelyFor(status string) bool {
	if t.Interval() > 0 {
		return false
	}
	for _, s := range t.ImmediateStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (t *CampaignTemplate) String() string {
	return fmt.Sprintf("%s template %q (%s)", t.Type, t.Name, t.UUID)
}

// CampaignTemplateFilter provides filter fields for repository queries
type CampaignTemplateFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Type          *TemplateType
	IsActive      *bool
	IntervalHours *int
}
