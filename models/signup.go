package models

import (
	"time"

	"github.com/google/uuid"
)

// SignupStatus is a stage of the client signing pipeline
type SignupStatus string

const (
	SignupStatusNewPendingSignatures    SignupStatus = "New/Pending Signatures"
	SignupStatusPendingClientSignatures SignupStatus = "Pending Client Signatures"
	SignupStatusSignaturesCompleted     SignupStatus = "Signatures Completed"
	SignupStatusPublished               SignupStatus = "Published"
)

// String returns the string representation of the status
func (s SignupStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SignupStatus) Valid() bool {
	switch s {
	case SignupStatusNewPendingSignatures, SignupStatusPendingClientSignatures,
		SignupStatusSignaturesCompleted, SignupStatusPublished:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the signup has left the pipeline
func (s SignupStatus) IsTerminal() bool {
	return s == SignupStatusPublished
}

// SignupFormData holds the client fields captured by the signup form
type SignupFormData struct {
	ClientName  string `gorm:"size:255" json:"client_name"`
	ClientEmail string `gorm:"size:255" json:"client_email"`
	ClientPhone string `gorm:"size:32" json:"client_phone"`
}

// Signup tracks a contact that progressed into the e-signature pipeline
type Signup struct {
	ID     uint         `gorm:"primaryKey" json:"id"`
	UUID   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_signups_uuid" json:"uuid"`
	Status SignupStatus `gorm:"size:64;not null;index:idx_signups_status" json:"status"`

	FormData SignupFormData `gorm:"embedded;embeddedPrefix:form_" json:"form_data"`

	// InitialContactID is a lookup key back to the originating contact, not an ownership relation
	InitialContactID *uint `gorm:"index:idx_signups_initial_contact_id" json:"initial_contact_id,omitempty"`

	SignatureReminderSent *bool `gorm:"column:signature_reminder_sent" json:"signature_reminder_sent,omitempty"`

	LastUpdatedAt time.Time `gorm:"not null;index:idx_signups_last_updated_at" json:"last_updated_at"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Signup) TableName() string { return "signups" }

// SignupFilter provides filter fields for repository queries
type SignupFilter struct {
	ID               *uint
	UUID             *uuid.UUID
	Status           *SignupStatus
	InitialContactID *uint
	ReminderNotSent  bool
	UpdatedBefore    *time.Time
	UpdatedAfter     *time.Time
}
