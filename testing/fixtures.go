package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestContact creates a New lead created at createdAt
func (tf *TestFixtures) CreateTestContact(createdAt time.Time, mutate ...func(*models.Contact)) (*models.Contact, error) {
	suffix := fmt.Sprintf("%06d", rand.Intn(1000000))
	contact := &models.Contact{
		UUID:            uuid.New(),
		Name:            "Jane Doe",
		Email:           fmt.Sprintf("jane.%s@example.com", suffix),
		Phone:           "+1555" + suffix + "0",
		Status:          utils.LeadStatusNew,
		LeadSource:      utils.GoogleAdsLeadSource,
		FollowUpHistory: models.FollowUpHistory{},
		CreatedAt:       utils.ToPtr(createdAt.UTC()),
	}
	for _, m := range mutate {
		m(contact)
	}

	if err := tf.DB.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create test contact: %w", err)
	}
	return contact, nil
}

// CreateTestTemplate creates an active template. interval is in days for email and hours for sms.
func (tf *TestFixtures) CreateTestTemplate(templateType models.TemplateType, name string, interval int) (*models.CampaignTemplate, error) {
	tpl := &models.CampaignTemplate{
		UUID:     uuid.New(),
		Name:     name,
		Type:     templateType,
		Body:     "Hi {{name}}",
		IsActive: utils.ToPtr(true),
	}
	switch templateType {
	case models.TemplateTypeEmail:
		tpl.Subject = name
		tpl.IntervalDays = utils.ToPtr(interval)
	case models.TemplateTypeSMS:
		tpl.IntervalHours = utils.ToPtr(interval)
	}

	if err := tf.DB.DB.Create(tpl).Error; err != nil {
		return nil, fmt.Errorf("failed to create test template: %w", err)
	}
	return tpl, nil
}

// CreateTestSignup creates a signup last updated at lastUpdatedAt
func (tf *TestFixtures) CreateTestSignup(status models.SignupStatus, lastUpdatedAt time.Time, initialContactID *uint) (*models.Signup, error) {
	signup := &models.Signup{
		UUID:   uuid.New(),
		Status: status,
		FormData: models.SignupFormData{
			ClientName:  "John Client",
			ClientEmail: fmt.Sprintf("client.%06d@example.com", rand.Intn(1000000)),
		},
		InitialContactID:      initialContactID,
		SignatureReminderSent: utils.ToPtr(false),
		LastUpdatedAt:         lastUpdatedAt.UTC(),
	}

	if err := tf.DB.DB.Create(signup).Error; err != nil {
		return nil, fmt.Errorf("failed to create test signup: %w", err)
	}
	return signup, nil
}
