package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLeadNurtureTestFlow(s *memStore, pub *recordingPublisher, log logrus.FieldLogger) *LeadNurtureFlowImpl {
	if pub == nil {
		pub = &recordingPublisher{}
	}
	f := NewLeadNurtureFlow(fakeContactRepo{s}, fakeSignupRepo{s}, fakeTemplateRepo{s}, fakeMailRepo{s}, fakeTransactor{s}, pub, log)
	f.now = fixedClock
	return f
}

func TestLeadNurtureFlow_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("SendsDueTemplateOnce", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		pub := &recordingPublisher{}
		tpl := s.addTemplate(emailTemplate("Week one", 7))
		c := s.addContact(&models.Contact{
			Name:                  "Ada Lovelace",
			Email:                 "a@x.com",
			Status:                utils.LeadStatusNew,
			LeadSource:            "Website",
			SendFollowUpCampaigns: utils.ToPtr(true),
			CreatedAt:             daysAgo(10),
		})
		flow := newLeadNurtureTestFlow(s, pub, log)

		result, err := flow.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.ContactsProcessed)
		assert.Equal(t, 1, result.EmailsSent)
		assert.Equal(t, 0, result.Errors)

		stored := s.contact(c.ID)
		require.Len(t, stored.FollowUpHistory, 1)
		assert.Equal(t, tpl.TemplateID(), stored.FollowUpHistory[0].TemplateID)
		assert.True(t, stored.FollowUpHistory[0].SentAt.Equal(fixedNow))

		mails := s.outbound()
		require.Len(t, mails, 1)
		assert.Equal(t, []string{"a@x.com"}, []string(mails[0].To))
		assert.Equal(t, "Hello Ada", mails[0].Subject)
		assert.Equal(t, "<p>Dear Ada Lovelace, about your Website inquiry</p>", mails[0].HTML)
		assert.Equal(t, models.OutboundMailSourceLeadNurture, mails[0].Source)
		assert.Equal(t, models.OutboundMailStatusPending, mails[0].Status)
		assert.Equal(t, 1, pub.count())

		// A second run finds the history entry and sends nothing
		again, err := flow.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, again.ContactsProcessed)
		assert.Equal(t, 0, again.EmailsSent)
		assert.Len(t, s.outbound(), 1)
		assertUniqueHistory(t, s)
	})

	t.Run("WindowBoundaryIsInclusive", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.addTemplate(emailTemplate("Week one", 7))
		exact := s.addContact(&models.Contact{Email: "exact@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(7)})
		early := s.addContact(&models.Contact{Email: "early@x.com", Status: utils.LeadStatusNew, CreatedAt: utils.ToPtr(daysAgo(7).Add(time.Second))})

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.ContactsProcessed)
		assert.Equal(t, 1, result.EmailsSent)
		assert.Len(t, s.contact(exact.ID).FollowUpHistory, 1)
		assert.Empty(t, s.contact(early.ID).FollowUpHistory)
	})

	t.Run("SkipsOptedOutAndProgressedContacts", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.addTemplate(emailTemplate("Week one", 7))
		optedOut := s.addContact(&models.Contact{Email: "out@x.com", Status: utils.LeadStatusNew, SendFollowUpCampaigns: utils.ToPtr(false), CreatedAt: daysAgo(10)})
		progressed := s.addContact(&models.Contact{Email: "signed@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(10)})
		unset := s.addContact(&models.Contact{Email: "unset@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(10)})
		s.addSignup(&models.Signup{Status: models.SignupStatusNewPendingSignatures, InitialContactID: &progressed.ID, LastUpdatedAt: fixedNow})

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.ContactsProcessed)
		assert.Equal(t, 1, result.EmailsSent)
		assert.Empty(t, s.contact(optedOut.ID).FollowUpHistory)
		assert.Empty(t, s.contact(progressed.ID).FollowUpHistory)
		assert.Len(t, s.contact(unset.ID).FollowUpHistory, 1)
	})

	t.Run("SkipsNonNewStatus", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.addTemplate(emailTemplate("Week one", 7))
		s.addContact(&models.Contact{Email: "a@x.com", Status: "Contacted", CreatedAt: daysAgo(10)})

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ContactsProcessed)
		assert.Empty(t, s.outbound())
	})

	t.Run("WarnsOnMissingCreatedAtAndEmail", func(t *testing.T) {
		s := newMemStore()
		log, hook := newTestLogger()
		s.addTemplate(emailTemplate("Week one", 7))
		noDate := s.addContact(&models.Contact{Email: "a@x.com", Status: utils.LeadStatusNew})
		noEmail := s.addContact(&models.Contact{Email: "  ", Status: utils.LeadStatusNew, CreatedAt: daysAgo(10)})

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.ContactsProcessed)
		assert.Equal(t, 0, result.EmailsSent)
		assert.Equal(t, 0, result.Errors)
		assert.Empty(t, s.contact(noDate.ID).FollowUpHistory)
		assert.Empty(t, s.contact(noEmail.ID).FollowUpHistory)
		assert.True(t, hasLogEntry(hook, logrus.WarnLevel, "Skipping contact without a valid creation timestamp"))
		assert.True(t, hasLogEntry(hook, logrus.WarnLevel, "Skipping contact without an email address"))
	})

	t.Run("IgnoresImmediateInactiveAndInvalidTemplates", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.addTemplate(emailTemplate("Immediate", 0))
		inactive := emailTemplate("Inactive", 1)
		inactive.IsActive = utils.ToPtr(false)
		s.addTemplate(inactive)
		invalid := emailTemplate("No subject", 1)
		invalid.Subject = ""
		s.addTemplate(invalid)
		s.addContact(&models.Contact{Email: "a@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(30)})

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.EmailsSent)
		assert.Empty(t, s.outbound())
	})

	t.Run("SendsEveryDueTemplate", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.addTemplate(emailTemplate("Day one", 1))
		s.addTemplate(emailTemplate("Day three", 3))
		s.addTemplate(emailTemplate("Day thirty", 30))
		c := s.addContact(&models.Contact{Email: "a@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(4)})

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, result.EmailsSent)
		assert.Len(t, s.contact(c.ID).FollowUpHistory, 2)
	})

	t.Run("ClaimLostIsSkippedNotCounted", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		tpl := s.addTemplate(emailTemplate("Week one", 7))
		c := s.addContact(&models.Contact{Email: "a@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(10)})

		// Another run records the pair between our read and our write
		s.concurrentWrite = func() { s.recordHistory(c.ID, tpl.TemplateID()) }

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.EmailsSent)
		assert.Equal(t, 0, result.Errors)
		assert.Empty(t, s.outbound())
		history := s.contact(c.ID).FollowUpHistory
		require.Len(t, history, 1)
		assert.Equal(t, tpl.TemplateID(), history[0].TemplateID)
	})

	t.Run("EnqueueFailureRollsBackClaim", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.addTemplate(emailTemplate("Week one", 7))
		c := s.addContact(&models.Contact{Email: "a@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(10)})
		s.saveErr["mail"] = errors.New("insert failed")

		result, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, result.EmailsSent)
		assert.Equal(t, 1, result.Errors)
		assert.Empty(t, s.contact(c.ID).FollowUpHistory)

		// The pair stays eligible for the next run
		delete(s.saveErr, "mail")
		retry, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, retry.EmailsSent)
	})

	t.Run("PublishFailureDoesNotFailSend", func(t *testing.T) {
		s := newMemStore()
		log, hook := newTestLogger()
		s.addTemplate(emailTemplate("Week one", 7))
		s.addContact(&models.Contact{Email: "a@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(10)})
		pub := &recordingPublisher{err: errors.New("broker down")}

		result, err := newLeadNurtureTestFlow(s, pub, log).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.EmailsSent)
		assert.Len(t, s.outbound(), 1)
		assert.True(t, hasLogEntry(hook, logrus.WarnLevel, "Failed to publish queued mail"))
	})

	t.Run("ListFailureReturnsBusinessError", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.listErr = errors.New("connection refused")

		_, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.Error(t, err)
		be, ok := AsBusinessError(err)
		require.True(t, ok)
		assert.Equal(t, "LIST_CONTACTS_FAILED", be.Code)
	})

	t.Run("FallsBackToDefaultClientName", func(t *testing.T) {
		s := newMemStore()
		log, _ := newTestLogger()
		s.addTemplate(emailTemplate("Week one", 7))
		s.addContact(&models.Contact{Email: "a@x.com", Status: utils.LeadStatusNew, CreatedAt: daysAgo(10)})

		_, err := newLeadNurtureTestFlow(s, nil, log).Run(ctx)
		require.NoError(t, err)
		mails := s.outbound()
		require.Len(t, mails, 1)
		assert.Contains(t, mails[0].HTML, "Dear "+utils.DefaultClientName)
	})
}
