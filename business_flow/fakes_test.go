package businessflow

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func hasLogEntry(hook *test.Hook, level logrus.Level, message string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

// memStore is an in-memory stand-in for the database used by the flow tests.
// The fake transactor snapshots it and restores the snapshot when fn fails.
type memStore struct {
	mu        sync.Mutex
	contacts  []*models.Contact
	signups   []*models.Signup
	templates []*models.CampaignTemplate
	mails     []*models.OutboundMail
	sentSMS   []*models.SentSMS
	jobRuns   []*models.JobRun

	// concurrentWrite runs once, committed, right before the next transaction starts.
	// It stands in for another run writing between our read and our claim.
	concurrentWrite func()
	saveErr   map[string]error
	listErr   error
}

func newMemStore() *memStore {
	return &memStore{saveErr: map[string]error{}}
}

type memSnapshot struct {
	contacts []*models.Contact
	signups  []*models.Signup
	mails    []*models.OutboundMail
	sentSMS  []*models.SentSMS
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{}
	for _, c := range s.contacts {
		snap.contacts = append(snap.contacts, cloneContact(c))
	}
	for _, sg := range s.signups {
		cp := *sg
		if sg.SignatureReminderSent != nil {
			cp.SignatureReminderSent = utils.ToPtr(*sg.SignatureReminderSent)
		}
		snap.signups = append(snap.signups, &cp)
	}
	snap.mails = slices.Clone(s.mails)
	snap.sentSMS = slices.Clone(s.sentSMS)
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = snap.contacts
	s.signups = snap.signups
	s.mails = snap.mails
	s.sentSMS = snap.sentSMS
}

// recordHistory appends an entry directly, as a concurrent run would
func (s *memStore) recordHistory(contactID uint, templateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.ID == contactID && !c.FollowUpHistory.Has(templateID) {
			c.FollowUpHistory = append(c.FollowUpHistory, models.FollowUpEntry{TemplateID: templateID, SentAt: fixedNow})
		}
	}
}

func cloneContact(c *models.Contact) *models.Contact {
	cp := *c
	cp.FollowUpHistory = slices.Clone(c.FollowUpHistory)
	return &cp
}

func (s *memStore) addContact(c *models.Contact) *models.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uint(len(s.contacts) + 1)
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	s.contacts = append(s.contacts, c)
	return c
}

func (s *memStore) addSignup(sg *models.Signup) *models.Signup {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg.ID = uint(len(s.signups) + 1)
	if sg.UUID == uuid.Nil {
		sg.UUID = uuid.New()
	}
	s.signups = append(s.signups, sg)
	return sg
}

func (s *memStore) addTemplate(t *models.CampaignTemplate) *models.CampaignTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uint(len(s.templates) + 1)
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	s.templates = append(s.templates, t)
	return t
}

func (s *memStore) contact(id uint) *models.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.ID == id {
			return cloneContact(c)
		}
	}
	return nil
}

func (s *memStore) signup(id uint) *models.Signup {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range s.signups {
		if sg.ID == id {
			cp := *sg
			return &cp
		}
	}
	return nil
}

func (s *memStore) outbound() []*models.OutboundMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mails)
}

func (s *memStore) smsRecords() []*models.SentSMS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sentSMS)
}

type fakeTransactor struct {
	store *memStore
}

func (t fakeTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if w := t.store.concurrentWrite; w != nil {
		t.store.concurrentWrite = nil
		w()
	}
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

var errNotSupported = errors.New("not supported by the in-memory store")

// fakeContactRepo implements repository.ContactRepository
type fakeContactRepo struct{ s *memStore }

func (r fakeContactRepo) ByID(ctx context.Context, id uint) (*models.Contact, error) {
	return r.s.contact(id), nil
}

func (r fakeContactRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contacts {
		if c.UUID == id {
			return cloneContact(c), nil
		}
	}
	return nil, nil
}

func (r fakeContactRepo) ByFilter(ctx context.Context, f models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.listErr != nil {
		return nil, r.s.listErr
	}
	var out []*models.Contact
	for _, c := range r.s.contacts {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.LeadSource != nil && c.LeadSource != *f.LeadSource {
			continue
		}
		if f.NotOptedOut && utils.IsFalse(c.SendFollowUpCampaigns) {
			continue
		}
		if f.CreatedAfter != nil && (c.CreatedAt == nil || c.CreatedAt.Before(*f.CreatedAfter)) {
			continue
		}
		if f.CreatedBefore != nil && (c.CreatedAt == nil || !c.CreatedAt.Before(*f.CreatedBefore)) {
			continue
		}
		out = append(out, cloneContact(c))
	}
	return out, nil
}

func (r fakeContactRepo) AppendFollowUp(ctx context.Context, contactID uint, entry models.FollowUpEntry) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contacts {
		if c.ID != contactID {
			continue
		}
		if c.FollowUpHistory.Has(entry.TemplateID) {
			return false, nil
		}
		c.FollowUpHistory = append(c.FollowUpHistory, entry)
		return true, nil
	}
	return false, nil
}

func (r fakeContactRepo) ListWithFollowUpHistory(ctx context.Context, limit, offset int) ([]*models.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.Contact
	for _, c := range r.s.contacts {
		if len(c.FollowUpHistory) > 0 {
			all = append(all, cloneContact(c))
		}
	}
	return page(all, limit, offset), nil
}

func (r fakeContactRepo) Save(ctx context.Context, c *models.Contact) error {
	r.s.addContact(c)
	return nil
}

func (r fakeContactRepo) SaveBatch(ctx context.Context, cs []*models.Contact) error {
	return errNotSupported
}

func (r fakeContactRepo) Count(ctx context.Context, f models.ContactFilter) (int64, error) {
	out, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), err
}

func (r fakeContactRepo) Exists(ctx context.Context, f models.ContactFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

// fakeSignupRepo implements repository.SignupRepository
type fakeSignupRepo struct{ s *memStore }

func (r fakeSignupRepo) ByID(ctx context.Context, id uint) (*models.Signup, error) {
	return r.s.signup(id), nil
}

func (r fakeSignupRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Signup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sg := range r.s.signups {
		if sg.UUID == id {
			cp := *sg
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeSignupRepo) ByFilter(ctx context.Context, f models.SignupFilter, orderBy string, limit, offset int) ([]*models.Signup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Signup
	for _, sg := range r.s.signups {
		if f.Status != nil && sg.Status != *f.Status {
			continue
		}
		if f.ReminderNotSent && utils.IsTrue(sg.SignatureReminderSent) {
			continue
		}
		if f.UpdatedBefore != nil && !sg.LastUpdatedAt.Before(*f.UpdatedBefore) {
			continue
		}
		if f.UpdatedAfter != nil && sg.LastUpdatedAt.Before(*f.UpdatedAfter) {
			continue
		}
		cp := *sg
		out = append(out, &cp)
	}
	return out, nil
}

func (r fakeSignupRepo) InitialContactIDs(ctx context.Context) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uint
	for _, sg := range r.s.signups {
		if sg.InitialContactID != nil && !slices.Contains(ids, *sg.InitialContactID) {
			ids = append(ids, *sg.InitialContactID)
		}
	}
	return ids, nil
}

func (r fakeSignupRepo) MarkReminderSent(ctx context.Context, signupID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sg := range r.s.signups {
		if sg.ID != signupID {
			continue
		}
		if utils.IsTrue(sg.SignatureReminderSent) {
			return false, nil
		}
		sg.SignatureReminderSent = utils.ToPtr(true)
		return true, nil
	}
	return false, nil
}

func (r fakeSignupRepo) Save(ctx context.Context, sg *models.Signup) error {
	r.s.addSignup(sg)
	return nil
}

func (r fakeSignupRepo) SaveBatch(ctx context.Context, sgs []*models.Signup) error {
	return errNotSupported
}

func (r fakeSignupRepo) Count(ctx context.Context, f models.SignupFilter) (int64, error) {
	out, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), err
}

func (r fakeSignupRepo) Exists(ctx context.Context, f models.SignupFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

// fakeTemplateRepo implements repository.CampaignTemplateRepository
type fakeTemplateRepo struct{ s *memStore }

func (r fakeTemplateRepo) ByID(ctx context.Context, id uint) (*models.CampaignTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, nil
}

func (r fakeTemplateRepo) ByFilter(ctx context.Context, f models.CampaignTemplateFilter, orderBy string, limit, offset int) ([]*models.CampaignTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.CampaignTemplate
	for _, t := range r.s.templates {
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.IsActive != nil && *f.IsActive == utils.IsFalse(t.IsActive) {
			continue
		}
		if f.IntervalHours != nil && (t.IntervalHours == nil || *t.IntervalHours != *f.IntervalHours) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (r fakeTemplateRepo) ListActiveByType(ctx context.Context, templateType models.TemplateType) ([]*models.CampaignTemplate, error) {
	return r.ByFilter(ctx, models.CampaignTemplateFilter{Type: &templateType, IsActive: utils.ToPtr(true)}, "id ASC", 0, 0)
}

func (r fakeTemplateRepo) Save(ctx context.Context, t *models.CampaignTemplate) error {
	r.s.addTemplate(t)
	return nil
}

func (r fakeTemplateRepo) SaveBatch(ctx context.Context, ts []*models.CampaignTemplate) error {
	return errNotSupported
}

func (r fakeTemplateRepo) Count(ctx context.Context, f models.CampaignTemplateFilter) (int64, error) {
	out, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), err
}

func (r fakeTemplateRepo) Exists(ctx context.Context, f models.CampaignTemplateFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

// fakeMailRepo implements repository.OutboundMailRepository
type fakeMailRepo struct{ s *memStore }

func (r fakeMailRepo) ByID(ctx context.Context, id uint) (*models.OutboundMail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.mails {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r fakeMailRepo) ByFilter(ctx context.Context, f models.OutboundMailFilter, orderBy string, limit, offset int) ([]*models.OutboundMail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return page(slices.Clone(r.s.mails), limit, offset), nil
}

func (r fakeMailRepo) Save(ctx context.Context, m *models.OutboundMail) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.saveErr["mail"]; err != nil {
		return err
	}
	m.ID = uint(len(r.s.mails) + 1)
	r.s.mails = append(r.s.mails, m)
	return nil
}

func (r fakeMailRepo) SaveBatch(ctx context.Context, ms []*models.OutboundMail) error {
	return errNotSupported
}

func (r fakeMailRepo) Count(ctx context.Context, f models.OutboundMailFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.mails)), nil
}

func (r fakeMailRepo) Exists(ctx context.Context, f models.OutboundMailFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r fakeMailRepo) ClaimPending(ctx context.Context, limit int) ([]*models.OutboundMail, error) {
	return nil, errNotSupported
}

func (r fakeMailRepo) MarkSent(ctx context.Context, id uint, sentAt time.Time) error {
	return errNotSupported
}

func (r fakeMailRepo) MarkFailed(ctx context.Context, id uint, reason string, maxAttempts int) error {
	return errNotSupported
}

// fakeSentSMSRepo implements repository.SentSMSRepository
type fakeSentSMSRepo struct{ s *memStore }

func (r fakeSentSMSRepo) ByID(ctx context.Context, id uint) (*models.SentSMS, error) {
	return nil, errNotSupported
}

func (r fakeSentSMSRepo) ByFilter(ctx context.Context, f models.SentSMSFilter, orderBy string, limit, offset int) ([]*models.SentSMS, error) {
	return r.s.smsRecords(), nil
}

func (r fakeSentSMSRepo) Save(ctx context.Context, m *models.SentSMS) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.saveErr["sms"]; err != nil {
		return err
	}
	m.ID = uint(len(r.s.sentSMS) + 1)
	r.s.sentSMS = append(r.s.sentSMS, m)
	return nil
}

func (r fakeSentSMSRepo) SaveBatch(ctx context.Context, ms []*models.SentSMS) error {
	return errNotSupported
}

func (r fakeSentSMSRepo) Count(ctx context.Context, f models.SentSMSFilter) (int64, error) {
	return int64(len(r.s.smsRecords())), nil
}

func (r fakeSentSMSRepo) Exists(ctx context.Context, f models.SentSMSFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r fakeSentSMSRepo) ListSentBetween(ctx context.Context, from, to *time.Time, limit int) ([]*models.SentSMS, error) {
	var out []*models.SentSMS
	for _, m := range r.s.smsRecords() {
		if inRange(m.CreatedAt, from, to) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeJobRunRepo implements repository.JobRunRepository
type fakeJobRunRepo struct{ s *memStore }

func (r fakeJobRunRepo) ByID(ctx context.Context, id uint) (*models.JobRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, run := range r.s.jobRuns {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (r fakeJobRunRepo) ByFilter(ctx context.Context, f models.JobRunFilter, orderBy string, limit, offset int) ([]*models.JobRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.JobRun
	for _, run := range r.s.jobRuns {
		if f.Job != nil && run.Job != *f.Job {
			continue
		}
		if f.StartedAfter != nil && run.StartedAt.Before(*f.StartedAfter) {
			continue
		}
		if f.StartedBefore != nil && !run.StartedAt.Before(*f.StartedBefore) {
			continue
		}
		out = append(out, run)
	}
	return page(out, limit, offset), nil
}

func (r fakeJobRunRepo) Save(ctx context.Context, run *models.JobRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.saveErr["job_run"]; err != nil {
		return err
	}
	run.ID = uint(len(r.s.jobRuns) + 1)
	r.s.jobRuns = append(r.s.jobRuns, run)
	return nil
}

func (r fakeJobRunRepo) SaveBatch(ctx context.Context, runs []*models.JobRun) error {
	return errNotSupported
}

func (r fakeJobRunRepo) Count(ctx context.Context, f models.JobRunFilter) (int64, error) {
	out, err := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(out)), err
}

func (r fakeJobRunRepo) Exists(ctx context.Context, f models.JobRunFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r fakeJobRunRepo) Finish(ctx context.Context, run *models.JobRun) error {
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// recordingPublisher implements services.MailPublisher
type recordingPublisher struct {
	mu        sync.Mutex
	published []*models.OutboundMail
	err       error
}

func (p *recordingPublisher) PublishMail(ctx context.Context, mail *models.OutboundMail) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, mail)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func hoursAgo(h float64) *time.Time {
	t := fixedNow.Add(-time.Duration(h * float64(time.Hour)))
	return &t
}

func daysAgo(d float64) *time.Time {
	return hoursAgo(d * 24)
}

func emailTemplate(name string, days int) *models.CampaignTemplate {
	return &models.CampaignTemplate{
		Name:         name,
		Type:         models.TemplateTypeEmail,
		IntervalDays: utils.ToPtr(days),
		Subject:      "Hello {{clientFirstName}}",
		Body:         "<p>Dear {{clientName}}, about your {{leadSource}} inquiry</p>",
		IsActive:     utils.ToPtr(true),
	}
}

func smsTemplate(name string, hours int) *models.CampaignTemplate {
	return &models.CampaignTemplate{
		Name:          name,
		Type:          models.TemplateTypeSMS,
		IntervalHours: utils.ToPtr(hours),
		Body:          "Hi {{clientFirstName}}, thanks for reaching out!",
		IsActive:      utils.ToPtr(true),
	}
}

func assertUniqueHistory(t *testing.T, s *memStore) {
	t.Helper()
	for _, c := range s.contacts {
		seen := map[string]bool{}
		for _, e := range c.FollowUpHistory {
			if seen[e.TemplateID] {
				t.Fatalf("contact %d has duplicate history entry for %s", c.ID, e.TemplateID)
			}
			seen[e.TemplateID] = true
		}
	}
}
