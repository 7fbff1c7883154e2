package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockOutboundMailRepository mocks the queue operations the dispatcher uses
type MockOutboundMailRepository struct {
	repository.OutboundMailRepository
	mock.Mock
}

func (m *MockOutboundMailRepository) ClaimPending(ctx context.Context, limit int) ([]*models.OutboundMail, error) {
	args := m.Called(ctx, limit)
	mails, _ := args.Get(0).([]*models.OutboundMail)
	return mails, args.Error(1)
}

func (m *MockOutboundMailRepository) MarkSent(ctx context.Context, id uint, sentAt time.Time) error {
	return m.Called(ctx, id, sentAt).Error(0)
}

func (m *MockOutboundMailRepository) MarkFailed(ctx context.Context, id uint, reason string, maxAttempts int) error {
	return m.Called(ctx, id, reason, maxAttempts).Error(0)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to []string, subject, html string) error {
	return m.Called(ctx, to, subject, html).Error(0)
}

type passthroughTransactor struct{ calls int }

func (t *passthroughTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	t.calls++
	return fn(ctx)
}

var dispatchNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestDispatcher(repo *MockOutboundMailRepository, sender *MockEmailSender, batchSize int) (*MailDispatcher, *passthroughTransactor) {
	log, _ := test.NewNullLogger()
	tx := &passthroughTransactor{}
	d := NewMailDispatcher(repo, tx, sender, log, time.Hour, batchSize, 3)
	d.now = func() time.Time { return dispatchNow }
	return d, tx
}

func pendingMail(id uint, to string) *models.OutboundMail {
	return &models.OutboundMail{
		ID:      id,
		To:      pq.StringArray{to},
		Subject: "Welcome",
		HTML:    "<p>Hi</p>",
		Status:  models.OutboundMailStatusPending,
	}
}

func TestMailDispatcher_DispatchOnce(t *testing.T) {
	t.Run("SendsAndMarksEachMail", func(t *testing.T) {
		repo := new(MockOutboundMailRepository)
		sender := new(MockEmailSender)
		d, tx := newTestDispatcher(repo, sender, 10)

		repo.On("ClaimPending", mock.Anything, 10).Return([]*models.OutboundMail{
			pendingMail(1, "a@example.com"),
			pendingMail(2, "b@example.com"),
		}, nil)
		sender.On("SendEmail", mock.Anything, []string{"a@example.com"}, "Welcome", "<p>Hi</p>").Return(nil)
		sender.On("SendEmail", mock.Anything, []string{"b@example.com"}, "Welcome", "<p>Hi</p>").Return(errors.New("smtp: 550 mailbox unavailable"))
		repo.On("MarkSent", mock.Anything, uint(1), dispatchNow).Return(nil)
		repo.On("MarkFailed", mock.Anything, uint(2), "smtp: 550 mailbox unavailable", 3).Return(nil)

		stats, err := d.DispatchOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DispatchStats{Claimed: 2, Sent: 1, Failed: 1}, stats)
		assert.Equal(t, 1, tx.calls)
		repo.AssertExpectations(t)
		sender.AssertExpectations(t)
	})

	t.Run("ClaimError", func(t *testing.T) {
		repo := new(MockOutboundMailRepository)
		sender := new(MockEmailSender)
		d, _ := newTestDispatcher(repo, sender, 10)

		repo.On("ClaimPending", mock.Anything, 10).Return(nil, errors.New("connection reset"))

		_, err := d.DispatchOnce(context.Background())
		require.Error(t, err)
		sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MarkSentErrorAbortsBatch", func(t *testing.T) {
		repo := new(MockOutboundMailRepository)
		sender := new(MockEmailSender)
		d, _ := newTestDispatcher(repo, sender, 10)

		repo.On("ClaimPending", mock.Anything, 10).Return([]*models.OutboundMail{
			pendingMail(1, "a@example.com"),
			pendingMail(2, "b@example.com"),
		}, nil)
		sender.On("SendEmail", mock.Anything, []string{"a@example.com"}, mock.Anything, mock.Anything).Return(nil)
		repo.On("MarkSent", mock.Anything, uint(1), dispatchNow).Return(errors.New("deadlock detected"))

		stats, err := d.DispatchOnce(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mark mail 1 sent")
		assert.Equal(t, DispatchStats{}, stats)
		sender.AssertNumberOfCalls(t, "SendEmail", 1)
	})
}

func TestMailDispatcher_StartStop(t *testing.T) {
	repo := new(MockOutboundMailRepository)
	sender := new(MockEmailSender)
	d, _ := newTestDispatcher(repo, sender, 10)

	claimed := make(chan struct{}, 1)
	repo.On("ClaimPending", mock.Anything, 10).Return([]*models.OutboundMail{}, nil).Run(func(mock.Arguments) {
		select {
		case claimed <- struct{}{}:
		default:
		}
	})

	stop := d.Start(context.Background())
	select {
	case <-claimed:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not poll the queue")
	}
	stop()

	sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
