package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var mailsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "followup_mails_dispatched_total",
	Help: "Outbound mails handed to the SMTP provider, by result",
}, []string{"result"})

// EmailSender is the part of NotificationService the dispatcher needs
type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, html string) error
}

// MailDispatcher drains pending outbound mails through the email provider
type MailDispatcher struct {
	mailRepo    repository.OutboundMailRepository
	tx          repository.Transactor
	sender      EmailSender
	log         logrus.FieldLogger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	now         func() time.Time

	wg sync.WaitGroup
}

func NewMailDispatcher(
	mailRepo repository.OutboundMailRepository,
	tx repository.Transactor,
	sender EmailSender,
	log logrus.FieldLogger,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
) *MailDispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &MailDispatcher{
		mailRepo:    mailRepo,
		tx:          tx,
		sender:      sender,
		log:         log.WithField("component", "mail_dispatcher"),
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		now:         utils.UTCNow,
	}
}

// DispatchStats reports the outcome of one batch
type DispatchStats struct {
	Claimed int
	Sent    int
	Failed  int
}

// Start launches the dispatch loop and returns a stop function that waits for it to exit
func (d *MailDispatcher) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			d.drain(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		d.wg.Wait()
	}
}

// drain dispatches batches until the queue is empty or a batch fails
func (d *MailDispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		stats, err := d.DispatchOnce(ctx)
		if err != nil {
			d.log.WithError(err).Error("Mail dispatch failed")
			return
		}
		if stats.Claimed > 0 {
			d.log.WithFields(logrus.Fields{
				"claimed": stats.Claimed,
				"sent":    stats.Sent,
				"failed":  stats.Failed,
			}).Info("Dispatched outbound mails")
		}
		if stats.Claimed < d.batchSize {
			return
		}
	}
}

// DispatchOnce claims one batch of pending mails and sends it. The claim and
// the status updates share a transaction, so other dispatchers skip the rows.
func (d *MailDispatcher) DispatchOnce(ctx context.Context) (DispatchStats, error) {
	var stats DispatchStats
	err := d.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		mails, err := d.mailRepo.ClaimPending(txCtx, d.batchSize)
		if err != nil {
			return err
		}
		stats = DispatchStats{Claimed: len(mails)}

		for _, mail := range mails {
			if sendErr := d.sender.SendEmail(txCtx, []string(mail.To), mail.Subject, mail.HTML); sendErr != nil {
				d.log.WithError(sendErr).WithField("mail_id", mail.ID).Warn("Failed to send outbound mail")
				if err := d.mailRepo.MarkFailed(txCtx, mail.ID, sendErr.Error(), d.maxAttempts); err != nil {
					return fmt.Errorf("mark mail %d failed: %w", mail.ID, err)
				}
				stats.Failed++
				continue
			}
			if err := d.mailRepo.MarkSent(txCtx, mail.ID, d.now()); err != nil {
				return fmt.Errorf("mark mail %d sent: %w", mail.ID, err)
			}
			stats.Sent++
		}
		return nil
	})
	if err != nil {
		return DispatchStats{}, err
	}

	mailsDispatched.WithLabelValues(string(models.OutboundMailStatusSent)).Add(float64(stats.Sent))
	mailsDispatched.WithLabelValues(string(models.OutboundMailStatusFailed)).Add(float64(stats.Failed))
	return stats, nil
}
