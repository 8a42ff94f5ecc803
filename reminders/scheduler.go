// ABOUTME: Reminder sweep for contracts waiting for a signature
// ABOUTME: Emails signers of stale agreements, bumps the reminder counter and logs each reminder
package reminders

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/mail"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/retry"
	"go.uber.org/zap"
)

// JobName identifies the sweep in job_state.
const JobName = "contract-reminders"

const (
	DefaultThreshold    = 5 * 24 * time.Hour
	// DefaultMaxReminders is also the ceiling; a record never gets more.
	DefaultMaxReminders = 2
)

type Options struct {
	// Threshold is how long a contract must have been out before a reminder.
	Threshold    time.Duration
	MaxReminders int
	Retry        retry.Config
	SenderName   string
}

// SweepResult is the aggregate outcome of one sweep.
type SweepResult struct {
	Success bool   `json:"success"`
	Total   int    `json:"total"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Message string `json:"message,omitempty"`
}

type Scheduler struct {
	db     *sql.DB
	mailer mail.Mailer
	clock  clock.Clock
	opts   Options
	logger *zap.Logger
}

func NewScheduler(database *sql.DB, mailer mail.Mailer, clk clock.Clock, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxReminders <= 0 || opts.MaxReminders > DefaultMaxReminders {
		opts.MaxReminders = DefaultMaxReminders
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		db:     database,
		mailer: mailer,
		clock:  clk,
		opts:   opts,
		logger: logger.With(zap.String("job", JobName)),
	}
}

// Candidates returns pending records whose contract went out strictly before
// now minus the threshold and that have reminders left.
func (s *Scheduler) Candidates(ctx context.Context) ([]models.SponsorForConference, error) {
	pending, err := db.ListPendingSignatures(ctx, s.db, s.opts.MaxReminders)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending signatures: %w", err)
	}

	cutoff := s.clock.Now().Add(-s.opts.Threshold)
	var due []models.SponsorForConference
	for _, rec := range pending {
		if rec.ContractSentAt != nil && rec.ContractSentAt.Before(cutoff) {
			due = append(due, rec)
		}
	}
	return due, nil
}

// Sweep sends one reminder to every due record, one record at a time. A
// failing record is counted and the sweep moves on; it is not cancelled
// halfway through its batch.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	started := s.clock.Now()

	candidates, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &SweepResult{Success: true, Message: "No contracts need reminders"}, nil
	}

	if err := db.MarkJobRunning(ctx, s.db, JobName, started); err != nil {
		s.logger.Warn("failed to mark job running", zap.Error(err))
	}

	// Accounting must finish for the whole batch even if the caller goes away.
	work := context.WithoutCancel(ctx)

	result := &SweepResult{Success: true, Total: len(candidates)}
	for i := range candidates {
		rec := &candidates[i]
		if err := s.remind(work, rec); err != nil {
			result.Failed++
			s.logger.Error("reminder failed",
				zap.String("record_id", rec.ID.String()),
				zap.Int("reminder", rec.ReminderCount+1),
				zap.Error(err))
			continue
		}
		result.Sent++
	}

	summary := fmt.Sprintf("total=%d sent=%d failed=%d", result.Total, result.Sent, result.Failed)
	var errMsg *string
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d reminders failed", result.Failed)
		errMsg = &msg
	}
	if err := db.MarkJobFinished(work, s.db, JobName, summary, errMsg, s.clock.Now()); err != nil {
		s.logger.Warn("failed to mark job finished", zap.Error(err))
	}

	s.logger.Info("reminder sweep finished",
		zap.Int("total", result.Total),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", s.clock.Now().Sub(started)))

	return result, nil
}

// remind handles one record. The counter and history entry are written even
// when the email could not be delivered; the delivery error is returned after.
func (s *Scheduler) remind(ctx context.Context, rec *models.SponsorForConference) error {
	newCount := rec.ReminderCount + 1

	var sendErr error
	emailed := false
	if rec.SigningURL != "" && rec.SignerEmail != "" {
		emailed, sendErr = s.send(ctx, rec, newCount)
	}

	now := s.clock.Now()
	description := fmt.Sprintf("Contract reminder %d sent to %s", newCount, rec.SignerEmail)
	switch {
	case sendErr != nil:
		description = fmt.Sprintf("Contract reminder %d could not be emailed to %s", newCount, rec.SignerEmail)
	case !emailed:
		description = fmt.Sprintf("Contract reminder %d recorded without email (no signer email or signing link)", newCount)
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := db.SetReminderCount(ctx, tx, rec.ID, newCount); err != nil {
			return err
		}
		return db.AppendActivity(ctx, tx, &models.Activity{
			SponsorForConferenceID: rec.ID,
			Type:                   models.ActivityContractReminderSent,
			Description:            description,
			Metadata: models.ActivityMetadata{
				OldValue:  fmt.Sprint(rec.ReminderCount),
				NewValue:  fmt.Sprint(newCount),
				Timestamp: &now,
				AdditionalData: map[string]interface{}{
					"reminder_number": newCount,
					"emailed":         emailed,
				},
			},
			CreatedBy: "system",
			CreatedAt: now,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}
	rec.ReminderCount = newCount

	return sendErr
}

// send emails the reminder unless the ledger shows it already went out.
func (s *Scheduler) send(ctx context.Context, rec *models.SponsorForConference, n int) (bool, error) {
	key := mail.DispatchKey(models.TemplateContractReminder, rec.ID, n)
	done, err := db.DispatchRecorded(ctx, s.db, key)
	if err != nil {
		return false, err
	}
	if done {
		s.logger.Info("reminder already delivered", zap.String("dispatch_key", key))
		return true, nil
	}

	msg, err := s.compose(ctx, rec, n)
	if err != nil {
		return false, err
	}

	err = retry.Do(ctx, s.opts.Retry, s.logger, "send reminder", func(ctx context.Context) error {
		return s.mailer.Send(ctx, msg)
	})
	if err != nil {
		return false, fmt.Errorf("failed to send reminder email: %w", err)
	}

	if err := db.RecordDispatch(ctx, s.db, key, rec.ID, models.TemplateContractReminder, rec.SignerEmail, s.clock.Now()); err != nil {
		s.logger.Warn("failed to record dispatch", zap.String("dispatch_key", key), zap.Error(err))
	}
	return true, nil
}

func (s *Scheduler) compose(ctx context.Context, rec *models.SponsorForConference, n int) (mail.Message, error) {
	sponsor, err := db.GetSponsor(ctx, s.db, rec.SponsorID)
	if err != nil {
		return mail.Message{}, err
	}
	conf, err := db.GetConference(ctx, s.db, rec.ConferenceID)
	if err != nil {
		return mail.Message{}, err
	}
	var tier *models.Tier
	if rec.TierID != nil {
		tier, _ = db.GetTier(ctx, s.db, *rec.TierID)
	}

	tmpl, err := mail.LoadTemplate(ctx, s.db, models.TemplateContractReminder)
	if err != nil {
		return mail.Message{}, err
	}

	sender := s.opts.SenderName
	if sender == "" {
		sender = conf.OrganizerName
	}
	vars := mail.RecordVars(rec, sponsor, conf, tier, sender)
	vars["reminder_number"] = fmt.Sprint(n)

	msg, missing := mail.Compose(tmpl, rec.SignerEmail, rec.SignerName, vars)
	if len(missing) > 0 {
		s.logger.Warn("reminder template has unknown variables", zap.String("missing", strings.Join(missing, ",")))
	}
	return msg, nil
}
