// ABOUTME: Pipeline mutations for sponsor records across the four status axes
// ABOUTME: Commits each status change together with its activity entry and handles cascading deletes
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/clock"
	"github.com/harperreed/sponsordesk/db"
	"github.com/harperreed/sponsordesk/models"
	"github.com/harperreed/sponsordesk/status"
	"github.com/harperreed/sponsordesk/storage"
	"go.uber.org/zap"
)

type Service struct {
	db     *sql.DB
	store  storage.Store
	clock  clock.Clock
	logger *zap.Logger
}

func NewService(database *sql.DB, store storage.Store, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: database, store: store, clock: clk, logger: logger}
}

// UpdateStatus moves a record along one axis. Setting the current value is a
// no-op. Concurrent updates to the same record are last-write-wins.
func (s *Service) UpdateStatus(ctx context.Context, recordID uuid.UUID, axis status.Axis, value, actor string) (*models.SponsorForConference, error) {
	if err := status.Validate(axis, value); err != nil {
		return nil, err
	}

	var rec *models.SponsorForConference
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		rec, err = db.GetRecord(ctx, tx, recordID)
		if err != nil {
			return err
		}

		change, err := status.Transition(axis, status.Get(rec, axis), value)
		if err != nil {
			return err
		}
		if change.NoOp() {
			return nil
		}

		now := s.clock.Now()
		change.Apply(rec, now)
		if err := db.UpdateRecord(ctx, tx, rec); err != nil {
			return err
		}
		return db.AppendActivity(ctx, tx, change.Activity(rec.ID, actor, now))
	})
	if err != nil {
		return nil, wrapTx(err)
	}

	return rec, nil
}

// BulkResult reports a batch of status updates record by record.
type BulkResult struct {
	Total     int               `json:"total"`
	Updated   int               `json:"updated"`
	Unchanged int               `json:"unchanged"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// BulkUpdateStatus applies the same value to several records. Each record
// commits on its own; one failure does not undo the others.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, axis status.Axis, value, actor string) (*BulkResult, error) {
	if err := status.Validate(axis, value); err != nil {
		return nil, err
	}

	result := &BulkResult{Total: len(ids)}
	for _, id := range ids {
		before, err := db.GetRecord(ctx, s.db, id)
		if err == nil && status.Get(before, axis) == value {
			result.Unchanged++
			continue
		}
		if err == nil {
			_, err = s.UpdateStatus(ctx, id, axis, value, actor)
		}
		if err != nil {
			result.Failed++
			if result.Errors == nil {
				result.Errors = map[string]string{}
			}
			result.Errors[id.String()] = err.Error()
			continue
		}
		result.Updated++
	}

	return result, nil
}

// AddInput describes a sponsor joining a conference pipeline.
type AddInput struct {
	SponsorID        uuid.UUID
	ConferenceID     uuid.UUID
	TierID           *uuid.UUID
	AddonTierIDs     []uuid.UUID
	ContractValue    *int64
	ContractCurrency string
	SignerName       string
	SignerEmail      string
	Tags             []string
	Actor            string
}

// AddToPipeline creates the record for a sponsor and conference. The contract
// value defaults to the tier price plus add-ons.
func (s *Service) AddToPipeline(ctx context.Context, in AddInput) (*models.SponsorForConference, error) {
	fields := map[string]string{}
	if in.SponsorID == uuid.Nil {
		fields["sponsor_id"] = "is required"
	}
	if in.ConferenceID == uuid.Nil {
		fields["conference_id"] = "is required"
	}
	if in.SignerEmail != "" && !strings.Contains(in.SignerEmail, "@") {
		fields["signer_email"] = "is not an email address"
	}
	if in.ContractValue != nil && *in.ContractValue < 0 {
		fields["contract_value"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	rec := &models.SponsorForConference{
		SponsorID:        in.SponsorID,
		ConferenceID:     in.ConferenceID,
		TierID:           in.TierID,
		AddonTierIDs:     in.AddonTierIDs,
		ContractCurrency: strings.ToUpper(in.ContractCurrency),
		SignerName:       in.SignerName,
		SignerEmail:      in.SignerEmail,
		Tags:             in.Tags,
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := db.GetSponsor(ctx, tx, in.SponsorID); err != nil {
			return err
		}
		if _, err := db.GetConference(ctx, tx, in.ConferenceID); err != nil {
			return err
		}
		if _, err := db.FindRecord(ctx, tx, in.SponsorID, in.ConferenceID); err == nil {
			return apperr.InvalidField("sponsor_id", "sponsor is already in this conference's pipeline")
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}

		value, currency, err := s.tierValue(ctx, tx, in)
		if err != nil {
			return err
		}
		if in.ContractValue != nil {
			value = *in.ContractValue
		}
		rec.ContractValue = value
		if rec.ContractCurrency == "" {
			rec.ContractCurrency = currency
		}

		if err := db.CreateRecord(ctx, tx, rec); err != nil {
			return err
		}

		now := s.clock.Now()
		return db.AppendActivity(ctx, tx, &models.Activity{
			SponsorForConferenceID: rec.ID,
			Type:                   models.ActivityStageChange,
			Description:            "Added to pipeline as " + rec.Status,
			Metadata:               models.ActivityMetadata{NewValue: rec.Status, Timestamp: &now},
			CreatedBy:              in.Actor,
			CreatedAt:              now,
		})
	})
	if err != nil {
		return nil, wrapTx(err)
	}

	return rec, nil
}

func (s *Service) tierValue(ctx context.Context, q db.Querier, in AddInput) (int64, string, error) {
	var value int64
	currency := "NOK"

	ids := append([]uuid.UUID(nil), in.AddonTierIDs...)
	if in.TierID != nil {
		ids = append([]uuid.UUID{*in.TierID}, ids...)
	}
	for i, id := range ids {
		tier, err := db.GetTier(ctx, q, id)
		if err != nil {
			return 0, "", err
		}
		if tier.ConferenceID != in.ConferenceID {
			return 0, "", apperr.InvalidField("tier_id", "tier belongs to another conference")
		}
		if i == 0 && tier.Currency != "" {
			currency = tier.Currency
		}
		value += tier.Price
	}
	return value, currency, nil
}

func (s *Service) ListBoard(ctx context.Context, conferenceID uuid.UUID) ([]db.BoardCard, error) {
	if _, err := db.GetConference(ctx, s.db, conferenceID); err != nil {
		return nil, err
	}
	cards, err := db.ListBoard(ctx, s.db, conferenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list board: %w", err)
	}
	if cards == nil {
		cards = []db.BoardCard{}
	}
	return cards, nil
}

var noteTypes = map[string]bool{
	models.ActivityNote:    true,
	models.ActivityCall:    true,
	models.ActivityMeeting: true,
	models.ActivityEmail:   true,
}

// AddNote logs a manual interaction on a record.
func (s *Service) AddNote(ctx context.Context, recordID uuid.UUID, activityType, description, actor string) (*models.Activity, error) {
	if activityType == "" {
		activityType = models.ActivityNote
	}
	if !noteTypes[activityType] {
		return nil, apperr.InvalidField("type", "must be one of note, call, meeting, email")
	}
	if _, err := db.GetRecord(ctx, s.db, recordID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	activity := &models.Activity{
		SponsorForConferenceID: recordID,
		Type:                   activityType,
		Description:            strings.TrimSpace(description),
		Metadata:               models.ActivityMetadata{Timestamp: &now},
		CreatedBy:              actor,
		CreatedAt:              now,
	}
	if err := db.AppendActivity(ctx, s.db, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// LogActivities stores a batch of entries, reporting per-entry failures.
func (s *Service) LogActivities(ctx context.Context, activities []*models.Activity) db.BulkResult {
	now := s.clock.Now()
	for _, a := range activities {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
	}
	return db.LogActivities(ctx, s.db, activities)
}

func (s *Service) ListActivities(ctx context.Context, recordID uuid.UUID, limit int) ([]models.Activity, error) {
	if _, err := db.GetRecord(ctx, s.db, recordID); err != nil {
		return nil, err
	}
	activities, err := db.ListActivities(ctx, s.db, recordID, limit)
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return activities, nil
}

// DeleteRecord removes a pipeline record and its history in one transaction,
// then removes the blobs of any assets that went with it.
func (s *Service) DeleteRecord(ctx context.Context, recordID uuid.UUID, opts db.DeleteOptions) (*db.DeletePlan, error) {
	plan, err := db.DeleteSponsorForConference(ctx, s.db, recordID, opts)
	if err != nil {
		return nil, err
	}
	s.afterDelete(ctx, plan)
	return plan, nil
}

// DeleteSponsor removes a sponsor with all of its pipeline records.
func (s *Service) DeleteSponsor(ctx context.Context, sponsorID uuid.UUID) (*db.DeletePlan, error) {
	plan, err := db.DeleteSponsor(ctx, s.db, sponsorID)
	if err != nil {
		return nil, err
	}
	s.afterDelete(ctx, plan)
	return plan, nil
}

func (s *Service) afterDelete(ctx context.Context, plan *db.DeletePlan) {
	removed := 0
	if s.store != nil {
		removed = storage.RemoveAll(ctx, s.store, plan.Assets, s.logger)
		removed += storage.RemoveKeys(ctx, s.store, plan.DocumentKeys, s.logger)
	}
	s.logger.Info("deleted",
		zap.Int("sponsors", len(plan.SponsorIDs)),
		zap.Int("records", len(plan.RecordIDs)),
		zap.Int("activities", len(plan.ActivityIDs)),
		zap.Int("assets", len(plan.AssetIDs)),
		zap.Int("assets_retained", len(plan.RetainedAssetIDs)),
		zap.Int("blobs_removed", removed))
}

// wrapTx keeps typed errors and marks everything else as a failed transaction.
func wrapTx(err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Transaction(err)
}
