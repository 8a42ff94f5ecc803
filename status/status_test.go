// ABOUTME: Tests for status transition validation
// ABOUTME: Covers per-axis enumerations, side-effect stamps and activity descriptions
package status

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/sponsordesk/apperr"
	"github.com/harperreed/sponsordesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsEveryEnumeratedValue(t *testing.T) {
	for _, axis := range Axes() {
		for _, v := range Values(axis) {
			assert.NoError(t, Validate(axis, v), "%s=%s", axis, v)
		}
	}
}

func TestValidateRejectsUnknownValue(t *testing.T) {
	err := Validate(AxisPipeline, "won")

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, apperr.FieldsOf(err)["pipeline"], `invalid value "won"`)
}

func TestValidateRejectsValueFromAnotherAxis(t *testing.T) {
	assert.Error(t, Validate(AxisContract, SignaturePending))
	assert.Error(t, Validate(Axis("shipping"), "sent"))
}

func TestNoCrossAxisOrdering(t *testing.T) {
	// signature=pending while contract=none is accepted
	change, err := Transition(AxisSignature, SignatureNotStarted, SignaturePending)
	require.NoError(t, err)
	assert.Equal(t, models.ActivitySignatureStatusChange, change.ActivityType)
}

func TestParseAxis(t *testing.T) {
	axis, err := ParseAxis(" Invoice ")
	require.NoError(t, err)
	assert.Equal(t, AxisInvoice, axis)

	_, err = ParseAxis("stage")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTransitionDescribesActivity(t *testing.T) {
	change, err := Transition(AxisPipeline, Prospect, Contacted)
	require.NoError(t, err)

	assert.Equal(t, "Status changed from prospect to contacted", change.Description)
	assert.Equal(t, StampContactInitiated, change.Stamp)
	assert.False(t, change.NoOp())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	id := uuid.New()
	activity := change.Activity(id, "organizer-1", now)
	assert.Equal(t, id, activity.SponsorForConferenceID)
	assert.Equal(t, models.ActivityStageChange, activity.Type)
	assert.Equal(t, Prospect, activity.Metadata.OldValue)
	assert.Equal(t, Contacted, activity.Metadata.NewValue)
	assert.Equal(t, "pipeline", activity.Metadata.AdditionalData["axis"])
}

func TestApplyStampsOnlyFirstContact(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.AddDate(0, 1, 0)
	rec := &models.SponsorForConference{Status: Prospect}

	change, err := Transition(AxisPipeline, rec.Status, Contacted)
	require.NoError(t, err)
	change.Apply(rec, first)
	assert.Equal(t, Contacted, rec.Status)
	require.NotNil(t, rec.ContactInitiatedAt)

	change.Apply(rec, later)
	assert.Equal(t, first, *rec.ContactInitiatedAt)
}

func TestApplyInvoiceAndContractStamps(t *testing.T) {
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	rec := &models.SponsorForConference{}

	for _, step := range []struct {
		axis  Axis
		value string
	}{
		{AxisContract, ContractSent},
		{AxisContract, ContractSigned},
		{AxisInvoice, InvoiceSent},
		{AxisInvoice, InvoicePaid},
	} {
		change, err := Transition(step.axis, Get(rec, step.axis), step.value)
		require.NoError(t, err)
		change.Apply(rec, now)
	}

	assert.Equal(t, ContractSigned, rec.ContractStatus)
	assert.Equal(t, InvoicePaid, rec.InvoiceStatus)
	assert.NotNil(t, rec.ContractSentAt)
	assert.NotNil(t, rec.ContractSignedAt)
	assert.NotNil(t, rec.InvoiceSentAt)
	assert.NotNil(t, rec.InvoicePaidAt)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(AxisPipeline, ClosedWon))
	assert.True(t, IsTerminal(AxisPipeline, ClosedLost))
	assert.False(t, IsTerminal(AxisPipeline, Negotiating))
	assert.False(t, IsTerminal(AxisInvoice, InvoicePaid))
}
