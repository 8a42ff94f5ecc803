// ABOUTME: Tests for background job state tracking
// ABOUTME: Verifies running, success and failure transitions
package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStateLifecycle(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	state, err := GetJobState(ctx, database, "signing-reminders")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, MarkJobRunning(ctx, database, "signing-reminders", now))
	state, err = GetJobState(ctx, database, "signing-reminders")
	require.NoError(t, err)
	assert.Equal(t, JobRunning, state.Status)
	assert.Nil(t, state.LastRunAt)

	msg := "mail relay down"
	require.NoError(t, MarkJobFinished(ctx, database, "signing-reminders", `{"total":1}`, &msg, now))
	state, err = GetJobState(ctx, database, "signing-reminders")
	require.NoError(t, err)
	assert.Equal(t, JobError, state.Status)
	require.NotNil(t, state.ErrorMessage)
	assert.Equal(t, msg, *state.ErrorMessage)

	require.NoError(t, MarkJobFinished(ctx, database, "signing-reminders", `{"total":0}`, nil, now.Add(time.Hour)))
	states, err := ListJobStates(ctx, database)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, JobIdle, states[0].Status)
	assert.Nil(t, states[0].ErrorMessage)
	assert.Equal(t, `{"total":0}`, states[0].LastSummary)
}

func TestDispatchLedger(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	rec := seedRecord(t, database, seedSponsor(t, database, "acme").ID, seedConference(t, database).ID)
	key := "contract-reminder:" + rec.ID.String() + ":1"

	sent, err := DispatchRecorded(ctx, database, key)
	require.NoError(t, err)
	assert.False(t, sent)

	now := time.Now().UTC()
	require.NoError(t, RecordDispatch(ctx, database, key, rec.ID, "contract-reminder", "a@b.example", now))
	require.NoError(t, RecordDispatch(ctx, database, key, rec.ID, "contract-reminder", "a@b.example", now))

	sent, err = DispatchRecorded(ctx, database, key)
	require.NoError(t, err)
	assert.True(t, sent)
}
