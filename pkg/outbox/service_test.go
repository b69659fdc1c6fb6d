package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	taskID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventChargeSucceeded,
			AggregateType: AggregateTask,
			AggregateID:   taskID,
			Provider:      enums.ProviderAirwallex,
			Data:          map[string]string{"payment_status": "paid"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, string(enums.EventChargeSucceeded), row.EventType)
	assert.Equal(t, AggregateTask, row.AggregateType)
	assert.Equal(t, taskID, row.AggregateID)
	assert.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, "airwallex", envelope.Provider)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
}

func TestEmitRequiresTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventPayoutFailed,
		AggregateType: AggregatePayout,
		AggregateID:   uuid.New(),
	})
	assert.Error(t, err)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	sentinel := errors.New("abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		emitErr := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPayoutSucceeded,
			AggregateType: AggregatePayout,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"payout_status": "succeeded"},
		})
		require.NoError(t, emitErr)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFetchUnpublishedAndMark(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	var firstID uuid.UUID
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if err := svc.Emit(context.Background(), tx, DomainEvent{
				EventType:     enums.EventChargeFailed,
				AggregateType: AggregateTask,
				AggregateID:   uuid.New(),
				Data:          map[string]int{"seq": i},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	firstID = rows[0].ID

	require.NoError(t, repo.MarkPublished(firstID))
	rows, err = repo.FetchUnpublished(10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, repo.MarkFailed(rows[0].ID, errors.New("publish timeout")))
	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", rows[0].ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "publish timeout", *failed.LastError)
}
